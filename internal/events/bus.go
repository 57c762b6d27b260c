// Package events implements the per-run, strictly ordered event log
// agents, the merge engine, and the validator publish to, and the SSE
// handler subscribes to (with replay for subscribers that attach after
// the run has already produced events).
package events

import (
	"sync"

	"github.com/google/uuid"
)

func newEventID() string {
	return "evt_" + uuid.New().String()
}

// runLog holds one run's ordered history plus its live subscribers.
type runLog struct {
	mu          sync.Mutex
	history     []Event
	nextSeq     int64
	subscribers map[int]chan Event
	nextSubID   int
	closed      bool
}

// Bus is a registry of per-run event logs. Construct one Bus per
// process; every run gets its own ordered, independently closable log.
type Bus struct {
	mu   sync.Mutex
	runs map[string]*runLog
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{runs: make(map[string]*runLog)}
}

func (b *Bus) logFor(runID string) *runLog {
	b.mu.Lock()
	defer b.mu.Unlock()
	log, ok := b.runs[runID]
	if !ok {
		log = &runLog{subscribers: make(map[int]chan Event)}
		b.runs[runID] = log
	}
	return log
}

// Publish appends ev to its run's history (assigning the next Seq) and
// fans it out to every live subscriber. Publish never blocks on a slow
// subscriber: each subscriber channel is generously buffered and a full
// channel is closed and dropped rather than stalling the publisher.
// Events for a run closed by CloseRun are dropped, except run_resumed,
// which reopens the run's log so the resumed run is recorded.
func (b *Bus) Publish(ev Event) {
	log := b.logFor(ev.RunID)
	log.mu.Lock()
	defer log.mu.Unlock()
	if log.closed {
		if ev.Kind != KindRunResumed {
			return
		}
		log.closed = false
	}
	log.nextSeq++
	ev.Seq = log.nextSeq
	log.history = append(log.history, ev)
	for id, ch := range log.subscribers {
		select {
		case ch <- ev:
		default:
			close(ch)
			delete(log.subscribers, id)
		}
	}
}

// Subscribe returns a channel that first replays every event already
// recorded for runID (from the beginning, or from afterSeq if nonzero)
// and then streams new events as they are published. Call the
// returned cancel function to unsubscribe and release the channel.
func (b *Bus) Subscribe(runID string, afterSeq int64) (<-chan Event, func()) {
	log := b.logFor(runID)
	log.mu.Lock()
	defer log.mu.Unlock()

	backlog := 0
	for _, ev := range log.history {
		if ev.Seq > afterSeq {
			backlog++
		}
	}
	ch := make(chan Event, backlog+256)
	id := log.nextSubID
	log.nextSubID++
	if !log.closed {
		log.subscribers[id] = ch
	}

	for _, ev := range log.history {
		if ev.Seq > afterSeq {
			ch <- ev
		}
	}

	cancel := func() {
		log.mu.Lock()
		defer log.mu.Unlock()
		if sub, ok := log.subscribers[id]; ok {
			close(sub)
			delete(log.subscribers, id)
		}
	}
	return ch, cancel
}

// History returns every event recorded for runID so far, in order.
func (b *Bus) History(runID string) []Event {
	log := b.logFor(runID)
	log.mu.Lock()
	defer log.mu.Unlock()
	out := make([]Event, len(log.history))
	copy(out, log.history)
	return out
}

// CloseRun closes every live subscriber channel for runID. The run's
// history remains available via History for late readers (e.g. a
// completed run's export endpoint).
func (b *Bus) CloseRun(runID string) {
	log := b.logFor(runID)
	log.mu.Lock()
	defer log.mu.Unlock()
	if log.closed {
		return
	}
	log.closed = true
	for id, ch := range log.subscribers {
		close(ch)
		delete(log.subscribers, id)
	}
}
