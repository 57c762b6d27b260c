// Package checkpoint provides the durable, append-only checkpoint
// store the scheduler writes one entry to after every agent
// round: the full CanonicalState plus the event-log sequence number
// it corresponds to, so a resumed run knows both what the state was
// and which events have already been published for it.
package checkpoint

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gtmcore/orchestrator/internal/core"
	"github.com/gtmcore/orchestrator/internal/state"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// CurrentSchemaVersion is the schema version this build knows how to
// read and write. A database carrying a higher version was written by
// a newer build and cannot be safely opened.
const CurrentSchemaVersion = 1

// Store is a sqlite-backed append-only log of per-run checkpoints.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates or opens the sqlite database at dbPath in WAL mode and
// runs pending migrations.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, core.ErrStore("MKDIR_FAILED", "creating checkpoint directory").WithCause(err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, core.ErrStore("OPEN_FAILED", "opening checkpoint database").WithCause(err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		version = 0
	}
	if version > CurrentSchemaVersion {
		return core.ErrStore("SCHEMA_MISMATCH",
			fmt.Sprintf("checkpoint database is at schema version %d, this build only knows version %d", version, CurrentSchemaVersion))
	}
	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return core.ErrStore("MIGRATION_FAILED", "applying checkpoint schema v1").WithCause(err)
		}
	}
	return nil
}

// SchemaVersion reports the checkpoint database's current schema
// version; the migrate command prints it after opening the store.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var version int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, core.ErrStore("QUERY_FAILED", "reading schema version").WithCause(err)
	}
	return version, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func checksumOf(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Append writes a new checkpoint for runID, returning its index
// (monotonically increasing per run, starting at 0). eventSeqTail is
// the event bus sequence number the caller says this state reflects;
// Append stores it as given and Latest returns it.
func (s *Store) Append(ctx context.Context, runID string, snapshot *state.CanonicalState, eventSeqTail int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stateJSON, err := json.Marshal(snapshot)
	if err != nil {
		return 0, core.ErrStore("MARSHAL_FAILED", "marshaling checkpoint state").WithCause(err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, core.ErrStore("TX_BEGIN_FAILED", "beginning checkpoint transaction").WithCause(err)
	}
	defer func() { _ = tx.Rollback() }()

	var nextIndex int64
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(checkpoint_index), -1) + 1 FROM checkpoints WHERE run_id = ?", runID,
	).Scan(&nextIndex)
	if err != nil {
		return 0, core.ErrStore("INDEX_QUERY_FAILED", "computing next checkpoint index").WithCause(err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO checkpoints (run_id, checkpoint_index, state_json, event_seq_tail, checksum, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, nextIndex, stateJSON, eventSeqTail, checksumOf(stateJSON), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, core.ErrStore("INSERT_FAILED", "inserting checkpoint").WithCause(err)
	}

	if err := tx.Commit(); err != nil {
		return 0, core.ErrStore("TX_COMMIT_FAILED", "committing checkpoint transaction").WithCause(err)
	}
	return nextIndex, nil
}

// Latest returns the most recent checkpoint for runID.
func (s *Store) Latest(ctx context.Context, runID string) (int64, *state.CanonicalState, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var idx, eventSeqTail int64
	var stateJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT checkpoint_index, state_json, event_seq_tail FROM checkpoints
		WHERE run_id = ? ORDER BY checkpoint_index DESC LIMIT 1
	`, runID).Scan(&idx, &stateJSON, &eventSeqTail)
	if err == sql.ErrNoRows {
		return 0, nil, 0, core.ErrNotFound("checkpoint", runID)
	}
	if err != nil {
		return 0, nil, 0, core.ErrStore("QUERY_FAILED", "loading latest checkpoint").WithCause(err)
	}

	var snapshot state.CanonicalState
	if err := json.Unmarshal(stateJSON, &snapshot); err != nil {
		return 0, nil, 0, core.ErrStore("UNMARSHAL_FAILED", "decoding checkpoint state").WithCause(err)
	}
	return idx, &snapshot, eventSeqTail, nil
}

// Get returns the checkpoint at the given index for runID.
func (s *Store) Get(ctx context.Context, runID string, index int64) (*state.CanonicalState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stateJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT state_json FROM checkpoints WHERE run_id = ? AND checkpoint_index = ?
	`, runID, index).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound("checkpoint", fmt.Sprintf("%s@%d", runID, index))
	}
	if err != nil {
		return nil, core.ErrStore("QUERY_FAILED", "loading checkpoint").WithCause(err)
	}

	var snapshot state.CanonicalState
	if err := json.Unmarshal(stateJSON, &snapshot); err != nil {
		return nil, core.ErrStore("UNMARSHAL_FAILED", "decoding checkpoint state").WithCause(err)
	}
	return &snapshot, nil
}
