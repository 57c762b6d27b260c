package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gtmcore/orchestrator/internal/core"
	"github.com/gtmcore/orchestrator/internal/events"
	"github.com/gtmcore/orchestrator/internal/state"
)

// fakeRuntime is an in-package stand-in for Runtime, scripted per test
// via its function fields so each handler can be exercised without a
// real scheduler.
type fakeRuntime struct {
	startRunFn        func(ctx context.Context, scenarioID, changed string) (string, error)
	resumeRunFn       func(ctx context.Context, runID string) error
	runStatusFn       func(ctx context.Context, runID string) (string, int64, error)
	selectDecisionFn  func(ctx context.Context, scenarioID, key, selected string, isCustom bool, justification string) error
	completeFn        func(ctx context.Context, scenarioID string) error
	exportReadinessFn func(ctx context.Context, scenarioID string) (bool, []state.Contradiction, error)
	cancelRunFn       func(ctx context.Context, runID string) error
}

func (f *fakeRuntime) StartRun(c context.Context, scenarioID, changed string) (string, error) {
	return f.startRunFn(c, scenarioID, changed)
}
func (f *fakeRuntime) ResumeRun(c context.Context, runID string) error {
	return f.resumeRunFn(c, runID)
}
func (f *fakeRuntime) RunStatus(c context.Context, runID string) (string, int64, error) {
	return f.runStatusFn(c, runID)
}
func (f *fakeRuntime) SelectDecision(c context.Context, scenarioID, key, selected string, isCustom bool, justification string) error {
	return f.selectDecisionFn(c, scenarioID, key, selected, isCustom, justification)
}
func (f *fakeRuntime) Complete(c context.Context, scenarioID string) error {
	return f.completeFn(c, scenarioID)
}
func (f *fakeRuntime) ExportReadiness(c context.Context, scenarioID string) (bool, []state.Contradiction, error) {
	return f.exportReadinessFn(c, scenarioID)
}
func (f *fakeRuntime) CancelRun(c context.Context, runID string) error {
	return f.cancelRunFn(c, runID)
}

func newTestServer(rt Runtime) *Server {
	return NewServer(rt, events.New())
}

func TestStartRunReturnsAcceptedWithStreamURL(t *testing.T) {
	rt := &fakeRuntime{
		startRunFn: func(_ context.Context, scenarioID, changed string) (string, error) {
			assert.Equal(t, "scn-1", scenarioID)
			assert.Empty(t, changed)
			return "run-1", nil
		},
	}
	s := newTestServer(rt)

	req := httptest.NewRequest(http.MethodPost, "/scenarios/scn-1/runs", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	var resp startRunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "/runs/run-1/stream", resp.StreamURL)
}

func TestStartRunPropagatesNotFoundAsHTTP404(t *testing.T) {
	rt := &fakeRuntime{
		startRunFn: func(_ context.Context, scenarioID, changed string) (string, error) {
			return "", core.ErrNotFound("scenario", scenarioID)
		},
	}
	s := newTestServer(rt)

	req := httptest.NewRequest(http.MethodPost, "/scenarios/missing/runs", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartRunRejectsMalformedBody(t *testing.T) {
	rt := &fakeRuntime{startRunFn: func(_ context.Context, _, _ string) (string, error) {
		t.Fatal("runtime should not be called for a malformed body")
		return "", nil
	}}
	s := newTestServer(rt)

	req := httptest.NewRequest(http.MethodPost, "/scenarios/scn-1/runs", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCancelRunReturnsAccepted(t *testing.T) {
	called := false
	rt := &fakeRuntime{cancelRunFn: func(_ context.Context, runID string) error {
		called = true
		assert.Equal(t, "run-7", runID)
		return nil
	}}
	s := newTestServer(rt)

	req := httptest.NewRequest(http.MethodDelete, "/runs/run-7", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, called)
}

func TestSelectDecisionRejectsUnknownKey(t *testing.T) {
	rt := &fakeRuntime{selectDecisionFn: func(_ context.Context, _, _, _ string, _ bool, _ string) error {
		t.Fatal("runtime should not be called for an unknown decision key")
		return nil
	}}
	s := newTestServer(rt)

	body, _ := json.Marshal(selectDecisionRequest{SelectedOptionID: "opt-1"})
	req := httptest.NewRequest(http.MethodPost, "/scenarios/scn-1/decisions/bogus/select", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSelectDecisionRequiresJustificationForCustomOverride(t *testing.T) {
	rt := &fakeRuntime{selectDecisionFn: func(_ context.Context, _, _, _ string, _ bool, _ string) error {
		t.Fatal("runtime should not be called without a justification")
		return nil
	}}
	s := newTestServer(rt)

	body, _ := json.Marshal(selectDecisionRequest{SelectedOptionID: "custom", IsCustom: true})
	req := httptest.NewRequest(http.MethodPost, "/scenarios/scn-1/decisions/icp/select", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSelectDecisionAcceptsValidSelection(t *testing.T) {
	rt := &fakeRuntime{selectDecisionFn: func(_ context.Context, scenarioID, key, selected string, isCustom bool, justification string) error {
		assert.Equal(t, "scn-1", scenarioID)
		assert.Equal(t, "icp", key)
		assert.Equal(t, "opt-2", selected)
		assert.False(t, isCustom)
		return nil
	}}
	s := newTestServer(rt)

	body, _ := json.Marshal(selectDecisionRequest{SelectedOptionID: "opt-2"})
	req := httptest.NewRequest(http.MethodPost, "/scenarios/scn-1/decisions/icp/select", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestExportReturnsBlockingContradictions(t *testing.T) {
	rt := &fakeRuntime{exportReadinessFn: func(_ context.Context, scenarioID string) (bool, []state.Contradiction, error) {
		assert.Equal(t, "scn-1", scenarioID)
		return false, []state.Contradiction{{RuleID: "BUDGET_RUNWAY", Message: "budget exceeds runway"}}, nil
	}}
	s := newTestServer(rt)

	req := httptest.NewRequest(http.MethodGet, "/scenarios/scn-1/export", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp exportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Ready)
	require.Len(t, resp.Blocking, 1)
	assert.Equal(t, "budget exceeds runway", resp.Blocking[0].Message)
}

func TestCompleteSurfacesValidatorBlockAsConflict(t *testing.T) {
	rt := &fakeRuntime{completeFn: func(_ context.Context, _ string) error {
		return core.ErrValidatorBlock("execution pillar has no plan")
	}}
	s := newTestServer(rt)

	req := httptest.NewRequest(http.MethodPost, "/scenarios/scn-1/complete", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetRunReturnsStatus(t *testing.T) {
	rt := &fakeRuntime{runStatusFn: func(_ context.Context, runID string) (string, int64, error) {
		assert.Equal(t, "run-9", runID)
		return "running", 3, nil
	}}
	s := newTestServer(rt)

	req := httptest.NewRequest(http.MethodGet, "/runs/run-9", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp runStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, int64(3), resp.CheckpointIndex)
}

func TestHealthEndpointIsUnauthenticated(t *testing.T) {
	s := newTestServer(&fakeRuntime{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
