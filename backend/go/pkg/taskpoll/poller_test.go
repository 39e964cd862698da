package taskpoll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"JobPilot/backend/go/pkg/models"
)

// scriptedFetcher replays a fixed sequence of snapshots (or errors) and
// counts how many fetches happened.
type scriptedFetcher struct {
	mu      sync.Mutex
	script  []fetchStep
	fetches int
	started chan struct{} // closed on first fetch, when set
}

type fetchStep struct {
	status models.TaskStatus
	errMsg string
	err    error
}

func (f *scriptedFetcher) FetchTask(ctx context.Context, taskID string) (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.started != nil {
		close(f.started)
		f.started = nil
	}

	step := f.script[len(f.script)-1]
	if f.fetches < len(f.script) {
		step = f.script[f.fetches]
	}
	f.fetches++

	if step.err != nil {
		return nil, step.err
	}
	return &Snapshot{TaskID: taskID, Status: step.status, Error: step.errMsg}, nil
}

func (f *scriptedFetcher) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// recordingHandler remembers handler calls in order.
type recordingHandler struct {
	mu    sync.Mutex
	calls []handlerCall
}

type handlerCall struct {
	op      string // "status", "error" or "reconcile"
	key     string
	kind    models.TaskKind
	message string
	status  models.TaskStatus
}

func (h *recordingHandler) UpdateStatus(key string, kind models.TaskKind, status models.TaskStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, handlerCall{op: "status", key: key, kind: kind, status: status})
}

func (h *recordingHandler) RecordError(key string, kind models.TaskKind, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, handlerCall{op: "error", key: key, kind: kind, message: message})
}

func (h *recordingHandler) Reconcile(ctx context.Context, key string, kind models.TaskKind) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, handlerCall{op: "reconcile", key: key, kind: kind})
	return nil
}

func (h *recordingHandler) snapshot() []handlerCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]handlerCall, len(h.calls))
	copy(out, h.calls)
	return out
}

// statuses extracts the status updates from a call sequence, in order.
func statuses(calls []handlerCall) []models.TaskStatus {
	var out []models.TaskStatus
	for _, c := range calls {
		if c.op == "status" {
			out = append(out, c.status)
		}
	}
	return out
}

func TestWatch_CompletedAfterRunning(t *testing.T) {
	fetcher := &scriptedFetcher{script: []fetchStep{
		{status: models.TaskStatusRunning},
		{status: models.TaskStatusRunning},
		{status: models.TaskStatusCompleted},
	}}
	handler := &recordingHandler{}
	poller := New(fetcher, handler, WithInterval(5*time.Millisecond))

	if err := poller.Watch(context.Background(), "t-1", "Acme", models.TaskKindResearch); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if got := fetcher.fetchCount(); got != 3 {
		t.Errorf("expected 3 fetches, got %d", got)
	}

	calls := handler.snapshot()
	if len(calls) != 4 {
		t.Fatalf("expected 3 status updates and 1 reconcile, got %d calls: %v", len(calls), calls)
	}
	last := calls[len(calls)-1]
	if last.op != "reconcile" || last.key != "Acme" || last.kind != models.TaskKindResearch {
		t.Errorf("unexpected final call: %+v", last)
	}

	if poller.Watching("Acme", models.TaskKindResearch) {
		t.Error("expected key to be released after terminal status")
	}
}

func TestWatch_StatusUpdatedOnEveryResponse(t *testing.T) {
	fetcher := &scriptedFetcher{script: []fetchStep{
		{status: models.TaskStatusPending},
		{status: models.TaskStatusRunning},
		{status: models.TaskStatusCompleted},
	}}
	handler := &recordingHandler{}
	poller := New(fetcher, handler, WithInterval(5*time.Millisecond))

	if err := poller.Watch(context.Background(), "t-1b", "Acme", models.TaskKindResearch); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	got := statuses(handler.snapshot())
	want := []models.TaskStatus{models.TaskStatusPending, models.TaskStatusRunning, models.TaskStatusCompleted}
	if len(got) != len(want) {
		t.Fatalf("expected one status update per response, got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("status update %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWatch_FailedRecordsErrorBeforeReconcile(t *testing.T) {
	fetcher := &scriptedFetcher{script: []fetchStep{
		{status: models.TaskStatusRunning},
		{status: models.TaskStatusFailed, errMsg: "llm unavailable"},
	}}
	handler := &recordingHandler{}
	poller := New(fetcher, handler, WithInterval(5*time.Millisecond))

	if err := poller.Watch(context.Background(), "t-2", "Acme", models.TaskKindMessage); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	calls := handler.snapshot()
	if len(calls) != 4 {
		t.Fatalf("expected 2 status updates, error, reconcile; got %d calls: %v", len(calls), calls)
	}
	if calls[1].op != "status" || calls[1].status != models.TaskStatusFailed {
		t.Errorf("expected failed status mirrored before the error, got %+v", calls[1])
	}
	if calls[2].op != "error" || calls[2].message != "llm unavailable" {
		t.Errorf("expected error recorded with task message, got %+v", calls[2])
	}
	if calls[3].op != "reconcile" {
		t.Errorf("expected reconcile after error, got %+v", calls[3])
	}

	if poller.Watching("Acme", models.TaskKindMessage) {
		t.Error("expected key to be released after failure")
	}
}

func TestWatch_FailedWithoutMessageGetsGenericError(t *testing.T) {
	fetcher := &scriptedFetcher{script: []fetchStep{
		{status: models.TaskStatusFailed},
	}}
	handler := &recordingHandler{}
	poller := New(fetcher, handler, WithInterval(5*time.Millisecond))

	if err := poller.Watch(context.Background(), "t-3", ScanKey, models.TaskKindScanEmails); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	calls := handler.snapshot()
	if len(calls) != 3 || calls[1].op != "error" {
		t.Fatalf("expected status, error, reconcile, got %v", calls)
	}
	if calls[1].message == "" {
		t.Error("expected a generic error message, got empty string")
	}
}

func TestWatch_TransportErrorStopsWithoutReconcile(t *testing.T) {
	boom := errors.New("connection refused")
	fetcher := &scriptedFetcher{script: []fetchStep{
		{status: models.TaskStatusRunning},
		{err: boom},
	}}
	handler := &recordingHandler{}
	poller := New(fetcher, handler, WithInterval(5*time.Millisecond))

	err := poller.Watch(context.Background(), "t-4", "Acme", models.TaskKindResearch)
	if !errors.Is(err, boom) {
		t.Fatalf("expected transport error to surface, got %v", err)
	}

	calls := handler.snapshot()
	if len(calls) != 2 || calls[0].op != "status" || calls[1].op != "error" {
		t.Fatalf("expected a status update then a recorded error, got %v", calls)
	}
	for _, c := range calls {
		if c.op == "reconcile" {
			t.Errorf("unexpected reconcile after transport error: %v", calls)
		}
	}

	if got := fetcher.fetchCount(); got != 2 {
		t.Errorf("expected no retry after transport error, got %d fetches", got)
	}
	if poller.Watching("Acme", models.TaskKindResearch) {
		t.Error("expected key to be released after transport error")
	}
}

func TestWatch_DuplicateKeyRejected(t *testing.T) {
	started := make(chan struct{})
	fetcher := &scriptedFetcher{
		script:  []fetchStep{{status: models.TaskStatusRunning}},
		started: started,
	}
	handler := &recordingHandler{}
	poller := New(fetcher, handler, WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- poller.Watch(ctx, "t-5", "Acme", models.TaskKindResearch)
	}()
	<-started

	if err := poller.Watch(ctx, "t-6", "Acme", models.TaskKindResearch); !errors.Is(err, ErrAlreadyWatching) {
		t.Errorf("expected ErrAlreadyWatching, got %v", err)
	}

	// A different kind on the same key is independent.
	if poller.Watching("Acme", models.TaskKindMessage) {
		t.Error("message kind should not be in flight")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if poller.InFlight() != 0 {
		t.Errorf("expected empty in-flight set after cancel, got %d", poller.InFlight())
	}
}

func TestWatch_PollingIsSpacedByInterval(t *testing.T) {
	interval := 30 * time.Millisecond
	fetcher := &scriptedFetcher{script: []fetchStep{
		{status: models.TaskStatusRunning},
		{status: models.TaskStatusRunning},
		{status: models.TaskStatusCompleted},
	}}
	handler := &recordingHandler{}
	poller := New(fetcher, handler, WithInterval(interval))

	start := time.Now()
	if err := poller.Watch(context.Background(), "t-7", "Acme", models.TaskKindResearch); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	elapsed := time.Since(start)

	// Three fetches means two waits between them.
	if elapsed < 2*interval {
		t.Errorf("polling too fast: 3 fetches finished in %v with interval %v", elapsed, interval)
	}
}
