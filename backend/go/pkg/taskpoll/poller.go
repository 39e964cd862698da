package taskpoll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"JobPilot/backend/go/pkg/models"
)

// ScanKey is the tracking key used for the global inbox scan, which is
// not tied to any single company.
const ScanKey = "__recruiter_scan__"

// DefaultInterval is the delay between consecutive status checks for
// one watched task.
const DefaultInterval = time.Second

// ErrAlreadyWatching is returned when a task of the same kind is already
// being watched for the same key.
var ErrAlreadyWatching = errors.New("task already being watched for this key")

// Snapshot is the slice of task state the poller acts on.
type Snapshot struct {
	TaskID string
	Status models.TaskStatus
	Error  string
}

// Fetcher retrieves the current snapshot of a task, typically via
// GET /api/tasks/:id.
type Fetcher interface {
	FetchTask(ctx context.Context, taskID string) (*Snapshot, error)
}

// Handler receives the poller's verdicts. UpdateStatus mirrors the task
// status onto the watched key after every successful check, terminal or
// not. RecordError surfaces a failure on the watched key; Reconcile
// refetches the authoritative state once a task reaches a terminal
// status (a single company for research and message tasks, the whole
// list for an inbox scan).
type Handler interface {
	UpdateStatus(key string, kind models.TaskKind, status models.TaskStatus)
	RecordError(key string, kind models.TaskKind, message string)
	Reconcile(ctx context.Context, key string, kind models.TaskKind) error
}

// Poller watches background tasks until they terminate, keeping at most
// one watch per (key, kind) pair alive at a time.
type Poller struct {
	fetcher  Fetcher
	handler  Handler
	interval time.Duration

	mu       sync.Mutex
	inflight map[watchKey]string // (key, kind) -> task id
}

type watchKey struct {
	key  string
	kind models.TaskKind
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides the polling interval. Tests use this to avoid
// real one-second waits.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		p.interval = d
	}
}

// New creates a Poller that reports to handler.
func New(fetcher Fetcher, handler Handler, opts ...Option) *Poller {
	p := &Poller{
		fetcher:  fetcher,
		handler:  handler,
		interval: DefaultInterval,
		inflight: make(map[watchKey]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Watching reports whether a task of kind is currently watched for key.
func (p *Poller) Watching(key string, kind models.TaskKind) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inflight[watchKey{key, kind}]
	return ok
}

// InFlight returns the number of active watches.
func (p *Poller) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inflight)
}

// Watch polls the task until it reaches a terminal status, then calls the
// handler and returns. The first check happens immediately, later checks
// once per interval. The (key, kind) pair is released on every exit path,
// so a follow-up task for the same key can be watched afterwards.
//
// A failed task records its error before the reconcile fetch, so the
// error is already visible when fresh state arrives. A transport or
// decode failure records a generic error and stops the watch without
// retrying.
func (p *Poller) Watch(ctx context.Context, taskID, key string, kind models.TaskKind) error {
	wk := watchKey{key, kind}

	p.mu.Lock()
	if _, ok := p.inflight[wk]; ok {
		p.mu.Unlock()
		return ErrAlreadyWatching
	}
	p.inflight[wk] = taskID
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.inflight, wk)
		p.mu.Unlock()
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		snap, err := p.fetcher.FetchTask(ctx, taskID)
		if err != nil {
			p.handler.RecordError(key, kind, fmt.Sprintf("failed to check %s task status", kind))
			return err
		}

		p.handler.UpdateStatus(key, kind, snap.Status)

		if snap.Status.Terminal() {
			if snap.Status == models.TaskStatusFailed {
				message := snap.Error
				if message == "" {
					message = fmt.Sprintf("%s task failed", kind)
				}
				p.handler.RecordError(key, kind, message)
			}
			return p.handler.Reconcile(ctx, key, kind)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
