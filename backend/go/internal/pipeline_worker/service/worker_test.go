package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"JobPilot/backend/go/pkg/models"
	"JobPilot/backend/go/internal/pipeline_worker/mailbox"
	"JobPilot/backend/go/pkg/logger"
)

// fakeTaskUpdater records status transitions per task id.
type fakeTaskUpdater struct {
	mu          sync.Mutex
	transitions map[string][]string
	created     []*models.TaskRecord
}

func newFakeTaskUpdater() *fakeTaskUpdater {
	return &fakeTaskUpdater{transitions: map[string][]string{}}
}

func (f *fakeTaskUpdater) record(id, state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions[id] = append(f.transitions[id], state)
}

func (f *fakeTaskUpdater) Create(ctx context.Context, task *models.TaskRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, task)
	return nil
}

func (f *fakeTaskUpdater) MarkRunning(ctx context.Context, taskID string) error {
	f.record(taskID, "running")
	return nil
}

func (f *fakeTaskUpdater) MarkCompleted(ctx context.Context, taskID string, result interface{}) error {
	f.record(taskID, "completed")
	return nil
}

func (f *fakeTaskUpdater) MarkFailed(ctx context.Context, taskID string, errMsg string) error {
	f.record(taskID, "failed:"+errMsg)
	return nil
}

// fakeResultPublisher collects everything published on a topic.
type fakeResultPublisher struct {
	mu        sync.Mutex
	published []interface{}
}

func (p *fakeResultPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, value)
	return nil
}

func (p *fakeResultPublisher) Close() error { return nil }

func (p *fakeResultPublisher) last(t *testing.T) models.TaskResult {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.published) == 0 {
		t.Fatal("no result published")
	}
	result, ok := p.published[len(p.published)-1].(models.TaskResult)
	if !ok {
		t.Fatalf("unexpected published type %T", p.published[len(p.published)-1])
	}
	return result
}

// sentMail remembers Send and Archive calls.
type sentMail struct {
	to       string
	subject  string
	body     string
	threadID string
	archived []string
	sendErr  error
}

func (m *sentMail) ListInbox(ctx context.Context, query string, max int) ([]mailbox.Message, error) {
	return nil, nil
}

func (m *sentMail) Send(ctx context.Context, to, subject, body, threadID string) error {
	m.to, m.subject, m.body, m.threadID = to, subject, body, threadID
	return m.sendErr
}

func (m *sentMail) Archive(ctx context.Context, threadID string) error {
	m.archived = append(m.archived, threadID)
	return nil
}

func taskMessage(t *testing.T, envelope map[string]interface{}) kafka.Message {
	t.Helper()
	b, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}
	return kafka.Message{Value: b}
}

func newTestWorker(mb mailbox.Mailbox) (*Worker, *fakeTaskUpdater, *fakeResultPublisher) {
	logger.Init(logrus.ErrorLevel)
	tasks := newFakeTaskUpdater()
	results := &fakeResultPublisher{}
	taskQueue := &fakeResultPublisher{}
	w := NewWorker(tasks, results, taskQueue, nil, nil, nil, mb, logger.New("test", ""))
	return w, tasks, results
}

func TestHandleTask_SendAndArchive(t *testing.T) {
	mb := &sentMail{}
	w, tasks, results := newTestWorker(mb)

	msg := taskMessage(t, map[string]interface{}{
		"task_id": "t-1",
		"kind":    "send_and_archive",
		"company": "Acme",
		"payload": map[string]string{
			"company":         "Acme",
			"reply_message":   "Sounds interesting!",
			"recruiter_email": "jo@acme.example",
			"gmail_thread_id": "th-9",
		},
	})
	if err := w.HandleTask(context.Background(), msg); err != nil {
		t.Fatalf("HandleTask() error = %v", err)
	}

	if mb.to != "jo@acme.example" || mb.body != "Sounds interesting!" || mb.threadID != "th-9" {
		t.Errorf("unexpected send: %+v", mb)
	}
	if len(mb.archived) != 1 || mb.archived[0] != "th-9" {
		t.Errorf("expected thread archived, got %v", mb.archived)
	}

	got := tasks.transitions["t-1"]
	if len(got) != 2 || got[0] != "running" || got[1] != "completed" {
		t.Errorf("unexpected transitions %v", got)
	}

	result := results.last(t)
	if result.Status != models.TaskStatusCompleted || result.TaskID != "t-1" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestHandleTask_SendWithoutRecipientFails(t *testing.T) {
	mb := &sentMail{}
	w, tasks, results := newTestWorker(mb)

	msg := taskMessage(t, map[string]interface{}{
		"task_id": "t-2",
		"kind":    "send_and_archive",
		"company": "Acme",
		"payload": map[string]string{
			"company":       "Acme",
			"reply_message": "Sounds interesting!",
		},
	})
	if err := w.HandleTask(context.Background(), msg); err != nil {
		t.Fatalf("HandleTask() error = %v", err)
	}

	got := tasks.transitions["t-2"]
	if len(got) != 2 || got[0] != "running" {
		t.Fatalf("unexpected transitions %v", got)
	}
	if got[1] == "completed" {
		t.Error("expected task marked failed, not completed")
	}

	result := results.last(t)
	if result.Status != models.TaskStatusFailed {
		t.Errorf("expected failed result, got %q", result.Status)
	}
	if result.Error == "" {
		t.Error("expected error message in result")
	}
}

func TestHandleTask_SendErrorSurfacesAsFailedResult(t *testing.T) {
	mb := &sentMail{sendErr: errors.New("gmail: send rejected")}
	w, _, results := newTestWorker(mb)

	msg := taskMessage(t, map[string]interface{}{
		"task_id": "t-3",
		"kind":    "send_and_archive",
		"company": "Acme",
		"payload": map[string]string{
			"company":         "Acme",
			"reply_message":   "hello",
			"recruiter_email": "jo@acme.example",
		},
	})
	if err := w.HandleTask(context.Background(), msg); err != nil {
		t.Fatalf("HandleTask() error = %v", err)
	}

	result := results.last(t)
	if result.Status != models.TaskStatusFailed || result.Error != "gmail: send rejected" {
		t.Errorf("unexpected result %+v", result)
	}
	if len(mb.archived) != 0 {
		t.Error("thread must not be archived when the send failed")
	}
}

func TestHandleTask_UnknownKindFails(t *testing.T) {
	w, _, results := newTestWorker(&sentMail{})

	msg := taskMessage(t, map[string]interface{}{
		"task_id": "t-4",
		"kind":    "mystery",
	})
	if err := w.HandleTask(context.Background(), msg); err != nil {
		t.Fatalf("HandleTask() error = %v", err)
	}

	result := results.last(t)
	if result.Status != models.TaskStatusFailed {
		t.Errorf("expected failed result for unknown kind, got %q", result.Status)
	}
}
