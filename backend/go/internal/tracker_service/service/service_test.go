package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"JobPilot/backend/go/pkg/models"
	"JobPilot/backend/go/internal/tracker_service/store"
	"JobPilot/backend/go/pkg/logger"
)

// fakeCompanyStore is an in-memory CompanyStore.
type fakeCompanyStore struct {
	mu        sync.Mutex
	companies map[string]*models.Company
}

func newFakeCompanyStore() *fakeCompanyStore {
	return &fakeCompanyStore{companies: map[string]*models.Company{}}
}

func (s *fakeCompanyStore) List(ctx context.Context) ([]models.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Company
	for _, c := range s.companies {
		out = append(out, *c)
	}
	return out, nil
}

func (s *fakeCompanyStore) GetByName(ctx context.Context, name string) (*models.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[name]
	if !ok {
		return nil, store.ErrCompanyNotFound
	}
	copied := *c
	return &copied, nil
}

func (s *fakeCompanyStore) Create(ctx context.Context, company *models.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *company
	s.companies[company.Name] = &copied
	return nil
}

func (s *fakeCompanyStore) Update(ctx context.Context, company *models.Company) error {
	return s.Create(ctx, company)
}

// fakeTaskStore is an in-memory TaskStore.
type fakeTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*models.TaskRecord
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: map[string]*models.TaskRecord{}}
}

func (s *fakeTaskStore) Create(ctx context.Context, task *models.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

func (s *fakeTaskStore) GetByID(ctx context.Context, id string) (*models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	copied := *t
	return &copied, nil
}

func (s *fakeTaskStore) ListRecent(ctx context.Context, limit int) ([]*models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.TaskRecord, 0, len(s.tasks))
	for _, t := range s.tasks {
		copied := *t
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeTaskStore) Update(ctx context.Context, task *models.TaskRecord) error {
	return s.Create(ctx, task)
}

// fakePublisher records published tasks, optionally failing.
type fakePublisher struct {
	mu        sync.Mutex
	published []interface{}
	fail      bool
}

func (p *fakePublisher) Publish(ctx context.Context, key string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, value)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func newTestService(t *testing.T) (*TrackerService, *fakeCompanyStore, *fakeTaskStore, *fakePublisher) {
	t.Helper()
	mr := miniredis.RunT(t)
	guard := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	logger.Init(logrus.ErrorLevel)
	companies := newFakeCompanyStore()
	tasks := newFakeTaskStore()
	publisher := &fakePublisher{}

	svc := NewTrackerService(companies, tasks, publisher, guard, time.Minute, nil, "pipeline_worker", logger.New("test", ""))
	return svc, companies, tasks, publisher
}

func resultMessage(t *testing.T, result map[string]interface{}) kafka.Message {
	t.Helper()
	b, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	return kafka.Message{Value: b}
}

func TestStartResearch_GuardsDuplicates(t *testing.T) {
	svc, companies, tasks, publisher := newTestService(t)
	ctx := context.Background()

	companies.Create(ctx, &models.Company{Name: "Acme"})

	task, err := svc.StartResearch(ctx, "Acme")
	if err != nil {
		t.Fatalf("StartResearch() error = %v", err)
	}
	if task.Status != models.TaskStatusPending {
		t.Errorf("expected pending task, got %q", task.Status)
	}
	if publisher.count() != 1 {
		t.Errorf("expected 1 published task, got %d", publisher.count())
	}
	if stored, _ := tasks.GetByID(ctx, task.ID); stored == nil {
		t.Error("task record not persisted")
	}

	company, _ := companies.GetByName(ctx, "Acme")
	if company.ResearchStatus != models.TaskStatePending {
		t.Errorf("expected company marked pending, got %q", company.ResearchStatus)
	}

	// A second research request for the same company is refused while the
	// first is in flight.
	if _, err := svc.StartResearch(ctx, "Acme"); !errors.Is(err, ErrTaskInFlight) {
		t.Errorf("expected ErrTaskInFlight, got %v", err)
	}

	// An unrelated kind on the same company is not blocked.
	companies.Create(ctx, &models.Company{Name: "Acme2", RecruiterMessage: "hi"})
	if _, err := svc.StartReplyGeneration(ctx, "Acme2"); err != nil {
		t.Errorf("reply generation for another company failed: %v", err)
	}
}

func TestStartResearch_UnknownCompany(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	if _, err := svc.StartResearch(context.Background(), "Nope"); !errors.Is(err, store.ErrCompanyNotFound) {
		t.Errorf("expected ErrCompanyNotFound, got %v", err)
	}
}

func TestStartResearch_PublishFailureReleasesGuard(t *testing.T) {
	svc, companies, _, publisher := newTestService(t)
	ctx := context.Background()

	companies.Create(ctx, &models.Company{Name: "Acme"})
	publisher.fail = true

	if _, err := svc.StartResearch(ctx, "Acme"); err == nil {
		t.Fatal("expected publish error")
	}

	// Guard must be free again so the user can retry.
	publisher.fail = false
	if _, err := svc.StartResearch(ctx, "Acme"); err != nil {
		t.Errorf("retry after publish failure blocked: %v", err)
	}
}

func TestStartReplyGeneration_RequiresRecruiterMessage(t *testing.T) {
	svc, companies, _, _ := newTestService(t)
	ctx := context.Background()

	companies.Create(ctx, &models.Company{Name: "Quiet"})

	if _, err := svc.StartReplyGeneration(ctx, "Quiet"); !errors.Is(err, ErrNoRecruiterMessage) {
		t.Errorf("expected ErrNoRecruiterMessage, got %v", err)
	}
}

func TestApplyResult_ResearchCompleted(t *testing.T) {
	svc, companies, _, _ := newTestService(t)
	ctx := context.Background()

	companies.Create(ctx, &models.Company{Name: "Acme"})
	if _, err := svc.StartResearch(ctx, "Acme"); err != nil {
		t.Fatalf("StartResearch() error = %v", err)
	}

	msg := resultMessage(t, map[string]interface{}{
		"task_id": "t-1",
		"kind":    "research",
		"company": "Acme",
		"status":  "completed",
		"report": map[string]interface{}{
			"company":     "Acme",
			"summary":     "Rocket skates and anvils.",
			"fit_score":   72,
			"fit_verdict": "good",
			"details":     map[string]string{"website": "acme.example"},
		},
	})
	if err := svc.ApplyResult(msg); err != nil {
		t.Fatalf("ApplyResult() error = %v", err)
	}

	company, _ := companies.GetByName(ctx, "Acme")
	if company.ResearchStatus != models.TaskStateCompleted {
		t.Errorf("expected completed, got %q", company.ResearchStatus)
	}
	if company.ResearchedAt == nil {
		t.Error("expected researched_at to be set")
	}
	var details map[string]interface{}
	if err := json.Unmarshal(company.Details, &details); err != nil {
		t.Fatalf("details not valid JSON: %v", err)
	}
	if details["summary"] != "Rocket skates and anvils." {
		t.Errorf("summary not merged into details: %v", details)
	}
	if details["website"] != "acme.example" {
		t.Errorf("report details not merged: %v", details)
	}

	// Terminal result released the guard; research can start again.
	if _, err := svc.StartResearch(ctx, "Acme"); err != nil {
		t.Errorf("research blocked after terminal result: %v", err)
	}
}

func TestApplyResult_ResearchFailedRecordsError(t *testing.T) {
	svc, companies, _, _ := newTestService(t)
	ctx := context.Background()

	companies.Create(ctx, &models.Company{Name: "Acme"})

	msg := resultMessage(t, map[string]interface{}{
		"task_id": "t-2",
		"kind":    "research",
		"company": "Acme",
		"status":  "failed",
		"error":   "website unreachable",
	})
	if err := svc.ApplyResult(msg); err != nil {
		t.Fatalf("ApplyResult() error = %v", err)
	}

	company, _ := companies.GetByName(ctx, "Acme")
	if company.ResearchStatus != models.TaskStateFailed {
		t.Errorf("expected failed, got %q", company.ResearchStatus)
	}
	if company.ResearchError != "website unreachable" {
		t.Errorf("expected error recorded, got %q", company.ResearchError)
	}
}

func TestApplyResult_ResearchForUnknownCompanyCreatesRow(t *testing.T) {
	svc, companies, _, _ := newTestService(t)

	msg := resultMessage(t, map[string]interface{}{
		"task_id": "t-3",
		"kind":    "research",
		"company": "Fresh",
		"status":  "completed",
		"report": map[string]interface{}{
			"company": "Fresh",
			"summary": "Brand new.",
		},
	})
	if err := svc.ApplyResult(msg); err != nil {
		t.Fatalf("ApplyResult() error = %v", err)
	}

	if _, err := companies.GetByName(context.Background(), "Fresh"); err != nil {
		t.Errorf("expected company row to be created, got %v", err)
	}
}

func TestApplyResult_MessageCompletedStoresDraft(t *testing.T) {
	svc, companies, _, _ := newTestService(t)
	ctx := context.Background()

	companies.Create(ctx, &models.Company{Name: "Acme", RecruiterMessage: "hi"})

	msg := resultMessage(t, map[string]interface{}{
		"task_id": "t-4",
		"kind":    "message",
		"company": "Acme",
		"status":  "completed",
		"report":  "Thanks for reaching out!",
	})
	if err := svc.ApplyResult(msg); err != nil {
		t.Fatalf("ApplyResult() error = %v", err)
	}

	company, _ := companies.GetByName(ctx, "Acme")
	if company.ReplyMessage != "Thanks for reaching out!" {
		t.Errorf("expected reply draft stored, got %q", company.ReplyMessage)
	}
	if company.MessageStatus != models.TaskStateCompleted {
		t.Errorf("expected completed, got %q", company.MessageStatus)
	}
}

func TestApplyResult_ScanCreatesAndFillsCompanies(t *testing.T) {
	svc, companies, _, _ := newTestService(t)
	ctx := context.Background()

	companies.Create(ctx, &models.Company{Name: "Known"})

	msg := resultMessage(t, map[string]interface{}{
		"task_id": "t-5",
		"kind":    "scan_emails",
		"status":  "completed",
		"report": map[string]interface{}{
			"scanned": 4,
			"companies": []map[string]interface{}{
				{
					"name":              "Newco",
					"recruiter_message": "We are hiring!",
					"recruiter_email":   "jo@newco.example",
					"gmail_id":          "g1",
					"gmail_thread_id":   "th1",
				},
				{
					"name":              "Known",
					"recruiter_message": "Second touch",
				},
			},
		},
	})
	if err := svc.ApplyResult(msg); err != nil {
		t.Fatalf("ApplyResult() error = %v", err)
	}

	newco, err := companies.GetByName(ctx, "Newco")
	if err != nil {
		t.Fatalf("expected Newco to be created, got %v", err)
	}
	if newco.RecruiterMessage != "We are hiring!" {
		t.Errorf("recruiter message not stored, got %q", newco.RecruiterMessage)
	}
	var details map[string]interface{}
	json.Unmarshal(newco.Details, &details)
	if details["recruiter_email"] != "jo@newco.example" {
		t.Errorf("recruiter email not stored in details: %v", details)
	}

	// Existing company with no message gets the scanned one.
	known, _ := companies.GetByName(ctx, "Known")
	if known.RecruiterMessage != "Second touch" {
		t.Errorf("expected scanned message filled in, got %q", known.RecruiterMessage)
	}
}

func TestScanRecruiterEmails_DefaultsAndGuard(t *testing.T) {
	svc, _, tasks, _ := newTestService(t)
	ctx := context.Background()

	task, err := svc.ScanRecruiterEmails(ctx, models.ScanRequest{})
	if err != nil {
		t.Fatalf("ScanRecruiterEmails() error = %v", err)
	}

	stored, _ := tasks.GetByID(ctx, task.ID)
	payload, ok := stored.Payload.(models.ScanRequest)
	if !ok {
		t.Fatalf("unexpected payload type %T", stored.Payload)
	}
	if payload.MaxMessages != 10 {
		t.Errorf("expected default max_messages 10, got %d", payload.MaxMessages)
	}

	// The scan is global; a second one is refused while the first runs.
	if _, err := svc.ScanRecruiterEmails(ctx, models.ScanRequest{}); !errors.Is(err, ErrTaskInFlight) {
		t.Errorf("expected ErrTaskInFlight, got %v", err)
	}
}

func TestSendAndArchive(t *testing.T) {
	svc, companies, _, publisher := newTestService(t)
	ctx := context.Background()

	companies.Create(ctx, &models.Company{Name: "Acme", RecruiterMessage: "hi", ReplyMessage: "hello back"})

	company, err := svc.SendAndArchive(ctx, "Acme")
	if err != nil {
		t.Fatalf("SendAndArchive() error = %v", err)
	}
	if !company.Archived || company.SentAt == nil {
		t.Error("expected company archived with sent_at set")
	}
	if publisher.count() != 1 {
		t.Errorf("expected send task published, got %d", publisher.count())
	}

	stored, _ := companies.GetByName(ctx, "Acme")
	if !stored.Archived {
		t.Error("archived flag not persisted")
	}
}

func TestSendAndArchive_RequiresDraft(t *testing.T) {
	svc, companies, _, _ := newTestService(t)
	ctx := context.Background()

	companies.Create(ctx, &models.Company{Name: "Acme", RecruiterMessage: "hi"})

	if _, err := svc.SendAndArchive(ctx, "Acme"); err == nil {
		t.Fatal("expected error when no reply draft exists")
	}
}

func TestImportCompanies_SkipsExisting(t *testing.T) {
	svc, companies, _, _ := newTestService(t)
	ctx := context.Background()

	companies.Create(ctx, &models.Company{Name: "Acme"})

	imported, skipped, err := svc.ImportCompanies(ctx, []models.Company{
		{Name: "Acme"},
		{Name: "Globex"},
		{Name: "Initech"},
	})
	if err != nil {
		t.Fatalf("ImportCompanies() error = %v", err)
	}
	if imported != 2 || skipped != 1 {
		t.Errorf("expected 2 imported / 1 skipped, got %d / %d", imported, skipped)
	}
}

func TestListTasks_NewestFirstWithLimit(t *testing.T) {
	svc, _, tasks, _ := newTestService(t)
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"t-old", "t-mid", "t-new"} {
		tasks.Create(ctx, &models.TaskRecord{
			ID:          id,
			Kind:        models.TaskKindResearch,
			Company:     "Acme",
			Status:      models.TaskStatusCompleted,
			SubmittedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	recent, err := svc.ListTasks(ctx, 2)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(recent))
	}
	if recent[0].ID != "t-new" || recent[1].ID != "t-mid" {
		t.Errorf("expected newest first, got %s then %s", recent[0].ID, recent[1].ID)
	}

	// A zero limit falls back to the default instead of returning nothing.
	all, err := svc.ListTasks(ctx, 0)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected all 3 tasks under the default limit, got %d", len(all))
	}
}
