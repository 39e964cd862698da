package service

import (
	"JobPilot/backend/go/internal/discovery/etcd"
	"JobPilot/backend/go/pkg/models"
	"JobPilot/backend/go/internal/tracker_service/store"
	"JobPilot/backend/go/pkg/logger"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"gorm.io/datatypes"
)

var (
	// ErrTaskInFlight is returned when a task of the same kind is already
	// running for the company. The Redis guard enforces this server-side.
	ErrTaskInFlight = errors.New("a task of this kind is already in flight for the company")
	// ErrNoRecruiterMessage is returned when reply generation is requested for
	// a company that has no recruiter message on record.
	ErrNoRecruiterMessage = errors.New("company has no recruiter message to reply to")
	// ErrCompanyExists is returned when creating a company whose name is taken.
	ErrCompanyExists = errors.New("company already exists")
)

// TaskPublisher defines the interface for publishing tasks to the worker.
type TaskPublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}

// TrackerService provides the core business logic of the recruiting-pipeline
// tracker: company CRUD, task submission, and server-side reconciliation of
// worker results.
type TrackerService struct {
	companies store.CompanyStore
	tasks     store.TaskStore
	publisher TaskPublisher
	guard     *redis.Client
	guardTTL  time.Duration
	discovery *etcd.ServiceDiscovery
	workerSvc string
	logger    *logger.Logger
}

// NewTrackerService creates a new TrackerService. discovery may be nil when no
// etcd cluster is configured; Workers then reports no instances.
func NewTrackerService(companies store.CompanyStore, tasks store.TaskStore, publisher TaskPublisher,
	guard *redis.Client, guardTTL time.Duration, discovery *etcd.ServiceDiscovery, workerServiceName string,
	logger *logger.Logger) *TrackerService {
	return &TrackerService{
		companies: companies,
		tasks:     tasks,
		publisher: publisher,
		guard:     guard,
		guardTTL:  guardTTL,
		discovery: discovery,
		workerSvc: workerServiceName,
		logger:    logger,
	}
}

// ListCompanies returns all tracked companies ordered by name.
func (s *TrackerService) ListCompanies(ctx context.Context) ([]models.Company, error) {
	return s.companies.List(ctx)
}

// GetCompany returns a single company by name.
func (s *TrackerService) GetCompany(ctx context.Context, name string) (*models.Company, error) {
	return s.companies.GetByName(ctx, name)
}

// CreateCompany adds a new company to the pipeline.
func (s *TrackerService) CreateCompany(ctx context.Context, company *models.Company) error {
	if _, err := s.companies.GetByName(ctx, company.Name); err == nil {
		return ErrCompanyExists
	} else if !errors.Is(err, store.ErrCompanyNotFound) {
		return err
	}
	return s.companies.Create(ctx, company)
}

func guardKey(kind models.TaskKind, company string) string {
	return fmt.Sprintf("jobpilot:inflight:%s:%s", kind, company)
}

// acquireGuard takes the per-(company, kind) Redis lock that keeps duplicate
// tasks out of the pipeline while one is in flight.
func (s *TrackerService) acquireGuard(ctx context.Context, kind models.TaskKind, company string) error {
	ok, err := s.guard.SetNX(ctx, guardKey(kind, company), time.Now().Format(time.RFC3339), s.guardTTL).Result()
	if err != nil {
		return fmt.Errorf("task guard: %w", err)
	}
	if !ok {
		return ErrTaskInFlight
	}
	return nil
}

// releaseGuard drops the per-(company, kind) lock once a terminal result arrived.
func (s *TrackerService) releaseGuard(ctx context.Context, kind models.TaskKind, company string) {
	if err := s.guard.Del(ctx, guardKey(kind, company)).Err(); err != nil {
		s.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to release task guard")
	}
}

// submit persists a pending TaskRecord and hands it to the worker via Kafka.
func (s *TrackerService) submit(ctx context.Context, kind models.TaskKind, company string, payload interface{}) (*models.TaskRecord, error) {
	task := &models.TaskRecord{
		ID:          uuid.New().String(),
		Kind:        kind,
		Company:     company,
		Status:      models.TaskStatusPending,
		Payload:     payload,
		SubmittedAt: time.Now(),
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		s.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to create task in store")
		return nil, err
	}

	key := company
	if key == "" {
		key = string(kind)
	}
	if err := s.publisher.Publish(ctx, key, task); err != nil {
		s.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to publish task to Kafka")
		task.Status = models.TaskStatusFailed
		task.Error = "failed to publish task to the work queue"
		task.CompletedAt = time.Now()
		_ = s.tasks.Update(ctx, task)
		return nil, err
	}

	return task, nil
}

// StartResearch submits a research task for the named company.
func (s *TrackerService) StartResearch(ctx context.Context, name string) (*models.TaskRecord, error) {
	company, err := s.companies.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if err := s.acquireGuard(ctx, models.TaskKindResearch, name); err != nil {
		return nil, err
	}

	payload := models.ResearchPayload{Company: name, Website: detailsField(company.Details, "website")}
	task, err := s.submit(ctx, models.TaskKindResearch, name, payload)
	if err != nil {
		s.releaseGuard(ctx, models.TaskKindResearch, name)
		return nil, err
	}

	company.ResearchStatus = models.TaskStatePending
	company.ResearchError = ""
	if err := s.companies.Update(ctx, company); err != nil {
		s.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to mark company as researching")
	}
	return task, nil
}

// StartReplyGeneration submits a reply-generation task for the named company.
func (s *TrackerService) StartReplyGeneration(ctx context.Context, name string) (*models.TaskRecord, error) {
	company, err := s.companies.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if company.RecruiterMessage == "" {
		return nil, ErrNoRecruiterMessage
	}

	if err := s.acquireGuard(ctx, models.TaskKindMessage, name); err != nil {
		return nil, err
	}

	payload := models.MessagePayload{
		Company:          name,
		RecruiterMessage: company.RecruiterMessage,
		Details:          string(company.Details),
	}
	task, err := s.submit(ctx, models.TaskKindMessage, name, payload)
	if err != nil {
		s.releaseGuard(ctx, models.TaskKindMessage, name)
		return nil, err
	}

	company.MessageStatus = models.TaskStatePending
	company.MessageError = ""
	if err := s.companies.Update(ctx, company); err != nil {
		s.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to mark company as generating")
	}
	return task, nil
}

// UpdateReplyMessage overwrites the reply draft for the named company.
func (s *TrackerService) UpdateReplyMessage(ctx context.Context, name, message string) (*models.Company, error) {
	company, err := s.companies.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	company.ReplyMessage = message
	if err := s.companies.Update(ctx, company); err != nil {
		return nil, err
	}
	return company, nil
}

// SendAndArchive marks the company's reply as sent and the company as archived,
// then hands the actual Gmail send to the worker as a fire-and-forget task.
func (s *TrackerService) SendAndArchive(ctx context.Context, name string) (*models.Company, error) {
	company, err := s.companies.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if company.ReplyMessage == "" {
		return nil, ErrNoRecruiterMessage
	}

	now := time.Now()
	company.SentAt = &now
	company.Archived = true
	if err := s.companies.Update(ctx, company); err != nil {
		return nil, err
	}

	payload := models.MessagePayload{
		Company:        name,
		ReplyMessage:   company.ReplyMessage,
		RecruiterEmail: detailsField(company.Details, "recruiter_email"),
		GmailThreadID:  detailsField(company.Details, "gmail_thread_id"),
	}
	if _, err := s.submit(ctx, models.TaskKindSendAndArchive, name, payload); err != nil {
		// The row is already marked sent; the send task failure is surfaced in logs only.
		s.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to submit send_and_archive task")
	}
	return company, nil
}

// ScanRecruiterEmails submits the global inbox-scan task.
func (s *TrackerService) ScanRecruiterEmails(ctx context.Context, req models.ScanRequest) (*models.TaskRecord, error) {
	if req.MaxMessages <= 0 {
		req.MaxMessages = 10
	}
	if err := s.acquireGuard(ctx, models.TaskKindScanEmails, ""); err != nil {
		return nil, err
	}
	task, err := s.submit(ctx, models.TaskKindScanEmails, "", req)
	if err != nil {
		s.releaseGuard(ctx, models.TaskKindScanEmails, "")
		return nil, err
	}
	return task, nil
}

// GetTask returns a task record by id, or (nil, nil) when unknown.
func (s *TrackerService) GetTask(ctx context.Context, id string) (*models.TaskRecord, error) {
	return s.tasks.GetByID(ctx, id)
}

// ListTasks returns the most recently submitted tasks, newest first.
// Limits outside (0, 100] fall back to 20.
func (s *TrackerService) ListTasks(ctx context.Context, limit int) ([]*models.TaskRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.tasks.ListRecent(ctx, limit)
}

// Workers lists the pipeline worker instances currently registered in etcd.
func (s *TrackerService) Workers() ([]string, error) {
	if s.discovery == nil {
		return nil, nil
	}
	return s.discovery.Discover(s.workerSvc)
}

// ImportCompanies creates the given companies, skipping names that already exist.
func (s *TrackerService) ImportCompanies(ctx context.Context, companies []models.Company) (imported, skipped int, err error) {
	for i := range companies {
		c := companies[i]
		createErr := s.CreateCompany(ctx, &c)
		switch {
		case createErr == nil:
			imported++
		case errors.Is(createErr, ErrCompanyExists):
			skipped++
		default:
			return imported, skipped, createErr
		}
	}
	return imported, skipped, nil
}

// taskResult is the wire form of a worker result; Report stays raw until the
// kind is known.
type taskResult struct {
	TaskID  string            `json:"task_id"`
	Kind    models.TaskKind   `json:"kind"`
	Company string            `json:"company,omitempty"`
	Status  models.TaskStatus `json:"status"`
	Error   string            `json:"error,omitempty"`
	Report  json.RawMessage   `json:"report,omitempty"`
}

// ApplyResult processes a task result received from Kafka and writes the
// authoritative outcome back onto the affected company rows.
func (s *TrackerService) ApplyResult(msg kafka.Message) error {
	var result taskResult
	if err := json.Unmarshal(msg.Value, &result); err != nil {
		s.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to unmarshal task result from Kafka")
		return err
	}

	ctx := context.Background()
	switch result.Kind {
	case models.TaskKindResearch:
		defer s.releaseGuard(ctx, models.TaskKindResearch, result.Company)
		return s.applyResearchResult(ctx, result)
	case models.TaskKindMessage:
		defer s.releaseGuard(ctx, models.TaskKindMessage, result.Company)
		return s.applyMessageResult(ctx, result)
	case models.TaskKindScanEmails:
		defer s.releaseGuard(ctx, models.TaskKindScanEmails, "")
		return s.applyScanResult(ctx, result)
	case models.TaskKindSendAndArchive:
		if result.Status == models.TaskStatusFailed {
			s.logger.WithPayload(map[string]interface{}{"company": result.Company, "error": result.Error}).
				Warn("send_and_archive task failed")
		}
		return nil
	default:
		s.logger.WithPayload(map[string]interface{}{"kind": string(result.Kind)}).Warn("Received result of unknown task kind")
		return nil
	}
}

func (s *TrackerService) applyResearchResult(ctx context.Context, result taskResult) error {
	company, err := s.companies.GetByName(ctx, result.Company)
	if errors.Is(err, store.ErrCompanyNotFound) {
		// Research spawned by an inbox scan can finish before the scan result
		// that creates the row is consumed. Create the row here.
		company = &models.Company{Name: result.Company}
		if err := s.companies.Create(ctx, company); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if result.Status == models.TaskStatusFailed {
		company.ResearchStatus = models.TaskStateFailed
		company.ResearchError = result.Error
		return s.companies.Update(ctx, company)
	}

	var report models.ResearchReport
	if err := json.Unmarshal(result.Report, &report); err != nil {
		return fmt.Errorf("decode research report: %w", err)
	}

	now := time.Now()
	company.ResearchStatus = models.TaskStateCompleted
	company.ResearchError = ""
	company.ResearchedAt = &now
	company.Details = mergeDetails(company.Details, report)
	return s.companies.Update(ctx, company)
}

func (s *TrackerService) applyMessageResult(ctx context.Context, result taskResult) error {
	company, err := s.companies.GetByName(ctx, result.Company)
	if err != nil {
		return err
	}

	if result.Status == models.TaskStatusFailed {
		company.MessageStatus = models.TaskStateFailed
		company.MessageError = result.Error
		return s.companies.Update(ctx, company)
	}

	var reply string
	if err := json.Unmarshal(result.Report, &reply); err != nil {
		return fmt.Errorf("decode reply draft: %w", err)
	}

	company.MessageStatus = models.TaskStateCompleted
	company.MessageError = ""
	company.ReplyMessage = reply
	return s.companies.Update(ctx, company)
}

func (s *TrackerService) applyScanResult(ctx context.Context, result taskResult) error {
	if result.Status == models.TaskStatusFailed {
		s.logger.WithPayload(map[string]interface{}{"error": result.Error}).Warn("Recruiter email scan failed")
		return nil
	}

	var report models.ScanReport
	if err := json.Unmarshal(result.Report, &report); err != nil {
		return fmt.Errorf("decode scan report: %w", err)
	}

	for _, found := range report.Companies {
		company, err := s.companies.GetByName(ctx, found.Name)
		if errors.Is(err, store.ErrCompanyNotFound) {
			fresh := models.Company{
				Name:             found.Name,
				RecruiterMessage: found.RecruiterMessage,
				Details:          scanDetails(found),
			}
			if err := s.companies.Create(ctx, &fresh); err != nil {
				s.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{"company": found.Name}).
					Error("Failed to create company from scan result")
			}
			continue
		}
		if err != nil {
			return err
		}
		// Existing company: only fill in a recruiter message we did not have yet.
		if company.RecruiterMessage == "" && found.RecruiterMessage != "" {
			company.RecruiterMessage = found.RecruiterMessage
			if err := s.companies.Update(ctx, company); err != nil {
				return err
			}
		}
	}
	return nil
}

// detailsField reads a single string field out of the free-form details JSON.
func detailsField(details datatypes.JSON, field string) string {
	if len(details) == 0 {
		return ""
	}
	var m map[string]interface{}
	if err := json.Unmarshal(details, &m); err != nil {
		return ""
	}
	if v, ok := m[field].(string); ok {
		return v
	}
	return ""
}

// mergeDetails folds a research report into the existing details map without
// dropping keys the report does not mention.
func mergeDetails(existing datatypes.JSON, report models.ResearchReport) datatypes.JSON {
	m := map[string]interface{}{}
	if len(existing) > 0 {
		_ = json.Unmarshal(existing, &m)
	}
	for k, v := range report.Details {
		m[k] = v
	}
	m["summary"] = report.Summary
	m["fit_score"] = report.FitScore
	m["fit_verdict"] = report.FitVerdict
	merged, err := json.Marshal(m)
	if err != nil {
		return existing
	}
	return datatypes.JSON(merged)
}

// scanDetails seeds a details map for a company discovered during an inbox scan.
func scanDetails(found models.DiscoveredCompany) datatypes.JSON {
	m := map[string]interface{}{
		"gmail_id":        found.GmailID,
		"gmail_thread_id": found.GmailThreadID,
	}
	if found.RecruiterEmail != "" {
		m["recruiter_email"] = found.RecruiterEmail
	}
	if found.ObjectKey != "" {
		m["email_object_key"] = found.ObjectKey
	}
	b, _ := json.Marshal(m)
	return datatypes.JSON(b)
}
