package service

import (
	"JobPilot/backend/go/pkg/models"
	"JobPilot/backend/go/internal/pipeline_worker/mailbox"
	"JobPilot/backend/go/internal/pipeline_worker/research"
	"JobPilot/backend/go/internal/pipeline_worker/store"
	"JobPilot/backend/go/pkg/logger"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Publisher is the worker's view of a Kafka topic writer.
type Publisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}

// Worker executes pipeline tasks consumed from Kafka: company research, reply
// generation, inbox scans, and the fire-and-forget reply send.
type Worker struct {
	tasks       store.TaskUpdater
	results     Publisher
	taskQueue   Publisher // tasks topic, for research spawned by a scan
	researcher  *research.Researcher
	replyWriter *research.ReplyWriter
	scanner     *mailbox.Scanner
	mailbox     mailbox.Mailbox
	logger      *logger.Logger
}

// NewWorker creates a new Worker.
func NewWorker(tasks store.TaskUpdater, results, taskQueue Publisher, researcher *research.Researcher,
	replyWriter *research.ReplyWriter, scanner *mailbox.Scanner, mb mailbox.Mailbox, logger *logger.Logger) *Worker {
	return &Worker{
		tasks:       tasks,
		results:     results,
		taskQueue:   taskQueue,
		researcher:  researcher,
		replyWriter: replyWriter,
		scanner:     scanner,
		mailbox:     mb,
		logger:      logger,
	}
}

// taskEnvelope is the wire form of a task record as consumed from Kafka; the
// payload stays raw until the kind is known.
type taskEnvelope struct {
	ID         string          `json:"task_id"`
	Kind       models.TaskKind `json:"kind"`
	Company    string          `json:"company,omitempty"`
	RawPayload json.RawMessage `json:"payload,omitempty"`
}

// HandleTask processes one task message end to end: mark running, execute,
// persist the outcome, publish the result.
func (w *Worker) HandleTask(ctx context.Context, msg kafka.Message) error {
	var task taskEnvelope
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		w.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to unmarshal task from Kafka")
		return err
	}

	if err := w.tasks.MarkRunning(ctx, task.ID); err != nil {
		w.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{"taskID": task.ID}).
			Warn("Failed to mark task as running")
	}

	report, err := w.execute(ctx, task)
	if err != nil {
		w.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
			"taskID": task.ID,
			"kind":   string(task.Kind),
		}).Error("Task execution failed")
		if updateErr := w.tasks.MarkFailed(ctx, task.ID, err.Error()); updateErr != nil {
			w.logger.WithError(models.ErrorInfo{Message: updateErr.Error()}).Error("Failed to mark task as failed")
		}
		return w.publishResult(ctx, task, models.TaskStatusFailed, err.Error(), nil)
	}

	if updateErr := w.tasks.MarkCompleted(ctx, task.ID, report); updateErr != nil {
		w.logger.WithError(models.ErrorInfo{Message: updateErr.Error()}).Error("Failed to mark task as completed")
	}
	return w.publishResult(ctx, task, models.TaskStatusCompleted, "", report)
}

// execute dispatches on the task kind and returns the result payload.
func (w *Worker) execute(ctx context.Context, task taskEnvelope) (interface{}, error) {
	switch task.Kind {
	case models.TaskKindResearch:
		var payload models.ResearchPayload
		if err := json.Unmarshal(task.RawPayload, &payload); err != nil {
			return nil, fmt.Errorf("decode research payload: %w", err)
		}
		return w.researcher.Research(ctx, payload)

	case models.TaskKindMessage:
		var payload models.MessagePayload
		if err := json.Unmarshal(task.RawPayload, &payload); err != nil {
			return nil, fmt.Errorf("decode message payload: %w", err)
		}
		return w.replyWriter.Draft(ctx, payload)

	case models.TaskKindScanEmails:
		if w.scanner == nil {
			return nil, fmt.Errorf("this worker has no gmail mailbox configured")
		}
		var payload models.ScanRequest
		if err := json.Unmarshal(task.RawPayload, &payload); err != nil {
			return nil, fmt.Errorf("decode scan payload: %w", err)
		}
		report, err := w.scanner.Scan(ctx, payload)
		if err != nil {
			return nil, err
		}
		if payload.DoResearch {
			report.ResearchTaskIDs = w.spawnResearch(ctx, report.Companies)
		}
		return report, nil

	case models.TaskKindSendAndArchive:
		var payload models.MessagePayload
		if err := json.Unmarshal(task.RawPayload, &payload); err != nil {
			return nil, fmt.Errorf("decode send payload: %w", err)
		}
		return nil, w.sendAndArchive(ctx, payload)

	default:
		return nil, fmt.Errorf("unknown task kind %q", task.Kind)
	}
}

// spawnResearch creates and publishes a research task for every company an
// inbox scan discovered. Failures are logged, not fatal to the scan.
func (w *Worker) spawnResearch(ctx context.Context, companies []models.DiscoveredCompany) []string {
	var ids []string
	for _, found := range companies {
		task := &models.TaskRecord{
			ID:          uuid.New().String(),
			Kind:        models.TaskKindResearch,
			Company:     found.Name,
			Status:      models.TaskStatusPending,
			Payload:     models.ResearchPayload{Company: found.Name},
			SubmittedAt: time.Now(),
		}
		if err := w.tasks.Create(ctx, task); err != nil {
			w.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{"company": found.Name}).
				Error("Failed to create follow-up research task")
			continue
		}
		if err := w.taskQueue.Publish(ctx, found.Name, task); err != nil {
			w.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{"company": found.Name}).
				Error("Failed to publish follow-up research task")
			continue
		}
		ids = append(ids, task.ID)
	}
	return ids
}

// sendAndArchive sends the drafted reply over Gmail and archives the thread.
func (w *Worker) sendAndArchive(ctx context.Context, payload models.MessagePayload) error {
	if w.mailbox == nil {
		return fmt.Errorf("this worker has no gmail mailbox configured")
	}
	if payload.RecruiterEmail == "" {
		return fmt.Errorf("no recruiter email on record for %s", payload.Company)
	}
	subject := fmt.Sprintf("Re: %s", payload.Company)
	if err := w.mailbox.Send(ctx, payload.RecruiterEmail, subject, payload.ReplyMessage, payload.GmailThreadID); err != nil {
		return err
	}
	if payload.GmailThreadID != "" {
		if err := w.mailbox.Archive(ctx, payload.GmailThreadID); err != nil {
			return err
		}
	}
	return nil
}

// publishResult reports the task outcome on the results topic so the tracker
// service can reconcile company rows.
func (w *Worker) publishResult(ctx context.Context, task taskEnvelope, status models.TaskStatus, errMsg string, report interface{}) error {
	result := models.TaskResult{
		TaskID:  task.ID,
		Kind:    task.Kind,
		Company: task.Company,
		Status:  status,
		Error:   errMsg,
		Report:  report,
	}
	key := task.Company
	if key == "" {
		key = string(task.Kind)
	}
	return w.results.Publish(ctx, key, result)
}
