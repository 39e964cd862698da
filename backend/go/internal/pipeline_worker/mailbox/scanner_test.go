package mailbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"JobPilot/backend/go/pkg/models"
	"JobPilot/backend/go/pkg/logger"
)

// fakeMailbox serves a fixed inbox.
type fakeMailbox struct {
	messages []Message
	listErr  error
	query    string
	max      int
}

func (m *fakeMailbox) ListInbox(ctx context.Context, query string, max int) ([]Message, error) {
	m.query = query
	m.max = max
	return m.messages, m.listErr
}

func (m *fakeMailbox) Send(ctx context.Context, to, subject, body, threadID string) error {
	return nil
}

func (m *fakeMailbox) Archive(ctx context.Context, threadID string) error {
	return nil
}

// fakeLLM answers each prompt with the next scripted string.
type fakeLLM struct {
	answers []string
	calls   int
}

func (f *fakeLLM) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	if f.calls >= len(f.answers) {
		return "", errors.New("no scripted answer left")
	}
	answer := f.answers[f.calls]
	f.calls++
	return answer, nil
}

// fakeArchiver stores nothing and returns deterministic keys.
type fakeArchiver struct {
	archived []string
}

func (a *fakeArchiver) ArchiveMessage(ctx context.Context, msg Message) (string, error) {
	a.archived = append(a.archived, msg.ID)
	return fmt.Sprintf("emails/%s.json", msg.ID), nil
}

func testLogger() *logger.Logger {
	logger.Init(logrus.ErrorLevel)
	return logger.New("test", "")
}

func TestScan_ExtractsRecruiterEmails(t *testing.T) {
	mb := &fakeMailbox{messages: []Message{
		{ID: "m1", ThreadID: "t1", From: "Jo Recruiter <jo@acme.example>", Subject: "Opportunity", Body: "We are hiring!"},
		{ID: "m2", ThreadID: "t2", From: "news@letter.example", Subject: "Weekly digest", Body: "Read all about it"},
	}}
	model := &fakeLLM{answers: []string{
		`{"is_recruiter": true, "company": "Acme", "message": "We are hiring!"}`,
		`{"is_recruiter": false, "company": "", "message": ""}`,
	}}
	archiver := &fakeArchiver{}

	scanner := NewScanner(mb, model, archiver, "", testLogger())
	report, err := scanner.Scan(context.Background(), models.ScanRequest{MaxMessages: 5})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if mb.query != "in:inbox" {
		t.Errorf("expected default query in:inbox, got %q", mb.query)
	}
	if mb.max != 5 {
		t.Errorf("expected max 5 passed through, got %d", mb.max)
	}
	if report.Scanned != 2 {
		t.Errorf("expected 2 scanned, got %d", report.Scanned)
	}
	if len(report.Companies) != 1 {
		t.Fatalf("expected 1 discovered company, got %d", len(report.Companies))
	}

	found := report.Companies[0]
	if found.Name != "Acme" {
		t.Errorf("expected Acme, got %q", found.Name)
	}
	if found.RecruiterEmail != "jo@acme.example" {
		t.Errorf("expected bare address, got %q", found.RecruiterEmail)
	}
	if found.GmailThreadID != "t1" {
		t.Errorf("thread id not carried over, got %q", found.GmailThreadID)
	}
	if found.ObjectKey != "emails/m1.json" {
		t.Errorf("expected archive key, got %q", found.ObjectKey)
	}
	if len(archiver.archived) != 1 || archiver.archived[0] != "m1" {
		t.Errorf("expected only the recruiter email archived, got %v", archiver.archived)
	}
}

func TestScan_MalformedClassificationIsSkipped(t *testing.T) {
	mb := &fakeMailbox{messages: []Message{
		{ID: "m1", From: "a@b.example", Subject: "x", Body: "y"},
		{ID: "m2", From: "Jo <jo@acme.example>", Subject: "Opportunity", Body: "hi"},
	}}
	model := &fakeLLM{answers: []string{
		"sorry, I cannot help with that",
		"```json\n{\"is_recruiter\": true, \"company\": \"Acme\", \"message\": \"hi\"}\n```",
	}}

	scanner := NewScanner(mb, model, nil, "from:recruiting", testLogger())
	report, err := scanner.Scan(context.Background(), models.ScanRequest{MaxMessages: 2})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if mb.query != "from:recruiting" {
		t.Errorf("custom query not used, got %q", mb.query)
	}
	// The unparseable answer only skips that one message.
	if len(report.Companies) != 1 || report.Companies[0].Name != "Acme" {
		t.Errorf("expected fenced JSON answer to be accepted, got %v", report.Companies)
	}
	// No archiver configured, so no object key.
	if report.Companies[0].ObjectKey != "" {
		t.Errorf("expected empty object key, got %q", report.Companies[0].ObjectKey)
	}
}

func TestScan_ListFailureIsFatal(t *testing.T) {
	mb := &fakeMailbox{listErr: errors.New("gmail: quota exceeded")}
	scanner := NewScanner(mb, &fakeLLM{}, nil, "", testLogger())

	if _, err := scanner.Scan(context.Background(), models.ScanRequest{MaxMessages: 1}); err == nil {
		t.Fatal("expected error when the inbox cannot be listed")
	}
}

func TestSenderAddress(t *testing.T) {
	if got := senderAddress("Jo Recruiter <jo@acme.example>"); got != "jo@acme.example" {
		t.Errorf("expected bare address, got %q", got)
	}
	if got := senderAddress(" plain@acme.example "); got != "plain@acme.example" {
		t.Errorf("expected trimmed address, got %q", got)
	}
}

func TestParseClassification_RejectsGarbage(t *testing.T) {
	_, err := parseClassification("not json")
	if err == nil {
		t.Fatal("expected error for non-JSON answer")
	}
	if !strings.Contains(err.Error(), "malformed") {
		t.Errorf("unexpected error message %q", err)
	}
}
