package research

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"JobPilot/backend/go/pkg/models"
	"JobPilot/backend/go/pkg/logger"
)

type fixedLLM struct {
	answer string
	prompt string
}

func (f *fixedLLM) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	f.prompt = prompt
	return f.answer, nil
}

func TestParseReport(t *testing.T) {
	report, err := parseReport("```json\n{\"company\":\"Acme\",\"summary\":\"Makes anvils.\",\"fit_score\":140,\"fit_verdict\":\"great\"}\n```")
	if err != nil {
		t.Fatalf("parseReport() error = %v", err)
	}
	if report.Summary != "Makes anvils." {
		t.Errorf("unexpected summary %q", report.Summary)
	}
	if report.FitScore != 100 {
		t.Errorf("fit score not clamped, got %d", report.FitScore)
	}
}

func TestParseReport_RejectsEmptySummary(t *testing.T) {
	if _, err := parseReport(`{"company":"Acme","summary":""}`); err == nil {
		t.Fatal("expected error for empty summary")
	}
}

func TestParseReport_RejectsGarbage(t *testing.T) {
	if _, err := parseReport("I don't know"); err == nil {
		t.Fatal("expected error for non-JSON answer")
	}
}

func TestResearch_WithoutWebsite(t *testing.T) {
	logger.Init(logrus.ErrorLevel)
	model := &fixedLLM{answer: `{"company":"Acme","summary":"Makes anvils.","fit_score":60,"fit_verdict":"ok"}`}
	r := NewResearcher(model, logger.New("test", ""))

	report, err := r.Research(context.Background(), models.ResearchPayload{Company: "Acme"})
	if err != nil {
		t.Fatalf("Research() error = %v", err)
	}
	if report.FitScore != 60 {
		t.Errorf("unexpected fit score %d", report.FitScore)
	}
	if !strings.Contains(model.prompt, "Acme") {
		t.Errorf("company name missing from prompt: %q", model.prompt)
	}
}
