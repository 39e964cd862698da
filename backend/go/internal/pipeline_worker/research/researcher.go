package research

import (
	"JobPilot/backend/go/internal/llm"
	"JobPilot/backend/go/pkg/models"
	"JobPilot/backend/go/pkg/logger"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

const researchSystemPrompt = `You are a research assistant for a software engineer who is ` +
	`evaluating companies in their recruiting pipeline. You answer with a single JSON object ` +
	`and nothing else. The object has the keys: "summary" (3-5 sentence company overview), ` +
	`"fit_score" (integer 0-100, how well the company fits a senior backend engineer), ` +
	`"fit_verdict" (one of "strong", "moderate", "weak"), and "details" (object of short ` +
	`string facts such as "industry", "size", "stack", "funding", "website").`

// maxPageMarkdown caps how much converted website text goes into the prompt.
const maxPageMarkdown = 8000

// Researcher produces company research reports by combining a website snapshot
// with an LLM assessment.
type Researcher struct {
	llm    llm.LLM
	client *http.Client
	logger *logger.Logger
}

// NewResearcher creates a new Researcher.
func NewResearcher(model llm.LLM, logger *logger.Logger) *Researcher {
	return &Researcher{
		llm:    model,
		client: &http.Client{Timeout: 20 * time.Second},
		logger: logger,
	}
}

// Research runs a research task and returns the report.
func (r *Researcher) Research(ctx context.Context, payload models.ResearchPayload) (*models.ResearchReport, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Company name: %s\n", payload.Company)

	if payload.Website != "" {
		if page, err := r.fetchPage(ctx, payload.Website); err != nil {
			// A dead website is not fatal; the model still knows public facts.
			r.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
				"company": payload.Company,
				"website": payload.Website,
			}).Warn("Failed to snapshot company website")
		} else {
			fmt.Fprintf(&prompt, "\nWebsite snapshot (markdown):\n%s\n", page)
		}
	}

	prompt.WriteString("\nProduce the research JSON object for this company.")

	answer, err := r.llm.GenerateText(ctx, researchSystemPrompt, prompt.String())
	if err != nil {
		return nil, fmt.Errorf("research generation: %w", err)
	}

	report, err := parseReport(answer)
	if err != nil {
		return nil, err
	}
	report.Company = payload.Company
	if payload.Website != "" {
		if report.Details == nil {
			report.Details = map[string]string{}
		}
		report.Details["website"] = payload.Website
	}
	return report, nil
}

// fetchPage downloads the company website and converts it to markdown so the
// prompt stays readable and small.
func (r *Researcher) fetchPage(ctx context.Context, rawURL string) (string, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	markdown, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return "", fmt.Errorf("convert page to markdown: %w", err)
	}
	if len(markdown) > maxPageMarkdown {
		markdown = markdown[:maxPageMarkdown]
	}
	return markdown, nil
}

// parseReport decodes the model answer, tolerating markdown code fences.
func parseReport(answer string) (*models.ResearchReport, error) {
	cleaned := strings.TrimSpace(answer)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var report models.ResearchReport
	if err := json.Unmarshal([]byte(cleaned), &report); err != nil {
		return nil, fmt.Errorf("model returned malformed research JSON: %w", err)
	}
	if report.Summary == "" {
		return nil, fmt.Errorf("model returned an empty research summary")
	}
	if report.FitScore < 0 {
		report.FitScore = 0
	}
	if report.FitScore > 100 {
		report.FitScore = 100
	}
	return &report, nil
}
