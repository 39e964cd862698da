package mailbox

import (
	"JobPilot/backend/go/internal/llm"
	"JobPilot/backend/go/pkg/models"
	"JobPilot/backend/go/pkg/logger"
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
)

const classifySystemPrompt = `You read a single email and decide whether it is recruiter ` +
	`outreach (a recruiter or hiring manager contacting a candidate about a role). You answer ` +
	`with one JSON object and nothing else: {"is_recruiter": bool, "company": string, ` +
	`"message": string}. "company" is the hiring company's name (not the staffing agency ` +
	`when both appear). "message" is the outreach text, cleaned of signatures and legal ` +
	`footers. When is_recruiter is false the other fields are empty strings.`

// Scanner 扫描收件箱并从招聘邮件中提取公司线索。
type Scanner struct {
	mailbox Mailbox
	llm     llm.LLM
	archive ObjectArchiver // 可为 nil，此时不归档原文
	query   string
	logger  *logger.Logger
}

// NewScanner 创建一个新的 Scanner。query 是列出候选邮件时使用的 Gmail 查询语句。
func NewScanner(mb Mailbox, model llm.LLM, archive ObjectArchiver, query string, logger *logger.Logger) *Scanner {
	if query == "" {
		query = "in:inbox"
	}
	return &Scanner{
		mailbox: mb,
		llm:     model,
		archive: archive,
		query:   query,
		logger:  logger,
	}
}

// Scan 执行一次收件箱扫描任务。单封邮件的识别失败只记日志，不中断整个扫描。
func (s *Scanner) Scan(ctx context.Context, req models.ScanRequest) (*models.ScanReport, error) {
	messages, err := s.mailbox.ListInbox(ctx, s.query, req.MaxMessages)
	if err != nil {
		return nil, err
	}

	report := &models.ScanReport{Scanned: len(messages)}
	for _, msg := range messages {
		verdict, err := s.classify(ctx, msg)
		if err != nil {
			s.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
				"gmail_id": msg.ID,
			}).Warn("Failed to classify inbox message")
			continue
		}
		if !verdict.IsRecruiter || verdict.Company == "" {
			continue
		}

		found := models.DiscoveredCompany{
			Name:             verdict.Company,
			RecruiterMessage: verdict.Message,
			RecruiterEmail:   senderAddress(msg.From),
			GmailID:          msg.ID,
			GmailThreadID:    msg.ThreadID,
		}
		if s.archive != nil {
			key, err := s.archive.ArchiveMessage(ctx, msg)
			if err != nil {
				s.logger.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
					"gmail_id": msg.ID,
				}).Warn("Failed to archive recruiter email")
			} else {
				found.ObjectKey = key
			}
		}
		report.Companies = append(report.Companies, found)
	}
	return report, nil
}

// classification 是模型对一封邮件的判定结果。
type classification struct {
	IsRecruiter bool   `json:"is_recruiter"`
	Company     string `json:"company"`
	Message     string `json:"message"`
}

func (s *Scanner) classify(ctx context.Context, msg Message) (*classification, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "From: %s\nSubject: %s\n\n%s", msg.From, msg.Subject, msg.Body)

	answer, err := s.llm.GenerateText(ctx, classifySystemPrompt, prompt.String())
	if err != nil {
		return nil, err
	}
	return parseClassification(answer)
}

// parseClassification 解析模型返回的 JSON，容忍 markdown 代码块包裹。
func parseClassification(answer string) (*classification, error) {
	cleaned := strings.TrimSpace(answer)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var verdict classification
	if err := json.Unmarshal([]byte(cleaned), &verdict); err != nil {
		return nil, fmt.Errorf("model returned malformed classification JSON: %w", err)
	}
	return &verdict, nil
}

// senderAddress 从 From 头中提取邮箱地址。
func senderAddress(from string) string {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return strings.TrimSpace(from)
	}
	return addr.Address
}
