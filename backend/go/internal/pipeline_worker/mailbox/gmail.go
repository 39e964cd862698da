package mailbox

import (
	"JobPilot/backend/go/internal/config"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Message 是从收件箱读出的一封邮件的简化表示。
type Message struct {
	ID       string `json:"id"`        // Gmail message id
	ThreadID string `json:"thread_id"` // 所属会话 id
	From     string `json:"from"`      // From 头
	Subject  string `json:"subject"`   // Subject 头
	Body     string `json:"body"`      // text/plain 正文
}

// Mailbox 定义了扫描与回复所需的最小邮箱操作集合。
// 用接口抽象是为了让 Scanner 可以在测试中使用假邮箱。
type Mailbox interface {
	ListInbox(ctx context.Context, query string, max int) ([]Message, error)
	Send(ctx context.Context, to, subject, body, threadID string) error
	Archive(ctx context.Context, threadID string) error
}

// GmailMailbox 是基于 Gmail API 的 Mailbox 实现。
type GmailMailbox struct {
	srv   *gmail.Service
	alias string // 发件人别名，可为空
}

// NewGmailMailbox 使用本地 OAuth2 凭证与令牌文件创建 Gmail 客户端。
// 令牌需要事先通过一次交互式授权获得。
func NewGmailMailbox(ctx context.Context, cfg *config.GmailConfig) (*GmailMailbox, error) {
	credBytes, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("读取 Gmail 凭证文件失败: %w", err)
	}
	oauthCfg, err := google.ConfigFromJSON(credBytes, gmail.GmailModifyScope, gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("解析 Gmail 凭证失败: %w", err)
	}

	tokenBytes, err := os.ReadFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("读取 Gmail 令牌文件失败: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenBytes, &token); err != nil {
		return nil, fmt.Errorf("解析 Gmail 令牌失败: %w", err)
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("创建 Gmail 服务失败: %w", err)
	}
	return &GmailMailbox{srv: srv, alias: cfg.SenderAlias}, nil
}

// ListInbox 按查询语句列出最多 max 封收件箱邮件。
func (g *GmailMailbox) ListInbox(ctx context.Context, query string, max int) ([]Message, error) {
	call := g.srv.Users.Messages.List("me").Q(query).MaxResults(int64(max))
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("列出收件箱失败: %w", err)
	}

	messages := make([]Message, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		full, err := g.srv.Users.Messages.Get("me", ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("读取邮件 %s 失败: %w", ref.Id, err)
		}

		msg := Message{ID: full.Id, ThreadID: full.ThreadId}
		for _, header := range full.Payload.Headers {
			switch header.Name {
			case "From":
				msg.From = header.Value
			case "Subject":
				msg.Subject = header.Value
			}
		}
		msg.Body = extractPlainText(full.Payload)
		messages = append(messages, msg)
	}
	return messages, nil
}

// Send 发送一封回复邮件。threadID 非空时挂到原会话上。
func (g *GmailMailbox) Send(ctx context.Context, to, subject, body, threadID string) error {
	var raw strings.Builder
	if g.alias != "" {
		fmt.Fprintf(&raw, "From: %s\r\n", g.alias)
	}
	fmt.Fprintf(&raw, "To: %s\r\n", to)
	fmt.Fprintf(&raw, "Subject: %s\r\n", subject)
	raw.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	raw.WriteString(body)

	msg := &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString([]byte(raw.String())),
		ThreadId: threadID,
	}
	if _, err := g.srv.Users.Messages.Send("me", msg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	return nil
}

// Archive 把整个会话移出收件箱。
func (g *GmailMailbox) Archive(ctx context.Context, threadID string) error {
	req := &gmail.ModifyThreadRequest{RemoveLabelIds: []string{"INBOX"}}
	if _, err := g.srv.Users.Threads.Modify("me", threadID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("归档会话 %s 失败: %w", threadID, err)
	}
	return nil
}

// extractPlainText 在 MIME 树中寻找 text/plain 部分并解码。
func extractPlainText(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}
	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		decoded, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			return ""
		}
		return string(decoded)
	}
	for _, child := range part.Parts {
		if text := extractPlainText(child); text != "" {
			return text
		}
	}
	return ""
}
