package models

import (
	"time"
)

// TaskStatus 定义了后台任务的几种可能状态
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Terminal 报告该状态是否为终止状态，终止之后任务不会再被更新。
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// TaskKind 定义了流水线支持的任务种类。
type TaskKind string

const (
	TaskKindResearch       TaskKind = "research"         // 公司调研
	TaskKindMessage        TaskKind = "message"          // 回复生成
	TaskKindScanEmails     TaskKind = "scan_emails"      // 收件箱扫描 (全局任务，不关联单个公司)
	TaskKindSendAndArchive TaskKind = "send_and_archive" // 发送回复并归档 (fire-and-forget)
)

// TaskRecord 代表一个持久化的后台任务记录。
// 记录只由后端写入，UI 只通过轮询 GET /api/tasks/:id 观察它。
type TaskRecord struct {
	ID          string      `bson:"_id" json:"task_id"`                   // 任务唯一ID (UUID string)
	Kind        TaskKind    `bson:"kind" json:"kind"`                     // 任务种类
	Company     string      `bson:"company,omitempty" json:"company,omitempty"` // 关联的公司名，全局任务为空
	Status      TaskStatus  `bson:"status" json:"status"`                 // 任务当前状态
	Payload     interface{} `bson:"payload,omitempty" json:"payload,omitempty"` // 任务的输入
	Result      interface{} `bson:"result,omitempty" json:"result,omitempty"` // 任务成功后的输出结果
	Error       string      `bson:"error,omitempty" json:"error,omitempty"`   // 任务失败时的错误信息
	SubmittedAt time.Time   `bson:"submitted_at" json:"submitted_at"`     // 任务提交时间
	CompletedAt time.Time   `bson:"completed_at,omitempty" json:"completed_at,omitempty"` // 任务完成时间
}

// ScanRequest 是 POST /api/scan_recruiter_emails 的请求体，
// 同时也是 scan_emails 任务的 Payload。
type ScanRequest struct {
	MaxMessages int  `json:"max_messages"` // 最多检查的邮件数量
	DoResearch  bool `json:"do_research"`  // 对新发现的公司自动触发调研
}

// MessagePayload 是 message / send_and_archive 任务的 Payload。
type MessagePayload struct {
	Company          string `json:"company"`
	RecruiterMessage string `json:"recruiter_message,omitempty"`
	ReplyMessage     string `json:"reply_message,omitempty"`
	Details          string `json:"details,omitempty"` // 已有调研明细的 JSON 文本
	RecruiterEmail   string `json:"recruiter_email,omitempty"`
	GmailThreadID    string `json:"gmail_thread_id,omitempty"`
}

// ResearchPayload 是 research 任务的 Payload。
type ResearchPayload struct {
	Company string `json:"company"`
	Website string `json:"website,omitempty"` // 已知的公司官网，可为空
}
