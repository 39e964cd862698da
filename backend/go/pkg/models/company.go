package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TaskState 表示公司记录上某类后台任务的本地状态字段。
// 空字符串表示该类任务从未被触发过。
type TaskState string

const (
	TaskStatePending   TaskState = "pending"
	TaskStateRunning   TaskState = "running"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
)

// Company 代表招聘流水线中被跟踪的一家公司。
// Name 是唯一键，所有 API 路由都以公司名定位记录。
type Company struct {
	gorm.Model `json:"-"`

	Name string `gorm:"uniqueIndex;not null;size:255" json:"name"`

	// 招聘者发来的原始消息，以及我们准备 (或已生成) 的回复。
	RecruiterMessage string `gorm:"type:text" json:"recruiter_message,omitempty"`
	ReplyMessage     string `gorm:"type:text" json:"reply_message,omitempty"`

	// 调研任务与回复生成任务在该公司上的最近状态。
	ResearchStatus TaskState `gorm:"type:varchar(20)" json:"research_status,omitempty"`
	ResearchError  string    `gorm:"type:text" json:"research_error,omitempty"`
	MessageStatus  TaskState `gorm:"type:varchar(20)" json:"message_status,omitempty"`
	MessageError   string    `gorm:"type:text" json:"message_error,omitempty"`

	SentAt       *time.Time `json:"sent_at,omitempty"`       // 回复发送并归档的时间
	ResearchedAt *time.Time `json:"researched_at,omitempty"` // 最近一次调研完成的时间

	// 自由格式的明细信息 (官网、规模、技术栈、契合度评估等)。
	Details datatypes.JSON `json:"details,omitempty"`

	Archived bool `json:"archived"` // send_and_archive 之后为 true
}

func (Company) TableName() string {
	return "companies"
}
