package models

// ResearchReport 是 research 任务的结果载荷。
type ResearchReport struct {
	Company    string            `bson:"company" json:"company"`
	Summary    string            `bson:"summary" json:"summary"`         // 公司简介
	FitScore   int               `bson:"fit_score" json:"fit_score"`     // 契合度评分 (0-100)
	FitVerdict string            `bson:"fit_verdict" json:"fit_verdict"` // 契合度结论 (例如: "strong", "weak")
	Details    map[string]string `bson:"details" json:"details"`         // 结构化明细 (官网、规模、技术栈等)
}

// DiscoveredCompany 是收件箱扫描中发现的一条招聘线索。
type DiscoveredCompany struct {
	Name             string `bson:"name" json:"name"`
	RecruiterMessage string `bson:"recruiter_message" json:"recruiter_message"`
	RecruiterEmail   string `bson:"recruiter_email,omitempty" json:"recruiter_email,omitempty"` // 招聘者的回信地址
	GmailID          string `bson:"gmail_id" json:"gmail_id"`                       // 原始邮件的 Gmail message id
	GmailThreadID    string `bson:"gmail_thread_id" json:"gmail_thread_id"`         // 所属会话 id
	ObjectKey        string `bson:"object_key,omitempty" json:"object_key,omitempty"` // 原文在 MinIO 中的对象键
}

// ScanReport 是 scan_emails 任务的结果载荷。
type ScanReport struct {
	Scanned          int                 `bson:"scanned" json:"scanned"` // 实际检查过的邮件数量
	Companies        []DiscoveredCompany `bson:"companies" json:"companies"`
	ResearchTaskIDs  []string            `bson:"research_task_ids,omitempty" json:"research_task_ids,omitempty"` // do_research 时追加下发的调研任务
}

// TaskResult 是 worker 通过 Kafka 结果主题回传给 tracker_service 的消息。
// tracker_service 据此把服务端权威状态写回公司记录。
type TaskResult struct {
	TaskID  string      `json:"task_id"`
	Kind    TaskKind    `json:"kind"`
	Company string      `json:"company,omitempty"`
	Status  TaskStatus  `json:"status"`
	Error   string      `json:"error,omitempty"`
	Report  interface{} `json:"report,omitempty"` // ResearchReport / ScanReport / 回复文本
}
