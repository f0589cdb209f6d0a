package models

import "time"

// Status 通知/系统状态等级
type Status string

const (
	StatusHealthy Status = "HEALTHY"
	StatusInfo    Status = "INFO"
	StatusWarning Status = "WARNING"
	StatusOffline Status = "OFFLINE"
	StatusAlert   Status = "ALERT"
)

// statusRank 状态严重程度排序（用于系统状态推导）
// HEALTHY(0) < INFO(1) < WARNING(2) < OFFLINE(3) < ALERT(4)
var statusRank = map[Status]int{
	StatusHealthy: 0,
	StatusInfo:    1,
	StatusWarning: 2,
	StatusOffline: 3,
	StatusAlert:   4,
}

// Rank 返回状态的严重程度排名（未知状态返回 0）
func (s Status) Rank() int {
	return statusRank[s]
}

// Valid 检查状态是否为五个枚举值之一
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Notification 一条已解析的报警通知
// 字段命名与前端契约保持一致（camelCase JSON）
type Notification struct {
	ID         string    `json:"id"`                   // 邮件系统分配的唯一ID（主键）
	SystemID   string    `json:"systemId"`             // 目标系统ID（大写规范形式，未识别时为 UNKNOWN）
	Timestamp  time.Time `json:"timestamp"`            // 事件时间（来自邮件 Date 头）
	Status     Status    `json:"status"`               // 严重程度
	Message    string    `json:"message"`              // 正文（截断到 200 字符，为空时回退到主题）
	IsRead     bool      `json:"isRead"`               // 是否已确认处理（来源：邮件未读标记取反）
	IsArchived bool      `json:"isArchived,omitempty"` // 是否已归档（仅本地，历史记录专用）
	Count      int       `json:"count,omitempty"`      // 去重合并的原始消息数量（仅实时视图，≥1）
}

// System 受监控系统的推导状态（每次摄取周期重新计算，不落盘）
type System struct {
	ID       string    `json:"id"`
	Status   Status    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

// UnknownSystemID 无法从邮件内容识别系统时的占位ID
const UnknownSystemID = "UNKNOWN"
