package parser

import (
	"errors"
	"strings"
	"time"

	"github.com/joeykb/smartescape-app/internal/gmail"
	"github.com/joeykb/smartescape-app/internal/models"
)

// ErrNilMessage 输入邮件为空
var ErrNilMessage = errors.New("parser: nil message")

// maxMessageLen 通知正文截断长度
const maxMessageLen = 200

// dateLayouts 邮件 Date 头的常见格式（按顺序尝试）
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC3339,
}

// Parse 把一封原始 Gmail 邮件解析为 Notification
// 单封邮件的字段缺失全部走默认值，不报错（部分信息对运维人员仍然有用）
func Parse(msg *gmail.Message) (models.Notification, error) {
	if msg == nil || msg.ID == "" {
		return models.Notification{}, ErrNilMessage
	}

	subject := headerValue(msg, "subject")
	if subject == "" {
		subject = "No Subject"
	}

	timestamp := parseDate(headerValue(msg, "date"))

	body := extractBody(msg)

	message := strings.TrimSpace(body)
	if runes := []rune(message); len(runes) > maxMessageLen {
		message = string(runes[:maxMessageLen])
	}
	if message == "" {
		message = subject
	}

	return models.Notification{
		ID:        msg.ID,
		SystemID:  ExtractSystemID(subject, body),
		Timestamp: timestamp,
		Status:    ExtractStatus(subject, body),
		Message:   message,
		IsRead:    !msg.HasLabel("UNREAD"),
	}, nil
}

// headerValue 按名称（大小写不敏感）查找邮件头
func headerValue(msg *gmail.Message, name string) string {
	if msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// parseDate 解析 Date 头，缺失或无法解析时回退为当前时间
func parseDate(value string) time.Time {
	if value == "" {
		return time.Now().UTC()
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

// extractBody 提取纯文本正文
// 优先取内联正文，否则扫描子段找第一个 text/plain 段，均无则为空串
func extractBody(msg *gmail.Message) string {
	if msg.Payload == nil {
		return ""
	}

	if msg.Payload.Body != nil && msg.Payload.Body.Data != "" {
		return gmail.DecodeBase64URL(msg.Payload.Body.Data)
	}

	for _, part := range msg.Payload.Parts {
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			return gmail.DecodeBase64URL(part.Body.Data)
		}
	}
	return ""
}
