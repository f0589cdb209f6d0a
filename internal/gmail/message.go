package gmail

import "encoding/base64"

// Header 邮件头（Gmail API payload.headers 元素）
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Body 邮件正文载荷（data 为 base64url 编码）
type Body struct {
	Size int    `json:"size"`
	Data string `json:"data"`
}

// Part 多段邮件的子段
type Part struct {
	MimeType string   `json:"mimeType"`
	Headers  []Header `json:"headers"`
	Body     *Body    `json:"body"`
	Parts    []Part   `json:"parts"`
}

// Payload 邮件载荷结构
type Payload struct {
	MimeType string   `json:"mimeType"`
	Headers  []Header `json:"headers"`
	Body     *Body    `json:"body"`
	Parts    []Part   `json:"parts"`
}

// Message Gmail API 返回的完整邮件对象
type Message struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"threadId"`
	LabelIDs []string `json:"labelIds"`
	Snippet  string   `json:"snippet"`
	Payload  *Payload `json:"payload"`
}

// MessageRef 邮件列表项（仅含ID）
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// HasLabel 检查邮件是否带有指定标签
func (m *Message) HasLabel(label string) bool {
	for _, l := range m.LabelIDs {
		if l == label {
			return true
		}
	}
	return false
}

// DecodeBase64URL 解码 Gmail API 的 base64url 数据
// 解码失败时返回空字符串（单条消息的异常不应中断整批处理）
func DecodeBase64URL(data string) string {
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(data)
	if err != nil {
		// 部分客户端会带填充，再试一次标准 base64url
		decoded, err = base64.URLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(decoded)
}
