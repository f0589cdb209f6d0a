package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// listResponse 邮件列表响应
type listResponse struct {
	Messages           []MessageRef `json:"messages"`
	ResultSizeEstimate int          `json:"resultSizeEstimate"`
}

// Client Gmail API 客户端
type Client struct {
	httpClient *resty.Client
	query      string
	logger     *zap.Logger
}

// NewClient 创建 Gmail 客户端
// query: 报警邮件的过滤条件（主题搜索），由调用方配置，核心不关心其内容
func NewClient(baseURL, query string, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		query:      query,
		logger:     logger,
	}
}

// ListMessages 拉取最近的报警邮件列表（仅ID）
func (c *Client) ListMessages(ctx context.Context, token string, maxResults int) ([]MessageRef, error) {
	var result listResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("maxResults", fmt.Sprintf("%d", maxResults)).
		SetQueryParam("q", c.query).
		SetResult(&result).
		Get("/users/me/messages")

	if err := c.checkResponse("list messages", resp, err); err != nil {
		return nil, err
	}

	return result.Messages, nil
}

// GetMessage 拉取单封邮件的完整内容
// 单封邮件的失败由调用方丢弃，不中断整批
func (c *Client) GetMessage(ctx context.Context, token string, id string) (*Message, error) {
	var msg Message
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("format", "full").
		SetResult(&msg).
		Get("/users/me/messages/" + url.PathEscape(id))

	if err := c.checkResponse("get message", resp, err); err != nil {
		return nil, err
	}

	return &msg, nil
}

// MarkRead 移除邮件的 UNREAD 标签（远端确认同步，尽力而为）
func (c *Client) MarkRead(ctx context.Context, token string, id string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"removeLabelIds": []string{"UNREAD"},
		}).
		Post("/users/me/messages/" + url.PathEscape(id) + "/modify")

	return c.checkResponse("modify labels", resp, err)
}

// SendMessage 通过 Gmail API 发送邮件（通知/指令）
func (c *Client) SendMessage(ctx context.Context, token string, to, subject, body string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"raw": BuildRawEmail(to, subject, body),
		}).
		Post("/users/me/messages/send")

	return c.checkResponse("send message", resp, err)
}

// ImportMessage 直接把邮件插入收件箱（显示为已接收，带 INBOX + UNREAD 标签）
// 用于开发模式注入样例报警
func (c *Client) ImportMessage(ctx context.Context, token string, from, subject, body string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("internalDateSource", "receivedTime").
		SetBody(map[string]any{
			"raw":      BuildRawEmail(from, subject, body),
			"labelIds": []string{"INBOX", "UNREAD"},
		}).
		Post("/users/me/messages/import")

	return c.checkResponse("import message", resp, err)
}

// checkResponse 统一的响应检查：401/403 映射为 ErrAuthExpired，其余失败包装为 TransportError
func (c *Client) checkResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == 401 || code == 403:
		c.logger.Warn("Gmail API authorization failure",
			zap.String("op", op),
			zap.Int("status_code", code),
		)
		return fmt.Errorf("%s: status %d: %w", op, code, ErrAuthExpired)
	default:
		c.logger.Error("Gmail API call failed",
			zap.String("op", op),
			zap.Int("status_code", code),
			zap.String("body", resp.String()),
		)
		return &TransportError{Op: op, StatusCode: code}
	}
}

// BuildRawEmail 构造 RFC 2822 格式邮件并做 base64url 编码（Gmail raw 格式）
func BuildRawEmail(to, subject, body string) string {
	lines := []string{
		"To: " + to,
		"Subject: " + subject,
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}
	raw := strings.Join(lines, "\r\n")
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(raw))
}
