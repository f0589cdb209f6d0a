package gmail

import (
	"errors"
	"fmt"
)

// ErrAuthExpired 访问令牌过期或无效（HTTP 401/403）
// 调用方应刷新令牌后重试一次
var ErrAuthExpired = errors.New("gmail: authorization expired")

// TransportError 非认证类的网络/API失败（可重试）
type TransportError struct {
	Op         string // 失败的操作，如 "list messages"
	StatusCode int    // HTTP 状态码（网络层失败时为 0）
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("gmail: %s failed: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("gmail: %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
