package gmail

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// TokenSource 提供 Gmail API 访问令牌
// Refresh 在收到 ErrAuthExpired 后由调用方触发，成功后 Token 返回新令牌
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// ErrNoToken 没有可用的访问令牌
var ErrNoToken = errors.New("gmail: no access token available")

// StaticTokenSource 固定令牌（无刷新能力，用于测试或短期令牌场景）
type StaticTokenSource struct {
	AccessToken string
}

func (s *StaticTokenSource) Token(ctx context.Context) (string, error) {
	if s.AccessToken == "" {
		return "", ErrNoToken
	}
	return s.AccessToken, nil
}

func (s *StaticTokenSource) Refresh(ctx context.Context) (string, error) {
	// 静态令牌无法刷新，原样返回让上层决定是否放弃
	return s.Token(ctx)
}

// OAuthTokenSource 基于 refresh_token 的令牌源（Google OAuth 令牌端点）
type OAuthTokenSource struct {
	httpClient   *resty.Client
	clientID     string
	refreshToken string
	logger       *zap.Logger

	mu          sync.RWMutex
	accessToken string
}

// tokenResponse OAuth 令牌端点响应
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// NewOAuthTokenSource 创建 OAuth 令牌源
func NewOAuthTokenSource(tokenURL, clientID, refreshToken, initialAccessToken string, logger *zap.Logger) *OAuthTokenSource {
	client := resty.New().
		SetBaseURL(tokenURL).
		SetTimeout(15 * time.Second)

	return &OAuthTokenSource{
		httpClient:   client,
		clientID:     clientID,
		refreshToken: refreshToken,
		logger:       logger,
		accessToken:  initialAccessToken,
	}
}

func (s *OAuthTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	token := s.accessToken
	s.mu.RUnlock()

	if token == "" {
		// 首次使用，先换取一个访问令牌
		return s.Refresh(ctx)
	}
	return token, nil
}

// Refresh 用 refresh_token 换取新的访问令牌
func (s *OAuthTokenSource) Refresh(ctx context.Context) (string, error) {
	var result tokenResponse
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     s.clientID,
			"refresh_token": s.refreshToken,
			"grant_type":    "refresh_token",
		}).
		SetResult(&result).
		Post("")

	if err != nil {
		return "", &TransportError{Op: "refresh token", Err: err}
	}
	if resp.StatusCode() != 200 || result.AccessToken == "" {
		s.logger.Error("Token refresh failed",
			zap.Int("status_code", resp.StatusCode()),
		)
		return "", &TransportError{Op: "refresh token", StatusCode: resp.StatusCode()}
	}

	s.mu.Lock()
	s.accessToken = result.AccessToken
	s.mu.Unlock()

	s.logger.Info("Access token refreshed")
	return result.AccessToken, nil
}
