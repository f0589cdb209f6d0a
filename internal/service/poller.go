package service

import (
	"context"
	"errors"
	"time"

	"github.com/joeykb/smartescape-app/internal/gmail"

	"go.uber.org/zap"
)

// Poller 定时触发摄取周期（外部触发器之一，手动刷新走 HTTP 层）
type Poller struct {
	service  *IngestService
	tokens   gmail.TokenSource
	interval time.Duration
	logger   *zap.Logger
}

// NewPoller 创建轮询器
func NewPoller(service *IngestService, tokens gmail.TokenSource, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		service:  service,
		tokens:   tokens,
		interval: interval,
		logger:   logger,
	}
}

// Start 启动轮询（阻塞直到 ctx 取消）
func (p *Poller) Start(ctx context.Context) error {
	p.logger.Info("Ingest poller started",
		zap.Duration("interval", p.interval),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// 启动时立即执行一次
	p.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Ingest poller stopped")
			return nil
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

// runOnce 执行一次摄取；认证过期时刷新令牌并重试一次
func (p *Poller) runOnce(ctx context.Context) {
	err := p.service.Ingest(ctx)
	if err == nil {
		return
	}

	if errors.Is(err, gmail.ErrAuthExpired) {
		p.logger.Info("Access token expired, refreshing and retrying")
		if _, refreshErr := p.tokens.Refresh(ctx); refreshErr != nil {
			p.logger.Error("Token refresh failed", zap.Error(refreshErr))
			return
		}
		err = p.service.Ingest(ctx)
	}

	if err != nil {
		// 失败只记日志，下个周期重试；本地状态保持不变
		p.logger.Error("Ingest cycle failed", zap.Error(err))
	}
}
