package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/joeykb/smartescape-app/internal/config"
	"github.com/joeykb/smartescape-app/internal/gmail"
	"github.com/joeykb/smartescape-app/internal/models"
	"github.com/joeykb/smartescape-app/internal/parser"
	"github.com/joeykb/smartescape-app/internal/pipeline"
	"github.com/joeykb/smartescape-app/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MailAPI 邮件拉取协作方的边界契约
type MailAPI interface {
	ListMessages(ctx context.Context, token string, maxResults int) ([]gmail.MessageRef, error)
	GetMessage(ctx context.Context, token string, id string) (*gmail.Message, error)
	MarkRead(ctx context.Context, token string, id string) error
	SendMessage(ctx context.Context, token string, to, subject, body string) error
	ImportMessage(ctx context.Context, token string, from, subject, body string) error
}

// AlertPublisher 新报警的发布边界（推送投递本身由外部系统负责）
type AlertPublisher interface {
	PublishAlert(ctx context.Context, n models.Notification) error
}

// fetchConcurrency 单批邮件详情的并发拉取上限
const fetchConcurrency = 5

// IngestService 摄取编排器（唯一的状态容器）
// 持有实时视图、系统状态和历史归档；对外只暴露快照和变更操作
type IngestService struct {
	config    *config.Config
	mail      MailAPI
	tokens    gmail.TokenSource
	kv        store.KV
	publisher AlertPublisher // 可为 nil（不发布）
	logger    *zap.Logger

	// ingestMu 串行化 Ingest：同一时刻最多一次摄取在执行，
	// 并发触发的调用在此排队而不是交错写入
	ingestMu sync.Mutex

	// mu 保护以下状态
	mu            sync.RWMutex
	live          []models.Notification
	systems       []models.System
	history       []models.Notification
	lastFetchedAt time.Time
}

// NewIngestService 创建摄取服务
func NewIngestService(
	cfg *config.Config,
	mail MailAPI,
	tokens gmail.TokenSource,
	kv store.KV,
	publisher AlertPublisher,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		config:    cfg,
		mail:      mail,
		tokens:    tokens,
		kv:        kv,
		publisher: publisher,
		logger:    logger,
	}
}

// LoadHistory 启动时从持久化存储加载历史归档
func (s *IngestService) LoadHistory(ctx context.Context) error {
	val, err := s.kv.Get(ctx, s.config.Ingest.HistoryKey)
	if err != nil {
		if err == store.ErrMiss {
			s.logger.Info("No persisted alert history found, starting empty")
			return nil
		}
		return fmt.Errorf("failed to load alert history: %w", err)
	}

	var history []models.Notification
	if err := json.Unmarshal([]byte(val), &history); err != nil {
		return fmt.Errorf("failed to unmarshal alert history: %w", err)
	}

	s.mu.Lock()
	s.history = history
	s.mu.Unlock()

	s.logger.Info("Alert history loaded",
		zap.Int("entry_count", len(history)),
	)
	return nil
}

// Ingest 执行一次完整的摄取周期：
// 拉取 → 解析 → 去重（实时视图）→ 状态推导 → 历史合并 → 统一发布
// 拉取失败（认证/网络）原样上抛且不改动任何本地状态；
// 三个输出在状态锁内一次性提交，对调用方而言是原子的
func (s *IngestService) Ingest(ctx context.Context) error {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	cycleID := uuid.NewString()

	token, err := s.tokens.Token(ctx)
	if err != nil {
		return err
	}

	refs, err := s.mail.ListMessages(ctx, token, s.config.Gmail.MaxResults)
	if err != nil {
		return err
	}

	batch := s.fetchBatch(ctx, token, refs)

	// 被取消的周期不提交任何输出，单封邮件失败才允许丢弃
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("ingest cycle canceled: %w", err)
	}

	live := pipeline.Deduplicate(batch)
	systems := pipeline.DeriveSystems(batch)

	s.mu.Lock()
	knownIDs := make(map[string]bool, len(s.history))
	for _, n := range s.history {
		knownIDs[n.ID] = true
	}
	s.history = pipeline.MergeHistory(s.history, batch, s.config.Ingest.HistoryCap)
	s.live = live
	s.systems = systems
	s.lastFetchedAt = time.Now().UTC()
	s.mu.Unlock()

	s.logger.Info("Ingest cycle completed",
		zap.String("cycle_id", cycleID),
		zap.Int("listed", len(refs)),
		zap.Int("parsed", len(batch)),
		zap.Int("live_groups", len(live)),
		zap.Int("systems", len(systems)),
	)

	// 落盘与发布都是尽力而为：本地状态已是权威，失败只记日志
	s.saveHistory(ctx)
	s.publishNewAlerts(ctx, batch, knownIDs)

	return nil
}

// fetchBatch 并发拉取并解析每封邮件
// 单封邮件的拉取/解析失败只丢弃该条并记日志，不中断整批
func (s *IngestService) fetchBatch(ctx context.Context, token string, refs []gmail.MessageRef) []models.Notification {
	results := make([]*models.Notification, len(refs))

	sem := make(chan struct{}, fetchConcurrency)
	var wg sync.WaitGroup

	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref gmail.MessageRef) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			msg, err := s.mail.GetMessage(ctx, token, ref.ID)
			if err != nil {
				s.logger.Warn("Dropping message: fetch failed",
					zap.String("message_id", ref.ID),
					zap.Error(err),
				)
				return
			}

			n, err := parser.Parse(msg)
			if err != nil {
				s.logger.Warn("Dropping message: parse failed",
					zap.String("message_id", ref.ID),
					zap.Error(err),
				)
				return
			}
			results[i] = &n
		}(i, ref)
	}
	wg.Wait()

	// 保持列表顺序，剔除被丢弃的条目
	batch := make([]models.Notification, 0, len(refs))
	for _, n := range results {
		if n != nil {
			batch = append(batch, *n)
		}
	}
	return batch
}

// saveHistory 把历史归档写入持久化存储
func (s *IngestService) saveHistory(ctx context.Context) {
	s.mu.RLock()
	data, err := json.Marshal(s.history)
	s.mu.RUnlock()
	if err != nil {
		s.logger.Error("Failed to marshal alert history", zap.Error(err))
		return
	}

	if err := s.kv.Set(ctx, s.config.Ingest.HistoryKey, string(data), 0); err != nil {
		s.logger.Error("Failed to persist alert history", zap.Error(err))
	}
}

// publishNewAlerts 把本周期首次出现的 ALERT/OFFLINE 通知发布出去
// （例如 Redis Stream，供外部推送通道消费）
func (s *IngestService) publishNewAlerts(ctx context.Context, batch []models.Notification, knownIDs map[string]bool) {
	if s.publisher == nil {
		return
	}

	for _, n := range batch {
		if knownIDs[n.ID] {
			continue
		}
		if n.Status != models.StatusAlert && n.Status != models.StatusOffline {
			continue
		}
		if err := s.publisher.PublishAlert(ctx, n); err != nil {
			s.logger.Warn("Failed to publish alert",
				zap.String("notification_id", n.ID),
				zap.Error(err),
			)
		}
	}
}

// LiveNotifications 实时视图快照（最近一次拉取的去重分组结果）
func (s *IngestService) LiveNotifications() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Notification(nil), s.live...)
}

// Systems 系统状态快照
func (s *IngestService) Systems() []models.System {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.System(nil), s.systems...)
}

// History 历史归档快照
// includeArchived=false 时过滤掉已归档条目
func (s *IngestService) History(includeArchived bool) []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Notification, 0, len(s.history))
	for _, n := range s.history {
		if !includeArchived && n.IsArchived {
			continue
		}
		result = append(result, n)
	}
	return result
}

// LastFetchedAt 最近一次成功摄取的时间（零值表示尚未摄取过）
func (s *IngestService) LastFetchedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFetchedAt
}

// MarkRead 把指定通知标记为已确认（实时视图 + 历史，本地即时生效）
// 远端的已读同步是尽力而为的后台动作，失败不影响本地状态
func (s *IngestService) MarkRead(ctx context.Context, id string) bool {
	s.mu.Lock()
	found := false
	for i := range s.live {
		if s.live[i].ID == id {
			s.live[i].IsRead = true
			found = true
		}
	}
	for i := range s.history {
		if s.history[i].ID == id {
			s.history[i].IsRead = true
			found = true
		}
	}
	s.mu.Unlock()

	if !found {
		return false
	}

	s.saveHistory(ctx)

	// 远端同步：移除邮件的 UNREAD 标签
	go func() {
		syncCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		token, err := s.tokens.Token(syncCtx)
		if err != nil {
			s.logger.Warn("Skipping remote read sync: no token", zap.Error(err))
			return
		}
		if err := s.mail.MarkRead(syncCtx, token, id); err != nil {
			s.logger.Warn("Remote read sync failed",
				zap.String("message_id", id),
				zap.Error(err),
			)
		}
	}()

	return true
}

// Archive 把指定历史条目标记为已归档（仅本地，不会被后续摄取复活）
func (s *IngestService) Archive(ctx context.Context, id string) bool {
	s.mu.Lock()
	found := false
	for i := range s.history {
		if s.history[i].ID == id {
			s.history[i].IsArchived = true
			found = true
		}
	}
	s.mu.Unlock()

	if !found {
		return false
	}

	s.saveHistory(ctx)
	return true
}

// ClearHistory 清空历史归档和派生视图
func (s *IngestService) ClearHistory(ctx context.Context) {
	s.mu.Lock()
	s.history = nil
	s.live = nil
	s.systems = nil
	s.mu.Unlock()

	s.saveHistory(ctx)
}
