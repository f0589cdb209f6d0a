package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joeykb/smartescape-app/internal/gmail"
	"github.com/joeykb/smartescape-app/internal/models"
	"github.com/joeykb/smartescape-app/internal/service"

	"go.uber.org/zap"
)

// NotificationHandler 通知/系统状态/历史归档的展示层边界
type NotificationHandler struct {
	service *service.IngestService
	tokens  gmail.TokenSource
	logger  *zap.Logger
}

// NewNotificationHandler 创建 Handler
func NewNotificationHandler(svc *service.IngestService, tokens gmail.TokenSource, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: svc,
		tokens:  tokens,
		logger:  logger,
	}
}

// GetLive 返回实时视图（最近一次拉取的去重分组结果）
func (h *NotificationHandler) GetLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"notifications": h.service.LiveNotifications(),
		"lastFetchedAt": nullableTime(h.service.LastFetchedAt()),
	}))
}

// GetSystems 返回所有受监控系统的推导状态
func (h *NotificationHandler) GetSystems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.service.Systems()))
}

// GetHistory 返回历史归档
// 查询参数: status（按状态过滤）, include_archived, limit
func (h *NotificationHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("include_archived") == "true"
	history := h.service.History(includeArchived)

	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		want := models.Status(strings.ToUpper(status))
		if !want.Valid() {
			writeJSON(w, http.StatusOK, Fail("invalid status: "+status))
			return
		}
		filtered := history[:0]
		for _, n := range history {
			if n.Status == want {
				filtered = append(filtered, n)
			}
		}
		history = filtered
	}

	if limit := parseInt(r.URL.Query().Get("limit"), 0); limit > 0 && limit < len(history) {
		history = history[:limit]
	}

	writeJSON(w, http.StatusOK, Ok(history))
}

// Refresh 触发一次摄取周期
// 认证过期时刷新令牌并重试一次；仍失败则返回令牌过期码
func (h *NotificationHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := h.service.Ingest(ctx)
	if errors.Is(err, gmail.ErrAuthExpired) {
		if _, refreshErr := h.tokens.Refresh(ctx); refreshErr == nil {
			err = h.service.Ingest(ctx)
		}
	}

	if err != nil {
		if errors.Is(err, gmail.ErrAuthExpired) || errors.Is(err, gmail.ErrNoToken) {
			writeJSON(w, http.StatusUnauthorized, TokenExpired("authorization expired, sign in again"))
			return
		}
		h.logger.Error("Refresh failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("refresh failed, try again"))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"notifications": h.service.LiveNotifications(),
		"systems":       h.service.Systems(),
		"lastFetchedAt": nullableTime(h.service.LastFetchedAt()),
	}))
}

// MarkRead 把通知标记为已确认
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request, id string) {
	if !h.service.MarkRead(r.Context(), id) {
		writeJSON(w, http.StatusOK, Fail("notification not found: "+id))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"id": id}))
}

// Archive 把历史条目标记为已归档
func (h *NotificationHandler) Archive(w http.ResponseWriter, r *http.Request, id string) {
	if !h.service.Archive(r.Context(), id) {
		writeJSON(w, http.StatusOK, Fail("notification not found: "+id))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"id": id}))
}

// ClearHistory 清空历史归档
func (h *NotificationHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.service.ClearHistory(r.Context())
	writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "cleared"}))
}

// composeRequest 发送邮件请求体
type composeRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Compose 发送一封报警/指令邮件
func (h *NotificationHandler) Compose(w http.ResponseWriter, r *http.Request) {
	var req composeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}
	if req.To == "" || req.Subject == "" {
		writeJSON(w, http.StatusOK, Fail("to and subject are required"))
		return
	}

	if err := h.service.Compose(r.Context(), req.To, req.Subject, req.Body); err != nil {
		if errors.Is(err, gmail.ErrAuthExpired) || errors.Is(err, gmail.ErrNoToken) {
			writeJSON(w, http.StatusUnauthorized, TokenExpired("authorization expired, sign in again"))
			return
		}
		h.logger.Error("Compose failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to send message"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "sent"}))
}

// sampleAlertsRequest 注入样例报警请求体
type sampleAlertsRequest struct {
	From      string `json:"from"`
	Count     int    `json:"count"`
	Randomize bool   `json:"randomize"`
}

// SampleAlerts 向收件箱注入样例报警（开发模式）
func (h *NotificationHandler) SampleAlerts(w http.ResponseWriter, r *http.Request) {
	var req sampleAlertsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}
	if req.From == "" {
		writeJSON(w, http.StatusOK, Fail("from is required"))
		return
	}
	if req.Count <= 0 || req.Count > 50 {
		req.Count = 10
	}

	sent, errs := h.service.SendSampleAlerts(r.Context(), req.From, req.Count, req.Randomize)
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"sent":   sent,
		"errors": errs,
	}))
}

// Health 健康检查
func (h *NotificationHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return n
}

// nullableTime 零值时间序列化为 null（尚未摄取过）
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
