package service

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/joeykb/smartescape-app/internal/config"
	"github.com/joeykb/smartescape-app/internal/gmail"
	"github.com/joeykb/smartescape-app/internal/models"
	"github.com/joeykb/smartescape-app/internal/store"
)

// fakeMailAPI 仅用于单元测试的邮件协作方
type fakeMailAPI struct {
	mu        sync.Mutex
	messages  []*gmail.Message
	listErr   error
	failIDs   map[string]bool // 单封拉取失败的邮件ID
	onList    func()          // 列表成功返回前的回调
	readCalls []string
	imported  []string
	sent      []string
}

func newFakeMailAPI(messages ...*gmail.Message) *fakeMailAPI {
	return &fakeMailAPI{
		messages: messages,
		failIDs:  make(map[string]bool),
	}
}

func (f *fakeMailAPI) ListMessages(ctx context.Context, token string, maxResults int) ([]gmail.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	refs := make([]gmail.MessageRef, 0, len(f.messages))
	for _, m := range f.messages {
		refs = append(refs, gmail.MessageRef{ID: m.ID})
	}
	if len(refs) > maxResults {
		refs = refs[:maxResults]
	}
	if f.onList != nil {
		f.onList()
	}
	return refs, nil
}

func (f *fakeMailAPI) GetMessage(ctx context.Context, token string, id string) (*gmail.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[id] {
		return nil, &gmail.TransportError{Op: "get message", StatusCode: 500}
	}
	for _, m := range f.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, &gmail.TransportError{Op: "get message", StatusCode: 404}
}

func (f *fakeMailAPI) MarkRead(ctx context.Context, token string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readCalls = append(f.readCalls, id)
	return nil
}

func (f *fakeMailAPI) SendMessage(ctx context.Context, token string, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, subject)
	return nil
}

func (f *fakeMailAPI) ImportMessage(ctx context.Context, token string, from, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imported = append(f.imported, subject)
	return nil
}

func (f *fakeMailAPI) markReadCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.readCalls...)
}

// fakeKV 内存 KV（仅用于单元测试）
type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	val, ok := f.data[key]
	if !ok {
		return "", store.ErrMiss
	}
	return val, nil
}

func (f *fakeKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.data[key] = value
	return nil
}

func (f *fakeKV) get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	val, ok := f.data[key]
	return val, ok
}

// fakePublisher 记录发布的通知
type fakePublisher struct {
	mu        sync.Mutex
	published []models.Notification
}

func (f *fakePublisher) PublishAlert(ctx context.Context, n models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, n)
	return nil
}

func (f *fakePublisher) all() []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Notification(nil), f.published...)
}

// testConfig 测试用配置
func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Gmail.MaxResults = 20
	cfg.Ingest.HistoryKey = "test:alert-history"
	cfg.Ingest.HistoryCap = 1000
	return cfg
}

// testMessage 构造一封原始邮件
func testMessage(id, subject, body string, receivedAt time.Time, unread bool) *gmail.Message {
	labels := []string{"INBOX"}
	if unread {
		labels = append(labels, "UNREAD")
	}
	return &gmail.Message{
		ID:       id,
		LabelIDs: labels,
		Payload: &gmail.Payload{
			Headers: []gmail.Header{
				{Name: "Subject", Value: subject},
				{Name: "Date", Value: receivedAt.Format("Mon, 2 Jan 2006 15:04:05 -0700")},
			},
			Body: &gmail.Body{
				Data: base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(body)),
			},
		},
	}
}

func at(minutesAgo int) time.Time {
	return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC).Add(-time.Duration(minutesAgo) * time.Minute)
}
