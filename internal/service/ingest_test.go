package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/joeykb/smartescape-app/internal/gmail"
	"github.com/joeykb/smartescape-app/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(mail *fakeMailAPI, kv *fakeKV, pub AlertPublisher) *IngestService {
	return NewIngestService(
		testConfig(),
		mail,
		&gmail.StaticTokenSource{AccessToken: "test-token"},
		kv,
		pub,
		zap.NewNop(),
	)
}

func TestIngest_PublishesAllThreeViews(t *testing.T) {
	mail := newFakeMailAPI(
		testMessage("m1", "SMART-ESC-001 Fire detected", "Evacuate now", at(10), true),
		testMessage("m2", "SMART-ESC-001 Fire detected", "Evacuate now", at(5), true),
		testMessage("m3", "SMART-ESC-002 daily report", "all good", at(1), false),
	)
	kv := newFakeKV()
	svc := newTestService(mail, kv, nil)

	require.NoError(t, svc.Ingest(context.Background()))

	// 实时视图：两封同文报警合并为一组
	live := svc.LiveNotifications()
	require.Len(t, live, 2)
	assert.Equal(t, "m3", live[0].ID)
	assert.Equal(t, "m2", live[1].ID)
	assert.Equal(t, 2, live[1].Count)

	// 系统状态：001 有未读 ALERT，002 只有已读 INFO
	systems := svc.Systems()
	require.Len(t, systems, 2)
	byID := map[string]models.System{}
	for _, s := range systems {
		byID[s.ID] = s
	}
	assert.Equal(t, models.StatusAlert, byID["SMART-ESC-001"].Status)
	assert.Equal(t, models.StatusHealthy, byID["SMART-ESC-002"].Status)

	// 历史归档：逐封保留
	history := svc.History(true)
	assert.Len(t, history, 3)

	assert.False(t, svc.LastFetchedAt().IsZero())

	// 已落盘
	raw, ok := kv.get("test:alert-history")
	require.True(t, ok)
	var persisted []models.Notification
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	assert.Len(t, persisted, 3)
}

func TestIngest_AuthExpiredLeavesStateUntouched(t *testing.T) {
	mail := newFakeMailAPI(
		testMessage("m1", "SMART-ESC-001 warning", "battery", at(10), true),
	)
	kv := newFakeKV()
	svc := newTestService(mail, kv, nil)

	// 先正常摄取一轮
	require.NoError(t, svc.Ingest(context.Background()))
	historyBefore := svc.History(true)
	liveBefore := svc.LiveNotifications()

	// 令牌过期
	mail.mu.Lock()
	mail.listErr = gmail.ErrAuthExpired
	mail.mu.Unlock()

	err := svc.Ingest(context.Background())
	require.ErrorIs(t, err, gmail.ErrAuthExpired)

	// 三个视图都保持不变
	assert.Equal(t, historyBefore, svc.History(true))
	assert.Equal(t, liveBefore, svc.LiveNotifications())
}

func TestIngest_CanceledCycleLeavesStateUntouched(t *testing.T) {
	mail := newFakeMailAPI(
		testMessage("m1", "SMART-ESC-001 Fire detected", "Evacuate now", at(10), true),
	)
	kv := newFakeKV()
	svc := newTestService(mail, kv, nil)

	// 先正常摄取一轮
	require.NoError(t, svc.Ingest(context.Background()))
	liveBefore := svc.LiveNotifications()
	systemsBefore := svc.Systems()
	historyBefore := svc.History(true)
	fetchedBefore := svc.LastFetchedAt()
	require.NotEmpty(t, liveBefore)

	// 列表成功后取消上下文：取消必须整周期失败，不能当作单封丢弃
	ctx, cancel := context.WithCancel(context.Background())
	mail.mu.Lock()
	mail.onList = cancel
	mail.mu.Unlock()

	err := svc.Ingest(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// 三个视图与拉取时间都保持不变
	assert.Equal(t, liveBefore, svc.LiveNotifications())
	assert.Equal(t, systemsBefore, svc.Systems())
	assert.Equal(t, historyBefore, svc.History(true))
	assert.Equal(t, fetchedBefore, svc.LastFetchedAt())
}

func TestIngest_DropsFailedMessages(t *testing.T) {
	mail := newFakeMailAPI(
		testMessage("m1", "SMART-ESC-001 warning", "battery", at(10), true),
		testMessage("m2", "SMART-ESC-002 fire", "evacuate", at(5), true),
	)
	mail.failIDs["m1"] = true
	svc := newTestService(mail, newFakeKV(), nil)

	require.NoError(t, svc.Ingest(context.Background()))

	history := svc.History(true)
	require.Len(t, history, 1)
	assert.Equal(t, "m2", history[0].ID)
}

func TestIngest_ArchiveSurvivesReIngest(t *testing.T) {
	mail := newFakeMailAPI(
		testMessage("m1", "SMART-ESC-001 fire", "evacuate", at(10), true),
	)
	kv := newFakeKV()
	svc := newTestService(mail, kv, nil)

	require.NoError(t, svc.Ingest(context.Background()))
	require.True(t, svc.Archive(context.Background(), "m1"))

	// 源端仍然报告同一封未读邮件
	require.NoError(t, svc.Ingest(context.Background()))

	history := svc.History(true)
	require.Len(t, history, 1)
	assert.True(t, history[0].IsArchived, "本地归档不能被摄取复活")

	// 默认视图过滤掉已归档条目
	assert.Empty(t, svc.History(false))
}

func TestIngest_PublishesOnlyNewSevereAlerts(t *testing.T) {
	mail := newFakeMailAPI(
		testMessage("m1", "SMART-ESC-001 fire", "evacuate", at(10), true),
		testMessage("m2", "SMART-ESC-002 heartbeat lost", "offline", at(5), true),
		testMessage("m3", "SMART-ESC-003 daily report", "info", at(1), true),
	)
	pub := &fakePublisher{}
	svc := newTestService(mail, newFakeKV(), pub)

	require.NoError(t, svc.Ingest(context.Background()))

	// 只发布 ALERT/OFFLINE
	published := pub.all()
	require.Len(t, published, 2)

	// 重复摄取不再发布已知ID
	require.NoError(t, svc.Ingest(context.Background()))
	assert.Len(t, pub.all(), 2)
}

func TestMarkRead_UpdatesLiveHistoryAndRemote(t *testing.T) {
	mail := newFakeMailAPI(
		testMessage("m1", "SMART-ESC-001 fire", "evacuate", at(10), true),
	)
	kv := newFakeKV()
	svc := newTestService(mail, kv, nil)
	require.NoError(t, svc.Ingest(context.Background()))

	require.True(t, svc.MarkRead(context.Background(), "m1"))

	live := svc.LiveNotifications()
	require.Len(t, live, 1)
	assert.True(t, live[0].IsRead)

	history := svc.History(true)
	require.Len(t, history, 1)
	assert.True(t, history[0].IsRead)

	// 远端同步是异步的尽力而为
	require.Eventually(t, func() bool {
		calls := mail.markReadCalls()
		return len(calls) == 1 && calls[0] == "m1"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMarkRead_UnknownID(t *testing.T) {
	svc := newTestService(newFakeMailAPI(), newFakeKV(), nil)
	assert.False(t, svc.MarkRead(context.Background(), "ghost"))
}

func TestLoadHistory_RoundTrip(t *testing.T) {
	kv := newFakeKV()
	history := []models.Notification{
		{ID: "m1", SystemID: "SMART-ESC-001", Status: models.StatusAlert, Timestamp: at(10), IsArchived: true},
	}
	data, err := json.Marshal(history)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), "test:alert-history", string(data), 0))

	svc := newTestService(newFakeMailAPI(), kv, nil)
	require.NoError(t, svc.LoadHistory(context.Background()))

	loaded := svc.History(true)
	require.Len(t, loaded, 1)
	assert.Equal(t, "m1", loaded[0].ID)
	assert.True(t, loaded[0].IsArchived)
}

func TestLoadHistory_EmptyStore(t *testing.T) {
	svc := newTestService(newFakeMailAPI(), newFakeKV(), nil)
	require.NoError(t, svc.LoadHistory(context.Background()))
	assert.Empty(t, svc.History(true))
}

func TestClearHistory(t *testing.T) {
	mail := newFakeMailAPI(
		testMessage("m1", "SMART-ESC-001 fire", "evacuate", at(10), true),
	)
	kv := newFakeKV()
	svc := newTestService(mail, kv, nil)
	require.NoError(t, svc.Ingest(context.Background()))

	svc.ClearHistory(context.Background())

	assert.Empty(t, svc.History(true))
	assert.Empty(t, svc.LiveNotifications())
	assert.Empty(t, svc.Systems())

	raw, ok := kv.get("test:alert-history")
	require.True(t, ok)
	assert.Equal(t, "null", raw)
}

func TestSendSampleAlerts(t *testing.T) {
	mail := newFakeMailAPI()
	svc := newTestService(mail, newFakeKV(), nil)

	sent, errs := svc.SendSampleAlerts(context.Background(), "me@example.com", 5, true)
	assert.Equal(t, 5, sent)
	assert.Empty(t, errs)
	assert.Len(t, mail.imported, 5)
}

func TestCompose(t *testing.T) {
	mail := newFakeMailAPI()
	svc := newTestService(mail, newFakeKV(), nil)

	require.NoError(t, svc.Compose(context.Background(), "ops@example.com", "SmartEscape TEST", "hello"))
	assert.Equal(t, []string{"SmartEscape TEST"}, mail.sent)
}

func TestGenerateSampleAlerts(t *testing.T) {
	alerts := GenerateSampleAlerts(20, false)
	require.Len(t, alerts, 20)
	for _, a := range alerts {
		assert.True(t, a.Status.Valid())
		assert.NotEmpty(t, a.SystemID)
		assert.NotEmpty(t, a.Message)
	}
}
