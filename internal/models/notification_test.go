package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusRankOrdering(t *testing.T) {
	// HEALTHY < INFO < WARNING < OFFLINE < ALERT
	ordered := []Status{StatusHealthy, StatusInfo, StatusWarning, StatusOffline, StatusAlert}
	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, ordered[i].Rank(), ordered[i-1].Rank())
	}
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusAlert.Valid())
	assert.False(t, Status("BOGUS").Valid())
	assert.Equal(t, 0, Status("BOGUS").Rank())
}

func TestNotificationJSONFieldNames(t *testing.T) {
	n := Notification{
		ID:        "m1",
		SystemID:  "SMART-ESC-001",
		Timestamp: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Status:    StatusAlert,
		Message:   "Fire detected",
		IsRead:    false,
	}

	data, err := json.Marshal(n)
	require.NoError(t, err)

	// 与前端契约一致的 camelCase 字段名
	assert.Contains(t, string(data), `"systemId":"SMART-ESC-001"`)
	assert.Contains(t, string(data), `"isRead":false`)
	// 零值的可选字段不输出
	assert.NotContains(t, string(data), "isArchived")
	assert.NotContains(t, string(data), "count")
}
