package pipeline

import (
	"sort"

	"github.com/joeykb/smartescape-app/internal/models"
)

// DeriveSystems 从一批通知推导每个受监控系统的当前状态
// - lastSeen: 该系统所有通知（无论是否已读）的最大时间戳
// - status: 仅看未读通知中排名最高的状态；没有未读通知时为 HEALTHY
//   （确认处理即是运维人员清除系统告警态的手段，审计记录仍保留在历史中）
func DeriveSystems(batch []models.Notification) []models.System {
	systemMap := make(map[string]models.System)
	order := make([]string, 0)

	// 第一遍：收集所有系统及其最近活动时间
	for _, n := range batch {
		existing, ok := systemMap[n.SystemID]
		if !ok {
			systemMap[n.SystemID] = models.System{
				ID:       n.SystemID,
				Status:   models.StatusHealthy,
				LastSeen: n.Timestamp,
			}
			order = append(order, n.SystemID)
			continue
		}
		if n.Timestamp.After(existing.LastSeen) {
			existing.LastSeen = n.Timestamp
			systemMap[n.SystemID] = existing
		}
	}

	// 第二遍：只用未读通知决定状态
	for _, n := range batch {
		if n.IsRead {
			continue
		}
		existing := systemMap[n.SystemID]
		if n.Status.Rank() > existing.Status.Rank() {
			existing.Status = n.Status
			systemMap[n.SystemID] = existing
		}
	}

	result := make([]models.System, 0, len(systemMap))
	for _, id := range order {
		result = append(result, systemMap[id])
	}

	// 按最近活动时间降序，方便前端直接展示
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].LastSeen.After(result[j].LastSeen)
	})
	return result
}
