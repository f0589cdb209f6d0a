package pipeline

import (
	"sort"

	"github.com/joeykb/smartescape-app/internal/models"
)

// DefaultHistoryCap 历史记录默认上限
const DefaultHistoryCap = 1000

// MergeHistory 把一批新拉取的通知（未去重，一封邮件一条）合并进持久化历史
// - 已存在的ID：用新数据覆盖可变字段，但保留本地的 isArchived 标记
//   （归档是纯本地动作，邮件源不会回报）
// - 新ID：追加
// - 全量按时间戳降序重排，截断到 cap 条（旧尾部静默淘汰）
// 幂等：同一批次合并两次与合并一次结果相同
func MergeHistory(existing, incoming []models.Notification, cap int) []models.Notification {
	if cap <= 0 {
		cap = DefaultHistoryCap
	}

	incomingByID := make(map[string]models.Notification, len(incoming))
	for _, n := range incoming {
		incomingByID[n.ID] = n
	}

	seen := make(map[string]bool, len(existing))
	merged := make([]models.Notification, 0, len(existing)+len(incoming))

	// 先刷新已有记录
	for _, n := range existing {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true

		if fresh, ok := incomingByID[n.ID]; ok {
			// 历史记录不携带实时视图的 count
			fresh.Count = 0
			fresh.IsArchived = n.IsArchived
			merged = append(merged, fresh)
		} else {
			merged = append(merged, n)
		}
	}

	// 再追加没见过的新记录
	for _, n := range incoming {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		n.Count = 0
		merged = append(merged, n)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})

	if len(merged) > cap {
		merged = merged[:cap]
	}
	return merged
}
