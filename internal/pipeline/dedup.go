package pipeline

import (
	"sort"
	"strings"

	"github.com/joeykb/smartescape-app/internal/models"
)

// groupKey 去重分组键：系统ID + 规范化正文（去空白+小写）
func groupKey(n models.Notification) string {
	return n.SystemID + "::" + strings.ToLower(strings.TrimSpace(n.Message))
}

// Deduplicate 把一次拉取的通知按 (systemId, 正文) 分组去重，生成实时视图
// 合并规则：字段取组内时间戳最新的成员；count = 组内成员数；
// isRead = 全组已读才算已读（逻辑与）
// 结果按时间戳降序排列
func Deduplicate(batch []models.Notification) []models.Notification {
	grouped := make(map[string]models.Notification)
	order := make([]string, 0, len(batch))

	for _, n := range batch {
		key := groupKey(n)
		existing, ok := grouped[key]
		if !ok {
			n.Count = 1
			grouped[key] = n
			order = append(order, key)
			continue
		}

		merged := existing
		if n.Timestamp.After(existing.Timestamp) {
			merged = n
		}
		merged.Count = existing.Count + 1
		merged.IsRead = existing.IsRead && n.IsRead
		grouped[key] = merged
	}

	// 按首次出现顺序收集，保证相同时间戳时输出稳定
	result := make([]models.Notification, 0, len(grouped))
	for _, key := range order {
		result = append(result, grouped[key])
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result
}
