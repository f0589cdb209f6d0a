package parser

import (
	"regexp"
	"strings"

	"github.com/joeykb/smartescape-app/internal/models"
)

// systemIDRule 系统ID提取规则（按顺序尝试，首个命中生效）
type systemIDRule struct {
	pattern *regexp.Regexp
	// extract 从匹配结果提取规范形式的系统ID
	extract func(match []string) string
}

// systemIDRules 提取规则表
// 规则1: 固定编码格式 SMART-ESC-XXX
// 规则2: 自由文本 "System ID: XXX" / "SystemID: XXX"
var systemIDRules = []systemIDRule{
	{
		pattern: regexp.MustCompile(`(?i)SMART-ESC-\w+`),
		extract: func(match []string) string { return strings.ToUpper(match[0]) },
	},
	{
		pattern: regexp.MustCompile(`(?i)system\s*id:\s*(\S+)`),
		extract: func(match []string) string { return strings.ToUpper(match[1]) },
	},
}

// ExtractSystemID 从主题+正文中提取系统ID，未识别时返回 UNKNOWN
func ExtractSystemID(subject, body string) string {
	combined := subject + " " + body

	for _, rule := range systemIDRules {
		if match := rule.pattern.FindStringSubmatch(combined); match != nil {
			return rule.extract(match)
		}
	}
	return models.UnknownSystemID
}

// statusRule 状态分类规则
type statusRule struct {
	status   models.Status
	keywords []string
}

// statusRules 关键字分类表（按优先级排列，与关键字在文中的位置无关）
var statusRules = []statusRule{
	{models.StatusOffline, []string{"OFFLINE", "HEARTBEAT LOST", "DISCONNECTED"}},
	{models.StatusAlert, []string{"ALERT", "FIRE", "CRITICAL", "EMERGENCY"}},
	{models.StatusWarning, []string{"WARNING", "WARN"}},
}

// ExtractStatus 从主题+正文中推导状态
// 分类器不会产出 HEALTHY（HEALTHY 仅由系统状态推导在无未读报警时给出）
func ExtractStatus(subject, body string) models.Status {
	combined := strings.ToUpper(subject + " " + body)

	for _, rule := range statusRules {
		for _, kw := range rule.keywords {
			if strings.Contains(combined, kw) {
				return rule.status
			}
		}
	}
	return models.StatusInfo
}
