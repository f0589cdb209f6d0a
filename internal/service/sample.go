package service

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/joeykb/smartescape-app/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 样例报警数据（开发模式：向自己的收件箱注入测试邮件）

var sampleSystemIDs = []string{
	"SMART-ESC-001", "SMART-ESC-002", "SMART-ESC-003",
	"SMART-ESC-004", "SMART-ESC-005", "SMART-ESC-006",
}

var sampleStatuses = []models.Status{
	models.StatusAlert, models.StatusOffline, models.StatusWarning,
	models.StatusInfo, models.StatusHealthy,
}

var sampleMessages = map[models.Status][]string{
	models.StatusAlert: {
		"Fire detected in Zone A - Evacuate immediately",
		"Smoke alarm triggered on Floor 3",
		"Emergency: High temperature in Server Room B",
		"Critical: Gas leak detected in Kitchen Area",
		"Fire suppression system activated in Warehouse",
	},
	models.StatusOffline: {
		"Heartbeat lost - System unresponsive for 5 minutes",
		"Connection timeout - Last ping 10 minutes ago",
		"Network disconnected - Check hardware",
		"Sensor module offline - Battery may be depleted",
	},
	models.StatusWarning: {
		"Battery level below 20% - Charge recommended",
		"Sensor reading anomaly detected - Manual inspection advised",
		"Firmware update available - v3.2.1",
		"High humidity detected in Control Room",
	},
	models.StatusInfo: {
		"Daily system check completed successfully",
		"Scheduled maintenance window starting in 1 hour",
		"New device registered on network",
		"Configuration backup completed",
	},
	models.StatusHealthy: {
		"All systems operational",
		"Routine health check passed",
		"Sensors calibrated successfully",
		"Network connectivity stable",
	},
}

// SampleAlert 一条生成的样例报警
type SampleAlert struct {
	SystemID string
	Status   models.Status
	Message  string
}

// GenerateSampleAlerts 生成样例报警
// randomize=true 时状态均匀随机；否则按偏向严重状态的分布生成
func GenerateSampleAlerts(count int, randomize bool) []SampleAlert {
	alerts := make([]SampleAlert, 0, count)

	for i := 0; i < count; i++ {
		var status models.Status
		if randomize {
			status = sampleStatuses[rand.Intn(len(sampleStatuses))]
		} else {
			roll := rand.Float64()
			switch {
			case roll < 0.35:
				status = models.StatusAlert
			case roll < 0.55:
				status = models.StatusOffline
			case roll < 0.75:
				status = models.StatusWarning
			case roll < 0.9:
				status = models.StatusInfo
			default:
				status = models.StatusHealthy
			}
		}

		messages := sampleMessages[status]
		alerts = append(alerts, SampleAlert{
			SystemID: sampleSystemIDs[rand.Intn(len(sampleSystemIDs))],
			Status:   status,
			Message:  messages[rand.Intn(len(messages))],
		})
	}
	return alerts
}

// SendSampleAlerts 把样例报警作为真实邮件注入收件箱（带 UNREAD 标签）
// 返回成功条数和每条失败的描述
func (s *IngestService) SendSampleAlerts(ctx context.Context, from string, count int, randomize bool) (int, []string) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return 0, []string{err.Error()}
	}

	batchID := uuid.NewString()
	alerts := GenerateSampleAlerts(count, randomize)

	sent := 0
	var errs []string
	for i, alert := range alerts {
		subject := fmt.Sprintf("SmartEscape %s: %s", alert.Status, alert.SystemID)
		if err := s.mail.ImportMessage(ctx, token, from, subject, alert.Message); err != nil {
			errs = append(errs, fmt.Sprintf("alert %d: %v", i+1, err))
			continue
		}
		sent++
	}

	s.logger.Info("Sample alerts injected",
		zap.String("batch_id", batchID),
		zap.Int("sent", sent),
		zap.Int("failed", len(errs)),
	)
	return sent, errs
}

// Compose 通过 Gmail API 发送一封报警/指令邮件
func (s *IngestService) Compose(ctx context.Context, to, subject, body string) error {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return err
	}
	return s.mail.SendMessage(ctx, token, to, subject, body)
}
