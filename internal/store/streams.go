package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/joeykb/smartescape-app/internal/models"
)

// StreamPublisher 把新报警发布到 Redis Streams
// 推送通道（APNs/FCM 等）由外部消费者负责，这里只负责出口
type StreamPublisher struct {
	client *redis.Client
	stream string
}

func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream}
}

// PublishAlert 发布一条通知（JSON 序列化后用 XADD 写入）
func (p *StreamPublisher) PublishAlert(ctx context.Context, n models.Notification) error {
	jsonBytes, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":      string(jsonBytes),
			"system_id": n.SystemID,
			"status":    string(n.Status),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", p.stream, err)
	}
	return nil
}
