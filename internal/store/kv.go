package store

import (
	"context"
	"errors"
	"time"
)

// ErrMiss 键不存在
var ErrMiss = errors.New("store: key miss")

// KV 抽象的持久化 KV 存储（历史记录的落盘契约：启动时加载、变更时保存）
// 便于在单元测试中用内存实现替换
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}
