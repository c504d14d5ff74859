package store

import (
	"context"
	"errors"
	"fmt"

	"coopserver/config"
)

// ErrNotFound 表示该标识从未保存过进度
var ErrNotFound = errors.New("store: no progress recorded")

// Store 保存每个玩家到达过的最高关卡
// Save 只在新关卡高于已存值时写入，重复调用是安全的
type Store interface {
	Load(ctx context.Context, id string) (int, error)
	Save(ctx context.Context, id string, level int) error
	Close() error
}

// Open 按配置选择存储驱动
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "postgres":
		return OpenPostgres(ctx, cfg.DatabaseURL)
	case "redis":
		return OpenRedis(ctx, cfg.RedisURL)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
