package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// saveIfHigher 原子地比较并写入，只保留更高的关卡
var saveIfHigher = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur == false or tonumber(cur) < tonumber(ARGV[1]) then
	redis.call('SET', KEYS[1], ARGV[1])
	return 1
end
return 0
`)

// Redis 以 coop:level:<id> 为键保存最高关卡
type Redis struct {
	rdb *redis.Client
}

// OpenRedis 解析 redis:// 地址并确认可连通
func OpenRedis(ctx context.Context, rawURL string) (*Redis, error) {
	opts, err := parseRedisURL(rawURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

func (r *Redis) Load(ctx context.Context, id string) (int, error) {
	level, err := r.rdb.Get(ctx, levelKey(id)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load progress %s: %w", id, err)
	}
	return level, nil
}

func (r *Redis) Save(ctx context.Context, id string, level int) error {
	if err := saveIfHigher.Run(ctx, r.rdb, []string{levelKey(id)}, level).Err(); err != nil {
		return fmt.Errorf("save progress %s: %w", id, err)
	}
	return nil
}

func (r *Redis) Close() error { return r.rdb.Close() }

func levelKey(id string) string { return "coop:level:" + strings.TrimSpace(id) }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported redis scheme: %q", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
