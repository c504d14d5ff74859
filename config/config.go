package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAddr 默认监听地址
	DefaultAddr = ":8000"
	// DefaultMaxPayloadBytes 单个 WebSocket 入站帧的大小上限
	DefaultMaxPayloadBytes int64 = 1 << 16

	// DefaultInstanceCapacity 公开匹配时单个实例的人数上限
	DefaultInstanceCapacity = 3
	// DefaultJoinCodeDigits 加入码位数
	DefaultJoinCodeDigits = 4
	// DefaultPingInterval 广播连接的心跳间隔
	DefaultPingInterval = time.Second
	// DefaultPongWait ping 超过该时长未收到 pong 即视为广播连接断开
	DefaultPongWait = 5 * time.Second
	// DefaultJoinBroadcastDelay 入房后首次推送名单前的等待，留给新玩家挂接广播连接
	DefaultJoinBroadcastDelay = time.Second
	// DefaultMaxDisplacement 同一关卡内相邻两次 play 事件允许的单轴位移，0 表示关闭该检查
	DefaultMaxDisplacement = 50.0
	// DefaultViolationsBeforeBan 为 0 时首次违规即封禁
	DefaultViolationsBeforeBan = 0

	DefaultStoreDriver = "memory"

	DefaultLogLevel      = "info"
	DefaultLogPath       = "server.log"
	DefaultLogMaxSizeMB  = 10
	DefaultLogMaxBackups = 3
	DefaultLogMaxAgeDays = 7
	DefaultLogCompress   = false
	DefaultLogStderr     = true
)

// Config 服务运行期的全部配置
type Config struct {
	Address         string
	AllowedOrigins  []string
	MaxPayloadBytes int64
	Match           MatchConfig
	Store           StoreConfig
	Logging         LoggingConfig
}

// MatchConfig 匹配、心跳与反作弊相关参数
type MatchConfig struct {
	InstanceCapacity    int
	JoinCodeDigits      int
	PingInterval        time.Duration
	PongWait            time.Duration
	JoinBroadcastDelay  time.Duration
	MaxDisplacement     float64
	ViolationsBeforeBan int
}

// StoreConfig 进度存储的驱动与地址
type StoreConfig struct {
	Driver      string
	DatabaseURL string
	RedisURL    string
}

// LoggingConfig 日志输出与滚动策略
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Stderr     bool
}

// Default 返回未设置任何环境变量时的默认配置
func Default() *Config {
	return &Config{
		Address:         DefaultAddr,
		MaxPayloadBytes: DefaultMaxPayloadBytes,
		Match: MatchConfig{
			InstanceCapacity:    DefaultInstanceCapacity,
			JoinCodeDigits:      DefaultJoinCodeDigits,
			PingInterval:        DefaultPingInterval,
			PongWait:            DefaultPongWait,
			JoinBroadcastDelay:  DefaultJoinBroadcastDelay,
			MaxDisplacement:     DefaultMaxDisplacement,
			ViolationsBeforeBan: DefaultViolationsBeforeBan,
		},
		Store: StoreConfig{Driver: DefaultStoreDriver},
		Logging: LoggingConfig{
			Level:      DefaultLogLevel,
			Path:       DefaultLogPath,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
			Stderr:     DefaultLogStderr,
		},
	}
}

// Load 在 Default 基础上读取 COOP_* 环境变量；所有非法取值汇总到同一个 error 返回
func Load() (*Config, error) {
	cfg := Default()
	cfg.Address = getString("COOP_ADDR", cfg.Address)
	cfg.AllowedOrigins = parseList(os.Getenv("COOP_ALLOWED_ORIGINS"))
	cfg.Store.Driver = strings.ToLower(getString("COOP_STORE_DRIVER", cfg.Store.Driver))
	cfg.Store.DatabaseURL = strings.TrimSpace(os.Getenv("COOP_DATABASE_URL"))
	cfg.Store.RedisURL = strings.TrimSpace(os.Getenv("COOP_REDIS_URL"))
	cfg.Logging.Level = getString("COOP_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Path = getString("COOP_LOG_PATH", cfg.Logging.Path)

	p := &problems{}
	p.int64("COOP_MAX_PAYLOAD_BYTES", &cfg.MaxPayloadBytes, 1)
	p.int("COOP_INSTANCE_CAPACITY", &cfg.Match.InstanceCapacity, 1)
	p.int("COOP_JOIN_CODE_DIGITS", &cfg.Match.JoinCodeDigits, 1)
	p.duration("COOP_PING_INTERVAL", &cfg.Match.PingInterval)
	p.duration("COOP_PONG_WAIT", &cfg.Match.PongWait)
	p.duration("COOP_JOIN_BROADCAST_DELAY", &cfg.Match.JoinBroadcastDelay)
	p.float("COOP_MAX_DISPLACEMENT", &cfg.Match.MaxDisplacement)
	p.int("COOP_VIOLATIONS_BEFORE_BAN", &cfg.Match.ViolationsBeforeBan, 0)
	p.int("COOP_LOG_MAX_SIZE_MB", &cfg.Logging.MaxSizeMB, 1)
	p.int("COOP_LOG_MAX_BACKUPS", &cfg.Logging.MaxBackups, 0)
	p.int("COOP_LOG_MAX_AGE_DAYS", &cfg.Logging.MaxAgeDays, 0)
	p.bool("COOP_LOG_COMPRESS", &cfg.Logging.Compress)
	p.bool("COOP_LOG_STDERR", &cfg.Logging.Stderr)

	if cfg.Match.JoinCodeDigits > 9 {
		p.add("COOP_JOIN_CODE_DIGITS must be at most 9, got %d", cfg.Match.JoinCodeDigits)
	}

	switch cfg.Store.Driver {
	case "memory":
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			p.add("COOP_DATABASE_URL is required when COOP_STORE_DRIVER=postgres")
		}
	case "redis":
		if cfg.Store.RedisURL == "" {
			p.add("COOP_REDIS_URL is required when COOP_STORE_DRIVER=redis")
		}
	default:
		p.add("COOP_STORE_DRIVER must be one of memory, postgres, redis, got %q", cfg.Store.Driver)
	}

	if err := p.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type problems struct {
	list []string
}

func (p *problems) add(format string, args ...any) {
	p.list = append(p.list, fmt.Sprintf(format, args...))
}

func (p *problems) err() error {
	if len(p.list) == 0 {
		return nil
	}
	return errors.New(strings.Join(p.list, "; "))
}

func (p *problems) int(key string, dst *int, min int) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < min {
		p.add("%s must be an integer >= %d, got %q", key, min, raw)
		return
	}
	*dst = value
}

func (p *problems) int64(key string, dst *int64, min int64) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < min {
		p.add("%s must be an integer >= %d, got %q", key, min, raw)
		return
	}
	*dst = value
}

func (p *problems) float(key string, dst *float64) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		p.add("%s must be a non-negative number, got %q", key, raw)
		return
	}
	*dst = value
}

func (p *problems) duration(key string, dst *time.Duration) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		p.add("%s must be a positive duration, got %q", key, raw)
		return
	}
	*dst = value
}

func (p *problems) bool(key string, dst *bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		p.add("%s must be a boolean value, got %q", key, raw)
		return
	}
	*dst = value
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			values = append(values, item)
		}
	}
	return values
}
