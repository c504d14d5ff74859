package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const createPlayersTable = `
	CREATE TABLE IF NOT EXISTS players (
		unique_id  TEXT PRIMARY KEY,
		level      INTEGER NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// Postgres 基于 lib/pq 的进度存储，表 players(unique_id, level)
type Postgres struct {
	db *sql.DB
}

// OpenPostgres 连接数据库并确保表存在
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createPlayersTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create players table: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Load(ctx context.Context, id string) (int, error) {
	var level int
	err := p.db.QueryRowContext(ctx, `SELECT level FROM players WHERE unique_id = $1`, id).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load progress %s: %w", id, err)
	}
	return level, nil
}

// Save 只有新关卡更高时才覆盖，WHERE 子句保证单调
func (p *Postgres) Save(ctx context.Context, id string, level int) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO players (unique_id, level, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (unique_id)
		DO UPDATE SET level = EXCLUDED.level, updated_at = NOW()
		WHERE players.level < EXCLUDED.level
	`, id, level)
	if err != nil {
		return fmt.Errorf("save progress %s: %w", id, err)
	}
	return nil
}

func (p *Postgres) Close() error { return p.db.Close() }
