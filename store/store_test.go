package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"coopserver/config"
)

// exerciseMonotonic 各驱动共用的单调写入场景
func exerciseMonotonic(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	id := uuid.NewString()

	if _, err := s.Load(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for fresh id, got %v", err)
	}
	for _, level := range []int{3, 2, 3} {
		if err := s.Save(ctx, id, level); err != nil {
			t.Fatalf("save %d: %v", level, err)
		}
	}
	got, err := s.Load(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != 3 {
		t.Fatalf("expected level 3, got %d", got)
	}
	if err := s.Save(ctx, id, 4); err != nil {
		t.Fatalf("save 4: %v", err)
	}
	if got, _ := s.Load(ctx, id); got != 4 {
		t.Fatalf("expected level 4 after raise, got %d", got)
	}
}

func TestMemoryNeverRegresses(t *testing.T) {
	exerciseMonotonic(t, NewMemory())
}

func TestPostgresNeverRegresses(t *testing.T) {
	dsn := os.Getenv("COOP_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("COOP_TEST_DATABASE_URL not set")
	}
	s, err := OpenPostgres(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer s.Close()
	exerciseMonotonic(t, s)
}

func TestRedisNeverRegresses(t *testing.T) {
	raw := os.Getenv("COOP_TEST_REDIS_URL")
	if raw == "" {
		t.Skip("COOP_TEST_REDIS_URL not set")
	}
	s, err := OpenRedis(context.Background(), raw)
	if err != nil {
		t.Fatalf("open redis: %v", err)
	}
	defer s.Close()
	exerciseMonotonic(t, s)
}

func TestParseRedisURL(t *testing.T) {
	opts, err := parseRedisURL("redis://:secret@cache.local:6380/2")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.Addr != "cache.local:6380" || opts.Password != "secret" || opts.DB != 2 {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if _, err := parseRedisURL("http://cache.local"); err == nil {
		t.Fatalf("expected scheme error")
	}
	if _, err := parseRedisURL("redis://cache.local/x"); err == nil {
		t.Fatalf("expected db error")
	}
}

func TestOpenSelectsMemory(t *testing.T) {
	s, err := Open(context.Background(), config.StoreConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Fatalf("expected *Memory, got %T", s)
	}
	if _, err := Open(context.Background(), config.StoreConfig{Driver: "etcd"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
