package store

import (
	"context"
	"sync"
)

// Memory 进程内存储，进程退出即丢失；用于本地试跑和测试
type Memory struct {
	mu     sync.RWMutex
	levels map[string]int
}

func NewMemory() *Memory {
	return &Memory{levels: make(map[string]int)}
}

func (m *Memory) Load(_ context.Context, id string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	level, ok := m.levels[id]
	if !ok {
		return 0, ErrNotFound
	}
	return level, nil
}

func (m *Memory) Save(_ context.Context, id string, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.levels[id]; ok && cur >= level {
		return nil
	}
	m.levels[id] = level
	return nil
}

func (m *Memory) Close() error { return nil }
