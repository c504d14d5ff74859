package server

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"coopserver/config"
)

// recordingSender 记录所有入队帧的假连接
type recordingSender struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (r *recordingSender) Enqueue(b []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.frames = append(r.frames, b)
	return true
}

func (r *recordingSender) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *recordingSender) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *recordingSender) messages(t *testing.T) []map[string]any {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]map[string]any, 0, len(r.frames))
	for _, f := range r.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("decode frame %s: %v", f, err)
		}
		out = append(out, m)
	}
	return out
}

func testMatchConfig() config.MatchConfig {
	return config.Default().Match
}

func newTestSession(id, name string, level int) *PlayerSession {
	p := NewPlayerSession(id, name, &recordingSender{})
	p.SetLevel(level)
	return p
}

// waitFor 轮询条件直到成立或超时
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
