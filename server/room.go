package server

import (
	"errors"
	"sync"
)

// ErrNameInUse 实例内已有同名玩家
var ErrNameInUse = errors.New("nickname in use")

// GameInstance 共享同一关卡命名空间的一组会话；只做成员记账，没有后台协程
type GameInstance struct {
	ID       string
	JoinCode string
	Private  bool

	mu      sync.RWMutex
	players []*PlayerSession
	names   map[string]struct{}
}

// NewGameInstance 创建实例，初始化数据结构
func NewGameInstance(id, joinCode string, private bool) *GameInstance {
	return &GameInstance{
		ID:       id,
		JoinCode: joinCode,
		Private:  private,
		names:    make(map[string]struct{}),
	}
}

// Add 将玩家加入实例；同名时返回 ErrNameInUse
func (g *GameInstance) Add(p *PlayerSession) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addLocked(p, 0)
}

// addLocked capacity > 0 时额外检查人数上限
func (g *GameInstance) addLocked(p *PlayerSession, capacity int) error {
	if capacity > 0 && len(g.players) >= capacity {
		return ErrInstanceFull
	}
	if _, ok := g.names[p.Nickname]; ok {
		return ErrNameInUse
	}
	g.names[p.Nickname] = struct{}{}
	g.players = append(g.players, p)
	p.setInstance(g)
	return nil
}

// Remove 将玩家移出实例并释放其昵称；返回玩家原本是否在实例中
func (g *GameInstance) Remove(p *PlayerSession) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, cur := range g.players {
		if cur == p {
			g.players = append(g.players[:i], g.players[i+1:]...)
			delete(g.names, p.Nickname)
			p.setInstance(nil)
			return true
		}
	}
	return false
}

// Members 返回成员的有序副本
func (g *GameInstance) Members() []*PlayerSession {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*PlayerSession, len(g.players))
	copy(out, g.players)
	return out
}

// Sockets 返回成员的主连接，用于中继扇出
func (g *GameInstance) Sockets() []Sender {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Sender, 0, len(g.players))
	for _, p := range g.players {
		out = append(out, p.Primary())
	}
	return out
}

func (g *GameInstance) Has(p *PlayerSession) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, cur := range g.players {
		if cur == p {
			return true
		}
	}
	return false
}

func (g *GameInstance) HasName(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.names[name]
	return ok
}

func (g *GameInstance) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.players)
}

// InstanceSnapshot 供管理接口输出
type InstanceSnapshot struct {
	ID       string   `json:"id"`
	JoinCode string   `json:"join_code"`
	Private  bool     `json:"private"`
	Players  []string `json:"players"`
}

func (g *GameInstance) Snapshot() InstanceSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.players))
	for _, p := range g.players {
		names = append(names, p.Nickname)
	}
	return InstanceSnapshot{ID: g.ID, JoinCode: g.JoinCode, Private: g.Private, Players: names}
}
