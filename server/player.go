package server

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// NoLevel 关卡未知（尚未加载进度或处于教程）
const NoLevel = -1

// Direction 玩家朝向
type Direction int

const (
	DirRight Direction = iota
	DirLeft
)

// ParseDirection 接受 "l"/"r" 以及 "left"/"right"
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "r", "right":
		return DirRight, true
	case "l", "left":
		return DirLeft, true
	default:
		return DirRight, false
	}
}

func (d Direction) String() string {
	if d == DirLeft {
		return "l"
	}
	return "r"
}

func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Direction) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	dir, ok := ParseDirection(s)
	if !ok {
		return fmt.Errorf("invalid direction %q", s)
	}
	*d = dir
	return nil
}

// BanState 封禁状态：未知 / 否 / 是
type BanState int

const (
	BanUnknown BanState = iota
	BanCleared
	BanActive
)

// Position 关卡内坐标
type Position [2]float64

// PlayerState 为广播给客户端的轻量状态
type PlayerState struct {
	Nickname  string    `json:"nickname"`
	Position  Position  `json:"position"`
	Level     int       `json:"level"`
	Direction Direction `json:"direction"`
}

// Sender 连接的发送端；ClientConn 是其唯一的生产实现
type Sender interface {
	Enqueue(b []byte) bool
	Close()
}

// PlayerSession 一条主连接对应的服务端玩家记录
// 状态字段只由通过校验的 play 事件或匹配层（关卡）修改
type PlayerSession struct {
	ID       string
	Nickname string

	mu         sync.Mutex
	level      int
	position   Position
	spawned    bool // 是否已收到过通过校验的 play 事件
	direction  Direction
	banned     BanState
	violations int

	primary   Sender
	broadcast Sender
	instance  *GameInstance
	closed    bool // teardown 已开始，不再接受广播挂接

	closeOnce sync.Once
}

// NewPlayerSession 在握手被接受时创建会话
func NewPlayerSession(id, nickname string, primary Sender) *PlayerSession {
	return &PlayerSession{
		ID:       id,
		Nickname: nickname,
		level:    NoLevel,
		primary:  primary,
	}
}

// State 返回当前对外公开的状态快照
func (p *PlayerSession) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	level := p.level
	if level == NoLevel {
		level = 0
	}
	return PlayerState{Nickname: p.Nickname, Position: p.position, Level: level, Direction: p.direction}
}

func (p *PlayerSession) Level() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *PlayerSession) SetLevel(level int) {
	p.mu.Lock()
	p.level = level
	p.mu.Unlock()
}

// lastKnown 返回反作弊需要的上一次合法状态
func (p *PlayerSession) lastKnown() (level int, pos Position, spawned bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level, p.position, p.spawned
}

// apply 写入一次通过校验的 play 事件，返回关卡是否提升
func (p *PlayerSession) apply(pos Position, level int, dir Direction) (raised bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	raised = level > p.level
	p.position = pos
	p.level = level
	p.direction = dir
	p.spawned = true
	if p.banned == BanUnknown {
		p.banned = BanCleared
	}
	return raised
}

func (p *PlayerSession) Banned() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.banned == BanActive
}

// recordViolation 记一次违规；超过容忍次数即封禁，返回是否已封禁
func (p *PlayerSession) recordViolation(tolerated int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.violations++
	if p.violations > tolerated {
		p.banned = BanActive
	}
	return p.banned == BanActive
}

func (p *PlayerSession) Violations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.violations
}

func (p *PlayerSession) Primary() Sender { return p.primary }

func (p *PlayerSession) Broadcast() Sender {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.broadcast
}

// attachBroadcast 挂接广播连接；会话已结束或已挂接时拒绝
func (p *PlayerSession) attachBroadcast(s Sender) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrSessionNotFound
	}
	if p.broadcast != nil {
		return ErrAlreadyAttached
	}
	p.broadcast = s
	return nil
}

// markClosed 标记会话进入 teardown，返回此刻挂接的广播连接
func (p *PlayerSession) markClosed() Sender {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.broadcast
}

// detachBroadcast 仅当当前挂接的仍是 s 时才解除
func (p *PlayerSession) detachBroadcast(s Sender) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.broadcast == nil || p.broadcast != s {
		return false
	}
	p.broadcast = nil
	return true
}

func (p *PlayerSession) Instance() *GameInstance {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.instance
}

func (p *PlayerSession) setInstance(g *GameInstance) {
	p.mu.Lock()
	p.instance = g
	p.mu.Unlock()
}
