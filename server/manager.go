package server

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrInstanceFull 公开匹配时实例已达人数上限
	ErrInstanceFull = errors.New("instance full")
	// ErrJoinCodesExhausted 所有加入码都被活跃实例占用
	ErrJoinCodesExhausted = errors.New("no free join codes")
)

// MatchKind 匹配方式
type MatchKind int

const (
	MatchOpen MatchKind = iota
	MatchByCode
	MatchPrivate
)

// MatchMode 匹配请求；Code 仅在 MatchByCode 时有效
type MatchMode struct {
	Kind MatchKind
	Code string
}

func (m MatchMode) String() string {
	switch m.Kind {
	case MatchByCode:
		return "by_code(" + m.Code + ")"
	case MatchPrivate:
		return "private"
	default:
		return "open"
	}
}

// GameManager 管理所有活跃实例与在用加入码
// 不变式：每个活跃实例的加入码都在 codes 中；实例销毁时才归还
type GameManager struct {
	mu        sync.Mutex
	instances []*GameInstance
	codes     map[string]struct{}

	codeDigits int
	settings   *Settings
	rnd        *rand.Rand
	metrics    *Metrics

	// onRosterChange 成员离开后通知剩余玩家，由中继注入
	onRosterChange func(*GameInstance)
}

// NewGameManager 创建管理器；metrics 可为 nil
func NewGameManager(settings *Settings, codeDigits int, seed int64, metrics *Metrics) *GameManager {
	if codeDigits <= 0 {
		codeDigits = 4
	}
	return &GameManager{
		codes:      make(map[string]struct{}),
		codeDigits: codeDigits,
		settings:   settings,
		rnd:        rand.New(rand.NewSource(seed)),
		metrics:    metrics,
	}
}

// Create 分配新 ID 与一个未被占用的加入码并登记实例
func (m *GameManager) Create(private bool) (*GameInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(private)
}

func (m *GameManager) createLocked(private bool) (*GameInstance, error) {
	code, err := m.allocateCodeLocked()
	if err != nil {
		return nil, err
	}
	g := NewGameInstance(strings.ReplaceAll(uuid.NewString(), "-", ""), code, private)
	m.instances = append(m.instances, g)
	m.metrics.setInstances(len(m.instances))
	Log.Infof("created game id=%s code=%s private=%t", g.ID, g.JoinCode, g.Private)
	return g, nil
}

func (m *GameManager) allocateCodeLocked() (string, error) {
	space := 1
	for i := 0; i < m.codeDigits; i++ {
		space *= 10
	}
	if len(m.codes) >= space {
		return "", ErrJoinCodesExhausted
	}
	for {
		code := fmt.Sprintf("%0*d", m.codeDigits, m.rnd.Intn(space))
		if _, used := m.codes[code]; !used {
			m.codes[code] = struct{}{}
			return code, nil
		}
	}
}

// Match 按匹配方式为会话找到实例并加入
// 名字冲突在本地消化：换下一个候选实例或新建，不会暴露给客户端
func (m *GameManager) Match(p *PlayerSession, mode MatchMode) (*GameInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch mode.Kind {
	case MatchOpen:
		capacity := m.settings.InstanceCapacity()
		for _, g := range m.instances {
			if g.Private {
				continue
			}
			g.mu.Lock()
			err := g.addLocked(p, capacity)
			g.mu.Unlock()
			if err == nil {
				return g, nil
			}
		}
	case MatchByCode:
		for _, g := range m.instances {
			if g.JoinCode != mode.Code {
				continue
			}
			if err := g.Add(p); err == nil {
				return g, nil
			}
		}
	case MatchPrivate:
		g, err := m.createLocked(true)
		if err != nil {
			return nil, err
		}
		return g, g.Add(p)
	}

	g, err := m.createLocked(false)
	if err != nil {
		return nil, err
	}
	return g, g.Add(p)
}

// Sweep 删除空实例并归还其加入码；按需调用（每次握手），不依赖定时器
func (m *GameManager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.instances[:0]
	removed := 0
	for _, g := range m.instances {
		if g.Len() == 0 {
			delete(m.codes, g.JoinCode)
			Log.Infof("deleting empty game id=%s code=%s", g.ID, g.JoinCode)
			removed++
			continue
		}
		kept = append(kept, g)
	}
	for i := len(kept); i < len(m.instances); i++ {
		m.instances[i] = nil
	}
	m.instances = kept
	m.metrics.setInstances(len(m.instances))
	return removed
}

// RemovePlayer 将会话移出其实例；实例变空则立即销毁并归还加入码，否则通知剩余成员
func (m *GameManager) RemovePlayer(p *PlayerSession) *GameInstance {
	m.mu.Lock()
	g := p.Instance()
	if g == nil || !g.Remove(p) {
		m.mu.Unlock()
		return nil
	}
	empty := g.Len() == 0
	if empty {
		m.retireLocked(g)
	}
	notify := m.onRosterChange
	m.mu.Unlock()

	if !empty && notify != nil {
		notify(g)
	}
	return g
}

func (m *GameManager) retireLocked(g *GameInstance) {
	for i, cur := range m.instances {
		if cur == g {
			m.instances = append(m.instances[:i], m.instances[i+1:]...)
			delete(m.codes, g.JoinCode)
			m.metrics.setInstances(len(m.instances))
			Log.Infof("deleting empty game id=%s code=%s", g.ID, g.JoinCode)
			return
		}
	}
}

// Instances 活跃实例的副本
func (m *GameManager) Instances() []*GameInstance {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*GameInstance, len(m.instances))
	copy(out, m.instances)
	return out
}

// CodeInUse 加入码是否仍被占用
func (m *GameManager) CodeInUse(code string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.codes[code]
	return ok
}
