package server

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"coopserver/config"
	"coopserver/store"
)

const persistTimeout = 5 * time.Second

var (
	// ErrSessionNotFound broadcast 连接携带的标识没有对应的在线会话
	ErrSessionNotFound = errors.New("session not found")
	// ErrAlreadyAttached 会话已挂接广播连接
	ErrAlreadyAttached = errors.New("broadcast already attached")
	// ErrBanned 会话已被封禁
	ErrBanned = errors.New("session banned")
)

// Server 协调服务：握手、匹配、校验 play 事件、中继与持久化
type Server struct {
	settings  *Settings
	names     *NameRegistry
	manager   *GameManager
	validator *Validator
	relay     *Relay
	store     store.Store
	metrics   *Metrics

	upgrader   websocket.Upgrader
	maxPayload int64

	mu       sync.Mutex
	sessions map[string]*PlayerSession

	persistWG sync.WaitGroup
}

// New 组装服务；metrics 可为 nil
func New(cfg *config.Config, st store.Store, metrics *Metrics) *Server {
	seed := time.Now().UnixNano()
	settings := NewSettings(cfg.Match)
	s := &Server{
		settings:   settings,
		names:      NewNameRegistry(seed),
		manager:    NewGameManager(settings, cfg.Match.JoinCodeDigits, seed+1, metrics),
		validator:  NewValidator(settings),
		relay:      NewRelay(cfg.Match, metrics),
		store:      st,
		metrics:    metrics,
		upgrader:   newUpgrader(cfg.AllowedOrigins),
		maxPayload: cfg.MaxPayloadBytes,
		sessions:   make(map[string]*PlayerSession),
	}
	s.manager.onRosterChange = func(g *GameInstance) { s.relay.BroadcastRoster(g) }
	return s
}

func (s *Server) Manager() *GameManager { return s.manager }
func (s *Server) Settings() *Settings   { return s.settings }

// Wait 等待所有进行中的进度保存完成
func (s *Server) Wait() { s.persistWG.Wait() }

// servePrimary 主连接：握手 → 加载进度 → 匹配 → 循环处理 play/exit
func (s *Server) servePrimary(c *ClientConn, m *InitMessage) {
	// 顺手清理空实例
	s.manager.Sweep()

	id, name := s.names.Normalize(m.UniqueID, m.Nickname)
	p := NewPlayerSession(id, name, c)
	if !s.register(p) {
		s.names.Release(name)
		Log.Infof("rejecting handshake: id=%s already connected", id)
		c.sendError("session already active")
		return
	}
	s.metrics.addSessions(1)
	defer s.teardown(p)

	level := s.loadLevel(id)
	p.SetLevel(level)

	g, err := s.manager.Match(p, matchMode(m))
	if err != nil {
		Log.Errorf("matchmaking failed id=%s: %v", id, err)
		c.sendError("no game available")
		return
	}
	Log.Infof("handshake id=%s nickname=%s level=%d game=%s code=%s", id, name, level, g.ID, g.JoinCode)

	if level == NoLevel {
		level = 0
	}
	c.Enqueue(encode(initReply{Type: m.Type, UniqueID: id, Nickname: name, Level: level}))
	s.relay.ScheduleRoster(g)

	for {
		payload, err := c.ReadMessage()
		if err != nil {
			logClosure("primary", id, err)
			return
		}
		msg, err := ParseMessage(payload)
		if err != nil {
			s.metrics.incMalformed()
			Log.Debugf("dropping frame id=%s: %v", id, err)
			continue
		}
		switch ev := msg.(type) {
		case *PlayMessage:
			if !s.handlePlay(p, ev) {
				return
			}
		case *ExitMessage:
			Log.Infof("exit id=%s", id)
			return
		default:
			s.metrics.incMalformed()
			Log.Debugf("unexpected %s frame on primary socket id=%s", msg.messageType(), id)
		}
	}
}

func matchMode(m *InitMessage) MatchMode {
	switch {
	case m.Private:
		return MatchMode{Kind: MatchPrivate}
	case strings.TrimSpace(m.PinCode) != "":
		return MatchMode{Kind: MatchByCode, Code: strings.TrimSpace(m.PinCode)}
	default:
		return MatchMode{Kind: MatchOpen}
	}
}

// handlePlay 校验并应用一次 play 事件；返回 false 表示会话已被封禁
func (s *Server) handlePlay(p *PlayerSession, ev *PlayMessage) bool {
	if p.Banned() {
		return false
	}
	g := p.Instance()
	reject, reason, pos, dir := s.validator.Validate(ev, p, g)
	if reject {
		s.metrics.incViolation(reason)
		if !p.recordViolation(s.settings.ViolationsBeforeBan()) {
			return true
		}
		s.metrics.incBan()
		Log.Warnf("banned id=%s nickname=%s reason=%s violations=%d", p.ID, p.Nickname, reason, p.Violations())
		s.manager.RemovePlayer(p)
		return false
	}

	if p.apply(pos, ev.Level, dir) {
		s.saveAsync(p.ID, ev.Level)
	}
	s.metrics.incAccepted()

	st := p.State()
	p.Primary().Enqueue(encode(playReply{
		Type:      TypePlay,
		UniqueID:  p.ID,
		Nickname:  p.Nickname,
		Position:  st.Position,
		Level:     st.Level,
		Direction: st.Direction,
		PinCode:   g.JoinCode,
	}))
	s.relay.BroadcastUpdate(g, p)
	return true
}

// serveBroadcast 广播连接：挂接到同标识的会话并保持心跳，直到断开或收到 exit
// 退出时回收会话；心跳超时会关闭连接，读循环随之结束
func (s *Server) serveBroadcast(c *ClientConn, m *BroadcastMessage) {
	var p *PlayerSession
	if id, ok := CanonicalID(m.UniqueID); ok {
		p = s.lookup(id)
	}
	if p == nil {
		Log.Infof("broadcast attach failed id=%s: %v", m.UniqueID, ErrSessionNotFound)
		c.sendError(ErrSessionNotFound.Error())
		return
	}
	if err := s.relay.Attach(p, c); err != nil {
		Log.Infof("broadcast attach failed id=%s: %v", p.ID, err)
		c.sendError(err.Error())
		return
	}
	// 广播连接断开（含心跳超时）与主连接断开一样结束整个会话
	defer s.teardown(p)
	go s.relay.Keepalive(p, c)

	for {
		payload, err := c.ReadMessage()
		if err != nil {
			logClosure("broadcast", p.ID, err)
			return
		}
		msg, err := ParseMessage(payload)
		if err != nil {
			s.metrics.incMalformed()
			continue
		}
		if _, ok := msg.(*ExitMessage); ok {
			return
		}
	}
}

// teardown 每个会话只执行一次，由任一连接的断开触发：
// 保存进度 → 移出实例并通知同伴 → 释放昵称 → 关闭两条连接
// 实例变空时由 RemovePlayer 归还加入码并删除实例
func (s *Server) teardown(p *PlayerSession) {
	p.closeOnce.Do(func() {
		bcast := p.markClosed()
		if level := p.Level(); level != NoLevel {
			s.saveAsync(p.ID, level)
		}
		s.manager.RemovePlayer(p)
		s.names.Release(p.Nickname)
		s.unregister(p)
		if bcast != nil {
			s.relay.Detach(p, bcast)
		}
		p.Primary().Close()
		s.metrics.addSessions(-1)
		Log.Infof("teardown id=%s nickname=%s", p.ID, p.Nickname)
	})
}

func (s *Server) register(p *PlayerSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[p.ID]; ok {
		return false
	}
	s.sessions[p.ID] = p
	return true
}

func (s *Server) unregister(p *PlayerSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[p.ID] == p {
		delete(s.sessions, p.ID)
	}
}

func (s *Server) lookup(id string) *PlayerSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

// loadLevel 读取历史进度；从未保存过为 0，存储不可用时为 NoLevel
func (s *Server) loadLevel(id string) int {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	level, err := s.store.Load(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return 0
	case err != nil:
		s.metrics.incPersistFailure()
		Log.Errorf("load progress id=%s: %v", id, err)
		return NoLevel
	}
	return level
}

// saveAsync 尽力而为的保存，不阻塞调用方
func (s *Server) saveAsync(id string, level int) {
	s.persistWG.Add(1)
	go func() {
		defer s.persistWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.store.Save(ctx, id, level); err != nil {
			s.metrics.incPersistFailure()
			Log.Errorf("save progress id=%s level=%d: %v", id, level, err)
		}
	}()
}
