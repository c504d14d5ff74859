package server

import (
	"time"

	"coopserver/config"
)

// Relay 维护每个会话的广播连接，推送同伴状态并保持心跳
type Relay struct {
	joinDelay    time.Duration
	pingInterval time.Duration
	pongWait     time.Duration
	metrics      *Metrics
}

func NewRelay(cfg config.MatchConfig, metrics *Metrics) *Relay {
	return &Relay{
		joinDelay:    cfg.JoinBroadcastDelay,
		pingInterval: cfg.PingInterval,
		pongWait:     cfg.PongWait,
		metrics:      metrics,
	}
}

// Attach 挂接广播连接：只允许从未挂接过渡到已挂接
func (r *Relay) Attach(p *PlayerSession, s Sender) error {
	if p.Banned() {
		return ErrBanned
	}
	if err := p.attachBroadcast(s); err != nil {
		return err
	}
	Log.Infof("broadcast attached id=%s", p.ID)
	return nil
}

// Detach 解除并关闭广播连接；可重复调用
func (r *Relay) Detach(p *PlayerSession, s Sender) {
	if p.detachBroadcast(s) {
		Log.Infof("broadcast detached id=%s", p.ID)
	}
	s.Close()
}

// BroadcastUpdate 把实例的完整名单推给与 from 同关卡的其他成员，返回投递数
func (r *Relay) BroadcastUpdate(g *GameInstance, from *PlayerSession) int {
	level := from.State().Level
	return r.push(g, func(p *PlayerSession) bool {
		return p != from && p.State().Level == level
	})
}

// BroadcastRoster 名单变化（加入、离开）时推给所有成员
func (r *Relay) BroadcastRoster(g *GameInstance) int {
	return r.push(g, func(*PlayerSession) bool { return true })
}

// ScheduleRoster 延迟推送名单，留时间给新成员挂接广播连接
func (r *Relay) ScheduleRoster(g *GameInstance) {
	time.AfterFunc(r.joinDelay, func() { r.BroadcastRoster(g) })
}

func (r *Relay) push(g *GameInstance, want func(*PlayerSession) bool) int {
	members := g.Members()
	players := make([]PlayerState, 0, len(members))
	for _, p := range members {
		players = append(players, p.State())
	}
	payload := encode(updateMessage{Type: TypeUpdate, GameID: g.ID, Players: players})

	sent := 0
	for _, p := range members {
		if p.Banned() || !want(p) {
			continue
		}
		b := p.Broadcast()
		if b == nil {
			continue
		}
		if b.Enqueue(payload) {
			sent++
		}
	}
	r.metrics.incUpdates(sent)
	return sent
}
