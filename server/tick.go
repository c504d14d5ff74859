package server

import (
	"strconv"
	"time"
)

// pinger 心跳需要的连接能力；ClientConn 实现它
type pinger interface {
	Sender
	Ping(token string) error
	Pongs() <-chan string
	Done() <-chan struct{}
}

// Keepalive 广播连接的心跳循环：ping → 等 pong → 推送往返延迟 → 等下一个间隔
// pong 超时等同于广播连接关闭
func (r *Relay) Keepalive(p *PlayerSession, c pinger) {
	ticker := time.NewTicker(r.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.Done():
			return
		case <-ticker.C:
		}

		sent := time.Now()
		token := strconv.FormatInt(sent.UnixNano(), 10)
		if err := c.Ping(token); err != nil {
			Log.Infof("ping failed id=%s: %v", p.ID, err)
			r.Detach(p, c)
			return
		}
		if !r.awaitPong(p, c, token, sent) {
			return
		}
	}
}

func (r *Relay) awaitPong(p *PlayerSession, c pinger, token string, sent time.Time) bool {
	timer := time.NewTimer(r.pongWait)
	defer timer.Stop()
	for {
		select {
		case data := <-c.Pongs():
			if data != token {
				// 过期的 pong
				continue
			}
			rtt := time.Since(sent)
			r.metrics.observePing(rtt.Seconds())
			c.Enqueue(encode(pingMessage{Type: TypePing, Latency: float64(rtt.Microseconds()) / 1000}))
			return true
		case <-timer.C:
			Log.Infof("pong timeout id=%s after %s", p.ID, r.pongWait)
			r.Detach(p, c)
			return false
		case <-c.Done():
			return false
		}
	}
}
