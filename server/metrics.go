package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 记录服务运行期的关键指标（用于监控与调试）
// 所有方法对 nil 接收者安全，便于单元测试不挂指标
type Metrics struct {
	registry *prometheus.Registry

	connections     *prometheus.CounterVec // 按连接角色：primary / broadcast
	sessions        prometheus.Gauge
	instances       prometheus.Gauge
	playsAccepted   prometheus.Counter
	violations      *prometheus.CounterVec // 按反作弊原因
	bans            prometheus.Counter
	updatesSent     prometheus.Counter
	malformed       prometheus.Counter
	persistFailures prometheus.Counter
	pingLatency     prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coop_connections_total",
			Help: "Accepted websocket connections by role.",
		}, []string{"role"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coop_sessions_active",
			Help: "Sessions that completed the handshake and have not torn down.",
		}),
		instances: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coop_instances_active",
			Help: "Registered game instances.",
		}),
		playsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coop_play_events_accepted_total",
			Help: "Play events that passed validation.",
		}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coop_anticheat_violations_total",
			Help: "Play events rejected by the validator, by reason.",
		}, []string{"reason"}),
		bans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coop_bans_total",
			Help: "Sessions banned.",
		}),
		updatesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coop_updates_sent_total",
			Help: "Update frames queued to broadcast sockets.",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coop_malformed_messages_total",
			Help: "Frames dropped as malformed.",
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coop_persist_failures_total",
			Help: "Progress loads or saves that failed.",
		}),
		pingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coop_ping_latency_seconds",
			Help:    "Round-trip time of keepalive pings on broadcast sockets.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
	}
	m.registry.MustRegister(
		m.connections, m.sessions, m.instances, m.playsAccepted, m.violations,
		m.bans, m.updatesSent, m.malformed, m.persistFailures, m.pingLatency,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler 输出 Prometheus 文本格式
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) incConnection(role string) {
	if m != nil {
		m.connections.WithLabelValues(role).Inc()
	}
}

func (m *Metrics) addSessions(delta float64) {
	if m != nil {
		m.sessions.Add(delta)
	}
}

func (m *Metrics) setInstances(n int) {
	if m != nil {
		m.instances.Set(float64(n))
	}
}

func (m *Metrics) incAccepted() {
	if m != nil {
		m.playsAccepted.Inc()
	}
}

func (m *Metrics) incViolation(reason Reason) {
	if m != nil {
		m.violations.WithLabelValues(string(reason)).Inc()
	}
}

func (m *Metrics) incBan() {
	if m != nil {
		m.bans.Inc()
	}
}

func (m *Metrics) incUpdates(n int) {
	if m != nil && n > 0 {
		m.updatesSent.Add(float64(n))
	}
}

func (m *Metrics) incMalformed() {
	if m != nil {
		m.malformed.Inc()
	}
}

func (m *Metrics) incPersistFailure() {
	if m != nil {
		m.persistFailures.Inc()
	}
}

func (m *Metrics) observePing(seconds float64) {
	if m != nil {
		m.pingLatency.Observe(seconds)
	}
}
