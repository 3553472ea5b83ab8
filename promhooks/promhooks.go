// Package promhooks exports gateway connection events as Prometheus metrics.
package promhooks

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/bucketcache"
)

// Hooks implements bucketcache.Hooks by updating Prometheus collectors.
// Every collector is labelled by target ("host:port").
type Hooks struct {
	ConnectAttempts *prometheus.CounterVec
	ConnectFailures *prometheus.CounterVec
	ConnectionsLost *prometheus.CounterVec
	Reconnects      *prometheus.CounterVec
	ReconnectGiveUp *prometheus.CounterVec
	Up              *prometheus.GaugeVec
}

var _ bucketcache.Hooks = (*Hooks)(nil)

// New creates and registers all collectors with reg.
func New(reg prometheus.Registerer) *Hooks {
	h := &Hooks{
		ConnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bucketcache_connect_attempts_total",
			Help: "Connection handles dialed by the gateway",
		}, []string{"target"}),
		ConnectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bucketcache_connect_failures_total",
			Help: "Failed resolve, dial or open attempts",
		}, []string{"target"}),
		ConnectionsLost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bucketcache_connections_lost_total",
			Help: "Current handles that closed unexpectedly",
		}, []string{"target"}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bucketcache_reconnects_total",
			Help: "Supervised repairs that restored the connection",
		}, []string{"target"}),
		ReconnectGiveUp: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bucketcache_reconnect_give_ups_total",
			Help: "Supervised repairs abandoned after the attempt limit",
		}, []string{"target"}),
		Up: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bucketcache_connected",
			Help: "1 while the gateway holds an open handle to target",
		}, []string{"target"}),
	}
	reg.MustRegister(h.ConnectAttempts, h.ConnectFailures, h.ConnectionsLost,
		h.Reconnects, h.ReconnectGiveUp, h.Up)
	return h
}

func (h *Hooks) Connecting(target string) { h.ConnectAttempts.WithLabelValues(target).Inc() }

func (h *Hooks) Connected(target string) { h.Up.WithLabelValues(target).Set(1) }

func (h *Hooks) ConnectFailed(target string, _ error) {
	h.ConnectFailures.WithLabelValues(target).Inc()
}

func (h *Hooks) ConnectionLost(target string) {
	h.ConnectionsLost.WithLabelValues(target).Inc()
	h.Up.WithLabelValues(target).Set(0)
}

func (h *Hooks) Reconnected(target string, _ int) { h.Reconnects.WithLabelValues(target).Inc() }

func (h *Hooks) ReconnectGaveUp(target string, _ int, _ error) {
	h.ReconnectGiveUp.WithLabelValues(target).Inc()
}
