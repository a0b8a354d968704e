package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the hub.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	RegisteredDevices prometheus.Gauge
	ActiveStreamers   prometheus.Gauge

	FramesRelayed      prometheus.Counter
	BytesRelayed       prometheus.Counter
	ControlBroadcasts  prometheus.Counter
	PresenceBroadcasts prometheus.Counter

	QueueDropped prometheus.Counter
	Evictions    prometheus.Counter
	AuthFailures prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hub_connections_active",
			Help: "Number of open websocket connections",
		}),
		RegisteredDevices: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hub_devices_registered",
			Help: "Number of sockets registered as devices",
		}),
		ActiveStreamers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hub_streamers_active",
			Help: "Number of sockets registered as streamers",
		}),
		FramesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "hub_audio_frames_relayed_total",
			Help: "Binary audio frames accepted from streamers",
		}),
		BytesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "hub_audio_bytes_relayed_total",
			Help: "Binary audio bytes accepted from streamers",
		}),
		ControlBroadcasts: factory.NewCounter(prometheus.CounterOpts{
			Name: "hub_control_broadcasts_total",
			Help: "Control messages fanned out to devices",
		}),
		PresenceBroadcasts: factory.NewCounter(prometheus.CounterOpts{
			Name: "hub_presence_broadcasts_total",
			Help: "Presence snapshots sent to streamers",
		}),
		QueueDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "hub_queue_dropped_total",
			Help: "Payloads dropped by the bounded broadcast queue",
		}),
		Evictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "hub_liveness_evictions_total",
			Help: "Connections terminated by the liveness monitor",
		}),
		AuthFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "hub_auth_failures_total",
			Help: "Registration attempts rejected by the auth gate",
		}),
	}
}
