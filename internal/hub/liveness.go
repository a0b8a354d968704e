package hub

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// LivenessMonitor probes every open connection on a fixed interval and
// terminates the ones that never answered the previous probe. Closing
// a connection drives the normal unregister path in its read loop, so
// an unresponsive socket is gone from both registries within two
// intervals of its last answered probe.
type LivenessMonitor struct {
	hub      *Hub
	interval time.Duration
}

func NewLivenessMonitor(h *Hub, interval time.Duration) *LivenessMonitor {
	return &LivenessMonitor{hub: h, interval: interval}
}

func (m *LivenessMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *LivenessMonitor) sweep() {
	for _, conn := range m.hub.Conns() {
		if err := conn.Probe(); err != nil {
			log.Info().Err(err).Str("module", "hub.liveness").Str("conn", string(conn.ID())).Msg("terminating unresponsive connection")
			m.hub.Metrics.Evictions.Inc()
			conn.Close()
		}
	}
}
