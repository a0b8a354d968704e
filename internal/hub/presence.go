package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reberkhan12-ai/live-azan/internal/core"
	"github.com/reberkhan12-ai/live-azan/internal/domain"
)

// PresenceTracker computes presence snapshots and broadcasts them to a
// channel's streamers, rate-limited to one broadcast per debounce
// window per channel.
type PresenceTracker struct {
	devices   *DeviceRegistry
	streamers *StreamerRegistry
	directory core.DeviceDirectory
	delay     time.Duration
	metrics   *Metrics

	mu      sync.Mutex
	pending map[domain.ChannelID]struct{}
}

func NewPresenceTracker(devices *DeviceRegistry, streamers *StreamerRegistry, directory core.DeviceDirectory, delay time.Duration, metrics *Metrics) *PresenceTracker {
	return &PresenceTracker{
		devices:   devices,
		streamers: streamers,
		directory: directory,
		delay:     delay,
		metrics:   metrics,
		pending:   make(map[domain.ChannelID]struct{}),
	}
}

// Compute builds a snapshot from the live registry and the directory.
// Directory failures degrade to online-only counts; they never
// propagate.
func (p *PresenceTracker) Compute(ctx context.Context, ch domain.ChannelID) domain.PresenceSnapshot {
	online := p.devices.OnlineDeviceIDs(ch)

	registered, err := p.directory.ListDevices(ctx, ch)
	if err != nil {
		log.Warn().Err(err).Str("module", "hub.presence").Str("channel", string(ch)).Msg("directory unavailable, falling back to online-only presence")
		registered = online
	}
	if registered == nil {
		registered = []domain.DeviceID{}
	}

	total := len(registered)
	if len(online) > total {
		total = len(online)
	}
	offline := total - len(online)
	if offline < 0 {
		offline = 0
	}

	return domain.PresenceSnapshot{
		ChannelID:         ch,
		Total:             total,
		Online:            len(online),
		Offline:           offline,
		OnlineDevices:     online,
		RegisteredDevices: registered,
	}
}

// Schedule arms a debounced broadcast for the channel. A call while a
// timer is already pending is a no-op, so registration churn collapses
// into at most one broadcast per window.
func (p *PresenceTracker) Schedule(ch domain.ChannelID) {
	p.mu.Lock()
	if _, ok := p.pending[ch]; ok {
		p.mu.Unlock()
		return
	}
	p.pending[ch] = struct{}{}
	p.mu.Unlock()

	time.AfterFunc(p.delay, func() {
		p.mu.Lock()
		delete(p.pending, ch)
		p.mu.Unlock()
		p.Broadcast(context.Background(), ch)
	})
}

// Broadcast computes a snapshot and sends it to every current streamer
// of the channel immediately, skipping the debounce window. Used right
// after a streamer registers so a fresh dashboard is not left waiting.
func (p *PresenceTracker) Broadcast(ctx context.Context, ch domain.ChannelID) {
	snap := p.Compute(ctx, ch)

	frame, err := json.Marshal(struct {
		Type string `json:"type"`
		domain.PresenceSnapshot
	}{
		Type:             "presence-update",
		PresenceSnapshot: snap,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "hub.presence").Msg("marshal presence update")
		return
	}

	for _, conn := range p.streamers.Of(ch) {
		if err := conn.TrySend(frame); err != nil {
			log.Debug().Err(err).Str("module", "hub.presence").Str("conn", string(conn.ID())).Msg("presence send skipped")
		}
	}
	p.metrics.PresenceBroadcasts.Inc()
	log.Debug().Str("module", "hub.presence").Str("channel", string(ch)).Int("online", snap.Online).Int("total", snap.Total).Msg("presence broadcast")
}
