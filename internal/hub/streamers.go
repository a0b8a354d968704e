package hub

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/reberkhan12-ai/live-azan/internal/core"
	"github.com/reberkhan12-ai/live-azan/internal/domain"
)

// StreamerRegistry is the per-channel set of producer and dashboard
// connections, disjoint from device connections. Membership only, no
// per-entry status.
type StreamerRegistry struct {
	mu       sync.RWMutex
	channels map[domain.ChannelID]map[core.Conn]struct{}
}

func NewStreamerRegistry() *StreamerRegistry {
	return &StreamerRegistry{
		channels: make(map[domain.ChannelID]map[core.Conn]struct{}),
	}
}

// Add is idempotent; re-adding a present handle reports false.
func (r *StreamerRegistry) Add(ch domain.ChannelID, conn core.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.channels[ch]
	if !ok {
		set = make(map[core.Conn]struct{})
		r.channels[ch] = set
	}
	if _, ok := set[conn]; ok {
		return false
	}
	set[conn] = struct{}{}
	log.Info().Str("module", "hub.streamers").Str("channel", string(ch)).Str("conn", string(conn.ID())).Msg("streamer added")
	return true
}

func (r *StreamerRegistry) Remove(ch domain.ChannelID, conn core.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.channels[ch]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(r.channels, ch)
	}
	log.Info().Str("module", "hub.streamers").Str("channel", string(ch)).Str("conn", string(conn.ID())).Msg("streamer removed")
}

func (r *StreamerRegistry) Of(ch domain.ChannelID) []core.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.channels[ch]
	out := make([]core.Conn, 0, len(set))
	for conn := range set {
		out = append(out, conn)
	}
	return out
}
