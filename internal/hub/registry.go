package hub

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/reberkhan12-ai/live-azan/internal/core"
	"github.com/reberkhan12-ai/live-azan/internal/domain"
)

type deviceEntry struct {
	conn   core.Conn
	status domain.DeviceStatus
}

// DeviceRegistry is the per-channel map of playback-device connections,
// keyed by device id. A channel exists only while it has entries.
// The registry never closes adapter-owned connections itself.
type DeviceRegistry struct {
	mu       sync.RWMutex
	channels map[domain.ChannelID]map[domain.DeviceID]*deviceEntry
}

func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{
		channels: make(map[domain.ChannelID]map[domain.DeviceID]*deviceEntry),
	}
}

// Register inserts or overwrites the entry for (ch, id). It reports
// whether the id is new for the channel and returns the handle it
// displaced, if any, so the caller can force-close it.
func (r *DeviceRegistry) Register(ch domain.ChannelID, id domain.DeviceID, conn core.Conn) (fresh bool, prior core.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	devices, ok := r.channels[ch]
	if !ok {
		devices = make(map[domain.DeviceID]*deviceEntry)
		r.channels[ch] = devices
	}
	if old, ok := devices[id]; ok {
		prior = old.conn
	}
	devices[id] = &deviceEntry{conn: conn, status: domain.StatusOnline}

	log.Info().Str("module", "hub.registry").Str("channel", string(ch)).Str("device", string(id)).Bool("fresh", prior == nil).Msg("device registered")
	return prior == nil, prior
}

// Unregister removes the entry for (ch, id) only while conn still owns
// it. A socket whose registration was overwritten must not delete the
// newer entry on its way out.
func (r *DeviceRegistry) Unregister(ch domain.ChannelID, id domain.DeviceID, conn core.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	devices, ok := r.channels[ch]
	if !ok {
		return false
	}
	entry, ok := devices[id]
	if !ok || entry.conn != conn {
		return false
	}
	delete(devices, id)
	if len(devices) == 0 {
		delete(r.channels, ch)
	}
	log.Info().Str("module", "hub.registry").Str("channel", string(ch)).Str("device", string(id)).Msg("device unregistered")
	return true
}

// OnlineDeviceIDs reports the ids whose handle is still open. Order is
// map iteration order and not significant to callers.
func (r *DeviceRegistry) OnlineDeviceIDs(ch domain.ChannelID) []domain.DeviceID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := r.channels[ch]
	out := make([]domain.DeviceID, 0, len(devices))
	for id, entry := range devices {
		if entry.conn.Open() {
			out = append(out, id)
		}
	}
	return out
}

// UpdateStatus is a no-op when the (ch, id) pair is absent. It touches
// the reported status only; OnlineDeviceIDs keeps filtering on the
// handle state.
func (r *DeviceRegistry) UpdateStatus(ch domain.ChannelID, id domain.DeviceID, status domain.DeviceStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.channels[ch][id]
	if !ok {
		return false
	}
	entry.status = status
	log.Debug().Str("module", "hub.registry").Str("channel", string(ch)).Str("device", string(id)).Str("status", string(status)).Msg("status updated")
	return true
}

// Conns returns the open handles of a channel for fan-out.
func (r *DeviceRegistry) Conns(ch domain.ChannelID) []core.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := r.channels[ch]
	out := make([]core.Conn, 0, len(devices))
	for _, entry := range devices {
		if entry.conn.Open() {
			out = append(out, entry.conn)
		}
	}
	return out
}
