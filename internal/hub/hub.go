// Package hub owns all per-channel mutable state: the device and
// streamer registries, presence tracking and the outbound broadcast
// queue. A single Hub value is constructed at process start and passed
// by reference to every handler.
package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/reberkhan12-ai/live-azan/internal/core"
	"github.com/reberkhan12-ai/live-azan/internal/domain"
)

type Options struct {
	PresenceDelay time.Duration
	QueueCapacity int
	DrainBatch    int
}

func (o *Options) withDefaults() {
	if o.PresenceDelay <= 0 {
		o.PresenceDelay = time.Second
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = 1024
	}
	if o.DrainBatch <= 0 {
		o.DrainBatch = 200
	}
}

type Hub struct {
	Devices   *DeviceRegistry
	Streamers *StreamerRegistry
	Presence  *PresenceTracker
	Queue     *BroadcastQueue
	Directory core.DeviceDirectory
	Metrics   *Metrics

	mu    sync.RWMutex
	conns map[core.ConnID]core.Conn
}

func New(directory core.DeviceDirectory, opts Options, reg prometheus.Registerer) *Hub {
	opts.withDefaults()

	metrics := NewMetrics(reg)
	devices := NewDeviceRegistry()
	streamers := NewStreamerRegistry()

	return &Hub{
		Devices:   devices,
		Streamers: streamers,
		Presence:  NewPresenceTracker(devices, streamers, directory, opts.PresenceDelay, metrics),
		Queue:     NewBroadcastQueue(devices, opts.QueueCapacity, opts.DrainBatch, metrics),
		Directory: directory,
		Metrics:   metrics,
		conns:     make(map[core.ConnID]core.Conn),
	}
}

// Track registers an open socket with the liveness monitor, whether or
// not it ever completes a registration.
func (h *Hub) Track(conn core.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn.ID()] = conn
}

func (h *Hub) Untrack(id core.ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
}

func (h *Hub) Conns() []core.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]core.Conn, 0, len(h.conns))
	for _, conn := range h.conns {
		out = append(out, conn)
	}
	return out
}

// Broadcast enqueues a control message for fan-out to the channel's
// devices. Entry point for the control-plane API.
func (h *Hub) Broadcast(ch domain.ChannelID, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.Queue.Enqueue(ch, data, false)
	h.Metrics.ControlBroadcasts.Inc()
	return nil
}

// BroadcastNow sends a control message synchronously to all open
// device connections, bypassing the queue.
func (h *Hub) BroadcastNow(ch domain.ChannelID, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.Queue.BroadcastNow(ch, data)
	h.Metrics.ControlBroadcasts.Inc()
	return nil
}

// Status reports the channel's online device ids.
func (h *Hub) Status(ch domain.ChannelID) []domain.DeviceID {
	return h.Devices.OnlineDeviceIDs(ch)
}
