package hub

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/reberkhan12-ai/live-azan/internal/core"
	"github.com/reberkhan12-ai/live-azan/internal/domain"
)

type queued struct {
	data   core.Frame
	binary bool
}

// BroadcastQueue is a per-channel FIFO of outbound payloads, drained
// asynchronously in bounded batches so one channel's backlog cannot
// starve another. The queue is bounded: when a channel's backlog is
// full the oldest payload is dropped (delivery is best-effort,
// at-most-once).
type BroadcastQueue struct {
	devices *DeviceRegistry
	metrics *Metrics

	capacity int
	batch    int

	mu       sync.Mutex
	backlog  map[domain.ChannelID][]queued
	draining map[domain.ChannelID]bool
}

func NewBroadcastQueue(devices *DeviceRegistry, capacity, batch int, metrics *Metrics) *BroadcastQueue {
	return &BroadcastQueue{
		devices:  devices,
		metrics:  metrics,
		capacity: capacity,
		batch:    batch,
		backlog:  make(map[domain.ChannelID][]queued),
		draining: make(map[domain.ChannelID]bool),
	}
}

// Enqueue appends a payload to the channel's FIFO and wakes the drain
// task if it is not already running. Never blocks the caller.
func (q *BroadcastQueue) Enqueue(ch domain.ChannelID, data core.Frame, binary bool) {
	q.mu.Lock()
	items := q.backlog[ch]
	if len(items) >= q.capacity {
		items = items[1:]
		q.metrics.QueueDropped.Inc()
		log.Warn().Str("module", "hub.queue").Str("channel", string(ch)).Msg("backlog full, dropped oldest payload")
	}
	q.backlog[ch] = append(items, queued{data: data, binary: binary})
	start := !q.draining[ch]
	if start {
		q.draining[ch] = true
	}
	q.mu.Unlock()

	if start {
		go q.drain(ch)
	}
}

// drain moves payloads to the channel's devices in enqueue order, at
// most batch items per pass. Per-connection send errors are ignored;
// they abort neither the item nor the batch.
func (q *BroadcastQueue) drain(ch domain.ChannelID) {
	for {
		q.mu.Lock()
		items := q.backlog[ch]
		if len(items) == 0 {
			delete(q.backlog, ch)
			delete(q.draining, ch)
			q.mu.Unlock()
			return
		}
		n := q.batch
		if n > len(items) {
			n = len(items)
		}
		take := items[:n]
		q.backlog[ch] = items[n:]
		q.mu.Unlock()

		conns := q.devices.Conns(ch)
		for _, item := range take {
			for _, conn := range conns {
				var err error
				if item.binary {
					err = conn.TrySendBinary(item.data)
				} else {
					err = conn.TrySend(item.data)
				}
				if err != nil {
					log.Debug().Err(err).Str("module", "hub.queue").Str("conn", string(conn.ID())).Msg("send skipped")
				}
			}
		}
	}
}

// BroadcastNow bypasses the queue for latency-sensitive control
// messages and sends synchronously to all open device connections.
func (q *BroadcastQueue) BroadcastNow(ch domain.ChannelID, data core.Frame) {
	for _, conn := range q.devices.Conns(ch) {
		if err := conn.TrySend(data); err != nil {
			log.Debug().Err(err).Str("module", "hub.queue").Str("conn", string(conn.ID())).Msg("send skipped")
		}
	}
}
