package hub

import (
	"context"
	"sync"

	"github.com/reberkhan12-ai/live-azan/internal/core"
	"github.com/reberkhan12-ai/live-azan/internal/domain"
)

// fakeConn records every frame it is handed. answers=false models a
// peer that never replies to liveness probes.
type fakeConn struct {
	id      core.ConnID
	answers bool
	sendErr error

	mu       sync.Mutex
	open     bool
	awaiting bool
	text     []core.Frame
	binary   []core.Frame
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: core.ConnID(id), open: true, answers: true}
}

func (c *fakeConn) ID() core.ConnID { return c.id }

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.text = append(c.text, append(core.Frame(nil), f...))
	return nil
}

func (c *fakeConn) TrySendBinary(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.binary = append(c.binary, append(core.Frame(nil), f...))
	return nil
}

func (c *fakeConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeConn) Probe() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return core.ErrClosed
	}
	if c.awaiting {
		return core.ErrUnresponsive
	}
	if !c.answers {
		c.awaiting = true
	}
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
}

func (c *fakeConn) textFrames() []core.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Frame(nil), c.text...)
}

func (c *fakeConn) binaryFrames() []core.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Frame(nil), c.binary...)
}

// fakeDirectory is an in-memory DeviceDirectory.
type fakeDirectory struct {
	mu      sync.Mutex
	devices map[domain.ChannelID][]domain.DeviceID
	err     error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{devices: make(map[domain.ChannelID][]domain.DeviceID)}
}

func (d *fakeDirectory) ListDevices(_ context.Context, ch domain.ChannelID) ([]domain.DeviceID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return append([]domain.DeviceID(nil), d.devices[ch]...), nil
}

func (d *fakeDirectory) AddDevice(_ context.Context, ch domain.ChannelID, id domain.DeviceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	for _, existing := range d.devices[ch] {
		if existing == id {
			return nil
		}
	}
	d.devices[ch] = append(d.devices[ch], id)
	return nil
}
