package core

import (
	"context"
	"errors"

	"github.com/reberkhan12-ai/live-azan/internal/domain"
)

// Frame is a raw payload (JSON text or binary audio).
type Frame []byte

// ConnID identifies a single socket for tracking and logging.
type ConnID string

var (
	ErrClosed       = errors.New("connection closed")
	ErrUnresponsive = errors.New("connection unresponsive")
)

// Conn abstracts a duplex transport endpoint.
// Owned by the adapter; the adapter must Close() it.
type Conn interface {
	ID() ConnID
	// TrySend queues a text frame without blocking.
	TrySend(Frame) error
	// TrySendBinary queues a binary frame without blocking.
	TrySendBinary(Frame) error
	// Open reports whether the endpoint can still accept sends.
	Open() bool
	// Probe sends a liveness probe. It returns ErrUnresponsive when the
	// previous probe was never answered.
	Probe() error
	Close()
}

// IdentityVerifier validates a bearer credential and returns the
// subject identity behind it.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*domain.Identity, error)
}

// DeviceDirectory persists the long-lived set of devices known for a
// channel. AddDevice is an idempotent upsert.
type DeviceDirectory interface {
	ListDevices(ctx context.Context, ch domain.ChannelID) ([]domain.DeviceID, error)
	AddDevice(ctx context.Context, ch domain.ChannelID, id domain.DeviceID) error
}
