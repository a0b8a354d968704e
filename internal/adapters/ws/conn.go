package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/reberkhan12-ai/live-azan/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

const (
	writeWait = 5 * time.Second
	pingWait  = 5 * time.Second
)

// Socket is an indirection over *websocket.Conn to ease testing.
type Socket interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	WriteControl(mt int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

type outFrame struct {
	mt   int
	data core.Frame
}

// Conn is a transport endpoint over a websocket. It implements
// core.Conn; the controller owns it and must Close() it.
type Conn struct {
	id   core.ConnID
	sock Socket
	send chan outFrame

	mu     sync.RWMutex
	closed bool
	// awaiting is set when a probe went out and cleared by the pong
	// handler; a probe finding it still set means the peer is dead.
	awaiting bool
}

func NewConn(sock Socket, buffer int) *Conn {
	c := &Conn{
		id:   core.ConnID(uuid.NewString()),
		sock: sock,
		send: make(chan outFrame, buffer),
	}
	sock.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.awaiting = false
		c.mu.Unlock()
		return nil
	})
	return c
}

func (c *Conn) ID() core.ConnID { return c.id }

func (c *Conn) Open() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

func (c *Conn) TrySend(f core.Frame) error {
	return c.trySend(websocket.TextMessage, f)
}

func (c *Conn) TrySendBinary(f core.Frame) error {
	return c.trySend(websocket.BinaryMessage, f)
}

func (c *Conn) trySend(mt int, f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrClosed
	}
	select {
	case c.send <- outFrame{mt: mt, data: f}:
		return nil
	default:
		return ErrBackpressure
	}
}

// Probe reports ErrUnresponsive when the previous probe went
// unanswered, otherwise marks the connection awaiting and pings it.
func (c *Conn) Probe() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return core.ErrClosed
	}
	if c.awaiting {
		c.mu.Unlock()
		return core.ErrUnresponsive
	}
	c.awaiting = true
	c.mu.Unlock()
	return c.sock.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingWait))
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.sock.Close()
	c.mu.Unlock()
}

// WritePump drains the send channel to the network. It owns the write
// side of the socket; nothing else calls WriteMessage.
func (c *Conn) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "ws").Str("conn", string(c.id)).Msg("writePump ctx done")
			return
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.sock.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "ws").Str("conn", string(c.id)).Msg("writePump set deadline")
				return
			}
			if err := c.sock.WriteMessage(frame.mt, frame.data); err != nil {
				log.Debug().Err(err).Str("module", "ws").Str("conn", string(c.id)).Msg("writePump write error")
				return
			}
		}
	}
}
