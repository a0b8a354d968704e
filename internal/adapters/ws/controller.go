package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/reberkhan12-ai/live-azan/internal/auth"
	"github.com/reberkhan12-ai/live-azan/internal/domain"
	"github.com/reberkhan12-ai/live-azan/internal/hub"
)

type role int

const (
	roleNone role = iota
	roleDevice
	roleStreamer
)

// session is the per-connection state machine:
// Connected (roleNone) -> Registered{Device|Streamer} -> Closed.
// Only the connection's own read loop touches it.
type session struct {
	role    role
	channel domain.ChannelID
	device  domain.DeviceID
}

type Controller struct {
	Hub        *hub.Hub
	Gate       *auth.Gate
	ReadLimit  int64
	SendBuffer int
}

func NewController(h *hub.Hub, gate *auth.Gate, readLimit int64, sendBuffer int) *Controller {
	return &Controller{Hub: h, Gate: gate, ReadLimit: readLimit, SendBuffer: sendBuffer}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the request and starts the connection's pumps. The
// connection stays idle until a registration message arrives.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade failed")
		return
	}
	if ctl.ReadLimit > 0 {
		sock.SetReadLimit(ctl.ReadLimit)
	}

	conn := NewConn(sock, ctl.SendBuffer)
	ctl.Hub.Track(conn)
	ctl.Hub.Metrics.ActiveConnections.Inc()
	log.Info().Str("module", "ws").Str("conn", string(conn.ID())).Msg("new connection")

	connCtx, cancel := context.WithCancel(ctx)
	go conn.WritePump(connCtx)
	go ctl.readPump(connCtx, cancel, conn)
}

// readPump handles the connection's inbound messages sequentially.
// Exit always runs teardown, which removes the connection from
// whichever registry holds it.
func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, conn *Conn) {
	sess := &session{}
	defer func() {
		ctl.teardown(sess, conn)
		cancel()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		mt, data, err := conn.sock.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Str("module", "ws").Str("conn", string(conn.ID())).Msg("read loop exit")
			return
		}
		switch mt {
		case websocket.TextMessage:
			if fatal := ctl.handleText(ctx, sess, conn, data); fatal {
				return
			}
		case websocket.BinaryMessage:
			ctl.handleBinary(sess, conn, data)
		}
	}
}

// handleText dispatches one JSON message. The returned flag is true
// when the error is fatal for the connection: protocol errors are
// fatal only while the connection is still unregistered, auth errors
// always are.
func (ctl *Controller) handleText(ctx context.Context, sess *session, conn *Conn, data []byte) bool {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("conn", string(conn.ID())).Msg("bad json")
		ctl.sendError(conn, "Malformed message")
		return sess.role == roleNone
	}

	switch env.Type {
	case "register":
		return ctl.handleRegister(ctx, sess, conn, data)
	case "stream-register":
		return ctl.handleStreamRegister(ctx, sess, conn, data)
	case "status":
		ctl.handleStatus(sess, conn, data)
		return false
	default:
		log.Warn().Str("module", "ws").Str("type", env.Type).Msg("unknown message type")
		ctl.sendError(conn, "Unknown message type")
		return sess.role == roleNone
	}
}

func (ctl *Controller) handleRegister(ctx context.Context, sess *session, conn *Conn, data []byte) bool {
	var p registerPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ChannelID == "" || p.DeviceID == "" {
		ctl.sendError(conn, "Missing registration info")
		return sess.role == roleNone
	}

	ident, err := ctl.Gate.Verify(ctx, auth.Credential{Token: p.Token, Key: p.Key})
	if err != nil {
		ctl.Hub.Metrics.AuthFailures.Inc()
		log.Warn().Err(err).Str("module", "ws").Str("conn", string(conn.ID())).Msg("device registration rejected")
		ctl.sendError(conn, authMessage(err))
		return true
	}

	ch := domain.ChannelID(p.ChannelID)
	id := domain.DeviceID(p.DeviceID)

	// A register while already registered is a fresh attempt with
	// overwrite semantics, never an error.
	ctl.release(sess, conn)

	fresh, prior := ctl.Hub.Devices.Register(ch, id, conn)
	if prior != nil && prior != conn {
		// The displaced socket is closed right away so its own teardown
		// cannot delete the new entry later.
		prior.Close()
	}
	sess.role = roleDevice
	sess.channel = ch
	sess.device = id
	ctl.Hub.Metrics.RegisteredDevices.Inc()

	if fresh {
		go ctl.upsertDevice(ch, id)
	}

	log.Info().Str("module", "ws").Str("channel", string(ch)).Str("device", string(id)).Str("subject", ident.Subject).Msg("device registered")
	ctl.sendAck(conn, "Registered successfully")
	ctl.Hub.Presence.Schedule(ch)
	return false
}

func (ctl *Controller) handleStreamRegister(ctx context.Context, sess *session, conn *Conn, data []byte) bool {
	var p streamRegisterPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ChannelID == "" {
		ctl.sendError(conn, "Missing registration info")
		return sess.role == roleNone
	}
	if p.Role != "" && p.Role != "streamer" {
		ctl.sendError(conn, "Unknown role")
		return sess.role == roleNone
	}

	ident, err := ctl.Gate.Verify(ctx, auth.Credential{Token: p.Token, Key: p.Key})
	if err != nil {
		ctl.Hub.Metrics.AuthFailures.Inc()
		log.Warn().Err(err).Str("module", "ws").Str("conn", string(conn.ID())).Msg("streamer registration rejected")
		ctl.sendError(conn, authMessage(err))
		return true
	}

	ch := domain.ChannelID(p.ChannelID)

	ctl.release(sess, conn)
	ctl.Hub.Streamers.Add(ch, conn)
	sess.role = roleStreamer
	sess.channel = ch
	ctl.Hub.Metrics.ActiveStreamers.Inc()

	log.Info().Str("module", "ws").Str("channel", string(ch)).Str("subject", ident.Subject).Msg("streamer registered")
	ctl.sendAck(conn, "Registered successfully")

	// A just-connected dashboard should not wait out the debounce
	// window for its first snapshot.
	ctl.Hub.Presence.Broadcast(ctx, ch)
	return false
}

func (ctl *Controller) handleStatus(sess *session, conn *Conn, data []byte) {
	if sess.role != roleDevice {
		return
	}
	var p statusPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Status == "" {
		ctl.sendError(conn, "Missing status")
		return
	}
	ctl.Hub.Devices.UpdateStatus(sess.channel, sess.device, domain.ParseDeviceStatus(p.Status))
}

// handleBinary forwards audio frames from a registered streamer to the
// channel's device queue. Frames from anything else are ignored.
func (ctl *Controller) handleBinary(sess *session, conn *Conn, data []byte) {
	if sess.role != roleStreamer {
		return
	}
	ctl.Hub.Queue.Enqueue(sess.channel, data, true)
	ctl.Hub.Metrics.FramesRelayed.Inc()
	ctl.Hub.Metrics.BytesRelayed.Add(float64(len(data)))
}

// upsertDevice notifies the directory about a first-seen device id.
// Fire-and-forget: a directory failure never affects the registration.
func (ctl *Controller) upsertDevice(ch domain.ChannelID, id domain.DeviceID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ctl.Hub.Directory.AddDevice(ctx, ch, id); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("channel", string(ch)).Str("device", string(id)).Msg("directory upsert failed")
	}
}

// release undoes this connection's current registration, if any. It
// does not close the connection.
func (ctl *Controller) release(sess *session, conn *Conn) {
	switch sess.role {
	case roleDevice:
		if ctl.Hub.Devices.Unregister(sess.channel, sess.device, conn) {
			ctl.Hub.Presence.Schedule(sess.channel)
		}
		ctl.Hub.Metrics.RegisteredDevices.Dec()
	case roleStreamer:
		ctl.Hub.Streamers.Remove(sess.channel, conn)
		ctl.Hub.Metrics.ActiveStreamers.Dec()
	}
	sess.role = roleNone
	sess.channel = ""
	sess.device = ""
}

func (ctl *Controller) teardown(sess *session, conn *Conn) {
	ctl.release(sess, conn)
	ctl.Hub.Untrack(conn.ID())
	ctl.Hub.Metrics.ActiveConnections.Dec()
	conn.Close()
	log.Info().Str("module", "ws").Str("conn", string(conn.ID())).Msg("connection closed")
}

func (ctl *Controller) sendAck(conn *Conn, msg string) {
	ctl.sendJSON(conn, ackMessage{Type: "ack", Message: msg})
}

func (ctl *Controller) sendError(conn *Conn, msg string) {
	ctl.sendJSON(conn, errorMessage{Type: "error", Message: msg})
}

func (ctl *Controller) sendJSON(conn *Conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("sendJSON marshal")
		return
	}
	_ = conn.TrySend(b)
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingCredential):
		return "Missing registration info"
	case errors.Is(err, auth.ErrTokenRejected):
		return "Invalid token"
	case errors.Is(err, auth.ErrKeyMismatch):
		return "Invalid key"
	default:
		return "Token verification failed"
	}
}
