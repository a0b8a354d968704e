package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reberkhan12-ai/live-azan/internal/auth"
	"github.com/reberkhan12-ai/live-azan/internal/core"
	"github.com/reberkhan12-ai/live-azan/internal/domain"
	"github.com/reberkhan12-ai/live-azan/internal/hub"
)

// fakeSocket satisfies Socket without a network.
type fakeSocket struct {
	mu     sync.Mutex
	closed bool
}

func (s *fakeSocket) ReadMessage() (int, []byte, error)         { select {} }
func (s *fakeSocket) WriteMessage(int, []byte) error            { return nil }
func (s *fakeSocket) WriteControl(int, []byte, time.Time) error { return nil }
func (s *fakeSocket) SetWriteDeadline(time.Time) error          { return nil }
func (s *fakeSocket) SetPongHandler(func(string) error)         {}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeVerifier struct {
	subject string
}

func (f *fakeVerifier) Verify(_ context.Context, token string) (*domain.Identity, error) {
	if f.subject == "" || token != "good-token" {
		return nil, auth.ErrTokenRejected
	}
	return &domain.Identity{Subject: f.subject}, nil
}

type memDirectory struct {
	mu      sync.Mutex
	devices map[domain.ChannelID][]domain.DeviceID
}

func newMemDirectory() *memDirectory {
	return &memDirectory{devices: make(map[domain.ChannelID][]domain.DeviceID)}
}

func (d *memDirectory) ListDevices(_ context.Context, ch domain.ChannelID) ([]domain.DeviceID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.DeviceID(nil), d.devices[ch]...), nil
}

func (d *memDirectory) AddDevice(_ context.Context, ch domain.ChannelID, id domain.DeviceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.devices[ch] {
		if existing == id {
			return nil
		}
	}
	d.devices[ch] = append(d.devices[ch], id)
	return nil
}

func (d *memDirectory) count(ch domain.ChannelID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.devices[ch])
}

func newTestController(dir core.DeviceDirectory) *Controller {
	h := hub.New(dir, hub.Options{PresenceDelay: 20 * time.Millisecond}, prometheus.NewRegistry())
	gate := auth.NewGate(&fakeVerifier{subject: "uid-1"}, "sk-123")
	return NewController(h, gate, 32768, 32)
}

// takeFrame pops the next queued outbound frame of a connection.
func takeFrame(t *testing.T, conn *Conn) core.Frame {
	t.Helper()
	select {
	case frame := <-conn.send:
		return frame.data
	case <-time.After(time.Second):
		t.Fatal("no outbound frame")
		return nil
	}
}

func frameType(t *testing.T, data core.Frame) string {
	t.Helper()
	var env struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	return env.Type
}

func TestDeviceRegisterFlow(t *testing.T) {
	dir := newMemDirectory()
	ctl := newTestController(dir)
	conn := NewConn(&fakeSocket{}, 32)
	ctl.Hub.Track(conn)
	sess := &session{}

	fatal := ctl.handleText(context.Background(), sess, conn,
		[]byte(`{"type":"register","channelId":"MASJID-1","deviceId":"esp32-A","token":"good-token"}`))

	require.False(t, fatal)
	assert.Equal(t, roleDevice, sess.role)
	assert.Equal(t, "ack", frameType(t, takeFrame(t, conn)))
	assert.Equal(t, []domain.DeviceID{"esp32-A"}, ctl.Hub.Status("MASJID-1"))

	// Fresh device ids are upserted into the directory.
	require.Eventually(t, func() bool {
		return dir.count("MASJID-1") == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRegisterMissingFieldsIsFatalWhenUnregistered(t *testing.T) {
	ctl := newTestController(newMemDirectory())
	conn := NewConn(&fakeSocket{}, 32)
	sess := &session{}

	fatal := ctl.handleText(context.Background(), sess, conn,
		[]byte(`{"type":"register","channelId":"MASJID-1"}`))

	assert.True(t, fatal)
	assert.Equal(t, "error", frameType(t, takeFrame(t, conn)))
	assert.Empty(t, ctl.Hub.Status("MASJID-1"))
}

func TestRegisterBadCredentialAddsNothing(t *testing.T) {
	dir := newMemDirectory()
	ctl := newTestController(dir)
	conn := NewConn(&fakeSocket{}, 32)
	sess := &session{}

	fatal := ctl.handleText(context.Background(), sess, conn,
		[]byte(`{"type":"register","channelId":"MASJID-1","deviceId":"esp32-A","key":"wrong"}`))

	assert.True(t, fatal)
	assert.Equal(t, roleNone, sess.role)
	assert.Equal(t, "error", frameType(t, takeFrame(t, conn)))
	assert.Empty(t, ctl.Hub.Status("MASJID-1"))
	assert.Zero(t, dir.count("MASJID-1"))
}

func TestReregisterClosesDisplacedSocket(t *testing.T) {
	ctl := newTestController(newMemDirectory())

	firstSock := &fakeSocket{}
	first := NewConn(firstSock, 32)
	firstSess := &session{}
	ctl.handleText(context.Background(), firstSess, first,
		[]byte(`{"type":"register","channelId":"MASJID-1","deviceId":"esp32-A","key":"sk-123"}`))

	second := NewConn(&fakeSocket{}, 32)
	secondSess := &session{}
	fatal := ctl.handleText(context.Background(), secondSess, second,
		[]byte(`{"type":"register","channelId":"MASJID-1","deviceId":"esp32-A","key":"sk-123"}`))

	require.False(t, fatal)
	assert.True(t, firstSock.isClosed(), "displaced socket must be force-closed")
	assert.Equal(t, []domain.DeviceID{"esp32-A"}, ctl.Hub.Status("MASJID-1"))
}

func TestStreamRegisterGetsImmediatePresence(t *testing.T) {
	ctl := newTestController(newMemDirectory())

	device := NewConn(&fakeSocket{}, 32)
	ctl.handleText(context.Background(), &session{}, device,
		[]byte(`{"type":"register","channelId":"MASJID-1","deviceId":"esp32-A","key":"sk-123"}`))

	streamer := NewConn(&fakeSocket{}, 32)
	sess := &session{}
	fatal := ctl.handleText(context.Background(), sess, streamer,
		[]byte(`{"type":"stream-register","channelId":"MASJID-1","role":"streamer","key":"sk-123"}`))

	require.False(t, fatal)
	assert.Equal(t, roleStreamer, sess.role)
	assert.Equal(t, "ack", frameType(t, takeFrame(t, streamer)))

	var snap struct {
		Type          string   `json:"type"`
		Online        int      `json:"online"`
		OnlineDevices []string `json:"onlineDevices"`
	}
	require.NoError(t, json.Unmarshal(takeFrame(t, streamer), &snap))
	assert.Equal(t, "presence-update", snap.Type)
	assert.Equal(t, 1, snap.Online)
	assert.Equal(t, []string{"esp32-A"}, snap.OnlineDevices)
}

func TestBinaryFromStreamerReachesChannelDevices(t *testing.T) {
	ctl := newTestController(newMemDirectory())

	device := NewConn(&fakeSocket{}, 32)
	ctl.handleText(context.Background(), &session{}, device,
		[]byte(`{"type":"register","channelId":"MASJID-1","deviceId":"esp32-A","key":"sk-123"}`))
	takeFrame(t, device) // ack

	otherDevice := NewConn(&fakeSocket{}, 32)
	ctl.handleText(context.Background(), &session{}, otherDevice,
		[]byte(`{"type":"register","channelId":"MASJID-2","deviceId":"esp32-B","key":"sk-123"}`))
	takeFrame(t, otherDevice) // ack

	streamerSess := &session{}
	streamer := NewConn(&fakeSocket{}, 32)
	ctl.handleText(context.Background(), streamerSess, streamer,
		[]byte(`{"type":"stream-register","channelId":"MASJID-1","key":"sk-123"}`))

	chunk := []byte{0x01, 0x02, 0x03}
	ctl.handleBinary(streamerSess, streamer, chunk)

	select {
	case frame := <-device.send:
		assert.Equal(t, 2, frame.mt) // websocket.BinaryMessage
		assert.Equal(t, core.Frame(chunk), frame.data)
	case <-time.After(time.Second):
		t.Fatal("device never received the audio frame")
	}

	select {
	case <-otherDevice.send:
		t.Fatal("audio leaked into another channel")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBinaryFromDeviceIgnored(t *testing.T) {
	ctl := newTestController(newMemDirectory())

	deviceSess := &session{}
	device := NewConn(&fakeSocket{}, 32)
	ctl.handleText(context.Background(), deviceSess, device,
		[]byte(`{"type":"register","channelId":"MASJID-1","deviceId":"esp32-A","key":"sk-123"}`))
	takeFrame(t, device) // ack

	ctl.handleBinary(deviceSess, device, []byte{0xff})

	select {
	case <-device.send:
		t.Fatal("device-origin binary frame must be dropped")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStatusUpdateIgnoredWhenUnregistered(t *testing.T) {
	ctl := newTestController(newMemDirectory())
	conn := NewConn(&fakeSocket{}, 32)
	sess := &session{}

	ctl.handleStatus(sess, conn, []byte(`{"type":"status","status":"offline"}`))

	select {
	case <-conn.send:
		t.Fatal("unregistered status update must be a silent no-op")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnknownTypeFatalOnlyBeforeRegistration(t *testing.T) {
	ctl := newTestController(newMemDirectory())

	fresh := NewConn(&fakeSocket{}, 32)
	assert.True(t, ctl.handleText(context.Background(), &session{}, fresh, []byte(`{"type":"mystery"}`)))

	registered := NewConn(&fakeSocket{}, 32)
	sess := &session{}
	ctl.handleText(context.Background(), sess, registered,
		[]byte(`{"type":"register","channelId":"MASJID-1","deviceId":"esp32-A","key":"sk-123"}`))
	assert.False(t, ctl.handleText(context.Background(), sess, registered, []byte(`{"type":"mystery"}`)))
}

func TestTeardownFreesRegistration(t *testing.T) {
	ctl := newTestController(newMemDirectory())
	conn := NewConn(&fakeSocket{}, 32)
	ctl.Hub.Track(conn)
	sess := &session{}
	ctl.handleText(context.Background(), sess, conn,
		[]byte(`{"type":"register","channelId":"MASJID-1","deviceId":"esp32-A","key":"sk-123"}`))
	require.NotEmpty(t, ctl.Hub.Status("MASJID-1"))

	ctl.teardown(sess, conn)

	assert.Empty(t, ctl.Hub.Status("MASJID-1"))
	assert.Empty(t, ctl.Hub.Conns())
	assert.False(t, conn.Open())
}
