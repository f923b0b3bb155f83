package dispatch

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/driver-agent/pkg/config"
	"github.com/richxcame/driver-agent/pkg/models"
)

// dispatchServer is a minimal in-process dispatch endpoint. It records
// every message the agent sends and can push events back down the socket.
type dispatchServer struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []Message
	headers  []http.Header
	dials    int
}

func newDispatchServer(t *testing.T) *dispatchServer {
	t.Helper()
	s := &dispatchServer{t: t}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.close)
	return s
}

func (s *dispatchServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.headers = append(s.headers, r.Header.Clone())
	s.dials++
	s.mu.Unlock()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		s.mu.Lock()
		s.received = append(s.received, msg)
		s.mu.Unlock()
	}
}

func (s *dispatchServer) url() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *dispatchServer) push(eventType string, payload interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(s.t, s.conns, "no agent connection to push to")
	conn := s.conns[len(s.conns)-1]
	msg, err := NewMessage(eventType, payload)
	require.NoError(s.t, err)
	require.NoError(s.t, conn.WriteJSON(msg))
}

func (s *dispatchServer) dropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, conn := range conns {
		conn.Close()
	}
}

func (s *dispatchServer) receivedOfType(eventType string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Message
	for _, msg := range s.received {
		if msg.Type == eventType {
			out = append(out, msg)
		}
	}
	return out
}

func (s *dispatchServer) dialCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

func (s *dispatchServer) close() {
	s.dropConnections()
	s.server.Close()
}

func testDispatchConfig(url string) config.DispatchConfig {
	return config.DispatchConfig{
		URL:            url,
		Role:           "driver",
		ReconnectDelay: 20 * time.Millisecond,
		WriteTimeout:   time.Second,
		PongTimeout:    5 * time.Second,
	}
}

func startManager(t *testing.T, s *dispatchServer, opts ...Option) *Manager {
	t.Helper()
	m := NewManager(testDispatchConfig(s.url()), opts...)
	t.Cleanup(m.Close)
	m.Connect(Identity{Role: "driver", ID: "driver-1"})
	require.Eventually(t, m.Connected, 2*time.Second, 10*time.Millisecond)
	return m
}

func TestConnectSendsIdentityHandshake(t *testing.T) {
	s := newDispatchServer(t)
	startManager(t, s)

	require.Eventually(t, func() bool {
		return len(s.receivedOfType(models.EventIdentify)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	msg := s.receivedOfType(models.EventIdentify)[0]
	var payload models.IdentifyPayload
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	assert.Equal(t, "driver", payload.Role)
	assert.Equal(t, "driver-1", payload.ID)
}

func TestConnectIsIdempotent(t *testing.T) {
	s := newDispatchServer(t)
	m := startManager(t, s)

	m.Connect(Identity{Role: "driver", ID: "driver-1"})
	m.Connect(Identity{Role: "driver", ID: "driver-1"})

	// A second Connect must not open a second socket
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, s.dialCount())
	assert.True(t, m.Connected())
}

func TestReconnectAfterDropRepeatsHandshake(t *testing.T) {
	s := newDispatchServer(t)
	m := startManager(t, s)

	require.Eventually(t, func() bool {
		return len(s.receivedOfType(models.EventIdentify)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	s.dropConnections()

	require.Eventually(t, func() bool {
		return s.dialCount() == 2 && m.Connected()
	}, 2*time.Second, 10*time.Millisecond)

	// Identity is announced again on the new socket
	require.Eventually(t, func() bool {
		return len(s.receivedOfType(models.EventIdentify)) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSendDeliversEnvelope(t *testing.T) {
	s := newDispatchServer(t)
	m := startManager(t, s)

	require.NoError(t, m.Send(models.EventRejectRide, models.RejectPayload{
		RideID:   "req-100",
		DriverID: "driver-1",
		Reason:   models.RejectReasonManual,
	}))

	require.Eventually(t, func() bool {
		return len(s.receivedOfType(models.EventRejectRide)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	msg := s.receivedOfType(models.EventRejectRide)[0]
	assert.False(t, msg.Timestamp.IsZero())

	var payload models.RejectPayload
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	assert.Equal(t, "req-100", payload.RideID)
	assert.Equal(t, models.RejectReasonManual, payload.Reason)
}

func TestSendWhileDisconnectedDropsSilently(t *testing.T) {
	m := NewManager(testDispatchConfig("ws://127.0.0.1:1/ws"))
	t.Cleanup(m.Close)

	// Never connected; the send is dropped without error
	err := m.Send(models.EventLocationUpdate, models.LocationPayload{Latitude: 1, Longitude: 2})
	assert.NoError(t, err)
}

func TestSubscribeReceivesPushedEvents(t *testing.T) {
	s := newDispatchServer(t)
	m := startManager(t, s)

	got := make(chan json.RawMessage, 1)
	dispose := m.Subscribe("ride_offer", func(data json.RawMessage) {
		got <- data
	})
	t.Cleanup(dispose)

	s.push("ride_offer", map[string]string{"requestId": "req-100"})

	select {
	case data := <-got:
		var payload map[string]string
		require.NoError(t, json.Unmarshal(data, &payload))
		assert.Equal(t, "req-100", payload["requestId"])
	case <-time.After(2 * time.Second):
		t.Fatal("subscribed handler never ran")
	}
}

func TestDisposerStopsDelivery(t *testing.T) {
	s := newDispatchServer(t)
	m := startManager(t, s)

	first := make(chan struct{}, 4)
	dispose := m.Subscribe("ride_offer", func(json.RawMessage) {
		first <- struct{}{}
	})

	s.push("ride_offer", map[string]string{"requestId": "req-100"})
	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran before dispose")
	}

	dispose()

	// A second handler proves delivery still works after the first is gone
	second := make(chan struct{}, 4)
	t.Cleanup(m.Subscribe("ride_offer", func(json.RawMessage) {
		second <- struct{}{}
	}))

	s.push("ride_offer", map[string]string{"requestId": "req-200"})
	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("second handler never ran")
	}

	select {
	case <-first:
		t.Fatal("disposed handler still received events")
	default:
	}
}

func TestSubscribeReplaceDiscardsPreviousHandlers(t *testing.T) {
	s := newDispatchServer(t)
	m := startManager(t, s)

	stale := make(chan struct{}, 4)
	m.SubscribeReplace("ride_offer", func(json.RawMessage) {
		stale <- struct{}{}
	})

	fresh := make(chan struct{}, 4)
	t.Cleanup(m.SubscribeReplace("ride_offer", func(json.RawMessage) {
		fresh <- struct{}{}
	}))

	s.push("ride_offer", map[string]string{"requestId": "req-100"})

	select {
	case <-fresh:
	case <-time.After(2 * time.Second):
		t.Fatal("replacement handler never ran")
	}
	select {
	case <-stale:
		t.Fatal("replaced handler still received events")
	default:
	}
}

func TestOnStateChangeObservesDisconnects(t *testing.T) {
	s := newDispatchServer(t)
	m := startManager(t, s)

	states := make(chan State, 8)
	t.Cleanup(m.OnStateChange(func(state State, _ error) {
		states <- state
	}))

	s.dropConnections()

	require.Eventually(t, func() bool {
		select {
		case state := <-states:
			return state == StateDisconnected
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDialHeaderProviderIsCalled(t *testing.T) {
	s := newDispatchServer(t)
	startManager(t, s, WithHeader(func() http.Header {
		h := http.Header{}
		h.Set("Authorization", "Bearer test-token")
		return h
	}))

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.headers) == 1
	}, 2*time.Second, 10*time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, "Bearer test-token", s.headers[0].Get("Authorization"))
}

func TestCloseStopsReconnecting(t *testing.T) {
	s := newDispatchServer(t)
	m := startManager(t, s)

	m.Close()
	assert.False(t, m.Connected())

	s.dropConnections()
	dialsAtClose := s.dialCount()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, dialsAtClose, s.dialCount())
}

func TestNewMessageEnvelope(t *testing.T) {
	msg, err := NewMessage("ping", map[string]int{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, "ping", msg.Type)
	assert.False(t, msg.Timestamp.IsZero())
	assert.JSONEq(t, `{"n":1}`, string(msg.Data))
}
