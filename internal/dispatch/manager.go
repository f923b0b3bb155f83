package dispatch

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/richxcame/driver-agent/pkg/config"
	"github.com/richxcame/driver-agent/pkg/logger"
	"github.com/richxcame/driver-agent/pkg/models"
	"go.uber.org/zap"
)

// State describes the connection lifecycle as seen by subscribers
type State string

const (
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
)

// Handler processes the data payload of one inbound event
type Handler func(data json.RawMessage)

// StateHandler observes connection state transitions. err is non-nil on
// error-driven disconnects.
type StateHandler func(state State, err error)

// Identity is announced to the server after every successful connect
type Identity struct {
	Role string
	ID   string
}

// Manager owns the lifetime of the one persistent dispatch connection.
// It reconnects forever with a fixed delay, re-announces identity on every
// connect, and keeps the event handler registry across reconnects so
// subscriptions never need re-assertion by callers.
type Manager struct {
	cfg    config.DispatchConfig
	header func() http.Header

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	started   bool
	identity  Identity
	stopCh    chan struct{}

	writeMu sync.Mutex

	handlersMu sync.Mutex
	handlers   map[string]map[uint64]Handler
	stateSubs  map[uint64]StateHandler
	nextID     uint64
}

// Option configures the Manager
type Option func(*Manager)

// WithHeader sets a header provider called on every dial, typically for
// the Authorization header.
func WithHeader(provider func() http.Header) Option {
	return func(m *Manager) {
		m.header = provider
	}
}

// NewManager creates a dispatch connection manager. Nothing is dialed
// until Connect is called.
func NewManager(cfg config.DispatchConfig, opts ...Option) *Manager {
	m := &Manager{
		cfg:       cfg,
		handlers:  make(map[string]map[uint64]Handler),
		stateSubs: make(map[uint64]StateHandler),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect starts the connection loop with the given identity. Calling it
// again while the loop is running is a no-op; the existing connection is
// reused, never re-dialed.
func (m *Manager) Connect(identity Identity) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		logger.Debug("dispatch connect called while already running",
			zap.String("driver_id", identity.ID),
		)
		return
	}
	m.started = true
	m.identity = identity
	m.mu.Unlock()

	go m.run()
}

// Connected reports whether the socket is currently up
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Send emits an event to the dispatch server, fire-and-forget. A send
// while disconnected is dropped and counted; the transport gives no
// delivery guarantee either way.
func (m *Manager) Send(eventType string, payload interface{}) error {
	msg, err := NewMessage(eventType, payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	conn := m.conn
	connected := m.connected
	m.mu.Unlock()

	if !connected || conn == nil {
		droppedSends.WithLabelValues(eventType).Inc()
		logger.Warn("dropping event, dispatch disconnected",
			zap.String("event", eventType),
		)
		return nil
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		droppedSends.WithLabelValues(eventType).Inc()
		return err
	}

	eventsSent.WithLabelValues(eventType).Inc()
	return nil
}

// Subscribe registers a handler for an event type and returns its
// disposer. Multiple subscribers per event are supported; each disposer
// removes only its own handler.
func (m *Manager) Subscribe(eventType string, handler func(data json.RawMessage)) func() {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()

	if m.handlers[eventType] == nil {
		m.handlers[eventType] = make(map[uint64]Handler)
	}
	id := m.nextID
	m.nextID++
	m.handlers[eventType][id] = handler

	return func() {
		m.handlersMu.Lock()
		defer m.handlersMu.Unlock()
		delete(m.handlers[eventType], id)
	}
}

// SubscribeReplace registers a handler as the only one for an event type,
// discarding any previous handlers. Use it when re-registering for the
// same logical purpose, so repeated setup never stacks duplicate delivery.
func (m *Manager) SubscribeReplace(eventType string, handler func(data json.RawMessage)) func() {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()

	m.handlers[eventType] = make(map[uint64]Handler)
	id := m.nextID
	m.nextID++
	m.handlers[eventType][id] = handler

	return func() {
		m.handlersMu.Lock()
		defer m.handlersMu.Unlock()
		delete(m.handlers[eventType], id)
	}
}

// OnStateChange registers a connection state observer and returns its disposer
func (m *Manager) OnStateChange(handler StateHandler) func() {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()

	id := m.nextID
	m.nextID++
	m.stateSubs[id] = handler

	return func() {
		m.handlersMu.Lock()
		defer m.handlersMu.Unlock()
		delete(m.stateSubs, id)
	}
}

// Close stops the connection loop and closes the socket. The manager
// cannot be reused after Close.
func (m *Manager) Close() {
	m.mu.Lock()
	select {
	case <-m.stopCh:
	default:
		close(m.stopCh)
	}
	conn := m.conn
	m.conn = nil
	m.connected = false
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// run dials, pumps and redials until Close. Reconnection is unbounded
// with a fixed delay; connection loss is never fatal.
func (m *Manager) run() {
	for {
		select {
		case <-m.stopCh:
			return
		default:
		}

		if err := m.dialAndPump(); err != nil {
			logger.Warn("dispatch connection lost",
				zap.Error(err),
				zap.Duration("retry_in", m.cfg.ReconnectDelay),
			)
			m.notifyState(StateDisconnected, err)
		}

		select {
		case <-m.stopCh:
			return
		case <-time.After(m.cfg.ReconnectDelay):
		}
	}
}

func (m *Manager) dialAndPump() error {
	var header http.Header
	if m.header != nil {
		header = m.header()
	}

	conn, _, err := websocket.DefaultDialer.Dial(m.cfg.URL, header)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.conn = conn
	m.connected = true
	identity := m.identity
	m.mu.Unlock()

	reconnects.Inc()
	logger.Info("dispatch connected",
		zap.String("url", m.cfg.URL),
		zap.String("driver_id", identity.ID),
	)

	// Identity handshake establishes presence and routing server-side
	if err := m.Send(models.EventIdentify, models.IdentifyPayload{
		Role: identity.Role,
		ID:   identity.ID,
	}); err != nil {
		logger.Warn("identity handshake failed", zap.Error(err))
	}

	m.notifyState(StateConnected, nil)

	pingDone := make(chan struct{})
	go m.pingLoop(conn, pingDone)

	conn.SetReadDeadline(time.Now().Add(m.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(m.cfg.PongTimeout))
		return nil
	})

	readErr := m.readLoop(conn)

	close(pingDone)

	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
		m.connected = false
	}
	m.mu.Unlock()
	conn.Close()

	return readErr
}

func (m *Manager) readLoop(conn *websocket.Conn) error {
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		eventsReceived.WithLabelValues(msg.Type).Inc()
		m.dispatch(&msg)
	}
}

// dispatch fans a message out to a snapshot of the registered handlers,
// taken outside the lock so a handler may subscribe or dispose freely.
func (m *Manager) dispatch(msg *Message) {
	m.handlersMu.Lock()
	snapshot := make([]Handler, 0, len(m.handlers[msg.Type]))
	for _, h := range m.handlers[msg.Type] {
		snapshot = append(snapshot, h)
	}
	m.handlersMu.Unlock()

	if len(snapshot) == 0 {
		logger.Debug("no handler for dispatch event", zap.String("event", msg.Type))
		return
	}

	for _, h := range snapshot {
		h(msg.Data)
	}
}

func (m *Manager) notifyState(state State, err error) {
	m.handlersMu.Lock()
	snapshot := make([]StateHandler, 0, len(m.stateSubs))
	for _, h := range m.stateSubs {
		snapshot = append(snapshot, h)
	}
	m.handlersMu.Unlock()

	for _, h := range snapshot {
		h(state, err)
	}
}

func (m *Manager) pingLoop(conn *websocket.Conn, done chan struct{}) {
	period := (m.cfg.PongTimeout * 9) / 10
	if period <= 0 {
		period = 54 * time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			m.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
