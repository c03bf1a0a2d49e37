package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/repositories"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Cadence of the liveness sweep. A connection that misses two
	// consecutive sweeps is terminated, so effective grace is one full
	// interval.
	heartbeatInterval = 30 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	// Outbound queue depth per connection.
	sendQueueSize = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active connections and reaps the dead ones.
type Hub struct {
	// Registered connections keyed by connection ID.
	conns map[string]*Conn

	// Register requests from the connections.
	register chan *Conn

	// Unregister requests from connections.
	unregister chan *Conn

	// Mutex for thread-safe access to the conns map
	mu sync.RWMutex

	verifier repositories.IdentityVerifier
	registry repositories.SessionRegistry

	stop     chan struct{}
	stopOnce sync.Once

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(
	verifier repositories.IdentityVerifier,
	registry repositories.SessionRegistry,
	logger *zap.Logger,
) *Hub {
	return &Hub{
		conns:      make(map[string]*Conn),
		register:   make(chan *Conn),
		unregister: make(chan *Conn),
		verifier:   verifier,
		registry:   registry,
		stop:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop: connection bookkeeping plus the periodic
// liveness sweep. Blocks until Stop is called.
func (h *Hub) Run() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.conns[conn.id] = conn
			h.mu.Unlock()
			h.logger.Info("Connection registered", zap.String("connID", conn.id))

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.conns[conn.id]; ok {
				delete(h.conns, conn.id)
				close(conn.send)
			}
			h.mu.Unlock()
			h.logger.Info("Connection unregistered", zap.String("connID", conn.id))

		case <-ticker.C:
			h.sweep()

		case <-h.stop:
			return
		}
	}
}

// Stop terminates the hub loop
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// ConnCount returns the number of registered connections
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// sweep is a pure survivorship check: a connection that did not answer the
// previous probe is terminated, everyone else is marked stale and probed
// again. It never inspects application state and never blocks on a slow
// connection.
func (h *Hub) sweep() {
	h.mu.RLock()
	snapshot := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	for _, c := range snapshot {
		if !c.markStaleIfAlive() {
			h.logger.Warn("Terminating unresponsive connection",
				zap.String("connID", c.id))
			go c.terminate()
			continue
		}
		// Probe failures on an already-dead socket are superseded by the
		// next sweep's termination.
		c.enqueue(WriteData{Type: websocket.PingMessage})
	}
}

// WriteData is one outbound websocket frame.
type WriteData struct {
	// Type is the websocket frame type: websocket.TextMessage,
	// websocket.BinaryMessage or websocket.PingMessage.
	Type    int
	Payload []byte
}

// Serve handles a websocket upgrade request and runs the connection until it
// closes.
func Serve(hub *Hub, c echo.Context, logger *zap.Logger) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	conn := newConn(hub, ws, logger)
	hub.register <- conn

	// Allow collection of memory referenced by the caller by doing all work
	// in new goroutines.
	go conn.writePump()
	go conn.readPump()

	conn.sendJSON(NewConnectedMessage())

	return nil
}

// newConn builds a connection in the Unauthenticated state with liveness set.
func newConn(hub *Hub, ws *websocket.Conn, logger *zap.Logger) *Conn {
	return &Conn{
		hub:    hub,
		conn:   ws,
		send:   make(chan WriteData, sendQueueSize),
		id:     uuid.NewString(),
		state:  StateUnauthenticated,
		alive:  true,
		logger: logger,
	}
}
