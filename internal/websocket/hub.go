package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/acrbridge/domain/repositories"
	"github.com/satriahrh/acrbridge/internal/bridge"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. A createFingerprint call carries
	// its PCM base64 encoded, so 8MB fits about 49s of 16kHz stereo.
	maxMessageSize = 8 << 20

	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Devices are authenticated by bearer token, not by origin
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// HubOptions configures the bridge sessions opened by a Hub
type HubOptions struct {
	Factory           repositories.RecognitionClientFactory
	Fingerprinter     repositories.Fingerprinter
	History           bridge.HistoryRecorder
	RequirePermission bool
}

// Hub maintains the set of active clients, one bridge session each.
type Hub struct {
	// Registered clients, keyed by session ID.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	options   HubOptions
	validator *MessageValidator
	logger    *zap.Logger

	done     chan struct{}
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewHub creates a new WebSocket hub
func NewHub(options HubOptions, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		options:    options,
		validator:  NewMessageValidator(),
		logger:     logger,
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.session.ID()] = client
			h.mu.Unlock()
			h.logger.Info("Client registered",
				zap.String("deviceID", client.deviceID),
				zap.String("sessionID", client.session.ID()))

		case client := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, client.session.ID())
			h.mu.Unlock()
			h.logger.Info("Client unregistered",
				zap.String("deviceID", client.deviceID),
				zap.String("sessionID", client.session.ID()))

		case <-h.done:
			h.mu.Lock()
			clients := make([]*Client, 0, len(h.clients))
			for id, client := range h.clients {
				clients = append(clients, client)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			for _, client := range clients {
				client.shutdown()
			}
			return
		}
	}
}

// Stop closes every client and ends Run
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
	<-h.stopped
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and its bridge
// session. It implements bridge.Host.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Closed when the client shuts down; guards sends on a dead connection
	closed    chan struct{}
	closeOnce sync.Once

	// Device ID for this client
	deviceID string

	session *bridge.Session
	logger  *zap.Logger
}

// Ensure Client implements the bridge Host interface
var _ bridge.Host = (*Client)(nil)

// HandleWebSocketWithAuth handles websocket requests with pre-authenticated device ID
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, deviceID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, sendBufferSize),
		closed:   make(chan struct{}),
		deviceID: deviceID,
	}
	client.session = bridge.NewSession(client, hub.options.Factory, hub.options.Fingerprinter, bridge.SessionOptions{
		DeviceID:          deviceID,
		RequirePermission: hub.options.RequirePermission,
		History:           hub.options.History,
	}, logger)
	client.logger = logger.With(zap.String("deviceID", deviceID), zap.String("sessionID", client.session.ID()))

	select {
	case client.hub.register <- client:
	case <-hub.done:
		client.session.Close()
		conn.Close()
		return nil
	}
	client.session.Start()

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// Reply implements bridge.Host
func (c *Client) Reply(reply bridge.Reply) {
	c.sendJSON(CreateReplyMessage(reply))
}

// Emit implements bridge.Host
func (c *Client) Emit(event bridge.Event) {
	c.sendJSON(CreateEventMessage(event))
}

// RequestPermission implements bridge.Host
func (c *Client) RequestPermission(permission string) {
	c.sendJSON(CreatePermissionRequestMessage(permission))
}

func (c *Client) sendJSON(message interface{}) {
	payload, err := json.Marshal(message)
	if err != nil {
		c.logger.Error("Failed to encode message", zap.Error(err))
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	case <-c.closed:
	}
}

// shutdown stops the session and closes the connection
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.session.Close()
		c.conn.Close()
	})
}

// readPump pumps messages from the websocket connection to the session.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.shutdown()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			// Raw PCM captured by the device
			c.session.WriteAudio(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the session to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// processMessage routes a text envelope from the device
func (c *Client) processMessage(message []byte) {
	msg, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid message", zap.Error(err))
		c.sendJSON(CreateErrorMessage("", bridge.CodeInvalidMessage, err.Error()))
		return
	}

	switch m := msg.(type) {
	case *CallMessage:
		c.session.Dispatch(bridge.Call{
			ID:        m.ID,
			Method:    m.Method,
			Arguments: m.Arguments,
		})
	case *PermissionMessage:
		c.session.ResolvePermission(*m.Granted)
	case *PingMessage:
		c.sendJSON(CreatePongMessage(m.Data))
	}
}
