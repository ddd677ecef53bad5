package network

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"kvmhost/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins as this is a local network tool
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	readLimit    = 1 << 20 // clipboard text
	pongWait     = 60 * time.Second
	pingInterval = 50 * time.Second
	writeWait    = 10 * time.Second
)

// ControlHub is the WebSocket endpoint agents connect to. It broadcasts
// screen switches and carries clipboard text between host and agents.
type ControlHub struct {
	clients    map[*controlClient]bool
	clientsMu  sync.RWMutex
	broadcast  chan []byte
	register   chan *controlClient
	unregister chan *controlClient
	shutdown   chan struct{}
	stopOnce   sync.Once

	// OnClipboard is called when an agent sends clipboard text.
	OnClipboard func(screen string, p protocol.ClipboardPayload)
}

// controlClient represents a connected agent
type controlClient struct {
	hub    *ControlHub
	conn   *websocket.Conn
	send   chan []byte
	ip     string
	screen string // set by hello; guarded by hub.clientsMu
}

// NewControlHub creates a hub. Call Run before serving connections.
func NewControlHub() *ControlHub {
	return &ControlHub{
		clients:    make(map[*controlClient]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *controlClient),
		unregister: make(chan *controlClient),
		shutdown:   make(chan struct{}),
	}
}

// Run dispatches registrations and broadcasts until Stop is called.
func (h *ControlHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.clientsMu.Unlock()
			log.Printf("WS: New client registered from %s. Total clients: %d", client.ip, n)

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("WS: Client unregistered from %s. Total clients: %d", client.ip, len(h.clients))
			}
			h.clientsMu.Unlock()

		case message := <-h.broadcast:
			h.clientsMu.Lock()
			for client := range h.clients {
				h.deliver(client, message)
			}
			h.clientsMu.Unlock()

		case <-h.shutdown:
			h.clientsMu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMu.Unlock()
			return
		}
	}
}

// deliver queues message for client, dropping clients that cannot keep up.
// Called with clientsMu held.
func (h *ControlHub) deliver(client *controlClient, message []byte) {
	select {
	case client.send <- message:
	default:
		close(client.send)
		delete(h.clients, client)
	}
}

// Stop disconnects all clients and ends Run.
func (h *ControlHub) Stop() {
	h.stopOnce.Do(func() { close(h.shutdown) })
}

// ServeHTTP upgrades the request to a WebSocket control connection.
func (h *ControlHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS: Failed to upgrade connection: %v", err)
		return
	}

	client := &controlClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		ip:   r.RemoteAddr,
	}

	select {
	case h.register <- client:
	case <-h.shutdown:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// BroadcastScreen tells every agent which screen now holds input focus.
func (h *ControlHub) BroadcastScreen(active, origin string) {
	h.publish(protocol.TypeScreen, protocol.ScreenPayload{Active: active, Origin: origin})
}

func (h *ControlHub) publish(t protocol.MessageType, payload any) {
	msg, err := protocol.NewMessage(t, payload)
	if err != nil {
		log.Printf("WS: Failed to encode %s message: %v", t, err)
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WS: Failed to marshal broadcast message: %v", err)
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.shutdown:
	}
}

// SendClipboard sends clipboard text to the named screen. It returns
// ErrNoAgent if that screen has no control connection.
func (h *ControlHub) SendClipboard(screen string, p protocol.ClipboardPayload) error {
	msg, err := protocol.NewMessage(protocol.TypeClipboard, p)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for client := range h.clients {
		if client.screen == screen {
			h.deliver(client, data)
			return nil
		}
	}
	return ErrNoAgent
}

// Connected reports whether the named screen has a control connection.
func (h *ControlHub) Connected(screen string) bool {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for client := range h.clients {
		if client.screen == screen {
			return true
		}
	}
	return false
}

// readPump pumps messages from the websocket connection to the hub.
func (c *controlClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.shutdown:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS: Read error: %v", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *controlClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *controlClient) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("WS: Invalid message format: %v", err)
		return
	}

	switch msg.Type {
	case protocol.TypeHello:
		var p protocol.HelloPayload
		if err := msg.Decode(&p); err != nil {
			log.Printf("WS: Invalid hello payload: %v", err)
			return
		}
		c.hub.clientsMu.Lock()
		c.screen = p.Screen
		c.hub.clientsMu.Unlock()
		log.Printf("WS: %s is screen %q (agent %s)", c.ip, p.Screen, p.AgentVersion)

	case protocol.TypeClipboard:
		var p protocol.ClipboardPayload
		if err := msg.Decode(&p); err != nil {
			log.Printf("WS: Invalid clipboard payload: %v", err)
			return
		}
		c.hub.clientsMu.RLock()
		screen := c.screen
		c.hub.clientsMu.RUnlock()
		if c.hub.OnClipboard != nil {
			c.hub.OnClipboard(screen, p)
		}

	case protocol.TypePing:
		// keepalive
	}
}
