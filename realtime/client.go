package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tabletop-chat/backend/pkg/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	sendBuffer = 256
)

// Client is one websocket connection
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	Hub  *Hub
	log  *logger.Logger
}

// ReadPump reads client events until the connection closes
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.LogError(err, "Websocket read failed", "client_id", c.ID)
			}
			return
		}

		var ev inbound
		if err := json.Unmarshal(data, &ev); err != nil {
			c.send(Event{Type: EventError, Content: gin.H{"message": "invalid event"}})
			continue
		}
		c.handle(ev)
	}
}

func (c *Client) handle(ev inbound) {
	switch ev.Type {
	case EventJoinGame:
		if ev.GameID == "" {
			c.send(Event{Type: EventError, Content: gin.H{"message": "gameId is required"}})
			return
		}
		c.Hub.Join(c, ev.GameID)
		c.send(Event{Type: EventGameJoined, GameID: ev.GameID})
	case EventLeaveGame:
		c.Hub.Leave(c, ev.GameID)
		c.send(Event{Type: EventGameLeft, GameID: ev.GameID})
	case EventPing:
		c.send(Event{Type: EventPong})
	default:
		c.send(Event{Type: EventError, Content: gin.H{"message": "unknown event type: " + ev.Type}})
	}
}

// send queues a reply to this client only
func (c *Client) send(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		c.log.LogError(err, "Failed to encode event", "type", ev.Type)
		return
	}

	c.Hub.mu.RLock()
	defer c.Hub.mu.RUnlock()
	if !c.Hub.clients[c] {
		return
	}
	select {
	case c.Send <- data:
	default:
		c.log.Warn("Client send buffer full", "client_id", c.ID)
	}
}

// WritePump writes queued frames and keeps the connection alive
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS upgrades GET /ws requests. An empty or "*" origin list accepts
// every origin.
func ServeWS(hub *Hub, allowedOrigins []string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin:      originChecker(allowedOrigins),
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}

	return func(c *gin.Context) {
		log := logger.FromGin(c)

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.LogError(err, "Error upgrading connection")
			return
		}

		client := &Client{
			ID:   uuid.NewString(),
			Conn: conn,
			Send: make(chan []byte, sendBuffer),
			Hub:  hub,
			log:  log,
		}
		hub.Register(client)

		go client.WritePump()
		go client.ReadPump()
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
