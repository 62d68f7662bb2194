package game

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Conn is one client connection. The gateway owns the outbound queue; the
// room side only posts messages to it.
type Conn struct {
	ID   string
	ws   *websocket.Conn
	Send chan []byte

	// Binding to a room/player; mutated under the bound room's lock.
	RoomCode string
	PlayerID string
}

// envelope is the wire framing: every message is {event, payload}.
type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// HandleWebSocket upgrades the request and starts the connection pumps.
func (gm *Manager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	conn := &Conn{
		ID:   uuid.New().String(),
		ws:   ws,
		Send: make(chan []byte, 256),
	}

	gm.connMutex.Lock()
	gm.conns[conn.ID] = conn
	gm.connMutex.Unlock()

	go conn.writePump()
	go conn.readPump(gm)

	gm.sendEvent(conn, "featureFlags", gm.cfg.Flags())
}

func (c *Conn) readPump(gm *Manager) {
	defer func() {
		gm.handleDisconnect(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			continue
		}
		if env.Event == "" {
			continue
		}

		gm.handleMessage(c, env.Event, env.Payload)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendEvent posts one typed message to a single connection. Sends never
// block; a full queue drops the message.
func (gm *Manager) sendEvent(conn *Conn, event string, payload any) {
	if conn == nil {
		return
	}
	data, err := marshalEvent(event, payload)
	if err != nil {
		log.Printf("Error marshaling %s: %v", event, err)
		return
	}
	select {
	case conn.Send <- data:
	default:
		log.Printf("Dropping %s to connection %s: queue full", event, conn.ID)
	}
}

// broadcast posts one typed message to every connection joined to the room
// channel. Caller holds the room lock (reads only the Conns map).
func (gm *Manager) broadcast(room *Room, event string, payload any) {
	data, err := marshalEvent(event, payload)
	if err != nil {
		log.Printf("Error marshaling %s: %v", event, err)
		return
	}
	for _, conn := range room.Conns {
		select {
		case conn.Send <- data:
		default:
			log.Printf("Dropping %s to connection %s: queue full", event, conn.ID)
		}
	}
}

// broadcastAll posts a message to every live connection on the server.
func (gm *Manager) broadcastAll(event string, payload any) {
	data, err := marshalEvent(event, payload)
	if err != nil {
		log.Printf("Error marshaling %s: %v", event, err)
		return
	}
	gm.connMutex.RLock()
	defer gm.connMutex.RUnlock()
	for _, conn := range gm.conns {
		select {
		case conn.Send <- data:
		default:
		}
	}
}

func marshalEvent(event string, payload any) ([]byte, error) {
	return json.Marshal(map[string]any{
		"event":   event,
		"payload": payload,
	})
}

// handleDisconnect runs when a connection's read pump exits.
func (gm *Manager) handleDisconnect(c *Conn) {
	gm.connMutex.Lock()
	delete(gm.conns, c.ID)
	gm.connMutex.Unlock()

	roomCode := c.RoomCode
	if roomCode == "" {
		return
	}
	room, exists := gm.getRoom(roomCode)
	if !exists {
		return
	}
	gm.handleRoomDisconnect(room, c)
}
