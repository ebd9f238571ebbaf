package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"chess-core/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced on the REST routes; game streams are public
	},
}

// Publisher forwards locally broadcast messages to other machines.
// eventbus.EventBus implements it.
type Publisher interface {
	PublishBroadcast(sessionID string, message []byte)
}

type WebSocketHandler struct {
	hub       *Hub
	publisher Publisher
}

func NewWebSocketHandler() *WebSocketHandler {
	hub := NewHub()
	go hub.Run()
	return &WebSocketHandler{hub: hub}
}

// SetPublisher enables cross-machine fan-out.
func (h *WebSocketHandler) SetPublisher(p Publisher) {
	h.publisher = p
}

// Hub maintains active connections and broadcasts messages
type Hub struct {
	// Map of sessionId -> set of connections. Players and spectators alike.
	sessions map[string]map[*Client]bool
	mu       sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
}

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionId string
	send      chan []byte
}

type BroadcastMessage struct {
	SessionId string
	Message   []byte
}

type WSMessage struct {
	Type   string       `json:"type"`
	Game   *models.Game `json:"game,omitempty"`
	Move   *models.Move `json:"move,omitempty"`
	Result string       `json:"result,omitempty"`
	Reason string       `json:"reason,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.sessions[client.sessionId] == nil {
				h.sessions[client.sessionId] = make(map[*Client]bool)
			}
			h.sessions[client.sessionId][client] = true
			h.mu.Unlock()
			log.Printf("Client registered: session=%s", client.sessionId)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			log.Printf("Client unregistered: session=%s", client.sessionId)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.sessions[msg.SessionId] {
				select {
				case client.send <- msg.Message:
				default:
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove drops a client and closes its send channel. The caller holds h.mu.
func (h *Hub) remove(client *Client) {
	session, ok := h.sessions[client.sessionId]
	if !ok || !session[client] {
		return
	}
	delete(session, client)
	close(client.send)
	if len(session) == 0 {
		delete(h.sessions, client.sessionId)
	}
}

func (h *Hub) BroadcastToSession(sessionId string, message []byte) {
	h.broadcast <- &BroadcastMessage{
		SessionId: sessionId,
		Message:   message,
	}
}

// SessionClients returns the number of connections watching a session.
func (h *Hub) SessionClients(sessionId string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionId])
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionId := mux.Vars(r)["sessionId"]
	if sessionId == "" {
		http.Error(w, "Missing sessionId", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:       h.hub,
		conn:      conn,
		sessionId: sessionId,
		send:      make(chan []byte, 256),
	}

	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// DeliverLocal sends a message to this machine's clients only. The event bus
// calls it for messages published elsewhere.
func (h *WebSocketHandler) DeliverLocal(sessionId string, message []byte) {
	h.hub.BroadcastToSession(sessionId, message)
}

func (h *WebSocketHandler) send(sessionId string, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal %s: %v", msg.Type, err)
		return
	}
	h.hub.BroadcastToSession(sessionId, data)
	if h.publisher != nil {
		h.publisher.PublishBroadcast(sessionId, data)
	}
}

// BroadcastPlayerJoined notifies that a player has joined
func (h *WebSocketHandler) BroadcastPlayerJoined(sessionId string, game *models.Game) {
	h.send(sessionId, WSMessage{Type: "player_joined", Game: game})
}

// BroadcastMove sends a committed move to everyone watching the session
func (h *WebSocketHandler) BroadcastMove(sessionId string, game *models.Game, move *models.Move) {
	h.send(sessionId, WSMessage{Type: "move", Game: game, Move: move})
}

// BroadcastGameOver announces the result and how the game ended
func (h *WebSocketHandler) BroadcastGameOver(sessionId string, game *models.Game) {
	h.send(sessionId, WSMessage{Type: "game_over", Game: game, Result: game.Result, Reason: game.EndReason})
}

// BroadcastReset tells clients the game restarted from its initial position
func (h *WebSocketHandler) BroadcastReset(sessionId string, game *models.Game) {
	h.send(sessionId, WSMessage{Type: "reset", Game: game})
}

// GetHub returns the hub for use by other handlers
func (h *WebSocketHandler) GetHub() *Hub {
	return h.hub
}
