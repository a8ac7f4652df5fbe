package livechat

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"github.com/mindwell-app/mindwell-server/cmd/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	userID        uint
	appointmentID uint
}

// Hub groups live-session connections by appointment.
type Hub struct {
	mu    sync.RWMutex
	rooms map[uint]map[*Client]bool
	db    *gorm.DB
}

func NewHub(db *gorm.DB) *Hub {
	return &Hub{
		rooms: make(map[uint]map[*Client]bool),
		db:    db,
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[client.appointmentID] == nil {
		h.rooms[client.appointmentID] = make(map[*Client]bool)
	}
	h.rooms[client.appointmentID][client] = true
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.rooms[client.appointmentID]; ok {
		if clients[client] {
			delete(clients, client)
			close(client.send)
		}
		if len(clients) == 0 {
			delete(h.rooms, client.appointmentID)
		}
	}
}

func (h *Hub) broadcast(appointmentID uint, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[appointmentID] {
		select {
		case client.send <- payload:
		default:
			// Slow consumer; the read pump will clean up.
		}
	}
}

type inboundMessage struct {
	Content string `json:"content"`
}

type outboundMessage struct {
	MessageID     uint      `json:"message_id"`
	AppointmentID uint      `json:"appointment_id"`
	SenderID      uint      `json:"sender_id"`
	Content       string    `json:"content"`
	SentAt        time.Time `json:"sent_at"`
}

// readPump persists each inbound message before fanning it out, so the
// transcript survives even if every peer disconnects mid-session.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Live chat read error for user %d: %v", c.userID, err)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Content == "" {
			continue
		}

		record := models.LiveChatMessage{
			AppointmentID: c.appointmentID,
			SenderID:      c.userID,
			Content:       msg.Content,
		}
		if err := c.hub.db.Create(&record).Error; err != nil {
			log.Printf("Error saving live chat message: %v", err)
			continue
		}

		payload, err := json.Marshal(outboundMessage{
			MessageID:     record.ID,
			AppointmentID: record.AppointmentID,
			SenderID:      record.SenderID,
			Content:       record.Content,
			SentAt:        record.CreatedAt,
		})
		if err != nil {
			continue
		}
		c.hub.broadcast(c.appointmentID, payload)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
