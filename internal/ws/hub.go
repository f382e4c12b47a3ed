package ws

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ignatzorin/auction-backend/internal/goroutine"
)

// Hub управляет WebSocket подключениями. Клиент подписан на комнату одного
// аукциона (трансляция ставок) и всегда адресуем по userID (личные
// оповещения, например о победе).
type Hub struct {
	mu         sync.RWMutex
	rooms      map[uuid.UUID]map[*Client]struct{}
	users      map[uuid.UUID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
}

type message struct {
	auctionID uuid.UUID
	userID    uuid.UUID
	payload   []byte
}

// NewHub создаёт новый хаб.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]struct{}),
		users:      make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 64),
	}
}

// Run запускает главный цикл хаба.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg)
		}
	}
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastToAuction отправляет событие всем подписчикам комнаты аукциона.
func (h *Hub) BroadcastToAuction(auctionID uuid.UUID, event string, data any) error {
	raw, err := encode(event, data)
	if err != nil {
		return err
	}
	h.broadcast <- message{auctionID: auctionID, payload: raw}
	return nil
}

// SendToUser отправляет событие всем подключениям конкретного пользователя.
func (h *Hub) SendToUser(userID uuid.UUID, event string, data any) error {
	raw, err := encode(event, data)
	if err != nil {
		return err
	}
	h.broadcast <- message{userID: userID, payload: raw}
	return nil
}

// encode сериализует событие по контракту WebSocket API: "type" — имя
// события, "data" — полезная нагрузка.
func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(map[string]any{
		"type": event,
		"data": data,
	})
	if err != nil {
		return nil, fmt.Errorf("ws: marshal message: %w", err)
	}
	return raw, nil
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.auctionID != uuid.Nil {
		if _, ok := h.rooms[client.auctionID]; !ok {
			h.rooms[client.auctionID] = make(map[*Client]struct{})
		}
		h.rooms[client.auctionID][client] = struct{}{}
	}
	if client.userID != uuid.Nil {
		if _, ok := h.users[client.userID]; !ok {
			h.users[client.userID] = make(map[*Client]struct{})
		}
		h.users[client.userID][client] = struct{}{}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.rooms[client.auctionID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, client.auctionID)
		}
	}
	if clients, ok := h.users[client.userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.users, client.userID)
		}
	}
}

func (h *Hub) send(msg message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var targets map[*Client]struct{}
	if msg.auctionID != uuid.Nil {
		targets = h.rooms[msg.auctionID]
	} else {
		targets = h.users[msg.userID]
	}

	for client := range targets {
		select {
		case client.send <- msg.payload:
		default:
			// Клиент не успевает читать: закрываем, не блокируя рассылку.
			goroutine.SafeGo(client.Close)
		}
	}
}
