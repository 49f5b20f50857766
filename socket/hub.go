package socket

import (
	"encoding/json"
	"sync"

	"notevault/internal/note/model"
	"notevault/pkg/logger"

	"github.com/gorilla/websocket"
)

const eventBuffer = 256

type Hub struct {
	Clients    map[*Client]bool
	Broadcast  chan model.NoteEvent
	Register   chan *Client
	Unregister chan *Client

	mu   sync.Mutex
	done chan struct{}
	once sync.Once
}

type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	Identity model.Identity
	Send     chan []byte
}

func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Broadcast:  make(chan model.NoteEvent, eventBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Publish queues an event for delivery. It never blocks the write path: when
// the queue is full or the hub has stopped the event is dropped.
func (h *Hub) Publish(event model.NoteEvent) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.Broadcast <- event:
	default:
		logger.Sugar.Warnf("Event queue full, dropping %s for note %d", event.Type, event.NoteID)
	}
}

// Run owns client registration and fan-out until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case client := <-h.Register:
			h.mu.Lock()
			h.Clients[client] = true
			h.mu.Unlock()
			logger.Sugar.Infof("Client connected: %s", client.Identity.UserID)

		case client := <-h.Unregister:
			h.remove(client)

		case event := <-h.Broadcast:
			payload, err := json.Marshal(event)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling note event: %v", err)
				continue
			}

			h.mu.Lock()
			recipients := make([]*Client, 0, len(h.Clients))
			for client := range h.Clients {
				if receives(client.Identity, event) {
					recipients = append(recipients, client)
				}
			}
			h.mu.Unlock()

			for _, client := range recipients {
				select {
				case client.Send <- payload:
				default:
					// A lagging client would stall every other subscriber.
					logger.Sugar.Warnf("Client %s's send buffer is full. Unregistering.", client.Identity.UserID)
					h.remove(client)
				}
			}
		}
	}
}

// Stop ends Run and closes every connection. Safe to call more than once.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

// ConnectedClients reports how many sockets are subscribed.
func (h *Hub) ConnectedClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Clients)
}

// receives decides delivery: admins see everything, users see events about
// notes they own or just lost to another user.
func receives(id model.Identity, event model.NoteEvent) bool {
	if id.IsAdmin() {
		return true
	}
	return id.UserID == event.UserID || (event.PreviousOwner != "" && id.UserID == event.PreviousOwner)
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.Clients[client]; ok {
		delete(h.Clients, client)
		close(client.Send)
		logger.Sugar.Infof("Client disconnected: %s", client.Identity.UserID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.Clients {
		delete(h.Clients, client)
		close(client.Send)
	}
}
