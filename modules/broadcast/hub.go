package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/go-monolith/mono/pkg/types"
)

// ErrHubStopped is returned when the hub is no longer running.
var ErrHubStopped = errors.New("hub stopped")

// Hub owns client registrations and room subscriptions. All mutations run on
// the Run goroutine, which also performs fan-out, so frames queued through
// the hub reach each client in submission order.
type Hub struct {
	clients     map[string]*Client         // clientID -> Client
	rooms       map[string]map[string]bool // room -> set of clientIDs
	memberships map[string]map[string]bool // clientID -> set of rooms
	register    chan *Client
	unregister  chan *unregistration
	subscribe   chan *subscription
	broadcast   chan *BroadcastMessage
	done        chan struct{}
	mu          sync.RWMutex
	logger      types.Logger
}

// BroadcastMessage is a payload to deliver to one client, one room, or to
// every client when both ClientID and Room are empty.
type BroadcastMessage struct {
	ClientID string
	Room     string
	Payload  any
}

type subscription struct {
	clientID string
	room     string
	ack      chan bool
}

type unregistration struct {
	client *Client
	ack    chan struct{}
}

// NewHub creates a new Hub.
func NewHub(logger types.Logger) *Hub {
	return &Hub{
		clients:     make(map[string]*Client),
		rooms:       make(map[string]map[string]bool),
		memberships: make(map[string]map[string]bool),
		register:    make(chan *Client),
		unregister:  make(chan *unregistration),
		subscribe:   make(chan *subscription),
		broadcast:   make(chan *BroadcastMessage, 256),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Run starts the hub's main loop. It returns when ctx is cancelled, closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Hub shutting down")
			h.closeAllClients()
			close(h.done)
			return
		case client := <-h.register:
			h.handleRegister(client)
		case req := <-h.unregister:
			h.handleUnregister(req.client)
			close(req.ack)
		case sub := <-h.subscribe:
			sub.ack <- h.handleSubscribe(sub)
		case msg := <-h.broadcast:
			h.handleBroadcast(msg)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		client.Close()
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]bool)
	h.memberships = make(map[string]map[string]bool)
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID()] = client
	h.memberships[client.ID()] = make(map[string]bool)
	h.logger.Debug("Client registered", "clientID", client.ID(), "username", client.Username())
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	h.removeLocked(client.ID())
	h.mu.Unlock()

	client.Close()
}

// removeLocked drops a client and all of its room subscriptions.
func (h *Hub) removeLocked(clientID string) {
	client, ok := h.clients[clientID]
	if !ok {
		return
	}

	for room := range h.memberships[clientID] {
		delete(h.rooms[room], clientID)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.memberships, clientID)
	delete(h.clients, clientID)
	h.logger.Debug("Client unregistered", "clientID", clientID, "username", client.Username())
}

func (h *Hub) handleSubscribe(sub *subscription) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[sub.clientID]; !ok {
		return false
	}

	if h.rooms[sub.room] == nil {
		h.rooms[sub.room] = make(map[string]bool)
	}
	h.rooms[sub.room][sub.clientID] = true
	h.memberships[sub.clientID][sub.room] = true
	h.logger.Debug("Client joined room", "clientID", sub.clientID, "room", sub.room)
	return true
}

func (h *Hub) handleBroadcast(msg *BroadcastMessage) {
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var slow []string
	switch {
	case msg.ClientID != "":
		if client, ok := h.clients[msg.ClientID]; ok && !client.Send(data) {
			slow = append(slow, msg.ClientID)
		}
	case msg.Room == "":
		for id, client := range h.clients {
			if !client.Send(data) {
				slow = append(slow, id)
			}
		}
	default:
		for id := range h.rooms[msg.Room] {
			if client, ok := h.clients[id]; ok && !client.Send(data) {
				slow = append(slow, id)
			}
		}
	}

	// A client that cannot keep up is disconnected rather than stalling the room.
	for _, id := range slow {
		client := h.clients[id]
		h.logger.Warn("Dropping slow client", "clientID", id, "username", client.Username())
		h.removeLocked(id)
		client.Close()
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// Unregister removes a client from the hub, drops its subscriptions and
// closes it. When it returns the hub holds no reference to the client and
// its connection has been closed.
func (h *Hub) Unregister(client *Client) {
	req := &unregistration{client: client, ack: make(chan struct{})}
	select {
	case h.unregister <- req:
		<-req.ack
	case <-h.done:
		client.Close()
	}
}

// Subscribe adds a registered client to a room. When it returns nil, every
// later broadcast to the room reaches the client.
func (h *Hub) Subscribe(clientID, room string) error {
	sub := &subscription{clientID: clientID, room: room, ack: make(chan bool, 1)}
	select {
	case h.subscribe <- sub:
	case <-h.done:
		return ErrHubStopped
	}

	if !<-sub.ack {
		return errors.New("client not registered: " + clientID)
	}
	return nil
}

// Broadcast queues payload for every client subscribed to room.
func (h *Hub) Broadcast(room string, payload any) {
	h.enqueue(&BroadcastMessage{Room: room, Payload: payload})
}

// Send queues payload for a single client, ordered with the room broadcasts
// that client receives.
func (h *Hub) Send(clientID string, payload any) {
	h.enqueue(&BroadcastMessage{ClientID: clientID, Payload: payload})
}

// BroadcastAll queues payload for every registered client.
func (h *Hub) BroadcastAll(payload any) {
	h.enqueue(&BroadcastMessage{Payload: payload})
}

func (h *Hub) enqueue(msg *BroadcastMessage) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomCount returns the number of rooms with at least one subscriber.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
