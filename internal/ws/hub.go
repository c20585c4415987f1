package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gymsmart/gymsmart-backend/internal/domain"
	pkglogger "github.com/gymsmart/gymsmart-backend/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

const redisPubSubChannel = "gymsmart:messages"

// EventMessageInsert is pushed to the receiver of a new message
const EventMessageInsert = "message_insert"

const metricsNamespace = "gymsmart"

var (
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "realtime_deliveries_total",
			Help:      "Realtime events handed to local websocket clients",
		},
		[]string{"type", "result"},
	)
	connectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "realtime_connected_clients",
			Help:      "Open websocket connections on this instance",
		},
	)
)

// Event is a realtime event sent via WebSocket
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent encodes payload into an event
func NewEvent(eventType string, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{Type: eventType, Payload: data}, nil
}

// Hub keeps the websocket clients of this instance grouped by user and
// fans events out across instances through redis pub/sub.
type Hub struct {
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *targetedEvent

	mu          sync.RWMutex
	redisClient *redis.Client
	ctx         context.Context
	cancel      context.CancelFunc
}

type targetedEvent struct {
	UserID string `json:"user_id"`
	Event  *Event `json:"event"`
}

// NewHub creates a new Hub; redisClient may be nil for a single instance
func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *targetedEvent, 256),
		redisClient: redisClient,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a client and closes its send channel
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// ClientCount returns the number of connections open for a user
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	if h.redisClient != nil {
		go h.subscribeRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]bool)
			}
			h.clients[client.userID][client] = true
			h.mu.Unlock()
			connectedClients.Inc()

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.deliver(msg)

		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	connectedClients.Dec()
	if len(clients) == 0 {
		delete(h.clients, client.userID)
	}
}

// deliver writes the event to every local connection of the user; slow
// clients whose buffer is full are dropped
func (h *Hub) deliver(msg *targetedEvent) {
	data, err := json.Marshal(msg.Event)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients[msg.UserID] {
		select {
		case client.send <- data:
			deliveriesTotal.WithLabelValues(msg.Event.Type, "sent").Inc()
		default:
			deliveriesTotal.WithLabelValues(msg.Event.Type, "dropped").Inc()
			h.removeLocked(client)
		}
	}
}

// SendToUser sends an event to a user (local + redis publish)
func (h *Hub) SendToUser(userID string, event *Event) {
	target := &targetedEvent{UserID: userID, Event: event}

	if h.redisClient != nil {
		data, err := json.Marshal(target)
		if err == nil {
			if err := h.redisClient.Publish(h.ctx, redisPubSubChannel, data).Err(); err == nil {
				// the local subscriber delivers it
				return
			}
			pkglogger.GetLogger().Warn().Err(err).Msg("redis publish failed, delivering locally")
		}
	}

	select {
	case h.broadcast <- target:
	case <-h.ctx.Done():
	}
}

// PublishInsert pushes a newly inserted message to its receiver
func (h *Hub) PublishInsert(msg *domain.Message) {
	event, err := NewEvent(EventMessageInsert, msg)
	if err != nil {
		return
	}
	h.SendToUser(msg.ReceiverID, event)
}

// subscribeRedis listens for events published by any instance
func (h *Hub) subscribeRedis() {
	pubsub := h.redisClient.Subscribe(h.ctx, redisPubSubChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var target targetedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &target); err != nil || target.Event == nil {
				continue
			}
			select {
			case h.broadcast <- &target:
			case <-h.ctx.Done():
				return
			}
		case <-h.ctx.Done():
			return
		}
	}
}

// Stop gracefully shuts down the hub
func (h *Hub) Stop() {
	h.cancel()
}
