package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/kasku/chat-gateway/internal/gateway"
	redisclient "github.com/kasku/chat-gateway/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
)

// EventConnection carries a gateway.Connection snapshot.
const EventConnection = "connection"

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Client struct {
	Key    string
	Events chan Event
	Done   chan struct{}
}

type Broker struct {
	redis   redis.UniversalClient
	clients map[string]map[*Client]bool // identity key -> set of clients
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewBroker(redisClient redis.UniversalClient) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		clients: make(map[string]map[*Client]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Broker) Subscribe(key string) *Client {
	client := &Client{
		Key:    key,
		Events: make(chan Event, 100),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.clients[key] == nil {
		b.clients[key] = make(map[*Client]bool)
		go b.subscribeToRedis(key)
	}
	b.clients[key][client] = true
	clientCount := len(b.clients[key])
	b.mu.Unlock()

	log.Info().
		Str("key", key).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, ok := b.clients[client.Key]; ok {
		delete(clients, client)
		close(client.Done)

		if len(clients) == 0 {
			delete(b.clients, client.Key)
		}

		log.Info().
			Str("key", client.Key).
			Int("clientCount", len(clients)).
			Msg("sse client unsubscribed")
	}
}

func (b *Broker) Publish(ctx context.Context, key string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.ConnectionChannel(key)
	return b.redis.Publish(ctx, channel, data).Err()
}

// PublishConnection fans a lifecycle transition out to every replica.
func (b *Broker) PublishConnection(ctx context.Context, conn gateway.Connection) error {
	data, err := json.Marshal(conn)
	if err != nil {
		return err
	}
	return b.Publish(ctx, conn.Key.String(), Event{Type: EventConnection, Data: data})
}

var _ gateway.Publisher = (*Broker)(nil)

func (b *Broker) subscribeToRedis(key string) {
	channel := redisclient.ConnectionChannel(key)
	pubsub := b.redis.Subscribe(b.ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("key", key).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-b.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(key, event)
		}
	}
}

func (b *Broker) broadcast(key string, event Event) {
	b.mu.RLock()
	clients := make([]*Client, 0, len(b.clients[key]))
	for client := range b.clients[key] {
		clients = append(clients, client)
	}
	b.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("key", key).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, clients := range b.clients {
		for client := range clients {
			close(client.Done)
		}
	}
	b.clients = make(map[string]map[*Client]bool)
}

func (b *Broker) ClientCount(key string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[key])
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, clients := range b.clients {
		total += len(clients)
	}
	return total
}
