package sse

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasku/chat-gateway/internal/gateway"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()

	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/15"
	}
	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available for testing")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestBroker_SubscribeUnsubscribe(t *testing.T) {
	broker := NewBroker(redis.NewClient(&redis.Options{Addr: "localhost:0"}))
	defer broker.Close()

	a := broker.Subscribe("acct-1")
	b := broker.Subscribe("acct-1")
	c := broker.Subscribe("acct-2")

	assert.Equal(t, 2, broker.ClientCount("acct-1"))
	assert.Equal(t, 3, broker.TotalClients())

	broker.Unsubscribe(a)
	assert.Equal(t, 1, broker.ClientCount("acct-1"))

	select {
	case <-a.Done:
	default:
		t.Fatal("expected Done to be closed after unsubscribe")
	}

	broker.Unsubscribe(b)
	broker.Unsubscribe(c)
	assert.Equal(t, 0, broker.TotalClients())
}

func TestBroker_BroadcastDropsWhenFull(t *testing.T) {
	broker := NewBroker(redis.NewClient(&redis.Options{Addr: "localhost:0"}))
	defer broker.Close()

	client := broker.Subscribe("acct-1")
	for i := 0; i < cap(client.Events)+5; i++ {
		broker.broadcast("acct-1", Event{Type: "ping"})
	}
	assert.Len(t, client.Events, cap(client.Events))
}

func TestBroker_PublishConnection(t *testing.T) {
	rdb := testClient(t)
	broker := NewBroker(rdb)
	defer broker.Close()

	client := broker.Subscribe("acct-1")

	conn := gateway.Connection{Key: gateway.IdentityKey("acct-1"), State: gateway.StateReady}

	// the redis subscription starts asynchronously
	deadline := time.After(5 * time.Second)
	for {
		require.NoError(t, broker.PublishConnection(context.Background(), conn))
		select {
		case event := <-client.Events:
			assert.Equal(t, EventConnection, event.Type)

			var got gateway.Connection
			require.NoError(t, json.Unmarshal(event.Data, &got))
			assert.Equal(t, gateway.StateReady, got.State)
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}
