package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kasku/chat-gateway/internal/config"
)

func TestKeyFor(t *testing.T) {
	assert.Equal(t, IdentityKey("default"), KeyFor(config.GatewayModeShared, "acct-1"))
	assert.Equal(t, IdentityKey("acct-1"), KeyFor(config.GatewayModePerAccount, "acct-1"))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	a := &session{key: "b", conn: NewConnection("b", testPolicy, now)}
	b := &session{key: "a", conn: NewConnection("a", testPolicy, now)}

	t.Run("put inserts once per key", func(t *testing.T) {
		got, inserted := r.put(a)
		assert.True(t, inserted)
		assert.Same(t, a, got)

		dup := &session{key: "b"}
		got, inserted = r.put(dup)
		assert.False(t, inserted)
		assert.Same(t, a, got)
	})

	t.Run("get returns a snapshot copy", func(t *testing.T) {
		conn, ok := r.Get("b")
		assert.True(t, ok)
		conn.State = StateReady

		again, _ := r.Get("b")
		assert.Equal(t, StateInitializing, again.State)
	})

	t.Run("list is ordered by key", func(t *testing.T) {
		r.put(b)
		list := r.List()
		assert.Len(t, list, 2)
		assert.Equal(t, IdentityKey("a"), list[0].Key)
		assert.Equal(t, IdentityKey("b"), list[1].Key)
	})

	t.Run("remove ignores a replaced session", func(t *testing.T) {
		stale := &session{key: "a"}
		assert.False(t, r.remove(stale))
		assert.Equal(t, 2, r.Len())

		assert.True(t, r.remove(b))
		_, ok := r.Get("a")
		assert.False(t, ok)
	})
}
