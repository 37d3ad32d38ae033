package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kasku/chat-gateway/internal/gateway"
)

func TestTerminalPublisher(t *testing.T) {
	var out bytes.Buffer
	p := newTerminalPublisher(&out)
	ctx := context.Background()

	qr := gateway.Connection{Key: "default", State: gateway.StateQRIssued, QRCode: "2@abc,def,ghi"}
	assert.NoError(t, p.PublishConnection(ctx, qr))
	first := out.Len()
	assert.Positive(t, first)
	assert.Equal(t, 1, strings.Count(out.String(), "Scan this code"))

	// Same code is not drawn twice.
	assert.NoError(t, p.PublishConnection(ctx, qr))
	assert.Equal(t, first, out.Len())

	select {
	case <-p.ready:
		t.Fatal("ready before connection")
	default:
	}

	assert.NoError(t, p.PublishConnection(ctx, gateway.Connection{Key: "default", State: gateway.StateReady}))
	assert.NoError(t, p.PublishConnection(ctx, gateway.Connection{Key: "default", State: gateway.StateReady}))

	select {
	case <-p.ready:
	default:
		t.Fatal("expected ready")
	}
}
