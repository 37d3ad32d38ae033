package gateway

import (
	"context"
	"time"
)

// Client is the automation client driving one chat identity.
type Client interface {
	// Start begins connecting and returns once the attempt is underway.
	// Lifecycle progress is reported through the factory's event callback.
	Start(ctx context.Context) error
	SendText(ctx context.Context, to, body string) error
	// OnMessage installs the inbound handler. Calling it again replaces the handler.
	OnMessage(fn func(Inbound))
	// Logout unlinks the device from the account on the network.
	Logout(ctx context.Context) error
	Destroy() error
}

type ClientFactory interface {
	New(key IdentityKey, onEvent func(Event)) (Client, error)
}

// MessageHandler receives inbound chat events once a connection is ready.
type MessageHandler interface {
	HandleInbound(ctx context.Context, msg Inbound)
}

// Publisher fans connection transitions out to dashboards.
type Publisher interface {
	PublishConnection(ctx context.Context, conn Connection) error
}

type MediaKind string

const (
	MediaVoice MediaKind = "voice"
	MediaAudio MediaKind = "audio"
	MediaImage MediaKind = "image"
	MediaOther MediaKind = "other"
)

// Media references an attachment that is downloaded on demand.
type Media struct {
	Kind     MediaKind
	MimeType string
	Fetch    func(ctx context.Context) ([]byte, error)
}

// Inbound is a chat event wrapped at the client boundary.
type Inbound struct {
	ConnectionKey IdentityKey
	MessageID     string
	From          string
	DisplayName   string
	Body          string
	Media         *Media
	IsGroup       bool
	IsBroadcast   bool
	FromMe        bool
	ReceivedAt    time.Time
}
