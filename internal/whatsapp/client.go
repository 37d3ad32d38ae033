package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/kasku/chat-gateway/internal/gateway"
	"github.com/kasku/chat-gateway/internal/repository"
)

// Factory builds whatsmeow-backed clients, one device per identity key.
type Factory struct {
	devices *deviceStore
}

var _ gateway.ClientFactory = (*Factory)(nil)

func NewFactory(container *sqlstore.Container, devices repository.DeviceRepository, deviceName string) *Factory {
	store.SetOSInfo(deviceName, [3]uint32{1, 0, 0})
	return &Factory{devices: &deviceStore{container: container, devices: devices}}
}

func (f *Factory) New(key gateway.IdentityKey, onEvent func(gateway.Event)) (gateway.Client, error) {
	return &Client{key: key, devices: f.devices, onEvent: onEvent}, nil
}

// Client adapts one whatsmeow connection to the gateway lifecycle.
type Client struct {
	key     gateway.IdentityKey
	devices *deviceStore
	onEvent func(gateway.Event)

	mu      sync.Mutex
	wa      *whatsmeow.Client
	handler func(gateway.Inbound)
	cancel  context.CancelFunc
}

var _ gateway.Client = (*Client)(nil)

func (c *Client) Start(ctx context.Context) error {
	device, err := c.devices.load(ctx, c.key)
	if err != nil {
		return classifyLaunchError(err)
	}

	logger := waLog.Zerolog(log.Logger.With().
		Str("component", "whatsmeow").
		Str("identityKey", c.key.String()).
		Logger())
	wa := whatsmeow.NewClient(device, logger)
	// Recovery belongs to the gateway controller.
	wa.EnableAutoReconnect = false
	wa.AddEventHandler(c.handleEvent)

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.wa = wa
	c.cancel = cancel
	c.mu.Unlock()

	c.onEvent(gateway.Event{Kind: gateway.EventLoading})

	if wa.Store.ID == nil {
		qrChan, err := wa.GetQRChannel(runCtx)
		if err != nil {
			return fmt.Errorf("get qr channel: %w", err)
		}
		if err := wa.Connect(); err != nil {
			return classifyLaunchError(err)
		}
		go c.watchQR(runCtx, qrChan)
		return nil
	}

	if err := wa.Connect(); err != nil {
		return classifyLaunchError(err)
	}
	return nil
}

func (c *Client) watchQR(ctx context.Context, qrChan <-chan whatsmeow.QRChannelItem) {
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-qrChan:
			if !ok {
				return
			}
			switch item.Event {
			case "code":
				c.onEvent(gateway.Event{Kind: gateway.EventQR, QR: item.Code})
			case "success":
				return
			case "timeout":
				c.onEvent(gateway.Event{Kind: gateway.EventLaunchFailed, Reason: "qr code expired"})
				return
			default:
				reason := item.Event
				if item.Error != nil {
					reason = item.Error.Error()
				}
				c.onEvent(gateway.Event{Kind: gateway.EventLaunchFailed, Reason: "pairing failed: " + reason})
				return
			}
		}
	}
}

func (c *Client) handleEvent(raw any) {
	switch evt := raw.(type) {
	case *events.Message:
		c.handleMessage(evt)
		return
	case *events.PairSuccess:
		c.devices.bind(c.key, evt.ID)
		log.Info().
			Str("identityKey", c.key.String()).
			Str("jid", evt.ID.String()).
			Str("platform", evt.Platform).
			Msg("device paired")
	}

	if ev, ok := translate(raw); ok {
		c.onEvent(ev)
	}
}

func (c *Client) handleMessage(evt *events.Message) {
	c.mu.Lock()
	handler := c.handler
	wa := c.wa
	c.mu.Unlock()
	if handler == nil || wa == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	sender, ok := resolveSender(ctx, evt.Info.Sender, wa.Store.GetAltJID)
	cancel()
	if !ok {
		log.Warn().
			Str("identityKey", c.key.String()).
			Str("sender", evt.Info.Sender.String()).
			Str("messageId", string(evt.Info.ID)).
			Msg("inbound message dropped: no phone number for hidden sender")
		return
	}

	msg, ok := wrapMessage(c.key, evt, sender.ToNonAD(), wa.Download)
	if !ok {
		return
	}
	handler(msg)
}

func (c *Client) OnMessage(fn func(gateway.Inbound)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = fn
}

func (c *Client) SendText(ctx context.Context, to, body string) error {
	c.mu.Lock()
	wa := c.wa
	c.mu.Unlock()
	if wa == nil || !wa.IsConnected() {
		return gateway.ErrNotReady
	}

	jid, err := ParseJID(to)
	if err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	if _, err := wa.SendMessage(ctx, jid, textMessage(body)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	wa := c.wa
	c.mu.Unlock()
	defer c.devices.unbind(ctx, c.key)
	if wa == nil {
		return nil
	}

	if err := wa.Logout(ctx); err != nil {
		if wa.Store != nil {
			if delErr := wa.Store.Delete(ctx); delErr != nil {
				log.Warn().Err(delErr).Str("identityKey", c.key.String()).Msg("delete device store")
			}
		}
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (c *Client) Destroy() error {
	c.mu.Lock()
	wa := c.wa
	cancel := c.cancel
	c.wa = nil
	c.cancel = nil
	c.handler = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wa == nil {
		return nil
	}
	wa.RemoveEventHandlers()
	wa.Disconnect()
	return nil
}

// classifyLaunchError marks network-level failures as transient.
func classifyLaunchError(err error) error {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EMFILE):
		return fmt.Errorf("%w: %w", gateway.ErrTransientLaunch, err)
	}
	return err
}
