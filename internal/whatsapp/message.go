package whatsapp

import (
	"context"
	"fmt"
	"strings"

	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/kasku/chat-gateway/internal/gateway"
)

type downloadFunc func(ctx context.Context, msg whatsmeow.DownloadableMessage) ([]byte, error)

// wrapMessage converts a whatsmeow message into the gateway's inbound value.
// sender is the already resolved phone JID of the author. Protocol and
// reaction messages are skipped.
func wrapMessage(key gateway.IdentityKey, evt *events.Message, sender types.JID, download downloadFunc) (gateway.Inbound, bool) {
	m := evt.Message
	if m == nil || m.ProtocolMessage != nil || m.ReactionMessage != nil {
		return gateway.Inbound{}, false
	}

	in := gateway.Inbound{
		ConnectionKey: key,
		MessageID:     string(evt.Info.ID),
		From:          sender.User,
		DisplayName:   evt.Info.PushName,
		IsGroup:       evt.Info.IsGroup,
		IsBroadcast:   evt.Info.Chat.Server == types.BroadcastServer,
		FromMe:        evt.Info.IsFromMe,
		ReceivedAt:    evt.Info.Timestamp,
	}

	fetch := func(dm whatsmeow.DownloadableMessage) func(context.Context) ([]byte, error) {
		return func(ctx context.Context) ([]byte, error) {
			data, err := download(ctx, dm)
			if err != nil {
				return nil, fmt.Errorf("download media: %w", err)
			}
			return data, nil
		}
	}

	switch {
	case m.Conversation != nil:
		in.Body = m.GetConversation()
	case m.ExtendedTextMessage != nil:
		in.Body = m.ExtendedTextMessage.GetText()
	case m.ImageMessage != nil:
		img := m.ImageMessage
		in.Body = img.GetCaption()
		in.Media = &gateway.Media{Kind: gateway.MediaImage, MimeType: img.GetMimetype(), Fetch: fetch(img)}
	case m.AudioMessage != nil:
		audio := m.AudioMessage
		kind := gateway.MediaAudio
		if audio.GetPTT() {
			kind = gateway.MediaVoice
		}
		in.Media = &gateway.Media{Kind: kind, MimeType: audio.GetMimetype(), Fetch: fetch(audio)}
	case m.VideoMessage != nil:
		in.Media = &gateway.Media{Kind: gateway.MediaOther, MimeType: m.VideoMessage.GetMimetype()}
	case m.DocumentMessage != nil:
		in.Media = &gateway.Media{Kind: gateway.MediaOther, MimeType: m.DocumentMessage.GetMimetype()}
	case m.StickerMessage != nil:
		in.Media = &gateway.Media{Kind: gateway.MediaOther, MimeType: m.StickerMessage.GetMimetype()}
	}

	return in, true
}

// ParseJID accepts a bare phone number or a full JID.
// resolveSender maps a hidden (LID) sender to its phone-number JID. Replies
// and integration lookups are keyed by phone number, so a hidden sender with
// no known mapping is reported as unresolved.
func resolveSender(ctx context.Context, sender types.JID, altJID func(context.Context, types.JID) (types.JID, error)) (types.JID, bool) {
	if sender.Server != types.HiddenUserServer {
		return sender, true
	}
	alt, err := altJID(ctx, sender)
	if err != nil || alt.IsEmpty() || alt.Server == types.HiddenUserServer {
		return types.JID{}, false
	}
	return alt, true
}

func ParseJID(s string) (types.JID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.JID{}, fmt.Errorf("empty JID")
	}
	if strings.Contains(s, "@") {
		return types.ParseJID(s)
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) < 8 {
		return types.JID{}, fmt.Errorf("phone number too short: %s", s)
	}
	return types.NewJID(digits, types.DefaultUserServer), nil
}

func textMessage(body string) *waE2E.Message {
	return &waE2E.Message{Conversation: proto.String(body)}
}
