package whatsapp

import (
	"fmt"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/kasku/chat-gateway/internal/gateway"
)

const keepAliveFailureLimit = 3

// translate maps a whatsmeow event onto a lifecycle event. Events that do not
// affect the lifecycle return false.
func translate(raw any) (gateway.Event, bool) {
	switch evt := raw.(type) {
	case *events.Connected:
		return gateway.Event{Kind: gateway.EventReady}, true

	case *events.PairSuccess:
		return gateway.Event{Kind: gateway.EventAuthenticated}, true

	case *events.LoggedOut:
		return gateway.Event{Kind: gateway.EventAuthFailure, Reason: fmt.Sprintf("logged out (%v)", evt.Reason)}, true

	case *events.TemporaryBan:
		return gateway.Event{Kind: gateway.EventAuthFailure, Reason: fmt.Sprintf("temporary ban (%v, expires in %s)", evt.Code, evt.Expire)}, true

	case *events.ConnectFailure:
		if evt.Reason.IsLoggedOut() {
			return gateway.Event{Kind: gateway.EventAuthFailure, Reason: fmt.Sprintf("connect failure (%v)", evt.Reason)}, true
		}
		return gateway.Event{Kind: gateway.EventDisconnected, Reason: fmt.Sprintf("connect failure (%v)", evt.Reason)}, true

	case *events.Disconnected:
		return gateway.Event{Kind: gateway.EventDisconnected, Reason: "connection lost"}, true

	case *events.StreamReplaced:
		return gateway.Event{Kind: gateway.EventDisconnected, Reason: "stream replaced"}, true

	case *events.StreamError:
		switch evt.Code {
		case "503", "540", "541":
			return gateway.Event{Kind: gateway.EventDisconnected, Reason: "stream error " + evt.Code}, true
		}
		return gateway.Event{}, false

	case *events.KeepAliveTimeout:
		if evt.ErrorCount >= keepAliveFailureLimit {
			return gateway.Event{Kind: gateway.EventDisconnected, Reason: "keepalive timeout"}, true
		}
		return gateway.Event{}, false
	}
	return gateway.Event{}, false
}
