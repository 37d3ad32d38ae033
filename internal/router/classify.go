package router

import (
	"regexp"
	"strings"

	"github.com/kasku/chat-gateway/internal/gateway"
)

type Kind string

const (
	KindActivation  Kind = "activation"
	KindCommand     Kind = "command"
	KindText        Kind = "text"
	KindVoice       Kind = "voice"
	KindImage       Kind = "image"
	KindUnsupported Kind = "unsupported"
)

// Payload is an inbound message after classification. The set of
// implementations is closed: Activation, Command, Text, Voice, Image and
// Unsupported.
type Payload interface {
	Kind() Kind
	payload()
}

type Activation struct {
	Code string
}

type CommandName string

const (
	CommandHelp    CommandName = "help"
	CommandBalance CommandName = "balance"
	CommandStatus  CommandName = "status"
)

type Command struct {
	Name CommandName
}

type Text struct {
	Body string
}

type Voice struct {
	Media gateway.Media
}

type Image struct {
	Media   gateway.Media
	Caption string
}

type Unsupported struct{}

func (Activation) Kind() Kind  { return KindActivation }
func (Command) Kind() Kind     { return KindCommand }
func (Text) Kind() Kind        { return KindText }
func (Voice) Kind() Kind       { return KindVoice }
func (Image) Kind() Kind       { return KindImage }
func (Unsupported) Kind() Kind { return KindUnsupported }

func (Activation) payload()  {}
func (Command) payload()     {}
func (Text) payload()        {}
func (Voice) payload()       {}
func (Image) payload()       {}
func (Unsupported) payload() {}

var activationPattern = regexp.MustCompile(`(?i)^(?:ACTIVATE|AKTIVASI):\s*([A-Z0-9]{6})$`)

// commandKeywords holds every recognized keyword in both languages, lowercased.
var commandKeywords = map[string]CommandName{
	"help":    CommandHelp,
	"bantuan": CommandHelp,
	"menu":    CommandHelp,
	"balance": CommandBalance,
	"saldo":   CommandBalance,
	"status":  CommandStatus,
}

// ParseActivation extracts the normalized code from an activation message.
func ParseActivation(body string) (string, bool) {
	m := activationPattern.FindStringSubmatch(strings.TrimSpace(body))
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]), true
}

// Classify maps every inbound message to exactly one payload.
func Classify(msg gateway.Inbound) Payload {
	if msg.Media != nil {
		switch msg.Media.Kind {
		case gateway.MediaVoice, gateway.MediaAudio:
			return Voice{Media: *msg.Media}
		case gateway.MediaImage:
			return Image{Media: *msg.Media, Caption: strings.TrimSpace(msg.Body)}
		default:
			return Unsupported{}
		}
	}

	body := strings.TrimSpace(msg.Body)
	if body == "" {
		return Unsupported{}
	}
	if code, ok := ParseActivation(body); ok {
		return Activation{Code: code}
	}
	if name, ok := commandKeywords[strings.ToLower(body)]; ok {
		return Command{Name: name}
	}
	return Text{Body: body}
}
