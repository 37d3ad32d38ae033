package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kasku/chat-gateway/internal/model"
)

type PayloadKind string

const (
	PayloadText  PayloadKind = "text"
	PayloadVoice PayloadKind = "voice"
	PayloadImage PayloadKind = "image"
)

// Payload is the raw input handed to the delegate.
type Payload struct {
	Kind     PayloadKind
	Text     string
	Data     []byte
	MimeType string
	Locale   model.Locale
	Now      time.Time
}

// Candidate is one transaction proposed by the delegate.
type Candidate struct {
	Amount      decimal.Decimal       `json:"amount"`
	Type        model.TransactionType `json:"type"`
	Category    string                `json:"category"`
	Description string                `json:"description"`
}

// Delegate turns free-form input into transaction candidates. An empty
// result with a nil error means nothing was recognized.
type Delegate interface {
	ExtractTransactions(ctx context.Context, p Payload) ([]Candidate, error)
}

var ErrUnavailable = errors.New("extractor not configured")

// Unavailable is used when no model credentials are configured.
type Unavailable struct{}

func (Unavailable) ExtractTransactions(ctx context.Context, p Payload) ([]Candidate, error) {
	return nil, ErrUnavailable
}

type candidateEnvelope struct {
	Transactions []Candidate `json:"transactions"`
}

// ParseCandidates decodes a model reply and drops entries that are not usable.
func ParseCandidates(raw string) ([]Candidate, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return nil, nil
	}

	var env candidateEnvelope
	if err := json.Unmarshal([]byte(raw[start:end+1]), &env); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}

	out := make([]Candidate, 0, len(env.Transactions))
	for _, c := range env.Transactions {
		c.Type = model.TransactionType(strings.ToLower(string(c.Type)))
		if !c.Type.Valid() || !c.Amount.IsPositive() {
			continue
		}
		c.Category = strings.TrimSpace(c.Category)
		c.Description = strings.TrimSpace(c.Description)
		out = append(out, c)
	}
	return out, nil
}
