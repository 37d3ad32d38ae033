package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kasku/chat-gateway/internal/gateway"
	"github.com/kasku/chat-gateway/internal/model"
	"github.com/kasku/chat-gateway/internal/repository"
)

// Sender is the outbound primitive of the lifecycle controller.
type Sender interface {
	Send(ctx context.Context, key gateway.IdentityKey, to, body string) error
}

// Outbound is one chat message to deliver.
type Outbound struct {
	Via       gateway.IdentityKey
	AccountID string
	To        string
	Category  model.NotificationCategory
	Body      string
}

// Notifier sends chat messages and records one notification log row per attempt.
type Notifier struct {
	sender Sender
	logs   repository.NotificationLogRepository
	now    func() time.Time
}

func NewNotifier(sender Sender, logs repository.NotificationLogRepository) *Notifier {
	return &Notifier{sender: sender, logs: logs, now: time.Now}
}

// Send returns the delivery error, if any. Failing to write the log row is
// reported but does not turn a delivered message into an error.
func (n *Notifier) Send(ctx context.Context, out Outbound) error {
	sendErr := n.sender.Send(ctx, out.Via, out.To, out.Body)

	params := model.CreateNotificationLogParams{
		Category:         out.Category,
		ExternalIdentity: out.To,
		Body:             out.Body,
		Outcome:          model.NotificationOutcomeSent,
		SentAt:           n.now().Unix(),
	}
	if out.AccountID != "" {
		accountID := out.AccountID
		params.AccountID = &accountID
	}
	if sendErr != nil {
		detail := sendErr.Error()
		params.Outcome = model.NotificationOutcomeFailed
		params.ErrorDetail = &detail
	}

	// The log row survives a caller that gave up waiting for the send.
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := n.logs.Create(logCtx, params); err != nil {
		log.Error().
			Err(err).
			Str("category", string(out.Category)).
			Str("to", out.To).
			Msg("failed to record notification log")
	}

	if sendErr != nil {
		log.Warn().
			Err(sendErr).
			Str("via", out.Via.String()).
			Str("category", string(out.Category)).
			Str("to", out.To).
			Msg("outbound send failed")
	}
	return sendErr
}
