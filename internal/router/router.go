package router

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kasku/chat-gateway/internal/database"
	apperrors "github.com/kasku/chat-gateway/internal/errors"
	"github.com/kasku/chat-gateway/internal/extractor"
	"github.com/kasku/chat-gateway/internal/gateway"
	"github.com/kasku/chat-gateway/internal/i18n"
	"github.com/kasku/chat-gateway/internal/model"
	"github.com/kasku/chat-gateway/internal/repository"
	"github.com/kasku/chat-gateway/internal/service"
)

type Pairing interface {
	HandleInboundActivation(ctx context.Context, req service.ActivationRequest) (*model.Integration, error)
}

type Notifier interface {
	Send(ctx context.Context, out service.Outbound) error
}

type StatusSource interface {
	Status(key gateway.IdentityKey) (gateway.Connection, bool)
}

type Deps struct {
	DB           database.Transactor
	Integrations repository.IntegrationRepository
	Preferences  repository.PreferencesRepository
	Transactions repository.TransactionRepository
	Categories   repository.CategoryRepository
	Pairing      Pairing
	Delegate     extractor.Delegate
	Notifier     Notifier
	Status       StatusSource
}

// Router resolves the sender of each inbound message and dispatches it to
// pairing, a command responder or the extraction delegate.
type Router struct {
	Deps
	defaultLocale   model.Locale
	defaultLocation *time.Location
	now             func() time.Time
}

func New(deps Deps, defaultLocale model.Locale, defaultLocation *time.Location) *Router {
	if defaultLocation == nil {
		defaultLocation = time.UTC
	}
	return &Router{
		Deps:            deps,
		defaultLocale:   defaultLocale,
		defaultLocation: defaultLocation,
		now:             time.Now,
	}
}

var _ gateway.MessageHandler = (*Router)(nil)

// account is the resolved owner of a bound identity.
type account struct {
	ID       string
	Locale   model.Locale
	Location *time.Location
}

func (r *Router) HandleInbound(ctx context.Context, msg gateway.Inbound) {
	if msg.FromMe || msg.IsGroup || msg.IsBroadcast {
		return
	}

	payload := Classify(msg)
	logger := log.With().
		Str("connection", msg.ConnectionKey.String()).
		Str("from", msg.From).
		Str("kind", string(payload.Kind())).
		Logger()
	logger.Debug().Str("messageId", msg.MessageID).Msg("inbound message classified")

	if act, ok := payload.(Activation); ok {
		r.handleActivation(ctx, msg, act)
		return
	}

	integration, err := r.Integrations.FindActiveByIdentity(ctx, msg.From)
	if err != nil {
		logger.Error().Err(err).Msg("failed to resolve identity")
		r.reply(ctx, msg, "", model.NotificationCategoryReply, i18n.T(r.defaultLocale, i18n.KeyTemporaryFailure))
		return
	}
	if integration == nil {
		r.reply(ctx, msg, "", model.NotificationCategoryPairing, i18n.T(r.defaultLocale, i18n.KeyPairingInstructions))
		return
	}

	acct := r.resolveAccount(ctx, integration.AccountID)

	switch p := payload.(type) {
	case Command:
		r.handleCommand(ctx, msg, acct, p)
	case Text:
		r.handleText(ctx, logger, msg, acct, p)
	case Voice:
		r.handleMedia(ctx, logger, msg, acct, extractor.Payload{Kind: extractor.PayloadVoice, MimeType: p.Media.MimeType}, p.Media)
	case Image:
		r.handleMedia(ctx, logger, msg, acct, extractor.Payload{Kind: extractor.PayloadImage, MimeType: p.Media.MimeType, Text: p.Caption}, p.Media)
	case Unsupported:
		r.reply(ctx, msg, acct.ID, model.NotificationCategoryReply, i18n.T(acct.Locale, i18n.KeyUnsupported))
	default:
		logger.Error().Msgf("unhandled payload %T", payload)
	}
}

func (r *Router) handleActivation(ctx context.Context, msg gateway.Inbound, act Activation) {
	integration, err := r.Pairing.HandleInboundActivation(ctx, service.ActivationRequest{
		Code:             act.Code,
		ExternalIdentity: msg.From,
		DisplayName:      msg.DisplayName,
	})
	if err != nil {
		r.reply(ctx, msg, "", model.NotificationCategoryPairing, i18n.T(r.defaultLocale, activationReplyKey(err)))
		return
	}

	acct := r.resolveAccount(ctx, integration.AccountID)
	r.reply(ctx, msg, acct.ID, model.NotificationCategoryPairing, i18n.T(acct.Locale, i18n.KeyActivationSuccess, msg.From))
}

func activationReplyKey(err error) i18n.Key {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeInvalidActivationCode:
		return i18n.KeyActivationInvalid
	case apperrors.ErrCodeActivationExpired:
		return i18n.KeyActivationExpired
	case apperrors.ErrCodeActivationUsed:
		return i18n.KeyActivationUsed
	case apperrors.ErrCodeIdentityAlreadyBound:
		return i18n.KeyIdentityBound
	case apperrors.ErrCodeRateLimitExceeded:
		return i18n.KeyActivationThrottled
	default:
		log.Error().Err(err).Msg("activation failed")
		return i18n.KeyTemporaryFailure
	}
}

func (r *Router) handleCommand(ctx context.Context, msg gateway.Inbound, acct account, cmd Command) {
	var body string

	switch cmd.Name {
	case CommandHelp:
		body = i18n.T(acct.Locale, i18n.KeyHelp)

	case CommandBalance:
		now := r.now().In(acct.Location)
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, acct.Location)
		summary, err := r.Transactions.Summary(ctx, acct.ID, monthStart.Unix(), now.Unix()+1)
		if err != nil {
			log.Error().Err(err).Str("accountId", acct.ID).Msg("failed to load balance summary")
			body = i18n.T(acct.Locale, i18n.KeyTemporaryFailure)
			break
		}
		body = i18n.T(acct.Locale, i18n.KeyBalance,
			i18n.MonthLabel(acct.Locale, int(now.Month()), now.Year()),
			i18n.FormatAmount(acct.Locale, summary.Income),
			i18n.FormatAmount(acct.Locale, summary.Expense),
			i18n.FormatAmount(acct.Locale, summary.Net()),
			summary.Count,
		)

	case CommandStatus:
		state := i18n.T(acct.Locale, i18n.KeyConnectionNotReady, gateway.StateDisconnected)
		if conn, ok := r.Status.Status(msg.ConnectionKey); ok {
			if conn.Connected() {
				state = i18n.T(acct.Locale, i18n.KeyConnectionReady)
			} else {
				state = i18n.T(acct.Locale, i18n.KeyConnectionNotReady, conn.State)
			}
		}
		body = i18n.T(acct.Locale, i18n.KeyStatus, state, msg.From)
	}

	r.reply(ctx, msg, acct.ID, model.NotificationCategoryReply, body)
}

func (r *Router) handleText(ctx context.Context, logger zerolog.Logger, msg gateway.Inbound, acct account, text Text) {
	candidates, err := r.Delegate.ExtractTransactions(ctx, extractor.Payload{
		Kind:   extractor.PayloadText,
		Text:   text.Body,
		Locale: acct.Locale,
		Now:    r.now().In(acct.Location),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("extraction failed")
	}
	if err != nil || len(candidates) == 0 {
		r.reply(ctx, msg, acct.ID, model.NotificationCategoryReply, i18n.T(acct.Locale, i18n.KeyNoMatch))
		return
	}

	r.persistAndConfirm(ctx, logger, msg, acct, candidates)
}

// handleMedia acknowledges first since download and extraction can take seconds.
func (r *Router) handleMedia(ctx context.Context, logger zerolog.Logger, msg gateway.Inbound, acct account, p extractor.Payload, media gateway.Media) {
	r.reply(ctx, msg, acct.ID, model.NotificationCategoryReply, i18n.T(acct.Locale, i18n.KeyMediaAck))

	failed := func() {
		r.reply(ctx, msg, acct.ID, model.NotificationCategoryReply, i18n.T(acct.Locale, i18n.KeyMediaFailed))
	}

	if media.Fetch == nil {
		failed()
		return
	}
	data, err := media.Fetch(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("media download failed")
		failed()
		return
	}

	p.Data = data
	p.Locale = acct.Locale
	p.Now = r.now().In(acct.Location)

	candidates, err := r.Delegate.ExtractTransactions(ctx, p)
	if err != nil {
		logger.Warn().Err(err).Msg("extraction failed")
	}
	if err != nil || len(candidates) == 0 {
		failed()
		return
	}

	r.persistAndConfirm(ctx, logger, msg, acct, candidates)
}

func (r *Router) persistAndConfirm(ctx context.Context, logger zerolog.Logger, msg gateway.Inbound, acct account, candidates []extractor.Candidate) {
	lines, err := r.persist(ctx, acct, candidates)
	if err != nil {
		logger.Error().Err(err).Int("candidates", len(candidates)).Msg("failed to persist transactions")
		r.reply(ctx, msg, acct.ID, model.NotificationCategoryReply, i18n.T(acct.Locale, i18n.KeyTemporaryFailure))
		return
	}

	logger.Info().Str("accountId", acct.ID).Int("count", len(lines)).Msg("transactions recorded from chat")
	r.reply(ctx, msg, acct.ID, model.NotificationCategoryConfirmation,
		i18n.T(acct.Locale, i18n.KeyTransactionSaved, i18n.TransactionLines(acct.Locale, lines)))
}

// persist writes all candidates in one transaction so a partial receipt is never saved.
func (r *Router) persist(ctx context.Context, acct account, candidates []extractor.Candidate) ([]i18n.Line, error) {
	type resolved struct {
		candidate  extractor.Candidate
		categoryID *string
	}

	items := make([]resolved, 0, len(candidates))
	for _, c := range candidates {
		item := resolved{candidate: c}
		if c.Category != "" {
			category, err := r.Categories.FindByName(ctx, acct.ID, c.Category, c.Type)
			if err != nil {
				return nil, fmt.Errorf("find category: %w", err)
			}
			if category != nil {
				item.categoryID = &category.ID
			}
		}
		items = append(items, item)
	}

	occurredAt := r.now().Unix()
	lines := make([]i18n.Line, 0, len(items))

	err := r.DB.WithTx(ctx, func(tx *sqlx.Tx) error {
		txns := r.Transactions.WithTx(tx)
		for _, item := range items {
			c := item.candidate
			if _, err := txns.Create(ctx, model.CreateTransactionParams{
				AccountID:   acct.ID,
				CategoryID:  item.categoryID,
				Type:        c.Type,
				Amount:      c.Amount,
				Description: c.Description,
				Source:      model.TransactionSourceChat,
				AIGenerated: true,
				OccurredAt:  occurredAt,
			}); err != nil {
				return fmt.Errorf("create transaction: %w", err)
			}
			lines = append(lines, i18n.Line{
				Type:        c.Type,
				Amount:      c.Amount,
				Category:    c.Category,
				Description: c.Description,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// resolveAccount falls back to the process defaults when preferences are missing.
func (r *Router) resolveAccount(ctx context.Context, accountID string) account {
	acct := account{ID: accountID, Locale: r.defaultLocale, Location: r.defaultLocation}

	prefs, err := r.Preferences.Get(ctx, accountID)
	if err != nil {
		log.Warn().Err(err).Str("accountId", accountID).Msg("failed to load preferences, using defaults")
		return acct
	}
	if prefs == nil {
		return acct
	}

	acct.Locale = model.ParseLocale(prefs.Locale, r.defaultLocale)
	if prefs.Timezone != "" {
		if loc, err := time.LoadLocation(prefs.Timezone); err == nil {
			acct.Location = loc
		}
	}
	return acct
}

func (r *Router) reply(ctx context.Context, msg gateway.Inbound, accountID string, category model.NotificationCategory, body string) {
	_ = r.Notifier.Send(ctx, service.Outbound{
		Via:       msg.ConnectionKey,
		AccountID: accountID,
		To:        msg.From,
		Category:  category,
		Body:      body,
	})
}
