package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/kasku/chat-gateway/internal/audit"
	"github.com/kasku/chat-gateway/internal/config"
	"github.com/kasku/chat-gateway/internal/database"
	apperrors "github.com/kasku/chat-gateway/internal/errors"
	"github.com/kasku/chat-gateway/internal/model"
	redisclient "github.com/kasku/chat-gateway/internal/redis"
	"github.com/kasku/chat-gateway/internal/repository"
	"github.com/kasku/chat-gateway/internal/util"
)

const (
	activationCodeChars    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	activationCodeLength   = 6
	maxActiveCodesPerAcct  = 5
	maxCodeGenerateRetries = 5
)

// AttemptLimiter throttles activation attempts per external identity.
type AttemptLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Time)
}

// ActivationRequest binds ExternalIdentity to the account owning Code.
type ActivationRequest struct {
	Code             string
	ExternalIdentity string
	DisplayName      string
}

type PairingService struct {
	db           database.Transactor
	codes        repository.ActivationCodeRepository
	integrations repository.IntegrationRepository
	limiter      AttemptLimiter
	now          func() time.Time
}

func NewPairingService(
	db database.Transactor,
	codes repository.ActivationCodeRepository,
	integrations repository.IntegrationRepository,
	limiter AttemptLimiter,
) *PairingService {
	return &PairingService{
		db:           db,
		codes:        codes,
		integrations: integrations,
		limiter:      limiter,
		now:          time.Now,
	}
}

// GenerateCode issues a single-use code valid for five minutes.
func (s *PairingService) GenerateCode(ctx context.Context, accountID string) (*model.ActivationCode, error) {
	now := s.now()

	active, err := s.codes.CountActiveByAccountID(ctx, accountID, now.Unix())
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("count active codes: %w", err))
	}
	if active >= maxActiveCodesPerAcct {
		return nil, apperrors.ValidationError(
			fmt.Sprintf("maximum active codes (%d) reached", maxActiveCodesPerAcct))
	}

	for attempt := 0; attempt < maxCodeGenerateRetries; attempt++ {
		code, err := generateActivationCode()
		if err != nil {
			return nil, apperrors.Internal("generate activation code").WithCause(err)
		}

		ac, err := s.codes.Create(ctx, model.CreateActivationCodeParams{
			AccountID: accountID,
			Code:      code,
			CreatedAt: now.Unix(),
			ExpiresAt: now.Add(config.ActivationCodeTTL).Unix(),
		})
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, apperrors.Database(fmt.Errorf("create activation code: %w", err))
		}

		audit.Log(ctx, audit.Event{
			Type:      audit.EventCodeGenerate,
			AccountID: accountID,
			Details:   map[string]any{"expires_at": ac.ExpiresAt},
		})
		return ac, nil
	}

	return nil, apperrors.Internal("could not allocate a unique activation code")
}

// Activate consumes the code and creates the integration in one transaction.
// A bound identity is rejected before the code is touched.
func (s *PairingService) Activate(ctx context.Context, req ActivationRequest) (*model.Integration, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	identity := strings.TrimSpace(req.ExternalIdentity)
	if code == "" || identity == "" {
		return nil, apperrors.MissingRequired("code and externalIdentity")
	}

	now := s.now().Unix()
	var integration *model.Integration

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		codes := s.codes.WithTx(tx)
		integrations := s.integrations.WithTx(tx)

		bound, err := integrations.FindActiveByIdentity(ctx, identity)
		if err != nil {
			return apperrors.Database(fmt.Errorf("find integration: %w", err))
		}
		if bound != nil {
			return apperrors.IdentityAlreadyBound()
		}

		consumed, err := codes.Consume(ctx, code, now)
		if err != nil {
			return apperrors.Database(fmt.Errorf("consume activation code: %w", err))
		}
		if consumed == nil {
			return s.rejection(ctx, codes, code, now)
		}

		var displayName *string
		if name := strings.TrimSpace(req.DisplayName); name != "" {
			displayName = &name
		}
		integration, err = integrations.Create(ctx, model.CreateIntegrationParams{
			AccountID:        consumed.AccountID,
			ExternalIdentity: identity,
			DisplayName:      displayName,
			ActivatedAt:      now,
		})
		if errors.Is(err, repository.ErrDuplicate) {
			return apperrors.IdentityAlreadyBound()
		}
		if err != nil {
			return apperrors.Database(fmt.Errorf("create integration: %w", err))
		}
		return nil
	})
	if err != nil {
		audit.Log(ctx, audit.Event{
			Type:             audit.EventActivationReject,
			ExternalIdentity: identity,
			Details:          map[string]any{"code": util.MaskCode(code), "reason": string(apperrors.GetCode(err))},
		})
		return nil, err
	}

	audit.Log(ctx, audit.Event{
		Type:             audit.EventActivationSuccess,
		AccountID:        integration.AccountID,
		ExternalIdentity: identity,
		Details:          map[string]any{"integration_id": integration.ID},
	})
	return integration, nil
}

// HandleInboundActivation is Activate for codes typed into the chat. Attempts are
// throttled per identity before the code store is consulted.
func (s *PairingService) HandleInboundActivation(ctx context.Context, req ActivationRequest) (*model.Integration, error) {
	if s.limiter != nil {
		if allowed, resetAt := s.limiter.Allow(ctx, redisclient.ActivationLimitKey(req.ExternalIdentity)); !allowed {
			audit.Log(ctx, audit.Event{
				Type:             audit.EventActivationThrottle,
				ExternalIdentity: req.ExternalIdentity,
				Details:          map[string]any{"reset_at": resetAt.Unix()},
			})
			return nil, apperrors.RateLimitExceeded()
		}
	}
	return s.Activate(ctx, req)
}

// rejection explains why a code could not be consumed.
func (s *PairingService) rejection(ctx context.Context, codes repository.ActivationCodeRepository, code string, now int64) error {
	ac, err := codes.FindByCode(ctx, code)
	if err != nil {
		return apperrors.Database(fmt.Errorf("find activation code: %w", err))
	}
	switch {
	case ac == nil:
		return apperrors.InvalidActivationCode()
	case ac.UsedAt != nil:
		return apperrors.ActivationUsed()
	case now >= ac.ExpiresAt:
		return apperrors.ActivationExpired()
	default:
		// Lost a race with a concurrent consumer between the two statements.
		return apperrors.ActivationUsed()
	}
}

func (s *PairingService) ListConnections(ctx context.Context, accountID string) ([]model.Integration, error) {
	integrations, err := s.integrations.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("list integrations: %w", err))
	}
	return integrations, nil
}

func (s *PairingService) RevokeConnection(ctx context.Context, accountID, integrationID string) error {
	revoked, err := s.integrations.Revoke(ctx, accountID, integrationID, s.now().Unix())
	if err != nil {
		return apperrors.Database(fmt.Errorf("revoke integration: %w", err))
	}
	if !revoked {
		return apperrors.NotFound("connection")
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventIntegrationRevoke,
		AccountID: accountID,
		Details:   map[string]any{"integration_id": integrationID},
	})
	log.Info().
		Str("accountId", accountID).
		Str("integrationId", integrationID).
		Msg("integration revoked")
	return nil
}

func generateActivationCode() (string, error) {
	code := make([]byte, activationCodeLength)
	alphabet := big.NewInt(int64(len(activationCodeChars)))
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabet)
		if err != nil {
			return "", err
		}
		code[i] = activationCodeChars[n.Int64()]
	}
	return string(code), nil
}
