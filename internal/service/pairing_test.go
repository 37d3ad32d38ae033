package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kasku/chat-gateway/internal/errors"
	"github.com/kasku/chat-gateway/internal/model"
	"github.com/kasku/chat-gateway/internal/repository"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestPairing(limiter AttemptLimiter) (*PairingService, *fakeCodeRepo, *fakeIntegrationRepo) {
	codes := newFakeCodeRepo()
	integrations := &fakeIntegrationRepo{}
	svc := NewPairingService(fakeTransactor{}, codes, integrations, limiter)
	svc.now = func() time.Time { return t0 }
	return svc, codes, integrations
}

func TestGenerateActivationCode(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z2-9]{6}$`)

	for i := 0; i < 100; i++ {
		code, err := generateActivationCode()
		require.NoError(t, err)
		assert.True(t, pattern.MatchString(code), "unexpected code %q", code)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(activationCodeChars, c))
		}
	}
}

func TestActivationCodeChars(t *testing.T) {
	assert.NotContains(t, activationCodeChars, "O")
	assert.NotContains(t, activationCodeChars, "I")
	assert.NotContains(t, activationCodeChars, "0")
	assert.NotContains(t, activationCodeChars, "1")
	assert.Len(t, activationCodeChars, 32)
}

func TestPairingService_GenerateCode(t *testing.T) {
	ctx := context.Background()

	t.Run("expires five minutes after creation", func(t *testing.T) {
		svc, _, _ := newTestPairing(nil)

		ac, err := svc.GenerateCode(ctx, "acct-A")
		require.NoError(t, err)
		assert.Len(t, ac.Code, 6)
		assert.Equal(t, t0.Unix(), ac.CreatedAt)
		assert.Equal(t, t0.Unix()+300, ac.ExpiresAt)
		assert.Nil(t, ac.UsedAt)
	})

	t.Run("retries on duplicate code", func(t *testing.T) {
		svc, codes, _ := newTestPairing(nil)
		codes.createErr = []error{repository.ErrDuplicate, repository.ErrDuplicate}

		ac, err := svc.GenerateCode(ctx, "acct-A")
		require.NoError(t, err)
		assert.NotEmpty(t, ac.Code)
	})

	t.Run("gives up after repeated duplicates", func(t *testing.T) {
		svc, codes, _ := newTestPairing(nil)
		for i := 0; i < maxCodeGenerateRetries; i++ {
			codes.createErr = append(codes.createErr, repository.ErrDuplicate)
		}

		_, err := svc.GenerateCode(ctx, "acct-A")
		assert.Equal(t, apperrors.ErrCodeInternal, apperrors.GetCode(err))
	})

	t.Run("limits active codes per account", func(t *testing.T) {
		svc, _, _ := newTestPairing(nil)
		for i := 0; i < maxActiveCodesPerAcct; i++ {
			_, err := svc.GenerateCode(ctx, "acct-A")
			require.NoError(t, err)
		}

		_, err := svc.GenerateCode(ctx, "acct-A")
		assert.Equal(t, apperrors.ErrCodeValidation, apperrors.GetCode(err))

		_, err = svc.GenerateCode(ctx, "acct-B")
		assert.NoError(t, err)
	})

	t.Run("database error", func(t *testing.T) {
		svc, codes, _ := newTestPairing(nil)
		codes.createErr = []error{errors.New("connection reset")}

		_, err := svc.GenerateCode(ctx, "acct-A")
		assert.Equal(t, apperrors.ErrCodeDatabase, apperrors.GetCode(err))
	})
}

func TestPairingService_Activate(t *testing.T) {
	ctx := context.Background()

	seed := func(codes *fakeCodeRepo) {
		codes.put(model.ActivationCode{
			ID: "code-1", AccountID: "acct-A", Code: "AB12CD",
			CreatedAt: t0.Unix(), ExpiresAt: t0.Unix() + 300,
		})
	}

	t.Run("binds identity and consumes code once", func(t *testing.T) {
		svc, codes, integrations := newTestPairing(nil)
		seed(codes)

		integration, err := svc.Activate(ctx, ActivationRequest{Code: "ab12cd", ExternalIdentity: "+628111", DisplayName: "Budi"})
		require.NoError(t, err)
		assert.Equal(t, "acct-A", integration.AccountID)
		assert.Equal(t, "+628111", integration.ExternalIdentity)
		require.NotNil(t, integration.DisplayName)
		assert.Equal(t, "Budi", *integration.DisplayName)

		_, err = svc.Activate(ctx, ActivationRequest{Code: "AB12CD", ExternalIdentity: "+628222"})
		assert.Equal(t, apperrors.ErrCodeActivationUsed, apperrors.GetCode(err))
		assert.Equal(t, 1, codes.consumed)
		assert.Equal(t, 1, integrations.count())
	})

	t.Run("expired one second after expiry", func(t *testing.T) {
		svc, codes, integrations := newTestPairing(nil)
		seed(codes)
		svc.now = func() time.Time { return t0.Add(301 * time.Second) }

		_, err := svc.Activate(ctx, ActivationRequest{Code: "AB12CD", ExternalIdentity: "+628111"})
		assert.Equal(t, apperrors.ErrCodeActivationExpired, apperrors.GetCode(err))
		assert.Equal(t, 0, integrations.count())
	})

	t.Run("unknown code", func(t *testing.T) {
		svc, _, integrations := newTestPairing(nil)

		_, err := svc.Activate(ctx, ActivationRequest{Code: "ZZZZZZ", ExternalIdentity: "+628111"})
		assert.Equal(t, apperrors.ErrCodeInvalidActivationCode, apperrors.GetCode(err))
		assert.Equal(t, 0, integrations.count())
	})

	t.Run("bound identity is rejected without consuming the code", func(t *testing.T) {
		svc, codes, integrations := newTestPairing(nil)
		seed(codes)
		_, err := integrations.Create(ctx, model.CreateIntegrationParams{AccountID: "acct-B", ExternalIdentity: "+628111"})
		require.NoError(t, err)

		_, err = svc.Activate(ctx, ActivationRequest{Code: "AB12CD", ExternalIdentity: "+628111"})
		assert.Equal(t, apperrors.ErrCodeIdentityAlreadyBound, apperrors.GetCode(err))
		assert.Equal(t, 0, codes.consumed)
		assert.Equal(t, 1, integrations.count())

		ac, _ := codes.FindByCode(ctx, "AB12CD")
		assert.True(t, ac.Usable(t0.Unix()))
	})

	t.Run("missing fields", func(t *testing.T) {
		svc, _, _ := newTestPairing(nil)

		_, err := svc.Activate(ctx, ActivationRequest{Code: " ", ExternalIdentity: "+628111"})
		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
	})
}

func TestPairingService_HandleInboundActivation(t *testing.T) {
	ctx := context.Background()

	t.Run("throttled attempts never reach the code store", func(t *testing.T) {
		limiter := &fakeLimiter{allow: false}
		svc, codes, _ := newTestPairing(limiter)
		codes.put(model.ActivationCode{AccountID: "acct-A", Code: "AB12CD", ExpiresAt: t0.Unix() + 300})

		_, err := svc.HandleInboundActivation(ctx, ActivationRequest{Code: "AB12CD", ExternalIdentity: "+628111"})
		assert.Equal(t, apperrors.ErrCodeRateLimitExceeded, apperrors.GetCode(err))
		assert.Equal(t, 0, codes.consumed)
		assert.Equal(t, []string{"activation:+628111"}, limiter.keys)
	})

	t.Run("allowed attempts activate", func(t *testing.T) {
		svc, codes, _ := newTestPairing(&fakeLimiter{allow: true})
		codes.put(model.ActivationCode{AccountID: "acct-A", Code: "AB12CD", ExpiresAt: t0.Unix() + 300})

		integration, err := svc.HandleInboundActivation(ctx, ActivationRequest{Code: "AB12CD", ExternalIdentity: "+628111"})
		require.NoError(t, err)
		assert.Equal(t, "acct-A", integration.AccountID)
	})
}

func TestPairingService_RevokeConnection(t *testing.T) {
	ctx := context.Background()
	svc, _, integrations := newTestPairing(nil)
	it, err := integrations.Create(ctx, model.CreateIntegrationParams{AccountID: "acct-A", ExternalIdentity: "+628111"})
	require.NoError(t, err)

	t.Run("other account cannot revoke", func(t *testing.T) {
		err := svc.RevokeConnection(ctx, "acct-B", it.ID)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("owner revokes and identity becomes free", func(t *testing.T) {
		require.NoError(t, svc.RevokeConnection(ctx, "acct-A", it.ID))

		list, err := svc.ListConnections(ctx, "acct-A")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, model.IntegrationStatusRevoked, list[0].Status)

		bound, _ := integrations.FindActiveByIdentity(ctx, "+628111")
		assert.Nil(t, bound)
	})
}
