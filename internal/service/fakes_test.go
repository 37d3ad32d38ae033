package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kasku/chat-gateway/internal/database"
	"github.com/kasku/chat-gateway/internal/gateway"
	"github.com/kasku/chat-gateway/internal/model"
	"github.com/kasku/chat-gateway/internal/repository"
)

type fakeTransactor struct{}

func (fakeTransactor) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

type fakeCodeRepo struct {
	mu        sync.Mutex
	codes     map[string]*model.ActivationCode
	createErr []error
	consumed  int
}

func newFakeCodeRepo() *fakeCodeRepo {
	return &fakeCodeRepo{codes: make(map[string]*model.ActivationCode)}
}

func (f *fakeCodeRepo) FindByCode(ctx context.Context, code string) (*model.ActivationCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ac, ok := f.codes[code]; ok {
		cp := *ac
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeCodeRepo) CountActiveByAccountID(ctx context.Context, accountID string, now int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ac := range f.codes {
		if ac.AccountID == accountID && ac.Usable(now) {
			n++
		}
	}
	return n, nil
}

func (f *fakeCodeRepo) Create(ctx context.Context, params model.CreateActivationCodeParams) (*model.ActivationCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.createErr) > 0 {
		err := f.createErr[0]
		f.createErr = f.createErr[1:]
		return nil, err
	}
	if _, ok := f.codes[params.Code]; ok {
		return nil, repository.ErrDuplicate
	}
	ac := &model.ActivationCode{
		ID:        uuid.NewString(),
		AccountID: params.AccountID,
		Code:      params.Code,
		CreatedAt: params.CreatedAt,
		ExpiresAt: params.ExpiresAt,
	}
	f.codes[params.Code] = ac
	cp := *ac
	return &cp, nil
}

func (f *fakeCodeRepo) Consume(ctx context.Context, code string, now int64) (*model.ActivationCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ac, ok := f.codes[code]
	if !ok || !ac.Usable(now) {
		return nil, nil
	}
	ac.UsedAt = &now
	f.consumed++
	cp := *ac
	return &cp, nil
}

func (f *fakeCodeRepo) DeleteStale(ctx context.Context, before int64) (int64, error) {
	return 0, nil
}

func (f *fakeCodeRepo) WithTx(tx *sqlx.Tx) repository.ActivationCodeRepository {
	return f
}

// put seeds a code directly.
func (f *fakeCodeRepo) put(ac model.ActivationCode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[ac.Code] = &ac
}

type fakeIntegrationRepo struct {
	mu    sync.Mutex
	items []*model.Integration
}

func (f *fakeIntegrationRepo) FindByID(ctx context.Context, id string) (*model.Integration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.ID == id {
			cp := *it
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeIntegrationRepo) FindActiveByIdentity(ctx context.Context, externalIdentity string) (*model.Integration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.ExternalIdentity == externalIdentity && it.Status == model.IntegrationStatusActive {
			cp := *it
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeIntegrationRepo) ListByAccount(ctx context.Context, accountID string) ([]model.Integration, error) {
	return f.list(accountID, false), nil
}

func (f *fakeIntegrationRepo) ListActiveByAccount(ctx context.Context, accountID string) ([]model.Integration, error) {
	return f.list(accountID, true), nil
}

func (f *fakeIntegrationRepo) list(accountID string, activeOnly bool) []model.Integration {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Integration
	for _, it := range f.items {
		if it.AccountID != accountID {
			continue
		}
		if activeOnly && it.Status != model.IntegrationStatusActive {
			continue
		}
		out = append(out, *it)
	}
	return out
}

func (f *fakeIntegrationRepo) Create(ctx context.Context, params model.CreateIntegrationParams) (*model.Integration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.ExternalIdentity == params.ExternalIdentity && it.Status == model.IntegrationStatusActive {
			return nil, repository.ErrDuplicate
		}
	}
	it := &model.Integration{
		ID:               uuid.NewString(),
		AccountID:        params.AccountID,
		ExternalIdentity: params.ExternalIdentity,
		DisplayName:      params.DisplayName,
		Status:           model.IntegrationStatusActive,
		ActivatedAt:      params.ActivatedAt,
	}
	f.items = append(f.items, it)
	cp := *it
	return &cp, nil
}

func (f *fakeIntegrationRepo) Revoke(ctx context.Context, accountID, id string, now int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.ID == id && it.AccountID == accountID && it.Status == model.IntegrationStatusActive {
			it.Status = model.IntegrationStatusRevoked
			it.RevokedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeIntegrationRepo) WithTx(tx *sqlx.Tx) repository.IntegrationRepository {
	return f
}

func (f *fakeIntegrationRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

type fakeLimiter struct {
	allow bool
	keys  []string
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (bool, time.Time) {
	f.keys = append(f.keys, key)
	return f.allow, time.Now().Add(time.Minute)
}

type sentMessage struct {
	Key  gateway.IdentityKey
	To   string
	Body string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	errs map[string]error
}

func (f *fakeSender) Send(ctx context.Context, key gateway.IdentityKey, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{Key: key, To: to, Body: body})
	return f.errs[to]
}

type fakeLogRepo struct {
	mu   sync.Mutex
	rows []model.CreateNotificationLogParams
	err  error
}

func (f *fakeLogRepo) Create(ctx context.Context, params model.CreateNotificationLogParams) (*model.NotificationLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.rows = append(f.rows, params)
	return &model.NotificationLog{ID: uuid.NewString(), Category: params.Category}, nil
}

func (f *fakeLogRepo) ListByAccount(ctx context.Context, accountID string, limit int) ([]model.NotificationLog, error) {
	return nil, nil
}

func (f *fakeLogRepo) DeleteOlderThan(ctx context.Context, before int64) (int64, error) {
	return 0, nil
}
