package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kasku/chat-gateway/internal/model"
)

type IntegrationRepository interface {
	FindByID(ctx context.Context, id string) (*model.Integration, error)
	FindActiveByIdentity(ctx context.Context, externalIdentity string) (*model.Integration, error)
	ListByAccount(ctx context.Context, accountID string) ([]model.Integration, error)
	ListActiveByAccount(ctx context.Context, accountID string) ([]model.Integration, error)
	// Create returns ErrDuplicate when the identity already has an active integration.
	Create(ctx context.Context, params model.CreateIntegrationParams) (*model.Integration, error)
	Revoke(ctx context.Context, accountID, id string, now int64) (bool, error)
	WithTx(tx *sqlx.Tx) IntegrationRepository
}

type integrationRepo struct {
	db sqlxDB
}

func NewIntegrationRepository(db *sqlx.DB) IntegrationRepository {
	return &integrationRepo{db: db}
}

func (r *integrationRepo) WithTx(tx *sqlx.Tx) IntegrationRepository {
	return &integrationRepo{db: tx}
}

func (r *integrationRepo) FindByID(ctx context.Context, id string) (*model.Integration, error) {
	var in model.Integration
	err := r.db.GetContext(ctx, &in, `
		SELECT * FROM integrations WHERE id = $1
	`, id)
	return HandleNotFound(&in, err)
}

func (r *integrationRepo) FindActiveByIdentity(ctx context.Context, externalIdentity string) (*model.Integration, error) {
	var in model.Integration
	err := r.db.GetContext(ctx, &in, `
		SELECT * FROM integrations
		WHERE external_identity = $1 AND status = 'active'
	`, externalIdentity)
	return HandleNotFound(&in, err)
}

func (r *integrationRepo) ListByAccount(ctx context.Context, accountID string) ([]model.Integration, error) {
	var list []model.Integration
	err := r.db.SelectContext(ctx, &list, `
		SELECT * FROM integrations
		WHERE account_id = $1
		ORDER BY status, activated_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *integrationRepo) ListActiveByAccount(ctx context.Context, accountID string) ([]model.Integration, error) {
	var list []model.Integration
	err := r.db.SelectContext(ctx, &list, `
		SELECT * FROM integrations
		WHERE account_id = $1 AND status = 'active'
		ORDER BY activated_at
	`, accountID)
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *integrationRepo) Create(ctx context.Context, params model.CreateIntegrationParams) (*model.Integration, error) {
	var in model.Integration
	err := r.db.GetContext(ctx, &in, `
		INSERT INTO integrations (id, account_id, external_identity, display_name, status, activated_at)
		VALUES ($1, $2, $3, $4, 'active', $5)
		RETURNING *
	`, uuid.NewString(), params.AccountID, params.ExternalIdentity, params.DisplayName, params.ActivatedAt)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return &in, nil
}

func (r *integrationRepo) Revoke(ctx context.Context, accountID, id string, now int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE integrations SET status = 'revoked', revoked_at = $3
		WHERE id = $1 AND account_id = $2 AND status = 'active'
	`, id, accountID, now)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}
