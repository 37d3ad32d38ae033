package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kasku/chat-gateway/internal/model"
)

type ActivationCodeRepository interface {
	// FindByCode returns the code regardless of its state.
	FindByCode(ctx context.Context, code string) (*model.ActivationCode, error)
	CountActiveByAccountID(ctx context.Context, accountID string, now int64) (int, error)
	Create(ctx context.Context, params model.CreateActivationCodeParams) (*model.ActivationCode, error)
	// Consume marks a usable code as used in a single statement. It returns nil
	// when the code does not exist, has expired or was already used.
	Consume(ctx context.Context, code string, now int64) (*model.ActivationCode, error)
	DeleteStale(ctx context.Context, before int64) (int64, error)
	WithTx(tx *sqlx.Tx) ActivationCodeRepository
}

type activationCodeRepo struct {
	db sqlxDB
}

func NewActivationCodeRepository(db *sqlx.DB) ActivationCodeRepository {
	return &activationCodeRepo{db: db}
}

func (r *activationCodeRepo) WithTx(tx *sqlx.Tx) ActivationCodeRepository {
	return &activationCodeRepo{db: tx}
}

func (r *activationCodeRepo) FindByCode(ctx context.Context, code string) (*model.ActivationCode, error) {
	var ac model.ActivationCode
	err := r.db.GetContext(ctx, &ac, `
		SELECT * FROM activation_codes WHERE code = $1
	`, code)
	return HandleNotFound(&ac, err)
}

func (r *activationCodeRepo) CountActiveByAccountID(ctx context.Context, accountID string, now int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM activation_codes
		WHERE account_id = $1 AND used_at IS NULL AND expires_at > $2
	`, accountID, now)
	return count, err
}

func (r *activationCodeRepo) Create(ctx context.Context, params model.CreateActivationCodeParams) (*model.ActivationCode, error) {
	var ac model.ActivationCode
	err := r.db.GetContext(ctx, &ac, `
		INSERT INTO activation_codes (id, account_id, code, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, uuid.NewString(), params.AccountID, params.Code, params.CreatedAt, params.ExpiresAt)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return &ac, nil
}

func (r *activationCodeRepo) Consume(ctx context.Context, code string, now int64) (*model.ActivationCode, error) {
	var ac model.ActivationCode
	err := r.db.GetContext(ctx, &ac, `
		UPDATE activation_codes SET used_at = $2
		WHERE code = $1 AND used_at IS NULL AND expires_at > $2
		RETURNING *
	`, code, now)
	return HandleNotFound(&ac, err)
}

func (r *activationCodeRepo) DeleteStale(ctx context.Context, before int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM activation_codes
		WHERE expires_at < $1 OR (used_at IS NOT NULL AND used_at < $1)
	`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
