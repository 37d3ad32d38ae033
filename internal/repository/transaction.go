package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kasku/chat-gateway/internal/model"
)

type TransactionRepository interface {
	Create(ctx context.Context, params model.CreateTransactionParams) (*model.Transaction, error)
	// CountBetween counts transactions with occurred_at in [from, to).
	CountBetween(ctx context.Context, accountID string, from, to int64) (int, error)
	Summary(ctx context.Context, accountID string, from, to int64) (*model.TransactionSummary, error)
	WithTx(tx *sqlx.Tx) TransactionRepository
}

type transactionRepo struct {
	db sqlxDB
}

func NewTransactionRepository(db *sqlx.DB) TransactionRepository {
	return &transactionRepo{db: db}
}

func (r *transactionRepo) WithTx(tx *sqlx.Tx) TransactionRepository {
	return &transactionRepo{db: tx}
}

func (r *transactionRepo) Create(ctx context.Context, params model.CreateTransactionParams) (*model.Transaction, error) {
	var txn model.Transaction
	err := r.db.GetContext(ctx, &txn, `
		INSERT INTO transactions (id, account_id, category_id, type, amount, description, source, ai_generated, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING *
	`, uuid.NewString(), params.AccountID, params.CategoryID, params.Type, params.Amount,
		params.Description, params.Source, params.AIGenerated, params.OccurredAt)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *transactionRepo) CountBetween(ctx context.Context, accountID string, from, to int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM transactions
		WHERE account_id = $1 AND occurred_at >= $2 AND occurred_at < $3
	`, accountID, from, to)
	return count, err
}

func (r *transactionRepo) Summary(ctx context.Context, accountID string, from, to int64) (*model.TransactionSummary, error) {
	var summary model.TransactionSummary
	err := r.db.GetContext(ctx, &summary, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'income'), 0) AS income,
			COALESCE(SUM(amount) FILTER (WHERE type = 'expense'), 0) AS expense,
			COUNT(*) AS count
		FROM transactions
		WHERE account_id = $1 AND occurred_at >= $2 AND occurred_at < $3
	`, accountID, from, to)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
