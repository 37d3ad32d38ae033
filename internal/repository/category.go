package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/kasku/chat-gateway/internal/model"
)

type CategoryRepository interface {
	// FindByName prefers the account's own category over a shared default.
	FindByName(ctx context.Context, accountID, name string, txType model.TransactionType) (*model.Category, error)
}

type categoryRepo struct {
	db sqlxDB
}

func NewCategoryRepository(db *sqlx.DB) CategoryRepository {
	return &categoryRepo{db: db}
}

func (r *categoryRepo) FindByName(ctx context.Context, accountID, name string, txType model.TransactionType) (*model.Category, error) {
	var c model.Category
	err := r.db.GetContext(ctx, &c, `
		SELECT * FROM categories
		WHERE LOWER(name) = LOWER($2) AND type = $3
		  AND (account_id = $1 OR account_id IS NULL)
		ORDER BY account_id NULLS LAST
		LIMIT 1
	`, accountID, name, txType)
	return HandleNotFound(&c, err)
}
