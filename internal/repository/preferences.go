package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/kasku/chat-gateway/internal/model"
)

type PreferencesRepository interface {
	Get(ctx context.Context, accountID string) (*model.AccountPreferences, error)
	// ListReminderEnabled returns preferences of enabled accounts that opted in to reminders.
	ListReminderEnabled(ctx context.Context) ([]model.AccountPreferences, error)
}

type preferencesRepo struct {
	db sqlxDB
}

func NewPreferencesRepository(db *sqlx.DB) PreferencesRepository {
	return &preferencesRepo{db: db}
}

func (r *preferencesRepo) Get(ctx context.Context, accountID string) (*model.AccountPreferences, error) {
	var prefs model.AccountPreferences
	err := r.db.GetContext(ctx, &prefs, `
		SELECT * FROM account_preferences WHERE account_id = $1
	`, accountID)
	return HandleNotFound(&prefs, err)
}

func (r *preferencesRepo) ListReminderEnabled(ctx context.Context) ([]model.AccountPreferences, error) {
	var prefs []model.AccountPreferences
	err := r.db.SelectContext(ctx, &prefs, `
		SELECT p.* FROM account_preferences p
		JOIN accounts a ON a.id = p.account_id
		WHERE p.reminder_enabled AND a.disabled_at IS NULL
		ORDER BY p.account_id
	`)
	if err != nil {
		return nil, err
	}
	return prefs, nil
}
