package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kasku/chat-gateway/internal/model"
)

type NotificationLogRepository interface {
	Create(ctx context.Context, params model.CreateNotificationLogParams) (*model.NotificationLog, error)
	ListByAccount(ctx context.Context, accountID string, limit int) ([]model.NotificationLog, error)
	DeleteOlderThan(ctx context.Context, before int64) (int64, error)
}

type notificationLogRepo struct {
	db sqlxDB
}

func NewNotificationLogRepository(db *sqlx.DB) NotificationLogRepository {
	return &notificationLogRepo{db: db}
}

func (r *notificationLogRepo) Create(ctx context.Context, params model.CreateNotificationLogParams) (*model.NotificationLog, error) {
	var entry model.NotificationLog
	err := r.db.GetContext(ctx, &entry, `
		INSERT INTO notification_logs (id, account_id, category, external_identity, body, outcome, sent_at, error_detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	`, uuid.NewString(), params.AccountID, params.Category, params.ExternalIdentity,
		params.Body, params.Outcome, params.SentAt, params.ErrorDetail)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *notificationLogRepo) ListByAccount(ctx context.Context, accountID string, limit int) ([]model.NotificationLog, error) {
	var entries []model.NotificationLog
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM notification_logs
		WHERE account_id = $1
		ORDER BY sent_at DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *notificationLogRepo) DeleteOlderThan(ctx context.Context, before int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM notification_logs WHERE sent_at < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
