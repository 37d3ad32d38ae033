package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/kasku/chat-gateway/internal/model"
)

type DeviceRepository interface {
	FindByIdentityKey(ctx context.Context, identityKey string) (*model.Device, error)
	Upsert(ctx context.Context, identityKey, jid string, now int64) error
	Delete(ctx context.Context, identityKey string) error
	ListIdentityKeys(ctx context.Context) ([]string, error)
}

type deviceRepo struct {
	db sqlxDB
}

func NewDeviceRepository(db *sqlx.DB) DeviceRepository {
	return &deviceRepo{db: db}
}

func (r *deviceRepo) FindByIdentityKey(ctx context.Context, identityKey string) (*model.Device, error) {
	var d model.Device
	err := r.db.GetContext(ctx, &d, `
		SELECT * FROM whatsapp_devices WHERE identity_key = $1
	`, identityKey)
	return HandleNotFound(&d, err)
}

func (r *deviceRepo) Upsert(ctx context.Context, identityKey, jid string, now int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO whatsapp_devices (identity_key, jid, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (identity_key) DO UPDATE SET jid = EXCLUDED.jid, updated_at = EXCLUDED.updated_at
	`, identityKey, jid, now)
	return err
}

func (r *deviceRepo) Delete(ctx context.Context, identityKey string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM whatsapp_devices WHERE identity_key = $1`, identityKey)
	return err
}

func (r *deviceRepo) ListIdentityKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := r.db.SelectContext(ctx, &keys, `
		SELECT identity_key FROM whatsapp_devices ORDER BY identity_key
	`)
	if err != nil {
		return nil, err
	}
	return keys, nil
}
