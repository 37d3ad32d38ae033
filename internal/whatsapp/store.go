package whatsapp

import (
	"context"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/kasku/chat-gateway/internal/gateway"
	"github.com/kasku/chat-gateway/internal/repository"
)

// OpenStore opens the whatsmeow session store on postgres or sqlite3.
func OpenStore(ctx context.Context, dialect, dsn string) (*sqlstore.Container, error) {
	logger := waLog.Zerolog(log.Logger.With().Str("component", "whatsmeow-store").Logger())
	container, err := sqlstore.New(ctx, dialect, dsn, logger)
	if err != nil {
		return nil, fmt.Errorf("open session store (%s): %w", dialect, err)
	}
	return container, nil
}

// deviceStore resolves the whatsmeow device bound to an identity key.
type deviceStore struct {
	container *sqlstore.Container
	devices   repository.DeviceRepository
}

func (d *deviceStore) load(ctx context.Context, key gateway.IdentityKey) (*store.Device, error) {
	rec, err := d.devices.FindByIdentityKey(ctx, key.String())
	if err != nil {
		return nil, fmt.Errorf("find device mapping: %w", err)
	}
	if rec != nil {
		jid, err := types.ParseJID(rec.JID)
		if err != nil {
			log.Warn().Err(err).Str("identityKey", key.String()).Msg("invalid stored device jid, pairing again")
		} else {
			device, err := d.container.GetDevice(ctx, jid)
			if err != nil {
				return nil, fmt.Errorf("load device: %w", err)
			}
			if device != nil {
				return device, nil
			}
		}
	}
	return d.container.NewDevice(), nil
}

func (d *deviceStore) bind(key gateway.IdentityKey, jid types.JID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.devices.Upsert(ctx, key.String(), jid.String(), time.Now().Unix()); err != nil {
		log.Error().Err(err).Str("identityKey", key.String()).Msg("persist device mapping")
	}
}

func (d *deviceStore) unbind(ctx context.Context, key gateway.IdentityKey) {
	if err := d.devices.Delete(ctx, key.String()); err != nil {
		log.Error().Err(err).Str("identityKey", key.String()).Msg("delete device mapping")
	}
}
