package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kasku/chat-gateway/internal/config"
	"github.com/kasku/chat-gateway/internal/database"
	"github.com/kasku/chat-gateway/internal/extractor"
	"github.com/kasku/chat-gateway/internal/gateway"
	"github.com/kasku/chat-gateway/internal/model"
	redisclient "github.com/kasku/chat-gateway/internal/redis"
	"github.com/kasku/chat-gateway/internal/repository"
	"github.com/kasku/chat-gateway/internal/router"
	"github.com/kasku/chat-gateway/internal/service"
	"github.com/kasku/chat-gateway/internal/whatsapp"
)

type repositories struct {
	accounts      repository.AccountRepository
	codes         repository.ActivationCodeRepository
	integrations  repository.IntegrationRepository
	notifications repository.NotificationLogRepository
	preferences   repository.PreferencesRepository
	transactions  repository.TransactionRepository
	categories    repository.CategoryRepository
	devices       repository.DeviceRepository
}

// app holds the collaborators shared by every subcommand.
type app struct {
	cfg        *config.Config
	db         *database.DB
	redis      *redisclient.Client
	repos      repositories
	controller *gateway.Controller
	notifier   *service.Notifier
	pairing    *service.PairingService
}

func newApp(ctx context.Context, cfg *config.Config, opts gateway.Options) (*app, error) {
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.DBPingTimeout)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Info().Msg("database connected")

	redisClient, err := redisclient.NewClient(cfg.RedisURL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Info().Msg("redis connected")

	repos := repositories{
		accounts:      repository.NewAccountRepository(db.DB),
		codes:         repository.NewActivationCodeRepository(db.DB),
		integrations:  repository.NewIntegrationRepository(db.DB),
		notifications: repository.NewNotificationLogRepository(db.DB),
		preferences:   repository.NewPreferencesRepository(db.DB),
		transactions:  repository.NewTransactionRepository(db.DB),
		categories:    repository.NewCategoryRepository(db.DB),
		devices:       repository.NewDeviceRepository(db.DB),
	}

	container, err := whatsapp.OpenStore(ctx, cfg.StoreDialect, cfg.SessionStoreDSN())
	if err != nil {
		redisClient.Close()
		db.Close()
		return nil, err
	}

	controller := gateway.NewController(
		gateway.NewRegistry(),
		whatsapp.NewFactory(container, repos.devices, cfg.DeviceName),
		opts,
	)

	notifier := service.NewNotifier(controller, repos.notifications)
	limiter := redisclient.NewSlidingWindow(redisClient.Client, config.ActivationAttemptLimit, config.ActivationAttemptWindow)
	pairing := service.NewPairingService(db, repos.codes, repos.integrations, limiter)

	a := &app{
		cfg:        cfg,
		db:         db,
		redis:      redisClient,
		repos:      repos,
		controller: controller,
		notifier:   notifier,
		pairing:    pairing,
	}

	controller.SetHandler(router.New(router.Deps{
		DB:           db,
		Integrations: repos.integrations,
		Preferences:  repos.preferences,
		Transactions: repos.transactions,
		Categories:   repos.categories,
		Pairing:      pairing,
		Delegate:     newDelegate(cfg),
		Notifier:     notifier,
		Status:       controller,
	}, model.ParseLocale(cfg.DefaultLocale, model.LocaleID), cfg.Location()))

	return a, nil
}

func newDelegate(cfg *config.Config) extractor.Delegate {
	if cfg.OpenAIAPIKey == "" {
		return extractor.Unavailable{}
	}
	return extractor.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAITranscribeModel)
}

// resume restarts every identity that has a linked device. In shared mode the
// default identity is always started so its QR code is available.
func (a *app) resume(ctx context.Context) []gateway.IdentityKey {
	var keys []gateway.IdentityKey
	if a.cfg.GatewayMode == config.GatewayModeShared {
		keys = append(keys, gateway.KeyFor(a.cfg.GatewayMode, ""))
	} else {
		linked, err := a.repos.devices.ListIdentityKeys(ctx)
		if err != nil {
			log.Error().Err(err).Msg("failed to list linked devices")
		}
		for _, k := range linked {
			keys = append(keys, gateway.IdentityKey(k))
		}
	}

	started := make([]gateway.IdentityKey, 0, len(keys))
	for _, key := range keys {
		if _, _, err := a.controller.Init(ctx, key); err != nil {
			log.Error().Err(err).Str("identityKey", key.String()).Msg("failed to resume connection")
			continue
		}
		started = append(started, key)
	}

	log.Info().Int("count", len(started)).Msg("connections resumed")
	return started
}

// awaitReady waits for each key to settle, bounded by timeout per key.
func (a *app) awaitReady(ctx context.Context, keys []gateway.IdentityKey, timeout time.Duration) {
	for _, key := range keys {
		conn, err := a.controller.AwaitArtifact(ctx, key, timeout)
		if err != nil {
			log.Warn().Err(err).Str("identityKey", key.String()).Msg("connection not ready")
			continue
		}
		log.Info().Str("identityKey", key.String()).Str("state", string(conn.State)).Msg("connection settled")
	}
}

func (a *app) Close() {
	a.controller.Shutdown()
	if err := a.redis.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close redis")
	}
	if err := a.db.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close database")
	}
}
