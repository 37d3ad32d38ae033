package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kasku/chat-gateway/internal/config"
	"github.com/kasku/chat-gateway/internal/gateway"
	"github.com/kasku/chat-gateway/internal/handler"
	"github.com/kasku/chat-gateway/internal/jobs"
	"github.com/kasku/chat-gateway/internal/middleware"
	redisclient "github.com/kasku/chat-gateway/internal/redis"
	"github.com/kasku/chat-gateway/internal/sse"
)

func newServeCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, chat connections and reminder scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg, gateway.OptionsFromConfig(cfg))
	if err != nil {
		return err
	}
	defer a.Close()

	broker := sse.NewBroker(a.redis.Client)
	defer broker.Close()
	a.controller.SetPublisher(broker)

	a.resume(ctx)

	reminderJob := jobs.NewReminderJob(
		cfg,
		a.repos.preferences,
		a.repos.transactions,
		a.repos.integrations,
		a.notifier,
		redisclient.NewOnceGuard(a.redis.Client, config.ReminderGuardTTL),
	)
	if err := reminderJob.Start(); err != nil {
		return err
	}
	defer reminderJob.Stop()

	cleanupJob := jobs.NewCleanupJob(a.repos.codes, a.repos.notifications, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      newRouter(cfg, a, broker),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("mode", string(cfg.GatewayMode)).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
	return nil
}

func newRouter(cfg *config.Config, a *app, broker *sse.Broker) http.Handler {
	authMiddleware := middleware.NewAuthMiddleware(a.repos.accounts)
	window := redisclient.NewSlidingWindow(a.redis.Client, config.DefaultRateLimitPerMin, time.Minute)
	accountLimit := middleware.NewRateLimitMiddleware(window, config.DefaultRateLimitPerMin, middleware.ByAccount)
	ipLimit := middleware.NewRateLimitMiddleware(window, config.DefaultRateLimitPerMin, middleware.ByIP)
	relaySignature := middleware.NewRelaySignatureMiddleware(cfg.RelaySecret)
	operator := middleware.NewOperatorMiddleware(cfg.OperatorKeyHash)
	bodyLimit := middleware.NewBodyLimitMiddleware(cfg.MaxBodyBytes)

	gatewayHandler := handler.NewGatewayHandler(a.controller, a.notifier, cfg.GatewayMode)
	pairingHandler := handler.NewPairingHandler(a.pairing)
	eventsHandler := handler.NewEventsHandler(broker, a.controller, cfg.GatewayMode)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(bodyLimit.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":      "ok",
			"timestamp":   time.Now().UnixMilli(),
			"connections": a.controller.Registry().Len(),
		})
	})

	// Event streams outlive the request timeout.
	r.With(authMiddleware.Handler, accountLimit.Handler).Get("/events", eventsHandler.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

		r.With(ipLimit.Handler, relaySignature.Handler).Post("/activate", pairingHandler.Activate)

		if cfg.GatewayMode == config.GatewayModeShared {
			r.Get("/status", gatewayHandler.Status)
		}

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handler)
			r.Use(accountLimit.Handler)

			if cfg.GatewayMode == config.GatewayModePerAccount {
				r.Get("/status", gatewayHandler.Status)
			}
			gatewayHandler.Register(r, operator.Handler)
			pairingHandler.Register(r)
		})
	})

	return r
}
