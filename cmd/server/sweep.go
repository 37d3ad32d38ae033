package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kasku/chat-gateway/internal/config"
	"github.com/kasku/chat-gateway/internal/gateway"
	"github.com/kasku/chat-gateway/internal/jobs"
	redisclient "github.com/kasku/chat-gateway/internal/redis"
)

func newSweepCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one reminder sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return sweep(cmd.Context(), cfg)
		},
	}
}

func sweep(ctx context.Context, cfg *config.Config) error {
	opts := gateway.OptionsFromConfig(cfg)
	// A one-shot run must not linger on reconnect timers.
	opts.Policy.AutoRecover = false

	a, err := newApp(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	a.awaitReady(ctx, a.resume(ctx), config.ReconnectWait)

	job := jobs.NewReminderJob(
		cfg,
		a.repos.preferences,
		a.repos.transactions,
		a.repos.integrations,
		a.notifier,
		redisclient.NewOnceGuard(a.redis.Client, config.ReminderGuardTTL),
	)

	sweepCtx, cancel := context.WithTimeout(ctx, config.ReminderSweepTimeout)
	defer cancel()

	res, err := job.Sweep(sweepCtx)
	if err != nil {
		return fmt.Errorf("reminder sweep: %w", err)
	}

	log.Info().
		Int("eligible", res.Eligible).
		Int("reminded", res.Reminded).
		Int("sent", res.Sent).
		Int("failed", res.Failed).
		Int("errors", res.Errors).
		Msg("sweep finished")
	return nil
}
