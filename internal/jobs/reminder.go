package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/kasku/chat-gateway/internal/config"
	"github.com/kasku/chat-gateway/internal/gateway"
	"github.com/kasku/chat-gateway/internal/i18n"
	"github.com/kasku/chat-gateway/internal/model"
	redisclient "github.com/kasku/chat-gateway/internal/redis"
	"github.com/kasku/chat-gateway/internal/repository"
	"github.com/kasku/chat-gateway/internal/service"
)

// Guard claims a key once per TTL.
type Guard interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type Notifier interface {
	Send(ctx context.Context, out service.Outbound) error
}

// SweepResult counts what one sweep did. Accounts are counted once in
// exactly one of Active, NoIdentity, Guarded, Reminded or Errors.
type SweepResult struct {
	Eligible   int
	Active     int
	NoIdentity int
	Guarded    int
	Reminded   int
	Errors     int
	Sent       int
	Failed     int
}

func (r *SweepResult) merge(o SweepResult) {
	r.Active += o.Active
	r.NoIdentity += o.NoIdentity
	r.Guarded += o.Guarded
	r.Reminded += o.Reminded
	r.Errors += o.Errors
	r.Sent += o.Sent
	r.Failed += o.Failed
}

type ReminderJob struct {
	prefs           repository.PreferencesRepository
	txns            repository.TransactionRepository
	integrations    repository.IntegrationRepository
	notifier        Notifier
	guard           Guard
	mode            config.GatewayMode
	fanout          int
	schedule        string
	defaultLocale   model.Locale
	defaultLocation *time.Location
	cron            *cron.Cron
	now             func() time.Time
}

func NewReminderJob(
	cfg *config.Config,
	prefs repository.PreferencesRepository,
	txns repository.TransactionRepository,
	integrations repository.IntegrationRepository,
	notifier Notifier,
	guard Guard,
) *ReminderJob {
	fanout := cfg.ReminderFanout
	if fanout <= 0 {
		fanout = 1
	}
	return &ReminderJob{
		prefs:           prefs,
		txns:            txns,
		integrations:    integrations,
		notifier:        notifier,
		guard:           guard,
		mode:            cfg.GatewayMode,
		fanout:          fanout,
		schedule:        cfg.ReminderCron,
		defaultLocale:   model.ParseLocale(cfg.DefaultLocale, model.LocaleID),
		defaultLocation: cfg.Location(),
		now:             time.Now,
	}
}

// Start registers the sweep on the cron schedule, evaluated in the default timezone.
func (j *ReminderJob) Start() error {
	j.cron = cron.New(cron.WithLocation(j.defaultLocation))
	if _, err := j.cron.AddFunc(j.schedule, j.runScheduled); err != nil {
		return fmt.Errorf("schedule reminder sweep %q: %w", j.schedule, err)
	}
	j.cron.Start()
	log.Info().Str("schedule", j.schedule).Int("fanout", j.fanout).Msg("reminder job started")
	return nil
}

func (j *ReminderJob) Stop() {
	if j.cron == nil {
		return
	}
	ctx := j.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Second):
		log.Warn().Msg("reminder job stop timed out")
	}
	log.Info().Msg("reminder job stopped")
}

func (j *ReminderJob) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), config.ReminderSweepTimeout)
	defer cancel()

	if _, err := j.Sweep(ctx); err != nil {
		log.Error().Err(err).Msg("reminder sweep failed")
	}
}

// Sweep reminds every opted-in account that has logged nothing since local
// midnight. One account's failure never stops the others.
func (j *ReminderJob) Sweep(ctx context.Context) (SweepResult, error) {
	started := j.now()

	accounts, err := j.prefs.ListReminderEnabled(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list reminder accounts: %w", err)
	}

	result := SweepResult{Eligible: len(accounts)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(j.fanout)
	for _, prefs := range accounts {
		g.Go(func() error {
			r := j.remind(ctx, prefs)
			mu.Lock()
			result.merge(r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	log.Info().
		Int("eligible", result.Eligible).
		Int("active", result.Active).
		Int("guarded", result.Guarded).
		Int("reminded", result.Reminded).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Int("errors", result.Errors).
		Dur("took", j.now().Sub(started)).
		Msg("reminder sweep finished")

	return result, nil
}

func (j *ReminderJob) remind(ctx context.Context, prefs model.AccountPreferences) (res SweepResult) {
	accountID := prefs.AccountID
	logger := log.With().Str("accountId", accountID).Logger()

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("reminder panicked")
			res = SweepResult{Errors: 1}
		}
	}()

	loc := j.defaultLocation
	if prefs.Timezone != "" {
		if l, err := time.LoadLocation(prefs.Timezone); err == nil {
			loc = l
		} else {
			logger.Warn().Str("timezone", prefs.Timezone).Msg("unknown timezone, using default")
		}
	}
	now := j.now().In(loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	count, err := j.txns.CountBetween(ctx, accountID, midnight.Unix(), now.Unix()+1)
	if err != nil {
		logger.Error().Err(err).Msg("failed to count today's transactions")
		return SweepResult{Errors: 1}
	}
	if count > 0 {
		return SweepResult{Active: 1}
	}

	integrations, err := j.integrations.ListActiveByAccount(ctx, accountID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list integrations")
		return SweepResult{Errors: 1}
	}
	if len(integrations) == 0 {
		return SweepResult{NoIdentity: 1}
	}

	guardKey := redisclient.ReminderKey(accountID, now.Format("2006-01-02"))
	claimed, err := j.guard.Claim(ctx, guardKey)
	if err != nil {
		logger.Warn().Err(err).Msg("reminder guard unavailable, sending anyway")
	} else if !claimed {
		return SweepResult{Guarded: 1}
	}

	locale := model.ParseLocale(prefs.Locale, j.defaultLocale)
	body := i18n.T(locale, i18n.KeyReminder)
	via := gateway.KeyFor(j.mode, accountID)

	result := SweepResult{Reminded: 1}
	for _, integration := range integrations {
		err := j.notifier.Send(ctx, service.Outbound{
			Via:       via,
			AccountID: accountID,
			To:        integration.ExternalIdentity,
			Category:  model.NotificationCategoryReminder,
			Body:      body,
		})
		if err != nil {
			result.Failed++
			continue
		}
		result.Sent++
	}

	if result.Sent == 0 && claimed {
		if err := j.guard.Release(ctx, guardKey); err != nil {
			logger.Warn().Err(err).Msg("failed to release reminder guard")
		}
	}
	return result
}
