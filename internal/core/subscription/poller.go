package subscription

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/Ibramadi75/SuperTube/internal/core/settings"
)

// DefaultCron fires at the top of every minute between 09:00 and 21:59.
const DefaultCron = "0 * 9-21 * * *"

// cronParser accepts six-field expressions with seconds resolution.
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Poller runs CheckAll on a cron schedule read from the settings store.
// The expression is re-parsed whenever its value changes, so schedule
// edits take effect on the next cycle without a restart. When the
// feature flag is off the loop sleeps a fixed interval and re-checks.
type Poller struct {
	service  *Service
	settings settings.Source

	// loop pacing; overridable in tests
	DisabledRecheck time.Duration
	ErrorBackoff    time.Duration

	currentExpr string
	schedule    cron.Schedule
}

func NewPoller(service *Service, src settings.Source) *Poller {
	return &Poller{
		service:         service,
		settings:        src,
		DisabledRecheck: 5 * time.Minute,
		ErrorBackoff:    5 * time.Minute,
	}
}

// Run loops until ctx finishes. Errors inside a cycle are contained
// with a backoff; the loop itself never dies.
func (p *Poller) Run(ctx context.Context) {
	log.Info().Msg("subscription poller started")

	for ctx.Err() == nil {
		if err := p.cycle(ctx); err != nil {
			log.Error().Err(err).Msg("subscription poll cycle failed")
			sleep(ctx, p.ErrorBackoff)
		}
	}
	log.Info().Msg("subscription poller stopped")
}

func (p *Poller) cycle(ctx context.Context) error {
	values, err := settings.Resolve(ctx, p.settings, nil)
	if err != nil {
		return err
	}

	if !values.Bool(settings.KeySubsEnabled) {
		sleep(ctx, p.DisabledRecheck)
		return nil
	}

	next := p.nextFire(values.Get(settings.KeySubsCron), time.Now())
	if delay := time.Until(next); delay > 0 {
		log.Debug().Time("next_check", next).Msg("waiting for next subscription sweep")
		if !sleep(ctx, delay) {
			return nil
		}
	}

	// Re-check the flag: it may have been turned off while sleeping.
	values, err = settings.Resolve(ctx, p.settings, nil)
	if err != nil {
		return err
	}
	if !values.Bool(settings.KeySubsEnabled) {
		return nil
	}

	n, err := p.service.CheckAll(ctx, nil)
	if err != nil {
		return err
	}
	log.Info().Int("new_jobs", n).Msg("scheduled subscription sweep completed")
	return nil
}

// nextFire computes the next occurrence after now, re-parsing the
// expression when it changed. An invalid expression falls back to
// DefaultCron and is logged, never fatal.
func (p *Poller) nextFire(expr string, now time.Time) time.Time {
	if expr == "" {
		expr = DefaultCron
	}
	if expr != p.currentExpr || p.schedule == nil {
		schedule, err := cronParser.Parse(expr)
		if err != nil {
			log.Error().Err(err).Str("cron", expr).Msg("invalid cron expression, using default")
			schedule, _ = cronParser.Parse(DefaultCron)
			expr = DefaultCron
		} else {
			log.Info().Str("cron", expr).Msg("subscription schedule updated")
		}
		p.schedule = schedule
		p.currentExpr = expr
	}
	return p.schedule.Next(now)
}

// sleep waits d or until ctx finishes; reports whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
