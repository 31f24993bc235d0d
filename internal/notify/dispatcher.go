package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/hray3182/HabitLine/internal/models"
)

// Contact is where a user's reminders go.
type Contact struct {
	UserID int64
	ChatID int64
}

// Provider delivers text to a contact over an external messaging channel.
type Provider interface {
	Send(ctx context.Context, to Contact, msg Message) error
}

type Config struct {
	MaxAttempts   int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	RatePerSec    int // 0 disables rate limiting
	SendTimeout   time.Duration
}

// Dispatcher sends habit reminders with bounded retries. It is safe for
// concurrent use. Dispatch is not idempotent: every call sends.
type Dispatcher struct {
	provider Provider
	cfg      Config
	limiter  *rate.Limiter
	log      zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(provider Provider, cfg Config, log zerolog.Logger) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 8 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}

	d := &Dispatcher{
		provider: provider,
		cfg:      cfg,
		log:      log.With().Str("comp", "dispatcher").Logger(),
		sleep:    sleepCtx,
	}
	if cfg.RatePerSec > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	return d
}

// Dispatch sends the reminder for habit to the contact. related is the
// habit's related pleasant habit, or nil.
//
// A permanent provider failure returns a Rejected *DispatchError at once.
// Transient failures are retried with exponential backoff and end in an
// Unreachable *DispatchError when attempts run out or ctx is done.
func (d *Dispatcher) Dispatch(ctx context.Context, habit *models.Habit, related *models.Habit, to Contact) error {
	msg := BuildReminder(habit, related)

	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return &DispatchError{Kind: Unreachable, Attempts: attempt - 1, Err: err}
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		err := d.provider.Send(callCtx, to, msg)
		cancel()
		if err == nil {
			return nil
		}

		if IsPermanent(err) {
			return &DispatchError{Kind: Rejected, Attempts: attempt, Err: err}
		}
		lastErr = err
		d.log.Debug().Err(err).
			Int64("habit_id", habit.HabitID).
			Int("attempt", attempt).
			Int("max", d.cfg.MaxAttempts).
			Msg("reminder send failed")

		if attempt == d.cfg.MaxAttempts {
			break
		}
		if err := d.sleep(ctx, d.delay(attempt, err)); err != nil {
			return &DispatchError{Kind: Unreachable, Attempts: attempt, Err: fmt.Errorf("%w (last error: %v)", err, lastErr)}
		}
	}

	return &DispatchError{Kind: Unreachable, Attempts: d.cfg.MaxAttempts, Err: lastErr}
}

// delay is the wait before attempt+1: base * 2^(attempt-1), raised to any
// provider RetryAfter hint, capped at RetryMaxDelay.
func (d *Dispatcher) delay(attempt int, err error) time.Duration {
	delay := d.cfg.RetryBase
	for i := 1; i < attempt && delay < d.cfg.RetryMaxDelay; i++ {
		delay *= 2
	}
	if hint := retryAfter(err); hint > delay {
		delay = hint
	}
	if delay > d.cfg.RetryMaxDelay {
		delay = d.cfg.RetryMaxDelay
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
