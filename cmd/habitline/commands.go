package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hray3182/HabitLine/internal/bot"
	"github.com/hray3182/HabitLine/internal/bot/handlers"
	"github.com/hray3182/HabitLine/internal/config"
	"github.com/hray3182/HabitLine/internal/habits"
	"github.com/hray3182/HabitLine/internal/notify"
	"github.com/hray3182/HabitLine/internal/repository"
	"github.com/hray3182/HabitLine/internal/scheduler"
)

type appContext struct {
	cfg *config.Config
	log zerolog.Logger
}

func (a *appContext) dispatcher(provider notify.Provider) *notify.Dispatcher {
	d := a.cfg.Dispatch
	return notify.NewDispatcher(provider, notify.Config{
		MaxAttempts:   d.MaxAttempts,
		RetryBase:     d.RetryBase,
		RetryMaxDelay: d.RetryMaxDelay,
		RatePerSec:    d.RatePerSec,
		SendTimeout:   d.SendTimeout,
	}, a.log)
}

func (a *appContext) scheduler(stores *repository.Stores, provider notify.Provider) *scheduler.Scheduler {
	return scheduler.New(stores.Habits, stores.Users, a.dispatcher(provider), scheduler.Config{
		TickSchedule: a.cfg.Scheduler.TickSchedule,
		Workers:      a.cfg.Scheduler.Workers,
		Location:     a.cfg.Location,
	}, a.log)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

type RunCmd struct{}

func (c *RunCmd) Run(app *appContext) error {
	if err := app.cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	stores, err := repository.Open(ctx, app.cfg.DatabaseURI, app.log)
	if err != nil {
		return err
	}
	defer stores.Close()
	app.log.Info().Str("backend", stores.Backend).Msg("connected to database")

	api, err := bot.NewAPI(app.cfg.TelegramToken)
	if err != nil {
		return err
	}

	sched := app.scheduler(stores, notify.NewTelegramProvider(api))
	service := habits.NewService(stores.Habits, sched, app.log)
	b := bot.New(api, handlers.New(api, stores.Users, service, app.cfg.Location, app.log), app.log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Start(gctx) })
	g.Go(func() error { return b.Start(gctx) })

	app.log.Info().Msg("habitline started")
	err = g.Wait()
	app.log.Info().Msg("shutting down")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type TickCmd struct {
	DryRun bool   `help:"Log reminders instead of sending them. Nothing is marked as notified."`
	At     string `help:"Evaluate at this local time (2006-01-02T15:04) instead of now."`
}

func (c *TickCmd) Run(app *appContext) error {
	now := time.Now()
	if c.At != "" {
		t, err := time.ParseInLocation("2006-01-02T15:04", c.At, app.cfg.Location)
		if err != nil {
			return err
		}
		now = t
	}

	ctx, stop := signalContext()
	defer stop()

	stores, err := repository.Open(ctx, app.cfg.DatabaseURI, app.log)
	if err != nil {
		return err
	}
	defer stores.Close()

	var provider notify.Provider
	if c.DryRun {
		provider = notify.NewLogProvider(app.log)
		stores.Habits = readOnlyNotified{stores.Habits}
	} else {
		if err := app.cfg.Validate(); err != nil {
			return err
		}
		api, err := bot.NewAPI(app.cfg.TelegramToken)
		if err != nil {
			return err
		}
		provider = notify.NewTelegramProvider(api)
	}

	rep := app.scheduler(stores, provider).Tick(ctx, now)
	app.log.Info().
		Str("tick_id", rep.TickID).
		Bool("dry_run", c.DryRun).
		Int("due", rep.Due).
		Int("sent", rep.Sent).
		Int("failed", rep.Failed).
		Msg("tick done")
	return nil
}

// readOnlyNotified drops notification bookkeeping so a dry run leaves the
// store untouched.
type readOnlyNotified struct {
	repository.HabitStore
}

func (readOnlyNotified) SetLastNotifiedAt(context.Context, int64, time.Time) error { return nil }

type MigrateCmd struct{}

func (c *MigrateCmd) Run(app *appContext) error {
	ctx, stop := signalContext()
	defer stop()

	stores, err := repository.Open(ctx, app.cfg.DatabaseURI, app.log)
	if err != nil {
		return err
	}
	stores.Close()
	app.log.Info().Str("backend", stores.Backend).Msg("database schema is up to date")
	return nil
}
