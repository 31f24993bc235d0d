package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hray3182/HabitLine/internal/models"
	"github.com/hray3182/HabitLine/internal/notify"
	"github.com/hray3182/HabitLine/internal/repository"
)

// Dispatcher sends one reminder. *notify.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, habit *models.Habit, related *models.Habit, to notify.Contact) error
}

type Config struct {
	TickSchedule string // cron spec, e.g. "@every 1m"
	Workers      int
	Location     *time.Location
}

// Report summarizes one tick.
type Report struct {
	TickID     string
	Candidates int
	Due        int
	Sent       int
	Failed     int
	Skipped    int
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeFailed
	outcomeSkipped
)

type Scheduler struct {
	habits     repository.HabitStore
	users      repository.UserStore
	dispatcher Dispatcher
	cfg        Config
	log        zerolog.Logger

	// inflight collapses concurrent processing of the same habit across
	// overlapping ticks into one dispatch.
	inflight singleflight.Group
	notifyCh chan struct{}
	clock    func() time.Time
}

func New(habits repository.HabitStore, users repository.UserStore, dispatcher Dispatcher, cfg Config, log zerolog.Logger) *Scheduler {
	if cfg.TickSchedule == "" {
		cfg.TickSchedule = "@every 1m"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Scheduler{
		habits:     habits,
		users:      users,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log.With().Str("comp", "scheduler").Logger(),
		notifyCh:   make(chan struct{}, 1),
		clock:      time.Now,
	}
}

// Notify triggers an immediate tick. Non-blocking if a tick is already pending.
func (s *Scheduler) Notify() {
	select {
	case s.notifyCh <- struct{}{}:
	default:
	}
}

// Start runs ticks on the configured cron schedule and on Notify until ctx is
// done. It returns once the running tick, if any, has finished.
func (s *Scheduler) Start(ctx context.Context) error {
	cl := cronLogger{log: s.log}
	c := cron.New(
		cron.WithLocation(s.cfg.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(s.cfg.TickSchedule, func() { s.Tick(ctx, s.clock()) }); err != nil {
		return fmt.Errorf("invalid tick schedule %q: %w", s.cfg.TickSchedule, err)
	}

	c.Start()
	s.log.Info().
		Str("schedule", s.cfg.TickSchedule).
		Int("workers", s.cfg.Workers).
		Str("tz", s.cfg.Location.String()).
		Msg("scheduler started")

	for {
		select {
		case <-ctx.Done():
			<-c.Stop().Done()
			s.log.Info().Msg("scheduler stopped")
			return nil
		case <-s.notifyCh:
			s.log.Debug().Msg("scheduler triggered by notification")
			s.Tick(ctx, s.clock())
		}
	}
}

// Tick evaluates every habit at now and dispatches reminders for the due ones.
// Failures are isolated per habit; a habit's last notification time is
// recorded only after its reminder was delivered.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) Report {
	now = now.In(s.cfg.Location)
	rep := Report{TickID: uuid.NewString()}
	log := s.log.With().Str("tick_id", rep.TickID).Logger()

	habits, err := s.habits.ListHabits(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list habits")
		return rep
	}
	rep.Candidates = len(habits)

	var due []int64
	for _, h := range habits {
		if h.IsDue(now) {
			due = append(due, h.HabitID)
		}
	}
	rep.Due = len(due)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Workers)
	for _, id := range due {
		id := id
		g.Go(func() error {
			res := s.guarded(ctx, log, id, now)
			mu.Lock()
			defer mu.Unlock()
			switch res {
			case outcomeSent:
				rep.Sent++
			case outcomeFailed:
				rep.Failed++
			default:
				rep.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	lvl := zerolog.InfoLevel
	if rep.Due == 0 {
		lvl = zerolog.DebugLevel
	}
	log.WithLevel(lvl).Int("candidates", rep.Candidates).
		Int("due", rep.Due).
		Int("sent", rep.Sent).
		Int("failed", rep.Failed).
		Int("skipped", rep.Skipped).
		Msg("tick finished")
	return rep
}

// guarded runs process for habitID unless another tick is already processing
// it, in which case the habit is counted as skipped here.
func (s *Scheduler) guarded(ctx context.Context, log zerolog.Logger, habitID int64, now time.Time) outcome {
	ran := false
	v, _, _ := s.inflight.Do(strconv.FormatInt(habitID, 10), func() (any, error) {
		ran = true
		return s.process(ctx, log, habitID, now), nil
	})
	if !ran {
		return outcomeSkipped
	}
	return v.(outcome)
}

func (s *Scheduler) process(ctx context.Context, log zerolog.Logger, habitID int64, now time.Time) (res outcome) {
	log = log.With().Int64("habit_id", habitID).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("panic while processing habit")
			res = outcomeFailed
		}
	}()

	// Re-read: an overlapping tick may have notified this habit already.
	habit, err := s.habits.GetHabit(ctx, habitID)
	if errors.Is(err, repository.ErrNotFound) {
		return outcomeSkipped
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to load habit")
		return outcomeFailed
	}
	if !habit.IsDue(now) {
		return outcomeSkipped
	}

	user, err := s.users.GetByID(ctx, habit.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Error().Err(err).Int64("user_id", habit.UserID).Msg("failed to load habit owner")
		return outcomeFailed
	}
	if user == nil || user.TelegramChatID == nil {
		log.Warn().Int64("user_id", habit.UserID).Msg("habit owner has no contact, skipping")
		return outcomeSkipped
	}

	var related *models.Habit
	if habit.RelatedHabitID != nil {
		related, err = s.habits.GetHabit(ctx, *habit.RelatedHabitID)
		if err != nil {
			log.Warn().Err(err).Int64("related_habit_id", *habit.RelatedHabitID).Msg("failed to load related habit")
			related = nil
		}
	}

	to := notify.Contact{UserID: user.UserID, ChatID: *user.TelegramChatID}
	if err := s.dispatcher.Dispatch(ctx, habit, related, to); err != nil {
		kind := notify.KindOf(err)
		lvl := zerolog.WarnLevel
		if kind == notify.Rejected {
			lvl = zerolog.ErrorLevel
		}
		log.WithLevel(lvl).Bool("alert", kind == notify.Rejected).Err(err).Str("kind", string(kind)).Msg("reminder not delivered")
		return outcomeFailed
	}

	// The reminder is out; record it even if shutdown cancelled ctx meanwhile.
	if err := s.habits.SetLastNotifiedAt(context.WithoutCancel(ctx), habit.HabitID, now); err != nil {
		// Delivered but not recorded: the next tick will send it again.
		log.Error().Err(err).Msg("failed to record notification")
		return outcomeSent
	}
	log.Info().Int64("user_id", habit.UserID).Msg("reminder sent")
	return outcomeSent
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
