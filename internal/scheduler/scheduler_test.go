package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hray3182/HabitLine/internal/models"
	"github.com/hray3182/HabitLine/internal/notify"
	"github.com/hray3182/HabitLine/internal/repository"
)

type fakeDispatcher struct {
	mu      sync.Mutex
	calls   []int64
	related map[int64]*models.Habit
	fail    map[int64]error

	entered chan int64    // receives the habit id when Dispatch starts, if set
	release chan struct{} // Dispatch waits on it, if set
	after   func()        // runs once the send succeeded, if set
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, habit *models.Habit, related *models.Habit, to notify.Contact) error {
	if d.entered != nil {
		d.entered <- habit.HabitID
	}
	if d.release != nil {
		<-d.release
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, habit.HabitID)
	if d.related == nil {
		d.related = make(map[int64]*models.Habit)
	}
	d.related[habit.HabitID] = related
	err := d.fail[habit.HabitID]
	if err == nil && d.after != nil {
		d.after()
	}
	return err
}

func (d *fakeDispatcher) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

var moscow = time.FixedZone("MSK", 3*60*60)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.March, day, hour, minute, 0, 0, moscow)
}

func newFixture(t *testing.T, d Dispatcher) (*Scheduler, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	ctx := context.Background()
	if _, err := store.GetOrCreate(ctx, 1, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetTelegramChatID(ctx, 1, 1001); err != nil {
		t.Fatal(err)
	}
	s := New(store, store, d, Config{Workers: 2, Location: moscow}, zerolog.Nop())
	return s, store
}

func habitAt(id int64, hour int, last *time.Time) *models.Habit {
	return &models.Habit{
		HabitID:         id,
		UserID:          1,
		Place:           "home",
		Action:          "stretch",
		TimeOfDay:       models.TimeOfDay{Hour: hour},
		DurationSeconds: 60,
		PeriodicityDays: 1,
		Reward:          "tea",
		LastNotifiedAt:  last,
	}
}

func lastNotified(t *testing.T, store *repository.MemoryStore, id int64) *time.Time {
	t.Helper()
	h, err := store.GetHabit(context.Background(), id)
	if err != nil {
		t.Fatalf("GetHabit(%d): %v", id, err)
	}
	return h.LastNotifiedAt
}

func TestTickSendsOnlyDueHabits(t *testing.T) {
	d := &fakeDispatcher{}
	s, store := newFixture(t, d)
	now := at(10, 9, 0)
	today := at(10, 7, 30)

	store.PutHabit(habitAt(1, 8, nil))    // due
	store.PutHabit(habitAt(2, 21, nil))   // later today
	store.PutHabit(habitAt(3, 7, &today)) // already notified today

	rep := s.Tick(context.Background(), now)
	if rep.Candidates != 3 || rep.Due != 1 || rep.Sent != 1 || rep.Failed != 0 || rep.Skipped != 0 {
		t.Fatalf("report = %+v", rep)
	}
	if rep.TickID == "" {
		t.Error("report has no tick id")
	}
	if got := lastNotified(t, store, 1); got == nil || !got.Equal(now) {
		t.Fatalf("habit 1 LastNotifiedAt = %v, want %v", got, now)
	}
	if got := lastNotified(t, store, 2); got != nil {
		t.Fatalf("habit 2 LastNotifiedAt = %v, want nil", got)
	}

	// Same day again: nothing left to send.
	rep = s.Tick(context.Background(), now.Add(5*time.Minute))
	if rep.Due != 0 || d.callCount() != 1 {
		t.Fatalf("second tick report = %+v, dispatches = %d", rep, d.callCount())
	}
}

func TestTickFailureIsIsolated(t *testing.T) {
	d := &fakeDispatcher{fail: map[int64]error{
		1: &notify.DispatchError{Kind: notify.Unreachable, Attempts: 3, Err: errors.New("timeout")},
		2: &notify.DispatchError{Kind: notify.Rejected, Attempts: 1, Err: errors.New("blocked")},
	}}
	s, store := newFixture(t, d)
	store.PutHabit(habitAt(1, 8, nil))
	store.PutHabit(habitAt(2, 8, nil))
	store.PutHabit(habitAt(3, 8, nil))

	rep := s.Tick(context.Background(), at(10, 9, 0))
	if rep.Due != 3 || rep.Sent != 1 || rep.Failed != 2 {
		t.Fatalf("report = %+v", rep)
	}
	for _, id := range []int64{1, 2} {
		if got := lastNotified(t, store, id); got != nil {
			t.Errorf("habit %d LastNotifiedAt = %v after failed dispatch, want nil", id, got)
		}
	}
	if lastNotified(t, store, 3) == nil {
		t.Error("habit 3 was sent but not recorded")
	}
}

func TestTickSkipsHabitWithoutContact(t *testing.T) {
	d := &fakeDispatcher{}
	s, store := newFixture(t, d)
	h := habitAt(1, 8, nil)
	h.UserID = 2 // unknown user
	store.PutHabit(h)
	if _, err := store.GetOrCreate(context.Background(), 3, "bob"); err != nil {
		t.Fatal(err)
	}
	h2 := habitAt(2, 8, nil)
	h2.UserID = 3 // registered, no chat
	store.PutHabit(h2)

	rep := s.Tick(context.Background(), at(10, 9, 0))
	if rep.Skipped != 2 || rep.Sent != 0 || d.callCount() != 0 {
		t.Fatalf("report = %+v, dispatches = %d", rep, d.callCount())
	}
	if lastNotified(t, store, 1) != nil || lastNotified(t, store, 2) != nil {
		t.Fatal("skipped habits must not be marked notified")
	}
}

func TestTickLoadsRelatedHabit(t *testing.T) {
	d := &fakeDispatcher{}
	s, store := newFixture(t, d)
	pleasant := habitAt(5, 22, nil)
	pleasant.IsNiceHabit = true
	pleasant.Reward = ""
	pleasant.Action = "read a novel"
	store.PutHabit(pleasant)

	relatedID := int64(5)
	h := habitAt(1, 8, nil)
	h.Reward = ""
	h.RelatedHabitID = &relatedID
	store.PutHabit(h)

	s.Tick(context.Background(), at(10, 9, 0))
	got := d.related[1]
	if got == nil || got.Action != "read a novel" {
		t.Fatalf("related habit passed to dispatcher = %+v", got)
	}
}

func TestOverlappingTicksSendOnce(t *testing.T) {
	d := &fakeDispatcher{entered: make(chan int64, 2), release: make(chan struct{})}
	s, store := newFixture(t, d)
	store.PutHabit(habitAt(1, 8, nil))
	now := at(10, 9, 0)

	reports := make(chan Report, 2)
	go func() { reports <- s.Tick(context.Background(), now) }()
	<-d.entered // first tick is mid-dispatch

	go func() { reports <- s.Tick(context.Background(), now.Add(time.Second)) }()
	time.Sleep(50 * time.Millisecond)
	close(d.release)

	a, b := <-reports, <-reports
	if a.Sent+b.Sent != 1 {
		t.Fatalf("sent across ticks = %d, want 1 (reports %+v, %+v)", a.Sent+b.Sent, a, b)
	}
	if a.Skipped+b.Skipped != 1 {
		t.Fatalf("skipped across ticks = %d, want 1", a.Skipped+b.Skipped)
	}
	if d.callCount() != 1 {
		t.Fatalf("dispatches = %d, want 1", d.callCount())
	}
	if lastNotified(t, store, 1) == nil {
		t.Fatal("habit not marked notified")
	}
}

func TestStartRunsOnNotifyAndStops(t *testing.T) {
	d := &fakeDispatcher{entered: make(chan int64, 1)}
	s, store := newFixture(t, d)
	store.PutHabit(habitAt(1, 0, nil))
	s.clock = func() time.Time { return at(10, 9, 0) }
	s.cfg.TickSchedule = "@every 1h"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	s.Notify()
	select {
	case id := <-d.entered:
		if id != 1 {
			t.Fatalf("dispatched habit %d, want 1", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Notify did not trigger a tick")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s, _ := newFixture(t, &fakeDispatcher{})
	s.cfg.TickSchedule = "every now and then"
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("Start accepted an invalid schedule")
	}
}

// cancelAwareStore fails writes on a done context, as the SQL stores do.
type cancelAwareStore struct {
	*repository.MemoryStore
}

func (s cancelAwareStore) SetLastNotifiedAt(ctx context.Context, habitID int64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.SetLastNotifiedAt(ctx, habitID, at)
}

func TestTickRecordsSendDespiteShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := &fakeDispatcher{after: cancel}
	_, store := newFixture(t, d)
	store.PutHabit(habitAt(1, 8, nil))
	s := New(cancelAwareStore{store}, store, d, Config{Workers: 1, Location: moscow}, zerolog.Nop())

	rep := s.Tick(ctx, at(10, 9, 0))
	if rep.Sent != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if lastNotified(t, store, 1) == nil {
		t.Fatal("delivered reminder was not recorded after cancellation")
	}
}
