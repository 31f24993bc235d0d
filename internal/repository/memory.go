package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hray3182/HabitLine/internal/models"
)

// MemoryStore keeps habits and users in process memory. It implements both
// HabitStore and UserStore and hands out copies, so callers never share
// state with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	habits map[int64]*models.Habit
	users  map[int64]*models.User
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		habits: make(map[int64]*models.Habit),
		users:  make(map[int64]*models.User),
	}
}

func copyHabit(h *models.Habit) *models.Habit {
	cp := *h
	if h.RelatedHabitID != nil {
		id := *h.RelatedHabitID
		cp.RelatedHabitID = &id
	}
	if h.LastNotifiedAt != nil {
		at := *h.LastNotifiedAt
		cp.LastNotifiedAt = &at
	}
	return &cp
}

func (s *MemoryStore) sorted(keep func(*models.Habit) bool) []*models.Habit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Habit
	for _, h := range s.habits {
		if keep(h) {
			out = append(out, copyHabit(h))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HabitID < out[j].HabitID })
	return out
}

func (s *MemoryStore) ListHabits(ctx context.Context) ([]*models.Habit, error) {
	return s.sorted(func(*models.Habit) bool { return true }), nil
}

func (s *MemoryStore) ListHabitsByUser(ctx context.Context, userID int64) ([]*models.Habit, error) {
	return s.sorted(func(h *models.Habit) bool { return h.UserID == userID }), nil
}

func (s *MemoryStore) GetHabit(ctx context.Context, habitID int64) (*models.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.habits[habitID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyHabit(h), nil
}

func (s *MemoryStore) SaveHabit(ctx context.Context, habit *models.Habit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if habit.HabitID == 0 {
		s.nextID++
		habit.HabitID = s.nextID
		habit.CreatedAt = time.Now()
		habit.LastNotifiedAt = nil
		s.habits[habit.HabitID] = copyHabit(habit)
		return nil
	}

	existing, ok := s.habits[habit.HabitID]
	if !ok {
		return ErrNotFound
	}
	cp := copyHabit(habit)
	cp.LastNotifiedAt = existing.LastNotifiedAt
	cp.CreatedAt = existing.CreatedAt
	s.habits[habit.HabitID] = cp
	if habit.HabitID > s.nextID {
		s.nextID = habit.HabitID
	}
	return nil
}

// PutHabit stores habit exactly as given, LastNotifiedAt included. Useful for seeding.
func (s *MemoryStore) PutHabit(habit *models.Habit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if habit.HabitID == 0 {
		s.nextID++
		habit.HabitID = s.nextID
	} else if habit.HabitID > s.nextID {
		s.nextID = habit.HabitID
	}
	s.habits[habit.HabitID] = copyHabit(habit)
}

func (s *MemoryStore) DeleteHabit(ctx context.Context, habitID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.habits[habitID]; !ok {
		return ErrNotFound
	}
	for _, h := range s.habits {
		if h.HabitID != habitID && h.RelatedHabitID != nil && *h.RelatedHabitID == habitID {
			return ErrHabitReferenced
		}
	}
	delete(s.habits, habitID)
	return nil
}

func (s *MemoryStore) CountReferences(ctx context.Context, habitID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, h := range s.habits {
		if h.RelatedHabitID != nil && *h.RelatedHabitID == habitID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) SetLastNotifiedAt(ctx context.Context, habitID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.habits[habitID]
	if !ok {
		return ErrNotFound
	}
	h.LastNotifiedAt = &at
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, userID int64, userName string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		u = &models.User{UserID: userID, CreatedAt: time.Now()}
		s.users[userID] = u
	}
	u.UserName = userName
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) SetTelegramChatID(ctx context.Context, userID int64, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.TelegramChatID = &chatID
	return nil
}
