package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hray3182/HabitLine/internal/database"
)

// Stores bundles the habit and user stores of one backend.
type Stores struct {
	Habits  HabitStore
	Users   UserStore
	Backend string

	close func()
}

func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// Open connects to the backend named by uri and brings its schema up to date.
// "postgres://" and "postgresql://" select PostgreSQL, "memory" selects the
// in-memory store, anything else is a SQLite path.
func Open(ctx context.Context, uri string, log zerolog.Logger) (*Stores, error) {
	switch {
	case database.IsPostgresURI(uri):
		db, err := database.New(ctx, uri)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, log); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return &Stores{
			Habits:  NewHabitRepository(db),
			Users:   NewUserRepository(db),
			Backend: "postgres",
			close:   db.Close,
		}, nil

	case uri == "memory":
		mem := NewMemoryStore()
		return &Stores{Habits: mem, Users: mem, Backend: "memory"}, nil

	default:
		db, err := database.OpenSQLite(ctx, uri)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Habits:  NewSQLiteHabitRepository(db),
			Users:   NewSQLiteUserRepository(db),
			Backend: "sqlite",
			close:   func() { _ = db.Close() },
		}, nil
	}
}
