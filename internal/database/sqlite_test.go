package database

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenSQLiteCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "habitline.db")

	db, err := OpenSQLite(context.Background(), "sqlite://"+path)
	if err != nil {
		t.Fatalf("OpenSQLite error: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"user", "habit"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}

	// Applying the schema twice must be harmless.
	db2, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("second OpenSQLite error: %v", err)
	}
	db2.Close()
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	if _, err := OpenSQLite(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestIsPostgresURI(t *testing.T) {
	tests := []struct {
		uri  string
		want bool
	}{
		{"postgres://localhost/habits", true},
		{"postgresql://u@h:5432/db", true},
		{"sqlite://data/habits.db", false},
		{"data/habits.db", false},
	}
	for _, tt := range tests {
		if got := IsPostgresURI(tt.uri); got != tt.want {
			t.Errorf("IsPostgresURI(%q) = %v, want %v", tt.uri, got, tt.want)
		}
	}
}
