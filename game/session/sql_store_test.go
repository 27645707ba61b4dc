package session

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/wricardo/citycurrent/game/config"
	"github.com/wricardo/citycurrent/game/tiles"
)

func openTestStore(t *testing.T) (*SQLStore, *config.Manager) {
	t.Helper()
	configManager, err := config.NewManager("../../configs")
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}

	dsn := "sqlite://" + filepath.Join(t.TempDir(), "sessions.db")
	store, err := OpenSQLStore(dsn, configManager)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, configManager
}

func TestParseDSN(t *testing.T) {
	tests := []struct {
		dsn    string
		driver string
		source string
		err    bool
	}{
		{"sqlite:///tmp/a.db", "sqlite", "/tmp/a.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", false},
		{"sqlite:data/a.db?mode=ro", "sqlite", "data/a.db?mode=ro", false},
		{"sqlite::memory:", "sqlite", ":memory:", false},
		{"postgres://u:p@localhost/city?sslmode=disable", "postgres", "postgres://u:p@localhost/city?sslmode=disable", false},
		{"postgresql://localhost/city", "postgres", "postgresql://localhost/city", false},
		{"sqlite://", "", "", true},
		{"mysql://localhost/city", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			driver, source, err := ParseDSN(tt.dsn)
			if tt.err {
				if err == nil {
					t.Errorf("Expected error for %q", tt.dsn)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if driver != tt.driver || source != tt.source {
				t.Errorf("Expected %s %s, got %s %s", tt.driver, tt.source, driver, source)
			}
		})
	}
}

func TestSQLStore(t *testing.T) {
	store, configManager := openTestStore(t)
	if store.Driver() != "sqlite" {
		t.Errorf("Expected sqlite driver, got %s", store.Driver())
	}

	session := newTestSession(t, configManager, "sql1")
	session.Engine.PlaceTile(5, tiles.SolarFarm)
	session.Engine.PlaceTile(6, tiles.House)
	session.Engine.Tick()
	session.SetOverlayVisible(false)

	if err := store.Save(session); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}
	if !store.Exists("sql1") {
		t.Error("Expected session row to exist")
	}

	loaded, err := store.Load("sql1")
	if err != nil {
		t.Fatalf("Failed to load session: %v", err)
	}
	state := loaded.Engine.Snapshot()
	if state.Grid[5].Tile != tiles.SolarFarm || state.Ticks != 1 {
		t.Errorf("Expected restored grid, got %q / %d", state.Grid[5].Tile, state.Ticks)
	}
	if loaded.OverlayVisible() {
		t.Error("Expected overlay flag to survive")
	}
	if d := loaded.CreatedAt.Sub(session.CreatedAt); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("Expected created at within 1ms, got %v vs %v", loaded.CreatedAt, session.CreatedAt)
	}

	t.Run("upsert", func(t *testing.T) {
		session.Engine.RemoveTile(5)
		if err := store.Save(session); err != nil {
			t.Fatalf("Failed to re-save session: %v", err)
		}
		loaded, _ := store.Load("sql1")
		if !loaded.Engine.Snapshot().Grid[5].Empty() {
			t.Error("Expected second save to replace the row")
		}

		ids, _ := store.ListAll()
		if len(ids) != 1 {
			t.Errorf("Expected one row after upsert, got %v", ids)
		}
	})

	t.Run("list and delete", func(t *testing.T) {
		store.Save(newTestSession(t, configManager, "sql2"))

		ids, err := store.ListAll()
		if err != nil {
			t.Fatalf("Failed to list sessions: %v", err)
		}
		if len(ids) != 2 {
			t.Errorf("Expected 2 sessions, got %v", ids)
		}

		if err := store.Delete("sql2"); err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}
		if err := store.Delete("sql2"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("load missing", func(t *testing.T) {
		if _, err := store.Load("missing"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
		if store.Exists("missing") {
			t.Error("Expected missing session not to exist")
		}
	})
}

func TestManagerWithSQLStore(t *testing.T) {
	store, configManager := openTestStore(t)
	manager := NewManagerWithPersistence(store)

	session, err := manager.Create("toronto", configManager.GetDefault())
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	session.Engine.PlaceTile(100, tiles.CoalPlant)

	if n, err := manager.SaveDirty(); err != nil || n != 1 {
		t.Fatalf("Expected one dirty session saved, got %d, %v", n, err)
	}

	fresh := NewManagerWithPersistence(store)
	if err := fresh.LoadPersistedSessions(); err != nil {
		t.Fatalf("Failed to load sessions: %v", err)
	}
	loaded, err := fresh.Get(session.ID)
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if loaded.Engine.Snapshot().Grid[100].Tile != tiles.CoalPlant {
		t.Error("Expected placement to survive the SQL round trip")
	}
}
