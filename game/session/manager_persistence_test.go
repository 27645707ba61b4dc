package session

import (
	"errors"
	"testing"
	"time"

	"github.com/wricardo/citycurrent/game/config"
	"github.com/wricardo/citycurrent/game/tiles"
)

func TestManagerWithPersistence(t *testing.T) {
	configManager, err := config.NewManager("../../configs")
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}

	persistence, err := NewFilePersistence(t.TempDir(), configManager)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}

	manager := NewManagerWithPersistence(persistence)

	session, err := manager.Create("toronto", configManager.GetDefault())
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	t.Run("create auto-saves", func(t *testing.T) {
		if !persistence.Exists(session.ID) {
			t.Error("Session should be saved on creation")
		}
	})

	t.Run("save dirty writes changed sessions only", func(t *testing.T) {
		clean, _ := manager.Create("toronto", configManager.GetDefault())

		session.Engine.PlaceTile(0, tiles.WindTurbine)
		session.Engine.Tick()

		n, err := manager.SaveDirty()
		if err != nil {
			t.Fatalf("SaveDirty failed: %v", err)
		}
		if n != 1 {
			t.Errorf("Expected 1 session saved, got %d", n)
		}
		if manager.IsDirty(session.ID) || manager.IsDirty(clean.ID) {
			t.Error("Expected no dirty sessions after flush")
		}

		n, _ = manager.SaveDirty()
		if n != 0 {
			t.Errorf("Expected nothing to save on second flush, got %d", n)
		}
	})

	t.Run("get loads from persistence", func(t *testing.T) {
		manager2 := NewManagerWithPersistence(persistence)

		loaded, err := manager2.Get(session.ID)
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}
		state := loaded.Engine.Snapshot()
		if state.Grid[0].Tile != tiles.WindTurbine || state.Ticks != 1 {
			t.Errorf("Expected saved grid and tick count, got %q / %d", state.Grid[0].Tile, state.Ticks)
		}
		if loaded.ConfigName != "toronto" {
			t.Errorf("Expected config name 'toronto', got '%s'", loaded.ConfigName)
		}

		loaded.Engine.PlaceTile(1, tiles.House)
		if !manager2.IsDirty(session.ID) {
			t.Error("Expected loaded session to be hooked for dirty tracking")
		}
	})

	t.Run("overlay survives reload", func(t *testing.T) {
		session.ToggleOverlay()
		manager.MarkDirty(session.ID)
		manager.SaveDirty()

		loaded, err := persistence.Load(session.ID)
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}
		if loaded.OverlayVisible() {
			t.Error("Expected hidden overlay after reload")
		}
	})

	t.Run("load persisted sessions", func(t *testing.T) {
		manager3 := NewManagerWithPersistence(persistence)
		if err := manager3.LoadPersistedSessions(); err != nil {
			t.Fatalf("Failed to load persisted sessions: %v", err)
		}
		if manager3.Count() != 2 {
			t.Errorf("Expected 2 sessions loaded, got %d", manager3.Count())
		}
	})

	t.Run("cleanup saves dirty sessions before evicting", func(t *testing.T) {
		session.Engine.PlaceTile(2, tiles.Battery)
		session.Touch(time.Now().Add(-time.Hour))

		if removed := manager.CleanupExpiredSessions(time.Minute); removed != 1 {
			t.Fatalf("Expected 1 session evicted, got %d", removed)
		}

		reloaded, err := manager.Get(session.ID)
		if err != nil {
			t.Fatalf("Expected evicted session to reload: %v", err)
		}
		if reloaded.Engine.Snapshot().Grid[2].Tile != tiles.Battery {
			t.Error("Expected change made before eviction to survive")
		}
	})

	t.Run("delete removes persisted copy", func(t *testing.T) {
		if err := manager.Delete(session.ID); err != nil {
			t.Fatalf("Failed to delete session: %v", err)
		}
		if persistence.Exists(session.ID) {
			t.Error("Expected session file to be removed")
		}
		if _, err := manager.Get(session.ID); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestManagerPruneOrphaned(t *testing.T) {
	configManager, err := config.NewManager("../../configs")
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}

	persistence, err := NewFilePersistence(t.TempDir(), configManager)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}

	manager := NewManagerWithPersistence(persistence)

	removed, _ := manager.Create("toronto", configManager.GetDefault())
	edited, _ := manager.Create("toronto", configManager.GetDefault())
	kept, _ := manager.Create("toronto", configManager.GetDefault())

	if err := persistence.Delete(removed.ID); err != nil {
		t.Fatalf("Failed to delete record: %v", err)
	}
	if err := persistence.Delete(edited.ID); err != nil {
		t.Fatalf("Failed to delete record: %v", err)
	}
	edited.Engine.PlaceTile(3, tiles.Park)

	if n := manager.PruneOrphaned(); n != 1 {
		t.Errorf("Expected 1 pruned session, got %d", n)
	}

	if manager.Count() != 2 {
		t.Errorf("Expected 2 sessions in memory, got %d", manager.Count())
	}
	if _, err := manager.Get(removed.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound for pruned session, got %v", err)
	}
	if _, err := manager.Get(kept.ID); err != nil {
		t.Errorf("Expected kept session to remain, got %v", err)
	}

	if err := manager.Save(edited.ID); err != nil {
		t.Fatalf("Failed to save edited session: %v", err)
	}
	if !persistence.Exists(edited.ID) {
		t.Error("Expected save to recreate the deleted record")
	}
}

func TestManagerPruneOrphaned_RunningCity(t *testing.T) {
	configManager, err := config.NewManager("../../configs")
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}

	persistence, err := NewFilePersistence(t.TempDir(), configManager)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}

	manager := NewManagerWithPersistence(persistence)

	running, _ := manager.Create("toronto", configManager.GetDefault())
	if !running.Engine.Tick() {
		t.Fatal("Expected new city to tick")
	}
	if !manager.IsDirty(running.ID) {
		t.Fatal("Expected tick progress to mark the session dirty")
	}

	if err := persistence.Delete(running.ID); err != nil {
		t.Fatalf("Failed to delete record: %v", err)
	}

	if n := manager.PruneOrphaned(); n != 1 {
		t.Errorf("Expected running city to be pruned, got %d", n)
	}
	if n, err := manager.SaveDirty(); err != nil || n != 0 {
		t.Errorf("Expected nothing left to save, got %d (%v)", n, err)
	}
	if persistence.Exists(running.ID) {
		t.Error("Expected pruned record to stay deleted")
	}
}
