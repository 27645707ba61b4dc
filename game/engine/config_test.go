package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wricardo/citycurrent/game/geo"
	"github.com/wricardo/citycurrent/game/tiles"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if err := ValidateConfig(config); err != nil {
		t.Fatalf("Expected default config to be valid: %v", err)
	}
	if config.GridSide() != 40 {
		t.Errorf("Expected 40 cells per side, got %d", config.GridSide())
	}
	if config.TickInterval() != 200*time.Millisecond {
		t.Errorf("Expected 200ms tick, got %v", config.TickInterval())
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing name", func(c *Config) { c.Name = "" }, "name is required"},
		{"missing description", func(c *Config) { c.Description = "" }, "description is required"},
		{"pole latitude", func(c *Config) { c.Center = geo.LatLng{Lat: 90, Lng: 0} }, "center.lat"},
		{"bad longitude", func(c *Config) { c.Center.Lng = 200 }, "center.lng"},
		{"zero area", func(c *Config) { c.AreaMeters = 0 }, "area_meters"},
		{"zero cell", func(c *Config) { c.CellMeters = 0 }, "cell_meters"},
		{"cell bigger than area", func(c *Config) { c.CellMeters = 5000 }, "cell_meters"},
		{"grid too large", func(c *Config) { c.CellMeters = 1 }, "grid side"},
		{"time of day", func(c *Config) { c.StartTimeOfDay = 24 }, "start_time_of_day"},
		{"tick interval", func(c *Config) { c.TickIntervalMs = 0 }, "tick_interval_ms"},
		{"difficulty", func(c *Config) { c.Difficulty = "brutal" }, "unknown difficulty"},
		{"selected tile", func(c *Config) { c.SelectedTile = "Dam" }, "selected_tile"},
		{"negative modifier", func(c *Config) {
			b := tiles.DefaultBalance()
			b.UpkeepModifiers = map[tiles.Kind]float64{tiles.House: -1}
			c.Balance = &b
		}, "upkeep modifier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := ValidateConfig(config)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}

	if err := ValidateConfig(nil); err == nil {
		t.Error("Expected error for nil config")
	}
}

func TestValidateConfig_NoSelection(t *testing.T) {
	config := DefaultConfig()
	config.SelectedTile = tiles.None
	if err := ValidateConfig(config); err != nil {
		t.Errorf("Expected empty selection to be valid, got %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "small.json")
	content := `{
		"name": "Small",
		"description": "A tiny test town",
		"center": {"lat": 51.5, "lng": -0.12},
		"area_meters": 500,
		"cell_meters": 50,
		"starting_money": 5000,
		"start_time_of_day": 6,
		"difficulty": "hard",
		"selected_tile": "House",
		"seed": "tiny",
		"tick_interval_ms": 1000
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile failed: %v", err)
	}
	if config.GridSide() != 10 || config.Difficulty != tiles.Hard || config.SelectedTile != tiles.House {
		t.Errorf("Unexpected config %+v", config)
	}

	state := NewState(config)
	if state.GridWidth != 10 || len(state.Grid) != 100 || state.Money != 5000 || state.Seed != "tiny" {
		t.Errorf("Unexpected initial state %+v", aggregatesOf(state))
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{not json"), 0644)
	if _, err := LoadConfigFile(bad); err == nil {
		t.Error("Expected parse error")
	}
	if _, err := LoadConfigFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestEffectiveBalance(t *testing.T) {
	config := DefaultConfig()
	if config.EffectiveBalance().RevenuePerMW != tiles.DefaultBalance().RevenuePerMW {
		t.Error("Expected default balance when none configured")
	}

	custom := tiles.Balance{BaseIncomePerMin: 100}
	config.Balance = &custom
	if config.EffectiveBalance().BaseIncomePerMin != 100 {
		t.Error("Expected configured balance to win")
	}
}
