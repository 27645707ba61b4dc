package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/wricardo/citycurrent/game/geo"
	"github.com/wricardo/citycurrent/game/tiles"
)

// Config describes a scenario: where the sandbox sits and how it starts.
type Config struct {
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	Center         geo.LatLng       `json:"center"`
	AreaMeters     float64          `json:"area_meters"`
	CellMeters     float64          `json:"cell_meters"`
	StartingMoney  float64          `json:"starting_money"`
	StartTimeOfDay float64          `json:"start_time_of_day"`
	Difficulty     tiles.Difficulty `json:"difficulty"`
	SelectedTile   tiles.Kind       `json:"selected_tile"`
	Seed           string           `json:"seed"`
	TickIntervalMs int              `json:"tick_interval_ms"`
	Balance        *tiles.Balance   `json:"balance,omitempty"`
}

// DefaultConfig returns the default downtown Toronto sandbox.
func DefaultConfig() *Config {
	return &Config{
		Name:           "Toronto",
		Description:    "Downtown Toronto, 2 km square with 50 m cells",
		Center:         DefaultCenter,
		AreaMeters:     DefaultAreaMeters,
		CellMeters:     DefaultCellMeters,
		StartingMoney:  DefaultStartingMoney,
		StartTimeOfDay: DefaultTimeOfDay,
		Difficulty:     tiles.Standard,
		SelectedTile:   tiles.PowerLine,
		Seed:           DefaultSeed,
		TickIntervalMs: int(DefaultTickInterval / time.Millisecond),
	}
}

// GridSide returns the number of cells along each side of the area.
func (c *Config) GridSide() int {
	if c.CellMeters <= 0 {
		return 0
	}
	return int(c.AreaMeters / c.CellMeters)
}

// TickInterval returns the wall-clock period between ticks.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// TickMinutes returns the tick interval expressed in minutes; economy rates
// are per minute and are scaled by this on every tick.
func (c *Config) TickMinutes() float64 {
	return c.TickInterval().Minutes()
}

// EffectiveBalance returns the configured balance or the default one.
func (c *Config) EffectiveBalance() tiles.Balance {
	if c.Balance != nil {
		return *c.Balance
	}
	return tiles.DefaultBalance()
}

// ValidateConfig validates a scenario configuration
func ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if config.Description == "" {
		return fmt.Errorf("config validation: description is required")
	}

	// Validate location
	if !isFinite(config.Center.Lat) || config.Center.Lat <= -90 || config.Center.Lat >= 90 {
		return fmt.Errorf("config validation: center.lat must be strictly between -90 and 90, got %v", config.Center.Lat)
	}
	if !isFinite(config.Center.Lng) || config.Center.Lng < -180 || config.Center.Lng > 180 {
		return fmt.Errorf("config validation: center.lng must be between -180 and 180, got %v", config.Center.Lng)
	}

	// Validate dimensions
	if !isFinite(config.AreaMeters) || config.AreaMeters <= 0 {
		return fmt.Errorf("config validation: area_meters must be positive, got %v", config.AreaMeters)
	}
	if !isFinite(config.CellMeters) || config.CellMeters <= 0 || config.CellMeters > config.AreaMeters {
		return fmt.Errorf("config validation: cell_meters must be in (0, area_meters], got %v", config.CellMeters)
	}
	if side := config.GridSide(); side < 1 || side > MaxGridSide {
		return fmt.Errorf("config validation: grid side must be between 1 and %d cells, got %d", MaxGridSide, side)
	}

	// Validate starting values
	if !isFinite(config.StartingMoney) {
		return fmt.Errorf("config validation: starting_money must be finite")
	}
	if !isFinite(config.StartTimeOfDay) || config.StartTimeOfDay < 0 || config.StartTimeOfDay >= HoursPerDay {
		return fmt.Errorf("config validation: start_time_of_day must be in [0, 24), got %v", config.StartTimeOfDay)
	}
	if config.TickIntervalMs <= 0 {
		return fmt.Errorf("config validation: tick_interval_ms must be positive, got %d", config.TickIntervalMs)
	}
	if _, err := tiles.LookupDifficulty(config.Difficulty); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if config.SelectedTile != tiles.None {
		if _, err := tiles.Lookup(config.SelectedTile); err != nil {
			return fmt.Errorf("config validation: selected_tile: %w", err)
		}
	}

	if b := config.Balance; b != nil {
		for _, v := range []float64{b.BaseIncomePerMin, b.BaseUpkeepPerMin, b.RevenuePerMW} {
			if !isFinite(v) {
				return fmt.Errorf("config validation: balance values must be finite")
			}
		}
		for kind, m := range b.UpkeepModifiers {
			if !isFinite(m) || m < 0 {
				return fmt.Errorf("config validation: balance upkeep modifier for %q must be non-negative", kind)
			}
		}
	}

	return nil
}

// LoadConfigFile loads and validates a scenario from a JSON file
func LoadConfigFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", filename, err)
	}

	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// NewState creates the initial state for a validated configuration
func NewState(config *Config) *State {
	side := config.GridSide()
	return &State{
		BBox:         geo.BoundingBoxFor(config.Center, config.AreaMeters),
		CellMeters:   config.CellMeters,
		GridWidth:    side,
		GridHeight:   side,
		Grid:         NewGrid(side, side),
		Money:        config.StartingMoney,
		Happiness:    1,
		TimeOfDay:    config.StartTimeOfDay,
		Difficulty:   config.Difficulty,
		SelectedTile: config.SelectedTile,
		UndoStack:    []HistoryEntry{},
		RedoStack:    []HistoryEntry{},
		Seed:         config.Seed,
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
