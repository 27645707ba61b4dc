package service

import (
	"time"

	"github.com/wricardo/citycurrent/game/engine"
	"github.com/wricardo/citycurrent/game/geo"
	"github.com/wricardo/citycurrent/game/tiles"
)

// SessionInfo provides information about a city session
type SessionInfo struct {
	ID             string         `json:"id"`
	ConfigName     string         `json:"config_name"`
	CreatedAt      time.Time      `json:"created_at"`
	LastAccessedAt time.Time      `json:"last_accessed_at"`
	OverlayVisible bool           `json:"overlay_visible"`
	State          *engine.State  `json:"state"`
	Config         *engine.Config `json:"config"`
}

// CommandResult is returned by every mutating command
type CommandResult struct {
	Success        bool          `json:"success"`
	Message        string        `json:"message"`
	Cell           *CellInfo     `json:"cell,omitempty"`
	OverlayVisible bool          `json:"overlay_visible"`
	State          *engine.State `json:"state"`
}

// TickResult reports a manual run of simulation ticks
type TickResult struct {
	Requested int           `json:"requested"`
	Executed  int           `json:"executed"`
	Paused    bool          `json:"paused"`
	Minutes   float64       `json:"minutes"`
	State     *engine.State `json:"state"`
}

// CellInfo describes one grid cell and where it sits on the map
type CellInfo struct {
	Index      int               `json:"index"`
	Row        int               `json:"row"`
	Col        int               `json:"col"`
	Cell       engine.Cell       `json:"cell"`
	Bounds     geo.BoundingBox   `json:"bounds"`
	Center     geo.LatLng        `json:"center"`
	Definition *tiles.Definition `json:"definition,omitempty"`
}

// CatalogInfo lists what can be built and the difficulty levels
type CatalogInfo struct {
	Tiles        []tiles.Definition         `json:"tiles"`
	Difficulties []tiles.DifficultySettings `json:"difficulties"`
}

// ConfigInfo provides information about a scenario
type ConfigInfo struct {
	Filename     string           `json:"filename"`
	ConfigID     string           `json:"config_id"` // identifier to use for session creation
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Center       geo.LatLng       `json:"center"`
	AreaMeters   float64          `json:"area_meters"`
	CellMeters   float64          `json:"cell_meters"`
	GridSide     int              `json:"grid_side"`
	Difficulty   tiles.Difficulty `json:"difficulty"`
	TickInterval int              `json:"tick_interval_ms"`
}

// NewConfigInfo summarizes a scenario loaded from filename.
func NewConfigInfo(id, filename string, config *engine.Config) *ConfigInfo {
	return &ConfigInfo{
		Filename:     filename,
		ConfigID:     id,
		Name:         config.Name,
		Description:  config.Description,
		Center:       config.Center,
		AreaMeters:   config.AreaMeters,
		CellMeters:   config.CellMeters,
		GridSide:     config.GridSide(),
		Difficulty:   config.Difficulty,
		TickInterval: config.TickIntervalMs,
	}
}
