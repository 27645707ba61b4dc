package engine

import (
	"time"

	"github.com/wricardo/citycurrent/game/geo"
	"github.com/wricardo/citycurrent/game/tiles"
)

const (
	DefaultAreaMeters    = 2000
	DefaultCellMeters    = 50
	DefaultStartingMoney = 1_000_000
	DefaultTimeOfDay     = 12
	DefaultSeed          = "citycurrent"
	DefaultTickInterval  = 200 * time.Millisecond

	// TimeStep is the number of in-game hours a tick advances.
	TimeStep    = 0.01
	HoursPerDay = 24

	// SmoothingFactor is the fraction of the gap to target that pollution
	// and happiness close on every tick.
	SmoothingFactor = 0.05
	// ReliabilityWeight is the share of happiness driven by supply meeting
	// demand; the rest comes from clean air.
	ReliabilityWeight = 0.6

	// Validation constants
	MaxGridSide = 200
)

// DefaultCenter is the default sandbox location (downtown Toronto).
var DefaultCenter = geo.LatLng{Lat: 43.6532, Lng: -79.3832}

// Cell is a single grid position. Tile is empty when nothing is placed.
type Cell struct {
	Tile    tiles.Kind `json:"tile_id"`
	Level   int        `json:"level"`
	Powered bool       `json:"powered"`
}

// Empty reports whether no tile is placed on the cell.
func (c Cell) Empty() bool {
	return c.Tile == tiles.None
}

// HistoryEntry is the shape reserved for undo/redo snapshots. No operation
// records entries yet.
type HistoryEntry struct {
	Grid   Grid    `json:"grid"`
	Money  float64 `json:"money"`
	Supply float64 `json:"supply"`
	Demand float64 `json:"demand"`
	Stored float64 `json:"stored"`
}

// State represents the complete city state
type State struct {
	BBox       geo.BoundingBox `json:"bbox"`
	CellMeters float64         `json:"cell_meters"`
	GridWidth  int             `json:"grid_width"`
	GridHeight int             `json:"grid_height"`
	Grid       Grid            `json:"grid"`

	Money        float64 `json:"money"`
	IncomePerMin float64 `json:"income_per_min"`
	UpkeepPerMin float64 `json:"upkeep_per_min"`
	Demand       float64 `json:"demand"`
	Supply       float64 `json:"supply"`
	Stored       float64 `json:"stored"`
	StorageCap   float64 `json:"storage_cap"`
	Pollution    float64 `json:"pollution"`
	Happiness    float64 `json:"happiness"`
	TimeOfDay    float64 `json:"time_of_day"`

	Difficulty   tiles.Difficulty `json:"difficulty"`
	SelectedTile tiles.Kind       `json:"selected_tile"`
	UndoStack    []HistoryEntry   `json:"undo_stack"`
	RedoStack    []HistoryEntry   `json:"redo_stack"`
	Paused       bool             `json:"paused"`
	Seed         string           `json:"seed"`
	Ticks        uint64           `json:"ticks"`
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := *s
	c.Grid = s.Grid.Clone()
	c.UndoStack = cloneHistory(s.UndoStack)
	c.RedoStack = cloneHistory(s.RedoStack)
	return &c
}

// CellCount returns GridWidth * GridHeight.
func (s *State) CellCount() int {
	return s.GridWidth * s.GridHeight
}

func cloneHistory(entries []HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		out[i] = e
		out[i].Grid = e.Grid.Clone()
	}
	return out
}

// EventType names the operation that produced an Event.
type EventType string

const (
	EventTilePlaced       EventType = "tile_placed"
	EventTileRemoved      EventType = "tile_removed"
	EventTileSelected     EventType = "tile_selected"
	EventTick             EventType = "tick"
	EventPaused           EventType = "paused"
	EventResumed          EventType = "resumed"
	EventDifficultyChange EventType = "difficulty_changed"
	EventRestored         EventType = "restored"
	EventReset            EventType = "reset"
)

// Event is delivered to listeners after a mutating operation completes.
// Index is -1 for operations that do not target a cell. State is a copy
// taken when the operation finished; it is shared by all listeners of that
// event and must be treated as read-only.
type Event struct {
	Type  EventType  `json:"type"`
	Index int        `json:"index"`
	Kind  tiles.Kind `json:"kind,omitempty"`
	State *State     `json:"state"`
}

// Listener receives engine events.
type Listener func(Event)
