package engine

import (
	"errors"
	"fmt"

	"github.com/wricardo/citycurrent/game/tiles"
)

var ErrInvalidState = errors.New("invalid engine state")

// ValidateState checks that s is structurally consistent. Unknown tile kinds
// in the grid are accepted; they are ignored by recomputation.
func ValidateState(s *State) error {
	if s == nil {
		return fmt.Errorf("%w: state is nil", ErrInvalidState)
	}
	if s.GridWidth <= 0 || s.GridHeight <= 0 || s.GridWidth > MaxGridSide || s.GridHeight > MaxGridSide {
		return fmt.Errorf("%w: grid dimensions %dx%d out of range", ErrInvalidState, s.GridWidth, s.GridHeight)
	}
	if len(s.Grid) != s.CellCount() {
		return fmt.Errorf("%w: grid has %d cells, expected %d", ErrInvalidState, len(s.Grid), s.CellCount())
	}
	if !s.BBox.Valid() {
		return fmt.Errorf("%w: bounding box %+v is not valid", ErrInvalidState, s.BBox)
	}
	if !isFinite(s.CellMeters) || s.CellMeters <= 0 {
		return fmt.Errorf("%w: cell_meters must be positive", ErrInvalidState)
	}

	numbers := map[string]float64{
		"money":          s.Money,
		"income_per_min": s.IncomePerMin,
		"upkeep_per_min": s.UpkeepPerMin,
		"demand":         s.Demand,
		"supply":         s.Supply,
		"stored":         s.Stored,
		"storage_cap":    s.StorageCap,
	}
	for name, v := range numbers {
		if !isFinite(v) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidState, name)
		}
	}

	if !isFinite(s.Pollution) || s.Pollution < 0 || s.Pollution > 1 {
		return fmt.Errorf("%w: pollution %v outside [0,1]", ErrInvalidState, s.Pollution)
	}
	if !isFinite(s.Happiness) || s.Happiness < 0 || s.Happiness > 1 {
		return fmt.Errorf("%w: happiness %v outside [0,1]", ErrInvalidState, s.Happiness)
	}
	if !isFinite(s.TimeOfDay) || s.TimeOfDay < 0 || s.TimeOfDay >= HoursPerDay {
		return fmt.Errorf("%w: time_of_day %v outside [0,24)", ErrInvalidState, s.TimeOfDay)
	}
	if _, err := tiles.LookupDifficulty(s.Difficulty); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	for i, c := range s.Grid {
		if c.Level < 0 {
			return fmt.Errorf("%w: cell %d has negative level %d", ErrInvalidState, i, c.Level)
		}
	}

	return nil
}
