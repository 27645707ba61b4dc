package engine

import (
	"math"

	"github.com/wricardo/citycurrent/game/tiles"
)

// Aggregates are the per-tick totals derived from the grid alone.
type Aggregates struct {
	Supply       float64 `json:"supply"`
	Demand       float64 `json:"demand"`
	StorageCap   float64 `json:"storage_cap"`
	Stored       float64 `json:"stored"`
	IncomePerMin float64 `json:"income_per_min"`
	UpkeepPerMin float64 `json:"upkeep_per_min"`
	// DirtySupply is the emissions-weighted part of Supply.
	DirtySupply float64 `json:"dirty_supply"`
}

// ComputeAggregates sums the contributions of every occupied cell. Cells
// whose kind is not in the catalog count as empty. The result depends only
// on the arguments.
func ComputeAggregates(grid Grid, catalog *tiles.Catalog, balance tiles.Balance, difficulty float64) Aggregates {
	var agg Aggregates
	upkeep := 0.0

	for _, cell := range grid {
		if cell.Empty() {
			continue
		}
		def, err := catalog.Lookup(cell.Tile)
		if err != nil {
			continue
		}
		agg.Supply += def.Supply
		agg.Demand += def.Demand
		agg.StorageCap += def.Storage
		agg.DirtySupply += def.Supply * def.Emissions
		upkeep += def.Upkeep * balance.UpkeepModifier(def.ID)
	}

	agg.Stored = math.Min(agg.StorageCap, math.Max(0, agg.Supply-agg.Demand))
	agg.UpkeepPerMin = (balance.BaseUpkeepPerMin + upkeep) * difficulty
	agg.IncomePerMin = balance.BaseIncomePerMin + balance.RevenuePerMW*math.Min(agg.Supply, agg.Demand)

	return agg
}

// PollutionTarget is the emissions-weighted share of supply.
func (a Aggregates) PollutionTarget() float64 {
	if a.Supply <= 0 {
		return 0
	}
	return clamp01(a.DirtySupply / a.Supply)
}

// Reliability is the fraction of demand that supply covers.
func (a Aggregates) Reliability() float64 {
	if a.Demand <= 0 {
		return 1
	}
	return clamp01(a.Supply / a.Demand)
}

// HappinessTarget blends reliability with clean air at the given pollution.
func HappinessTarget(reliability, pollution float64) float64 {
	return clamp01(ReliabilityWeight*reliability + (1-ReliabilityWeight)*(1-pollution))
}

// Smooth moves current toward target by SmoothingFactor and clamps to [0,1].
func Smooth(current, target float64) float64 {
	return clamp01(current + SmoothingFactor*(target-current))
}

// applyTick advances s by one tick. It never fails.
func applyTick(s *State, catalog *tiles.Catalog, balance tiles.Balance, tickMinutes float64) {
	s.TimeOfDay = math.Mod(s.TimeOfDay+TimeStep, HoursPerDay)

	difficulty := 1.0
	if d, err := tiles.LookupDifficulty(s.Difficulty); err == nil {
		difficulty = d.Modifier
	}

	agg := ComputeAggregates(s.Grid, catalog, balance, difficulty)
	s.Supply = agg.Supply
	s.Demand = agg.Demand
	s.StorageCap = agg.StorageCap
	s.Stored = agg.Stored
	s.IncomePerMin = agg.IncomePerMin
	s.UpkeepPerMin = agg.UpkeepPerMin

	s.Money += (agg.IncomePerMin - agg.UpkeepPerMin) * tickMinutes

	s.Pollution = Smooth(s.Pollution, agg.PollutionTarget())
	s.Happiness = Smooth(s.Happiness, HappinessTarget(agg.Reliability(), s.Pollution))

	powered := agg.Supply >= agg.Demand
	for i := range s.Grid {
		cell := &s.Grid[i]
		cell.Powered = powered && !cell.Empty() && catalog.Has(cell.Tile)
	}

	s.Ticks++
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
