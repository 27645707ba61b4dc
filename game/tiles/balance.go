package tiles

import (
	"errors"
	"fmt"
)

var ErrUnknownDifficulty = errors.New("unknown difficulty")

// Balance tunes the economy. All rates are per simulated minute.
type Balance struct {
	BaseIncomePerMin float64 `json:"base_income_per_min"`
	BaseUpkeepPerMin float64 `json:"base_upkeep_per_min"`
	// RevenuePerMW is earned for every MW of demand that is actually served.
	RevenuePerMW float64 `json:"revenue_per_mw"`
	// UpkeepModifiers scales the upkeep of individual kinds; missing kinds use 1.
	UpkeepModifiers map[Kind]float64 `json:"upkeep_modifiers,omitempty"`
}

// UpkeepModifier returns the multiplier applied to kind's upkeep.
func (b Balance) UpkeepModifier(kind Kind) float64 {
	if m, ok := b.UpkeepModifiers[kind]; ok {
		return m
	}
	return 1
}

// DefaultBalance returns the standard economy.
func DefaultBalance() Balance {
	return Balance{
		BaseIncomePerMin: 0,
		BaseUpkeepPerMin: 0,
		RevenuePerMW:     2,
	}
}

// Difficulty identifies a difficulty level.
type Difficulty string

const (
	Easy     Difficulty = "easy"
	Standard Difficulty = "standard"
	Hard     Difficulty = "hard"
)

// DifficultySettings scales running costs.
type DifficultySettings struct {
	ID       Difficulty `json:"id"`
	Label    string     `json:"label"`
	Modifier float64    `json:"modifier"`
}

var difficulties = []DifficultySettings{
	{ID: Easy, Label: "Easy", Modifier: 0.75},
	{ID: Standard, Label: "Standard", Modifier: 1},
	{ID: Hard, Label: "Hard", Modifier: 1.25},
}

// Difficulties lists the available levels from easiest to hardest.
func Difficulties() []DifficultySettings {
	out := make([]DifficultySettings, len(difficulties))
	copy(out, difficulties)
	return out
}

// LookupDifficulty returns the settings for id or ErrUnknownDifficulty.
func LookupDifficulty(id Difficulty) (DifficultySettings, error) {
	for _, d := range difficulties {
		if d.ID == id {
			return d, nil
		}
	}
	return DifficultySettings{}, fmt.Errorf("%w: %q", ErrUnknownDifficulty, id)
}
