// Package tiles holds the static reference data of the simulation: the tile
// catalog, the economy balance and the difficulty modifiers.
package tiles

import (
	"errors"
	"fmt"
)

var ErrUnknownTileKind = errors.New("unknown tile kind")

// Kind identifies a tile type. The empty Kind means "no tile".
type Kind string

const (
	None        Kind = ""
	PowerLine   Kind = "PowerLine"
	Substation  Kind = "Substation"
	House       Kind = "House"
	Factory     Kind = "Factory"
	Park        Kind = "Park"
	CoalPlant   Kind = "CoalPlant"
	WindTurbine Kind = "WindTurbine"
	SolarFarm   Kind = "SolarFarm"
	Battery     Kind = "Battery"
)

// Definition describes what a tile costs and contributes. Upkeep is charged
// per simulated minute; Supply and Demand are in MW; Storage is in MWh.
// Emissions is the pollution intensity of the tile's supply, 0 (clean) to 1.
type Definition struct {
	ID        Kind    `json:"id"`
	Name      string  `json:"name"`
	Cost      float64 `json:"cost"`
	Upkeep    float64 `json:"upkeep"`
	Supply    float64 `json:"supply"`
	Demand    float64 `json:"demand"`
	Storage   float64 `json:"storage"`
	Emissions float64 `json:"emissions"`
}

// Produces reports whether the tile adds supply.
func (d Definition) Produces() bool {
	return d.Supply > 0
}

// Catalog is an immutable lookup from Kind to Definition.
type Catalog struct {
	order []Kind
	defs  map[Kind]Definition
}

// NewCatalog builds a catalog preserving the order of defs. Duplicate or
// empty ids are rejected.
func NewCatalog(defs ...Definition) (*Catalog, error) {
	c := &Catalog{
		order: make([]Kind, 0, len(defs)),
		defs:  make(map[Kind]Definition, len(defs)),
	}
	for _, d := range defs {
		if d.ID == None {
			return nil, fmt.Errorf("tile definition %q: id is required", d.Name)
		}
		if _, exists := c.defs[d.ID]; exists {
			return nil, fmt.Errorf("tile definition %q: duplicate id", d.ID)
		}
		c.order = append(c.order, d.ID)
		c.defs[d.ID] = d
	}
	return c, nil
}

// Lookup returns the definition for kind or ErrUnknownTileKind.
func (c *Catalog) Lookup(kind Kind) (Definition, error) {
	d, ok := c.defs[kind]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownTileKind, kind)
	}
	return d, nil
}

// Has reports whether kind is registered.
func (c *Catalog) Has(kind Kind) bool {
	_, ok := c.defs[kind]
	return ok
}

// List returns all definitions in catalog order.
func (c *Catalog) List() []Definition {
	out := make([]Definition, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.defs[k])
	}
	return out
}

var defaultCatalog = mustCatalog(
	Definition{ID: PowerLine, Name: "Power Line", Cost: 50, Upkeep: 1},
	Definition{ID: Substation, Name: "Substation", Cost: 500, Upkeep: 5},
	Definition{ID: House, Name: "House", Cost: 200, Demand: 5},
	Definition{ID: Factory, Name: "Factory", Cost: 1500, Upkeep: 20, Demand: 25},
	Definition{ID: Park, Name: "Park", Cost: 300, Upkeep: 2},
	Definition{ID: CoalPlant, Name: "Coal Plant", Cost: 3000, Upkeep: 40, Supply: 80, Emissions: 1},
	Definition{ID: WindTurbine, Name: "Wind Turbine", Cost: 1200, Upkeep: 5, Supply: 15},
	Definition{ID: SolarFarm, Name: "Solar Farm", Cost: 1800, Upkeep: 7, Supply: 20},
	Definition{ID: Battery, Name: "Battery", Cost: 1000, Upkeep: 3, Storage: 50},
)

// Default returns the built-in catalog.
func Default() *Catalog {
	return defaultCatalog
}

// Lookup resolves kind against the built-in catalog.
func Lookup(kind Kind) (Definition, error) {
	return defaultCatalog.Lookup(kind)
}

func mustCatalog(defs ...Definition) *Catalog {
	c, err := NewCatalog(defs...)
	if err != nil {
		panic(err)
	}
	return c
}
