package save

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/wricardo/citycurrent/game/engine"
	"github.com/wricardo/citycurrent/game/tiles"
)

func buildCity(t *testing.T) *engine.Engine {
	t.Helper()
	e := engine.NewWithDefaults()
	e.PlaceTile(0, tiles.CoalPlant)
	e.PlaceTile(41, tiles.Factory)
	e.PlaceTile(82, tiles.Battery)
	e.PlaceTile(123, tiles.SolarFarm)
	e.SelectTile(tiles.WindTurbine)
	for i := 0; i < 37; i++ {
		e.Tick()
	}
	return e
}

func TestEncodeDecode_RoundTripTicksIdentically(t *testing.T) {
	original := buildCity(t)

	data, err := Encode(original.Snapshot(), View{OverlayVisible: false})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	state, view, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if view.OverlayVisible {
		t.Error("Expected overlay visibility to round-trip as false")
	}

	restored := engine.NewWithDefaults()
	if err := restored.Restore(state); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	for i := 0; i < 25; i++ {
		original.Tick()
		restored.Tick()
	}

	a, b := original.Snapshot(), restored.Snapshot()
	if a.Supply != b.Supply || a.Demand != b.Demand || a.Stored != b.Stored || a.StorageCap != b.StorageCap {
		t.Errorf("Expected identical supply/demand/storage, got %v/%v/%v and %v/%v/%v",
			a.Supply, a.Demand, a.Stored, b.Supply, b.Demand, b.Stored)
	}
	if a.Money != b.Money || a.Pollution != b.Pollution || a.Happiness != b.Happiness || a.TimeOfDay != b.TimeOfDay {
		t.Errorf("Expected bit-identical money/pollution/happiness/time, got %v/%v/%v/%v and %v/%v/%v/%v",
			a.Money, a.Pollution, a.Happiness, a.TimeOfDay, b.Money, b.Pollution, b.Happiness, b.TimeOfDay)
	}
	if b.SelectedTile != tiles.WindTurbine || b.Seed != a.Seed || b.BBox != a.BBox || b.CellMeters != a.CellMeters {
		t.Error("Expected selection, seed, bbox and cell size to survive")
	}
}

func TestEncode_ContainsRequiredFields(t *testing.T) {
	data, err := Encode(buildCity(t).Snapshot(), DefaultView())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Export is not JSON: %v", err)
	}
	for _, key := range []string{"version", "overlay_visible", "state"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("Expected key %q in export", key)
		}
	}

	var state map[string]json.RawMessage
	json.Unmarshal(raw["state"], &state)
	for _, key := range []string{"bbox", "cell_meters", "grid", "money", "seed", "selected_tile"} {
		if _, ok := state[key]; !ok {
			t.Errorf("Expected key %q in exported state", key)
		}
	}
}

func TestEncode_NilState(t *testing.T) {
	if _, err := Encode(nil, DefaultView()); err == nil {
		t.Error("Expected error for nil state")
	}
}

func TestDecode_Failures(t *testing.T) {
	good, _ := Encode(engine.NewWithDefaults().Snapshot(), DefaultView())

	tests := []struct {
		name string
		data string
	}{
		{"not json", "{{{"},
		{"empty", ""},
		{"wrong version", strings.Replace(string(good), `"version": 1`, `"version": 9`, 1)},
		{"missing state", `{"version": 1}`},
		{"short grid", `{"version": 1, "state": {"grid_width": 2, "grid_height": 2, "grid": [],
			"bbox": {"north": 2, "south": 1, "east": 2, "west": 1}, "cell_meters": 50, "difficulty": "standard"}}`},
		{"bad bbox", strings.Replace(string(good), `"north": `, `"north": -`, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode([]byte(tt.data))
			if !errors.Is(err, ErrDeserialization) {
				t.Errorf("Expected ErrDeserialization, got %v", err)
			}
		})
	}
}

func TestDecode_ToleratesUnknownTiles(t *testing.T) {
	s := engine.NewWithDefaults().Snapshot()
	s.Grid[5].Tile = "HydroDam"
	data, _ := Encode(s, DefaultView())

	state, _, err := Decode(data)
	if err != nil {
		t.Fatalf("Expected foreign tile kinds to decode, got %v", err)
	}
	if state.Grid[5].Tile != "HydroDam" {
		t.Errorf("Expected unknown kind preserved, got %q", state.Grid[5].Tile)
	}
}

func TestPeek(t *testing.T) {
	data, _ := Encode(engine.NewWithDefaults().Snapshot(), DefaultView())
	doc, err := Peek(data)
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if doc.Version != FormatVersion || !doc.OverlayVisible || doc.SavedAt.IsZero() {
		t.Errorf("Unexpected document header %+v", doc)
	}
}
