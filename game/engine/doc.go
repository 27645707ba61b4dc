// Package engine provides the grid simulation of the CityCurrent sandbox.
//
// The engine owns a fixed-size grid laid over a geographic bounding box and
// the city-wide aggregates derived from it:
//   - Tile placement and removal on row-major cells
//   - Periodic ticks that advance the time of day and recompute supply,
//     demand, storage, income and upkeep from the grid
//   - Smoothed pollution and happiness signals
//   - Snapshot, restore and change notification for hosting layers
//
// Core Types:
//
// Engine is the concurrency-safe owner of a State. State is the complete,
// JSON-serializable city state; Config describes how a fresh State is laid
// out (center, area, cell size, starting money) and is loaded from scenario
// JSON files.
//
// Usage:
//
//	eng, err := engine.New(engine.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := eng.PlaceTile(0, tiles.CoalPlant); err != nil {
//		log.Printf("place failed: %v", err)
//	}
//	eng.Tick()
//	state := eng.Snapshot()
//
// Recompute Rules:
//
// Supply, demand and storage capacity are plain sums over occupied cells.
// Cells holding a kind the catalog does not know are treated as empty.
// Stored energy is the surplus (supply minus demand) capped by storage
// capacity. Money moves by (income - upkeep) scaled to the tick interval in
// minutes. Pollution and happiness approach their targets by exponential
// smoothing so a single placement never makes them jump.
package engine
