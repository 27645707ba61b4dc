// Package config manages scenario files for the CityCurrent server.
//
// A scenario is an engine.Config stored as JSON in the configs directory:
// the map center, the area and cell size, starting money, time of day,
// difficulty, the initially selected tile and the simulation seed.
//
// The manager caches parsed scenarios and keeps a default. The default is
// toronto.json when present, otherwise the first valid scenario, otherwise
// the built-in downtown Toronto sandbox.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	scenario, err := manager.LoadConfig("vancouver")
//	infos, err := manager.ListConfigs()
package config
