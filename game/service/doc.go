// Package service provides the business logic layer for the CityCurrent
// grid server.
//
// GameService is the single entry point used by the REST API, the MCP
// tools and the server clock. It resolves sessions, maps map clicks to
// grid cells, runs engine commands and wraps results in CommandResult
// snapshots.
//
// Core Interfaces:
//
// SessionManager stores sessions and fans out their engine events.
// ConfigManager loads scenario files. Notifier is an optional push sink
// (the WebSocket hub) that receives every engine event.
//
// Usage:
//
//	sessions := session.NewManager()
//	configs, _ := config.NewManager("configs")
//	svc := service.NewGameService(sessions, configs, service.WithNotifier(hub))
//
//	info, _ := svc.CreateSession(ctx, "toronto")
//	svc.PlaceAt(ctx, info.ID, geo.LatLng{Lat: 43.6532, Lng: -79.3832}, tiles.CoalPlant)
//
// Affordability is not enforced; money may go negative.
package service
