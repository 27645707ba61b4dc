// Package websocket pushes live city updates to browser clients.
//
// Clients connect to /ws?session=<id>. The Hub implements service.Notifier:
// every engine event of a watched session becomes a JSON message
//
//	{"type": "state_update", "session_id": "...", "event": "tile_placed",
//	 "index": 41, "tile": "Factory", "state": {...}}
//
// Notify never blocks the engine. Events go through a buffered queue that
// drops (and logs) when full, and a client that cannot keep up is
// disconnected. Incoming frames are ignored apart from pongs.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//	svc := service.NewGameService(sessions, configs, service.WithNotifier(hub))
package websocket
