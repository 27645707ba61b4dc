// Package api provides the HTTP REST API for CityCurrent.
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create a city from a scenario ({"config_id": "toronto"})
//   - GET /api/sessions - List cities (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Get a city with its state and scenario
//   - DELETE /api/sessions/{id} - Delete a city
//
// Commands:
//   - GET /api/sessions/{id}/state - Current city state
//   - POST /api/sessions/{id}/place - {"index": 41, "tile": "Factory"} or {"lat": 43.65, "lng": -79.38, "tile": "Park"}
//   - POST /api/sessions/{id}/remove - {"index": 41} or {"lat": ..., "lng": ...}
//   - POST /api/sessions/{id}/select - {"tile": "SolarFarm"}
//   - POST /api/sessions/{id}/pause - {"paused": true}
//   - POST /api/sessions/{id}/difficulty - {"difficulty": "hard"}
//   - POST /api/sessions/{id}/overlay - Toggle the power overlay
//   - POST /api/sessions/{id}/reset - Start the city over
//   - POST /api/sessions/{id}/tick - {"count": 10}; count defaults to 1
//   - GET /api/sessions/{id}/cells/{index} - Cell detail with its map bounds
//
// Save and Restore:
//   - GET /api/sessions/{id}/export - Download the save document
//   - POST /api/sessions/{id}/import - Replace the city with an uploaded save
//
// Catalog and Scenarios:
//   - GET /api/tiles - Tile catalog and difficulty levels
//   - GET /api/configs - List scenarios
//   - GET /api/configs/{name} - Scenario definition
//   - PUT /api/configs/{name} - Save a scenario
//
// Live updates are served at /ws?session={id}.
//
// Errors are returned as JSON:
//
//	{"error": "error message"}
//
// Unknown sessions and scenarios map to 404, rejected input to 400 and
// everything else to 500.
package api
