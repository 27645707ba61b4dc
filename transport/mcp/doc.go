// Package mcp exposes CityCurrent to AI agents over the Model Context Protocol.
//
// The Client is a thin proxy: every tool call is translated into a REST
// request against a running server and the JSON response is rendered as
// text. City state is shown as a character map of the grid, one row per
// line, with a legend available from the city_instructions tool.
//
// Tools:
//   - create_session, get_session, list_sessions
//   - city_state, describe_cell, export_session
//   - place_tile, place_at, remove_tile, select_tile
//   - tick, set_paused, set_difficulty, reset_city
//   - list_tiles, list_configs, city_instructions
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
