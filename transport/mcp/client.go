package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/citycurrent/game/engine"
	"github.com/wricardo/citycurrent/game/service"
	"github.com/wricardo/citycurrent/game/tiles"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"CityCurrent",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`CityCurrent - MCP Interface

This is a thin client that proxies all requests to the REST API server.

OBJECTIVE:
Build a city on a real map and keep it powered. Generators supply MW,
houses and factories demand it, batteries store surplus for the night.
Keep money positive, pollution low and happiness high.

AVAILABLE TOOLS:
- create_session / get_session / list_sessions: manage cities
- city_state: current grid and economy
- place_tile / place_at: build by cell index or by lat/lng
- remove_tile: demolish a cell
- select_tile: choose the tile used when place_tile omits one
- tick: advance the simulation
- set_paused / set_difficulty / reset_city
- describe_cell: one cell with its map bounds
- list_tiles / list_configs: catalog and scenarios
- export_session: the save document
- city_instructions: rules and legend`),
	)

	c.registerTools()
}

func sessionProp() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new city from a scenario",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Scenario to start from (optional, see list_configs)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all cities",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific city",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleGetSession)

	// City operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "city_state",
		Description: "Get the current city state with a map of the grid",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleCityState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "place_tile",
		Description: "Place a tile on a grid cell, replacing anything already there",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"index": map[string]interface{}{
					"type":        "integer",
					"description": "Row-major cell index (row * grid_width + col)",
				},
				"tile": map[string]interface{}{
					"type":        "string",
					"enum":        tileKinds(),
					"description": "Tile to place (defaults to the selected tile)",
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Brief explanation of why this tile goes here",
				},
			},
			Required: []string{"session_id", "index"},
		},
	}, c.handlePlaceTile)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "place_at",
		Description: "Place a tile at a map coordinate",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"lat":        map[string]interface{}{"type": "number", "description": "Latitude"},
				"lng":        map[string]interface{}{"type": "number", "description": "Longitude"},
				"tile": map[string]interface{}{
					"type":        "string",
					"enum":        tileKinds(),
					"description": "Tile to place (defaults to the selected tile)",
				},
			},
			Required: []string{"session_id", "lat", "lng"},
		},
	}, c.handlePlaceAt)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "remove_tile",
		Description: "Clear a grid cell",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"index":      map[string]interface{}{"type": "integer", "description": "Row-major cell index"},
			},
			Required: []string{"session_id", "index"},
		},
	}, c.handleRemoveTile)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "select_tile",
		Description: "Select the tile used when place_tile is called without one",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"tile":       map[string]interface{}{"type": "string", "enum": tileKinds()},
			},
			Required: []string{"session_id", "tile"},
		},
	}, c.handleSelectTile)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "tick",
		Description: "Advance the simulation; each tick is 0.01 in-game hours",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"count": map[string]interface{}{
					"type":        "integer",
					"description": "Number of ticks (default 1)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleTick)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "set_paused",
		Description: "Pause or resume the simulation clock",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"paused":     map[string]interface{}{"type": "boolean"},
			},
			Required: []string{"session_id", "paused"},
		},
	}, c.handleSetPaused)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "set_difficulty",
		Description: "Change the difficulty level, which scales running costs",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"difficulty": map[string]interface{}{
					"type": "string",
					"enum": []string{string(tiles.Easy), string(tiles.Standard), string(tiles.Hard)},
				},
			},
			Required: []string{"session_id", "difficulty"},
		},
	}, c.handleSetDifficulty)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_city",
		Description: "Reset the city to its scenario's starting state",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Describe a grid cell: its tile, power status and map bounds",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProp(),
				"index":      map[string]interface{}{"type": "integer", "description": "Row-major cell index"},
			},
			Required: []string{"session_id", "index"},
		},
	}, c.handleDescribeCell)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "export_session",
		Description: "Export the city as a save document",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProp()},
			Required:   []string{"session_id"},
		},
	}, c.handleExport)

	// Catalog
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_tiles",
		Description: "List tile types with cost, upkeep, supply, demand and storage",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListTiles)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available scenarios",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "city_instructions",
		Description: "Rules, tile legend and strategy notes",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

func tileKinds() []string {
	defs := tiles.Default().List()
	kinds := make([]string, len(defs))
	for i, def := range defs {
		kinds[i] = string(def.ID)
	}
	return kinds
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result == nil {
		return nil
	}
	if raw, ok := result.(*json.RawMessage); ok {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		*raw = data
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

// intArg reads an integer argument. JSON numbers arrive as float64.
func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), v == float64(int(v))
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}

func floatArg(args map[string]interface{}, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func sessionPath(sessionID, suffix string) string {
	return fmt.Sprintf("/api/sessions/%s%s", sessionID, suffix)
}

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	configID, _ := args["config_id"].(string)

	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nConfig: %s\n", session.ID, session.ConfigName)
	if session.State != nil {
		result += "\n" + formatSummary(session.State)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                    `json:"count"`
		Sessions []*service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Active sessions: %d\n", response.Count))
	for _, session := range response.Sessions {
		money := 0.0
		if session.State != nil {
			money = session.State.Money
		}
		result.WriteString(fmt.Sprintf("- %s (config: %s, money: %.0f, last used: %s)\n",
			session.ID, session.ConfigName, money, session.LastAccessedAt.Format("2006-01-02 15:04:05")))
	}
	return mcp.NewToolResultText(result.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleCityState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var state engine.State
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCityState(&state)), nil
}

func (c *Client) handlePlaceTile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	tile, _ := args["tile"].(string)

	index, ok := intArg(args, "index")
	if !ok {
		return mcp.NewToolResultError("index must be an integer"), nil
	}

	body := map[string]interface{}{"index": index, "tile": tile}
	var result service.CommandResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/place"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCommandResult(&result)), nil
}

func (c *Client) handlePlaceAt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	tile, _ := args["tile"].(string)

	lat, okLat := floatArg(args, "lat")
	lng, okLng := floatArg(args, "lng")
	if !okLat || !okLng {
		return mcp.NewToolResultError("lat and lng must be numbers"), nil
	}

	body := map[string]interface{}{"lat": lat, "lng": lng, "tile": tile}
	var result service.CommandResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/place"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCommandResult(&result)), nil
}

func (c *Client) handleRemoveTile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)

	index, ok := intArg(args, "index")
	if !ok {
		return mcp.NewToolResultError("index must be an integer"), nil
	}

	var result service.CommandResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/remove"), map[string]int{"index": index}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCommandResult(&result)), nil
}

func (c *Client) handleSelectTile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	tile, _ := args["tile"].(string)

	var result service.CommandResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/select"), map[string]string{"tile": tile}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCommandResult(&result)), nil
}

func (c *Client) handleTick(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)

	count := 1
	if _, present := args["count"]; present {
		n, ok := intArg(args, "count")
		if !ok {
			return mcp.NewToolResultError("count must be an integer"), nil
		}
		count = n
	}

	var result service.TickResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/tick"), map[string]int{"count": count}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatTickResult(&result)), nil
}

func (c *Client) handleSetPaused(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)

	paused, ok := args["paused"].(bool)
	if !ok {
		return mcp.NewToolResultError("paused must be a boolean"), nil
	}

	var result service.CommandResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/pause"), map[string]bool{"paused": paused}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCommandResult(&result)), nil
}

func (c *Client) handleSetDifficulty(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	difficulty, _ := args["difficulty"].(string)

	var result service.CommandResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/difficulty"), map[string]string{"difficulty": difficulty}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCommandResult(&result)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var result service.CommandResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/reset"), nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCommandResult(&result)), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)

	index, ok := intArg(args, "index")
	if !ok {
		return mcp.NewToolResultError("index must be an integer"), nil
	}

	var info service.CellInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, fmt.Sprintf("/cells/%d", index)), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCellInfo(&info)), nil
}

func (c *Client) handleExport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var doc json.RawMessage
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/export"), nil, &doc); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(string(doc)), nil
}

func (c *Client) handleListTiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var catalog service.CatalogInfo
	if err := c.apiCall(ctx, "GET", "/api/tiles", nil, &catalog); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCatalog(&catalog)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []*service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result strings.Builder
	result.WriteString("Available scenarios:\n")
	for _, cfg := range configs {
		result.WriteString(fmt.Sprintf("- %s: %s (%dx%d grid, %.0fm cells, %s)\n",
			cfg.ConfigID, cfg.Name, cfg.GridSide, cfg.GridSide, cfg.CellMeters, cfg.Difficulty))
		if cfg.Description != "" {
			result.WriteString(fmt.Sprintf("  %s\n", cfg.Description))
		}
	}
	return mcp.NewToolResultText(result.String()), nil
}

func (c *Client) handleInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var legend strings.Builder
	for _, def := range tiles.Default().List() {
		legend.WriteString(fmt.Sprintf("  %c  %s\n", tileChar(def.ID, true), def.Name))
	}

	instructions := `CityCurrent - Instructions

OBJECTIVE:
Grow a city around a real map location without letting the lights go out.

GRID:
The city is a square grid of cells over the scenario's area. Cell 0 is the
north-west corner; indexes run west to east, then north to south.
index = row * grid_width + col.

LEGEND (city_state map):
` + legend.String() + `  .  empty
  lowercase letter: consumer that is not powered

POWER:
- Generators (coal, wind, solar) add supply; houses and factories add demand.
- When supply covers demand every consumer is powered.
- Surplus charges batteries; a deficit drains them. Solar produces nothing at night.

ECONOMY:
- Placing a tile costs money; every tile has upkeep charged per in-game minute.
- Revenue comes from delivered MW. Difficulty scales running costs.

POLLUTION AND HAPPINESS:
- Coal pollutes. Parks clean the air.
- Happiness follows reliability and clean air.

CLOCK:
Each tick advances 0.01 in-game hours. Paused cities do not tick.`

	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nConfig: %s\nCreated: %s\nOverlay: %t\n\n%s",
		session.ID, session.ConfigName,
		session.CreatedAt.Format("2006-01-02 15:04:05"),
		session.OverlayVisible,
		formatCityState(session.State))
}

func formatSummary(state *engine.State) string {
	status := "running"
	if state.Paused {
		status = "paused"
	}

	return fmt.Sprintf(
		"Money: %.0f | Income: %.1f/min | Upkeep: %.1f/min\n"+
			"Supply: %.1f MW | Demand: %.1f MW | Stored: %.1f/%.1f MWh\n"+
			"Pollution: %.2f | Happiness: %.2f | Time: %s | %s | %s\n",
		state.Money, state.IncomePerMin, state.UpkeepPerMin,
		state.Supply, state.Demand, state.Stored, state.StorageCap,
		state.Pollution, state.Happiness, formatTimeOfDay(state.TimeOfDay),
		state.Difficulty, status)
}

func formatCityState(state *engine.State) string {
	if state == nil {
		return "No city state available"
	}

	var result strings.Builder
	result.WriteString(formatSummary(state))

	if state.Supply < state.Demand {
		result.WriteString("WARNING: demand exceeds supply\n")
	}

	result.WriteString(fmt.Sprintf("\nGrid %dx%d (selected: %s)\n", state.GridWidth, state.GridHeight, state.SelectedTile))
	for row := 0; row < state.GridHeight; row++ {
		for col := 0; col < state.GridWidth; col++ {
			i := engine.CellIndex(row, col, state.GridWidth)
			if !state.Grid.InBounds(i) {
				continue
			}
			cell := state.Grid[i]
			result.WriteRune(tileChar(cell.Tile, cell.Powered))
		}
		result.WriteString("\n")
	}

	return result.String()
}

func formatTimeOfDay(hours float64) string {
	h := int(hours)
	m := int((hours - float64(h)) * 60)
	return fmt.Sprintf("%02d:%02d", h, m)
}

// tileChar maps a tile to its legend character. Consumers that are not
// powered are shown in lowercase.
func tileChar(kind tiles.Kind, powered bool) rune {
	var ch rune
	switch kind {
	case tiles.PowerLine:
		ch = 'L'
	case tiles.Substation:
		ch = 'S'
	case tiles.House:
		ch = 'H'
	case tiles.Factory:
		ch = 'F'
	case tiles.Park:
		ch = 'P'
	case tiles.CoalPlant:
		ch = 'C'
	case tiles.WindTurbine:
		ch = 'W'
	case tiles.SolarFarm:
		ch = 'O'
	case tiles.Battery:
		ch = 'B'
	default:
		return '.'
	}

	if !powered && (kind == tiles.House || kind == tiles.Factory) {
		ch += 'a' - 'A'
	}
	return ch
}

func formatCommandResult(result *service.CommandResult) string {
	var out strings.Builder
	if result.Success {
		out.WriteString("✓ ")
	} else {
		out.WriteString("✗ ")
	}
	out.WriteString(result.Message)
	out.WriteString("\n")

	if result.Cell != nil {
		out.WriteString(formatCellInfo(result.Cell))
	}
	if result.State != nil {
		out.WriteString("\n")
		out.WriteString(formatSummary(result.State))
	}
	return out.String()
}

func formatTickResult(result *service.TickResult) string {
	var out strings.Builder
	out.WriteString(fmt.Sprintf("Ticks: %d/%d executed (%.1f in-game minutes)\n", result.Executed, result.Requested, result.Minutes))
	if result.Paused {
		out.WriteString("Stopped: city is paused\n")
	}
	if result.State != nil {
		out.WriteString("\n")
		out.WriteString(formatSummary(result.State))
	}
	return out.String()
}

func formatCellInfo(info *service.CellInfo) string {
	var out strings.Builder
	out.WriteString(fmt.Sprintf("Cell %d (row %d, col %d)\n", info.Index, info.Row, info.Col))

	if info.Cell.Empty() {
		out.WriteString("Tile: empty\n")
	} else {
		out.WriteString(fmt.Sprintf("Tile: %s (level %d, powered: %t)\n", info.Cell.Tile, info.Cell.Level, info.Cell.Powered))
	}
	if def := info.Definition; def != nil {
		out.WriteString(fmt.Sprintf("Cost: %.0f | Upkeep: %.1f/min | Supply: %.1f MW | Demand: %.1f MW | Storage: %.1f MWh\n",
			def.Cost, def.Upkeep, def.Supply, def.Demand, def.Storage))
	}
	out.WriteString(fmt.Sprintf("Center: %.6f, %.6f\n", info.Center.Lat, info.Center.Lng))
	out.WriteString(fmt.Sprintf("Bounds: N %.6f S %.6f E %.6f W %.6f\n",
		info.Bounds.North, info.Bounds.South, info.Bounds.East, info.Bounds.West))
	return out.String()
}

func formatCatalog(catalog *service.CatalogInfo) string {
	var out strings.Builder
	out.WriteString("Tiles:\n")
	for _, def := range catalog.Tiles {
		out.WriteString(fmt.Sprintf("- %s: cost %.0f, upkeep %.1f/min", def.ID, def.Cost, def.Upkeep))
		if def.Supply > 0 {
			out.WriteString(fmt.Sprintf(", supply %.1f MW", def.Supply))
		}
		if def.Demand > 0 {
			out.WriteString(fmt.Sprintf(", demand %.1f MW", def.Demand))
		}
		if def.Storage > 0 {
			out.WriteString(fmt.Sprintf(", storage %.1f MWh", def.Storage))
		}
		out.WriteString("\n")
	}

	out.WriteString("\nDifficulties:\n")
	for _, d := range catalog.Difficulties {
		out.WriteString(fmt.Sprintf("- %s: %s (cost x%.2f)\n", d.ID, d.Label, d.Modifier))
	}
	return out.String()
}
