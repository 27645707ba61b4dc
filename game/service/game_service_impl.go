package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/wricardo/citycurrent/game/engine"
	"github.com/wricardo/citycurrent/game/geo"
	"github.com/wricardo/citycurrent/game/save"
	"github.com/wricardo/citycurrent/game/tiles"
)

// MaxManualTicks bounds a single Tick call.
const MaxManualTicks = 10_000

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	notifier Notifier
}

// Option configures the game service
type Option func(*gameServiceImpl)

// WithNotifier forwards every engine event and overlay change to n.
func WithNotifier(n Notifier) Option {
	return func(s *gameServiceImpl) {
		s.notifier = n
	}
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier != nil {
		sessions.Subscribe(s.notifier.Notify)
	}
	return s
}

// CreateSession creates a new city from a scenario, or the default scenario
// when configName is empty.
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	var config *engine.Config
	configID := strings.TrimSuffix(configName, ".json")

	if configID != "" {
		var err error
		config, err = s.configs.LoadConfig(configID)
		if err != nil {
			if available := s.configIDs(); len(available) > 0 {
				return nil, fmt.Errorf("failed to load config '%s' (available: %s): %w",
					configID, strings.Join(available, ", "), err)
			}
			return nil, fmt.Errorf("failed to load config '%s': %w", configID, err)
		}
	} else {
		config = s.configs.GetDefault()
		configID = s.getConfigID(config.Name)
	}

	session, err := s.sessions.Create(configID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Printf("[SESSION] created %s scenario=%s grid=%dx%d", session.ID, configID, config.GridSide(), config.GridSide())
	return s.sessionInfo(session), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.sessionInfo(session), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(sessionID)
}

// PlaceTile puts kind on the cell at index
func (s *gameServiceImpl) PlaceTile(ctx context.Context, sessionID string, index int, kind tiles.Kind) (*CommandResult, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	if kind == tiles.None {
		kind = session.Engine.SelectedTile()
		if kind == tiles.None {
			return nil, fmt.Errorf("%w: no tile kind given and none selected", ErrInvalidArgument)
		}
	}

	if err := session.Engine.PlaceTile(index, kind); err != nil {
		return nil, err
	}

	log.Printf("[PLACE] session=%s index=%d tile=%s", sessionID, index, kind)
	return s.commandResult(session, fmt.Sprintf("Placed %s at cell %d", kind, index), index), nil
}

// PlaceAt maps a map click to a cell and places kind there. An empty kind
// uses the selected tile.
func (s *gameServiceImpl) PlaceAt(ctx context.Context, sessionID string, point geo.LatLng, kind tiles.Kind) (*CommandResult, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	index, err := s.locate(session, point)
	if err != nil {
		return nil, err
	}
	return s.PlaceTile(ctx, sessionID, index, kind)
}

// RemoveTile clears the cell at index
func (s *gameServiceImpl) RemoveTile(ctx context.Context, sessionID string, index int) (*CommandResult, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	if err := session.Engine.RemoveTile(index); err != nil {
		return nil, err
	}

	log.Printf("[REMOVE] session=%s index=%d", sessionID, index)
	return s.commandResult(session, fmt.Sprintf("Cleared cell %d", index), index), nil
}

// RemoveAt maps a map click to a cell and clears it
func (s *gameServiceImpl) RemoveAt(ctx context.Context, sessionID string, point geo.LatLng) (*CommandResult, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	index, err := s.locate(session, point)
	if err != nil {
		return nil, err
	}
	return s.RemoveTile(ctx, sessionID, index)
}

// SelectTile changes the tile used by clicks without an explicit kind
func (s *gameServiceImpl) SelectTile(ctx context.Context, sessionID string, kind tiles.Kind) (*CommandResult, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	if err := session.Engine.SelectTile(kind); err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Selected %s", kind)
	if kind == tiles.None {
		msg = "Selection cleared"
	}
	return s.commandResult(session, msg, -1), nil
}

// SetPaused pauses or resumes the session clock
func (s *gameServiceImpl) SetPaused(ctx context.Context, sessionID string, paused bool) (*CommandResult, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	session.Engine.SetPaused(paused)

	msg := "Simulation resumed"
	if paused {
		msg = "Simulation paused"
	}
	return s.commandResult(session, msg, -1), nil
}

// SetDifficulty changes the upkeep multiplier
func (s *gameServiceImpl) SetDifficulty(ctx context.Context, sessionID string, difficulty tiles.Difficulty) (*CommandResult, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	if err := session.Engine.SetDifficulty(difficulty); err != nil {
		return nil, err
	}
	return s.commandResult(session, fmt.Sprintf("Difficulty set to %s", difficulty), -1), nil
}

// ToggleOverlay flips the power overlay. It is view state only.
func (s *gameServiceImpl) ToggleOverlay(ctx context.Context, sessionID string) (*CommandResult, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	visible := session.ToggleOverlay()
	s.sessions.MarkDirty(session.ID)

	result := s.commandResult(session, fmt.Sprintf("Overlay visible: %t", visible), -1)
	if s.notifier != nil {
		s.notifier.Notify(session.ID, engine.Event{Type: EventOverlayToggled, Index: -1, State: result.State})
	}
	return result, nil
}

// ResetSession replaces the city with a fresh one from its scenario
func (s *gameServiceImpl) ResetSession(ctx context.Context, sessionID string) (*CommandResult, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	session.Engine.Reset()
	return s.commandResult(session, "City reset", -1), nil
}

// Tick runs count ticks immediately. A paused session runs none.
func (s *gameServiceImpl) Tick(ctx context.Context, sessionID string, count int) (*TickResult, error) {
	if count < 1 || count > MaxManualTicks {
		return nil, fmt.Errorf("%w: tick count must be between 1 and %d, got %d", ErrInvalidArgument, MaxManualTicks, count)
	}

	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	executed := 0
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			break
		}
		if !session.Engine.Tick() {
			break
		}
		executed++
	}

	state := session.Engine.Snapshot()
	log.Printf("[TICK] session=%s ticks=%d/%d money=%.2f supply=%.1f demand=%.1f",
		sessionID, executed, count, state.Money, state.Supply, state.Demand)

	return &TickResult{
		Requested: count,
		Executed:  executed,
		Paused:    state.Paused,
		Minutes:   float64(executed) * session.Engine.TickMinutes(),
		State:     state,
	}, nil
}

// TickAll advances every session whose tick interval has elapsed at now and
// returns how many ticked. It is driven by the server clock.
func (s *gameServiceImpl) TickAll(ctx context.Context, now time.Time) int {
	ticked := 0
	for _, session := range s.sessions.List() {
		if ctx.Err() != nil {
			break
		}
		if !session.dueForTick(now) {
			continue
		}
		if session.Engine.Tick() {
			ticked++
		}
	}
	return ticked
}

// GetState returns a snapshot of the session's city
func (s *gameServiceImpl) GetState(ctx context.Context, sessionID string) (*engine.State, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return session.Engine.Snapshot(), nil
}

// CellInfo describes the cell at index
func (s *gameServiceImpl) CellInfo(ctx context.Context, sessionID string, index int) (*CellInfo, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.cellInfo(session, session.Engine.Snapshot(), index)
}

// ExportSession serializes the city and its view state
func (s *gameServiceImpl) ExportSession(ctx context.Context, sessionID string) ([]byte, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return save.Encode(session.Engine.Snapshot(), session.View())
}

// ImportSession replaces the city with an exported one. On failure the
// session keeps its current state.
func (s *gameServiceImpl) ImportSession(ctx context.Context, sessionID string, data []byte) (*CommandResult, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	state, view, err := save.Decode(data)
	if err == nil {
		err = session.Engine.Restore(state)
	}
	if err != nil {
		log.Printf("[IMPORT] session=%s rejected: %v", sessionID, err)
		return nil, fmt.Errorf("failed to import city: %w", err)
	}

	session.SetOverlayVisible(view.OverlayVisible)
	s.sessions.MarkDirty(session.ID)
	return s.commandResult(session, "City imported", -1), nil
}

// ListTiles returns the tile catalog and difficulty levels
func (s *gameServiceImpl) ListTiles(ctx context.Context) (*CatalogInfo, error) {
	return &CatalogInfo{
		Tiles:        tiles.Default().List(),
		Difficulties: tiles.Difficulties(),
	}, nil
}

// ListConfigs returns available scenarios
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific scenario
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.Config, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig validates and stores a scenario
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.Config) error {
	return s.configs.SaveConfig(configName, config)
}

func (s *gameServiceImpl) session(id string) (*Session, error) {
	session, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	s.sessions.UpdateLastAccessed(id)
	return session, nil
}

func (s *gameServiceImpl) sessionInfo(session *Session) *SessionInfo {
	return &SessionInfo{
		ID:             session.ID,
		ConfigName:     session.ConfigName,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessed(),
		OverlayVisible: session.OverlayVisible(),
		State:          session.Engine.Snapshot(),
		Config:         session.Config,
	}
}

// commandResult snapshots the session after a command. index < 0 means
// the command did not target a cell.
func (s *gameServiceImpl) commandResult(session *Session, message string, index int) *CommandResult {
	state := session.Engine.Snapshot()
	result := &CommandResult{
		Success:        true,
		Message:        message,
		OverlayVisible: session.OverlayVisible(),
		State:          state,
	}
	if index >= 0 {
		if info, err := s.cellInfo(session, state, index); err == nil {
			result.Cell = info
		}
	}
	return result
}

func (s *gameServiceImpl) cellInfo(session *Session, state *engine.State, index int) (*CellInfo, error) {
	if !state.Grid.InBounds(index) {
		return nil, fmt.Errorf("%w: %d (grid has %d cells)", engine.ErrInvalidGridIndex, index, len(state.Grid))
	}

	row, col := geo.RowCol(index, state.GridWidth)
	bounds := geo.CellBoundsFor(row, col, state.BBox, state.GridWidth, state.GridHeight)
	info := &CellInfo{
		Index:  index,
		Row:    row,
		Col:    col,
		Cell:   state.Grid[index],
		Bounds: bounds,
		Center: bounds.Center(),
	}
	if def, err := session.Engine.Catalog().Lookup(info.Cell.Tile); err == nil {
		info.Definition = &def
	}
	return info, nil
}

func (s *gameServiceImpl) locate(session *Session, point geo.LatLng) (int, error) {
	state := session.Engine.Snapshot()
	index, ok := geo.GridIndexFor(point, state.BBox, state.GridWidth, state.GridHeight)
	if !ok {
		return 0, fmt.Errorf("%w: (%v, %v)", ErrOutsideGrid, point.Lat, point.Lng)
	}
	return index, nil
}

// getConfigID maps a scenario display name back to its file id
func (s *gameServiceImpl) getConfigID(configName string) string {
	if infos, err := s.configs.ListConfigs(); err == nil {
		for _, info := range infos {
			if info.Name == configName {
				return info.ConfigID
			}
		}
	}
	if configName == "" {
		return "default"
	}
	return strings.ToLower(configName)
}

func (s *gameServiceImpl) configIDs() []string {
	infos, err := s.configs.ListConfigs()
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		ids = append(ids, info.ConfigID)
	}
	return ids
}

// IsClientError reports whether err was caused by bad input rather than a
// server fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrOutsideGrid) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, engine.ErrInvalidGridIndex) ||
		errors.Is(err, engine.ErrInvalidState) ||
		errors.Is(err, tiles.ErrUnknownTileKind) ||
		errors.Is(err, tiles.ErrUnknownDifficulty) ||
		errors.Is(err, save.ErrDeserialization)
}
