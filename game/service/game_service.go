package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wricardo/citycurrent/game/engine"
	"github.com/wricardo/citycurrent/game/geo"
	"github.com/wricardo/citycurrent/game/save"
	"github.com/wricardo/citycurrent/game/tiles"
)

var (
	ErrOutsideGrid     = errors.New("point is outside the city bounds")
	ErrInvalidArgument = errors.New("invalid argument")
)

// EventOverlayToggled is pushed to notifiers when a session's overlay
// visibility changes. It is view state and never reaches the engine.
const EventOverlayToggled engine.EventType = "overlay_toggled"

// GameService defines all city operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Commands
	PlaceTile(ctx context.Context, sessionID string, index int, kind tiles.Kind) (*CommandResult, error)
	PlaceAt(ctx context.Context, sessionID string, point geo.LatLng, kind tiles.Kind) (*CommandResult, error)
	RemoveTile(ctx context.Context, sessionID string, index int) (*CommandResult, error)
	RemoveAt(ctx context.Context, sessionID string, point geo.LatLng) (*CommandResult, error)
	SelectTile(ctx context.Context, sessionID string, kind tiles.Kind) (*CommandResult, error)
	SetPaused(ctx context.Context, sessionID string, paused bool) (*CommandResult, error)
	SetDifficulty(ctx context.Context, sessionID string, difficulty tiles.Difficulty) (*CommandResult, error)
	ToggleOverlay(ctx context.Context, sessionID string) (*CommandResult, error)
	ResetSession(ctx context.Context, sessionID string) (*CommandResult, error)

	// Simulation clock
	Tick(ctx context.Context, sessionID string, count int) (*TickResult, error)
	TickAll(ctx context.Context, now time.Time) int

	// State
	GetState(ctx context.Context, sessionID string) (*engine.State, error)
	CellInfo(ctx context.Context, sessionID string, index int) (*CellInfo, error)
	ExportSession(ctx context.Context, sessionID string) ([]byte, error)
	ImportSession(ctx context.Context, sessionID string, data []byte) (*CommandResult, error)

	// Catalog and scenarios
	ListTiles(ctx context.Context) (*CatalogInfo, error)
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.Config, error)
	SaveConfig(ctx context.Context, configName string, config *engine.Config) error
}

// SessionListener receives engine events for any session.
type SessionListener func(sessionID string, ev engine.Event)

// SessionManager defines session storage operations
type SessionManager interface {
	Create(configName string, config *engine.Config) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
	MarkDirty(id string)
	Subscribe(fn SessionListener) func()
}

// ConfigManager handles scenario loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.Config, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.Config
	SaveConfig(name string, config *engine.Config) error
}

// Notifier receives every engine event for push delivery. Implementations
// must not block.
type Notifier interface {
	Notify(sessionID string, ev engine.Event)
}

// Session is an active city: one engine plus the view state around it.
type Session struct {
	ID         string
	ConfigName string
	Engine     *engine.Engine
	Config     *engine.Config
	CreatedAt  time.Time

	mu             sync.Mutex
	lastAccessedAt time.Time
	overlayVisible bool
	nextTick       time.Time
}

// NewSession wraps an engine in a session with the default view.
func NewSession(id, configName string, eng *engine.Engine, config *engine.Config) *Session {
	now := time.Now()
	return &Session{
		ID:             id,
		ConfigName:     configName,
		Engine:         eng,
		Config:         config,
		CreatedAt:      now,
		lastAccessedAt: now,
		overlayVisible: save.DefaultView().OverlayVisible,
	}
}

// LastAccessed returns when the session was last used.
func (s *Session) LastAccessed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccessedAt
}

// Touch records an access at t.
func (s *Session) Touch(t time.Time) {
	s.mu.Lock()
	s.lastAccessedAt = t
	s.mu.Unlock()
}

// OverlayVisible reports whether the power overlay is shown.
func (s *Session) OverlayVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlayVisible
}

// SetOverlayVisible sets overlay visibility.
func (s *Session) SetOverlayVisible(visible bool) {
	s.mu.Lock()
	s.overlayVisible = visible
	s.mu.Unlock()
}

// ToggleOverlay flips overlay visibility and returns the new value.
func (s *Session) ToggleOverlay() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlayVisible = !s.overlayVisible
	return s.overlayVisible
}

// View returns the persisted view state.
func (s *Session) View() save.View {
	return save.View{OverlayVisible: s.OverlayVisible()}
}

// dueForTick reports whether the session's tick interval has elapsed at now
// and, if so, schedules the next one.
func (s *Session) dueForTick(now time.Time) bool {
	interval := s.Config.TickInterval()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nextTick.IsZero() {
		s.nextTick = now.Add(interval)
		return true
	}
	if now.Before(s.nextTick) {
		return false
	}
	s.nextTick = s.nextTick.Add(interval)
	if s.nextTick.Before(now) {
		// fell behind; do not replay missed ticks
		s.nextTick = now.Add(interval)
	}
	return true
}
