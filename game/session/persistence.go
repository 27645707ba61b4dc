package session

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/wricardo/citycurrent/game/engine"
	"github.com/wricardo/citycurrent/game/save"
	"github.com/wricardo/citycurrent/game/service"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *service.Session) error

	// Load retrieves a session from storage by ID
	Load(id string) (*service.Session, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData is the stored form of a session. City holds the
// save.Encode document.
type PersistedSessionData struct {
	ID             string          `json:"id"`
	ConfigName     string          `json:"config_name"`
	CreatedAt      time.Time       `json:"created_at"`
	LastAccessedAt time.Time       `json:"last_accessed_at"`
	City           json.RawMessage `json:"city"`
}

func newPersistedSessionData(session *service.Session) (*PersistedSessionData, error) {
	if session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}

	city, err := save.Encode(session.Engine.Snapshot(), session.View())
	if err != nil {
		return nil, err
	}

	return &PersistedSessionData{
		ID:             session.ID,
		ConfigName:     session.ConfigName,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessed(),
		City:           city,
	}, nil
}

// restore rebuilds a live session. A scenario that no longer exists falls
// back to the default one; the saved city keeps its own geometry.
func (d *PersistedSessionData) restore(configs service.ConfigManager) (*service.Session, error) {
	state, view, err := save.Decode(d.City)
	if err != nil {
		return nil, err
	}

	config, err := configs.LoadConfig(d.ConfigName)
	if err != nil {
		log.Printf("Warning: scenario %q for session %s unavailable, using default: %v", d.ConfigName, d.ID, err)
		config = configs.GetDefault()
	}

	eng, err := engine.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	if err := eng.Restore(state); err != nil {
		return nil, fmt.Errorf("failed to restore city: %w", err)
	}

	session := service.NewSession(d.ID, d.ConfigName, eng, config)
	session.CreatedAt = d.CreatedAt
	session.Touch(d.LastAccessedAt)
	session.SetOverlayVisible(view.OverlayVisible)
	return session, nil
}
