// Package save encodes and decodes the exported form of a city.
//
// The export is a versioned JSON document holding the full engine state
// plus presentation view state (overlay visibility). Decoding validates the
// state so a corrupted payload is rejected before it reaches an engine.
package save

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wricardo/citycurrent/game/engine"
)

// FormatVersion is written into every export.
const FormatVersion = 1

var ErrDeserialization = errors.New("failed to deserialize saved city")

// View is presentation state carried alongside the engine state.
type View struct {
	OverlayVisible bool `json:"overlay_visible"`
}

// DefaultView returns the view of a fresh session.
func DefaultView() View {
	return View{OverlayVisible: true}
}

// Document is the on-disk shape of an export.
type Document struct {
	Version        int           `json:"version"`
	SavedAt        time.Time     `json:"saved_at"`
	OverlayVisible bool          `json:"overlay_visible"`
	State          *engine.State `json:"state"`
}

// Encode serializes state and view.
func Encode(state *engine.State, view View) ([]byte, error) {
	if state == nil {
		return nil, fmt.Errorf("state cannot be nil")
	}

	doc := Document{
		Version:        FormatVersion,
		SavedAt:        time.Now().UTC(),
		OverlayVisible: view.OverlayVisible,
		State:          state,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal city: %w", err)
	}
	return data, nil
}

// Decode parses and validates an export. Every failure wraps
// ErrDeserialization.
func Decode(data []byte) (*engine.State, View, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, View{}, fmt.Errorf("%w: %v", ErrDeserialization, err)
	}

	if doc.Version != FormatVersion {
		return nil, View{}, fmt.Errorf("%w: unsupported format version %d", ErrDeserialization, doc.Version)
	}
	if doc.State == nil {
		return nil, View{}, fmt.Errorf("%w: missing state", ErrDeserialization)
	}
	if err := engine.ValidateState(doc.State); err != nil {
		return nil, View{}, fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	if doc.State.UndoStack == nil {
		doc.State.UndoStack = []engine.HistoryEntry{}
	}
	if doc.State.RedoStack == nil {
		doc.State.RedoStack = []engine.HistoryEntry{}
	}

	return doc.State, View{OverlayVisible: doc.OverlayVisible}, nil
}

// Peek reads the document header without validating the state. It is used
// by tools that report on damaged saves.
func Peek(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	return &doc, nil
}
