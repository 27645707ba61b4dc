package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/wricardo/citycurrent/game/tiles"
)

var ErrInvalidGridIndex = errors.New("invalid grid index")

// Engine owns one city State. Every operation holds the engine lock for its
// own duration only; listeners run after the lock is released, in the order
// the mutations happened.
type Engine struct {
	mu      sync.Mutex
	state   *State
	config  *Config
	catalog *tiles.Catalog
	balance tiles.Balance
	seq     uint64 // next event ticket, guarded by mu

	listenersMu  sync.Mutex
	listeners    []subscription
	nextListener int

	emitMu   sync.Mutex
	emitTurn *sync.Cond
	emitted  uint64
}

// pendingEvent is an event waiting for its turn to be delivered. ev is nil
// when nobody was listening at mutation time.
type pendingEvent struct {
	seq uint64
	ev  *Event
}

type subscription struct {
	id int
	fn Listener
}

// New creates an engine with a fresh state laid out by config
func New(config *Config) (*Engine, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	e := &Engine{
		state:   NewState(config),
		config:  config,
		catalog: tiles.Default(),
		balance: config.EffectiveBalance(),
	}
	e.emitTurn = sync.NewCond(&e.emitMu)
	return e, nil
}

// NewWithDefaults creates an engine for DefaultConfig.
func NewWithDefaults() *Engine {
	e, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return e
}

// Config returns the configuration the engine was created with.
func (e *Engine) Config() *Config {
	return e.config
}

// Catalog returns the tile catalog used for placement and recompute.
func (e *Engine) Catalog() *tiles.Catalog {
	return e.catalog
}

// TickMinutes returns the simulated minutes covered by one tick.
func (e *Engine) TickMinutes() float64 {
	return e.config.TickMinutes()
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() *State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Cell returns the cell at index.
func (e *Engine) Cell(index int) (Cell, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.Grid.InBounds(index) {
		return Cell{}, e.indexError(index)
	}
	return e.state.Grid[index], nil
}

// PlaceTile puts kind on the cell at index, replacing whatever was there.
// Affordability is not checked here.
func (e *Engine) PlaceTile(index int, kind tiles.Kind) error {
	if _, err := e.catalog.Lookup(kind); err != nil {
		return err
	}

	e.mu.Lock()
	if !e.state.Grid.InBounds(index) {
		err := e.indexError(index)
		e.mu.Unlock()
		return err
	}
	e.state.Grid[index].Tile = kind
	ev := e.event(EventTilePlaced, index, kind)
	e.mu.Unlock()

	e.emit(ev)
	return nil
}

// RemoveTile clears the cell at index. Removing from an empty cell is a no-op.
func (e *Engine) RemoveTile(index int) error {
	e.mu.Lock()
	if !e.state.Grid.InBounds(index) {
		err := e.indexError(index)
		e.mu.Unlock()
		return err
	}
	prev := e.state.Grid[index].Tile
	e.state.Grid[index].Tile = tiles.None
	e.state.Grid[index].Powered = false
	ev := e.event(EventTileRemoved, index, prev)
	e.mu.Unlock()

	e.emit(ev)
	return nil
}

// SelectTile sets the kind used for the next placement click. tiles.None
// clears the selection.
func (e *Engine) SelectTile(kind tiles.Kind) error {
	if kind != tiles.None {
		if _, err := e.catalog.Lookup(kind); err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.state.SelectedTile = kind
	ev := e.event(EventTileSelected, -1, kind)
	e.mu.Unlock()

	e.emit(ev)
	return nil
}

// SelectedTile returns the current selection.
func (e *Engine) SelectedTile() tiles.Kind {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.SelectedTile
}

// Tick advances the simulation by one step and reports whether it ran.
// While paused it does nothing.
func (e *Engine) Tick() bool {
	e.mu.Lock()
	if e.state.Paused {
		e.mu.Unlock()
		return false
	}
	applyTick(e.state, e.catalog, e.balance, e.config.TickMinutes())
	ev := e.event(EventTick, -1, tiles.None)
	e.mu.Unlock()

	e.emit(ev)
	return true
}

// SetPaused freezes or resumes ticking. Placement stays allowed while paused.
func (e *Engine) SetPaused(paused bool) {
	e.mu.Lock()
	e.state.Paused = paused
	evType := EventResumed
	if paused {
		evType = EventPaused
	}
	ev := e.event(evType, -1, tiles.None)
	e.mu.Unlock()

	e.emit(ev)
}

// IsPaused reports whether ticks are frozen.
func (e *Engine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Paused
}

// SetDifficulty changes the upkeep modifier applied from the next tick on.
func (e *Engine) SetDifficulty(id tiles.Difficulty) error {
	if _, err := tiles.LookupDifficulty(id); err != nil {
		return err
	}

	e.mu.Lock()
	e.state.Difficulty = id
	ev := e.event(EventDifficultyChange, -1, tiles.None)
	e.mu.Unlock()

	e.emit(ev)
	return nil
}

// Restore replaces the whole state with a copy of s. If s is not valid the
// current state is kept and the validation error is returned. A selected
// tile the catalog does not know is cleared.
func (e *Engine) Restore(s *State) error {
	if err := ValidateState(s); err != nil {
		return err
	}

	restored := s.Clone()
	if restored.SelectedTile != tiles.None && !e.catalog.Has(restored.SelectedTile) {
		restored.SelectedTile = tiles.None
	}
	if restored.UndoStack == nil {
		restored.UndoStack = []HistoryEntry{}
	}
	if restored.RedoStack == nil {
		restored.RedoStack = []HistoryEntry{}
	}

	e.mu.Lock()
	e.state = restored
	ev := e.event(EventRestored, -1, tiles.None)
	e.mu.Unlock()

	e.emit(ev)
	return nil
}

// Reset discards the current state and starts over from the configuration.
func (e *Engine) Reset() *State {
	e.mu.Lock()
	e.state = NewState(e.config)
	snapshot := e.state.Clone()
	ev := e.event(EventReset, -1, tiles.None)
	e.mu.Unlock()

	e.emit(ev)
	return snapshot
}

// Subscribe registers fn for events and returns a function that removes it.
// Listeners are called in registration order. A listener may read from the
// engine but must not call a mutating method, since that event waits for the
// current one to finish.
func (e *Engine) Subscribe(fn Listener) func() {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()

	id := e.nextListener
	e.nextListener++
	e.listeners = append(e.listeners, subscription{id: id, fn: fn})

	return func() {
		e.listenersMu.Lock()
		defer e.listenersMu.Unlock()
		for i, s := range e.listeners {
			if s.id == id {
				e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

// event builds the notification for the operation that just ran and takes
// its delivery ticket. It must be called with e.mu held; the state copy is
// skipped when nobody listens.
func (e *Engine) event(t EventType, index int, kind tiles.Kind) pendingEvent {
	p := pendingEvent{seq: e.seq}
	e.seq++

	e.listenersMu.Lock()
	n := len(e.listeners)
	e.listenersMu.Unlock()
	if n == 0 {
		return p
	}
	p.ev = &Event{Type: t, Index: index, Kind: kind, State: e.state.Clone()}
	return p
}

// emit waits until every earlier event has been delivered, then calls the
// listeners. Events without listeners still take their turn.
func (e *Engine) emit(p pendingEvent) {
	e.emitMu.Lock()
	for e.emitted != p.seq {
		e.emitTurn.Wait()
	}
	e.emitMu.Unlock()

	defer func() {
		e.emitMu.Lock()
		e.emitted++
		e.emitTurn.Broadcast()
		e.emitMu.Unlock()
	}()

	if p.ev == nil {
		return
	}

	e.listenersMu.Lock()
	subs := make([]subscription, len(e.listeners))
	copy(subs, e.listeners)
	e.listenersMu.Unlock()

	for _, s := range subs {
		s.fn(*p.ev)
	}
}

func (e *Engine) indexError(index int) error {
	return fmt.Errorf("%w: %d (grid has %d cells)", ErrInvalidGridIndex, index, len(e.state.Grid))
}
