// Package indoor owns the registry of indoor maps and the single active
// dataset slot, and keeps per-layer level filters consistent as the camera,
// the registry, or the selected level change.
package indoor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/indoor-levels/internal/core/model"
	"github.com/mohammed-shakir/indoor-levels/internal/core/observability"
	"github.com/mohammed-shakir/indoor-levels/internal/events"
	"github.com/mohammed-shakir/indoor-levels/internal/levels"
	"github.com/mohammed-shakir/indoor-levels/internal/locator"
	"github.com/mohammed-shakir/indoor-levels/internal/selector"
	"github.com/mohammed-shakir/indoor-levels/internal/throttle"
)

// SourceID names the single source slot occupied by the active indoor map.
const SourceID = "indoor"

type State int

const (
	Idle State = iota
	Loading
	Active
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MapOptions configure a map at registration.
type MapOptions struct {
	// ID defaults to a generated "map-N".
	ID string
	// Layers default to the configured StyleLoader's layers.
	Layers []model.Layer
	// BeforeLayerID anchors the map's layers below an existing layer.
	BeforeLayerID string
	// LayersToHide are base-map layers hidden while the map is active.
	LayersToHide []string
}

type Manager struct {
	r       Renderer
	logger  *slog.Logger
	sel     selector.Selector
	styles  StyleLoader
	bus     *events.Bus
	rescan  *throttle.Throttle
	cellRes int

	ctx    context.Context
	cancel context.CancelFunc
	loads  sync.WaitGroup

	mu       sync.Mutex
	registry []*model.IndoorMap
	nextID   int
	state    State
	gen      uint64
	slot     *slot
	level    *model.Level
	previous *selection
	saved    []*savedFilter
	closed   bool
}

type selection struct {
	m     *model.IndoorMap
	level *model.Level
}

func New(r Renderer, opts ...Option) *Manager {
	s := defaults()
	for _, o := range opts {
		o(&s)
	}
	if s.bus == nil {
		s.bus = events.NewBus()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		r:       r,
		logger:  s.logger,
		sel:     selector.New(s.minZoom),
		styles:  s.styles,
		bus:     s.bus,
		cellRes: s.cellRes,
		ctx:     ctx,
		cancel:  cancel,
	}
	m.rescan = throttle.New(s.rescanInterval, s.clock, m.refresh)
	return m
}

// Subscribe registers h for every outward event.
func (m *Manager) Subscribe(h events.Handler) (unsubscribe func()) {
	return m.bus.Subscribe(h)
}

// AddMap registers a building dataset and re-evaluates the selection. The
// returned map is read-only.
func (m *Manager) AddMap(ctx context.Context, fc *geojson.FeatureCollection, opts MapOptions) (*model.IndoorMap, error) {
	if fc == nil {
		return nil, errors.New("add map: nil feature collection")
	}
	rng, bound, err := levels.ExtractLevelsRangeAndBounds(fc)
	if err != nil {
		return nil, fmt.Errorf("add map: %w", err)
	}

	var cell string
	if m.cellRes >= 0 {
		if c, err := locator.CellFor(bound, m.cellRes); err == nil {
			cell = c
		} else {
			m.logger.DebugContext(ctx, "no locator cell for indoor map", "err", err)
		}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	for _, existing := range m.registry {
		if existing.GeoJSON == fc || (opts.ID != "" && existing.ID == opts.ID) {
			m.mu.Unlock()
			return nil, fmt.Errorf("add map %q: %w", existing.ID, ErrDuplicateMap)
		}
	}
	id := opts.ID
	if id == "" {
		m.nextID++
		id = fmt.Sprintf("map-%d", m.nextID)
	}
	im := &model.IndoorMap{
		ID:            id,
		Bounds:        bound,
		GeoJSON:       fc,
		LevelsRange:   rng,
		BeforeLayerID: opts.BeforeLayerID,
		LayersToHide:  append([]string(nil), opts.LayersToHide...),
		Cell:          cell,
	}
	for _, l := range opts.Layers {
		im.Layers = append(im.Layers, l.Clone())
	}
	m.registry = append(m.registry, im)
	observability.SetRegistrySize(len(m.registry))
	m.bus.Post(events.MapAdded{MapID: id})
	m.logger.InfoContext(ctx, "indoor map registered",
		"map_id", id, "cell", cell, "levels", rng.String(), "layers", len(im.Layers))

	m.reselectLocked()
	m.mu.Unlock()
	m.bus.Drain()
	return im, nil
}

// RemoveMap unregisters the map whose dataset is fc (matched by identity).
func (m *Manager) RemoveMap(ctx context.Context, fc *geojson.FeatureCollection) error {
	m.mu.Lock()
	idx := -1
	for i, existing := range m.registry {
		if existing.GeoJSON == fc {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return ErrUnknownMap
	}
	removed := m.registry[idx]
	m.registry = append(m.registry[:idx:idx], m.registry[idx+1:]...)
	observability.SetRegistrySize(len(m.registry))
	m.bus.Post(events.MapRemoved{MapID: removed.ID})
	m.logger.InfoContext(ctx, "indoor map removed", "map_id", removed.ID)

	if !m.closed {
		m.reselectLocked()
	}
	// teardown during reselect may have just recorded it
	if m.previous != nil && m.previous.m == removed {
		m.previous = nil
	}
	m.mu.Unlock()
	m.bus.Drain()
	return nil
}

// RemoveMapByID is RemoveMap for callers that only know the map ID.
func (m *Manager) RemoveMapByID(ctx context.Context, id string) error {
	im := m.Lookup(id)
	if im == nil {
		return ErrUnknownMap
	}
	return m.RemoveMap(ctx, im.GeoJSON)
}

func (m *Manager) Lookup(id string) *model.IndoorMap {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, im := range m.registry {
		if im.ID == id {
			return im
		}
	}
	return nil
}

// Maps returns the registry in registration order.
func (m *Manager) Maps() []*model.IndoorMap {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.IndoorMap(nil), m.registry...)
}

// SelectedMap is the map occupying the slot once loaded; nil otherwise.
func (m *Manager) SelectedMap() *model.IndoorMap {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Active || m.slot == nil {
		return nil
	}
	return m.slot.m
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LevelRange is the active map's range; nil when no map is active.
func (m *Manager) LevelRange() *model.LevelRange {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Active || m.slot == nil {
		return nil
	}
	r := m.slot.rng
	return &r
}

// Level is the current level; nil when none is selected.
func (m *Manager) Level() *model.Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyLevel(m.level)
}

// NotifyCameraChanged schedules a throttled rescan after a pan or zoom.
func (m *Manager) NotifyCameraChanged() { m.rescan.Trigger() }

// NotifySourceData schedules a throttled rescan after new source data.
func (m *Manager) NotifySourceData() { m.rescan.Trigger() }

// Wait blocks until no swap is in flight.
func (m *Manager) Wait() { m.loads.Wait() }

// Close releases the active slot and stops background work.
func (m *Manager) Close() {
	m.rescan.Stop()
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.gen++
	if m.slot != nil {
		m.teardownLocked()
	}
	m.cancel()
	m.mu.Unlock()
	m.bus.Drain()
	m.loads.Wait()
}

// reselectLocked re-runs the closest-map rule and swaps when the chosen
// identity differs from the map currently occupying the slot.
func (m *Manager) reselectLocked() {
	next := m.sel.Select(m.r.Camera(), m.registry)
	var current *model.IndoorMap
	if m.slot != nil {
		current = m.slot.m
	}
	if next == current {
		observability.ObserveSelection("same")
		return
	}
	if next == nil {
		observability.ObserveSelection("none")
	} else {
		observability.ObserveSelection("changed")
	}
	m.swapLocked(next)
}

func copyLevel(l *model.Level) *model.Level {
	if l == nil {
		return nil
	}
	v := *l
	return &v
}
