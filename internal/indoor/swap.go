package indoor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mohammed-shakir/indoor-levels/internal/core/model"
	"github.com/mohammed-shakir/indoor-levels/internal/core/observability"
	"github.com/mohammed-shakir/indoor-levels/internal/events"
)

const visibility = "visibility"

// slot is the single active-dataset resource. It is claimed when a swap
// starts, so a superseding swap tears down whatever a load has attached.
type slot struct {
	m       *model.IndoorMap
	gen     uint64
	cancel  context.CancelFunc
	started time.Time

	sourceAdded bool
	layers      []string
	hidden      []hiddenLayer
	rng         model.LevelRange
}

type hiddenLayer struct {
	id   string
	prev any
}

// swapLocked replaces the slot's occupant with next (nil clears it). Loading
// continues in the background; every mutating step of that load re-checks
// the generation, so a superseded load never touches the renderer again.
func (m *Manager) swapLocked(next *model.IndoorMap) {
	m.gen++
	gen := m.gen
	if m.slot != nil {
		m.teardownLocked()
	}

	if next == nil {
		m.state = Idle
		m.bus.Post(events.LevelRangeChanged{Range: nil})
		if m.level != nil {
			m.level = nil
			m.applyFiltersLocked()
			m.bus.Post(events.LevelChanged{Level: nil})
		}
		observability.ObserveSwap("cleared", 0)
		m.logger.Info("indoor map deselected")
		return
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.slot = &slot{m: next, gen: gen, cancel: cancel, started: time.Now()}
	m.state = Loading
	m.logger.Info("indoor map swap started", "map_id", next.ID, "cell", next.Cell, "gen", gen)

	m.loads.Add(1)
	go m.load(ctx, gen, next)
}

// teardownLocked restores every saved filter verbatim, removes the
// occupant's layers and source, and remembers it as the previous selection.
func (m *Manager) teardownLocked() {
	s := m.slot
	s.cancel()

	m.restoreFiltersLocked()

	for i := len(s.layers) - 1; i >= 0; i-- {
		if err := m.r.RemoveLayer(s.layers[i]); err != nil {
			m.logger.Warn("remove indoor layer failed", "layer", s.layers[i], "err", err)
		}
	}
	for _, h := range s.hidden {
		prev := h.prev
		if prev == nil {
			prev = "visible"
		}
		if err := m.r.SetLayoutProperty(h.id, visibility, prev); err != nil {
			m.logger.Warn("restore layer visibility failed", "layer", h.id, "err", err)
		}
	}
	if s.sourceAdded {
		if err := m.r.RemoveSource(SourceID); err != nil {
			m.logger.Warn("remove indoor source failed", "err", err)
		}
	}

	m.dropMapFiltersLocked()

	switch m.state {
	case Active:
		m.previous = &selection{m: s.m, level: copyLevel(m.level)}
	case Loading:
		observability.ObserveSwap("superseded", 0)
		m.logger.Info("indoor map swap superseded", "map_id", s.m.ID, "gen", s.gen)
	}
	m.slot = nil
	m.state = Idle
}

func (m *Manager) load(ctx context.Context, gen uint64, im *model.IndoorMap) {
	defer m.loads.Done()

	err := m.loadSteps(ctx, gen, im)
	if err == nil || errors.Is(err, errSuperseded) {
		return
	}
	m.fail(gen, im, err)
}

func (m *Manager) loadSteps(ctx context.Context, gen uint64, im *model.IndoorMap) error {
	err := m.step(gen, func(s *slot) error {
		if err := m.r.AddSource(SourceID, im.GeoJSON); err != nil {
			return fmt.Errorf("add source: %w", err)
		}
		s.sourceAdded = true
		return nil
	})
	if err != nil {
		return err
	}

	// only metadata readiness guarantees feature queries will work
	if err := m.r.WaitSourceMetadata(ctx, SourceID); err != nil {
		if m.superseded(gen) {
			return errSuperseded
		}
		return fmt.Errorf("wait source metadata: %w", err)
	}

	layers := im.Layers
	if len(layers) == 0 {
		if m.styles == nil {
			return ErrNoLayers
		}
		layers, err = m.styles.Layers(ctx)
		if err != nil {
			if m.superseded(gen) {
				return errSuperseded
			}
			return fmt.Errorf("load style layers: %w", err)
		}
	}

	return m.step(gen, func(s *slot) error {
		for _, l := range layers {
			l = l.Clone()
			l.Source = SourceID
			if err := m.r.AddLayer(l, im.BeforeLayerID); err != nil {
				return fmt.Errorf("add layer %q: %w", l.ID, err)
			}
			s.layers = append(s.layers, l.ID)
			if err := m.captureLocked(l.ID, false); err != nil {
				return err
			}
		}
		for _, id := range im.LayersToHide {
			if !m.r.HasLayer(id) {
				continue
			}
			prev, _ := m.r.LayoutProperty(id, visibility)
			if err := m.r.SetLayoutProperty(id, visibility, "none"); err != nil {
				return fmt.Errorf("hide layer %q: %w", id, err)
			}
			s.hidden = append(s.hidden, hiddenLayer{id: id, prev: prev})
		}
		m.activateLocked(s)
		return nil
	})
}

// step runs fn under the lock if gen still owns the slot.
func (m *Manager) step(gen uint64, fn func(s *slot) error) error {
	m.mu.Lock()
	if m.gen != gen || m.slot == nil || m.slot.gen != gen {
		m.mu.Unlock()
		return errSuperseded
	}
	err := fn(m.slot)
	m.mu.Unlock()
	m.bus.Drain()
	return err
}

func (m *Manager) superseded(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen != gen
}

func (m *Manager) activateLocked(s *slot) {
	rng := s.m.LevelsRange
	s.rng = rng
	m.state = Active
	m.bus.Post(events.LevelRangeChanged{Range: &rng})

	lvl := m.defaultLevelLocked(s.m, rng)
	changed := !model.SameLevel(lvl, m.level)
	m.level = lvl
	m.applyFiltersLocked()
	if changed {
		m.bus.Post(events.LevelChanged{Level: copyLevel(lvl)})
	}
	m.bus.Post(events.Loaded{SourceID: SourceID, MapID: s.m.ID})

	elapsed := time.Since(s.started)
	observability.ObserveSwap("loaded", elapsed.Seconds())
	m.logger.Info("indoor map loaded",
		"map_id", s.m.ID, "levels", rng.String(), "layers", len(s.layers), "elapsed", elapsed)
}

// defaultLevelLocked returns to the remembered floor when re-entering the
// same building, otherwise keeps an in-range level or clamps towards 0.
func (m *Manager) defaultLevelLocked(im *model.IndoorMap, rng model.LevelRange) *model.Level {
	if p := m.previous; p != nil && p.m == im && p.level != nil && rng.Contains(*p.level) {
		return copyLevel(p.level)
	}
	if m.level == nil || !rng.Contains(*m.level) {
		return rng.Clamp().Ptr()
	}
	return copyLevel(m.level)
}

// fail rolls back a load that errored, unless it was superseded meanwhile.
func (m *Manager) fail(gen uint64, im *model.IndoorMap, err error) {
	m.mu.Lock()
	if m.gen != gen || m.slot == nil || m.slot.gen != gen {
		m.mu.Unlock()
		return
	}
	// not a supersede: keep the teardown from counting it as one
	m.state = Idle
	m.teardownLocked()

	dl := &DataLoadError{MapID: im.ID, Err: err}
	m.bus.Post(events.Error{Err: dl, MapID: im.ID})
	observability.ObserveSwap("failed", 0)
	m.logger.Error("indoor map load failed", "map_id", im.ID, "err", err)
	m.mu.Unlock()
	m.bus.Drain()
}
