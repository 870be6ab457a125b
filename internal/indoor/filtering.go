package indoor

import (
	"encoding/json"
	"fmt"

	"github.com/mohammed-shakir/indoor-levels/internal/core/model"
	"github.com/mohammed-shakir/indoor-levels/internal/core/observability"
	"github.com/mohammed-shakir/indoor-levels/internal/events"
	"github.com/mohammed-shakir/indoor-levels/internal/filter"
)

var matchAll = json.RawMessage(`["all"]`)

// savedFilter is a layer's filter as it was before the level predicate was
// layered on. raw is what gets restored; original is what gets composed.
type savedFilter struct {
	layerID  string
	raw      json.RawMessage
	original filter.Expr
	external bool
}

func (m *Manager) savedLocked(layerID string) *savedFilter {
	for _, sf := range m.saved {
		if sf.layerID == layerID {
			return sf
		}
	}
	return nil
}

// captureLocked records the layer's current filter once. Later captures of
// the same layer keep the first value.
func (m *Manager) captureLocked(layerID string, external bool) error {
	if sf := m.savedLocked(layerID); sf != nil {
		sf.external = sf.external || external
		return nil
	}
	raw, err := m.r.Filter(layerID)
	if err != nil {
		return fmt.Errorf("read filter of %q: %w", layerID, err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		raw = matchAll
	}
	original, err := filter.Parse(raw)
	if err != nil {
		return fmt.Errorf("capture filter of %q: %w", layerID, err)
	}
	m.saved = append(m.saved, &savedFilter{
		layerID:  layerID,
		raw:      append(json.RawMessage(nil), raw...),
		original: original,
		external: external,
	})
	return nil
}

// applyFiltersLocked sets every tracked layer's filter for the current
// level, always starting from the captured original.
func (m *Manager) applyFiltersLocked() {
	for _, sf := range m.saved {
		m.applyLocked(sf)
	}
}

func (m *Manager) applyLocked(sf *savedFilter) {
	if m.level == nil {
		m.restoreLocked(sf)
		return
	}
	wire, err := filter.Marshal(filter.Compose(sf.original, m.level))
	if err != nil {
		m.logger.Warn("compose level filter failed", "layer", sf.layerID, "err", err)
		return
	}
	if err := m.r.SetFilter(sf.layerID, wire); err != nil {
		m.logger.Warn("set level filter failed", "layer", sf.layerID, "err", err)
	}
}

func (m *Manager) restoreLocked(sf *savedFilter) {
	if err := m.r.SetFilter(sf.layerID, sf.raw); err != nil {
		m.logger.Warn("restore filter failed", "layer", sf.layerID, "err", err)
	}
}

func (m *Manager) restoreFiltersLocked() {
	for _, sf := range m.saved {
		m.restoreLocked(sf)
	}
}

// dropMapFiltersLocked forgets the filters captured for the outgoing map.
// External layers stay tracked as long as they exist.
func (m *Manager) dropMapFiltersLocked() {
	kept := m.saved[:0]
	for _, sf := range m.saved {
		if sf.external && m.r.HasLayer(sf.layerID) {
			kept = append(kept, sf)
		}
	}
	clear(m.saved[len(kept):])
	m.saved = kept
}

// SetLevel switches the displayed floor. A nil level shows every floor.
// Levels outside the active range are accepted as given.
func (m *Manager) SetLevel(level *model.Level) {
	m.mu.Lock()
	if m.closed || model.SameLevel(level, m.level) {
		m.mu.Unlock()
		return
	}
	m.level = copyLevel(level)
	m.applyFiltersLocked()
	m.bus.Post(events.LevelChanged{Level: copyLevel(level)})
	observability.IncLevelChange()
	m.logger.Debug("indoor level changed", "level", levelAttr(level), "layers", len(m.saved))
	m.mu.Unlock()
	m.bus.Drain()
}

// AddLayerForFiltering tracks a layer the manager does not own so it gets
// the level predicate too. It stays tracked across map swaps.
func (m *Manager) AddLayerForFiltering(layerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if !m.r.HasLayer(layerID) {
		return fmt.Errorf("add layer %q for filtering: %w", layerID, ErrUnknownLayer)
	}
	if err := m.captureLocked(layerID, true); err != nil {
		return err
	}
	m.applyLocked(m.savedLocked(layerID))
	return nil
}

// RemoveLayerFromFiltering restores an external layer's original filter and
// stops tracking it.
func (m *Manager) RemoveLayerFromFiltering(layerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, sf := range m.saved {
		if sf.layerID != layerID || !sf.external {
			continue
		}
		if m.slot != nil && m.slot.owns(layerID) {
			// the active map still needs it filtered
			sf.external = false
			return nil
		}
		if m.r.HasLayer(layerID) {
			m.restoreLocked(sf)
		}
		m.saved = append(m.saved[:i], m.saved[i+1:]...)
		return nil
	}
	return fmt.Errorf("remove layer %q from filtering: %w", layerID, ErrUnknownLayer)
}

// TrackedLayers lists the layers that currently receive the level predicate.
func (m *Manager) TrackedLayers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.saved))
	for _, sf := range m.saved {
		out = append(out, sf.layerID)
	}
	return out
}

func (s *slot) owns(layerID string) bool {
	for _, id := range s.layers {
		if id == layerID {
			return true
		}
	}
	return false
}

func levelAttr(l *model.Level) any {
	if l == nil {
		return nil
	}
	return float64(*l)
}
