package indoor

import (
	"github.com/mohammed-shakir/indoor-levels/internal/core/observability"
	"github.com/mohammed-shakir/indoor-levels/internal/events"
	"github.com/mohammed-shakir/indoor-levels/internal/levels"
)

var hasLevel = []byte(`["has","level"]`)

// refresh is the throttled rescan. It re-runs the selection and, with a map
// active, widens the level range by whatever the loaded source reports.
func (m *Manager) refresh() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	observability.IncRescan()
	m.reselectLocked()
	if m.state == Active && m.slot != nil {
		m.rescanRangeLocked(m.slot)
	}
	m.mu.Unlock()
	m.bus.Drain()
}

func (m *Manager) rescanRangeLocked(s *slot) {
	features, err := m.r.QuerySourceFeatures(SourceID, hasLevel)
	if err != nil {
		m.logger.Debug("query indoor source failed", "map_id", s.m.ID, "err", err)
		return
	}
	rng := s.m.LevelsRange
	if found := levels.RangeOf(features); found != nil {
		rng.Min = min(rng.Min, found.Min)
		rng.Max = max(rng.Max, found.Max)
	}
	if rng == s.rng {
		return
	}
	s.rng = rng
	m.bus.Post(events.LevelRangeChanged{Range: &rng})
	m.logger.Debug("indoor level range changed", "map_id", s.m.ID, "levels", rng.String())

	if m.level != nil && !rng.Contains(*m.level) {
		m.level = rng.Clamp().Ptr()
		m.applyFiltersLocked()
		m.bus.Post(events.LevelChanged{Level: copyLevel(m.level)})
		observability.IncLevelChange()
	}
}
