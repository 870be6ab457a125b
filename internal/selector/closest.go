// Package selector decides which registered indoor map, if any, belongs to
// the current camera view.
package selector

import (
	"github.com/paulmach/orb/planar"

	"github.com/mohammed-shakir/indoor-levels/internal/core/model"
)

// DefaultMinZoom is the zoom below which no indoor map is shown.
const DefaultMinZoom = 17.0

type Selector struct {
	MinZoom float64
}

func New(minZoom float64) Selector {
	return Selector{MinZoom: minZoom}
}

// Select returns the map closest to the camera among those whose bounds
// overlap the view. Equal distances resolve to the earliest registered map.
func (s Selector) Select(cam model.Camera, registry []*model.IndoorMap) *model.IndoorMap {
	if cam.Zoom < s.MinZoom {
		return nil
	}

	center := cam.Center()
	var (
		best     *model.IndoorMap
		bestDist float64
	)
	for _, m := range registry {
		if m == nil || !Overlaps(m, cam) {
			continue
		}
		// flat lon/lat distance is enough to rank buildings in one view
		d := planar.Distance(m.Bounds.Center(), center)
		if best == nil || d < bestDist {
			best, bestDist = m, d
		}
	}
	return best
}

// Overlaps rejects a map only when it lies entirely west/east or
// north/south of the view; touching edges overlap.
func Overlaps(m *model.IndoorMap, cam model.Camera) bool {
	return m.Bounds.Intersects(cam.Bounds)
}
