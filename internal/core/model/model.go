// Package model defines core domain types shared across the service.
package model

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Level is a floor indicator; fractional values are mezzanines.
type Level float64

// Ptr returns a pointer to a copy of l.
func (l Level) Ptr() *Level { return &l }

// LevelRange is the inclusive band of levels a building spans.
type LevelRange struct {
	Min Level `json:"min"`
	Max Level `json:"max"`
}

func (r LevelRange) Contains(l Level) bool {
	return l >= r.Min && l <= r.Max
}

// Clamp returns the default level for the range: 0 when inside, otherwise the nearest bound.
func (r LevelRange) Clamp() Level {
	return max(min(0, r.Max), r.Min)
}

func (r LevelRange) String() string {
	return fmt.Sprintf("[%g,%g]", float64(r.Min), float64(r.Max))
}

// SameLevel compares nullable levels.
func SameLevel(a, b *Level) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// SameRange compares nullable ranges.
func SameRange(a, b *LevelRange) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Camera is the current map view.
type Camera struct {
	Zoom   float64
	Bounds orb.Bound
}

func (c Camera) Center() orb.Point { return c.Bounds.Center() }

// Layer is a Mapbox GL style layer descriptor (the subset used here).
type Layer struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Source      string          `json:"source,omitempty"`
	SourceLayer string          `json:"source-layer,omitempty"`
	Filter      json.RawMessage `json:"filter,omitempty"`
	Layout      map[string]any  `json:"layout,omitempty"`
	Paint       map[string]any  `json:"paint,omitempty"`
	MinZoom     float64         `json:"minzoom,omitempty"`
	MaxZoom     float64         `json:"maxzoom,omitempty"`
}

// Clone deep-copies the mutable parts of a layer.
func (l Layer) Clone() Layer {
	out := l
	if l.Filter != nil {
		out.Filter = append(json.RawMessage(nil), l.Filter...)
	}
	out.Layout = cloneMap(l.Layout)
	out.Paint = cloneMap(l.Paint)
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// IndoorMap is one registered building dataset. Read-only once registered;
// identity is the GeoJSON pointer.
type IndoorMap struct {
	ID            string
	Bounds        orb.Bound
	GeoJSON       *geojson.FeatureCollection
	Layers        []Layer
	LevelsRange   LevelRange
	BeforeLayerID string
	LayersToHide  []string
	// H3 cell of the bounds centre
	Cell string
}
