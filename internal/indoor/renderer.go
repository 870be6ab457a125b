package indoor

import (
	"context"
	"encoding/json"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/indoor-levels/internal/core/model"
)

// Renderer is the map rendering engine the manager drives. Implementations
// must be safe for concurrent use; the manager never calls them re-entrantly.
type Renderer interface {
	AddSource(id string, data *geojson.FeatureCollection) error
	RemoveSource(id string) error
	// WaitSourceMetadata blocks until the source's metadata is ready, i.e.
	// until feature queries against it work. Tile/content readiness is a
	// separate, later notification and is not awaited.
	WaitSourceMetadata(ctx context.Context, id string) error

	AddLayer(layer model.Layer, beforeID string) error
	RemoveLayer(id string) error
	HasLayer(id string) bool

	// Filter returns the layer filter in wire form; nil when the layer has none.
	Filter(layerID string) (json.RawMessage, error)
	SetFilter(layerID string, f json.RawMessage) error

	LayoutProperty(layerID, name string) (any, error)
	SetLayoutProperty(layerID, name string, value any) error

	QuerySourceFeatures(sourceID string, f json.RawMessage) ([]*geojson.Feature, error)
	Camera() model.Camera
}

// StyleLoader provides layer descriptors for maps registered without layers.
type StyleLoader interface {
	Layers(ctx context.Context) ([]model.Layer, error)
}
