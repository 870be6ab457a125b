// Package style provides the layer descriptors used for indoor maps that are
// registered without their own layers: an embedded default style and a
// loader for remote styles.
package style

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/mohammed-shakir/indoor-levels/internal/core/model"
)

// POIMetaLayerID is the template layer expanded into one layer per POI icon.
const POIMetaLayerID = "poi-indoor"

//go:embed default_style.json
var defaultStyle []byte

type poiIcon struct {
	filter string
	maki   string
}

// OSM tag to maki icon. Order matters: the generic shop icon comes last.
var poiIcons = []poiIcon{
	{`["==","amenity","fast_food"]`, "fast-food"},
	{`["==","amenity","restaurant"]`, "restaurant"},
	{`["==","amenity","cafe"]`, "cafe"},
	{`["==","amenity","bank"]`, "bank"},
	{`["==","amenity","toilets"]`, "toilet"},
	{`["==","shop","travel_agency"]`, "suitcase"},
	{`["==","shop","convenience"]`, "grocery"},
	{`["==","shop","bakery"]`, "bakery"},
	{`["==","shop","chemist"]`, "pharmacy"},
	{`["==","shop","clothes"]`, "clothing-store"},
	{`["==","highway","steps"]`, "entrance"},
	{`["has","shop"]`, "shop"},
}

// DefaultLayers returns the embedded indoor style with POI layers expanded.
func DefaultLayers() ([]model.Layer, error) {
	layers, err := Parse(defaultStyle)
	if err != nil {
		return nil, fmt.Errorf("default style: %w", err)
	}
	return layers, nil
}

// Parse decodes a layers array or a full style document and expands the POI
// meta layer.
func Parse(data []byte) ([]model.Layer, error) {
	data = bytes.TrimSpace(data)
	var layers []model.Layer
	if len(data) > 0 && data[0] == '{' {
		var doc struct {
			Layers []model.Layer `json:"layers"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode style document: %w", err)
		}
		layers = doc.Layers
	} else if err := json.Unmarshal(data, &layers); err != nil {
		return nil, fmt.Errorf("decode style layers: %w", err)
	}
	for i, l := range layers {
		if l.ID == "" {
			return nil, fmt.Errorf("style layer %d has no id", i)
		}
	}
	return ExpandPOILayers(layers), nil
}

// ExpandPOILayers replaces the POI meta layer with one copy per icon, each
// filtered to its OSM tag and showing its icon. The copies go to the end.
func ExpandPOILayers(layers []model.Layer) []model.Layer {
	out := make([]model.Layer, 0, len(layers)+len(poiIcons))
	var meta *model.Layer
	for i := range layers {
		if layers[i].ID == POIMetaLayerID {
			meta = &layers[i]
			continue
		}
		out = append(out, layers[i])
	}
	if meta == nil {
		return out
	}
	for _, p := range poiIcons {
		l := meta.Clone()
		l.ID = meta.ID + "-" + p.maki
		l.Filter = json.RawMessage(p.filter)
		if l.Layout == nil {
			l.Layout = make(map[string]any, 1)
		}
		l.Layout["icon-image"] = p.maki + "-15"
		out = append(out, l)
	}
	return out
}

func cloneLayers(in []model.Layer) []model.Layer {
	out := make([]model.Layer, len(in))
	for i, l := range in {
		out[i] = l.Clone()
	}
	return out
}
