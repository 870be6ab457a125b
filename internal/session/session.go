// Package session binds one level manager to the headless renderer it
// drives, and accepts raw GeoJSON and camera moves from the outer surfaces.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/indoor-levels/internal/core/model"
	"github.com/mohammed-shakir/indoor-levels/internal/indoor"
	"github.com/mohammed-shakir/indoor-levels/internal/render/memory"
)

var _ indoor.Renderer = (*memory.Renderer)(nil)

var ErrInvalidGeoJSON = errors.New("invalid geojson feature collection")

type Session struct {
	Manager  *indoor.Manager
	Renderer *memory.Renderer
	logger   *slog.Logger
}

func New(r *memory.Renderer, m *indoor.Manager, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	r.OnSourceData(func(string) { m.NotifySourceData() })
	return &Session{Manager: m, Renderer: r, logger: logger}
}

// AddOptions mirror indoor.MapOptions for raw registrations.
type AddOptions struct {
	ID            string
	Layers        []model.Layer
	BeforeLayerID string
	LayersToHide  []string
}

// MapID derives a stable map ID from the raw dataset bytes.
func MapID(raw []byte) string {
	return "map-" + strconv.FormatUint(xxhash.Sum64(raw), 16)
}

// AddGeoJSON parses and registers a building dataset. Re-registering the
// same ID returns the existing map together with indoor.ErrDuplicateMap.
func (s *Session) AddGeoJSON(ctx context.Context, raw []byte, opts AddOptions) (*model.IndoorMap, error) {
	id := opts.ID
	if id == "" {
		id = MapID(raw)
	}
	if existing := s.Manager.Lookup(id); existing != nil {
		return existing, fmt.Errorf("add map %q: %w", id, indoor.ErrDuplicateMap)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGeoJSON, err)
	}
	return s.Manager.AddMap(ctx, fc, indoor.MapOptions{
		ID:            id,
		Layers:        opts.Layers,
		BeforeLayerID: opts.BeforeLayerID,
		LayersToHide:  opts.LayersToHide,
	})
}

func (s *Session) RemoveMap(ctx context.Context, id string) error {
	return s.Manager.RemoveMapByID(ctx, id)
}

// MoveCamera updates the view and schedules a throttled rescan.
func (s *Session) MoveCamera(cam model.Camera) {
	s.Renderer.SetCamera(cam)
	s.Manager.NotifyCameraChanged()
}

func (s *Session) SetLevel(l *model.Level) {
	s.Manager.SetLevel(l)
}

// Snapshot is a point-in-time view of the session for the control API.
type Snapshot struct {
	State      string            `json:"state"`
	MapID      string            `json:"mapId,omitempty"`
	Cell       string            `json:"cell,omitempty"`
	Level      *model.Level      `json:"level"`
	LevelRange *model.LevelRange `json:"levelRange"`
	Zoom       float64           `json:"zoom"`
	BBox       [4]float64        `json:"bbox"`
	Maps       int               `json:"maps"`
	Layers     []string          `json:"layers"`
	Filtered   []string          `json:"filtered"`
}

func (s *Session) Snapshot() Snapshot {
	cam := s.Renderer.Camera()
	snap := Snapshot{
		State:      s.Manager.State().String(),
		Level:      s.Manager.Level(),
		LevelRange: s.Manager.LevelRange(),
		Zoom:       cam.Zoom,
		BBox:       [4]float64{cam.Bounds.Min.X(), cam.Bounds.Min.Y(), cam.Bounds.Max.X(), cam.Bounds.Max.Y()},
		Maps:       len(s.Manager.Maps()),
		Layers:     s.Renderer.LayerIDs(),
		Filtered:   s.Manager.TrackedLayers(),
	}
	if im := s.Manager.SelectedMap(); im != nil {
		snap.MapID = im.ID
		snap.Cell = im.Cell
	}
	return snap
}

// MapInfo describes one registered map.
type MapInfo struct {
	ID            string           `json:"id"`
	Cell          string           `json:"cell,omitempty"`
	BBox          [4]float64       `json:"bbox"`
	LevelRange    model.LevelRange `json:"levelRange"`
	BeforeLayerID string           `json:"beforeLayerId,omitempty"`
	LayersToHide  []string         `json:"layersToHide,omitempty"`
	Selected      bool             `json:"selected"`
}

func Describe(im *model.IndoorMap) MapInfo {
	b := im.Bounds
	return MapInfo{
		ID:            im.ID,
		Cell:          im.Cell,
		BBox:          [4]float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()},
		LevelRange:    im.LevelsRange,
		BeforeLayerID: im.BeforeLayerID,
		LayersToHide:  im.LayersToHide,
	}
}

// Maps lists the registry in registration order.
func (s *Session) Maps() []MapInfo {
	selected := s.Manager.SelectedMap()
	maps := s.Manager.Maps()
	out := make([]MapInfo, 0, len(maps))
	for _, im := range maps {
		info := Describe(im)
		info.Selected = im == selected
		out = append(out, info)
	}
	return out
}

// LayerFilter is the filter the renderer currently holds for a layer.
func (s *Session) LayerFilter(layerID string) (json.RawMessage, error) {
	f, err := s.Renderer.Filter(layerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", indoor.ErrUnknownLayer, err)
	}
	return f, nil
}

func (s *Session) TrackLayer(layerID string) error {
	return s.Manager.AddLayerForFiltering(layerID)
}

func (s *Session) UntrackLayer(layerID string) error {
	return s.Manager.RemoveLayerFromFiltering(layerID)
}

func (s *Session) Close() {
	s.Manager.Close()
	s.logger.Info("session closed")
}
