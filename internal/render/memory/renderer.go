// Package memory is a headless map renderer: it keeps the style's sources,
// ordered layers, filters and layout in memory and answers feature queries
// by evaluating layer filters against the source data.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/indoor-levels/internal/core/model"
	"github.com/mohammed-shakir/indoor-levels/internal/filter"
)

var (
	ErrNoSource      = errors.New("source not found")
	ErrSourceExists  = errors.New("source already exists")
	ErrSourceInUse   = errors.New("source is used by a layer")
	ErrNoLayer       = errors.New("layer not found")
	ErrLayerExists   = errors.New("layer already exists")
	ErrNotReady      = errors.New("source metadata not ready")
	ErrInvalidFilter = errors.New("invalid filter")
)

type source struct {
	data  *geojson.FeatureCollection
	ready chan struct{}
	err   error
	once  sync.Once
}

func (s *source) markReady(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.ready)
	})
}

func (s *source) isReady() bool {
	select {
	case <-s.ready:
		return s.err == nil
	default:
		return false
	}
}

type layer struct {
	desc   model.Layer
	filter json.RawMessage
	layout map[string]any
}

type Renderer struct {
	mu          sync.Mutex
	camera      model.Camera
	sources     map[string]*source
	layers      []*layer
	manualReady bool
	onData      []func(sourceID string)
}

type Option func(*Renderer)

// WithManualReadiness keeps new sources pending until MarkSourceReady or
// FailSource is called.
func WithManualReadiness() Option {
	return func(r *Renderer) { r.manualReady = true }
}

// WithCamera sets the initial view.
func WithCamera(c model.Camera) Option {
	return func(r *Renderer) { r.camera = c }
}

func New(opts ...Option) *Renderer {
	r := &Renderer{sources: make(map[string]*source)}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Renderer) AddSource(id string, data *geojson.FeatureCollection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[id]; ok {
		return fmt.Errorf("add source %q: %w", id, ErrSourceExists)
	}
	s := &source{data: data, ready: make(chan struct{})}
	r.sources[id] = s
	if !r.manualReady {
		s.markReady(nil)
	}
	return nil
}

func (r *Renderer) RemoveSource(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sources[id]
	if !ok {
		return fmt.Errorf("remove source %q: %w", id, ErrNoSource)
	}
	for _, l := range r.layers {
		if l.desc.Source == id {
			return fmt.Errorf("remove source %q: layer %q: %w", id, l.desc.ID, ErrSourceInUse)
		}
	}
	s.markReady(ErrNoSource)
	delete(r.sources, id)
	return nil
}

// OnSourceData registers fn for content updates of any source. Hooks run
// after the renderer lock is released.
func (r *Renderer) OnSourceData(fn func(sourceID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onData = append(r.onData, fn)
}

// SetSourceData replaces a source's features, as a late tile load would.
func (r *Renderer) SetSourceData(id string, data *geojson.FeatureCollection) error {
	r.mu.Lock()
	s, ok := r.sources[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("set source data %q: %w", id, ErrNoSource)
	}
	s.data = data
	hooks := slices.Clone(r.onData)
	r.mu.Unlock()
	for _, fn := range hooks {
		fn(id)
	}
	return nil
}

// MarkSourceReady signals metadata readiness of a pending source.
func (r *Renderer) MarkSourceReady(id string) error {
	return r.settle(id, nil)
}

// FailSource makes pending and future metadata waits on id fail with err.
func (r *Renderer) FailSource(id string, err error) error {
	return r.settle(id, err)
}

func (r *Renderer) settle(id string, err error) error {
	r.mu.Lock()
	s, ok := r.sources[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("source %q: %w", id, ErrNoSource)
	}
	s.markReady(err)
	return nil
}

func (r *Renderer) WaitSourceMetadata(ctx context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.sources[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("wait source %q: %w", id, ErrNoSource)
	}
	select {
	case <-s.ready:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HasSource reports whether id is currently part of the style.
func (r *Renderer) HasSource(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sources[id]
	return ok
}

// AddLayer inserts the layer before beforeID, or on top when beforeID is empty.
func (r *Renderer) AddLayer(l model.Layer, beforeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexLocked(l.ID) >= 0 {
		return fmt.Errorf("add layer %q: %w", l.ID, ErrLayerExists)
	}
	if l.Source != "" {
		if _, ok := r.sources[l.Source]; !ok {
			return fmt.Errorf("add layer %q: source %q: %w", l.ID, l.Source, ErrNoSource)
		}
	}
	at := len(r.layers)
	if beforeID != "" {
		at = r.indexLocked(beforeID)
		if at < 0 {
			return fmt.Errorf("add layer %q before %q: %w", l.ID, beforeID, ErrNoLayer)
		}
	}
	nl := &layer{desc: l.Clone(), layout: make(map[string]any)}
	if len(l.Filter) > 0 && string(l.Filter) != "null" {
		if !json.Valid(l.Filter) {
			return fmt.Errorf("add layer %q: %w", l.ID, ErrInvalidFilter)
		}
		nl.filter = append(json.RawMessage(nil), l.Filter...)
	}
	for k, v := range l.Layout {
		nl.layout[k] = v
	}
	r.layers = append(r.layers, nil)
	copy(r.layers[at+1:], r.layers[at:])
	r.layers[at] = nl
	return nil
}

func (r *Renderer) RemoveLayer(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("remove layer %q: %w", id, ErrNoLayer)
	}
	r.layers = append(r.layers[:i], r.layers[i+1:]...)
	return nil
}

func (r *Renderer) HasLayer(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexLocked(id) >= 0
}

// LayerIDs lists layers bottom to top.
func (r *Renderer) LayerIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.layers))
	for i, l := range r.layers {
		out[i] = l.desc.ID
	}
	return out
}

func (r *Renderer) Filter(layerID string) (json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, err := r.layerLocked(layerID)
	if err != nil {
		return nil, err
	}
	if l.filter == nil {
		return nil, nil
	}
	return append(json.RawMessage(nil), l.filter...), nil
}

func (r *Renderer) SetFilter(layerID string, f json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, err := r.layerLocked(layerID)
	if err != nil {
		return err
	}
	if len(f) == 0 || string(f) == "null" {
		l.filter = nil
		return nil
	}
	if !json.Valid(f) {
		return fmt.Errorf("set filter of %q: %w", layerID, ErrInvalidFilter)
	}
	l.filter = append(json.RawMessage(nil), f...)
	return nil
}

func (r *Renderer) LayoutProperty(layerID, name string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, err := r.layerLocked(layerID)
	if err != nil {
		return nil, err
	}
	return l.layout[name], nil
}

func (r *Renderer) SetLayoutProperty(layerID, name string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, err := r.layerLocked(layerID)
	if err != nil {
		return err
	}
	if value == nil {
		delete(l.layout, name)
		return nil
	}
	l.layout[name] = value
	return nil
}

// QuerySourceFeatures returns the source features matching f. It fails until
// the source's metadata is ready.
func (r *Renderer) QuerySourceFeatures(sourceID string, f json.RawMessage) ([]*geojson.Feature, error) {
	r.mu.Lock()
	s, ok := r.sources[sourceID]
	var data *geojson.FeatureCollection
	if ok {
		data = s.data
	}
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("query source %q: %w", sourceID, ErrNoSource)
	}
	if !s.isReady() {
		return nil, fmt.Errorf("query source %q: %w", sourceID, ErrNotReady)
	}
	expr, err := filter.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("query source %q: %w", sourceID, err)
	}
	if data == nil {
		return nil, nil
	}
	var out []*geojson.Feature
	for _, feat := range data.Features {
		if feat != nil && Match(expr, feat.Properties) {
			out = append(out, feat)
		}
	}
	return out, nil
}

// RenderedFeatures returns the features a layer would draw: its source's
// features passing its current filter.
func (r *Renderer) RenderedFeatures(layerID string) ([]*geojson.Feature, error) {
	r.mu.Lock()
	l, err := r.layerLocked(layerID)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	src, f := l.desc.Source, l.filter
	r.mu.Unlock()
	return r.QuerySourceFeatures(src, f)
}

func (r *Renderer) Camera() model.Camera {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.camera
}

func (r *Renderer) SetCamera(c model.Camera) {
	r.mu.Lock()
	r.camera = c
	r.mu.Unlock()
}

func (r *Renderer) indexLocked(id string) int {
	for i, l := range r.layers {
		if l.desc.ID == id {
			return i
		}
	}
	return -1
}

func (r *Renderer) layerLocked(id string) (*layer, error) {
	i := r.indexLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("layer %q: %w", id, ErrNoLayer)
	}
	return r.layers[i], nil
}
