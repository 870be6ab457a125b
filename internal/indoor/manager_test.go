package indoor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/indoor-levels/internal/core/model"
	"github.com/mohammed-shakir/indoor-levels/internal/events"
	"github.com/mohammed-shakir/indoor-levels/internal/levels"
	"github.com/mohammed-shakir/indoor-levels/internal/render/memory"
	"github.com/mohammed-shakir/indoor-levels/internal/throttle"
)

const roomsFilter = `["==","type","room"]`

// building returns a small dataset at (lon, lat) spanning the given levels.
func building(lon, lat float64, levelTags ...string) *geojson.FeatureCollection {
	b := orb.Bound{Min: orb.Point{lon, lat}, Max: orb.Point{lon + 0.001, lat + 0.001}}
	fc := geojson.NewFeatureCollection()
	for _, tag := range levelTags {
		f := geojson.NewFeature(b.ToPolygon())
		f.Properties = geojson.Properties{"level": tag, "type": "room"}
		fc.Append(f)
	}
	outline := geojson.NewFeature(b.ToPolygon())
	outline.Properties = geojson.Properties{"type": "building"}
	fc.Append(outline)
	return fc
}

func viewOf(fc *geojson.FeatureCollection) model.Camera {
	_, b, _ := levels.ExtractLevelsRangeAndBounds(fc)
	return model.Camera{Zoom: 18, Bounds: b.Pad(0.0005)}
}

var nowhere = model.Camera{Zoom: 18, Bounds: orb.Bound{Min: orb.Point{-120, -40}, Max: orb.Point{-119.999, -39.999}}}

func mapLayers() []model.Layer {
	return []model.Layer{
		{ID: "indoor-rooms", Type: "fill", Filter: json.RawMessage(roomsFilter)},
		{ID: "indoor-areas", Type: "line"},
	}
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(ev events.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) take() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func kinds(evs []events.Event) []events.Kind {
	out := make([]events.Kind, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Kind())
	}
	return out
}

// filterLog records every filter the manager writes.
type filterLog struct {
	*memory.Renderer
	mu  sync.Mutex
	set []string
}

func (f *filterLog) SetFilter(layerID string, raw json.RawMessage) error {
	f.mu.Lock()
	f.set = append(f.set, layerID+"="+string(raw))
	f.mu.Unlock()
	return f.Renderer.SetFilter(layerID, raw)
}

func (f *filterLog) last(layerID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := layerID + "="
	for i := len(f.set) - 1; i >= 0; i-- {
		if len(f.set[i]) > len(prefix) && f.set[i][:len(prefix)] == prefix {
			return f.set[i][len(prefix):]
		}
	}
	return ""
}

type harness struct {
	r     *filterLog
	m     *Manager
	clock *throttle.FakeClock
	rec   *recorder
}

func newHarness(t *testing.T, cam model.Camera, opts ...Option) *harness {
	t.Helper()
	r := &filterLog{Renderer: memory.New(memory.WithCamera(cam))}
	clock := throttle.NewFakeClock(time.Unix(0, 0).UTC())
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(clock),
	}
	m := New(r, append(base, opts...)...)
	rec := &recorder{}
	m.Subscribe(rec.handle)
	t.Cleanup(m.Close)
	return &harness{r: r, m: m, clock: clock, rec: rec}
}

// moveTo pans the camera and lets the throttled rescan run.
func (h *harness) moveTo(cam model.Camera) {
	h.r.SetCamera(cam)
	h.clock.Advance(time.Second)
	h.m.NotifyCameraChanged()
	h.m.Wait()
}

func (h *harness) filter(t *testing.T, layerID string) string {
	t.Helper()
	raw, err := h.r.Filter(layerID)
	if err != nil {
		t.Fatalf("Filter(%s): %v", layerID, err)
	}
	return string(raw)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func composedAt(original, level string) string {
	return `["all",` + original + `,["any",["!",["has","level"]],["inrange",["get","level"],` + level + `]]]`
}

func TestEndToEnd_SelectSetLevelAndPanAway(t *testing.T) {
	a := building(18.07, 59.33, "-2", "0;1", "5")
	h := newHarness(t, viewOf(a))

	im, err := h.m.AddMap(context.Background(), a, MapOptions{ID: "a", Layers: mapLayers()})
	if err != nil {
		t.Fatalf("AddMap: %v", err)
	}
	h.m.Wait()

	evs := h.rec.take()
	wantKinds := []events.Kind{events.KindMapAdded, events.KindLevelRangeChanged, events.KindLevelChanged, events.KindLoaded}
	if got := kinds(evs); !reflect.DeepEqual(got, wantKinds) {
		t.Fatalf("events=%v want=%v", got, wantKinds)
	}
	if rc := evs[1].(events.LevelRangeChanged); rc.Range == nil || *rc.Range != (model.LevelRange{Min: -2, Max: 5}) {
		t.Fatalf("range=%v want [-2,5]", rc.Range)
	}
	if lc := evs[2].(events.LevelChanged); lc.Level == nil || *lc.Level != 0 {
		t.Fatalf("default level=%v want 0", lc.Level)
	}
	if ld := evs[3].(events.Loaded); ld.SourceID != SourceID || ld.MapID != "a" {
		t.Fatalf("loaded=%+v", ld)
	}
	if h.m.SelectedMap() != im || h.m.State() != Active {
		t.Fatalf("selected=%v state=%v", h.m.SelectedMap(), h.m.State())
	}

	h.m.SetLevel(model.Level(3).Ptr())
	evs = h.rec.take()
	if len(evs) != 1 {
		t.Fatalf("events=%v want one level.changed", kinds(evs))
	}
	if lc := evs[0].(events.LevelChanged); lc.Level == nil || *lc.Level != 3 {
		t.Fatalf("level=%v want 3", lc.Level)
	}
	if got, want := h.filter(t, "indoor-rooms"), composedAt(roomsFilter, "3"); got != want {
		t.Fatalf("rooms filter\n got=%s\nwant=%s", got, want)
	}
	if got, want := h.filter(t, "indoor-areas"), composedAt(`["all"]`, "3"); got != want {
		t.Fatalf("areas filter\n got=%s\nwant=%s", got, want)
	}

	h.moveTo(nowhere)
	evs = h.rec.take()
	if got, want := kinds(evs), []events.Kind{events.KindLevelRangeChanged, events.KindLevelChanged}; !reflect.DeepEqual(got, want) {
		t.Fatalf("events=%v want=%v", got, want)
	}
	if rc := evs[0].(events.LevelRangeChanged); rc.Range != nil {
		t.Fatalf("range=%v want nil", rc.Range)
	}
	if h.r.last("indoor-rooms") != roomsFilter || h.r.last("indoor-areas") != `["all"]` {
		t.Fatalf("filters not restored before removal: rooms=%s areas=%s",
			h.r.last("indoor-rooms"), h.r.last("indoor-areas"))
	}
	if h.r.HasLayer("indoor-rooms") || h.r.HasSource(SourceID) {
		t.Fatalf("indoor layers or source left behind: %v", h.r.LayerIDs())
	}
	if h.m.Level() != nil || h.m.LevelRange() != nil || h.m.State() != Idle {
		t.Fatalf("level=%v range=%v state=%v", h.m.Level(), h.m.LevelRange(), h.m.State())
	}
}

func TestSetLevel_SameLevelIsNoop(t *testing.T) {
	a := building(18.07, 59.33, "0", "2")
	h := newHarness(t, viewOf(a))
	_, _ = h.m.AddMap(context.Background(), a, MapOptions{Layers: mapLayers()})
	h.m.Wait()
	h.rec.take()

	h.m.SetLevel(model.Level(0).Ptr())
	if evs := h.rec.take(); len(evs) != 0 {
		t.Fatalf("events=%v want none", kinds(evs))
	}

	h.m.SetLevel(model.Level(2).Ptr())
	h.m.SetLevel(model.Level(1).Ptr())
	if got, want := h.filter(t, "indoor-rooms"), composedAt(roomsFilter, "1"); got != want {
		t.Fatalf("filter grew or drifted\n got=%s\nwant=%s", got, want)
	}

	h.m.SetLevel(nil)
	if got := h.filter(t, "indoor-rooms"); got != roomsFilter {
		t.Fatalf("got=%s want original", got)
	}
}

func TestAddMap_Errors(t *testing.T) {
	h := newHarness(t, nowhere)
	ctx := context.Background()

	unleveled := geojson.NewFeatureCollection()
	unleveled.Append(geojson.NewFeature(orb.Point{1, 1}))
	if _, err := h.m.AddMap(ctx, unleveled, MapOptions{}); !errors.Is(err, levels.ErrEmptyLevelRange) {
		t.Fatalf("err=%v want ErrEmptyLevelRange", err)
	}

	shapeless := geojson.NewFeatureCollection()
	hollow := geojson.NewFeature(orb.LineString{})
	hollow.Properties["level"] = "0"
	shapeless.Append(hollow)
	if _, err := h.m.AddMap(ctx, shapeless, MapOptions{}); !errors.Is(err, levels.ErrNoGeometry) {
		t.Fatalf("err=%v want ErrNoGeometry", err)
	}

	a := building(18.07, 59.33, "0")
	if _, err := h.m.AddMap(ctx, a, MapOptions{}); err != nil {
		t.Fatalf("AddMap: %v", err)
	}
	if _, err := h.m.AddMap(ctx, a, MapOptions{}); !errors.Is(err, ErrDuplicateMap) {
		t.Fatalf("err=%v want ErrDuplicateMap", err)
	}
	if err := h.m.RemoveMap(ctx, building(0, 0, "1")); !errors.Is(err, ErrUnknownMap) {
		t.Fatalf("err=%v want ErrUnknownMap", err)
	}
	if got := len(h.m.Maps()); got != 1 {
		t.Fatalf("registry=%d want 1", got)
	}
}

func TestAddMap_OutOfViewDoesNotSwap(t *testing.T) {
	h := newHarness(t, nowhere)
	if _, err := h.m.AddMap(context.Background(), building(18.07, 59.33, "0"), MapOptions{Layers: mapLayers()}); err != nil {
		t.Fatalf("AddMap: %v", err)
	}
	h.m.Wait()
	if got := kinds(h.rec.take()); !reflect.DeepEqual(got, []events.Kind{events.KindMapAdded}) {
		t.Fatalf("events=%v", got)
	}
	if h.m.State() != Idle || h.r.HasSource(SourceID) {
		t.Fatalf("state=%v", h.m.State())
	}
}

func TestRemoveMap_ActiveMapIsTornDown(t *testing.T) {
	a := building(18.07, 59.33, "0", "1")
	h := newHarness(t, viewOf(a))
	ctx := context.Background()
	_, _ = h.m.AddMap(ctx, a, MapOptions{ID: "a", Layers: mapLayers(), LayersToHide: []string{"poi-label"}})
	h.m.Wait()

	if err := h.m.RemoveMapByID(ctx, "a"); err != nil {
		t.Fatalf("RemoveMapByID: %v", err)
	}
	if h.m.State() != Idle || h.r.HasLayer("indoor-rooms") || h.r.HasSource(SourceID) {
		t.Fatalf("state=%v layers=%v", h.m.State(), h.r.LayerIDs())
	}
	if h.m.Lookup("a") != nil {
		t.Fatalf("map still registered")
	}
	h.m.mu.Lock()
	prev := h.m.previous
	h.m.mu.Unlock()
	if prev != nil {
		t.Fatalf("removed map still remembered as previous selection: %s", prev.m.ID)
	}
}

func TestSwap_HidesAndRestoresBaseLayers(t *testing.T) {
	a := building(18.07, 59.33, "0")
	h := newHarness(t, viewOf(a))
	_ = h.r.AddLayer(model.Layer{ID: "building-3d", Layout: map[string]any{"visibility": "visible"}}, "")
	_ = h.r.AddLayer(model.Layer{ID: "poi-label"}, "")

	_, err := h.m.AddMap(context.Background(), a, MapOptions{
		Layers:        mapLayers(),
		BeforeLayerID: "poi-label",
		LayersToHide:  []string{"building-3d", "poi-label", "not-in-style"},
	})
	if err != nil {
		t.Fatalf("AddMap: %v", err)
	}
	h.m.Wait()

	want := []string{"building-3d", "indoor-rooms", "indoor-areas", "poi-label"}
	if got := h.r.LayerIDs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("layers=%v want=%v", got, want)
	}
	for _, id := range []string{"building-3d", "poi-label"} {
		if v, _ := h.r.LayoutProperty(id, "visibility"); v != "none" {
			t.Fatalf("%s visibility=%v want none", id, v)
		}
	}

	h.moveTo(nowhere)
	for _, id := range []string{"building-3d", "poi-label"} {
		if v, _ := h.r.LayoutProperty(id, "visibility"); v != "visible" {
			t.Fatalf("%s visibility=%v want visible", id, v)
		}
	}
}

func TestSwap_ReturningToSameBuildingRestoresItsLevel(t *testing.T) {
	a := building(18.07, 59.33, "-1", "4")
	h := newHarness(t, viewOf(a))
	_, _ = h.m.AddMap(context.Background(), a, MapOptions{Layers: mapLayers()})
	h.m.Wait()
	h.m.SetLevel(model.Level(3).Ptr())

	h.moveTo(nowhere)
	if h.m.Level() != nil {
		t.Fatalf("level=%v want nil while away", h.m.Level())
	}
	h.rec.take()

	h.moveTo(viewOf(a))
	if l := h.m.Level(); l == nil || *l != 3 {
		t.Fatalf("level=%v want 3", l)
	}
	if got, want := h.filter(t, "indoor-rooms"), composedAt(roomsFilter, "3"); got != want {
		t.Fatalf("got=%s want=%s", got, want)
	}
}

func TestSwap_DirectSwitchKeepsOrClampsLevel(t *testing.T) {
	a := building(18.07, 59.33, "0", "4")
	b := building(18.08, 59.34, "1", "3")
	c := building(18.09, 59.35, "5", "7")
	h := newHarness(t, viewOf(a))
	ctx := context.Background()
	for _, fc := range []*geojson.FeatureCollection{a, b, c} {
		if _, err := h.m.AddMap(ctx, fc, MapOptions{Layers: mapLayers()}); err != nil {
			t.Fatalf("AddMap: %v", err)
		}
	}
	h.m.Wait()
	h.m.SetLevel(model.Level(2).Ptr())

	h.moveTo(viewOf(b))
	if l := h.m.Level(); l == nil || *l != 2 {
		t.Fatalf("level=%v want 2 kept", l)
	}

	h.rec.take()
	h.moveTo(viewOf(c))
	if l := h.m.Level(); l == nil || *l != 5 {
		t.Fatalf("level=%v want clamped to 5", l)
	}
	var sawLevel bool
	for _, ev := range h.rec.take() {
		if lc, ok := ev.(events.LevelChanged); ok && lc.Level != nil && *lc.Level == 5 {
			sawLevel = true
		}
	}
	if !sawLevel {
		t.Fatalf("no level.changed(5) emitted")
	}
}

// gatedLoader blocks every Layers call until the test releases it.
type gatedLoader struct {
	calls chan chan struct{}
}

func (g *gatedLoader) Layers(context.Context) ([]model.Layer, error) {
	gate := make(chan struct{})
	g.calls <- gate
	<-gate
	return mapLayers(), nil
}

func TestSwap_SupersededLoadIsDiscarded(t *testing.T) {
	a := building(18.07, 59.33, "0")
	b := building(18.08, 59.34, "1", "2")
	loader := &gatedLoader{calls: make(chan chan struct{}, 4)}
	h := newHarness(t, viewOf(a), WithStyleLoader(loader))
	ctx := context.Background()

	_, _ = h.m.AddMap(ctx, a, MapOptions{ID: "a"})
	imB, _ := h.m.AddMap(ctx, b, MapOptions{ID: "b"})
	gateA := <-loader.calls
	if h.m.State() != Loading {
		t.Fatalf("state=%v want loading", h.m.State())
	}

	h.r.SetCamera(viewOf(b))
	h.clock.Advance(time.Second)
	h.m.NotifyCameraChanged()
	gateB := <-loader.calls

	close(gateB)
	waitFor(t, "map b to load", func() bool { return h.m.State() == Active })
	close(gateA)
	h.m.Wait()

	if h.m.SelectedMap() != imB {
		t.Fatalf("selected=%v want b", h.m.SelectedMap())
	}
	want := []string{"indoor-rooms", "indoor-areas"}
	if got := h.r.LayerIDs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("layers=%v want=%v", got, want)
	}
	for _, ev := range h.rec.take() {
		switch e := ev.(type) {
		case events.Loaded:
			if e.MapID != "b" {
				t.Fatalf("loaded for superseded map %q", e.MapID)
			}
		case events.Error:
			t.Fatalf("unexpected error event: %v", e.Err)
		}
	}
}

type failingLoader struct{ err error }

func (f failingLoader) Layers(context.Context) ([]model.Layer, error) { return nil, f.err }

func TestSwap_StyleFailureRollsBackAndEmitsError(t *testing.T) {
	a := building(18.07, 59.33, "0")
	boom := errors.New("style fetch failed")
	h := newHarness(t, viewOf(a), WithStyleLoader(failingLoader{err: boom}))

	_, _ = h.m.AddMap(context.Background(), a, MapOptions{ID: "a"})
	h.m.Wait()

	var loadErr *DataLoadError
	var found bool
	for _, ev := range h.rec.take() {
		if e, ok := ev.(events.Error); ok {
			found = true
			if !errors.As(e.Err, &loadErr) || loadErr.MapID != "a" || !errors.Is(e.Err, boom) {
				t.Fatalf("err=%v", e.Err)
			}
		}
		if _, ok := ev.(events.Loaded); ok {
			t.Fatalf("loaded emitted for failed swap")
		}
	}
	if !found {
		t.Fatalf("no error event")
	}
	if h.r.HasSource(SourceID) {
		t.Fatalf("orphaned source left behind")
	}
	if h.m.State() != Idle {
		t.Fatalf("state=%v want idle", h.m.State())
	}
}

func TestSwap_LayerFailureRemovesAddedLayers(t *testing.T) {
	a := building(18.07, 59.33, "0")
	h := newHarness(t, viewOf(a))
	_ = h.r.AddLayer(model.Layer{ID: "labels", Filter: json.RawMessage(`["has","name"]`)}, "")

	layers := []model.Layer{{ID: "indoor-rooms"}, {ID: "labels"}}
	_, _ = h.m.AddMap(context.Background(), a, MapOptions{Layers: layers})
	h.m.Wait()

	if got := h.r.LayerIDs(); !reflect.DeepEqual(got, []string{"labels"}) {
		t.Fatalf("layers=%v want only the base layer", got)
	}
	if got := h.filter(t, "labels"); got != `["has","name"]` {
		t.Fatalf("base filter=%s", got)
	}
	if h.r.HasSource(SourceID) {
		t.Fatalf("orphaned source left behind")
	}
}

func TestSwap_NoLayersWithoutLoaderFails(t *testing.T) {
	a := building(18.07, 59.33, "0")
	h := newHarness(t, viewOf(a))
	_, _ = h.m.AddMap(context.Background(), a, MapOptions{})
	h.m.Wait()
	for _, ev := range h.rec.take() {
		if e, ok := ev.(events.Error); ok && errors.Is(e.Err, ErrNoLayers) {
			return
		}
	}
	t.Fatalf("no ErrNoLayers error event")
}

func TestExternalLayers_FollowLevelAndPersistAcrossSwaps(t *testing.T) {
	a := building(18.07, 59.33, "0", "2")
	h := newHarness(t, viewOf(a))
	const original = `["==", "class", "indoor"]`
	_ = h.r.AddLayer(model.Layer{ID: "venue-labels", Filter: json.RawMessage(original)}, "")

	if err := h.m.AddLayerForFiltering("missing"); !errors.Is(err, ErrUnknownLayer) {
		t.Fatalf("err=%v want ErrUnknownLayer", err)
	}
	if err := h.m.AddLayerForFiltering("venue-labels"); err != nil {
		t.Fatalf("AddLayerForFiltering: %v", err)
	}
	if got := h.filter(t, "venue-labels"); got != original {
		t.Fatalf("filtered without a level: %s", got)
	}

	_, _ = h.m.AddMap(context.Background(), a, MapOptions{Layers: mapLayers()})
	h.m.Wait()
	h.m.SetLevel(model.Level(2).Ptr())
	if got, want := h.filter(t, "venue-labels"), composedAt(`["==","class","indoor"]`, "2"); got != want {
		t.Fatalf("got=%s want=%s", got, want)
	}

	h.moveTo(nowhere)
	if got := h.filter(t, "venue-labels"); got != original {
		t.Fatalf("not restored byte-identical: %s", got)
	}

	h.moveTo(viewOf(a))
	if got, want := h.filter(t, "venue-labels"), composedAt(`["==","class","indoor"]`, "2"); got != want {
		t.Fatalf("external layer dropped across swap: %s", got)
	}

	if err := h.m.RemoveLayerFromFiltering("venue-labels"); err != nil {
		t.Fatalf("RemoveLayerFromFiltering: %v", err)
	}
	if got := h.filter(t, "venue-labels"); got != original {
		t.Fatalf("got=%s want original", got)
	}
	if err := h.m.RemoveLayerFromFiltering("venue-labels"); !errors.Is(err, ErrUnknownLayer) {
		t.Fatalf("err=%v want ErrUnknownLayer", err)
	}
}

func TestRescan_WidensRangeFromSourceData(t *testing.T) {
	a := building(18.07, 59.33, "0", "2")
	h := newHarness(t, viewOf(a))
	_, _ = h.m.AddMap(context.Background(), a, MapOptions{Layers: mapLayers()})
	h.m.Wait()
	h.rec.take()

	h.clock.Advance(time.Second)
	h.m.NotifySourceData()
	if evs := h.rec.take(); len(evs) != 0 {
		t.Fatalf("events=%v want none for unchanged data", kinds(evs))
	}

	extra := geojson.NewFeature(orb.Point{18.0705, 59.3305})
	extra.Properties = geojson.Properties{"level": "7"}
	a.Append(extra)
	h.clock.Advance(time.Second)
	h.m.NotifySourceData()

	evs := h.rec.take()
	if len(evs) != 1 {
		t.Fatalf("events=%v want one range change", kinds(evs))
	}
	rc := evs[0].(events.LevelRangeChanged)
	if rc.Range == nil || *rc.Range != (model.LevelRange{Min: 0, Max: 7}) {
		t.Fatalf("range=%v want [0,7]", rc.Range)
	}
}

func TestRescan_ThrottlesBursts(t *testing.T) {
	a := building(18.07, 59.33, "0")
	h := newHarness(t, nowhere)
	_, _ = h.m.AddMap(context.Background(), a, MapOptions{Layers: mapLayers()})

	h.m.NotifyCameraChanged() // leading run
	h.r.SetCamera(viewOf(a))
	for range 10 {
		h.clock.Advance(20 * time.Millisecond)
		h.m.NotifyCameraChanged()
	}
	if h.m.State() != Idle {
		t.Fatalf("state=%v before the window boundary", h.m.State())
	}
	h.clock.Advance(500 * time.Millisecond)
	h.m.Wait()
	if h.m.State() != Active {
		t.Fatalf("state=%v want active after trailing run", h.m.State())
	}
}

func TestClose_TearsDownAndRejectsNewMaps(t *testing.T) {
	a := building(18.07, 59.33, "0")
	h := newHarness(t, viewOf(a))
	_, _ = h.m.AddMap(context.Background(), a, MapOptions{Layers: mapLayers()})
	h.m.Wait()

	h.m.Close()
	if h.r.HasSource(SourceID) || h.r.HasLayer("indoor-rooms") {
		t.Fatalf("slot not released on close")
	}
	if _, err := h.m.AddMap(context.Background(), building(0, 0, "1"), MapOptions{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("err=%v want ErrClosed", err)
	}
}
