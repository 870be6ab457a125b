// Package router exposes a level-manager session over a small HTTP control API.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/indoor-levels/internal/core/model"
	"github.com/mohammed-shakir/indoor-levels/internal/indoor"
	"github.com/mohammed-shakir/indoor-levels/internal/levels"
	"github.com/mohammed-shakir/indoor-levels/internal/session"
)

// Control is the session surface the API drives.
type Control interface {
	AddGeoJSON(ctx context.Context, raw []byte, opts session.AddOptions) (*model.IndoorMap, error)
	RemoveMap(ctx context.Context, id string) error
	Maps() []session.MapInfo
	MoveCamera(cam model.Camera)
	SetLevel(l *model.Level)
	Snapshot() session.Snapshot
	LayerFilter(layerID string) (json.RawMessage, error)
	TrackLayer(layerID string) error
	UntrackLayer(layerID string) error
}

var _ Control = (*session.Session)(nil)

var errBadRequest = errors.New("bad request")

const maxMapBytes = 32 << 20

// Mount registers the control routes on r.
func Mount(r chi.Router, logger *slog.Logger, c Control) {
	r.Route("/maps", func(r chi.Router) {
		r.Get("/", HandleListMaps(c))
		r.Post("/", HandleAddMap(logger, c))
		r.Delete("/{id}", HandleRemoveMap(logger, c))
	})
	r.Put("/camera", HandleCamera(c))
	r.Get("/level", HandleGetLevel(c))
	r.Put("/level", HandleSetLevel(c))
	r.Get("/state", HandleState(c))
	r.Get("/layers/{id}/filter", HandleLayerFilter(c))
	r.Post("/filtering/{id}", HandleTrackLayer(c))
	r.Delete("/filtering/{id}", HandleUntrackLayer(c))
}

// HandleAddMap registers the GeoJSON body. Query: id, before, hide (comma list).
func HandleAddMap(logger *slog.Logger, c Control) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMapBytes))
		if err != nil {
			writeError(w, fmt.Errorf("%w: read body: %w", errBadRequest, err))
			return
		}
		q := r.URL.Query()
		opts := session.AddOptions{
			ID:            strings.TrimSpace(q.Get("id")),
			BeforeLayerID: strings.TrimSpace(q.Get("before")),
			LayersToHide:  splitList(q.Get("hide")),
		}
		im, err := c.AddGeoJSON(r.Context(), raw, opts)
		if err != nil {
			if im != nil && errors.Is(err, indoor.ErrDuplicateMap) {
				w.Header().Set("Location", "/maps/"+im.ID)
			}
			writeError(w, err)
			return
		}
		logger.InfoContext(r.Context(), "indoor map added over http", "map_id", im.ID)
		w.Header().Set("Location", "/maps/"+im.ID)
		writeJSON(w, http.StatusCreated, session.Describe(im))
	}
}

func HandleRemoveMap(logger *slog.Logger, c Control) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := c.RemoveMap(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		logger.InfoContext(r.Context(), "indoor map removed over http", "map_id", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleListMaps(c Control) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, c.Maps())
	}
}

// HandleCamera moves the view. Query: zoom, bbox=x1,y1,x2,y2[,EPSG:4326].
// The rescan it triggers is throttled, so the response only acknowledges it.
func HandleCamera(c Control) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cam, err := ParseCamera(r)
		if err != nil {
			writeError(w, err)
			return
		}
		c.MoveCamera(cam)
		w.WriteHeader(http.StatusAccepted)
	}
}

type levelResponse struct {
	Level      *model.Level      `json:"level"`
	LevelRange *model.LevelRange `json:"levelRange"`
}

func HandleGetLevel(c Control) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := c.Snapshot()
		writeJSON(w, http.StatusOK, levelResponse{Level: snap.Level, LevelRange: snap.LevelRange})
	}
}

// HandleSetLevel selects ?level=N; an empty value or "none" clears it.
func HandleSetLevel(c Control) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := ParseLevel(r.URL.Query().Get("level"))
		if err != nil {
			writeError(w, err)
			return
		}
		c.SetLevel(l)
		snap := c.Snapshot()
		writeJSON(w, http.StatusOK, levelResponse{Level: snap.Level, LevelRange: snap.LevelRange})
	}
}

func HandleState(c Control) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, c.Snapshot())
	}
}

// HandleLayerFilter returns the layer's filter verbatim; null when unset.
func HandleLayerFilter(c Control) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := c.LayerFilter(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		if f == nil {
			f = json.RawMessage("null")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(f)
	}
}

func HandleTrackLayer(c Control) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.TrackLayer(chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleUntrackLayer(c Control) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.UntrackLayer(chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// StyleCache drops cached remote styles.
type StyleCache interface {
	Invalidate(ctx context.Context) error
}

// HandleStyleInvalidate forces the next map without its own layers to
// refetch the remote style.
func HandleStyleInvalidate(logger *slog.Logger, sc StyleCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := sc.Invalidate(r.Context()); err != nil {
			logger.WarnContext(r.Context(), "style invalidation failed", "err", err)
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ParseCamera(r *http.Request) (model.Camera, error) {
	q := r.URL.Query()
	rawZoom := strings.TrimSpace(q.Get("zoom"))
	if rawZoom == "" {
		return model.Camera{}, fmt.Errorf("%w: missing required parameter: zoom", errBadRequest)
	}
	zoom, err := parseFloat(rawZoom)
	if err != nil {
		return model.Camera{}, fmt.Errorf("%w: invalid zoom: %w", errBadRequest, err)
	}
	if zoom < 0 || zoom > 24 {
		return model.Camera{}, fmt.Errorf("%w: zoom must be in [0,24]", errBadRequest)
	}
	rawBBox := strings.TrimSpace(q.Get("bbox"))
	if rawBBox == "" {
		return model.Camera{}, fmt.Errorf("%w: missing required parameter: bbox", errBadRequest)
	}
	b, err := parseBBOX(rawBBox)
	if err != nil {
		return model.Camera{}, fmt.Errorf("%w: invalid bbox: %w", errBadRequest, err)
	}
	return model.Camera{Zoom: zoom, Bounds: b}, nil
}

func ParseLevel(raw string) (*model.Level, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "none") {
		return nil, nil
	}
	f, err := parseFloat(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid level: %w", errBadRequest, err)
	}
	return model.Level(f).Ptr(), nil
}

func parseBBOX(bboxParam string) (orb.Bound, error) {
	parts := strings.Split(bboxParam, ",")
	if len(parts) != 4 && len(parts) != 5 {
		return orb.Bound{}, errors.New("expected comma-separated values: x1,y1,x2,y2[,EPSG:4326]")
	}
	var v [4]float64
	for i, name := range []string{"x1", "y1", "x2", "y2"} {
		f, err := parseFloat(parts[i])
		if err != nil {
			return orb.Bound{}, fmt.Errorf("%s: %w", name, err)
		}
		v[i] = f
	}
	if len(parts) == 5 {
		srid := strings.ToUpper(strings.TrimSpace(parts[4]))
		if srid != "EPSG:4326" {
			return orb.Bound{}, fmt.Errorf("only EPSG:4326 is supported (got %q)", srid)
		}
	}
	xMin, yMin, xMax, yMax := v[0], v[1], v[2], v[3]
	if !(xMin >= -180 && xMin <= 180 && xMax >= -180 && xMax <= 180) {
		return orb.Bound{}, errors.New("longitude must be in [-180,180]")
	}
	if !(yMin >= -90 && yMin <= 90 && yMax >= -90 && yMax <= 90) {
		return orb.Bound{}, errors.New("latitude must be in [-90,90]")
	}
	if xMax <= xMin || yMax <= yMin {
		return orb.Bound{}, errors.New("coordinates must satisfy x2>x1 and y2>y1")
	}
	return orb.Bound{Min: orb.Point{xMin, yMin}, Max: orb.Point{xMax, yMax}}, nil
}

func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	return f, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, session.ErrInvalidGeoJSON):
		return http.StatusBadRequest
	case errors.Is(err, indoor.ErrDuplicateMap):
		return http.StatusConflict
	case errors.Is(err, indoor.ErrUnknownMap), errors.Is(err, indoor.ErrUnknownLayer):
		return http.StatusNotFound
	case errors.Is(err, levels.ErrEmptyLevelRange), errors.Is(err, levels.ErrNoGeometry):
		return http.StatusUnprocessableEntity
	case errors.Is(err, indoor.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusOf(err))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
