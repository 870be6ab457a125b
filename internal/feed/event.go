// Package feed defines the messages that register indoor maps and move the
// camera of a running session.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/indoor-levels/internal/core/model"
)

const (
	OpAdd    = "add"
	OpRemove = "remove"
	OpCamera = "camera"
	OpLevel  = "level"
)

var ErrInvalidEvent = errors.New("invalid feed event")

type Event struct {
	Version int       `json:"version"`
	Op      string    `json:"op"`
	TS      time.Time `json:"ts"`
	// Seq orders events about the same map; zero disables replay checks.
	Seq uint64 `json:"seq,omitempty"`

	MapID         string          `json:"map_id,omitempty"`
	GeoJSON       json.RawMessage `json:"geojson,omitempty"`
	BeforeLayerID string          `json:"before_layer_id,omitempty"`
	LayersToHide  []string        `json:"layers_to_hide,omitempty"`

	Camera *Camera `json:"camera,omitempty"`
	// Level is the floor for OpLevel; absent clears it.
	Level *float64 `json:"level,omitempty"`
}

type Camera struct {
	Zoom float64 `json:"zoom"`
	BBox BBox    `json:"bbox"`
}

type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (b BBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.X1, b.Y1}, Max: orb.Point{b.X2, b.Y2}}
}

func (c Camera) Model() model.Camera {
	return model.Camera{Zoom: c.Zoom, Bounds: c.BBox.Bound()}
}

// Decode parses and validates one message value.
func Decode(b []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: json decode: %w", ErrInvalidEvent, err)
	}
	if err := ev.Validate(); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return ev, nil
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	switch e.Op {
	case OpAdd:
		if len(e.GeoJSON) == 0 {
			return fmt.Errorf("geojson is required for add")
		}
	case OpRemove:
		if strings.TrimSpace(e.MapID) == "" {
			return fmt.Errorf("map_id is required for remove")
		}
	case OpCamera:
		if e.Camera == nil {
			return fmt.Errorf("camera is required for camera")
		}
		return e.Camera.BBox.validate()
	case OpLevel:
	default:
		return fmt.Errorf("op must be add|remove|camera|level")
	}
	return nil
}

func (b BBox) validate() error {
	if !(b.X1 >= -180 && b.X1 <= 180 && b.X2 >= -180 && b.X2 <= 180) {
		return fmt.Errorf("bbox longitude out of range")
	}
	if !(b.Y1 >= -90 && b.Y1 <= 90 && b.Y2 >= -90 && b.Y2 <= 90) {
		return fmt.Errorf("bbox latitude out of range")
	}
	if !(b.X2 >= b.X1 && b.Y2 >= b.Y1) {
		return fmt.Errorf("bbox must satisfy x2>=x1 and y2>=y1")
	}
	return nil
}

// DedupeKey groups events whose Seq must increase.
func (e Event) DedupeKey() string {
	switch e.Op {
	case OpCamera, OpLevel:
		return e.Op
	default:
		return "map:" + e.MapID
	}
}
