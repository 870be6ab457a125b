package feed

import (
	"errors"
	"testing"
	"time"
)

func mustTS() time.Time { return time.Date(2025, 10, 26, 12, 30, 45, 0, time.UTC) }

func TestValidate_PerOp(t *testing.T) {
	cam := &Camera{Zoom: 18, BBox: BBox{X1: 18.07, Y1: 59.33, X2: 18.08, Y2: 59.34}}
	tests := []struct {
		name string
		ev   Event
		ok   bool
	}{
		{"add", Event{Version: 1, Op: OpAdd, TS: mustTS(), GeoJSON: []byte(`{}`)}, true},
		{"add without geojson", Event{Version: 1, Op: OpAdd, TS: mustTS()}, false},
		{"remove", Event{Version: 1, Op: OpRemove, TS: mustTS(), MapID: "mall"}, true},
		{"remove without id", Event{Version: 1, Op: OpRemove, TS: mustTS(), MapID: " "}, false},
		{"camera", Event{Version: 1, Op: OpCamera, TS: mustTS(), Camera: cam}, true},
		{"camera inverted", Event{Version: 1, Op: OpCamera, TS: mustTS(), Camera: &Camera{BBox: BBox{X1: 2, X2: 1}}}, false},
		{"camera out of range", Event{Version: 1, Op: OpCamera, TS: mustTS(), Camera: &Camera{BBox: BBox{X1: 170, X2: 190}}}, false},
		{"level clear", Event{Version: 1, Op: OpLevel, TS: mustTS()}, true},
		{"unknown op", Event{Version: 1, Op: "upsert", TS: mustTS()}, false},
		{"bad version", Event{Version: 2, Op: OpLevel, TS: mustTS()}, false},
		{"missing ts", Event{Version: 1, Op: OpLevel}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.ev.Validate()
			if (err == nil) != tc.ok {
				t.Fatalf("err=%v ok=%v", err, tc.ok)
			}
		})
	}
}

func TestDecode_WrapsErrInvalidEvent(t *testing.T) {
	if _, err := Decode([]byte(`{"version":`)); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("err=%v want ErrInvalidEvent", err)
	}
	if _, err := Decode([]byte(`{"version":1,"op":"level"}`)); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("err=%v want ErrInvalidEvent", err)
	}
	ev, err := Decode([]byte(`{"version":1,"op":"level","ts":"2025-10-26T12:30:45Z","level":-1.5}`))
	if err != nil || ev.Level == nil || *ev.Level != -1.5 {
		t.Fatalf("ev=%+v err=%v", ev, err)
	}
}

func TestCamera_Model(t *testing.T) {
	c := Camera{Zoom: 19, BBox: BBox{X1: 1, Y1: 2, X2: 3, Y2: 4}}.Model()
	if c.Zoom != 19 || c.Bounds.Min.X() != 1 || c.Bounds.Max.Y() != 4 {
		t.Fatalf("camera=%+v", c)
	}
}
