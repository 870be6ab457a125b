package levels

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/indoor-levels/internal/core/model"
)

func props(level any) geojson.Properties {
	return geojson.Properties{"level": level}
}

func TestExtractLevel_Tokens(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want Value
		ok   bool
	}{
		{"scalar", "3", Value{Min: 3, Max: 3}, true},
		{"negative", "-2", Value{Min: -2, Max: -2}, true},
		{"fractional", "0.5", Value{Min: 0.5, Max: 0.5}, true},
		{"json number", 4.0, Value{Min: 4, Max: 4}, true},
		{"range reversed", "2;1", Value{Min: 1, Max: 2, Range: true}, true},
		{"range spaced", " -1 ; 3 ", Value{Min: -1, Max: 3, Range: true}, true},
		{"three tokens", "1;2;3", Value{}, false},
		{"garbage", "abc", Value{}, false},
		{"half garbage range", "1;x", Value{}, false},
		{"empty", "", Value{}, false},
		{"bool", true, Value{}, false},
		{"nan", "NaN", Value{}, false},
		{"inf", "inf", Value{}, false},
		{"negative infinity", "-Infinity", Value{}, false},
		{"hex float", "0x1p3", Value{}, false},
		{"nan in range", "1;nan", Value{}, false},
		{"exponent", "1e1", Value{Min: 10, Max: 10}, true},
		{"json nan", math.NaN(), Value{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractLevel(props(tc.in))
			if ok != tc.ok {
				t.Fatalf("ok=%v want %v", ok, tc.ok)
			}
			if got != tc.want {
				t.Fatalf("got=%+v want %+v", got, tc.want)
			}
		})
	}
}

func TestExtractLevel_MissingProperty(t *testing.T) {
	if _, ok := ExtractLevel(geojson.Properties{"name": "hall"}); ok {
		t.Fatalf("expected no level for feature without property")
	}
	if _, ok := ExtractLevel(nil); ok {
		t.Fatalf("expected no level for nil properties")
	}
}

func leveled(g orb.Geometry, level string) *geojson.Feature {
	f := geojson.NewFeature(g)
	f.Properties["level"] = level
	return f
}

func TestExtractLevelsRangeAndBounds_WidensOverAllGeometries(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(leveled(orb.Point{2.0, 48.0}, "0"))
	fc.Append(leveled(orb.LineString{{2.1, 48.1}, {2.2, 48.3}}, "-2"))
	fc.Append(leveled(orb.Polygon{{{1.9, 47.9}, {2.0, 47.9}, {2.0, 48.0}, {1.9, 47.9}}}, "4;5"))
	fc.Append(leveled(orb.MultiPolygon{{{{2.5, 48.0}, {2.6, 48.0}, {2.6, 48.1}, {2.5, 48.0}}}}, "1"))
	// unleveled features must not widen the bounds
	far := geojson.NewFeature(orb.Point{50, 50})
	fc.Append(far)
	fc.Append(leveled(orb.Point{60, 60}, "bogus"))

	rng, bound, err := ExtractLevelsRangeAndBounds(fc)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if want := (model.LevelRange{Min: -2, Max: 5}); rng != want {
		t.Fatalf("range=%v want %v", rng, want)
	}
	want := orb.Bound{Min: orb.Point{1.9, 47.9}, Max: orb.Point{2.6, 48.3}}
	if bound != want {
		t.Fatalf("bound=%v want %v", bound, want)
	}
}

func TestExtractLevelsRangeAndBounds_EmptyIsDistinctFromLevelZero(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{1, 1}))
	fc.Append(leveled(orb.Point{1, 1}, "1;2;3"))

	if _, _, err := ExtractLevelsRangeAndBounds(fc); !errors.Is(err, ErrEmptyLevelRange) {
		t.Fatalf("err=%v want ErrEmptyLevelRange", err)
	}

	zero := geojson.NewFeatureCollection()
	zero.Append(leveled(orb.Point{1, 1}, "0"))
	rng, _, err := ExtractLevelsRangeAndBounds(zero)
	if err != nil {
		t.Fatalf("single level 0 building must not fail: %v", err)
	}
	if rng != (model.LevelRange{}) {
		t.Fatalf("range=%v want [0,0]", rng)
	}
}

func TestExtractLevelsRangeAndBounds_NonNumericTokensAreDropped(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(leveled(orb.Point{0, 0}, "1"))
	fc.Append(leveled(orb.Point{0, 0}, "nan"))
	fc.Append(leveled(orb.Point{0, 0}, "inf"))
	fc.Append(leveled(orb.Point{0, 0}, "3"))

	rng, _, err := ExtractLevelsRangeAndBounds(fc)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if want := (model.LevelRange{Min: 1, Max: 3}); rng != want {
		t.Fatalf("range=%v want %v", rng, want)
	}
}

func TestExtractLevelsRangeAndBounds_EmptyGeometryAddsNoBounds(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(leveled(orb.LineString{}, "0"))
	fc.Append(leveled(orb.Point{13.4, 52.5}, "1"))

	rng, bound, err := ExtractLevelsRangeAndBounds(fc)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if want := (model.LevelRange{Min: 0, Max: 1}); rng != want {
		t.Fatalf("range=%v want %v", rng, want)
	}
	if want := (orb.Bound{Min: orb.Point{13.4, 52.5}, Max: orb.Point{13.4, 52.5}}); bound != want {
		t.Fatalf("bound=%v want %v", bound, want)
	}

	bare := geojson.NewFeatureCollection()
	bare.Append(leveled(orb.LineString{}, "0"))
	nogeom := geojson.NewFeature(nil)
	nogeom.Properties["level"] = "1"
	bare.Append(nogeom)
	if _, _, err := ExtractLevelsRangeAndBounds(bare); !errors.Is(err, ErrNoGeometry) {
		t.Fatalf("err=%v want ErrNoGeometry", err)
	}
}

func TestRangeOf(t *testing.T) {
	if got := RangeOf(nil); got != nil {
		t.Fatalf("expected nil range, got %v", got)
	}
	fs := []*geojson.Feature{
		leveled(orb.Point{0, 0}, "3"),
		leveled(orb.Point{0, 0}, "-1;0"),
		geojson.NewFeature(orb.Point{0, 0}),
	}
	got := RangeOf(fs)
	if got == nil || *got != (model.LevelRange{Min: -1, Max: 3}) {
		t.Fatalf("got=%v want [-1,3]", got)
	}
}
