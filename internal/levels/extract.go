// Package levels parses floor levels from feature properties and aggregates
// level ranges and bounds over feature collections.
package levels

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/indoor-levels/internal/core/model"
)

// PropertyKey is the feature property holding the level.
const PropertyKey = "level"

var (
	ErrEmptyLevelRange = errors.New("no feature carries a usable level")
	ErrNoGeometry      = errors.New("no leveled feature carries a geometry")
)

// Value is a parsed level property: a scalar or a "lo;hi" range.
type Value struct {
	Min, Max model.Level
	Range    bool
}

func (v Value) Contains(l model.Level) bool {
	return l >= v.Min && l <= v.Max
}

// ExtractLevel reads the level property of a feature. Malformed values are
// reported as not ok rather than as errors.
func ExtractLevel(props geojson.Properties) (Value, bool) {
	raw, ok := props[PropertyKey]
	if !ok || raw == nil {
		return Value{}, false
	}
	switch v := raw.(type) {
	case float64:
		if !finite(v) {
			return Value{}, false
		}
		return scalar(v), true
	case int:
		return scalar(float64(v)), true
	case int64:
		return scalar(float64(v)), true
	case string:
		return ParseLevel(v)
	default:
		return Value{}, false
	}
}

// ParseLevel parses "3", "-1", "0.5" or "2;1".
func ParseLevel(s string) (Value, bool) {
	tokens := strings.Split(s, ";")
	switch len(tokens) {
	case 1:
		f, ok := parseToken(tokens[0])
		if !ok {
			return Value{}, false
		}
		return scalar(f), true
	case 2:
		a, okA := parseToken(tokens[0])
		b, okB := parseToken(tokens[1])
		if !okA || !okB {
			return Value{}, false
		}
		return Value{
			Min:   model.Level(min(a, b)),
			Max:   model.Level(max(a, b)),
			Range: true,
		}, true
	default:
		return Value{}, false
	}
}

func parseToken(tok string) (float64, bool) {
	tok = strings.TrimSpace(tok)
	if tok == "" || !decimal(tok) {
		return 0, false
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil || !finite(f) {
		return 0, false
	}
	return f, true
}

// decimal rejects the hex, NaN and Inf spellings ParseFloat also accepts.
func decimal(tok string) bool {
	for _, c := range tok {
		switch {
		case c >= '0' && c <= '9', c == '.', c == '-', c == '+', c == 'e', c == 'E':
		default:
			return false
		}
	}
	return true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func scalar(f float64) Value {
	return Value{Min: model.Level(f), Max: model.Level(f)}
}

// ExtractLevelsRangeAndBounds widens the level range and the bounds over every
// leveled feature. Features without a usable level contribute nothing, and
// empty geometries contribute a level but no bounds.
func ExtractLevelsRangeAndBounds(fc *geojson.FeatureCollection) (model.LevelRange, orb.Bound, error) {
	if fc == nil {
		return model.LevelRange{}, orb.Bound{}, ErrEmptyLevelRange
	}

	var (
		rng       model.LevelRange
		bound     orb.Bound
		haveLevel bool
		haveBound bool
	)
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		v, ok := ExtractLevel(f.Properties)
		if !ok {
			continue
		}
		if !haveLevel {
			rng = model.LevelRange{Min: v.Min, Max: v.Max}
			haveLevel = true
		} else {
			rng.Min = min(rng.Min, v.Min)
			rng.Max = max(rng.Max, v.Max)
		}

		if f.Geometry == nil {
			continue
		}
		// orb flattens every geometry kind to its coordinate envelope
		b := f.Geometry.Bound()
		if b.IsEmpty() {
			continue
		}
		if !haveBound {
			bound = b
			haveBound = true
		} else {
			bound = bound.Union(b)
		}
	}

	if !haveLevel {
		return model.LevelRange{}, orb.Bound{}, ErrEmptyLevelRange
	}
	if !haveBound {
		return model.LevelRange{}, orb.Bound{}, ErrNoGeometry
	}
	return rng, bound, nil
}

// RangeOf returns the level range spanned by features, or nil when none is leveled.
func RangeOf(features []*geojson.Feature) *model.LevelRange {
	var out *model.LevelRange
	for _, f := range features {
		if f == nil {
			continue
		}
		v, ok := ExtractLevel(f.Properties)
		if !ok {
			continue
		}
		if out == nil {
			out = &model.LevelRange{Min: v.Min, Max: v.Max}
			continue
		}
		out.Min = min(out.Min, v.Min)
		out.Max = max(out.Max, v.Max)
	}
	return out
}
