package memory

import (
	"bytes"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/indoor-levels/internal/filter"
	"github.com/mohammed-shakir/indoor-levels/internal/levels"
)

// Match evaluates a predicate tree against feature properties. Opaque
// expressions other than literal false match everything.
func Match(e filter.Expr, props geojson.Properties) bool {
	switch n := e.(type) {
	case nil:
		return true
	case filter.All:
		for _, a := range n.Args {
			if !Match(a, props) {
				return false
			}
		}
		return true
	case filter.Any:
		for _, a := range n.Args {
			if Match(a, props) {
				return true
			}
		}
		return false
	case filter.Not:
		return !Match(n.Arg, props)
	case filter.Has:
		_, ok := props[n.Key]
		return ok
	case filter.Eq:
		return equalValue(props[n.Key], n.Value)
	case filter.InRange:
		v, ok := levels.ExtractLevel(geojson.Properties{levels.PropertyKey: props[n.Key]})
		if !ok {
			return false
		}
		// a "lo;hi" feature matches when its span overlaps the queried one
		return float64(v.Min) <= n.Hi && float64(v.Max) >= n.Lo
	case filter.Opaque:
		return !bytes.Equal(bytes.TrimSpace(n.Raw), []byte("false"))
	default:
		return false
	}
}

func equalValue(got, want any) bool {
	if g, ok := number(got); ok {
		w, ok := number(want)
		return ok && g == w
	}
	switch g := got.(type) {
	case string:
		w, ok := want.(string)
		return ok && g == w
	case bool:
		w, ok := want.(bool)
		return ok && g == w
	case nil:
		return want == nil
	default:
		return false
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
