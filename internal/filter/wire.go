package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Parse converts the wire array form into a predicate tree. Absent filters
// parse to ["all"]; unknown operators are preserved as Opaque.
func Parse(raw json.RawMessage) (Expr, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return MatchAll(), nil
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(trimmed, &parts); err != nil {
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("parse filter: %w", err)
		}
		// literal true/false and friends
		return Opaque{Raw: clone(trimmed)}, nil
	}
	return parseParts(trimmed, parts)
}

func parseParts(raw json.RawMessage, parts []json.RawMessage) (Expr, error) {
	if len(parts) == 0 {
		return Opaque{Raw: clone(raw)}, nil
	}
	var op string
	if err := json.Unmarshal(parts[0], &op); err != nil {
		return Opaque{Raw: clone(raw)}, nil
	}
	args := parts[1:]

	switch op {
	case "all", "any":
		children := make([]Expr, 0, len(args))
		for _, a := range args {
			c, err := Parse(a)
			if err != nil {
				return nil, err
			}
			children = append(children, c)
		}
		if op == "all" {
			return All{Args: children}, nil
		}
		return Any{Args: children}, nil

	case "!":
		if len(args) != 1 {
			return Opaque{Raw: clone(raw)}, nil
		}
		c, err := Parse(args[0])
		if err != nil {
			return nil, err
		}
		return Not{Arg: c}, nil

	case "has":
		var key string
		if len(args) != 1 || json.Unmarshal(args[0], &key) != nil {
			return Opaque{Raw: clone(raw)}, nil
		}
		return Has{Key: key}, nil

	case "==":
		var key string
		if len(args) != 2 || json.Unmarshal(args[0], &key) != nil {
			// expression-form comparisons stay opaque
			return Opaque{Raw: clone(raw)}, nil
		}
		var v any
		if err := json.Unmarshal(args[1], &v); err != nil {
			return nil, fmt.Errorf("parse == value: %w", err)
		}
		if _, isArr := v.([]any); isArr {
			return Opaque{Raw: clone(raw)}, nil
		}
		return Eq{Key: key, Value: v}, nil

	case "inrange":
		if len(args) != 2 && len(args) != 3 {
			return Opaque{Raw: clone(raw)}, nil
		}
		var getter []string
		if json.Unmarshal(args[0], &getter) != nil || len(getter) != 2 || getter[0] != "get" {
			return Opaque{Raw: clone(raw)}, nil
		}
		var lo, hi float64
		if json.Unmarshal(args[1], &lo) != nil {
			return Opaque{Raw: clone(raw)}, nil
		}
		hi = lo
		if len(args) == 3 && json.Unmarshal(args[2], &hi) != nil {
			return Opaque{Raw: clone(raw)}, nil
		}
		return InRange{Key: getter[1], Lo: lo, Hi: hi}, nil

	default:
		return Opaque{Raw: clone(raw)}, nil
	}
}

// Marshal converts a predicate tree back into the wire array form.
func Marshal(e Expr) (json.RawMessage, error) {
	v, err := toWire(e)
	if err != nil {
		return nil, err
	}
	// comparison operators must stay readable on the wire
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("marshal filter: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func toWire(e Expr) (any, error) {
	switch n := e.(type) {
	case nil:
		return []any{"all"}, nil
	case All:
		return withArgs("all", n.Args)
	case Any:
		return withArgs("any", n.Args)
	case Not:
		c, err := toWire(n.Arg)
		if err != nil {
			return nil, err
		}
		return []any{"!", c}, nil
	case Has:
		return []any{"has", n.Key}, nil
	case Eq:
		return []any{"==", n.Key, n.Value}, nil
	case InRange:
		out := []any{"inrange", []any{"get", n.Key}, n.Lo}
		if n.Hi != n.Lo {
			out = append(out, n.Hi)
		}
		return out, nil
	case Opaque:
		return n.Raw, nil
	default:
		return nil, fmt.Errorf("unknown filter node %T", e)
	}
}

func withArgs(op string, args []Expr) (any, error) {
	out := make([]any, 0, len(args)+1)
	out = append(out, op)
	for _, a := range args {
		c, err := toWire(a)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Equal reports whether two trees serialize identically.
func Equal(a, b Expr) bool {
	ba, errA := Marshal(a)
	bb, errB := Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ba, bb)
}

func clone(b []byte) json.RawMessage {
	return append(json.RawMessage(nil), b...)
}
