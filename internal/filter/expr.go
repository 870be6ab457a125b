// Package filter models the style filter DSL as a predicate tree and composes
// level-membership predicates onto existing filters.
package filter

import "encoding/json"

// Expr is a node of the predicate tree. The set of node kinds is closed.
type Expr interface {
	isExpr()
}

// All is ["all", args...]. An empty All matches everything.
type All struct{ Args []Expr }

// Any is ["any", args...].
type Any struct{ Args []Expr }

// Not is ["!", arg].
type Not struct{ Arg Expr }

// Has is ["has", key].
type Has struct{ Key string }

// Eq is ["==", key, value].
type Eq struct {
	Key   string
	Value any
}

// InRange is ["inrange", ["get", key], lo] or ["inrange", ["get", key], lo, hi].
type InRange struct {
	Key    string
	Lo, Hi float64
}

// Opaque keeps any other expression verbatim.
type Opaque struct{ Raw json.RawMessage }

func (All) isExpr()     {}
func (Any) isExpr()     {}
func (Not) isExpr()     {}
func (Has) isExpr()     {}
func (Eq) isExpr()      {}
func (InRange) isExpr() {}
func (Opaque) isExpr()  {}

// MatchAll is the default filter of a layer that has none.
func MatchAll() Expr { return All{} }
