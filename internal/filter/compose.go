package filter

import "github.com/mohammed-shakir/indoor-levels/internal/core/model"

// LevelKey is the feature property matched by the level predicate.
const LevelKey = "level"

// Compose layers the level-membership predicate over original. Callers pass
// the stored original filter, never a previously composed one; original is
// returned as-is when level is nil.
func Compose(original Expr, level *model.Level) Expr {
	if level == nil {
		return original
	}
	base := original
	if base == nil {
		base = MatchAll()
	}
	return All{Args: []Expr{base, Membership(*level)}}
}

// Membership keeps unleveled features and features on (or spanning) level.
func Membership(level model.Level) Expr {
	return Any{Args: []Expr{
		Not{Arg: Has{Key: LevelKey}},
		InRange{Key: LevelKey, Lo: float64(level), Hi: float64(level)},
	}}
}
