package evs

import "strings"

var (
	anyRange  = Range{}
	noneRange = Range{none: true}
)

// bound is one endpoint of a Range.
type bound struct {
	v   Version
	inc bool
}

// Range is a structured requirement over Version space: an optional lower
// bound and an optional upper bound, each inclusive or exclusive. The zero
// value admits every version.
//
// A range whose lower bound (inclusive) equals its upper bound (exclusive)
// denotes exactly that one version; it is normalized to the doubly-inclusive
// form at construction.
type Range struct {
	lo, hi *bound
	none   bool
}

// AnyRange returns the unbounded range, admitting every version.
func AnyRange() Range {
	return anyRange
}

// NoneRange returns the empty range, admitting no version.
func NoneRange() Range {
	return noneRange
}

// NewRangeGTE returns the range admitting v and everything above it.
func NewRangeGTE(v Version) Range {
	return Range{lo: &bound{v: v, inc: true}}
}

// NewRangeGT returns the range admitting everything strictly above v. It is
// normalized to the inclusive form at the next patch step, so every lower
// bound in the system is inclusive.
func NewRangeGT(v Version) Range {
	return NewRangeGTE(nextPatch(v))
}

// NewRangeLT returns the range admitting everything strictly below v.
func NewRangeLT(v Version) Range {
	return Range{hi: &bound{v: v}}
}

// NewRangeLTE returns the range admitting v and everything below it,
// normalized to the exclusive form at the next patch step.
func NewRangeLTE(v Version) Range {
	return NewRangeLT(nextPatch(v))
}

// NewRangeExact returns the range admitting exactly v.
func NewRangeExact(v Version) Range {
	return Range{
		lo: &bound{v: v, inc: true},
		hi: &bound{v: v, inc: true},
	}
}

// NewRange constructs a doubly-bounded range. Either bound version may be
// empty to leave that side unbounded. Bounds that admit no version at all
// (lower above upper, or equal-but-exclusive) are rejected with a
// *BadRangeFailure - malformed requirements must never reach the solver.
func NewRange(lower Version, lowerInc bool, upper Version, upperInc bool) (Range, error) {
	var r Range
	if !lower.Empty() {
		if !lowerInc {
			lower = nextPatch(lower)
		}
		r.lo = &bound{v: lower, inc: true}
	}
	if !upper.Empty() {
		if upperInc {
			upper = nextPatch(upper)
		}
		r.hi = &bound{v: upper}
	}
	r = r.normalize()
	if r.none {
		return noneRange, &BadRangeFailure{Lower: lower, Upper: upper}
	}
	return r, nil
}

// normalize applies the single-version rule and detects emptiness.
func (r Range) normalize() Range {
	if r.none || r.lo == nil || r.hi == nil {
		return r
	}
	switch c := r.lo.v.Compare(r.hi.v); {
	case c > 0:
		return noneRange
	case c == 0:
		if r.lo.inc && !r.hi.inc {
			// [v, v) denotes exactly v.
			return NewRangeExact(r.lo.v)
		}
		if !r.lo.inc || !r.hi.inc {
			return noneRange
		}
	}
	return r
}

// IsAny indicates whether r admits every version.
func (r Range) IsAny() bool {
	return !r.none && r.lo == nil && r.hi == nil
}

// IsNone indicates whether r admits no version.
func (r Range) IsNone() bool {
	return r.none
}

// Exact returns the single version r denotes, if it denotes exactly one.
func (r Range) Exact() (Version, bool) {
	if r.none || r.lo == nil || r.hi == nil {
		return emptyVersion, false
	}
	if r.lo.inc && r.hi.inc && r.lo.v.Equal(r.hi.v) {
		return r.lo.v, true
	}
	return emptyVersion, false
}

// Matches indicates whether v is admitted by r.
func (r Range) Matches(v Version) bool {
	if r.none || v.Empty() {
		return false
	}
	if r.lo != nil {
		if c := v.Compare(r.lo.v); c < 0 || (c == 0 && !r.lo.inc) {
			return false
		}
	}
	if r.hi != nil {
		if c := v.Compare(r.hi.v); c > 0 || (c == 0 && !r.hi.inc) {
			return false
		}
	}
	return true
}

// MatchesAny indicates whether the intersection of r with o could admit any
// version.
func (r Range) MatchesAny(o Range) bool {
	return !r.Intersect(o).none
}

// Intersect computes the intersection of r with o. The result may be the
// empty range; unlike construction, that is not an error here, since an empty
// intersection is an ordinary solver-internal signal.
func (r Range) Intersect(o Range) Range {
	if r.none || o.none {
		return noneRange
	}
	out := Range{lo: tighterLow(r.lo, o.lo), hi: tighterHigh(r.hi, o.hi)}
	return out.normalize()
}

// tighterLow picks the more restrictive of two lower bounds.
func tighterLow(a, b *bound) *bound {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	switch c := a.v.Compare(b.v); {
	case c > 0:
		return a
	case c < 0:
		return b
	case !a.inc:
		return a
	default:
		return b
	}
}

// tighterHigh picks the more restrictive of two upper bounds.
func tighterHigh(a, b *bound) *bound {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	switch c := a.v.Compare(b.v); {
	case c < 0:
		return a
	case c > 0:
		return b
	case !a.inc:
		return a
	default:
		return b
	}
}

func (r Range) String() string {
	if r.none {
		return "none"
	}
	if r.lo == nil && r.hi == nil {
		return "*"
	}
	if v, ok := r.Exact(); ok {
		return "==" + v.String()
	}
	var parts []string
	if r.lo != nil {
		if r.lo.inc {
			parts = append(parts, ">="+r.lo.v.String())
		} else {
			parts = append(parts, ">"+r.lo.v.String())
		}
	}
	if r.hi != nil {
		if r.hi.inc {
			parts = append(parts, "<="+r.hi.v.String())
		} else {
			parts = append(parts, "<"+r.hi.v.String())
		}
	}
	return strings.Join(parts, " ")
}
