package area

// Role is the member role a segment's origin way carried: "outer",
// "inner", or unknown (the single-way entry point defaults to outer).
type Role int

const (
	RoleUnknown Role = iota
	RoleOuter
	RoleInner
)

func (r Role) String() string {
	switch r {
	case RoleOuter:
		return "outer"
	case RoleInner:
		return "inner"
	default:
		return "unknown"
	}
}

// Segment is a directed NodeRef pair, canonically oriented so that
// First is lexicographically smaller than Second by (x, y). This makes
// two geometrically identical segments extracted from different ways
// (a shared boundary) compare equal regardless of the direction either
// way was drawn in.
type Segment struct {
	First, Second NodeRef
	WayID         int64
	Role          Role
}

// newSegment builds a canonically oriented segment from two endpoints.
// Zero-length segments (same location) must be filtered by the caller;
// newSegment does not special-case them.
func newSegment(a, b NodeRef, wayID int64, role Role) Segment {
	if locLess(b.Loc, a.Loc) {
		a, b = b, a
	}
	return Segment{First: a, Second: b, WayID: wayID, Role: role}
}

func locLess(a, b Location) bool {
	return a.Less(b)
}

// equalGeometry reports whether two segments span the same two points,
// ignoring node ids, way, and role — the equality spec.md §3 requires
// for sort-based dedup.
func (s Segment) equalGeometry(o Segment) bool {
	return s.First.Loc == o.First.Loc && s.Second.Loc == o.Second.Loc
}

// less implements the sort order of spec.md §4.2: lexicographic on
// (first.x, first.y, second.x, second.y).
func (s Segment) less(o Segment) bool {
	if s.First.Loc.X != o.First.Loc.X {
		return s.First.Loc.X < o.First.Loc.X
	}
	if s.First.Loc.Y != o.First.Loc.Y {
		return s.First.Loc.Y < o.First.Loc.Y
	}
	if s.Second.Loc.X != o.Second.Loc.X {
		return s.Second.Loc.X < o.Second.Loc.X
	}
	return s.Second.Loc.Y < o.Second.Loc.Y
}

// swapEnds flips which endpoint is First/Second without re-canonicalizing
// — used when a segment is appended/prepended to a ring in the opposite
// of its stored orientation.
func (s Segment) swapEnds() Segment {
	s.First, s.Second = s.Second, s.First
	return s
}

// roleOuter/roleInner mirror the original's segment.role_outer()/
// role_inner() used by the role audit in classify.go.
func (s Segment) roleOuter() bool { return s.Role == RoleOuter }
func (s Segment) roleInner() bool { return s.Role == RoleInner }

// outsideXRange reports whether s2 starts strictly to the right of s1's
// rightmost point, the early-exit condition for the sorted intersection
// scan (spec.md §4.2).
func outsideXRange(s2, s1 Segment) bool {
	return int64(s2.First.Loc.X) > int64(s1.Second.Loc.X)
}

// yRangeOverlap reports whether the two segments' y-extents overlap,
// the cheap pre-filter before the exact intersection computation.
func yRangeOverlap(s1, s2 Segment) bool {
	lo1, hi1 := minMax(s1.First.Loc.Y, s1.Second.Loc.Y)
	lo2, hi2 := minMax(s2.First.Loc.Y, s2.Second.Loc.Y)
	return lo1 <= hi2 && lo2 <= hi1
}

func minMax(a, b int32) (int32, int32) {
	if a < b {
		return a, b
	}
	return b, a
}

// toLeftOf reports whether segment s crosses the leftward horizontal ray
// cast from p — the test the ray-casting classifier (spec.md §4.4) counts
// to determine inner/outer nesting. s "passes to the left of" p at p's y
// if s straddles p's y (one endpoint strictly above, the other at or
// below) and s's x at that y is less than p.x.
func (s Segment) toLeftOf(p Location) bool {
	y1, y2 := s.First.Loc.Y, s.Second.Loc.Y
	if y1 == y2 {
		return false
	}
	lo, hi := y1, y2
	x1, x2 := s.First.Loc.X, s.Second.Loc.X
	if lo > hi {
		lo, hi = hi, lo
		x1, x2 = x2, x1
	}
	if p.Y < lo || p.Y >= hi {
		return false
	}
	// x at p.y along the line from (x1,lo) to (x2,hi), compared against
	// p.x using cross-multiplication to stay in exact integer math.
	// crossing x * (hi-lo) = x1*(hi-lo) + (x2-x1)*(p.y-lo)
	dy := int64(hi) - int64(lo)
	if dy == 0 {
		return false
	}
	xAtY := int64(x1)*dy + (int64(x2)-int64(x1))*(int64(p.Y)-int64(lo))
	return xAtY < int64(p.X)*dy
}

// intersect computes the proper interior intersection point of two
// segments, if one exists. Endpoints that merely touch (a shared
// vertex) do not count. Collinear overlap is reported by the caller as
// a non-fatal "overlap" event, not returned here as an intersection
// point (spec.md §4.2, Open Question #1).
//
// All arithmetic is done in int64 to hold the cross products of two
// int32 fixed-point extents without overflow.
func (s1 Segment) intersect(s2 Segment) (Location, bool) {
	x1, y1 := int64(s1.First.Loc.X), int64(s1.First.Loc.Y)
	x2, y2 := int64(s1.Second.Loc.X), int64(s1.Second.Loc.Y)
	x3, y3 := int64(s2.First.Loc.X), int64(s2.First.Loc.Y)
	x4, y4 := int64(s2.Second.Loc.X), int64(s2.Second.Loc.Y)

	d := (x2-x1)*(y4-y3) - (y2-y1)*(x4-x3)
	if d == 0 {
		// Parallel or collinear; collinear overlap is handled by the
		// caller comparing the segments directly, not here.
		return Location{}, false
	}

	tNum := (x3-x1)*(y4-y3) - (y3-y1)*(x4-x3)
	uNum := (x3-x1)*(y2-y1) - (y3-y1)*(x2-x1)

	// t, u must lie strictly in (0, 1) for a proper interior crossing;
	// touching at a shared vertex (t or u == 0 or 1) is not fatal.
	if d > 0 {
		if tNum <= 0 || tNum >= d || uNum <= 0 || uNum >= d {
			return Location{}, false
		}
	} else {
		if tNum >= 0 || tNum <= d || uNum >= 0 || uNum <= d {
			return Location{}, false
		}
	}

	ix := x1 + (x2-x1)*tNum/d
	iy := y1 + (y2-y1)*tNum/d
	return Location{X: int32(ix), Y: int32(iy)}, true
}
