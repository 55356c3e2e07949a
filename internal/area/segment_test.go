package area

import "testing"

func loc(x, y int32) Location { return Location{X: x, Y: y} }

func nr(id int64, x, y int32) NodeRef { return NodeRef{ID: id, Loc: loc(x, y)} }

func TestNewSegmentCanonicalOrientation(t *testing.T) {
	a := nr(1, 10, 0)
	b := nr(2, 0, 0)
	s := newSegment(a, b, 100, RoleOuter)
	if s.First.ID != 2 || s.Second.ID != 1 {
		t.Errorf("expected canonical orientation to put the smaller location first, got First=%d Second=%d", s.First.ID, s.Second.ID)
	}
}

func TestEqualGeometryIgnoresWayAndRole(t *testing.T) {
	s1 := newSegment(nr(1, 0, 0), nr(2, 10, 0), 100, RoleOuter)
	s2 := newSegment(nr(3, 0, 0), nr(4, 10, 0), 200, RoleInner)
	if !s1.equalGeometry(s2) {
		t.Errorf("expected segments at the same two points to compare geometrically equal")
	}
}

func TestSegmentLessOrdering(t *testing.T) {
	s1 := newSegment(nr(1, 0, 0), nr(2, 10, 0), 1, RoleOuter)
	s2 := newSegment(nr(3, 0, 1), nr(4, 10, 1), 1, RoleOuter)
	if !s1.less(s2) {
		t.Errorf("expected segment starting at lower y to sort first")
	}
	if s2.less(s1) {
		t.Errorf("less must not be symmetric for distinct segments")
	}
}

func TestToLeftOfCountsCrossingsNotTouches(t *testing.T) {
	// Vertical segment from (0,0) to (0,10): a horizontal ray cast
	// leftward from (5,5) crosses it.
	s := newSegment(nr(1, 0, 0), nr(2, 0, 10), 1, RoleOuter)
	if !s.toLeftOf(loc(5, 5)) {
		t.Errorf("expected segment to cross the ray at y=5")
	}
	// At the segment's own endpoint y, half-open range excludes the top.
	if s.toLeftOf(loc(5, 10)) {
		t.Errorf("expected no crossing exactly at the segment's top endpoint (half-open range)")
	}
	if !s.toLeftOf(loc(5, 0)) {
		t.Errorf("expected a crossing at the segment's bottom endpoint (half-open range)")
	}
	// Point to the left of the segment is never crossed.
	if s.toLeftOf(loc(-5, 5)) {
		t.Errorf("expected no crossing for a point left of the segment")
	}
}

func TestIntersectProperCrossing(t *testing.T) {
	s1 := newSegment(nr(1, 0, 0), nr(2, 10, 10), 1, RoleOuter)
	s2 := newSegment(nr(3, 0, 10), nr(4, 10, 0), 2, RoleOuter)
	at, ok := s1.intersect(s2)
	if !ok {
		t.Fatalf("expected an intersection")
	}
	if at.X != 5 || at.Y != 5 {
		t.Errorf("intersect() = %v, want (5,5)", at)
	}
}

func TestIntersectSharedEndpointIsNotFatal(t *testing.T) {
	s1 := newSegment(nr(1, 0, 0), nr(2, 10, 10), 1, RoleOuter)
	s2 := newSegment(nr(2, 10, 10), nr(3, 20, 0), 2, RoleOuter)
	if _, ok := s1.intersect(s2); ok {
		t.Errorf("segments that merely share an endpoint must not be reported as intersecting")
	}
}

func TestIntersectParallelNonOverlapping(t *testing.T) {
	s1 := newSegment(nr(1, 0, 0), nr(2, 10, 0), 1, RoleOuter)
	s2 := newSegment(nr(3, 0, 5), nr(4, 10, 5), 2, RoleOuter)
	if _, ok := s1.intersect(s2); ok {
		t.Errorf("parallel segments must never report an intersection")
	}
}

func TestOutsideXRangeAndYRangeOverlap(t *testing.T) {
	s1 := newSegment(nr(1, 0, 0), nr(2, 5, 0), 1, RoleOuter)
	s2 := newSegment(nr(3, 10, 0), nr(4, 15, 0), 2, RoleOuter)
	if !outsideXRange(s2, s1) {
		t.Errorf("expected s2 to be outside s1's x range")
	}
	s3 := newSegment(nr(5, 0, 0), nr(6, 0, 10), 3, RoleOuter)
	s4 := newSegment(nr(7, 0, 5), nr(8, 0, 15), 4, RoleOuter)
	if !yRangeOverlap(s3, s4) {
		t.Errorf("expected overlapping y ranges to be detected")
	}
}
