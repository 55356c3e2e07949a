package area

import "testing"

// square builds the four boundary segments of a closed 10x10 square,
// chained head to tail counter-clockwise from (0,0) so they can be
// added to a ring in order with AddSegmentEnd, used across several
// tests below.
func square(wayID int64, role Role) []Segment {
	p0 := nr(1, 0, 0)
	p1 := nr(2, 10, 0)
	p2 := nr(3, 10, 10)
	p3 := nr(4, 0, 10)
	return []Segment{
		newSegment(p0, p1, wayID, role),
		newSegment(p1, p2, wayID, role),
		newSegment(p2, p3, wayID, role).swapEnds(),
		newSegment(p3, p0, wayID, role).swapEnds(),
	}
}

func TestRingClosesAfterAllFourSegments(t *testing.T) {
	segs := square(1, RoleOuter)
	r := NewProtoRing(segs[0])
	if r.Closed() {
		t.Fatalf("a single segment must not be a closed ring")
	}
	r.AddSegmentEnd(segs[1])
	r.AddSegmentEnd(segs[2])
	if r.Closed() {
		t.Fatalf("ring with a missing segment must not be closed")
	}
	r.AddSegmentEnd(segs[3])
	if !r.Closed() {
		t.Fatalf("ring with all four boundary segments must be closed")
	}
}

func TestRingReverseFlipsWinding(t *testing.T) {
	segs := square(1, RoleOuter)
	r := NewProtoRing(segs[0])
	r.AddSegmentEnd(segs[1])
	r.AddSegmentEnd(segs[2])
	r.AddSegmentEnd(segs[3])

	cw := r.IsCW()
	r.Reverse()
	if r.IsCW() == cw {
		t.Errorf("Reverse() must flip the ring's winding")
	}
	if !r.Closed() {
		t.Errorf("a reversed ring must still be closed")
	}
}

func TestRingAreaIsWindingIndependent(t *testing.T) {
	segs := square(1, RoleOuter)
	r := NewProtoRing(segs[0])
	r.AddSegmentEnd(segs[1])
	r.AddSegmentEnd(segs[2])
	r.AddSegmentEnd(segs[3])

	area := r.Area()
	r.Reverse()
	if r.Area() != area {
		t.Errorf("unsigned Area() must not depend on winding direction")
	}
	if area != 100 {
		t.Errorf("Area() of a 10x10 square = %d, want 100", area)
	}
}

func TestSplitSuffixAndPrefix(t *testing.T) {
	segs := square(1, RoleOuter)
	r := NewProtoRing(segs[0])
	r.AddSegmentEnd(segs[1])
	r.AddSegmentEnd(segs[2])
	r.AddSegmentEnd(segs[3])

	suffix := r.splitSuffix(2)
	if len(r.Segments) != 2 || len(suffix.Segments) != 2 {
		t.Fatalf("splitSuffix(2) should leave 2 segments in each ring, got %d and %d", len(r.Segments), len(suffix.Segments))
	}

	r2 := NewProtoRing(segs[0])
	r2.AddSegmentEnd(segs[1])
	r2.AddSegmentEnd(segs[2])
	r2.AddSegmentEnd(segs[3])
	prefix := r2.splitPrefix(2)
	if len(r2.Segments) != 2 || len(prefix.Segments) != 2 {
		t.Fatalf("splitPrefix(2) should leave 2 segments in each ring, got %d and %d", len(r2.Segments), len(prefix.Segments))
	}
}

func TestMinNodeIsLexicographicallySmallest(t *testing.T) {
	segs := square(1, RoleOuter)
	r := NewProtoRing(segs[0])
	r.AddSegmentEnd(segs[1])
	r.AddSegmentEnd(segs[2])
	r.AddSegmentEnd(segs[3])

	min := r.MinNode()
	if min.Loc != (Location{X: 0, Y: 0}) {
		t.Errorf("MinNode() = %v, want (0,0)", min.Loc)
	}
}

func TestRingWaysDeduplicates(t *testing.T) {
	segs := square(1, RoleOuter)
	r := NewProtoRing(segs[0])
	r.AddSegmentEnd(segs[1])
	r.AddSegmentEnd(segs[2])
	r.AddSegmentEnd(segs[3])

	ways := r.Ways()
	if len(ways) != 1 || ways[0] != 1 {
		t.Errorf("Ways() = %v, want [1]", ways)
	}
}
