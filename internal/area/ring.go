package area

// ProtoRing is a mutable ordered chain of segments under construction.
// Consecutive segments share an endpoint location; once closed() the
// first endpoint of the first segment coincides with the second
// endpoint of the last. ProtoRings are owned by the Assembler's ring
// list; inner-ring back references are non-owning (indices/pointers
// into that same list, never a cycle).
type ProtoRing struct {
	Segments []Segment

	outer bool

	inners []*ProtoRing
}

// NewProtoRing starts a new ring containing only seg.
func NewProtoRing(seg Segment) *ProtoRing {
	return &ProtoRing{Segments: []Segment{seg}}
}

func newProtoRingFrom(segs []Segment) *ProtoRing {
	cp := make([]Segment, len(segs))
	copy(cp, segs)
	return &ProtoRing{Segments: cp}
}

func (r *ProtoRing) FirstSegment() Segment { return r.Segments[0] }
func (r *ProtoRing) LastSegment() Segment  { return r.Segments[len(r.Segments)-1] }

// Closed reports whether the ring's two open ends have met.
func (r *ProtoRing) Closed() bool {
	return r.FirstSegment().First.sameLocation(r.LastSegment().Second)
}

// AddSegmentEnd appends seg to the end of the ring (natural orientation,
// already oriented so that seg.First matches the ring's current last
// endpoint).
func (r *ProtoRing) AddSegmentEnd(seg Segment) {
	r.Segments = append(r.Segments, seg)
}

// AddSegmentStart prepends seg to the start of the ring (already
// oriented so seg.Second matches the ring's current first endpoint).
func (r *ProtoRing) AddSegmentStart(seg Segment) {
	r.Segments = append([]Segment{seg}, r.Segments...)
}

// Reverse flips the ring's direction in place: segment order reversed,
// and each segment's own endpoints swapped.
func (r *ProtoRing) Reverse() {
	n := len(r.Segments)
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		r.Segments[i], r.Segments[j] = r.Segments[j], r.Segments[i]
	}
	for i := range r.Segments {
		r.Segments[i] = r.Segments[i].swapEnds()
	}
}

// mergeRingAppend splices o onto the end of r, in order.
func (r *ProtoRing) mergeRingAppend(o *ProtoRing) {
	r.Segments = append(r.Segments, o.Segments...)
}

// mergeRingAppendReversed splices o, reversed, onto the end of r.
func (r *ProtoRing) mergeRingAppendReversed(o *ProtoRing) {
	rev := make([]Segment, len(o.Segments))
	for i, s := range o.Segments {
		rev[len(o.Segments)-1-i] = s.swapEnds()
	}
	r.Segments = append(r.Segments, rev...)
}

// removeRange deletes the half-open range [lo, hi) from the ring's
// segment list, in place.
func (r *ProtoRing) removeRange(lo, hi int) {
	r.Segments = append(r.Segments[:lo:lo], r.Segments[hi:]...)
}

// splitSuffix peels off segments[lo:] into a standalone new ring and
// truncates r to segments[:lo].
func (r *ProtoRing) splitSuffix(lo int) *ProtoRing {
	suffix := newProtoRingFrom(r.Segments[lo:])
	r.Segments = r.Segments[:lo:lo]
	return suffix
}

// splitPrefix peels off segments[:hi] into a standalone new ring and
// truncates r to segments[hi:].
func (r *ProtoRing) splitPrefix(hi int) *ProtoRing {
	prefix := newProtoRingFrom(r.Segments[:hi])
	r.Segments = r.Segments[hi:]
	return prefix
}

// MinNode returns the ring vertex with the smallest (x, then y) — the
// probe point the inner/outer classifier casts a ray from.
func (r *ProtoRing) MinNode() NodeRef {
	min := r.FirstSegment().First
	consider := func(nr NodeRef) {
		if nr.Loc.Less(min.Loc) {
			min = nr
		}
	}
	for _, s := range r.Segments {
		consider(s.First)
		consider(s.Second)
	}
	return min
}

// signedArea2 returns twice the signed area of the closed ring via the
// shoelace formula, in raw (scaled) integer units. Positive means the
// vertex sequence winds counter-clockwise in (lon-increasing-right,
// lat-increasing-up) coordinates.
func (r *ProtoRing) signedArea2() int64 {
	var sum int64
	prev := r.FirstSegment().First
	for _, s := range r.Segments {
		cur := s.Second
		sum += int64(prev.Loc.X)*int64(cur.Loc.Y) - int64(cur.Loc.X)*int64(prev.Loc.Y)
		prev = cur
	}
	return sum
}

// IsCW reports whether the ring currently winds clockwise.
func (r *ProtoRing) IsCW() bool {
	return r.signedArea2() < 0
}

// Area returns the ring's unsigned area in scaled-coordinate units
// (rounded down), used only to rank outer rings smallest-first for
// nesting assignment.
func (r *ProtoRing) Area() int64 {
	a := r.signedArea2()
	if a < 0 {
		a = -a
	}
	return a / 2
}

// Contains reports whether seg (by geometry) already belongs to this
// ring — used by the classifier to exclude a ring's own boundary from
// its ray-casting ray count.
func (r *ProtoRing) Contains(seg Segment) bool {
	for _, s := range r.Segments {
		if s.equalGeometry(seg) || s.swapEnds().equalGeometry(seg) {
			return true
		}
	}
	return false
}

// Outer/SetInner record the classifier's outer/inner decision.
func (r *ProtoRing) Outer() bool { return r.outer }
func (r *ProtoRing) SetOuter() { r.outer = true }
func (r *ProtoRing) SetInner() { r.outer = false }

// AddInnerRing records that inner is nested inside r.
func (r *ProtoRing) AddInnerRing(inner *ProtoRing) {
	r.inners = append(r.inners, inner)
}

// InnerRings returns the rings attached to r, in attachment order.
func (r *ProtoRing) InnerRings() []*ProtoRing { return r.inners }

// Ways returns the distinct origin way ids used by this ring's segments.
func (r *ProtoRing) Ways() []int64 {
	seen := make(map[int64]struct{})
	var out []int64
	for _, s := range r.Segments {
		if _, ok := seen[s.WayID]; !ok {
			seen[s.WayID] = struct{}{}
			out = append(out, s.WayID)
		}
	}
	return out
}

// IsIn reports whether this ring (taken as a single representative
// vertex) lies strictly inside outer, via a plain even-odd ray cast
// against outer's segments. Matches the source's convention: an inner
// vertex exactly on an outer edge is not specially handled (spec.md
// Open Question #2).
func (r *ProtoRing) IsIn(outer *ProtoRing) bool {
	p := r.MinNode().Loc
	count := 0
	for _, s := range outer.Segments {
		if s.toLeftOf(p) {
			count++
		}
	}
	return count%2 == 1
}

func indexOfSegment(segs []Segment, target Segment) int {
	for i, s := range segs {
		if s == target {
			return i
		}
	}
	return -1
}
