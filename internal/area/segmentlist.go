package area

import "sort"

// SegmentList is the owned, ordered collection of segments extracted
// from a way or a relation's members. After sortSegments and dedup it is sorted
// bottom-left to top-right with no duplicate (geometrically equal)
// segments remaining.
type SegmentList struct {
	segments []Segment
}

func (sl *SegmentList) add(s Segment) { sl.segments = append(sl.segments, s) }

func (sl *SegmentList) clear() { sl.segments = sl.segments[:0] }

func (sl *SegmentList) len() int { return len(sl.segments) }

// sortSegments orders the list lexicographically on
// (first.x, first.y, second.x, second.y), per spec.md §4.2.
func (sl *SegmentList) sortSegments() {
	sort.Slice(sl.segments, func(i, j int) bool {
		return sl.segments[i].less(sl.segments[j])
	})
}

// dedupReport is called once per cancelled (duplicate) segment pair
// found during dedup, letting the caller decide whether/how to report
// it. It is intentionally not a ProblemReporter callback: spec.md does
// not define a dedicated diagnostic for this case, only that touching
// ways "cancel" — the defining behavior of adjoining multipolygons.
type dedupReport func(s Segment)

// dedup removes adjacent geometrically-equal segment pairs (the list
// must already be sorted). Running it twice is a no-op the second time
// (spec.md §8 invariant 3): after the first pass there are no adjacent
// equal pairs left to remove.
func (sl *SegmentList) dedup(onDuplicate dedupReport) {
	out := sl.segments[:0:0]
	i := 0
	for i < len(sl.segments) {
		if i+1 < len(sl.segments) && sl.segments[i].equalGeometry(sl.segments[i+1]) {
			if onDuplicate != nil {
				onDuplicate(sl.segments[i])
			}
			i += 2
			continue
		}
		out = append(out, sl.segments[i])
		i++
	}
	sl.segments = out
}

// intersectionEvent describes one intersection/overlap finding from
// findIntersections, forwarded to the ProblemReporter by the caller
// (the reporter's exact call shape lives in assembler.go, which has the
// object id segments alone don't carry).
type intersectionEvent struct {
	s1, s2 Segment
	at     Location
	fatal  bool
}

// findIntersections scans the sorted, deduplicated segment list for
// crossing or overlapping pairs, using the windowed x-range early exit
// of spec.md §4.2. It returns every event found (fatal or not); the
// caller aborts stage-2 iff any event is fatal.
func (sl *SegmentList) findIntersections() []intersectionEvent {
	var events []intersectionEvent
	segs := sl.segments
	for i := 0; i < len(segs)-1; i++ {
		s1 := segs[i]
		for j := i + 1; j < len(segs); j++ {
			s2 := segs[j]
			if s1.equalGeometry(s2) {
				events = append(events, intersectionEvent{s1: s1, s2: s2, fatal: false})
				continue
			}
			if outsideXRange(s2, s1) {
				break
			}
			if !yRangeOverlap(s1, s2) {
				continue
			}
			if at, ok := s1.intersect(s2); ok {
				events = append(events, intersectionEvent{s1: s1, s2: s2, at: at, fatal: true})
				continue
			}
			// Collinear overlap (more than a shared endpoint): both of s2's
			// endpoints lie on s1's line and s2 starts before s1 ends.
			dx := int64(s1.Second.Loc.X) - int64(s1.First.Loc.X)
			dy := int64(s1.Second.Loc.Y) - int64(s1.First.Loc.Y)
			c1 := dx*(int64(s2.First.Loc.Y)-int64(s1.First.Loc.Y)) - dy*(int64(s2.First.Loc.X)-int64(s1.First.Loc.X))
			c2 := dx*(int64(s2.Second.Loc.Y)-int64(s1.First.Loc.Y)) - dy*(int64(s2.Second.Loc.X)-int64(s1.First.Loc.X))
			if c1 == 0 && c2 == 0 && s2.First.Loc.Less(s1.Second.Loc) {
				events = append(events, intersectionEvent{s1: s1, s2: s2, at: s2.First.Loc, fatal: false})
			}
		}
	}
	return events
}
