package area

import (
	"sort"

	"github.com/paulmach/osm"

	"github.com/wegman-software/osm-multipolygon/internal/areabuffer"
)

// Assembler reconstructs Area geometries from a single closed way or a
// relation and its resolved member ways. It is single-threaded,
// synchronous, and single-use per invocation: init clears all
// collections so the same instance can be reused across many calls
// (spec.md §3 "Lifecycle", §5).
type Assembler struct {
	reporter ProblemReporter
	debug    bool

	segments SegmentList
	rings    []*ProtoRing

	objectID int64

	outerRings []*ProtoRing
	innerRings []*ProtoRing

	mismatches int
}

// NewAssembler builds an Assembler. A nil reporter is replaced with
// NoopReporter so callers never need a nil check of their own.
func NewAssembler(reporter ProblemReporter) *Assembler {
	if reporter == nil {
		reporter = NoopReporter{}
	}
	return &Assembler{reporter: reporter}
}

// EnableDebugOutput toggles human-readable diagnostic traces. For
// Assembler developers only, per spec.md §6.
func (a *Assembler) EnableDebugOutput(debug bool) { a.debug = debug }

func (a *Assembler) init(objectID int64) {
	a.segments.clear()
	a.rings = a.rings[:0]
	a.outerRings = a.outerRings[:0]
	a.innerRings = a.innerRings[:0]
	a.objectID = objectID
	a.mismatches = 0
}

// sameLoc is has_same_location from assembler.hpp: true iff the two
// NodeRefs occupy the same point, reporting a duplicate-node anomaly
// whenever their ids differ despite sharing a location.
func (a *Assembler) sameLoc(nr1, nr2 NodeRef) bool {
	if nr1.Loc != nr2.Loc {
		return false
	}
	if nr1.ID != nr2.ID {
		a.reporter.ReportDuplicateNode(nr1.ID, nr2.ID, nr1.Loc)
	}
	return true
}

// AssembleWay assembles an area from a single closed way, per spec.md
// §4.1/§4.5 and assembler.hpp's operator()(way, out_buffer).
func (a *Assembler) AssembleWay(way *osm.Way, resolve LocationResolver, out *areabuffer.Buffer) error {
	a.init(int64(way.ID))

	checkWayEnds(way, resolve, a.reporter)

	segs := extractWaySegments(way, resolve, RoleOuter, a.objectID, a.reporter)
	for _, s := range segs {
		a.segments.add(s)
	}

	result := areaFromWay(way)
	idx := out.Commit(result)

	if !a.stage2() {
		return nil
	}

	result.Tags = wayTagsFor(way)
	result.Rings = a.emitRings()
	out.Update(idx, result)
	return nil
}

// AssembleRelation assembles an area from a relation and its resolved
// member ways (memberWays is keyed by way id, the already-resolved form
// of spec.md §6's member_offsets/in_buffer contract; a way member that
// is missing from it is skipped), per assembler.hpp's
// operator()(relation, members, ...).
func (a *Assembler) AssembleRelation(rel *osm.Relation, memberWays map[int64]*osm.Way, resolve LocationResolver, out *areabuffer.Buffer) error {
	a.init(int64(rel.ID))

	var outerWays []*osm.Way
	for _, m := range rel.Members {
		if m.Type != osm.TypeWay {
			continue
		}
		way, ok := memberWays[m.Ref]
		if !ok {
			continue
		}
		role := roleFromMemberString(m.Role)
		if role == RoleOuter {
			outerWays = append(outerWays, way)
		}
		segs := extractWaySegments(way, resolve, role, a.objectID, a.reporter)
		for _, s := range segs {
			a.segments.add(s)
		}
	}

	result := areaFromRelation(rel)
	idx := out.Commit(result)

	if !a.stage2() {
		return nil
	}

	usedOuterWays := collectWays(a.outerRings, memberWays)
	result.Tags = relationTagsFor(rel, usedOuterWays)
	result.Rings = a.emitRings()
	out.Update(idx, result)

	if a.mismatches == 0 {
		a.rescueInnerWayTags(rel, memberWays, resolve, result, out)
	}

	return nil
}

// collectWays resolves the deduplicated way-id set of a ring slice back
// into *osm.Way pointers, in first-seen order.
func collectWays(rings []*ProtoRing, memberWays map[int64]*osm.Way) []*osm.Way {
	seen := make(map[int64]bool)
	var out []*osm.Way
	for _, r := range rings {
		for _, id := range r.Ways() {
			if seen[id] {
				continue
			}
			seen[id] = true
			if w, ok := memberWays[id]; ok {
				out = append(out, w)
			}
		}
	}
	return out
}

// rescueInnerWayTags implements spec.md §4.5's inner-way tag rescue:
// when every inner ring's role matched expectations, an inner way with
// its own distinct, non-trivial tag set becomes a standalone area,
// recursively assembled exactly as AssembleWay does it.
func (a *Assembler) rescueInnerWayTags(rel *osm.Relation, memberWays map[int64]*osm.Way, resolve LocationResolver, areaTags *Area, out *areabuffer.Buffer) {
	areaFiltered := filterTags(areaTags.Tags, ignoredInnerWayKeys)
	for _, m := range rel.Members {
		if m.Type != osm.TypeWay || m.Role != "inner" {
			continue
		}
		way, ok := memberWays[m.Ref]
		if !ok || len(way.Nodes) == 0 {
			continue
		}
		if int64(way.Nodes[0].ID) != int64(way.Nodes[len(way.Nodes)-1].ID) {
			continue
		}
		filtered := filterTags(way.Tags, ignoredInnerWayKeys)
		if len(filtered) == 0 {
			continue
		}
		if filtered.equalAsSets(areaFiltered) {
			continue
		}
		// Recurse, exactly as the original's operator()(way, out_buffer).
		_ = a.AssembleWay(way, resolve, out)
	}
}

// emitRings converts the classified ring list into RingGroups in the
// order spec.md §4.5 requires: each outer ring's node-ref sequence,
// then its inner rings in attachment order.
func (a *Assembler) emitRings() []RingGroup {
	groups := make([]RingGroup, 0, len(a.outerRings))
	for _, outer := range a.outerRings {
		group := RingGroup{Outer: ringNodeRefs(outer)}
		for _, inner := range outer.InnerRings() {
			group.Inners = append(group.Inners, ringNodeRefs(inner))
		}
		groups = append(groups, group)
	}
	return groups
}

func ringNodeRefs(r *ProtoRing) []NodeRef {
	out := make([]NodeRef, 0, len(r.Segments)+1)
	out = append(out, r.FirstSegment().First)
	for _, s := range r.Segments {
		out = append(out, s.Second)
	}
	return out
}

// stage2 runs C2 through C4: sort, dedup, intersection scan, ring
// building, open-ring check, and classification. It returns false (and
// leaves the area at its already-committed, zero-ring invalid state)
// whenever spec.md §7's fatal dispositions apply.
func (a *Assembler) stage2() bool {
	a.segments.sortSegments()

	a.segments.dedup(func(s Segment) {
		// Two ways sharing a boundary segment cancel; this is not
		// itself a diagnosable anomaly (spec.md §4.2).
	})

	if a.findIntersections() {
		return false
	}

	for _, seg := range a.segments.segments {
		if !a.addToExistingRing(seg) {
			a.rings = append(a.rings, NewProtoRing(seg))
		}
	}

	if a.checkForOpenRings() {
		return false
	}

	a.outerRings, a.innerRings = classifyRings(a.rings, &a.segments)
	a.mismatches = roleAudit(a.outerRings, a.innerRings, a.objectID, a.reporter)

	return true
}

func (a *Assembler) findIntersections() bool {
	fatal := false
	for _, ev := range a.segments.findIntersections() {
		a.reporter.ReportIntersection(a.objectID, ev.s1.WayID, ev.s1.First.Loc, ev.s1.Second.Loc, ev.s2.WayID, ev.s2.First.Loc, ev.s2.Second.Loc, ev.at)
		if ev.fatal {
			fatal = true
		}
	}
	return fatal
}

func (a *Assembler) checkForOpenRings() bool {
	open := false
	for _, r := range a.rings {
		if !r.Closed() {
			open = true
			a.reporter.ReportRingNotClosed(a.objectID, r.FirstSegment().First.Loc, r.LastSegment().Second.Loc)
		}
	}
	return open
}

// addToExistingRing is C3 step 1: scan the ring list in creation order
// and attach seg to the first open ring whose dangling end it meets.
func (a *Assembler) addToExistingRing(seg Segment) bool {
	for idx, ring := range a.rings {
		if ring.Closed() {
			continue
		}
		switch {
		case a.sameLoc(ring.LastSegment().Second, seg.First):
			a.combineRings(seg, idx, true)
			return true
		case a.sameLoc(ring.LastSegment().Second, seg.Second):
			a.combineRings(seg.swapEnds(), idx, true)
			return true
		case a.sameLoc(ring.FirstSegment().First, seg.First):
			a.combineRings(seg.swapEnds(), idx, false)
			return true
		case a.sameLoc(ring.FirstSegment().First, seg.Second):
			a.combineRings(seg, idx, false)
			return true
		}
	}
	return false
}

// combineRings is C3 steps 2-4: attach seg to ring at the matched end,
// split off any sub-ring the append/prepend just closed, then try to
// splice another open ring onto the newly exposed end.
func (a *Assembler) combineRings(seg Segment, ringIdx int, atEnd bool) {
	ring := a.rings[ringIdx]
	if atEnd {
		ring.AddSegmentEnd(seg)
		a.splitClosedSubringEnd(ring)
		if merged, newIdx := a.combineOpenRingsEnd(ringIdx); merged {
			a.splitClosedSubringSorted(newIdx)
		}
	} else {
		ring.AddSegmentStart(seg)
		a.splitClosedSubringStart(ring)
		if merged, newIdx := a.combineOpenRingsStart(ringIdx); merged {
			a.splitClosedSubringSorted(newIdx)
		}
	}
}

// splitClosedSubringEnd is has_closed_subring_end: after an append, if
// the newly attached endpoint matches some interior vertex of the ring,
// that interior loop is split off as its own ring.
func (a *Assembler) splitClosedSubringEnd(ring *ProtoRing) bool {
	if len(ring.Segments) < 3 {
		return false
	}
	nr := ring.LastSegment().Second
	for i := 1; i <= len(ring.Segments)-2; i++ {
		if a.sameLoc(nr, ring.Segments[i].First) {
			a.rings = append(a.rings, ring.splitSuffix(i))
			return true
		}
	}
	return false
}

// splitClosedSubringStart is has_closed_subring_start, symmetric to the
// above for a prepend.
func (a *Assembler) splitClosedSubringStart(ring *ProtoRing) bool {
	if len(ring.Segments) < 3 {
		return false
	}
	nr := ring.FirstSegment().First
	for i := 1; i <= len(ring.Segments)-2; i++ {
		if a.sameLoc(nr, ring.Segments[i].Second) {
			a.rings = append(a.rings, ring.splitPrefix(i+1))
			return true
		}
	}
	return false
}

// combineOpenRingsEnd is possibly_combine_rings_end: look for another
// open ring whose endpoint meets ring's newly exposed end and splice it
// on, deleting the consumed ring from the list. Returns whether a merge
// happened and ring's index after the removal (which shifts down by one
// if the consumed ring sat earlier in the list).
func (a *Assembler) combineOpenRingsEnd(ringIdx int) (bool, int) {
	ring := a.rings[ringIdx]
	nr := ring.LastSegment().Second
	for j, other := range a.rings {
		if j == ringIdx || other.Closed() {
			continue
		}
		if a.sameLoc(nr, other.FirstSegment().First) {
			ring.mergeRingAppend(other)
			return true, a.removeRingAt(j, ringIdx)
		}
		if a.sameLoc(nr, other.LastSegment().Second) {
			ring.mergeRingAppendReversed(other)
			return true, a.removeRingAt(j, ringIdx)
		}
	}
	return false, ringIdx
}

// combineOpenRingsStart is possibly_combine_rings_start, symmetric for
// the start end.
func (a *Assembler) combineOpenRingsStart(ringIdx int) (bool, int) {
	ring := a.rings[ringIdx]
	nr := ring.FirstSegment().First
	for j, other := range a.rings {
		if j == ringIdx || other.Closed() {
			continue
		}
		if a.sameLoc(nr, other.LastSegment().Second) {
			ring.Segments = append(append([]Segment{}, other.Segments...), ring.Segments...)
			return true, a.removeRingAt(j, ringIdx)
		}
		if a.sameLoc(nr, other.FirstSegment().First) {
			ring.Reverse()
			ring.mergeRingAppend(other)
			return true, a.removeRingAt(j, ringIdx)
		}
	}
	return false, ringIdx
}

// removeRingAt deletes the ring at index j and returns the index keepIdx
// has after the removal: unchanged if keepIdx < j, shifted down by one
// if keepIdx > j (j == keepIdx never happens — callers never remove the
// ring they're currently combining into).
func (a *Assembler) removeRingAt(j, keepIdx int) int {
	a.rings = append(a.rings[:j], a.rings[j+1:]...)
	if keepIdx > j {
		return keepIdx - 1
	}
	return keepIdx
}

// splitClosedSubringSorted is check_for_closed_subring: after a merge,
// sort a copy of the ring's segments and look for two segments that
// start at the same location — an interior self-touch that must be
// split into its own ring.
func (a *Assembler) splitClosedSubringSorted(ringIdx int) bool {
	ring := a.rings[ringIdx]
	sorted := append([]Segment(nil), ring.Segments...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].less(sorted[j]) })

	dup := -1
	for i := 0; i+1 < len(sorted); i++ {
		if a.sameLoc(sorted[i].First, sorted[i+1].First) {
			dup = i
			break
		}
	}
	if dup < 0 {
		return false
	}

	idx1 := indexOfSegment(ring.Segments, sorted[dup])
	idx2 := indexOfSegment(ring.Segments, sorted[dup+1])
	lo, hi := idx1, idx2
	if lo > hi {
		lo, hi = hi, lo
	}

	newRing := newProtoRingFrom(ring.Segments[lo:hi])
	ring.removeRange(lo, hi)
	a.rings = append(a.rings, newRing)
	return true
}
