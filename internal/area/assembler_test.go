package area

import (
	"testing"

	"github.com/paulmach/osm"

	"github.com/wegman-software/osm-multipolygon/internal/areabuffer"
)

// resolverFromPoints builds a LocationResolver over a fixed node-id to
// (x, y) (already-scaled) mapping, the minimal stand-in for the
// out-of-scope collector in spec.md §1.
func resolverFromPoints(points map[int64][2]int32) LocationResolver {
	return func(id int64) (Location, bool) {
		p, ok := points[id]
		if !ok {
			return Location{}, false
		}
		return Location{X: p[0], Y: p[1]}, true
	}
}

func wayNode(id int64) osm.WayNode { return osm.WayNode{ID: osm.NodeID(id)} }

func TestAssembleWaySimpleSquare(t *testing.T) {
	resolve := resolverFromPoints(map[int64][2]int32{
		1: {0, 0}, 2: {10, 0}, 3: {10, 10}, 4: {0, 10},
	})
	way := &osm.Way{
		ID: osm.WayID(1),
		Nodes: osm.WayNodes{
			wayNode(1), wayNode(2), wayNode(3), wayNode(4), wayNode(1),
		},
		Tags: osm.Tags{{Key: "building", Value: "yes"}},
	}

	asm := NewAssembler(NoopReporter{})
	buf := areabuffer.NewBuffer()
	if err := asm.AssembleWay(way, resolve, buf); err != nil {
		t.Fatalf("AssembleWay() error = %v", err)
	}
	if buf.Len() != 1 {
		t.Fatalf("expected exactly one committed area, got %d", buf.Len())
	}
	got := buf.At(0)
	if !got.Valid() {
		t.Fatalf("expected a valid area for a closed square")
	}
	if len(got.Rings) != 1 || len(got.Rings[0].Outer) != 5 {
		t.Fatalf("expected one ring of 5 node refs (closed), got %+v", got.Rings)
	}
	if len(got.Rings[0].Inners) != 0 {
		t.Errorf("a plain square must have no inner rings")
	}
}

func TestAssembleRelationSquareWithHole(t *testing.T) {
	resolve := resolverFromPoints(map[int64][2]int32{
		1: {0, 0}, 2: {20, 0}, 3: {20, 20}, 4: {0, 20},
		5: {5, 5}, 6: {15, 5}, 7: {15, 15}, 8: {5, 15},
	})
	outer := &osm.Way{
		ID:   osm.WayID(1),
		Nodes: osm.WayNodes{wayNode(1), wayNode(2), wayNode(3), wayNode(4), wayNode(1)},
	}
	inner := &osm.Way{
		ID:   osm.WayID(2),
		Tags: osm.Tags{{Key: "building", Value: "yes"}},
		Nodes: osm.WayNodes{wayNode(5), wayNode(6), wayNode(7), wayNode(8), wayNode(5)},
	}
	rel := &osm.Relation{
		ID:   osm.RelationID(1),
		Tags: osm.Tags{{Key: "type", Value: "multipolygon"}},
		Members: []osm.Member{
			{Type: osm.TypeWay, Ref: 1, Role: "outer"},
			{Type: osm.TypeWay, Ref: 2, Role: "inner"},
		},
	}
	members := map[int64]*osm.Way{1: outer, 2: inner}

	asm := NewAssembler(NoopReporter{})
	buf := areabuffer.NewBuffer()
	if err := asm.AssembleRelation(rel, members, resolve, buf); err != nil {
		t.Fatalf("AssembleRelation() error = %v", err)
	}

	result := buf.At(0)
	if !result.Valid() {
		t.Fatalf("expected a valid area")
	}
	if len(result.Rings) != 1 {
		t.Fatalf("expected exactly one outer ring group, got %d", len(result.Rings))
	}
	if len(result.Rings[0].Inners) != 1 {
		t.Fatalf("expected the inner square to be nested under the outer ring, got %d inners", len(result.Rings[0].Inners))
	}

	// Inner way rescue: the relation itself carries only "type", so the
	// inner way's distinct "building=yes" tag must surface as a second,
	// standalone area.
	if buf.Len() != 2 {
		t.Fatalf("expected the tagged inner way to be rescued as its own area, got %d areas", buf.Len())
	}
	rescued := buf.At(1)
	if !rescued.Valid() || len(rescued.Tags) != 1 || rescued.Tags[0].Key != "building" {
		t.Fatalf("expected the rescued area to carry the inner way's own tags, got %+v", rescued)
	}
}

func TestAssembleWayOpenRingFails(t *testing.T) {
	resolve := resolverFromPoints(map[int64][2]int32{
		1: {0, 0}, 2: {10, 0}, 3: {10, 10},
	})
	way := &osm.Way{
		ID:    osm.WayID(1),
		Nodes: osm.WayNodes{wayNode(1), wayNode(2), wayNode(3)},
	}

	reported := false
	reporter := &recordingReporter{onRingNotClosed: func() { reported = true }}

	asm := NewAssembler(reporter)
	buf := areabuffer.NewBuffer()
	if err := asm.AssembleWay(way, resolve, buf); err != nil {
		t.Fatalf("AssembleWay() error = %v", err)
	}
	if buf.At(0).Valid() {
		t.Fatalf("an open ring must never produce a valid area")
	}
	if !reported {
		t.Errorf("expected ReportRingNotClosed to fire for an open way")
	}
}

func TestAssembleWayCrossingSegmentsFails(t *testing.T) {
	resolve := resolverFromPoints(map[int64][2]int32{
		1: {0, 0}, 2: {10, 10}, 3: {0, 10}, 4: {10, 0},
	})
	// A "bowtie": 1->2, 2->3, 3->4, 4->1 crosses itself at the center.
	way := &osm.Way{
		ID:    osm.WayID(1),
		Nodes: osm.WayNodes{wayNode(1), wayNode(2), wayNode(3), wayNode(4), wayNode(1)},
	}

	reportedFatal := false
	reporter := &recordingReporter{onIntersection: func() { reportedFatal = true }}

	asm := NewAssembler(reporter)
	buf := areabuffer.NewBuffer()
	if err := asm.AssembleWay(way, resolve, buf); err != nil {
		t.Fatalf("AssembleWay() error = %v", err)
	}
	if buf.At(0).Valid() {
		t.Fatalf("a self-crossing way must never produce a valid area")
	}
	if !reportedFatal {
		t.Errorf("expected ReportIntersection to fire for crossing segments")
	}
}

func TestAssembleRelationAdjacentSquaresShareEdge(t *testing.T) {
	resolve := resolverFromPoints(map[int64][2]int32{
		1: {0, 0}, 2: {10, 0}, 3: {10, 10}, 4: {0, 10},
		5: {20, 0}, 6: {20, 10},
	})
	left := &osm.Way{
		ID:    osm.WayID(1),
		Nodes: osm.WayNodes{wayNode(1), wayNode(2), wayNode(3), wayNode(4), wayNode(1)},
	}
	right := &osm.Way{
		ID:    osm.WayID(2),
		Nodes: osm.WayNodes{wayNode(2), wayNode(5), wayNode(6), wayNode(3), wayNode(2)},
	}
	rel := &osm.Relation{
		ID: osm.RelationID(1),
		Members: []osm.Member{
			{Type: osm.TypeWay, Ref: 1, Role: "outer"},
			{Type: osm.TypeWay, Ref: 2, Role: "outer"},
		},
	}
	members := map[int64]*osm.Way{1: left, 2: right}

	asm := NewAssembler(NoopReporter{})
	buf := areabuffer.NewBuffer()
	if err := asm.AssembleRelation(rel, members, resolve, buf); err != nil {
		t.Fatalf("AssembleRelation() error = %v", err)
	}
	result := buf.At(0)
	if !result.Valid() {
		t.Fatalf("expected two adjacent squares to merge into one valid area")
	}
	if len(result.Rings) != 1 {
		t.Fatalf("expected exactly one outer ring (shared edge cancelled), got %d", len(result.Rings))
	}
	// The shared edge (2-3) must have cancelled, leaving a hexagon: 6
	// boundary vertices plus the closing repeat of the first.
	if len(result.Rings[0].Outer) != 7 {
		t.Errorf("expected a 6-sided merged outer ring (+closing vertex), got %d node refs", len(result.Rings[0].Outer))
	}
}

func TestAssembleRelationTagDisagreementYieldsNoCommonTags(t *testing.T) {
	resolve := resolverFromPoints(map[int64][2]int32{
		1: {0, 0}, 2: {10, 0}, 3: {10, 10}, 4: {0, 10},
		5: {20, 0}, 6: {30, 0}, 7: {30, 10}, 8: {20, 10},
	})
	w1 := &osm.Way{
		ID:    osm.WayID(1),
		Tags:  osm.Tags{{Key: "landuse", Value: "forest"}},
		Nodes: osm.WayNodes{wayNode(1), wayNode(2), wayNode(3), wayNode(4), wayNode(1)},
	}
	w2 := &osm.Way{
		ID:    osm.WayID(2),
		Tags:  osm.Tags{{Key: "landuse", Value: "meadow"}},
		Nodes: osm.WayNodes{wayNode(5), wayNode(6), wayNode(7), wayNode(8), wayNode(5)},
	}
	rel := &osm.Relation{
		ID: osm.RelationID(1),
		Members: []osm.Member{
			{Type: osm.TypeWay, Ref: 1, Role: "outer"},
			{Type: osm.TypeWay, Ref: 2, Role: "outer"},
		},
	}
	members := map[int64]*osm.Way{1: w1, 2: w2}

	asm := NewAssembler(NoopReporter{})
	buf := areabuffer.NewBuffer()
	if err := asm.AssembleRelation(rel, members, resolve, buf); err != nil {
		t.Fatalf("AssembleRelation() error = %v", err)
	}
	result := buf.At(0)
	if !result.Valid() {
		t.Fatalf("expected two disjoint squares to both assemble, just without shared tags")
	}
	if len(result.Rings) != 2 {
		t.Fatalf("expected two separate outer rings for two disjoint squares, got %d", len(result.Rings))
	}
	if len(result.Tags) != 0 {
		t.Errorf("expected no common tags between disagreeing outer ways, got %v", result.Tags)
	}
}

// recordingReporter lets a test observe which diagnostic fired without
// asserting on every unrelated call.
type recordingReporter struct {
	onRingNotClosed func()
	onIntersection  func()
}

func (r *recordingReporter) ReportDuplicateNode(int64, int64, Location) {}
func (r *recordingReporter) ReportIntersection(int64, int64, Location, Location, int64, Location, Location, Location) {
	if r.onIntersection != nil {
		r.onIntersection()
	}
}
func (r *recordingReporter) ReportRingNotClosed(int64, Location, Location) {
	if r.onRingNotClosed != nil {
		r.onRingNotClosed()
	}
}
func (r *recordingReporter) ReportRoleShouldBeOuter(int64, int64, Location, Location) {}
func (r *recordingReporter) ReportRoleShouldBeInner(int64, int64, Location, Location) {}
