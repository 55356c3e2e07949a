package batch

import (
	"context"
	"testing"

	"github.com/paulmach/osm"

	"github.com/wegman-software/osm-multipolygon/internal/area"
)

func resolverFromPoints(points map[int64][2]int32) area.LocationResolver {
	return func(id int64) (area.Location, bool) {
		p, ok := points[id]
		if !ok {
			return area.Location{}, false
		}
		return area.Location{X: p[0], Y: p[1]}, true
	}
}

func wayNode(id int64) osm.WayNode { return osm.WayNode{ID: osm.NodeID(id)} }

func TestCoordinatorRunAssemblesWaysAndRelationsConcurrently(t *testing.T) {
	resolve := resolverFromPoints(map[int64][2]int32{
		1: {0, 0}, 2: {10, 0}, 3: {10, 10}, 4: {0, 10},
		5: {20, 0}, 6: {30, 0}, 7: {30, 10}, 8: {20, 10},
	})
	standalone := &osm.Way{
		ID:    osm.WayID(1),
		Nodes: osm.WayNodes{wayNode(1), wayNode(2), wayNode(3), wayNode(4), wayNode(1)},
	}
	memberWay := &osm.Way{
		ID:    osm.WayID(2),
		Nodes: osm.WayNodes{wayNode(5), wayNode(6), wayNode(7), wayNode(8), wayNode(5)},
	}
	rel := &osm.Relation{
		ID:      osm.RelationID(1),
		Members: []osm.Member{{Type: osm.TypeWay, Ref: 2, Role: "outer"}},
	}
	members := map[int64]*osm.Way{2: memberWay}

	coord := &Coordinator{
		Concurrency: 4,
		Reporter:    area.NoopReporter{},
		Resolve:     resolve,
		Members:     func(r *osm.Relation) map[int64]*osm.Way { return members },
	}

	buffers, stats, traces, err := coord.Run(context.Background(), []*osm.Way{standalone}, []*osm.Relation{rel})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(buffers) != 2 {
		t.Fatalf("expected one buffer per way+relation, got %d", len(buffers))
	}
	if !buffers[0].At(0).Valid() {
		t.Errorf("expected the standalone way to assemble into a valid area")
	}
	if !buffers[1].At(0).Valid() {
		t.Errorf("expected the relation to assemble into a valid area")
	}
	if stats.WaysAssembled != 1 || stats.RelationsAssembled != 1 {
		t.Errorf("stats = %+v, want WaysAssembled=1 RelationsAssembled=1", stats)
	}
	if stats.AreasValid != 2 || stats.AreasInvalid != 0 {
		t.Errorf("stats = %+v, want AreasValid=2 AreasInvalid=0", stats)
	}
	for i, trace := range traces {
		if trace != nil {
			t.Errorf("traces[%d] = %v, want nil when Debug is disabled", i, trace)
		}
	}
}

func TestCoordinatorRunDebugProducesRingTraces(t *testing.T) {
	resolve := resolverFromPoints(map[int64][2]int32{
		1: {0, 0}, 2: {10, 0}, 3: {10, 10}, 4: {0, 10},
	})
	way := &osm.Way{
		ID:    osm.WayID(1),
		Nodes: osm.WayNodes{wayNode(1), wayNode(2), wayNode(3), wayNode(4), wayNode(1)},
	}

	coord := &Coordinator{
		Concurrency: 1,
		Reporter:    area.NoopReporter{},
		Resolve:     resolve,
		Debug:       true,
	}

	_, _, traces, err := coord.Run(context.Background(), []*osm.Way{way}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(traces) != 1 || len(traces[0]) == 0 {
		t.Fatalf("expected a non-empty ring trace when Debug is enabled, got %v", traces)
	}
}

func TestCoordinatorRunReportsInvalidAreaForOpenWay(t *testing.T) {
	resolve := resolverFromPoints(map[int64][2]int32{
		1: {0, 0}, 2: {10, 0}, 3: {10, 10},
	})
	way := &osm.Way{
		ID:    osm.WayID(1),
		Nodes: osm.WayNodes{wayNode(1), wayNode(2), wayNode(3)},
	}

	coord := &Coordinator{
		Concurrency: 1,
		Reporter:    area.NoopReporter{},
		Resolve:     resolve,
	}

	buffers, stats, _, err := coord.Run(context.Background(), []*osm.Way{way}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if buffers[0].At(0).Valid() {
		t.Fatalf("an open way must never produce a valid area")
	}
	if stats.AreasInvalid != 1 {
		t.Errorf("stats.AreasInvalid = %d, want 1", stats.AreasInvalid)
	}
}
