// Package collector gathers the node locations and member ways an
// internal/area.Assembler needs before it can run: the out-of-scope
// "way and node collector" of spec.md §1/§6, built on the teacher's
// mmap node index and its sync.Map way-caching convention
// (internal/flex's extractor).
package collector

import (
	"sync"

	"github.com/paulmach/osm"

	"github.com/wegman-software/osm-multipolygon/internal/area"
	"github.com/wegman-software/osm-multipolygon/internal/nodeindex"
)

// Collector resolves node ids to locations via a memory-mapped index
// and caches ways in memory, keyed by id, so a relation's member ways
// only need to be looked up once regardless of how many relations
// reference them.
type Collector struct {
	nodes *nodeindex.MmapIndex
	ways  sync.Map // int64 -> *osm.Way
}

// New wraps an already-populated node index.
func New(nodes *nodeindex.MmapIndex) *Collector {
	return &Collector{nodes: nodes}
}

// PutWay caches way for later MemberWays lookups.
func (c *Collector) PutWay(way *osm.Way) {
	c.ways.Store(int64(way.ID), way)
}

// Way returns a previously cached way, if any.
func (c *Collector) Way(id int64) (*osm.Way, bool) {
	v, ok := c.ways.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*osm.Way), true
}

// MemberWays resolves every way member of rel that has been cached,
// returning a map keyed by way id suitable for
// area.Assembler.AssembleRelation's memberWays parameter. A member
// whose way is not cached is silently omitted — the assembler treats a
// missing member the same way the original treats an incomplete
// relation, by working with what it has.
func (c *Collector) MemberWays(rel *osm.Relation) map[int64]*osm.Way {
	out := make(map[int64]*osm.Way)
	for _, m := range rel.Members {
		if m.Type != osm.TypeWay {
			continue
		}
		if way, ok := c.Way(m.Ref); ok {
			out[m.Ref] = way
		}
	}
	return out
}

// Resolve implements area.LocationResolver against the mmap node index.
func (c *Collector) Resolve(nodeID int64) (area.Location, bool) {
	lat, lon, ok := c.nodes.Get(nodeID)
	if !ok {
		return area.Location{}, false
	}
	return area.NewLocation(lon, lat), true
}
