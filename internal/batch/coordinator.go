// Package batch fans out many independent area assemblies across a
// worker pool, following the teacher's errgroup-with-context convention
// (internal/pipeline.Coordinator) instead of the original's
// std::thread-per-job model.
package batch

import (
	"context"
	"sync/atomic"

	"github.com/paulmach/osm"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/osm-multipolygon/internal/area"
	"github.com/wegman-software/osm-multipolygon/internal/areabuffer"
)

// MemberResolver maps a relation to the subset of its member ways the
// caller has collected, mirroring internal/collector.Collector.MemberWays.
type MemberResolver func(rel *osm.Relation) map[int64]*osm.Way

// Stats counts what a Run produced across the whole batch.
type Stats struct {
	WaysAssembled      int64
	RelationsAssembled int64
	AreasValid         int64
	AreasInvalid       int64
}

// Coordinator runs area.Assembler instances concurrently over a fixed
// set of ways and relations, each assembly writing into its own
// areabuffer.Buffer to avoid any cross-goroutine mutation of shared
// state, and returns those per-item buffers in submission order.
type Coordinator struct {
	Concurrency int
	Reporter    area.ProblemReporter
	Resolve     area.LocationResolver
	Members     MemberResolver

	// Debug enables area.Assembler's ring tracing for every assembly in
	// this run; Run's third return value then holds one GeoJSON trace
	// per input item (nil entries where tracing produced nothing).
	Debug bool
}

// Run assembles every way and then every relation, bounded to
// c.Concurrency simultaneous assemblies (0 or negative means
// unbounded, left to errgroup's default). It returns one Buffer per
// input item, in the same order as ways followed by relations,
// aggregate Stats, and (when c.Debug is set) one GeoJSON ring trace per
// item.
func (c *Coordinator) Run(ctx context.Context, ways []*osm.Way, relations []*osm.Relation) ([]*areabuffer.Buffer, Stats, [][]byte, error) {
	buffers := make([]*areabuffer.Buffer, len(ways)+len(relations))
	traces := make([][]byte, len(ways)+len(relations))
	var stats Stats

	g, gctx := errgroup.WithContext(ctx)
	if c.Concurrency > 0 {
		g.SetLimit(c.Concurrency)
	}

	for i, way := range ways {
		i, way := i, way
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			buf := areabuffer.NewBuffer()
			asm := area.NewAssembler(c.Reporter)
			asm.EnableDebugOutput(c.Debug)
			if err := asm.AssembleWay(way, c.Resolve, buf); err != nil {
				return err
			}
			buffers[i] = buf
			if c.Debug {
				traces[i], _ = asm.TraceJSON()
			}
			atomic.AddInt64(&stats.WaysAssembled, 1)
			tallyBuffer(buf, &stats)
			return nil
		})
	}

	base := len(ways)
	for i, rel := range relations {
		i, rel := i, rel
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			buf := areabuffer.NewBuffer()
			asm := area.NewAssembler(c.Reporter)
			asm.EnableDebugOutput(c.Debug)
			members := map[int64]*osm.Way{}
			if c.Members != nil {
				members = c.Members(rel)
			}
			if err := asm.AssembleRelation(rel, members, c.Resolve, buf); err != nil {
				return err
			}
			buffers[base+i] = buf
			if c.Debug {
				traces[base+i], _ = asm.TraceJSON()
			}
			atomic.AddInt64(&stats.RelationsAssembled, 1)
			tallyBuffer(buf, &stats)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, stats, nil, err
	}
	return buffers, stats, traces, nil
}

func tallyBuffer(buf *areabuffer.Buffer, stats *Stats) {
	for _, a := range buf.Areas() {
		if a.Valid() {
			atomic.AddInt64(&stats.AreasValid, 1)
		} else {
			atomic.AddInt64(&stats.AreasInvalid, 1)
		}
	}
}
