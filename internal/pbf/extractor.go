package pbf

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/wegman-software/osm-multipolygon/internal/config"
	"github.com/wegman-software/osm-multipolygon/internal/logger"
	"github.com/wegman-software/osm-multipolygon/internal/parquet"
)

// Stats holds extraction statistics
type Stats struct {
	Nodes     int64
	Ways      int64
	Relations int64
	BytesRead int64
}

// Extractor reads PBF files and writes them to the raw Parquet tables
// internal/transform builds geometries from.
type Extractor struct {
	cfg *config.Config

	stats Stats
}

// NewExtractor creates a new PBF extractor
func NewExtractor(cfg *config.Config) (*Extractor, error) {
	// Create output directory
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Extractor{cfg: cfg}, nil
}

// Close is a no-op; the extractor holds no resources between calls to Run.
func (e *Extractor) Close() error {
	return nil
}

// Run scans the PBF file once and writes nodes/ways/relations straight to
// their raw Parquet tables. Unlike the diff/slim-mode pipeline in
// internal/pipeline, this extractor does no coordinate lookups itself —
// every node carries its own lat/lon, and way/relation geometry is
// reconstructed later by internal/transform joining way_nodes against
// nodes in DuckDB.
func (e *Extractor) Run() (*Stats, error) {
	log := logger.Get()

	f, err := os.Open(e.cfg.InputFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fileInfo, err := f.Stat()
	if err != nil {
		return nil, err
	}
	e.stats.BytesRead = fileInfo.Size()

	log.Info("Writing raw node/way/relation tables")
	start := time.Now()
	nodeCount, wayCount, relCount, err := e.buildTablesParallel(f)
	if err != nil {
		return nil, err
	}
	e.stats.Nodes = nodeCount
	e.stats.Ways = wayCount
	e.stats.Relations = relCount
	log.Info("Extraction complete",
		zap.Int64("nodes", nodeCount), zap.Int64("ways", wayCount), zap.Int64("relations", relCount),
		zap.Duration("duration", time.Since(start).Round(time.Second)))

	return &e.stats, nil
}

// buildTablesParallel drains the PBF straight into the
// five raw Parquet tables (nodes, ways, way_nodes, relations,
// relation_members) that internal/transform's DuckDB views are built from.
// Each object type has its own writer goroutine (nodes; ways plus
// way_nodes; relations plus relation_members), since an Arrow
// RecordBuilder isn't safe for concurrent writes; the PBF scanner itself
// still decodes in parallel (osmpbf.New(ctx, f, runtime.NumCPU())), so the
// bottleneck this splits across goroutines is table I/O, not decoding.
func (e *Extractor) buildTablesParallel(f *os.File) (int64, int64, int64, error) {
	log := logger.Get()

	nodeChan := make(chan *osm.Node, 10000)
	wayChan := make(chan *osm.Way, 10000)
	relChan := make(chan *osm.Relation, 1000)

	var nodeCount, wayCount, relCount atomic.Int64
	var writerErr error
	var mu sync.Mutex
	setErr := func(err error) {
		mu.Lock()
		if writerErr == nil {
			writerErr = err
		}
		mu.Unlock()
	}

	var writerWg sync.WaitGroup
	writerWg.Add(3)

	go func() {
		defer writerWg.Done()
		w, err := parquet.NewNodeWriter(filepath.Join(e.cfg.OutputDir, "nodes.parquet"), e.cfg.BatchSize)
		if err != nil {
			setErr(fmt.Errorf("failed to create nodes.parquet: %w", err))
			for range nodeChan {
			}
			return
		}
		defer w.Close()
		for n := range nodeChan {
			nodeCount.Add(1)
			if err := w.Write(n); err != nil {
				setErr(err)
			}
		}
	}()

	go func() {
		defer writerWg.Done()
		ways, err := parquet.NewWayWriter(filepath.Join(e.cfg.OutputDir, "ways.parquet"), e.cfg.BatchSize)
		if err != nil {
			setErr(fmt.Errorf("failed to create ways.parquet: %w", err))
			for range wayChan {
			}
			return
		}
		defer ways.Close()
		wayNodes, err := parquet.NewWayNodeWriter(filepath.Join(e.cfg.OutputDir, "way_nodes.parquet"), e.cfg.BatchSize)
		if err != nil {
			setErr(fmt.Errorf("failed to create way_nodes.parquet: %w", err))
			for range wayChan {
			}
			return
		}
		defer wayNodes.Close()

		for way := range wayChan {
			wayCount.Add(1)
			if err := ways.Write(way); err != nil {
				setErr(err)
			}
			for seq, nodeRef := range way.Nodes {
				if err := wayNodes.Write(int64(way.ID), int32(seq), int64(nodeRef.ID)); err != nil {
					setErr(err)
				}
			}
		}
	}()

	go func() {
		defer writerWg.Done()
		relations, err := parquet.NewRelationWriter(filepath.Join(e.cfg.OutputDir, "relations.parquet"), e.cfg.BatchSize)
		if err != nil {
			setErr(fmt.Errorf("failed to create relations.parquet: %w", err))
			for range relChan {
			}
			return
		}
		defer relations.Close()
		members, err := parquet.NewRelationMemberWriter(filepath.Join(e.cfg.OutputDir, "relation_members.parquet"), e.cfg.BatchSize)
		if err != nil {
			setErr(fmt.Errorf("failed to create relation_members.parquet: %w", err))
			for range relChan {
			}
			return
		}
		defer members.Close()

		for rel := range relChan {
			relCount.Add(1)
			if err := relations.Write(rel); err != nil {
				setErr(err)
			}
			for seq, m := range rel.Members {
				if err := members.Write(int64(rel.ID), int32(seq), memberTypeCode(m.Type), int64(m.Ref), m.Role); err != nil {
					setErr(err)
				}
			}
		}
	}()

	// Progress ticker
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.Debug("Table writing progress",
					zap.Int64("nodes", nodeCount.Load()),
					zap.Int64("ways", wayCount.Load()),
					zap.Int64("relations", relCount.Load()))
			}
		}
	}()

	// Read PBF and distribute work
	scanner := osmpbf.New(context.Background(), f, runtime.NumCPU())
	defer scanner.Close()

	for scanner.Scan() {
		obj := scanner.Object()
		switch o := obj.(type) {
		case *osm.Node:
			if !e.cfg.SkipNodes {
				nodeChan <- o
			}
		case *osm.Way:
			if !e.cfg.SkipWays {
				wayChan <- o
			}
		case *osm.Relation:
			if !e.cfg.SkipRelations {
				relChan <- o
			}
		}
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		close(nodeChan)
		close(wayChan)
		close(relChan)
		cancel()
		return 0, 0, 0, err
	}

	close(nodeChan)
	close(wayChan)
	close(relChan)
	writerWg.Wait()
	cancel()

	if writerErr != nil {
		return 0, 0, 0, writerErr
	}

	return nodeCount.Load(), wayCount.Load(), relCount.Load(), nil
}

// memberTypeCode renders a relation member's type the way
// relation_members.type is stored: "node"/"way"/"relation", matching
// what internal/transform and cmd/assemble's own SQL (WHERE rm.type =
// 'way') expect.
func memberTypeCode(t osm.Type) string {
	switch t {
	case osm.TypeNode:
		return "node"
	case osm.TypeWay:
		return "way"
	case osm.TypeRelation:
		return "relation"
	default:
		return ""
	}
}
