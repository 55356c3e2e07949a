package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/paulmach/osm"
	"github.com/spf13/cobra"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/wegman-software/osm-multipolygon/internal/area"
	"github.com/wegman-software/osm-multipolygon/internal/batch"
	"github.com/wegman-software/osm-multipolygon/internal/collector"
	"github.com/wegman-software/osm-multipolygon/internal/logger"
	"github.com/wegman-software/osm-multipolygon/internal/metrics"
	"github.com/wegman-software/osm-multipolygon/internal/nodeindex"
	"github.com/wegman-software/osm-multipolygon/internal/parquet"
)

var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Assemble multipolygon areas from extracted ways and relations",
	Long: `Run internal/area.Assembler over every closed way and every
type=multipolygon relation in the extracted Parquet files, fanned out
across --workers goroutines via internal/batch.Coordinator, and write
the resulting polygons/multipolygons to area_polygons.parquet.

Unlike the "transform" stage, which builds polygons inline while it
walks DuckDB query results, this path loads all node coordinates into a
memory-mapped index up front and keeps every way and relation in
memory for the whole run, the way the out-of-scope "Collector"
component described in the area-assembly design is expected to.`,
	Run: runAssemble,
}

func init() {
	rootCmd.AddCommand(assembleCmd)

	assembleCmd.Flags().BoolVar(&cfg.Debug, "debug", false, "Trace assembled rings as GeoJSON alongside each area")
	assembleCmd.Flags().StringVar(&cfg.ProblemLog, "problem-log", "", "Path to write area-assembly problem diagnostics (empty discards them)")
}

func runAssemble(cmd *cobra.Command, args []string) {
	log := logger.Get()
	log.Info("Starting area assembly",
		zap.String("input_dir", cfg.OutputDir),
		zap.Int("workers", cfg.Workers),
	)

	start := time.Now()

	reporter, closeReporter, err := newProblemReporter(cfg.ProblemLog, log)
	if err != nil {
		exitWithError("failed to open problem log", err)
	}
	defer closeReporter()

	idxPath := filepath.Join(cfg.OutputDir, "assemble_nodes.idx")
	nodes, err := nodeindex.NewMmapIndex(idxPath)
	if err != nil {
		exitWithError("failed to create node index", err)
	}
	defer nodes.Close()
	defer os.Remove(idxPath)

	db, err := sql.Open("duckdb", "")
	if err != nil {
		exitWithError("failed to open DuckDB", err)
	}
	defer db.Close()

	if err := createAssembleViews(db, cfg.OutputDir); err != nil {
		exitWithError("failed to open extracted Parquet files", err)
	}

	nodeCount, err := loadNodesIntoIndex(db, nodes)
	if err != nil {
		exitWithError("failed to load node coordinates", err)
	}
	log.Info("Loaded node index", zap.Int64("nodes", nodeCount))

	coll := collector.New(nodes)

	ways, standaloneWays, err := loadWaysForAssembly(db)
	if err != nil {
		exitWithError("failed to load ways", err)
	}
	for _, way := range ways {
		coll.PutWay(way)
	}

	relations, err := loadMultipolygonRelations(db)
	if err != nil {
		exitWithError("failed to load multipolygon relations", err)
	}

	log.Info("Assembling areas",
		zap.Int("standalone_ways", len(standaloneWays)),
		zap.Int("relations", len(relations)),
	)

	coord := &batch.Coordinator{
		Concurrency: cfg.Workers,
		Reporter:    reporter,
		Resolve:     coll.Resolve,
		Members:     coll.MemberWays,
		Debug:       cfg.Debug,
	}

	buffers, stats, traces, err := coord.Run(context.Background(), standaloneWays, relations)
	if err != nil {
		exitWithError("area assembly failed", err)
	}

	if cfg.Debug {
		if err := writeDebugTraces(cfg.OutputDir, traces); err != nil {
			exitWithError("failed to write debug ring traces", err)
		}
	}

	assemblyStats := &metrics.AssemblyStats{}
	assemblyStats.Add(stats)

	outputPath := filepath.Join(cfg.OutputDir, "area_polygons.parquet")
	writer, err := parquet.NewAreaWriter(outputPath, cfg.BatchSize)
	if err != nil {
		exitWithError("failed to create area writer", err)
	}
	defer writer.Close()

	written := 0
	for i, buf := range buffers {
		osmType := "W"
		if i >= len(standaloneWays) {
			osmType = "R"
		}
		for _, a := range buf.ValidAreas() {
			if err := parquet.WriteArea(writer, a, osmType); err != nil {
				exitWithError("failed to write assembled area", err)
			}
			written++
		}
	}

	elapsed := time.Since(start)
	assemblyStats.Log(log)
	log.Info("Area assembly complete",
		zap.Duration("duration", elapsed.Round(time.Second)),
		zap.Int("areas_written", written),
	)
}

// newProblemReporter builds a LoggingReporter writing to path, or a
// NoopReporter when path is empty, matching config.ProblemLog's
// documented "empty = discard" convention.
func newProblemReporter(path string, log *zap.Logger) (area.ProblemReporter, func(), error) {
	if path == "" {
		return area.NoopReporter{}, func() {}, nil
	}

	problemLogger, err := logger.NewFileLogger(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open problem log %s: %w", path, err)
	}
	reporter := area.NewLoggingReporter(problemLogger)
	return reporter, func() { _ = problemLogger.Sync() }, nil
}

// writeDebugTraces concatenates every non-nil ring trace into a single
// newline-delimited GeoJSON file, one FeatureCollection per assembled
// item, for ad hoc inspection of how an area's rings were stitched.
func writeDebugTraces(outputDir string, traces [][]byte) error {
	path := filepath.Join(outputDir, "area_debug_traces.ndjson")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, trace := range traces {
		if len(trace) == 0 {
			continue
		}
		if _, err := f.Write(trace); err != nil {
			return err
		}
		if _, err := f.Write([]byte("\n")); err != nil {
			return err
		}
	}
	return nil
}

func createAssembleViews(db *sql.DB, outputDir string) error {
	views := map[string]string{
		"nodes":            filepath.Join(outputDir, "nodes.parquet"),
		"ways":             filepath.Join(outputDir, "ways.parquet"),
		"way_nodes":        filepath.Join(outputDir, "way_nodes.parquet"),
		"relations":        filepath.Join(outputDir, "relations.parquet"),
		"relation_members": filepath.Join(outputDir, "relation_members.parquet"),
	}
	for name, path := range views {
		stmt := fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM read_parquet('%s')", name, path)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create view %s: %w", name, err)
		}
	}
	return nil
}

func loadNodesIntoIndex(db *sql.DB, idx *nodeindex.MmapIndex) (int64, error) {
	rows, err := db.Query(`SELECT id, lat, lon FROM nodes`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var count int64
	for rows.Next() {
		var id int64
		var lat, lon float64
		if err := rows.Scan(&id, &lat, &lon); err != nil {
			return count, err
		}
		idx.Put(id, lat, lon)
		count++
	}
	return count, rows.Err()
}

// loadWaysForAssembly returns every way (for the collector's member-way
// cache) plus the subset not referenced by any type=multipolygon
// relation (the ones the Coordinator assembles standalone, matching
// internal/transform.buildPolygons's exclusion rule so a way never
// contributes both a standalone polygon and a relation polygon).
func loadWaysForAssembly(db *sql.DB) (all []*osm.Way, standalone []*osm.Way, err error) {
	rows, err := db.Query(`
		SELECT w.id, w.tags, wn.seq, wn.node_id
		FROM ways w
		JOIN way_nodes wn ON wn.way_id = w.id
		ORDER BY w.id, wn.seq
	`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	byID := make(map[int64]*osm.Way)
	var order []int64
	for rows.Next() {
		var wayID, nodeID int64
		var tagsJSON string
		var seq int32
		if err := rows.Scan(&wayID, &tagsJSON, &seq, &nodeID); err != nil {
			return nil, nil, err
		}
		way, ok := byID[wayID]
		if !ok {
			way = &osm.Way{ID: osm.WayID(wayID), Tags: parquet.TagsFromJSON(tagsJSON)}
			byID[wayID] = way
			order = append(order, wayID)
		}
		way.Nodes = append(way.Nodes, osm.WayNode{ID: osm.NodeID(nodeID)})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	memberRows, err := db.Query(`
		SELECT DISTINCT rm.ref
		FROM relation_members rm
		JOIN relations r ON r.id = rm.relation_id
		WHERE rm.type = 'way' AND r.tags LIKE '%"type":"multipolygon"%'
	`)
	if err != nil {
		return nil, nil, err
	}
	memberOf := make(map[int64]bool)
	for memberRows.Next() {
		var ref int64
		if err := memberRows.Scan(&ref); err != nil {
			memberRows.Close()
			return nil, nil, err
		}
		memberOf[ref] = true
	}
	memberRows.Close()
	if err := memberRows.Err(); err != nil {
		return nil, nil, err
	}

	all = make([]*osm.Way, 0, len(order))
	standalone = make([]*osm.Way, 0, len(order))
	for _, id := range order {
		way := byID[id]
		all = append(all, way)
		if !memberOf[id] {
			standalone = append(standalone, way)
		}
	}
	return all, standalone, nil
}

func loadMultipolygonRelations(db *sql.DB) ([]*osm.Relation, error) {
	relRows, err := db.Query(`
		SELECT id, tags FROM relations
		WHERE tags LIKE '%"type":"multipolygon"%'
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*osm.Relation)
	var order []int64
	for relRows.Next() {
		var id int64
		var tagsJSON string
		if err := relRows.Scan(&id, &tagsJSON); err != nil {
			relRows.Close()
			return nil, err
		}
		byID[id] = &osm.Relation{ID: osm.RelationID(id), Tags: parquet.TagsFromJSON(tagsJSON)}
		order = append(order, id)
	}
	relRows.Close()
	if err := relRows.Err(); err != nil {
		return nil, err
	}

	memberRows, err := db.Query(`
		SELECT relation_id, seq, type, ref, role
		FROM relation_members
		WHERE relation_id IN (SELECT id FROM relations WHERE tags LIKE '%"type":"multipolygon"%')
		ORDER BY relation_id, seq
	`)
	if err != nil {
		return nil, err
	}
	defer memberRows.Close()
	for memberRows.Next() {
		var relID int64
		var seq int32
		var mtype, role string
		var ref int64
		if err := memberRows.Scan(&relID, &seq, &mtype, &ref, &role); err != nil {
			return nil, err
		}
		rel, ok := byID[relID]
		if !ok || mtype != "way" {
			continue
		}
		rel.Members = append(rel.Members, osm.Member{Type: osm.TypeWay, Ref: ref, Role: role})
	}
	if err := memberRows.Err(); err != nil {
		return nil, err
	}

	relations := make([]*osm.Relation, 0, len(order))
	for _, id := range order {
		relations = append(relations, byID[id])
	}
	return relations, nil
}
