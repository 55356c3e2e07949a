package transform

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/paulmach/osm"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/wegman-software/osm-multipolygon/internal/area"
	"github.com/wegman-software/osm-multipolygon/internal/areabuffer"
	"github.com/wegman-software/osm-multipolygon/internal/config"
	"github.com/wegman-software/osm-multipolygon/internal/logger"
	"github.com/wegman-software/osm-multipolygon/internal/parquet"
)

// Stats holds transformation statistics
type Stats struct {
	Points           int64
	Lines            int64
	Polygons         int64
	RelationPolygons int64
}

// Transformer uses DuckDB to build geometries from Parquet files
type Transformer struct {
	cfg *config.Config
	db  *sql.DB
}

// NewTransformer creates a new DuckDB transformer
func NewTransformer(cfg *config.Config) (*Transformer, error) {
	// Open DuckDB with memory limit
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}

	// Use a conservative memory limit (40% of specified) to leave room for OS and other processes
	// DuckDB will spill to disk when this limit is reached
	memLimit := cfg.MemoryMB * 40 / 100
	if memLimit < 4000 {
		memLimit = 4000 // Minimum 4GB
	}

	// Configure DuckDB for performance with disk spilling
	configs := []string{
		fmt.Sprintf("SET memory_limit='%dMB'", memLimit),
		fmt.Sprintf("SET threads=%d", cfg.Workers),
		fmt.Sprintf("SET temp_directory='%s'", filepath.Join(cfg.OutputDir, "duckdb_tmp")),
		"SET enable_progress_bar=true",
		"SET preserve_insertion_order=false", // Allows more parallel execution
		"INSTALL spatial",
		"LOAD spatial",
	}

	for _, c := range configs {
		if _, err := db.Exec(c); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to configure DuckDB (%s): %w", c, err)
		}
	}

	return &Transformer{
		cfg: cfg,
		db:  db,
	}, nil
}

// Close closes the DuckDB connection
func (t *Transformer) Close() error {
	return t.db.Close()
}

// Run executes the transformation
func (t *Transformer) Run() (*Stats, error) {
	stats := &Stats{}

	// Create temp directory for DuckDB spilling
	tmpDir := filepath.Join(t.cfg.OutputDir, "duckdb_tmp")
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	// Create views for Parquet files
	if err := t.createViews(); err != nil {
		return nil, err
	}

	log := logger.Get()

	// Build point geometries (from nodes with tags)
	log.Info("Building point geometries")
	points, err := t.buildPoints()
	if err != nil {
		return nil, fmt.Errorf("failed to build points: %w", err)
	}
	stats.Points = points
	log.Info("Created points", zap.Int64("count", points))

	// Build line geometries (from ways)
	log.Info("Building line geometries")
	lines, err := t.buildLines()
	if err != nil {
		return nil, fmt.Errorf("failed to build lines: %w", err)
	}
	stats.Lines = lines
	log.Info("Created lines", zap.Int64("count", lines))

	// Build polygon geometries from standalone closed ways
	log.Info("Building polygon geometries")
	polygons, err := t.buildPolygons()
	if err != nil {
		return nil, fmt.Errorf("failed to build polygons: %w", err)
	}
	stats.Polygons = polygons
	log.Info("Created polygons", zap.Int64("count", polygons))

	// Build polygon geometries from multipolygon relations
	log.Info("Building relation polygon geometries")
	relPolygons, err := t.buildRelationPolygons()
	if err != nil {
		return nil, fmt.Errorf("failed to build relation polygons: %w", err)
	}
	stats.RelationPolygons = relPolygons
	log.Info("Created relation polygons", zap.Int64("count", relPolygons))

	return stats, nil
}

func (t *Transformer) createViews() error {
	views := map[string]string{
		"nodes":            filepath.Join(t.cfg.OutputDir, "nodes.parquet"),
		"ways":             filepath.Join(t.cfg.OutputDir, "ways.parquet"),
		"way_nodes":        filepath.Join(t.cfg.OutputDir, "way_nodes.parquet"),
		"relations":        filepath.Join(t.cfg.OutputDir, "relations.parquet"),
		"relation_members": filepath.Join(t.cfg.OutputDir, "relation_members.parquet"),
	}

	for name, path := range views {
		sql := fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM read_parquet('%s')", name, path)
		if _, err := t.db.Exec(sql); err != nil {
			return fmt.Errorf("failed to create view %s: %w", name, err)
		}
	}

	return nil
}

func (t *Transformer) buildPoints() (int64, error) {
	outputPath := filepath.Join(t.cfg.OutputDir, "points.parquet")

	// Points are nodes with meaningful tags (not just metadata)
	// We filter out nodes that are just way vertices
	// Output geometry as WKT text for compatibility
	query := fmt.Sprintf(`
		COPY (
			SELECT
				n.id AS osm_id,
				'N' AS osm_type,
				n.tags,
				ST_AsText(ST_Point(n.lon, n.lat)) AS geom_wkt
			FROM nodes n
			WHERE n.tags != '{}'
			  AND n.tags NOT LIKE '%%"created_by"%%'
		) TO '%s' (FORMAT PARQUET, COMPRESSION ZSTD)
	`, outputPath)

	result, err := t.db.Exec(query)
	if err != nil {
		return 0, err
	}

	count, _ := result.RowsAffected()
	return count, nil
}

func (t *Transformer) buildLines() (int64, error) {
	outputPath := filepath.Join(t.cfg.OutputDir, "lines.parquet")

	// Build linestrings from ways by joining with nodes
	// This is the key join operation that was the bottleneck in osm2pgsql
	// Output geometry as WKT text for compatibility
	query := fmt.Sprintf(`
		COPY (
			WITH way_coords AS (
				SELECT
					wn.way_id,
					wn.seq,
					n.lon,
					n.lat
				FROM way_nodes wn
				JOIN nodes n ON wn.node_id = n.id
			),
			way_geoms AS (
				SELECT
					way_id,
					ST_MakeLine(
						list(ST_Point(lon, lat) ORDER BY seq)
					) AS geom
				FROM way_coords
				GROUP BY way_id
				HAVING count(*) >= 2
			)
			SELECT
				w.id AS osm_id,
				'W' AS osm_type,
				w.tags,
				ST_AsText(wg.geom) AS geom_wkt
			FROM ways w
			JOIN way_geoms wg ON w.id = wg.way_id
			WHERE NOT ST_IsClosed(wg.geom)
			   OR w.tags NOT LIKE '%%"area"%%'
		) TO '%s' (FORMAT PARQUET, COMPRESSION ZSTD)
	`, outputPath)

	result, err := t.db.Exec(query)
	if err != nil {
		return 0, err
	}

	count, _ := result.RowsAffected()
	return count, nil
}

// buildPolygons assembles one Area per closed way that is not already a
// member of a multipolygon relation (those are handled by
// buildRelationPolygons instead, so a way never contributes two
// overlapping polygons), using internal/area.Assembler instead of
// DuckDB's ST_MakePolygon — the gap the teacher's own comment on this
// function used to flag.
func (t *Transformer) buildPolygons() (int64, error) {
	outputPath := filepath.Join(t.cfg.OutputDir, "polygons.parquet")

	rows, err := t.db.Query(`
		SELECT w.id, w.tags, wn.seq, n.id, n.lon, n.lat
		FROM ways w
		JOIN way_nodes wn ON wn.way_id = w.id
		JOIN nodes n ON n.id = wn.node_id
		WHERE NOT EXISTS (
			SELECT 1 FROM relation_members rm
			JOIN relations r ON r.id = rm.relation_id
			WHERE rm.type = 'way' AND rm.ref = w.id
			  AND r.tags LIKE '%"type":"multipolygon"%'
		)
		ORDER BY w.id, wn.seq
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to query way coordinates: %w", err)
	}
	defer rows.Close()

	ways, order, err := scanWayCoords(rows)
	if err != nil {
		return 0, err
	}

	writer, err := parquet.NewAreaWriter(outputPath, t.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to create area writer: %w", err)
	}
	defer writer.Close()

	asm := area.NewAssembler(area.NoopReporter{})
	var count int64
	for _, wayID := range order {
		way := ways[wayID]
		if len(way.Nodes) < 4 {
			continue
		}
		buf := areabuffer.NewBuffer()
		if err := asm.AssembleWay(way.way, way.resolve, buf); err != nil {
			return count, fmt.Errorf("failed to assemble way %d: %w", wayID, err)
		}
		for _, a := range buf.ValidAreas() {
			if err := parquet.WriteArea(writer, a, "W"); err != nil {
				return count, fmt.Errorf("failed to write area for way %d: %w", wayID, err)
			}
			count++
		}
	}

	return count, nil
}

// buildRelationPolygons assembles one Area (possibly a multipolygon
// with holes) per "type=multipolygon" relation, resolving member ways
// from the same tables buildPolygons reads, then handing everything to
// internal/area.Assembler.AssembleRelation.
func (t *Transformer) buildRelationPolygons() (int64, error) {
	outputPath := filepath.Join(t.cfg.OutputDir, "relation_polygons.parquet")

	relRows, err := t.db.Query(`
		SELECT id, tags FROM relations
		WHERE tags LIKE '%"type":"multipolygon"%'
		ORDER BY id
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to query multipolygon relations: %w", err)
	}
	relations := make(map[int64]*osm.Relation)
	var relOrder []int64
	for relRows.Next() {
		var id int64
		var tagsJSON string
		if err := relRows.Scan(&id, &tagsJSON); err != nil {
			relRows.Close()
			return 0, err
		}
		relations[id] = &osm.Relation{ID: osm.RelationID(id), Tags: parquet.TagsFromJSON(tagsJSON)}
		relOrder = append(relOrder, id)
	}
	relRows.Close()
	if err := relRows.Err(); err != nil {
		return 0, err
	}

	memberRows, err := t.db.Query(`
		SELECT relation_id, seq, type, ref, role
		FROM relation_members
		WHERE relation_id IN (SELECT id FROM relations WHERE tags LIKE '%"type":"multipolygon"%')
		ORDER BY relation_id, seq
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to query relation members: %w", err)
	}
	for memberRows.Next() {
		var relID int64
		var seq int32
		var mtype, role string
		var ref int64
		if err := memberRows.Scan(&relID, &seq, &mtype, &ref, &role); err != nil {
			memberRows.Close()
			return 0, err
		}
		rel, ok := relations[relID]
		if !ok || mtype != "way" {
			continue
		}
		rel.Members = append(rel.Members, osm.Member{Type: osm.TypeWay, Ref: ref, Role: role})
	}
	memberRows.Close()
	if err := memberRows.Err(); err != nil {
		return 0, err
	}

	wayRows, err := t.db.Query(`
		SELECT w.id, w.tags, wn.seq, n.id, n.lon, n.lat
		FROM ways w
		JOIN way_nodes wn ON wn.way_id = w.id
		JOIN nodes n ON n.id = wn.node_id
		WHERE w.id IN (
			SELECT DISTINCT rm.ref FROM relation_members rm
			JOIN relations r ON r.id = rm.relation_id
			WHERE rm.type = 'way' AND r.tags LIKE '%"type":"multipolygon"%'
		)
		ORDER BY w.id, wn.seq
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to query member way coordinates: %w", err)
	}
	ways, _, err := scanWayCoords(wayRows)
	wayRows.Close()
	if err != nil {
		return 0, err
	}

	writer, err := parquet.NewAreaWriter(outputPath, t.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to create relation area writer: %w", err)
	}
	defer writer.Close()

	asm := area.NewAssembler(area.NoopReporter{})
	var count int64
	for _, relID := range relOrder {
		rel := relations[relID]
		members := make(map[int64]*osm.Way)
		resolve := func(nodeID int64) (area.Location, bool) { return area.Location{}, false }
		for _, m := range rel.Members {
			wc, ok := ways[m.Ref]
			if !ok {
				continue
			}
			members[m.Ref] = wc.way
			resolve = chainResolvers(resolve, wc.resolve)
		}
		buf := areabuffer.NewBuffer()
		if err := asm.AssembleRelation(rel, members, resolve, buf); err != nil {
			return count, fmt.Errorf("failed to assemble relation %d: %w", relID, err)
		}
		for _, a := range buf.ValidAreas() {
			if err := parquet.WriteArea(writer, a, "R"); err != nil {
				return count, fmt.Errorf("failed to write area for relation %d: %w", relID, err)
			}
			count++
		}
	}

	return count, nil
}

// wayCoords pairs a reconstructed way with a resolver over only the
// node locations that query actually returned for it.
type wayCoords struct {
	way     *osm.Way
	resolve area.LocationResolver
}

// scanWayCoords consumes rows shaped (way_id, tags, seq, node_id, lon,
// lat), ordered by (way_id, seq), and reconstructs one *osm.Way plus a
// location resolver per way. order preserves the way_id order the rows
// arrived in.
func scanWayCoords(rows *sql.Rows) (map[int64]wayCoords, []int64, error) {
	ways := make(map[int64]wayCoords)
	points := make(map[int64]map[int64][2]float64)
	var order []int64

	for rows.Next() {
		var wayID, nodeID int64
		var tagsJSON string
		var seq int32
		var lon, lat float64
		if err := rows.Scan(&wayID, &tagsJSON, &seq, &nodeID, &lon, &lat); err != nil {
			return nil, nil, err
		}

		wc, ok := ways[wayID]
		if !ok {
			wc = wayCoords{way: &osm.Way{ID: osm.WayID(wayID), Tags: parquet.TagsFromJSON(tagsJSON)}}
			order = append(order, wayID)
			points[wayID] = make(map[int64][2]float64)
		}
		wc.way.Nodes = append(wc.way.Nodes, osm.WayNode{ID: osm.NodeID(nodeID)})
		ways[wayID] = wc
		points[wayID][nodeID] = [2]float64{lon, lat}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	for id, wc := range ways {
		pts := points[id]
		wc.resolve = func(nodeID int64) (area.Location, bool) {
			p, ok := pts[nodeID]
			if !ok {
				return area.Location{}, false
			}
			return area.NewLocation(p[0], p[1]), true
		}
		ways[id] = wc
	}

	return ways, order, nil
}

// chainResolvers tries a first, falling back to b — used to merge the
// per-way resolvers of a relation's members into one LocationResolver
// without copying every point into a single shared map.
func chainResolvers(a, b area.LocationResolver) area.LocationResolver {
	return func(nodeID int64) (area.Location, bool) {
		if loc, ok := a(nodeID); ok {
			return loc, ok
		}
		return b(nodeID)
	}
}
