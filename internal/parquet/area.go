package parquet

import (
	"fmt"
	"strings"

	"github.com/wegman-software/osm-multipolygon/internal/area"
)

// AreaWriter writes internal/area.Assembler output to the same
// (osm_id, osm_type, tags, geom_wkt) schema the DuckDB-driven point and
// line stages already use — GeometryWriter, renamed at the call site so
// internal/transform's polygon stage reads the same as the others.
type AreaWriter = GeometryWriter

// NewAreaWriter is NewGeometryWriter under the name the area-assembly
// stage uses.
func NewAreaWriter(path string, batchSize int) (*AreaWriter, error) {
	return NewGeometryWriter(path, batchSize)
}

// WriteArea renders a and appends it to w, tagged with osmType ("W" or
// "R"). A ring-less (invalid) area is silently skipped — the same
// behavior buildPolygons already had for ways that failed to close.
func WriteArea(w *AreaWriter, a *area.Area, osmType string) error {
	if !a.Valid() {
		return nil
	}
	wkt := AreaWKT(a)
	if wkt == "" {
		return nil
	}
	return w.Write(a.ID, osmType, TagsToJSON(a.Tags), wkt)
}

// AreaWKT renders a's rings as WKT: POLYGON for a single ring group,
// MULTIPOLYGON for more than one, matching the ST_AsText output the
// DuckDB-driven stages produce for points and lines.
func AreaWKT(a *area.Area) string {
	switch len(a.Rings) {
	case 0:
		return ""
	case 1:
		return "POLYGON(" + polygonRingsWKT(a.Rings[0]) + ")"
	default:
		var b strings.Builder
		b.WriteString("MULTIPOLYGON(")
		for i, rg := range a.Rings {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString("(")
			b.WriteString(polygonRingsWKT(rg))
			b.WriteString(")")
		}
		b.WriteString(")")
		return b.String()
	}
}

func polygonRingsWKT(rg area.RingGroup) string {
	var b strings.Builder
	b.WriteString(ringWKT(rg.Outer))
	for _, inner := range rg.Inners {
		b.WriteString(",")
		b.WriteString(ringWKT(inner))
	}
	return b.String()
}

func ringWKT(nodes []area.NodeRef) string {
	var b strings.Builder
	b.WriteString("(")
	for i, n := range nodes {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "%g %g", n.Loc.Lon(), n.Loc.Lat())
	}
	b.WriteString(")")
	return b.String()
}
