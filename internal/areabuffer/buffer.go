// Package areabuffer holds the assembled Area records produced by
// internal/area.Assembler and renders them to EWKB, adapting the
// teacher's internal/wkb encoder to polygon and multipolygon output.
package areabuffer

import (
	"github.com/wegman-software/osm-multipolygon/internal/area"
	"github.com/wegman-software/osm-multipolygon/internal/wkb"
)

// Buffer is an append-only, index-addressable store of areas. The
// Assembler commits a placeholder entry before stage-2 runs (spec.md
// §4.5 "Initial commit") and overwrites it in place once rings are
// known, so every object the assembler is asked about produces at least
// one buffer entry regardless of outcome (a relation's inner-way tag
// rescue appends further entries after its own).
type Buffer struct {
	areas []*area.Area
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Commit appends a (possibly ring-less, invalid) area and returns its
// index for a later Update.
func (b *Buffer) Commit(a *area.Area) int {
	b.areas = append(b.areas, a)
	return len(b.areas) - 1
}

// Update replaces the area at idx, normally with the same *Area pointer
// mutated in place by the caller — Update exists so the buffer's
// contract doesn't depend on that aliasing.
func (b *Buffer) Update(idx int, a *area.Area) {
	b.areas[idx] = a
}

// Len returns the number of committed areas, valid or not.
func (b *Buffer) Len() int { return len(b.areas) }

// At returns the area committed at idx.
func (b *Buffer) At(idx int) *area.Area { return b.areas[idx] }

// Areas returns every committed area, in commit order.
func (b *Buffer) Areas() []*area.Area { return b.areas }

// ValidAreas returns only the areas with at least one ring.
func (b *Buffer) ValidAreas() []*area.Area {
	out := make([]*area.Area, 0, len(b.areas))
	for _, a := range b.areas {
		if a.Valid() {
			out = append(out, a)
		}
	}
	return out
}

// EWKB renders a's geometry: EncodePolygonWithRings for a single ring
// group, EncodeMultiPolygon when an area assembled into more than one
// outer ring (spec.md §3 Area "zero or more RingGroups"). An invalid
// (ring-less) area renders to nil.
func EWKB(enc *wkb.Encoder, a *area.Area) []byte {
	switch len(a.Rings) {
	case 0:
		return nil
	case 1:
		return enc.EncodePolygonWithRings(ringGroupFloats(a.Rings[0]))
	default:
		polys := make([][][]float64, len(a.Rings))
		for i, rg := range a.Rings {
			polys[i] = ringGroupFloats(rg)
		}
		return enc.EncodeMultiPolygon(polys)
	}
}

func ringGroupFloats(rg area.RingGroup) [][]float64 {
	rings := make([][]float64, 0, 1+len(rg.Inners))
	rings = append(rings, nodeRefsToFloats(rg.Outer))
	for _, inner := range rg.Inners {
		rings = append(rings, nodeRefsToFloats(inner))
	}
	return rings
}

func nodeRefsToFloats(nodes []area.NodeRef) []float64 {
	coords := make([]float64, 0, len(nodes)*2)
	for _, n := range nodes {
		coords = append(coords, n.Loc.Lon(), n.Loc.Lat())
	}
	return coords
}
