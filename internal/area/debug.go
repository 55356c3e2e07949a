package area

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// traceRings renders the assembler's current ring list as a GeoJSON
// FeatureCollection, one LineString feature per ring, tagged with its
// closed/outer state. Only built when EnableDebugOutput(true) — this is
// the "Assembler developers only" trace of spec.md §6, supplemented per
// SPEC_FULL.md §9 to give that trace a concrete, inspectable form
// instead of leaving it as a log-only stub.
func (a *Assembler) traceRings() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, r := range a.rings {
		ls := make(orb.LineString, 0, len(r.Segments)+1)
		ls = append(ls, orb.Point{r.FirstSegment().First.Loc.Lon(), r.FirstSegment().First.Loc.Lat()})
		for _, s := range r.Segments {
			ls = append(ls, orb.Point{s.Second.Loc.Lon(), s.Second.Loc.Lat()})
		}
		f := geojson.NewFeature(ls)
		f.Properties["ring_index"] = i
		f.Properties["closed"] = r.Closed()
		f.Properties["outer"] = r.outer
		fc.Append(f)
	}
	return fc
}

// TraceJSON returns the current ring list as GeoJSON bytes, or nil if
// debug output is disabled. Safe to call mid-assembly (e.g. from a test
// after a failed stage2 run) as well as after a successful one.
func (a *Assembler) TraceJSON() ([]byte, error) {
	if !a.debug {
		return nil, nil
	}
	return a.traceRings().MarshalJSON()
}
