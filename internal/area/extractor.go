package area

import "github.com/paulmach/osm"

// LocationResolver resolves a node id to its location. The assembler
// never looks up coordinates itself — that's the out-of-scope
// collector/node-index collaborator's job (spec.md §1); ok is false if
// the id is unknown to the resolver.
type LocationResolver func(nodeID int64) (Location, bool)

// extractWaySegments is component C1: convert one way into directed,
// canonically-oriented segments tagged with the way's id and the given
// role. Extraction never fails outright; anomalies are reported and
// extraction continues (spec.md §4.1 "Failure modes: None fatal").
func extractWaySegments(way *osm.Way, resolve LocationResolver, role Role, objectID int64, reporter ProblemReporter) []Segment {
	nodes := way.Nodes
	if len(nodes) < 2 {
		return nil
	}

	var segs []Segment
	for i := 0; i+1 < len(nodes); i++ {
		aID, bID := int64(nodes[i].ID), int64(nodes[i+1].ID)
		if aID == bID {
			// Duplicate consecutive node reference: zero-length
			// segment, skip but flag it.
			if loc, ok := resolve(aID); ok && reporter != nil {
				reporter.ReportDuplicateNode(aID, bID, loc)
			}
			continue
		}
		aLoc, aOK := resolve(aID)
		bLoc, bOK := resolve(bID)
		if !aOK || !bOK {
			continue
		}
		if aLoc == bLoc {
			// Zero-length by location even though ids differ upstream
			// of dedup; stripped same as a same-id pair.
			continue
		}
		a := NodeRef{ID: aID, Loc: aLoc}
		b := NodeRef{ID: bID, Loc: bLoc}
		segs = append(segs, newSegment(a, b, int64(way.ID), role))
	}
	return segs
}

// checkWayEnds reports the duplicate-node anomaly for the single-way
// entry point: if the way's first and last node ids differ, the area
// may still be valid (their locations can coincide), but the mismatch
// is always worth flagging (spec.md §4.1).
func checkWayEnds(way *osm.Way, resolve LocationResolver, reporter ProblemReporter) {
	if len(way.Nodes) < 2 || reporter == nil {
		return
	}
	first := way.Nodes[0]
	last := way.Nodes[len(way.Nodes)-1]
	if int64(first.ID) == int64(last.ID) {
		return
	}
	loc, ok := resolve(int64(first.ID))
	if !ok {
		return
	}
	reporter.ReportDuplicateNode(int64(first.ID), int64(last.ID), loc)
}

// roleFromMemberString maps an OSM member role string to Role, the way
// the single-way entry point's implicit "outer" default and the
// relation entry point's per-member role string both funnel into the
// same type.
func roleFromMemberString(role string) Role {
	switch role {
	case "outer":
		return RoleOuter
	case "inner":
		return RoleInner
	default:
		return RoleUnknown
	}
}
