// Package area assembles polygonal area geometries (outer rings with
// inner holes) from OSM ways and multipolygon relations.
package area

import (
	"fmt"
)

// coordScale matches internal/middle.ScaleCoord: lat/lon stored as
// integers scaled by 1e7, giving roughly centimeter fixed-point precision
// without floating point comparison headaches in the geometry core.
const coordScale = 1e7

// Location is a 2-D fixed-point coordinate (lon, lat scaled by 1e7).
// Two locations are equal iff their scaled integers are equal.
type Location struct {
	X int32 // scaled longitude
	Y int32 // scaled latitude
}

// NewLocation builds a Location from floating point degrees.
func NewLocation(lon, lat float64) Location {
	return Location{
		X: int32(lon * coordScale),
		Y: int32(lat * coordScale),
	}
}

// Lon returns the longitude in degrees.
func (l Location) Lon() float64 { return float64(l.X) / coordScale }

// Lat returns the latitude in degrees.
func (l Location) Lat() float64 { return float64(l.Y) / coordScale }

// Less orders locations lexicographically by (x, y), the sort key used
// throughout the assembler (segment list order, min-vertex selection).
func (l Location) Less(o Location) bool {
	if l.X != o.X {
		return l.X < o.X
	}
	return l.Y < o.Y
}

func (l Location) String() string {
	return fmt.Sprintf("(%.7f,%.7f)", l.Lon(), l.Lat())
}

// NodeRef pairs a node id with its location. Two NodeRefs are co-located
// iff their locations are equal; co-located NodeRefs with different ids
// are a reportable anomaly (duplicate node), never a Go-level error.
type NodeRef struct {
	ID  int64
	Loc Location
}

func (nr NodeRef) String() string {
	return fmt.Sprintf("#%d%s", nr.ID, nr.Loc)
}

// sameLocation reports whether nr and other occupy the same point,
// regardless of id. Callers that care about a duplicate-node anomaly
// (same location, different id) report it themselves via the
// ProblemReporter; this helper only answers the geometric question.
func (nr NodeRef) sameLocation(other NodeRef) bool {
	return nr.Loc == other.Loc
}
