package area

import (
	"time"

	"github.com/paulmach/osm"
)

// RingGroup is one outer ring and the inner rings (holes) cut into it,
// each as an ordered, closed NodeRef polyline (first and last entries
// co-located).
type RingGroup struct {
	Outer  []NodeRef
	Inners [][]NodeRef
}

// Area is the assembled output record: spec.md §3's Area type. An Area
// with zero Rings is, by definition, invalid — the committed marker the
// caller sees on any stage-2 failure (spec.md §4.5 "Initial commit").
type Area struct {
	ID        int64
	Version   int
	Changeset int64
	Timestamp time.Time
	Visible   bool
	UID       int64
	User      string
	Tags      osm.Tags
	Rings     []RingGroup
}

// Valid reports whether the area carries at least one ring.
func (a *Area) Valid() bool { return len(a.Rings) > 0 }

// areaID implements spec.md §3/§8 invariant 6:
// id = source.id * 2 + origin_offset (way = 0, relation = 1).
func areaID(sourceID int64, originOffset int64) int64 {
	return sourceID*2 + originOffset
}

func areaFromWay(way *osm.Way) *Area {
	return &Area{
		ID:        areaID(int64(way.ID), 0),
		Version:   way.Version,
		Changeset: int64(way.Changeset),
		Timestamp: way.Timestamp,
		Visible:   way.Visible,
		UID:       int64(way.UserID),
		User:      way.User,
	}
}

func areaFromRelation(rel *osm.Relation) *Area {
	return &Area{
		ID:        areaID(int64(rel.ID), 1),
		Version:   rel.Version,
		Changeset: int64(rel.Changeset),
		Timestamp: rel.Timestamp,
		Visible:   rel.Visible,
		UID:       int64(rel.UserID),
		User:      rel.User,
	}
}
