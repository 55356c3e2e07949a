package area

import (
	"testing"

	"github.com/paulmach/osm"
)

func TestFilterTagsDropsIgnoredKeys(t *testing.T) {
	tags := osm.Tags{
		{Key: "building", Value: "yes"},
		{Key: "created_by", Value: "JOSM"},
		{Key: "source", Value: "survey"},
	}
	got := filterTags(tags, ignoredInnerWayKeys)
	if len(got) != 1 || got[0].Key != "building" {
		t.Errorf("filterTags() = %v, want only [building=yes]", got)
	}
}

func TestEqualAsSetsIgnoresOrder(t *testing.T) {
	a := tagSet{{Key: "building", Value: "yes"}, {Key: "name", Value: "Foo"}}
	b := tagSet{{Key: "name", Value: "Foo"}, {Key: "building", Value: "yes"}}
	if !a.equalAsSets(b) {
		t.Errorf("expected equal tag sets regardless of order")
	}
	c := tagSet{{Key: "name", Value: "Bar"}, {Key: "building", Value: "yes"}}
	if a.equalAsSets(c) {
		t.Errorf("expected differing values to break equality")
	}
}

func TestCommonTagsOnlyKeepsUnanimousPairs(t *testing.T) {
	w1 := &osm.Way{Tags: osm.Tags{{Key: "building", Value: "yes"}, {Key: "name", Value: "A"}}}
	w2 := &osm.Way{Tags: osm.Tags{{Key: "building", Value: "yes"}, {Key: "name", Value: "B"}}}
	got := commonTags([]*osm.Way{w1, w2})
	if len(got) != 1 || got[0].Key != "building" || got[0].Value != "yes" {
		t.Errorf("commonTags() = %v, want only [building=yes]", got)
	}
}

func TestCommonTagsDeterministicOrder(t *testing.T) {
	w1 := &osm.Way{Tags: osm.Tags{
		{Key: "building", Value: "yes"},
		{Key: "amenity", Value: "cafe"},
		{Key: "name", Value: "A"},
	}}
	w2 := &osm.Way{Tags: osm.Tags{
		{Key: "amenity", Value: "cafe"},
		{Key: "building", Value: "yes"},
		{Key: "name", Value: "B"},
	}}
	ways := []*osm.Way{w1, w2}
	first := commonTags(ways)
	for i := 0; i < 10; i++ {
		again := commonTags(ways)
		if len(again) != len(first) {
			t.Fatalf("commonTags() length changed across repeated calls")
		}
		for j := range first {
			if again[j] != first[j] {
				t.Errorf("commonTags() must return the same order on every call (spec requires byte-identical repeated output); got %v then %v", first, again)
			}
		}
	}
}

func TestRelationTagsForPrefersRelationTags(t *testing.T) {
	rel := &osm.Relation{Tags: osm.Tags{{Key: "type", Value: "multipolygon"}, {Key: "building", Value: "yes"}}}
	got := relationTagsFor(rel, nil)
	if len(got) != 1 || got[0].Key != "building" {
		t.Errorf("relationTagsFor() = %v, want [building=yes] with type stripped", got)
	}
}

func TestRelationTagsForFallsBackToSingleOuterWay(t *testing.T) {
	rel := &osm.Relation{Tags: osm.Tags{{Key: "type", Value: "multipolygon"}}}
	outer := &osm.Way{Tags: osm.Tags{{Key: "landuse", Value: "forest"}}}
	got := relationTagsFor(rel, []*osm.Way{outer})
	if len(got) != 1 || got[0].Key != "landuse" {
		t.Errorf("relationTagsFor() = %v, want the single outer way's tags", got)
	}
}
