package area

import "github.com/paulmach/osm"

// ignoredRelationKeys mirrors osmium::tags::KeyFilter's ignore list in
// add_tags_to_area(Relation): these keys never count toward "does the
// relation carry its own tags" and are never copied onto the area.
var ignoredRelationKeys = map[string]bool{
	"type":         true,
	"created_by":   true,
	"source":       true,
	"note":         true,
	"test:id":      true,
	"test:section": true,
}

// ignoredInnerWayKeys is the slightly shorter ignore list used when
// comparing an inner way's own tags against the area's tags for the
// tag-rescue step (spec.md §4.5) — "type" is not ignored there because
// plain ways don't carry one.
var ignoredInnerWayKeys = map[string]bool{
	"created_by":   true,
	"source":       true,
	"note":         true,
	"test:id":      true,
	"test:section": true,
}

// tagSet is an ordered (key, value) list preserving the original tag
// order, matching osm.Tags's own shape.
type tagSet []osm.Tag

func filterTags(tags osm.Tags, ignore map[string]bool) tagSet {
	var out tagSet
	for _, t := range tags {
		if ignore[t.Key] {
			continue
		}
		out = append(out, t)
	}
	return out
}

// equalAsSets reports whether two filtered tag sets carry the same
// (key, value) pairs, order ignored — used to decide whether a rescued
// inner way's tags actually differ from the area's.
func (ts tagSet) equalAsSets(other tagSet) bool {
	if len(ts) != len(other) {
		return false
	}
	want := make(map[string]string, len(ts))
	for _, t := range ts {
		want[t.Key] = t.Value
	}
	for _, t := range other {
		v, ok := want[t.Key]
		if !ok || v != t.Value {
			return false
		}
	}
	return true
}

// wayTagsFor copies a way's tags unchanged onto the area.
func wayTagsFor(way *osm.Way) osm.Tags {
	out := make(osm.Tags, len(way.Tags))
	copy(out, way.Tags)
	return out
}

// relationTagsFor implements spec.md §4.5's relation tag policy:
//   - if the relation carries any non-ignored tags, use all of the
//     relation's tags except "type";
//   - otherwise (the tags-on-outer-ways convention), use the single
//     outer way's tags if there is exactly one outer way, or the tags
//     every outer way agrees on (same key AND value) if there are more.
func relationTagsFor(rel *osm.Relation, outerWays []*osm.Way) osm.Tags {
	filtered := filterTags(rel.Tags, ignoredRelationKeys)
	if len(filtered) > 0 {
		var out osm.Tags
		for _, t := range rel.Tags {
			if t.Key != "type" {
				out = append(out, t)
			}
		}
		return out
	}

	if len(outerWays) == 1 {
		return wayTagsFor(outerWays[0])
	}
	return commonTags(outerWays)
}

// commonTags returns only the (key, value) pairs present, identically,
// on every way in ways — the "multiple outer ways, get common tags"
// branch of add_common_tags in assembler.hpp. Tags are emitted in the
// order their key first appears across the ways, so repeated runs over
// the same input are byte-identical (spec.md §8 invariant 7).
func commonTags(ways []*osm.Way) osm.Tags {
	type kv struct{ key, value string }
	counter := make(map[kv]int)
	var order []kv
	for _, w := range ways {
		for _, t := range w.Tags {
			pair := kv{t.Key, t.Value}
			if counter[pair] == 0 {
				order = append(order, pair)
			}
			counter[pair]++
		}
	}
	var out osm.Tags
	for _, pair := range order {
		if counter[pair] == len(ways) {
			out = append(out, osm.Tag{Key: pair.key, Value: pair.value})
		}
	}
	return out
}
