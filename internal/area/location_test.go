package area

import "testing"

func TestNewLocationRoundTrip(t *testing.T) {
	loc := NewLocation(7.4246, 43.7384)
	if got := loc.Lon(); got < 7.42459 || got > 7.42461 {
		t.Errorf("Lon() = %v, want ~7.4246", got)
	}
	if got := loc.Lat(); got < 43.73839 || got > 43.73841 {
		t.Errorf("Lat() = %v, want ~43.7384", got)
	}
}

func TestLocationLess(t *testing.T) {
	a := NewLocation(1, 1)
	b := NewLocation(2, 0)
	if !a.Less(b) {
		t.Errorf("expected %v < %v on x", a, b)
	}
	c := NewLocation(1, 2)
	if !a.Less(c) {
		t.Errorf("expected %v < %v on y when x ties", a, c)
	}
}

func TestNodeRefSameLocation(t *testing.T) {
	loc := NewLocation(1, 1)
	a := NodeRef{ID: 1, Loc: loc}
	b := NodeRef{ID: 2, Loc: loc}
	if !a.sameLocation(b) {
		t.Errorf("expected same-location NodeRefs with different ids to match")
	}
	c := NodeRef{ID: 3, Loc: NewLocation(2, 2)}
	if a.sameLocation(c) {
		t.Errorf("expected different-location NodeRefs not to match")
	}
}
