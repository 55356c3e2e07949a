package area

// checkInnerOuter is component C4's ray-casting test: decides whether
// ring is contained in some other ring (inner) or not (outer), per
// spec.md §4.4.
func checkInnerOuter(ring *ProtoRing, segs *SegmentList) {
	minNode := ring.MinNode()

	count := 0
	above := 0

	for _, s := range segs.segments {
		if int64(s.First.Loc.X) > int64(minNode.Loc.X) {
			break
		}
		if ring.Contains(s) {
			continue
		}
		if s.toLeftOf(minNode.Loc) {
			count++
		}
		if s.First.Loc == minNode.Loc && s.Second.Loc.Y > minNode.Loc.Y {
			above++
		}
		if s.Second.Loc == minNode.Loc && s.First.Loc.Y > minNode.Loc.Y {
			above++
		}
	}

	count += above % 2

	if count%2 == 1 {
		ring.SetInner()
	} else {
		ring.SetOuter()
	}
}

// classifyRings runs C4 over every ring the ring builder produced,
// normalizes winding, and assigns each inner ring to its enclosing
// outer ring (spec.md §4.4). Rings must already be confirmed closed.
func classifyRings(rings []*ProtoRing, segs *SegmentList) (outers, inners []*ProtoRing) {
	if len(rings) == 1 {
		rings[0].SetOuter()
		if rings[0].IsCW() {
			rings[0].Reverse()
		}
		return rings, nil
	}

	for _, r := range rings {
		checkInnerOuter(r, segs)
		if r.Outer() {
			if r.IsCW() {
				r.Reverse()
			}
			outers = append(outers, r)
		} else {
			if !r.IsCW() {
				r.Reverse()
			}
			inners = append(inners, r)
		}
	}

	if len(outers) == 1 {
		for _, inner := range inners {
			outers[0].AddInnerRing(inner)
		}
		return outers, inners
	}

	sortOutersByArea(outers)
	for _, inner := range inners {
		for _, outer := range outers {
			if inner.IsIn(outer) {
				outer.AddInnerRing(inner)
				break
			}
		}
	}
	return outers, inners
}

// sortOutersByArea sorts outer rings smallest-first so that, in nested
// outer configurations, the innermost enclosing outer ring wins an
// inner ring's assignment (spec.md §4.4).
func sortOutersByArea(outers []*ProtoRing) {
	for i := 1; i < len(outers); i++ {
		j := i
		for j > 0 && outers[j-1].Area() > outers[j].Area() {
			outers[j-1], outers[j] = outers[j], outers[j-1]
			j--
		}
	}
}

// roleAudit is the role-mismatch check of spec.md §4.4: every segment
// of a classified outer ring whose origin role isn't "outer" (and
// symmetrically for inner) is reported. The returned count, if
// non-zero, suppresses the inner-way tag rescue (rescueInnerWayTags in
// assembler.go).
func roleAudit(outers, inners []*ProtoRing, objectID int64, reporter ProblemReporter) int {
	mismatches := 0
	for _, ring := range outers {
		for _, seg := range ring.Segments {
			if !seg.roleOuter() {
				mismatches++
				if reporter != nil {
					reporter.ReportRoleShouldBeOuter(objectID, seg.WayID, seg.First.Loc, seg.Second.Loc)
				}
			}
		}
	}
	for _, ring := range inners {
		for _, seg := range ring.Segments {
			if !seg.roleInner() {
				mismatches++
				if reporter != nil {
					reporter.ReportRoleShouldBeInner(objectID, seg.WayID, seg.First.Loc, seg.Second.Loc)
				}
			}
		}
	}
	return mismatches
}
