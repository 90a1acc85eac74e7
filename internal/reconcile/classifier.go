package reconcile

import "connectgraph/internal/diffing"

// caseKind is the overlap classification outcome for one Connection
// against a Diff (spec §4.4).
type caseKind int

const (
	caseFour caseKind = iota // survive-shift
	caseOne                  // replacement fully covers connection
	caseTwo                  // replacement extends beyond connection
	caseThree                // replacement strictly inside connection
	caseGone                 // no surviving line anywhere; delete, no job
)

// classification is the classifier's verdict before the reconciler
// resolves it against actual file content (case 4's byte-exact
// refresh check needs the new content, which the classifier does not
// see).
type classification struct {
	kind             caseKind
	newLo, newHi     int
	priorDescription *string
}

// overlaps reports whether a replaced range and a connection's old
// range share any line.
func overlaps(r diffing.ReplacedRange, cLo, cHi int) bool {
	return !(r.OldHi < cLo || r.OldLo > cHi)
}

// nearestImage searches outward by increasing radius from line for
// the nearest old line with a defined image under diff.LineMap, per
// the map(x) helper referenced in §4.4 case 2.
func nearestImage(diff diffing.Diff, line, oldMax int) (int, bool) {
	if nl, ok := diff.LineMap[line]; ok {
		return nl, true
	}
	for r := 1; r <= oldMax; r++ {
		if l := line - r; l >= 1 {
			if nl, ok := diff.LineMap[l]; ok {
				return nl, true
			}
		}
		if l := line + r; l <= oldMax {
			if nl, ok := diff.LineMap[l]; ok {
				return nl, true
			}
		}
	}
	return 0, false
}

// extendByAdjacency grows [lo,hi] outward while a line within
// ADJACENCY of the current boundary is a pure insertion, matching the
// "extended by adjacent added lines" language used for Cases 1 and 2
// and for standalone added-line runs.
func extendByAdjacency(lo, hi int, added map[int]bool, adjacency int) (int, int) {
	for {
		extended := false
		for d := 1; d <= adjacency; d++ {
			if added[lo-d] {
				lo -= d
				extended = true
				break
			}
		}
		if !extended {
			break
		}
	}
	for {
		extended := false
		for d := 1; d <= adjacency; d++ {
			if added[hi+d] {
				hi += d
				extended = true
				break
			}
		}
		if !extended {
			break
		}
	}
	return lo, hi
}

// classifyConnection applies the four-case overlap classifier (spec
// §4.4) to one connection's old range against a file's Diff.
func classifyConnection(cLo, cHi int, diff diffing.Diff, adjacency, oldMax int, description string) classification {
	var overlapping []diffing.ReplacedRange
	for _, r := range diff.ReplacedRanges {
		if overlaps(r, cLo, cHi) {
			overlapping = append(overlapping, r)
		}
	}

	if len(overlapping) == 0 {
		return classifyNoOverlap(cLo, cHi, diff, adjacency, oldMax)
	}

	for _, r := range overlapping {
		if r.OldLo <= cLo && r.OldHi >= cHi {
			lo, hi := extendByAdjacency(r.NewLo, r.NewHi, diff.Added, adjacency)
			return classification{kind: caseOne, newLo: lo, newHi: hi}
		}
	}

	if allStrictlyInterior(overlapping, cLo, cHi) {
		newLo, okLo := diff.LineMap[cLo]
		newHi, okHi := diff.LineMap[cHi]
		if okLo && okHi {
			desc := description
			return classification{kind: caseThree, newLo: newLo, newHi: newHi, priorDescription: &desc}
		}
	}

	return classifyCaseTwo(cLo, cHi, overlapping, diff, adjacency, oldMax)
}

// allStrictlyInterior reports whether every one of ranges falls
// strictly inside (cLo, cHi): a connection straddling several such
// ranges is still Case 3 (priorDescription preserved), not just one
// that straddles exactly one. A range that reaches or passes either
// endpoint makes it return false.
func allStrictlyInterior(ranges []diffing.ReplacedRange, cLo, cHi int) bool {
	for _, r := range ranges {
		if !(cLo < r.OldLo && r.OldHi < cHi) {
			return false
		}
	}
	return true
}

// classifyNoOverlap handles a connection with no overlapping replaced
// range: Case 4 if both endpoints survive with no added line inside,
// otherwise treated as Case 2 using the nearest surviving images.
func classifyNoOverlap(cLo, cHi int, diff diffing.Diff, adjacency, oldMax int) classification {
	newLo, okLo := diff.LineMap[cLo]
	newHi, okHi := diff.LineMap[cHi]
	if okLo && okHi {
		hasAddedInside := false
		for nl := newLo; nl <= newHi; nl++ {
			if diff.Added[nl] {
				hasAddedInside = true
				break
			}
		}
		if !hasAddedInside {
			return classification{kind: caseFour, newLo: newLo, newHi: newHi}
		}
	}
	return classifyCaseTwo(cLo, cHi, nil, diff, adjacency, oldMax)
}

// classifyCaseTwo computes the union new-range across the connection
// endpoints' nearest surviving images and any overlapping replaced
// ranges, then extends by ADJACENCY at the final boundaries.
func classifyCaseTwo(cLo, cHi int, overlapping []diffing.ReplacedRange, diff diffing.Diff, adjacency, oldMax int) classification {
	loImage, okLo := nearestImage(diff, cLo, oldMax)
	hiImage, okHi := nearestImage(diff, cHi, oldMax)
	if !okLo && !okHi {
		return classification{kind: caseGone}
	}

	var newLo, newHi int
	set := false
	if okLo {
		newLo, newHi = loImage, loImage
		set = true
	}
	if okHi {
		if !set {
			newLo, newHi = hiImage, hiImage
			set = true
		} else {
			if hiImage < newLo {
				newLo = hiImage
			}
			if hiImage > newHi {
				newHi = hiImage
			}
		}
	}

	for _, r := range overlapping {
		if r.NewLo < newLo {
			newLo = r.NewLo
		}
		if r.NewHi > newHi {
			newHi = r.NewHi
		}
	}

	newLo, newHi = extendByAdjacency(newLo, newHi, diff.Added, adjacency)
	return classification{kind: caseTwo, newLo: newLo, newHi: newHi}
}
