package diffing

import (
	"fmt"
	"strings"
)

// Diff is the per-modified-file result of §4.3: a mapping from old
// line numbers to new line numbers (1-indexed, ⊥ represented by
// absence from the map), the sets of lines purely added/removed, and
// the list of replaced ranges consumed by the reconciler's overlap
// classifier.
type Diff struct {
	// LineMap maps an old 1-indexed line number to its new 1-indexed
	// line number. A line with no entry is ⊥ (deleted or consumed by
	// a replace).
	LineMap map[int]int
	// Added holds new-side 1-indexed line numbers that are pure
	// insertions, not part of any ReplacedRange.
	Added map[int]bool
	// Removed holds old-side 1-indexed line numbers that map to ⊥.
	Removed map[int]bool
	// ReplacedRanges holds (oldLo, oldHi, newLo, newHi), all 1-indexed
	// and inclusive, in ascending oldLo order.
	ReplacedRanges []ReplacedRange
}

// ReplacedRange is one contiguous old-range-replaced-by-new-range
// pair, 1-indexed and inclusive on both ends.
type ReplacedRange struct {
	OldLo, OldHi, NewLo, NewHi int
}

// InvariantViolationError reports a DiffInvariantViolation (spec §7):
// the computed Diff does not satisfy I4 or I5. This indicates a bug
// in the diff algorithm, never bad input.
type InvariantViolationError struct {
	Invariant string
	Detail    string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("diff invariant %s violated: %s", e.Invariant, e.Detail)
}

// splitLines splits content on "\n" without producing an empty
// trailing line for a trailing newline (spec §4.3).
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Compute builds the Diff between old and new file content, per the
// opcode-to-Diff construction in spec §4.3, and validates invariants
// I4 and I5 before returning.
func Compute(oldContent, newContent string) (Diff, error) {
	oldLines := splitLines(oldContent)
	newLines := splitLines(newContent)
	ops := myersOpcodes(oldLines, newLines)

	d := Diff{
		LineMap: make(map[int]int),
		Added:   make(map[int]bool),
		Removed: make(map[int]bool),
	}

	for _, o := range ops {
		switch o.kind {
		case opEqual:
			n := o.i2 - o.i1
			for k := 0; k < n; k++ {
				d.LineMap[o.i1+k+1] = o.j1 + k + 1
			}
		case opDelete:
			for k := o.i1; k < o.i2; k++ {
				d.Removed[k+1] = true
			}
		case opInsert:
			for k := o.j1; k < o.j2; k++ {
				d.Added[k+1] = true
			}
		case opReplace:
			for k := o.i1; k < o.i2; k++ {
				d.Removed[k+1] = true
			}
			d.ReplacedRanges = append(d.ReplacedRanges, ReplacedRange{
				OldLo: o.i1 + 1, OldHi: o.i2, NewLo: o.j1 + 1, NewHi: o.j2,
			})
		}
	}

	if err := validate(d, len(oldLines), len(newLines)); err != nil {
		return Diff{}, err
	}
	return d, nil
}

// validate checks I4 (line_map injective on its non-⊥ image) and I5
// (removed lines map to ⊥; added lines are not in the image of
// line_map nor covered by any replaced_ranges.new_*).
func validate(d Diff, oldN, newN int) error {
	seen := make(map[int]int, len(d.LineMap))
	for oldLine, newLine := range d.LineMap {
		if prevOld, ok := seen[newLine]; ok {
			return &InvariantViolationError{
				Invariant: "I4",
				Detail:    fmt.Sprintf("new line %d is the image of both old lines %d and %d", newLine, prevOld, oldLine),
			}
		}
		seen[newLine] = oldLine
	}

	for oldLine := range d.Removed {
		if _, mapped := d.LineMap[oldLine]; mapped {
			return &InvariantViolationError{
				Invariant: "I5",
				Detail:    fmt.Sprintf("removed old line %d has a non-bottom image", oldLine),
			}
		}
	}

	for newLine := range d.Added {
		if _, inImage := seen[newLine]; inImage {
			return &InvariantViolationError{
				Invariant: "I5",
				Detail:    fmt.Sprintf("added new line %d is in the image of line_map", newLine),
			}
		}
		for _, rr := range d.ReplacedRanges {
			if newLine >= rr.NewLo && newLine <= rr.NewHi {
				return &InvariantViolationError{
					Invariant: "I5",
					Detail:    fmt.Sprintf("added new line %d is covered by replaced range [%d,%d]", newLine, rr.NewLo, rr.NewHi),
				}
			}
		}
	}

	return nil
}

// MapLine returns the new-side image of an old 1-indexed line,
// searching outward from the given line (in the given direction) for
// the nearest surviving image when the line itself maps to ⊥, per the
// classifier's map(x) helper in §4.4 case 2. dir must be -1 or +1.
func (d Diff) MapLine(oldLine, oldMax, dir int) (int, bool) {
	for l := oldLine; l >= 1 && l <= oldMax; l += dir {
		if n, ok := d.LineMap[l]; ok {
			return n, true
		}
	}
	return 0, false
}
