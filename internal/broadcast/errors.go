package broadcast

import "fmt"

// InvariantViolationError signals that a tiling or fan-out invariant has
// been broken: overlapping playlog events, a gap in the tile, a negative
// viewer count. These indicate a programming error and must fail loudly
// in the component that detected them, never be silently repaired.
type InvariantViolationError struct {
	Op     string
	Detail string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation in %s: %s", e.Op, e.Detail)
}
