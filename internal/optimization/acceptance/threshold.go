package acceptance

import (
	"fmt"
	"math"
)

// Threshold accepts a candidate only when it improves on the current best
// by more than MinDelta.
type Threshold struct {
	// MinDelta is the minimum required improvement, >= 0
	MinDelta float64
}

// NewThreshold creates a Threshold
func NewThreshold(minDelta float64) *Threshold {
	return &Threshold{MinDelta: minDelta}
}

// Validate checks the threshold value
func (t *Threshold) Validate() error {
	if t.MinDelta < 0 || math.IsNaN(t.MinDelta) || math.IsInf(t.MinDelta, 0) {
		return fmt.Errorf("minimum improvement must be a finite non-negative number, got %v", t.MinDelta)
	}
	return nil
}

// Improves reports whether candidate beats best.
// A NaN candidate never improves; neither does +Inf against a +Inf best,
// while any finite candidate improves on +Inf.
func (t *Threshold) Improves(candidate, best float64) bool {
	return candidate <= best && math.Abs(candidate-best) > t.MinDelta
}
