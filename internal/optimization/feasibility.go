package optimization

import (
	"fmt"
	"math"
)

// Bound is a closed interval [Min, Max] for one dimension
type Bound struct {
	Min float64
	Max float64
}

// Validate checks that the interval is finite and not reversed.
func (b Bound) Validate() error {
	if math.IsNaN(b.Min) || math.IsNaN(b.Max) || math.IsInf(b.Min, 0) || math.IsInf(b.Max, 0) {
		return fmt.Errorf("bound [%v, %v] must be finite", b.Min, b.Max)
	}
	if b.Min > b.Max {
		return fmt.Errorf("bound [%v, %v] has min greater than max", b.Min, b.Max)
	}
	return nil
}

// Contains reports whether v lies in [Min, Max].
func (b Bound) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Map takes t in [0, 1] to the interval. t = 0 and t = 1 give Min and Max exactly.
func (b Bound) Map(t float64) float64 {
	return b.Min*(1-t) + b.Max*t
}

// Clip saturates v into [lo, hi].
func Clip(v, lo, hi float64) float64 {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}

// BoundsFromPairs converts the [][2]float64 form used on the wire.
func BoundsFromPairs(pairs [][2]float64) []Bound {
	if pairs == nil {
		return nil
	}
	bounds := make([]Bound, len(pairs))
	for i, p := range pairs {
		bounds[i] = Bound{Min: p[0], Max: p[1]}
	}
	return bounds
}

// MapToBounds writes the affine image of z into dst and returns it.
func MapToBounds(dst, z []float64, bounds []Bound) []float64 {
	if dst == nil {
		dst = make([]float64, len(z))
	}
	for i, b := range bounds {
		dst[i] = b.Map(z[i])
	}
	return dst
}

// CheckBounds reports whether every coordinate of x lies within its bound.
// Empty bounds accept everything.
func CheckBounds(x []float64, bounds []Bound) bool {
	if len(bounds) == 0 {
		return true
	}
	if len(bounds) != len(x) {
		return false
	}
	for i, b := range bounds {
		if !b.Contains(x[i]) {
			return false
		}
	}
	return true
}

// CheckConstraints evaluates every constraint in order and stops at the
// first one that rejects x or fails.
func CheckConstraints(x []float64, constraints []Constraint) (bool, error) {
	for _, c := range constraints {
		ok, err := c(x)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Feasible combines CheckBounds and CheckConstraints.
func Feasible(x []float64, bounds []Bound, constraints []Constraint) (bool, error) {
	if !CheckBounds(x, bounds) {
		return false, nil
	}
	return CheckConstraints(x, constraints)
}
