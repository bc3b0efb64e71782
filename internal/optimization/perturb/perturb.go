// Package perturb generates the random trial displacements shared by the
// search variants: unit directions, Gaussian steps and dropout masks.
package perturb

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultDropoutRate is the masking probability used when dropout is enabled
// without an explicit rate.
const DefaultDropoutRate = 0.5

// Dropout masks a random subset of coordinates of a perturbation so that
// each attempt searches a lower-dimensional subspace.
type Dropout struct {
	// Enabled turns masking on
	Enabled bool
	// Rate is the probability that a coordinate is zeroed, in [0, 1]
	Rate float64
}

// Validate checks the masking probability.
func (d Dropout) Validate() error {
	if d.Rate < 0 || d.Rate > 1 {
		return fmt.Errorf("dropout rate must be in [0, 1], got %v", d.Rate)
	}
	return nil
}

// Mask fills dst with 1 for kept and 0 for dropped coordinates and returns it.
// A coordinate is kept when a Uniform[0, 1) draw exceeds Rate, so Rate = 1
// drops everything. When dropout is disabled every coordinate is kept and no
// random numbers are consumed.
func (d Dropout) Mask(dst []float64, src rand.Source) []float64 {
	if !d.Enabled {
		for i := range dst {
			dst[i] = 1
		}
		return dst
	}
	u := distuv.Uniform{Min: 0, Max: 1, Src: src}
	for i := range dst {
		if u.Rand() > d.Rate {
			dst[i] = 1
		} else {
			dst[i] = 0
		}
	}
	return dst
}

// Apply zeroes the dropped coordinates of v in place. It consumes the same
// draws as Mask.
func (d Dropout) Apply(v []float64, src rand.Source) {
	if !d.Enabled {
		return
	}
	u := distuv.Uniform{Min: 0, Max: 1, Src: src}
	for i := range v {
		if u.Rand() <= d.Rate {
			v[i] = 0
		}
	}
}

// UnitDirection fills dst with a direction drawn uniformly from [-1, 1]^K and
// scaled to unit Euclidean length. It retries in the measure-zero case of an
// all-zero draw.
func UnitDirection(dst []float64, src rand.Source) []float64 {
	u := distuv.Uniform{Min: -1, Max: 1, Src: src}
	for {
		for i := range dst {
			dst[i] = u.Rand()
		}
		norm := floats.Norm(dst, 2)
		if norm > 0 {
			floats.Scale(1/norm, dst)
			return dst
		}
	}
}

// Gaussian fills dst with independent standard-normal draws.
func Gaussian(dst []float64, src rand.Source) []float64 {
	n := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	for i := range dst {
		dst[i] = n.Rand()
	}
	return dst
}
