package optimization

import (
	"math/rand/v2"
	"time"
)

// NewSource returns the random stream for one run. A zero seed is replaced
// by the current time, so only non-zero seeds are reproducible.
func NewSource(seed int64) rand.Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := uint64(seed)
	return rand.NewPCG(s, s^0x9e3779b97f4a7c15)
}
