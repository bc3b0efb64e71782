package acceptance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThresholdImproves(t *testing.T) {
	inf := math.Inf(1)

	tests := []struct {
		name      string
		minDelta  float64
		candidate float64
		best      float64
		want      bool
	}{
		{"strictly better", 0, 1, 2, true},
		{"equal is rejected", 0, 2, 2, false},
		{"worse is rejected", 0, 3, 2, false},
		{"finite beats infinite", 0, 1e300, inf, true},
		{"infinite does not beat infinite", 0, inf, inf, false},
		{"nan never improves", 0, math.NaN(), inf, false},
		{"within min delta", 0.5, 1.6, 2, false},
		{"beyond min delta", 0.5, 1.4, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewThreshold(tt.minDelta).Improves(tt.candidate, tt.best))
		})
	}
}

func TestThresholdValidate(t *testing.T) {
	assert.NoError(t, NewThreshold(0).Validate())
	assert.NoError(t, NewThreshold(1e-6).Validate())
	assert.Error(t, NewThreshold(-1).Validate())
	assert.Error(t, NewThreshold(math.NaN()).Validate())
}
