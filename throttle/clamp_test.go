package throttle

import (
	"math"
	"testing"
)

func TestClampAdd(t *testing.T) {
	tests := []struct {
		name string
		a, b int64
		want int64
	}{
		{"small positive", 2, 3, 5},
		{"mixed signs", -7, 3, -4},
		{"zero", 0, 0, 0},
		{"max plus zero", math.MaxInt64, 0, math.MaxInt64},
		{"max plus one", math.MaxInt64, 1, math.MaxInt64},
		{"near max overflow", math.MaxInt64 - 10, 11, math.MaxInt64},
		{"near max exact", math.MaxInt64 - 10, 10, math.MaxInt64},
		{"max plus max", math.MaxInt64, math.MaxInt64, math.MaxInt64},
		{"min minus one", math.MinInt64, -1, math.MinInt64},
		{"near min exact", math.MinInt64 + 10, -10, math.MinInt64},
		{"min plus min", math.MinInt64, math.MinInt64, math.MinInt64},
		{"max plus min", math.MaxInt64, math.MinInt64, -1},
		{"min plus max", math.MinInt64, math.MaxInt64, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampAdd(tt.a, tt.b); got != tt.want {
				t.Errorf("ClampAdd(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
