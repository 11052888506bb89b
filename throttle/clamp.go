package throttle

import "math"

// ClampAdd returns a+b, saturating at math.MaxInt64 and math.MinInt64
// instead of wrapping.
func ClampAdd(a, b int64) int64 {
	sum := a + b
	switch {
	case a > 0 && b > 0 && sum < 0:
		return math.MaxInt64
	case a < 0 && b < 0 && sum >= 0:
		return math.MinInt64
	}
	return sum
}
