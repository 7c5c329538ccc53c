package geo

import "math"

// fadeTolerance is the distance below which near and far count as equal.
const fadeTolerance = 1e-6

// FadeAlpha maps a camera distance to an opacity in [0,1]. near and far
// form an unordered pair; alpha is 1 at or inside the nearer bound, 0 at or
// beyond the farther one and linear in between. Fading is disabled (alpha 1)
// when either bound is <= 0 or both are equal.
func FadeAlpha(distance, near, far float64) float64 {
	if near <= 0 || far <= 0 || math.Abs(near-far) < fadeTolerance {
		return 1
	}
	if math.IsNaN(distance) {
		return 0
	}
	lo, hi := min(near, far), max(near, far)
	switch {
	case distance <= lo:
		return 1
	case distance >= hi:
		return 0
	}
	return 1 - (distance-lo)/(hi-lo)
}
