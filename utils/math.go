package utils

import "math"

// WrapAngle normalizes an angle in radians into [-pi, pi].
func WrapAngle(angle float64) float64 {
	wrapped := math.Mod(angle, 2*math.Pi)
	if wrapped > math.Pi {
		wrapped -= 2 * math.Pi
	} else if wrapped < -math.Pi {
		wrapped += 2 * math.Pi
	}
	return wrapped
}

// AngleDiff returns the shortest signed rotation, in radians, that takes `from` to `to`.
func AngleDiff(from, to float64) float64 {
	return WrapAngle(to - from)
}

// Clamp restricts value to [lower, upper].
func Clamp(value, lower, upper float64) float64 {
	return math.Max(lower, math.Min(upper, value))
}
