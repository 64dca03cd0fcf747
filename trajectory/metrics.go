package trajectory

import (
	"math"
)

// PathLength returns the sum of the distances between consecutive waypoints.
func PathLength(rt *RobotTrajectory) float64 {
	length := 0.
	for i := 1; i < rt.WayPointCount(); i++ {
		length += rt.WayPoint(i - 1).Distance(rt.WayPoint(i))
	}
	return length
}

// Smoothness scores how sharply the path turns at each waypoint, averaged over the waypoints.
// Straight paths score zero. It is only defined for trajectories with more than two waypoints.
//
// Each triple of consecutive waypoints forms a triangle whose sides are the distances between
// them; the turning angle is pi minus the angle opposite the side that skips the middle waypoint.
// Degenerate triangles, where the path doubles back on itself or runs straight through, add
// nothing.
func Smoothness(rt *RobotTrajectory) (float64, bool) {
	n := rt.WayPointCount()
	if n <= 2 {
		return 0, false
	}
	smoothness := 0.
	for i := 2; i < n; i++ {
		first, second, third := rt.WayPoint(i-2), rt.WayPoint(i-1), rt.WayPoint(i)
		a := first.Distance(second)
		b := second.Distance(third)
		c := first.Distance(third)
		if a <= epsilon || b <= epsilon {
			continue
		}
		cosAlpha := (a*a + b*b - c*c) / (2 * a * b)
		if cosAlpha <= -1 || cosAlpha >= 1 {
			continue
		}
		angle := math.Pi - math.Acos(cosAlpha)
		u := 2 * angle
		smoothness += u * u
	}
	return smoothness / float64(n), true
}

// WaypointDensity returns the number of waypoints per unit of path length. It is only defined when
// the path has a non-zero length.
func WaypointDensity(rt *RobotTrajectory) (float64, bool) {
	if rt.WayPointCount() <= 1 {
		return 0, false
	}
	length := PathLength(rt)
	if length <= 0 {
		return 0, false
	}
	return float64(rt.WayPointCount()) / length, true
}
