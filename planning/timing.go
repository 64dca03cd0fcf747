package planning

import (
	"math"

	goutils "go.viam.com/utils"

	"go.viam.com/motionkit/robotmodel"
	"go.viam.com/motionkit/trajectory"
	"go.viam.com/motionkit/utils"
)

// DefaultMaxVelocity is the velocity limit assumed for variables without one.
const DefaultMaxVelocity = 1.0

// variableDelta is the signed change of variable k of jm, along the shorter way for angles that
// wrap.
func variableDelta(jm *robotmodel.JointModel, k int, from, to []float64) float64 {
	wraps := jm.IsContinuous() || (jm.Type() == robotmodel.PlanarJoint && k == 2)
	if wraps {
		return utils.AngleDiff(from[k], to[k])
	}
	return to[k] - from[k]
}

// ApplyVelocityLimits sets every segment's duration to the shortest time in which no variable of
// the trajectory's group exceeds its velocity limit scaled by velocityScaling, then sets
// waypoint velocities from the resulting segments. The first waypoint gets a zero duration, and
// the first and last waypoints zero velocity. A scaling outside (0, 1] is treated as 1.
func ApplyVelocityLimits(rt *trajectory.RobotTrajectory, velocityScaling float64) {
	if velocityScaling <= 0 || velocityScaling > 1 {
		velocityScaling = 1
	}
	joints := rt.Model().ActiveJointModels()
	if g := rt.Group(); g != nil {
		joints = g.ActiveJointModels()
	}
	n := rt.WayPointCount()
	if n == 0 {
		return
	}

	rt.SetWayPointDurationFromPrevious(0, 0)
	for i := 1; i < n; i++ {
		prev, cur := rt.WayPoint(i-1), rt.WayPoint(i)
		dt := 0.
		for _, jm := range joints {
			from, to := prev.JointPositions(jm), cur.JointPositions(jm)
			for k, limit := range jm.Bounds() {
				maxVel := limit.MaxVelocity
				if maxVel <= 0 {
					maxVel = DefaultMaxVelocity
				}
				dt = math.Max(dt, math.Abs(variableDelta(jm, k, from, to))/(maxVel*velocityScaling))
			}
		}
		rt.SetWayPointDurationFromPrevious(i, dt)
	}

	for i := range n {
		velocities := make([]float64, rt.Model().VariableCount())
		if i > 0 && i < n-1 {
			prev, cur, next := rt.WayPoint(i-1), rt.WayPoint(i), rt.WayPoint(i+1)
			dtIn, dtOut := rt.WayPointDurationFromPrevious(i), rt.WayPointDurationFromPrevious(i+1)
			for _, jm := range joints {
				from, at, to := prev.JointPositions(jm), cur.JointPositions(jm), next.JointPositions(jm)
				for k := range jm.VariableCount() {
					velocities[jm.FirstVariableIndex()+k] = averageVelocity(
						variableDelta(jm, k, from, at), dtIn, variableDelta(jm, k, at, to), dtOut)
				}
			}
		}
		// the slice always matches the model, so this cannot fail.
		goutils.UncheckedError(rt.WayPoint(i).SetVelocities(velocities))
	}
}

func averageVelocity(deltaIn, dtIn, deltaOut, dtOut float64) float64 {
	switch {
	case dtIn > 0 && dtOut > 0:
		return (deltaIn/dtIn + deltaOut/dtOut) / 2
	case dtIn > 0:
		return deltaIn / dtIn
	case dtOut > 0:
		return deltaOut / dtOut
	}
	return 0
}
