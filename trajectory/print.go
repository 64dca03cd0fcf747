package trajectory

import (
	"fmt"
	"io"
	"strings"

	goutils "go.viam.com/utils"
)

// Print writes a human readable listing of the trajectory to w, one waypoint per line. Only the
// variables at variableIndexes are printed; when none are given the group's variables are used, or
// every variable of the model.
func (rt *RobotTrajectory) Print(w io.Writer, variableIndexes ...int) error {
	if rt.Empty() {
		_, err := io.WriteString(w, "Empty trajectory.")
		return err
	}
	if len(variableIndexes) == 0 {
		if rt.group != nil {
			variableIndexes = rt.group.VariableIndexList()
		} else {
			variableIndexes = make([]int, rt.model.VariableCount())
			for i := range variableIndexes {
				variableIndexes[i] = i
			}
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Trajectory has %d points over %.3f seconds\n", rt.Size(), rt.Duration())
	for i, wp := range rt.waypoints {
		fmt.Fprintf(&sb, "  waypoint %3d time %5.3f pos ", i, rt.WayPointDurationFromStart(i))
		writeValues(&sb, wp.Positions(), variableIndexes)
		if wp.HasVelocities() {
			sb.WriteString("vel ")
			writeValues(&sb, wp.Velocities(), variableIndexes)
		}
		if wp.HasAccelerations() {
			sb.WriteString("acc ")
			writeValues(&sb, wp.Accelerations(), variableIndexes)
		}
		if wp.HasEffort() {
			sb.WriteString("eff ")
			writeValues(&sb, wp.Effort(), variableIndexes)
		}
		sb.WriteString("\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeValues(sb *strings.Builder, values []float64, indexes []int) {
	for _, idx := range indexes {
		fmt.Fprintf(sb, "%6.3f ", values[idx])
	}
}

// String returns the output of Print with the default variables.
func (rt *RobotTrajectory) String() string {
	var sb strings.Builder
	goutils.UncheckedError(rt.Print(&sb))
	return sb.String()
}
