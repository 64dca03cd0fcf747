// Package trajectory implements RobotTrajectory, an ordered sequence of robot states each paired
// with the time, in seconds, elapsed since the previous one.
//
// A trajectory may be restricted to a JointModelGroup. Waypoints still carry every variable of the
// model; the group only selects which joints are unwound, printed and converted to messages.
package trajectory

import (
	"iter"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/motionkit/robotmodel"
	"go.viam.com/motionkit/robotstate"
)

// RobotTrajectory is a sequence of waypoints and the duration from the previous waypoint to each
// of them. The duration of the first waypoint is measured from the start of the trajectory.
//
// Waypoints are held by pointer. Append and shallow copies share waypoints with their source, so
// mutating one (for example with Unwind) is visible through every trajectory that holds it.
type RobotTrajectory struct {
	model     *robotmodel.RobotModel
	group     *robotmodel.JointModelGroup
	waypoints []*robotstate.RobotState
	durations []float64
}

// New returns an empty trajectory over every joint of model.
func New(model *robotmodel.RobotModel) *RobotTrajectory {
	return &RobotTrajectory{model: model}
}

// NewForGroup returns an empty trajectory restricted to the named group. An empty name means the
// whole robot.
func NewForGroup(model *robotmodel.RobotModel, groupName string) (*RobotTrajectory, error) {
	rt := New(model)
	if err := rt.SetGroupName(groupName); err != nil {
		return nil, err
	}
	return rt, nil
}

// NewForJointModelGroup returns an empty trajectory restricted to group, which may be nil.
func NewForJointModelGroup(model *robotmodel.RobotModel, group *robotmodel.JointModelGroup) *RobotTrajectory {
	return &RobotTrajectory{model: model, group: group}
}

// Copy returns a copy of the trajectory. Durations are always copied. Waypoints are copied when
// deep is set and shared otherwise.
func (rt *RobotTrajectory) Copy(deep bool) *RobotTrajectory {
	out := &RobotTrajectory{
		model:     rt.model,
		group:     rt.group,
		waypoints: append([]*robotstate.RobotState(nil), rt.waypoints...),
		durations: append([]float64(nil), rt.durations...),
	}
	if deep {
		for i, wp := range out.waypoints {
			out.waypoints[i] = wp.Copy()
		}
	}
	return out
}

// Model returns the robot model of the trajectory.
func (rt *RobotTrajectory) Model() *robotmodel.RobotModel {
	return rt.model
}

// Group returns the group the trajectory is restricted to, or nil.
func (rt *RobotTrajectory) Group() *robotmodel.JointModelGroup {
	return rt.group
}

// GroupName returns the name of the group, or "" for the whole robot.
func (rt *RobotTrajectory) GroupName() string {
	if rt.group == nil {
		return ""
	}
	return rt.group.Name()
}

// SetGroupName restricts the trajectory to the named group. An empty name clears the restriction.
func (rt *RobotTrajectory) SetGroupName(name string) error {
	if name == "" {
		rt.group = nil
		return nil
	}
	group, err := rt.model.JointModelGroup(name)
	if err != nil {
		return err
	}
	rt.group = group
	return nil
}

// WayPointCount returns the number of waypoints.
func (rt *RobotTrajectory) WayPointCount() int {
	return len(rt.waypoints)
}

// Size is the same as WayPointCount.
func (rt *RobotTrajectory) Size() int {
	return len(rt.waypoints)
}

// Empty returns whether there are no waypoints.
func (rt *RobotTrajectory) Empty() bool {
	return len(rt.waypoints) == 0
}

// WayPoint returns waypoint i. It panics if i is out of range.
func (rt *RobotTrajectory) WayPoint(i int) *robotstate.RobotState {
	return rt.waypoints[i]
}

// FirstWayPoint returns the first waypoint, or nil when empty.
func (rt *RobotTrajectory) FirstWayPoint() *robotstate.RobotState {
	if len(rt.waypoints) == 0 {
		return nil
	}
	return rt.waypoints[0]
}

// LastWayPoint returns the last waypoint, or nil when empty.
func (rt *RobotTrajectory) LastWayPoint() *robotstate.RobotState {
	if len(rt.waypoints) == 0 {
		return nil
	}
	return rt.waypoints[len(rt.waypoints)-1]
}

// WayPointDurations returns the duration from the previous waypoint to each waypoint. The slice is
// owned by the trajectory.
func (rt *RobotTrajectory) WayPointDurations() []float64 {
	return rt.durations
}

// WayPointDurationFromStart returns the time from the start of the trajectory to waypoint i. An
// index past the end returns the total duration.
func (rt *RobotTrajectory) WayPointDurationFromStart(i int) float64 {
	if len(rt.durations) == 0 {
		return 0
	}
	i = min(i, len(rt.durations)-1)
	total := 0.
	for j := 0; j <= i; j++ {
		total += rt.durations[j]
	}
	return total
}

// WayPointDurationFromPrevious returns the time from waypoint i-1 to waypoint i, or zero when i is
// out of range.
func (rt *RobotTrajectory) WayPointDurationFromPrevious(i int) float64 {
	if i < 0 || i >= len(rt.durations) {
		return 0
	}
	return rt.durations[i]
}

// SetWayPointDurationFromPrevious sets the time from waypoint i-1 to waypoint i. The durations are
// extended with zeros when i is past their end.
func (rt *RobotTrajectory) SetWayPointDurationFromPrevious(i int, value float64) *RobotTrajectory {
	for len(rt.durations) <= i {
		rt.durations = append(rt.durations, 0)
	}
	rt.durations[i] = value
	return rt
}

// AddSuffixWayPoint appends state, reached dt seconds after the current last waypoint.
func (rt *RobotTrajectory) AddSuffixWayPoint(state *robotstate.RobotState, dt float64) *RobotTrajectory {
	rt.waypoints = append(rt.waypoints, state)
	rt.durations = append(rt.durations, dt)
	return rt
}

// AddPrefixWayPoint prepends state with duration dt.
func (rt *RobotTrajectory) AddPrefixWayPoint(state *robotstate.RobotState, dt float64) *RobotTrajectory {
	rt.waypoints = append([]*robotstate.RobotState{state}, rt.waypoints...)
	rt.durations = append([]float64{dt}, rt.durations...)
	return rt
}

// InsertWayPoint inserts state at index i with duration dt. i may equal Size().
func (rt *RobotTrajectory) InsertWayPoint(i int, state *robotstate.RobotState, dt float64) (*RobotTrajectory, error) {
	if i < 0 || i > len(rt.waypoints) || i > len(rt.durations) {
		return rt, errors.Errorf("cannot insert waypoint at index %d of a trajectory with %d waypoints", i, len(rt.waypoints))
	}
	rt.waypoints = insertAt(rt.waypoints, i, state)
	rt.durations = insertAt(rt.durations, i, dt)
	return rt, nil
}

func insertAt[T any](s []T, i int, v T) []T {
	var zero T
	s = append(s, zero)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// Append adds waypoints [start, end) of source to the end of the trajectory, sharing them with
// source. end is clamped to the size of source and nothing happens when start >= end. dt is added
// to the duration of the first appended waypoint.
func (rt *RobotTrajectory) Append(source *RobotTrajectory, dt float64, start, end int) *RobotTrajectory {
	start = max(start, 0)
	end = min(end, len(source.waypoints))
	if start >= end {
		return rt
	}
	rt.waypoints = append(rt.waypoints, source.waypoints[start:end]...)
	first := len(rt.durations)
	if start < len(source.durations) {
		rt.durations = append(rt.durations, source.durations[start:min(end, len(source.durations))]...)
	}
	if len(rt.durations) > first {
		rt.durations[first] += dt
	}
	return rt
}

// AppendAll appends every waypoint of source.
func (rt *RobotTrajectory) AppendAll(source *RobotTrajectory, dt float64) *RobotTrajectory {
	return rt.Append(source, dt, 0, source.Size())
}

// Swap exchanges the contents of the two trajectories, including their models and groups.
func (rt *RobotTrajectory) Swap(other *RobotTrajectory) {
	*rt, *other = *other, *rt
}

// Clear removes every waypoint.
func (rt *RobotTrajectory) Clear() *RobotTrajectory {
	rt.waypoints = nil
	rt.durations = nil
	return rt
}

// Duration returns the sum of all durations, in seconds.
func (rt *RobotTrajectory) Duration() float64 {
	total := 0.
	for _, d := range rt.durations {
		total += d
	}
	return total
}

// AverageSegmentDuration returns Duration divided by the number of durations, or zero when empty.
func (rt *RobotTrajectory) AverageSegmentDuration() float64 {
	if len(rt.durations) == 0 {
		return 0
	}
	return rt.Duration() / float64(len(rt.durations))
}

// Reverse reverses the order of the waypoints and negates their velocities. The first duration
// stays first and the remaining durations are reversed, so each segment keeps its length.
func (rt *RobotTrajectory) Reverse() *RobotTrajectory {
	for i, j := 0, len(rt.waypoints)-1; i < j; i, j = i+1, j-1 {
		rt.waypoints[i], rt.waypoints[j] = rt.waypoints[j], rt.waypoints[i]
	}
	for _, wp := range rt.waypoints {
		wp.InvertVelocity()
	}
	if len(rt.durations) > 1 {
		rest := rt.durations[1:]
		for i, j := 0, len(rest)-1; i < j; i, j = i+1, j-1 {
			rest[i], rest[j] = rest[j], rest[i]
		}
	}
	return rt
}

func (rt *RobotTrajectory) continuousJoints() []*robotmodel.JointModel {
	if rt.group != nil {
		return rt.group.ContinuousJointModels()
	}
	return rt.model.ContinuousJointModels()
}

// Unwind removes the jumps of 2*pi that continuous joints make when they cross +-pi, so that each
// continuous joint moves through a continuous sequence of values.
func (rt *RobotTrajectory) Unwind() *RobotTrajectory {
	if rt.Empty() {
		return rt
	}
	for _, jm := range rt.continuousJoints() {
		rt.unwindJoint(jm, 0)
	}
	return rt
}

// UnwindFrom unwinds like Unwind, but first shifts the whole trajectory by the number of turns
// state's value of each continuous joint is away from [-pi, pi], so the trajectory continues from
// state without a jump.
func (rt *RobotTrajectory) UnwindFrom(state *robotstate.RobotState) *RobotTrajectory {
	if rt.Empty() {
		return rt
	}
	for _, jm := range rt.continuousJoints() {
		raw := state.JointPositions(jm)[0]
		normalized := []float64{raw}
		jm.EnforcePositionBounds(normalized)
		offset := raw - normalized[0]
		if hasOffset(offset) {
			rt.waypoints[0].JointPositions(jm)[0] += offset
		}
		rt.unwindJoint(jm, offset)
	}
	return rt
}

func hasOffset(offset float64) bool {
	return offset > epsilon || offset < -epsilon
}

const epsilon = 2.220446049250313e-16

func (rt *RobotTrajectory) unwindJoint(jm *robotmodel.JointModel, offset float64) {
	last := rt.waypoints[0].JointPositions(jm)[0]
	if hasOffset(offset) {
		// waypoint 0 has already been shifted; compare against its raw value
		last -= offset
	}
	for _, wp := range rt.waypoints[1:] {
		values := wp.JointPositions(jm)
		current := values[0]
		if last > current+math.Pi {
			offset += 2 * math.Pi
		} else if current > last+math.Pi {
			offset -= 2 * math.Pi
		}
		last = current
		if hasOffset(offset) {
			values[0] = current + offset
		}
	}
}

// FindWayPointIndicesForDurationAfterStart returns the waypoints before and after the time t and
// how far, in [0, 1], t lies between them. A negative t gives (0, 0, 0) and a t past the end gives
// the last waypoint with a blend of 1.
func (rt *RobotTrajectory) FindWayPointIndicesForDurationAfterStart(t float64) (before, after int, blend float64) {
	n := len(rt.waypoints)
	if t < 0 || n == 0 {
		return 0, 0, 0
	}
	index := 0
	running := 0.
	for ; index < n && index < len(rt.durations); index++ {
		running += rt.durations[index]
		if running >= t {
			break
		}
	}
	if index >= n || index >= len(rt.durations) {
		return n - 1, n - 1, 1
	}
	before = max(index-1, 0)
	after = min(index, n-1)
	if before == after {
		return before, after, 1
	}
	beforeTime := running - rt.durations[index]
	return before, after, (t - beforeTime) / rt.durations[index]
}

// StateAtDurationFromStart returns a new state interpolated at time t from the start.
func (rt *RobotTrajectory) StateAtDurationFromStart(t float64) (*robotstate.RobotState, error) {
	if rt.Empty() {
		return nil, errors.New("cannot sample an empty trajectory")
	}
	before, after, blend := rt.FindWayPointIndicesForDurationAfterStart(t)
	out := rt.waypoints[before].Copy()
	rt.waypoints[before].Interpolate(rt.waypoints[after], blend, out)
	return out, nil
}

// All iterates over the waypoints and their durations from the previous waypoint.
func (rt *RobotTrajectory) All() iter.Seq2[*robotstate.RobotState, float64] {
	return func(yield func(*robotstate.RobotState, float64) bool) {
		for i, wp := range rt.waypoints {
			if !yield(wp, rt.WayPointDurationFromPrevious(i)) {
				return
			}
		}
	}
}
