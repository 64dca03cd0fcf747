// Package robotstate holds the value of every variable of a robot model at one instant.
package robotstate

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"go.viam.com/motionkit/robotmodel"
	"go.viam.com/motionkit/spatialmath"
)

// RobotState is a configuration of a RobotModel. Positions are always present; velocities,
// accelerations and efforts are present only once something sets them.
type RobotState struct {
	model *robotmodel.RobotModel

	positions     []float64
	velocities    []float64
	accelerations []float64
	effort        []float64
}

// New returns a state at the model's default positions.
func New(model *robotmodel.RobotModel) *RobotState {
	return &RobotState{model: model, positions: model.DefaultPositions()}
}

// Copy returns a deep copy of the state. The model is shared.
func (s *RobotState) Copy() *RobotState {
	return &RobotState{
		model:         s.model,
		positions:     cloneValues(s.positions),
		velocities:    cloneValues(s.velocities),
		accelerations: cloneValues(s.accelerations),
		effort:        cloneValues(s.effort),
	}
}

func cloneValues(values []float64) []float64 {
	if values == nil {
		return nil
	}
	return append([]float64(nil), values...)
}

// Model returns the model the state belongs to.
func (s *RobotState) Model() *robotmodel.RobotModel {
	return s.model
}

// VariableCount returns the number of variables in the state.
func (s *RobotState) VariableCount() int {
	return len(s.positions)
}

// Positions returns the position of every variable in model order. The slice is owned by the state.
func (s *RobotState) Positions() []float64 {
	return s.positions
}

// HasVelocities returns whether velocities have been set.
func (s *RobotState) HasVelocities() bool {
	return s.velocities != nil
}

// HasAccelerations returns whether accelerations have been set.
func (s *RobotState) HasAccelerations() bool {
	return s.accelerations != nil
}

// HasEffort returns whether efforts have been set.
func (s *RobotState) HasEffort() bool {
	return s.effort != nil
}

// Velocities returns the velocity of every variable, or nil when velocities are not set.
func (s *RobotState) Velocities() []float64 {
	return s.velocities
}

// Accelerations returns the acceleration of every variable, or nil when accelerations are not set.
func (s *RobotState) Accelerations() []float64 {
	return s.accelerations
}

// Effort returns the effort of every variable, or nil when efforts are not set.
func (s *RobotState) Effort() []float64 {
	return s.effort
}

// SetPositions sets the position of every variable.
func (s *RobotState) SetPositions(values []float64) error {
	return s.setAll(&s.positions, values)
}

// SetVelocities sets the velocity of every variable.
func (s *RobotState) SetVelocities(values []float64) error {
	return s.setAll(&s.velocities, values)
}

// SetAccelerations sets the acceleration of every variable.
func (s *RobotState) SetAccelerations(values []float64) error {
	return s.setAll(&s.accelerations, values)
}

// SetEffort sets the effort of every variable.
func (s *RobotState) SetEffort(values []float64) error {
	return s.setAll(&s.effort, values)
}

func (s *RobotState) setAll(dst *[]float64, values []float64) error {
	if len(values) != s.model.VariableCount() {
		return robotmodel.NewIncorrectDoFError(len(values), s.model.VariableCount())
	}
	*dst = append((*dst)[:0], values...)
	return nil
}

// ZeroVelocities sets every velocity to zero.
func (s *RobotState) ZeroVelocities() {
	s.velocities = make([]float64, s.VariableCount())
}

// ZeroAccelerations sets every acceleration to zero.
func (s *RobotState) ZeroAccelerations() {
	s.accelerations = make([]float64, s.VariableCount())
}

// ZeroEffort sets every effort to zero.
func (s *RobotState) ZeroEffort() {
	s.effort = make([]float64, s.VariableCount())
}

// ClearDerivatives drops velocities, accelerations and efforts.
func (s *RobotState) ClearDerivatives() {
	s.velocities, s.accelerations, s.effort = nil, nil, nil
}

// VariablePosition returns the position of the named variable.
func (s *RobotState) VariablePosition(name string) (float64, error) {
	idx, err := s.model.VariableIndex(name)
	if err != nil {
		return 0, err
	}
	return s.positions[idx], nil
}

// SetVariablePosition sets the position of the named variable.
func (s *RobotState) SetVariablePosition(name string, value float64) error {
	idx, err := s.model.VariableIndex(name)
	if err != nil {
		return err
	}
	s.positions[idx] = value
	return nil
}

// VariableVelocity returns the velocity of the named variable, zero when velocities are not set.
func (s *RobotState) VariableVelocity(name string) (float64, error) {
	idx, err := s.model.VariableIndex(name)
	if err != nil {
		return 0, err
	}
	if s.velocities == nil {
		return 0, nil
	}
	return s.velocities[idx], nil
}

// SetVariablePositions sets the positions of the named variables. Nothing is changed on error.
func (s *RobotState) SetVariablePositions(names []string, values []float64) error {
	return s.setByName(&s.positions, names, values)
}

// SetVariableVelocities sets the velocities of the named variables. Other velocities are zero if
// velocities were not already set.
func (s *RobotState) SetVariableVelocities(names []string, values []float64) error {
	return s.setByName(&s.velocities, names, values)
}

// SetVariableAccelerations sets the accelerations of the named variables.
func (s *RobotState) SetVariableAccelerations(names []string, values []float64) error {
	return s.setByName(&s.accelerations, names, values)
}

// SetVariableEffort sets the efforts of the named variables.
func (s *RobotState) SetVariableEffort(names []string, values []float64) error {
	return s.setByName(&s.effort, names, values)
}

func (s *RobotState) setByName(dst *[]float64, names []string, values []float64) error {
	if len(names) != len(values) {
		return errors.Errorf("got %d variable names but %d values", len(names), len(values))
	}
	indexes := make([]int, len(names))
	for i, name := range names {
		idx, err := s.model.VariableIndex(name)
		if err != nil {
			return err
		}
		indexes[i] = idx
	}
	if *dst == nil {
		*dst = make([]float64, s.VariableCount())
	}
	for i, idx := range indexes {
		(*dst)[idx] = values[i]
	}
	return nil
}

// JointPositions returns the positions owned by jm. The slice aliases the state.
func (s *RobotState) JointPositions(jm *robotmodel.JointModel) []float64 {
	return robotmodel.JointValues(jm, s.positions)
}

// JointVelocities returns the velocities owned by jm, or nil when velocities are not set.
func (s *RobotState) JointVelocities(jm *robotmodel.JointModel) []float64 {
	if s.velocities == nil {
		return nil
	}
	return robotmodel.JointValues(jm, s.velocities)
}

// SetJointPositions sets the positions owned by jm.
func (s *RobotState) SetJointPositions(jm *robotmodel.JointModel, values []float64) error {
	if len(values) != jm.VariableCount() {
		return robotmodel.NewIncorrectDoFError(len(values), jm.VariableCount())
	}
	copy(s.JointPositions(jm), values)
	return nil
}

// JointTransform returns the pose applied by jm in this state.
func (s *RobotState) JointTransform(jm *robotmodel.JointModel) spatialmath.Pose {
	return jm.TransformFromVariables(s.JointPositions(jm))
}

// SetJointTransform sets the positions of jm to reproduce pose.
func (s *RobotState) SetJointTransform(jm *robotmodel.JointModel, pose spatialmath.Pose) {
	jm.VariablesFromTransform(pose, s.JointPositions(jm))
}

// Interpolate writes into out the state `t` of the way from s to `to`. Positions interpolate per
// joint. Velocities, accelerations and efforts interpolate linearly when both states have them and
// are cleared in out otherwise.
func (s *RobotState) Interpolate(to *RobotState, t float64, out *RobotState) {
	for _, jm := range s.model.ActiveJointModels() {
		jm.Interpolate(s.JointPositions(jm), to.JointPositions(jm), t, out.JointPositions(jm))
	}
	out.velocities = lerpValues(s.velocities, to.velocities, t, out.velocities)
	out.accelerations = lerpValues(s.accelerations, to.accelerations, t, out.accelerations)
	out.effort = lerpValues(s.effort, to.effort, t, out.effort)
}

func lerpValues(from, to []float64, t float64, out []float64) []float64 {
	if from == nil || to == nil {
		return nil
	}
	if len(out) != len(from) {
		out = make([]float64, len(from))
	}
	for i := range from {
		out[i] = from[i] + (to[i]-from[i])*t
	}
	return out
}

// Distance returns the sum over all active joints of the distance between the two states.
func (s *RobotState) Distance(other *RobotState) float64 {
	return s.model.Distance(s.positions, other.positions)
}

// DistanceForGroup returns the distance between the two states over the joints of group.
func (s *RobotState) DistanceForGroup(other *RobotState, group *robotmodel.JointModelGroup) float64 {
	return group.Distance(s.positions, other.positions)
}

// InvertVelocity negates every velocity. Accelerations and efforts are unchanged.
func (s *RobotState) InvertVelocity() {
	for i := range s.velocities {
		s.velocities[i] = -s.velocities[i]
	}
}

// EnforceBounds brings every joint within its position bounds and reports whether anything changed.
func (s *RobotState) EnforceBounds() bool {
	changed := false
	for _, jm := range s.model.ActiveJointModels() {
		changed = jm.EnforcePositionBounds(s.JointPositions(jm)) || changed
	}
	return changed
}

// SatisfiesBounds returns whether every joint is within its bounds widened by margin.
func (s *RobotState) SatisfiesBounds(margin float64) bool {
	for _, jm := range s.model.ActiveJointModels() {
		if !jm.SatisfiesPositionBounds(s.JointPositions(jm), margin) {
			return false
		}
	}
	return true
}

// EnforceBoundsForGroup is EnforceBounds restricted to the joints of group.
func (s *RobotState) EnforceBoundsForGroup(group *robotmodel.JointModelGroup) bool {
	changed := false
	for _, jm := range group.ActiveJointModels() {
		changed = jm.EnforcePositionBounds(s.JointPositions(jm)) || changed
	}
	return changed
}

// SatisfiesBoundsForGroup is SatisfiesBounds restricted to the joints of group.
func (s *RobotState) SatisfiesBoundsForGroup(group *robotmodel.JointModelGroup, margin float64) bool {
	for _, jm := range group.ActiveJointModels() {
		if !jm.SatisfiesPositionBounds(s.JointPositions(jm), margin) {
			return false
		}
	}
	return true
}

// String prints one variable per line.
func (s *RobotState) String() string {
	var sb strings.Builder
	for i, name := range s.model.VariableNames() {
		fmt.Fprintf(&sb, "%s=%.6f", name, s.positions[i])
		if s.velocities != nil {
			fmt.Fprintf(&sb, " vel=%.6f", s.velocities[i])
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
