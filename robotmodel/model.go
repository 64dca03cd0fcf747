// Package robotmodel describes the joints of a robot, the variables they own, and named groups of
// joints. A RobotModel is immutable once built and is shared by every RobotState created from it.
package robotmodel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
)

// World is the default model frame.
const World = "world"

// RobotModel is an ordered set of joints and the variables they own.
type RobotModel struct {
	name       string
	modelFrame string

	joints           []*JointModel
	jointsByName     map[string]*JointModel
	activeJoints     []*JointModel
	continuousJoints []*JointModel

	variableNames []string
	variableIndex map[string]int

	groups     map[string]*JointModelGroup
	groupNames []string
}

// Name returns the name of the model.
func (m *RobotModel) Name() string {
	return m.name
}

// ModelFrame returns the frame the model is expressed in; trajectory message headers use it.
func (m *RobotModel) ModelFrame() string {
	return m.modelFrame
}

// JointModels returns every joint in model order.
func (m *RobotModel) JointModels() []*JointModel {
	return m.joints
}

// ActiveJointModels returns the joints that own at least one variable.
func (m *RobotModel) ActiveJointModels() []*JointModel {
	return m.activeJoints
}

// ContinuousJointModels returns the revolute joints without position bounds.
func (m *RobotModel) ContinuousJointModels() []*JointModel {
	return m.continuousJoints
}

// HasJointModel returns whether a joint with this name exists.
func (m *RobotModel) HasJointModel(name string) bool {
	_, ok := m.jointsByName[name]
	return ok
}

// JointModel returns the joint with the given name.
func (m *RobotModel) JointModel(name string) (*JointModel, error) {
	jm, ok := m.jointsByName[name]
	if !ok {
		return nil, NewUnknownJointError(m.name, name)
	}
	return jm, nil
}

// VariableCount returns the number of variables across all joints.
func (m *RobotModel) VariableCount() int {
	return len(m.variableNames)
}

// VariableNames returns the variable names in index order.
func (m *RobotModel) VariableNames() []string {
	return m.variableNames
}

// VariableIndex returns the index of the named variable.
func (m *RobotModel) VariableIndex(name string) (int, error) {
	idx, ok := m.variableIndex[name]
	if !ok {
		return -1, NewUnknownVariableError(m.name, name)
	}
	return idx, nil
}

// HasJointModelGroup returns whether a group with this name exists.
func (m *RobotModel) HasJointModelGroup(name string) bool {
	_, ok := m.groups[name]
	return ok
}

// JointModelGroup returns the group with the given name.
func (m *RobotModel) JointModelGroup(name string) (*JointModelGroup, error) {
	g, ok := m.groups[name]
	if !ok {
		return nil, NewUnknownGroupError(m.name, name)
	}
	return g, nil
}

// JointModelGroupNames returns the group names, sorted.
func (m *RobotModel) JointModelGroupNames() []string {
	return m.groupNames
}

// DefaultPositions returns the default value of every variable.
func (m *RobotModel) DefaultPositions() []float64 {
	values := make([]float64, m.VariableCount())
	for _, jm := range m.activeJoints {
		copy(values[jm.firstVariableIndex:], jm.DefaultPositions())
	}
	return values
}

// JointValues returns the slice of values owned by jm.
func JointValues(jm *JointModel, values []float64) []float64 {
	return values[jm.firstVariableIndex : jm.firstVariableIndex+jm.VariableCount()]
}

// Distance returns the sum over all active joints of the per-joint distance between the two full
// variable vectors.
func (m *RobotModel) Distance(from, to []float64) float64 {
	return jointsDistance(m.activeJoints, from, to)
}

func jointsDistance(joints []*JointModel, from, to []float64) float64 {
	total := 0.
	for _, jm := range joints {
		total += jm.Distance(JointValues(jm, from), JointValues(jm, to))
	}
	return total
}

// String prints a table of the joints in the model.
func (m *RobotModel) String() string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("%s (frame %s)", m.name, m.modelFrame))
	t.AppendHeader(table.Row{"#", "Joint", "Type", "Parent", "Variables", "Limits"})
	for i, jm := range m.joints {
		limits := make([]string, 0, len(jm.bounds))
		for _, l := range jm.bounds {
			limits = append(limits, fmt.Sprintf("[%.3f, %.3f]", l.Min, l.Max))
		}
		jointType := jm.jointType.String()
		if jm.continuous {
			jointType = "continuous"
		}
		t.AppendRow(table.Row{
			i, jm.name, jointType, jm.parent,
			strings.Join(jm.variableNames, ", "), strings.Join(limits, " "),
		})
	}
	for _, name := range m.groupNames {
		t.AppendFooter(table.Row{"", "group " + name, "", "", strings.Join(m.groups[name].variableNames, ", "), ""})
	}
	return t.Render()
}

// JointModelGroup is a named subset of a model's joints. Waypoints still hold every variable of the
// model; a group only restricts which joints an operation considers.
type JointModelGroup struct {
	name              string
	joints            []*JointModel
	activeJoints      []*JointModel
	continuousJoints  []*JointModel
	variableNames     []string
	variableIndexList []int
}

func newJointModelGroup(name string, joints []*JointModel) *JointModelGroup {
	sort.Slice(joints, func(i, j int) bool { return joints[i].jointIndex < joints[j].jointIndex })
	g := &JointModelGroup{name: name, joints: joints}
	g.activeJoints = lo.Filter(joints, func(jm *JointModel, _ int) bool { return jm.VariableCount() > 0 })
	g.continuousJoints = lo.Filter(joints, func(jm *JointModel, _ int) bool { return jm.continuous })
	for _, jm := range g.activeJoints {
		g.variableNames = append(g.variableNames, jm.variableNames...)
		for i := range jm.variableNames {
			g.variableIndexList = append(g.variableIndexList, jm.firstVariableIndex+i)
		}
	}
	return g
}

// Name returns the name of the group.
func (g *JointModelGroup) Name() string {
	return g.name
}

// JointModels returns the joints of the group in model order.
func (g *JointModelGroup) JointModels() []*JointModel {
	return g.joints
}

// ActiveJointModels returns the joints of the group that own variables.
func (g *JointModelGroup) ActiveJointModels() []*JointModel {
	return g.activeJoints
}

// ContinuousJointModels returns the continuous joints of the group.
func (g *JointModelGroup) ContinuousJointModels() []*JointModel {
	return g.continuousJoints
}

// HasJointModel returns whether the group contains the named joint.
func (g *JointModelGroup) HasJointModel(name string) bool {
	return lo.ContainsBy(g.joints, func(jm *JointModel) bool { return jm.name == name })
}

// VariableNames returns the names of the group's variables.
func (g *JointModelGroup) VariableNames() []string {
	return g.variableNames
}

// VariableCount returns the number of variables in the group.
func (g *JointModelGroup) VariableCount() int {
	return len(g.variableNames)
}

// VariableIndexList returns the model indexes of the group's variables.
func (g *JointModelGroup) VariableIndexList() []int {
	return g.variableIndexList
}

// Distance returns the sum over the group's active joints of the per-joint distance between two
// full variable vectors.
func (g *JointModelGroup) Distance(from, to []float64) float64 {
	return jointsDistance(g.activeJoints, from, to)
}
