package robotmodel

import (
	"encoding/json"
	"math"
	"os"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrNoModelInformation is used when there is no model information.
var ErrNoModelInformation = errors.New("no model information")

// ModelConfigJSON represents all supported fields in a robot model JSON file.
type ModelConfigJSON struct {
	Name       string        `json:"name"`
	ModelFrame string        `json:"model_frame,omitempty"`
	Joints     []JointConfig `json:"joints"`
	Groups     []GroupConfig `json:"groups,omitempty"`
}

// JointConfig describes a single joint. Min and Max default to unbounded; a revolute joint with
// neither is continuous. For planar and floating joints the limits apply to the translational
// variables.
type JointConfig struct {
	ID                    string    `json:"id"`
	Type                  string    `json:"type"`
	Parent                string    `json:"parent,omitempty"`
	Axis                  r3.Vector `json:"axis,omitempty"`
	Min                   *float64  `json:"min,omitempty"`
	Max                   *float64  `json:"max,omitempty"`
	MaxVelocity           float64   `json:"max_velocity,omitempty"`
	MaxAcceleration       float64   `json:"max_acceleration,omitempty"`
	AngularDistanceWeight float64   `json:"angular_distance_weight,omitempty"`
}

// GroupConfig names a subset of joints.
type GroupConfig struct {
	Name   string   `json:"name"`
	Joints []string `json:"joints"`
}

// UnmarshalModelJSON will parse the given JSON data into a robot model. modelName sets the name of
// the model, and the name from the JSON is used if it is empty.
func UnmarshalModelJSON(jsonData []byte, modelName string) (*RobotModel, error) {
	// empty data probably means that the robot has no model information
	if len(jsonData) == 0 {
		return nil, ErrNoModelInformation
	}

	cfg := &ModelConfigJSON{}
	if err := json.Unmarshal(jsonData, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal json file")
	}
	return cfg.ParseConfig(modelName)
}

// ParseModelJSONFile will read a given file and then parse the contained JSON data.
func ParseModelJSONFile(filename, modelName string) (*RobotModel, error) {
	//nolint:gosec
	jsonData, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read json file")
	}
	return UnmarshalModelJSON(jsonData, modelName)
}

// ParseConfig converts the ModelConfigJSON struct into a RobotModel with the name modelName.
func (cfg *ModelConfigJSON) ParseConfig(modelName string) (*RobotModel, error) {
	if modelName == "" {
		modelName = cfg.Name
	}
	model := &RobotModel{
		name:          modelName,
		modelFrame:    cfg.ModelFrame,
		jointsByName:  map[string]*JointModel{},
		variableIndex: map[string]int{},
		groups:        map[string]*JointModelGroup{},
	}
	if model.modelFrame == "" {
		model.modelFrame = World
	}

	for _, jc := range cfg.Joints {
		if jc.ID == "" {
			return nil, errors.New("joint is missing an id")
		}
		if jc.ID == World {
			return nil, NewReservedWordError("joint", World)
		}
		if _, ok := model.jointsByName[jc.ID]; ok {
			return nil, NewDuplicateJointError(jc.ID)
		}
		jm, err := jc.toJointModel()
		if err != nil {
			return nil, errors.Wrapf(err, "joint %q", jc.ID)
		}
		jm.jointIndex = len(model.joints)
		jm.firstVariableIndex = len(model.variableNames)
		for i, v := range jm.variableNames {
			model.variableIndex[v] = jm.firstVariableIndex + i
		}
		model.variableNames = append(model.variableNames, jm.variableNames...)
		model.joints = append(model.joints, jm)
		model.jointsByName[jm.name] = jm
		if jm.VariableCount() > 0 {
			model.activeJoints = append(model.activeJoints, jm)
		}
		if jm.continuous {
			model.continuousJoints = append(model.continuousJoints, jm)
		}
	}

	for _, gc := range cfg.Groups {
		if gc.Name == "" {
			return nil, errors.New("group is missing a name")
		}
		if _, ok := model.groups[gc.Name]; ok {
			return nil, errors.Errorf("duplicate group %q", gc.Name)
		}
		joints := make([]*JointModel, 0, len(gc.Joints))
		for _, name := range gc.Joints {
			jm, err := model.JointModel(name)
			if err != nil {
				return nil, errors.Wrapf(err, "group %q", gc.Name)
			}
			joints = append(joints, jm)
		}
		model.groups[gc.Name] = newJointModelGroup(gc.Name, joints)
		model.groupNames = append(model.groupNames, gc.Name)
	}
	sort.Strings(model.groupNames)

	return model, nil
}

func (jc *JointConfig) limit() Limit {
	l := Limit{Min: math.Inf(-1), Max: math.Inf(1), MaxVelocity: jc.MaxVelocity, MaxAcceleration: jc.MaxAcceleration}
	if jc.Min != nil {
		l.Min = *jc.Min
	}
	if jc.Max != nil {
		l.Max = *jc.Max
	}
	return l
}

func (jc *JointConfig) toJointModel() (*JointModel, error) {
	jm := &JointModel{name: jc.ID, parent: jc.Parent, angularDistanceWeight: jc.AngularDistanceWeight}
	if jm.angularDistanceWeight == 0 {
		jm.angularDistanceWeight = 1
	}
	lim := jc.limit()
	if lim.Min > lim.Max {
		return nil, errors.Errorf("min %f is greater than max %f", lim.Min, lim.Max)
	}

	switch jc.Type {
	case "fixed":
		jm.jointType = FixedJoint
	case "revolute", "continuous":
		jm.jointType = RevoluteJoint
		jm.continuous = jc.Type == "continuous" || !lim.PositionBounded()
		if jm.continuous {
			lim.Min, lim.Max = -math.Pi, math.Pi
		}
		jm.bounds = []Limit{lim}
	case "prismatic":
		jm.jointType = PrismaticJoint
		jm.bounds = []Limit{lim}
	case "planar":
		jm.jointType = PlanarJoint
		rot := Limit{Min: -math.Pi, Max: math.Pi, MaxVelocity: lim.MaxVelocity, MaxAcceleration: lim.MaxAcceleration}
		jm.bounds = []Limit{lim, lim, rot}
		jm.localVariableNames = planarLocalNames
	case "floating":
		jm.jointType = FloatingJoint
		rot := Limit{Min: -1, Max: 1}
		jm.bounds = []Limit{lim, lim, lim, rot, rot, rot, rot}
		jm.localVariableNames = floatingLocalNames
	default:
		return nil, errors.Errorf("unsupported joint type %q", jc.Type)
	}

	switch jm.jointType {
	case RevoluteJoint, PrismaticJoint:
		if jc.Axis.Norm() == 0 {
			jm.axis = r3.Vector{Z: 1}
		} else {
			jm.axis = jc.Axis.Normalize()
		}
		jm.localVariableNames = []string{jm.name}
		jm.variableNames = []string{jm.name}
	case PlanarJoint, FloatingJoint:
		for _, local := range jm.localVariableNames {
			jm.variableNames = append(jm.variableNames, jm.name+"/"+local)
		}
	case FixedJoint, UnknownJoint:
	}
	return jm, nil
}
