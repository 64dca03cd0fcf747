// Package planningscene keeps track of the current state of a robot from the joint states
// published on a node and shares it with other scene monitors.
package planningscene

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/motionkit/node"
	"go.viam.com/motionkit/robotmodel"
	"go.viam.com/motionkit/utils"
)

// Default topic names.
const (
	DefaultJointStatesTopic             = "joint_states"
	DefaultAttachedCollisionObjectTopic = "attached_collision_object"
	MonitoredPlanningSceneTopic         = "monitored_planning_scene"
	DefaultPlanningSceneTopic           = "planning_scene"
)

// Update types published with a msgs.PlanningSceneUpdate.
const (
	UpdateState    = "state"
	UpdateAttached = "attached"
	UpdateScene    = "scene"
)

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	Name string
	// RobotDescription names the node parameter holding the robot model JSON. When no such
	// parameter exists it is read as a path to a model file.
	RobotDescription             string
	JointStateTopic              string
	AttachedCollisionObjectTopic string
	MonitoredPlanningSceneTopic  string
	PublishPlanningSceneTopic    string
	// WaitForInitialStateTimeout is how long StartStateMonitor waits for a complete state. Zero
	// does not wait.
	WaitForInitialStateTimeout time.Duration
	// PublishRate limits how many scene updates are published per second. Zero publishes every
	// update.
	PublishRate float64
}

func (opts *MonitorOptions) fillDefaults() {
	if opts.Name == "" {
		opts.Name = "planning_scene_monitor"
	}
	if opts.RobotDescription == "" {
		opts.RobotDescription = "robot_description"
	}
	if opts.JointStateTopic == "" {
		opts.JointStateTopic = DefaultJointStatesTopic
	}
	if opts.AttachedCollisionObjectTopic == "" {
		opts.AttachedCollisionObjectTopic = DefaultAttachedCollisionObjectTopic
	}
	if opts.MonitoredPlanningSceneTopic == "" {
		opts.MonitoredPlanningSceneTopic = MonitoredPlanningSceneTopic
	}
	if opts.PublishPlanningSceneTopic == "" {
		opts.PublishPlanningSceneTopic = DefaultPlanningSceneTopic
	}
}

// LoadRobotModel builds the robot model named by description: the JSON text (or an already
// decoded JSON object) of the node parameter with that name, or else the model file at that path.
func LoadRobotModel(n *node.Node, description string) (*robotmodel.RobotModel, error) {
	raw, ok := n.Parameter(description)
	if !ok {
		if _, err := os.Stat(description); err != nil {
			return nil, errors.Wrapf(robotmodel.ErrNoModelInformation,
				"no parameter or file named %q", description)
		}
		return robotmodel.ParseModelJSONFile(description, "")
	}
	switch v := raw.(type) {
	case string:
		if _, err := os.Stat(v); err == nil {
			return robotmodel.ParseModelJSONFile(v, "")
		}
		return robotmodel.UnmarshalModelJSON([]byte(v), "")
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrapf(err, "robot description %q", description)
		}
		return robotmodel.UnmarshalModelJSON(data, "")
	default:
		return nil, errors.Wrapf(utils.NewUnexpectedTypeError("", raw), "robot description %q", description)
	}
}
