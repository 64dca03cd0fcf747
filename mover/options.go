package mover

import (
	"time"

	"go.viam.com/motionkit/execution"
	"go.viam.com/motionkit/node"
	"go.viam.com/motionkit/planningscene"
)

const (
	planningSceneMonitorNamespace = "planning_scene_monitor_options"
	planningPipelinesNamespace    = "planning_pipelines"
)

// PlanningSceneMonitorOptions configures the planning scene monitor of a Mover.
type PlanningSceneMonitorOptions struct {
	Name                         string
	RobotDescription             string
	JointStateTopic              string
	AttachedCollisionObjectTopic string
	MonitoredPlanningSceneTopic  string
	PublishPlanningSceneTopic    string
	WaitForInitialStateTimeout   time.Duration
	// PublishRate limits scene updates per second. Zero publishes every update.
	PublishRate float64
}

// Load reads the options from the "planning_scene_monitor_options" parameters of n. Unset
// parameters take their default values. wait_for_initial_state_timeout is in seconds.
func (o *PlanningSceneMonitorOptions) Load(n *node.Node) {
	key := func(name string) string { return planningSceneMonitorNamespace + "." + name }
	o.Name = node.ParameterOr(n, key("name"), "planning_scene_monitor")
	o.RobotDescription = node.ParameterOr(n, key("robot_description"), "robot_description")
	o.JointStateTopic = node.ParameterOr(n, key("joint_state_topic"), planningscene.DefaultJointStatesTopic)
	o.AttachedCollisionObjectTopic = node.ParameterOr(n, key("attached_collision_object_topic"),
		planningscene.DefaultAttachedCollisionObjectTopic)
	o.MonitoredPlanningSceneTopic = node.ParameterOr(n, key("monitored_planning_scene_topic"),
		planningscene.MonitoredPlanningSceneTopic)
	o.PublishPlanningSceneTopic = node.ParameterOr(n, key("publish_planning_scene_topic"),
		planningscene.DefaultPlanningSceneTopic)
	wait := node.ParameterOr(n, key("wait_for_initial_state_timeout"), 0.)
	o.WaitForInitialStateTimeout = time.Duration(wait * float64(time.Second))
	o.PublishRate = node.ParameterOr(n, key("publish_rate"), 0.)
}

func (o PlanningSceneMonitorOptions) monitorOptions() planningscene.MonitorOptions {
	return planningscene.MonitorOptions{
		Name:                         o.Name,
		RobotDescription:             o.RobotDescription,
		JointStateTopic:              o.JointStateTopic,
		AttachedCollisionObjectTopic: o.AttachedCollisionObjectTopic,
		MonitoredPlanningSceneTopic:  o.MonitoredPlanningSceneTopic,
		PublishPlanningSceneTopic:    o.PublishPlanningSceneTopic,
		WaitForInitialStateTimeout:   o.WaitForInitialStateTimeout,
		PublishRate:                  o.PublishRate,
	}
}

// PlanningPipelineOptions names the planning pipelines to load. Each pipeline is configured by the
// parameters at "<Namespace>.<pipeline name>".
type PlanningPipelineOptions struct {
	PipelineNames []string
	Namespace     string
}

// Load reads "planning_pipelines.pipeline_names" and "planning_pipelines.namespace" from n,
// keeping the current values when they are unset.
func (o *PlanningPipelineOptions) Load(n *node.Node) {
	o.PipelineNames = node.ParameterOr(n, planningPipelinesNamespace+".pipeline_names", o.PipelineNames)
	o.Namespace = node.ParameterOr(n, planningPipelinesNamespace+".namespace", o.Namespace)
}

// Options holds everything needed to construct a Mover.
type Options struct {
	PlanningSceneMonitor PlanningSceneMonitorOptions
	PlanningPipelines    PlanningPipelineOptions
	TrajectoryExecution  execution.ManagerOptions
}

// NewOptions loads every option from the parameters of n.
func NewOptions(n *node.Node) (Options, error) {
	opts := Options{TrajectoryExecution: execution.DefaultManagerOptions()}
	opts.PlanningSceneMonitor.Load(n)
	opts.PlanningPipelines.Load(n)
	if err := opts.TrajectoryExecution.Load(n); err != nil {
		return Options{}, err
	}
	return opts, nil
}
