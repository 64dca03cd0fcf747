package execution

import (
	"fmt"

	"github.com/pkg/errors"

	"go.viam.com/motionkit/node"
	"go.viam.com/motionkit/utils"
)

// FakeControllerType is the only controller type that can be created from parameters.
const FakeControllerType = "fake"

// ControllerConfig describes one entry of the "controllers" node parameter.
type ControllerConfig struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Joints []string `json:"joints"`
}

// ControllerConfigs reads the "controllers" node parameter.
func ControllerConfigs(n *node.Node) ([]ControllerConfig, error) {
	var cfgs []ControllerConfig
	if err := n.DecodeParameters("controllers", &cfgs); err != nil {
		return nil, err
	}
	return cfgs, nil
}

// LoadControllers creates and adds a controller for every entry of the "controllers" node
// parameter. Fields of base other than the name and joints are shared by every controller.
func (m *Manager) LoadControllers(n *node.Node, base FakeControllerConfig) error {
	cfgs, err := ControllerConfigs(n)
	if err != nil {
		return err
	}
	for i, cfg := range cfgs {
		if cfg.Name == "" {
			return utils.NewConfigValidationFieldRequiredError(fmt.Sprintf("controllers.%d", i), "name")
		}
		if cfg.Type != "" && cfg.Type != FakeControllerType {
			return errors.Errorf("controller %q has unsupported type %q", cfg.Name, cfg.Type)
		}
		fakeCfg := base
		fakeCfg.Name, fakeCfg.Joints = cfg.Name, cfg.Joints
		c, err := NewFakeController(fakeCfg, m.logger.Sublogger(cfg.Name))
		if err != nil {
			return err
		}
		if err := m.AddController(c); err != nil {
			return err
		}
	}
	return nil
}
