package planningscene

import (
	"context"

	"go.viam.com/motionkit/msgs"
	"go.viam.com/motionkit/node"
)

func (m *Monitor) schedulePublish(updateType string) {
	if !m.publishing.Load() {
		return
	}
	m.pendingMu.Lock()
	m.pending = append(m.pending, updateType)
	m.pendingMu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// takePending returns the update type covering everything since the last publish.
func (m *Monitor) takePending() string {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	pending := m.pending
	m.pending = nil
	if len(pending) == 0 {
		return ""
	}
	for _, p := range pending[1:] {
		if p != pending[0] {
			return UpdateScene
		}
	}
	return pending[0]
}

func (m *Monitor) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.wake:
		}
		now := m.clk.Now()
		if delay := m.limiter.ReserveN(now, 1).DelayFrom(now); delay > 0 {
			timer := m.clk.Timer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		updateType := m.takePending()
		if updateType == "" {
			continue
		}
		if err := node.Publish(m.node, m.opts.PublishPlanningSceneTopic, m.SceneUpdate(updateType)); err != nil {
			m.logger.Warnw("failed to publish planning scene", "topic", m.opts.PublishPlanningSceneTopic, "error", err)
		}
	}
}

// SceneUpdate returns a full snapshot of the scene.
func (m *Monitor) SceneUpdate(updateType string) msgs.PlanningSceneUpdate {
	attached := m.AttachedObjects()
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clk.Now()
	return msgs.PlanningSceneUpdate{
		Header:          msgs.Header{Stamp: now, FrameID: m.model.ModelFrame()},
		Name:            m.opts.Name,
		Type:            updateType,
		RobotState:      m.state.ToMsg(now),
		AttachedObjects: attached,
	}
}
