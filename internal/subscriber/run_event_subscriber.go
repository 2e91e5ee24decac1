package subscriber

import (
	"context"

	"github.com/peerspark/backend/internal/eventbus"
	"k8s.io/klog/v2"
)

// RunEventSubscriber 记录运行生命周期事件
// 后续接通知渠道（站内信/Webhook）时在这里挂接
type RunEventSubscriber struct{}

func NewRunEventSubscriber() *RunEventSubscriber {
	return &RunEventSubscriber{}
}

func (s *RunEventSubscriber) Register(bus *eventbus.RunEventBus) {
	if bus == nil {
		return
	}
	bus.Subscribe(eventbus.RunEventCreated, s.handleRunEvent)
	bus.Subscribe(eventbus.RunEventCompleted, s.handleRunEvent)
	bus.Subscribe(eventbus.RunEventFailed, s.handleRunEvent)
	bus.Subscribe(eventbus.UnitEventGenerated, s.handleUnitEvent)
	bus.Subscribe(eventbus.UnitEventFailed, s.handleUnitEvent)
	bus.Subscribe(eventbus.UnitEventUnlocked, s.handleUnitEvent)
}

func (s *RunEventSubscriber) handleRunEvent(ctx context.Context, event eventbus.RunEvent) error {
	if event.Type == eventbus.RunEventFailed {
		klog.Warningf("运行事件: type=%s, runID=%s, title=%s, error=%s", event.Type, event.RunID, event.Title, event.ErrorMsg)
		return nil
	}
	klog.V(6).Infof("运行事件: type=%s, runID=%s, title=%s", event.Type, event.RunID, event.Title)
	return nil
}

func (s *RunEventSubscriber) handleUnitEvent(ctx context.Context, event eventbus.RunEvent) error {
	if event.Type == eventbus.UnitEventFailed {
		klog.Warningf("单元事件: type=%s, runID=%s, unitIndex=%d, error=%s", event.Type, event.RunID, event.UnitIndex, event.ErrorMsg)
		return nil
	}
	klog.V(6).Infof("单元事件: type=%s, runID=%s, unitIndex=%d, unit=%s", event.Type, event.RunID, event.UnitIndex, event.UnitTitle)
	return nil
}
