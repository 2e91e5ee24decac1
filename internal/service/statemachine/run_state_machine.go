package statemachine

import (
	"fmt"

	"k8s.io/klog/v2"
)

// RunStatus 定义课程生成运行的所有可能状态
type RunStatus string

const (
	RunStatusStructuring RunStatus = "structuring" // 大纲阶段（同步，请求周期内）
	RunStatusGenerating  RunStatus = "generating"  // 逐单元生成详情（异步）
	RunStatusCompleted   RunStatus = "completed"   // 所有单元已尝试完毕（允许个别单元失败）
	RunStatusError       RunStatus = "error"       // 大纲失败或编排故障
)

// RunTransition 定义运行状态迁移
type RunTransition struct {
	From RunStatus
	To   RunStatus
}

// RunStateMachine 运行状态机
type RunStateMachine struct {
	allowedTransitions map[RunTransition]bool
}

// NewRunStateMachine 创建新的运行状态机
func NewRunStateMachine() *RunStateMachine {
	sm := &RunStateMachine{
		allowedTransitions: make(map[RunTransition]bool),
	}

	// 合法迁移路径
	// structuring -> generating -> completed
	// structuring/generating -> error
	// 单元级失败不触发运行级迁移，进入 generating 后除编排故障外必然到达 completed
	transitions := []RunTransition{
		{RunStatusStructuring, RunStatusGenerating},
		{RunStatusGenerating, RunStatusCompleted},

		{RunStatusStructuring, RunStatusError},
		{RunStatusGenerating, RunStatusError},
	}

	for _, t := range transitions {
		sm.allowedTransitions[t] = true
	}

	return sm
}

// CanTransition 检查状态迁移是否合法
func (sm *RunStateMachine) CanTransition(from, to RunStatus) bool {
	if from == to {
		return false // 不允许状态不变
	}
	return sm.allowedTransitions[RunTransition{From: from, To: to}]
}

// ValidateTransition 验证状态迁移并返回错误
func (sm *RunStateMachine) ValidateTransition(from, to RunStatus) error {
	if !sm.CanTransition(from, to) {
		return &InvalidStateTransitionError{
			From: string(from),
			To:   string(to),
		}
	}
	return nil
}

// Transition 执行状态迁移（带日志）
func (sm *RunStateMachine) Transition(from, to RunStatus, runID string) error {
	if err := sm.ValidateTransition(from, to); err != nil {
		klog.V(6).Infof("运行状态迁移被拒绝: runID=%s, %s -> %s, error=%v",
			runID, from, to, err)
		return err
	}

	klog.V(6).Infof("运行状态迁移成功: runID=%s, %s -> %s", runID, from, to)
	return nil
}

// InvalidStateTransitionError 无效的状态迁移错误
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid run state transition: %s -> %s", e.From, e.To)
}

// IsTerminal 判断状态是否为终止态（不能再迁移）
func IsTerminal(status RunStatus) bool {
	return status == RunStatusCompleted || status == RunStatusError
}
