package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peerspark/backend/config"
	"github.com/peerspark/backend/internal/eventbus"
	"github.com/peerspark/backend/internal/model"
	"github.com/peerspark/backend/internal/pkg/transcript"
	"github.com/peerspark/backend/internal/repository"
	"github.com/peerspark/backend/internal/service/coursegen"
	"github.com/peerspark/backend/internal/service/orchestrator"
	"github.com/peerspark/backend/internal/service/statemachine"
	"github.com/peerspark/backend/internal/utils"
	"k8s.io/klog/v2"
)

// Scheduler 后台任务入队接口
// 由全局 orchestrator 实现，测试中可注入假实现
type Scheduler interface {
	EnqueueJob(job *orchestrator.Job) error
}

// ErrUnitNotRetryable 单元不满足重试条件
var ErrUnitNotRetryable = fmt.Errorf("unit is not retryable")

// RunService 课程生成运行服务
// 大纲阶段同步执行，详情阶段由 orchestrator 异步驱动；
// 单元级失败只落在单元上，绝不中断整轮运行
type RunService struct {
	cfg          *config.Config
	runRepo      repository.RunRepository
	unitRepo     repository.UnitRepository
	executor     *coursegen.StageExecutor
	transcripts  transcript.Fetcher
	stateMachine *statemachine.RunStateMachine
	bus          *eventbus.RunEventBus
	scheduler    Scheduler
}

func NewRunService(
	cfg *config.Config,
	runRepo repository.RunRepository,
	unitRepo repository.UnitRepository,
	client coursegen.GenerationClient,
	fetcher transcript.Fetcher,
	bus *eventbus.RunEventBus,
) *RunService {
	return &RunService{
		cfg:          cfg,
		runRepo:      runRepo,
		unitRepo:     unitRepo,
		executor:     coursegen.NewStageExecutor(client),
		transcripts:  fetcher,
		stateMachine: statemachine.NewRunStateMachine(),
		bus:          bus,
	}
}

// SetScheduler 注入后台任务调度器
func (s *RunService) SetScheduler(scheduler Scheduler) {
	s.scheduler = scheduler
}

// CreateRun 创建一次课程生成运行
// 大纲阶段在本调用内同步完成：失败时运行以 error 态落库（零单元），
// 不调度任何后台任务；成功时首个单元解锁，详情生成任务入队
func (s *RunService) CreateRun(ctx context.Context, title, sourceReference string) (*model.CourseRun, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	runID := uuid.New().String()
	klog.V(6).Infof("[CreateRun] 创建运行: runID=%s, title=%s", runID, title)

	run := &model.CourseRun{
		RunID:           runID,
		Title:           title,
		SourceReference: strings.TrimSpace(sourceReference),
		Status:          string(statemachine.RunStatusStructuring),
	}

	// 文字稿尽力获取，失败走无文字稿路径
	transcriptText := s.fetchTranscript(ctx, run.SourceReference)

	prompt, err := coursegen.BuildOutlinePrompt(title, transcriptText)
	if err != nil {
		return nil, err
	}

	content, err := s.executor.Execute(ctx, prompt, s.cfg.Generation.OutlineTimeout)
	if err != nil {
		return s.failOutline(ctx, run, err)
	}

	units, err := coursegen.ParseOutline(content)
	if err != nil {
		return s.failOutline(ctx, run, err)
	}

	// 首个单元解锁，其余锁定
	run.Units = make([]model.CourseUnit, 0, len(units))
	for i, u := range units {
		run.Units = append(run.Units, model.CourseUnit{
			UnitIndex:       i,
			Title:           u.Title,
			Summary:         u.Summary,
			EstimatedEffort: u.EstimatedEffort,
			Objectives:      utils.ToJSON(u.Objectives),
			Locked:          i != 0,
		})
	}

	if err := s.stateMachine.Transition(statemachine.RunStatusStructuring, statemachine.RunStatusGenerating, runID); err != nil {
		return nil, err
	}
	run.Status = string(statemachine.RunStatusGenerating)
	run.Progress = 0

	if err := s.runRepo.Create(run); err != nil {
		klog.Errorf("[CreateRun] 运行落库失败: runID=%s, err=%v", runID, err)
		return nil, err
	}

	s.publish(ctx, eventbus.RunEventCreated, eventbus.RunEvent{
		Type:  eventbus.RunEventCreated,
		RunID: runID,
		Title: title,
	})

	if s.scheduler != nil {
		timeout := s.cfg.Generation.DetailTimeout * time.Duration(len(units)+1)
		if err := s.scheduler.EnqueueJob(orchestrator.NewRunJob(runID, timeout)); err != nil {
			// 编排故障，运行级 error
			s.markRunError(ctx, run, fmt.Errorf("failed to schedule generation: %w", err))
			return run, err
		}
	}

	klog.V(6).Infof("[CreateRun] 运行创建成功: runID=%s, units=%d", runID, len(units))
	return run, nil
}

// failOutline 大纲阶段失败：零单元 error 态落库，返回持久化后的运行与原始错误
func (s *RunService) failOutline(ctx context.Context, run *model.CourseRun, cause error) (*model.CourseRun, error) {
	klog.Errorf("[CreateRun] 大纲阶段失败: runID=%s, err=%v", run.RunID, cause)

	if err := s.stateMachine.Transition(statemachine.RunStatusStructuring, statemachine.RunStatusError, run.RunID); err != nil {
		return nil, err
	}
	run.Status = string(statemachine.RunStatusError)
	run.LastError = cause.Error()

	if err := s.runRepo.Create(run); err != nil {
		klog.Errorf("[CreateRun] 失败运行落库失败: runID=%s, err=%v", run.RunID, err)
		return nil, err
	}

	s.publish(ctx, eventbus.RunEventFailed, eventbus.RunEvent{
		Type:     eventbus.RunEventFailed,
		RunID:    run.RunID,
		Title:    run.Title,
		ErrorMsg: run.LastError,
	})
	return run, cause
}

// GetRun 获取运行快照（含全部单元，按 unit_index 升序）
func (s *RunService) GetRun(runID string) (*model.CourseRun, error) {
	return s.runRepo.GetByRunID(runID)
}

// ListRuns 列出全部运行
func (s *RunService) ListRuns() ([]model.CourseRun, error) {
	return s.runRepo.List()
}

// GenerateUnits 逐单元生成详情，按 unit_index 升序
// 每个单元独立结算：失败记录在单元上，下一单元照常解锁；
// 每次结算后重算并持久化进度；持久化失败视为编排故障
func (s *RunService) GenerateUnits(ctx context.Context, runID string) error {
	run, err := s.runRepo.GetByRunID(runID)
	if err != nil {
		return err
	}
	if run.Status != string(statemachine.RunStatusGenerating) {
		klog.V(6).Infof("[GenerateUnits] 运行不在生成态，跳过: runID=%s, status=%s", runID, run.Status)
		return nil
	}

	transcriptText := s.fetchTranscript(ctx, run.SourceReference)
	total := len(run.Units)

	for i := range run.Units {
		unit := &run.Units[i]
		if unit.Generated || unit.ErrorMsg != "" {
			continue // 已结算
		}

		s.attemptUnitDetail(ctx, run, unit, transcriptText)

		if err := s.unitRepo.Save(unit); err != nil {
			s.markRunError(ctx, run, fmt.Errorf("failed to persist unit %d: %w", unit.UnitIndex, err))
			return err
		}

		// 无论成败都解锁下一单元
		if i+1 < total && run.Units[i+1].Locked {
			next := &run.Units[i+1]
			next.Locked = false
			if err := s.unitRepo.Save(next); err != nil {
				s.markRunError(ctx, run, fmt.Errorf("failed to unlock unit %d: %w", next.UnitIndex, err))
				return err
			}
			s.publish(ctx, eventbus.UnitEventUnlocked, eventbus.RunEvent{
				Type:      eventbus.UnitEventUnlocked,
				RunID:     runID,
				UnitIndex: next.UnitIndex,
				UnitTitle: next.Title,
			})
		}

		run.Progress = deriveProgress(run.Units)
		if err := s.runRepo.Save(run); err != nil {
			s.markRunError(ctx, run, fmt.Errorf("failed to persist progress: %w", err))
			return err
		}
	}

	// 所有单元已尝试完毕，即使个别失败运行也算完成
	if err := s.stateMachine.Transition(statemachine.RunStatusGenerating, statemachine.RunStatusCompleted, runID); err != nil {
		return err
	}
	run.Status = string(statemachine.RunStatusCompleted)
	now := time.Now()
	run.CompletedAt = &now
	if err := s.runRepo.Save(run); err != nil {
		return err
	}

	s.publish(ctx, eventbus.RunEventCompleted, eventbus.RunEvent{
		Type:  eventbus.RunEventCompleted,
		RunID: runID,
		Title: run.Title,
	})
	klog.V(6).Infof("[GenerateUnits] 运行完成: runID=%s, progress=%d, failed=%d",
		runID, run.Progress, countFailed(run.Units))
	return nil
}

// attemptUnitDetail 结算单个单元：成功写入详情，失败记录错误
func (s *RunService) attemptUnitDetail(ctx context.Context, run *model.CourseRun, unit *model.CourseUnit, transcriptText string) {
	outlineUnit := coursegen.OutlineUnit{
		Title:           unit.Title,
		Summary:         unit.Summary,
		EstimatedEffort: unit.EstimatedEffort,
		Objectives:      decodeObjectives(unit.Objectives),
	}

	detail, err := s.generateDetail(ctx, run.Title, outlineUnit, transcriptText)
	if err != nil {
		klog.Warningf("[GenerateUnits] 单元生成失败: runID=%s, unitIndex=%d, err=%v", run.RunID, unit.UnitIndex, err)
		unit.ErrorMsg = err.Error()
		s.publish(ctx, eventbus.UnitEventFailed, eventbus.RunEvent{
			Type:      eventbus.UnitEventFailed,
			RunID:     run.RunID,
			UnitIndex: unit.UnitIndex,
			UnitTitle: unit.Title,
			ErrorMsg:  unit.ErrorMsg,
		})
		return
	}

	unit.Generated = true
	unit.Detail = utils.ToJSON(detail)
	unit.ErrorMsg = ""
	s.publish(ctx, eventbus.UnitEventGenerated, eventbus.RunEvent{
		Type:      eventbus.UnitEventGenerated,
		RunID:     run.RunID,
		UnitIndex: unit.UnitIndex,
		UnitTitle: unit.Title,
	})
}

func (s *RunService) generateDetail(ctx context.Context, courseTitle string, unit coursegen.OutlineUnit, transcriptText string) (*coursegen.UnitDetail, error) {
	prompt, err := coursegen.BuildDetailPrompt(courseTitle, unit, transcriptText)
	if err != nil {
		return nil, err
	}
	content, err := s.executor.Execute(ctx, prompt, s.cfg.Generation.DetailTimeout)
	if err != nil {
		return nil, err
	}
	return coursegen.ParseUnitDetail(content)
}

// RetryUnit 校验并入队单元重试任务
// 仅允许重试已完成运行中失败的单元
func (s *RunService) RetryUnit(ctx context.Context, runID string, unitIndex int) error {
	run, err := s.runRepo.GetBasic(runID)
	if err != nil {
		return err
	}
	if run.Status != string(statemachine.RunStatusCompleted) {
		return fmt.Errorf("%w: run status is %s", ErrUnitNotRetryable, run.Status)
	}

	unit, err := s.unitRepo.GetByRunAndIndex(run.ID, unitIndex)
	if err != nil {
		return err
	}
	if unit.Generated || unit.ErrorMsg == "" {
		return fmt.Errorf("%w: unit %d has no failure to retry", ErrUnitNotRetryable, unitIndex)
	}

	if s.scheduler == nil {
		return fmt.Errorf("scheduler is not configured")
	}
	return s.scheduler.EnqueueJob(orchestrator.NewUnitRetryJob(runID, unitIndex, s.cfg.Generation.DetailTimeout*2))
}

// RetryUnitDetail 执行单元重试（orchestrator 回调）
// 重新结算该单元并重算进度，运行保持 completed 态
func (s *RunService) RetryUnitDetail(ctx context.Context, runID string, unitIndex int) error {
	run, err := s.runRepo.GetByRunID(runID)
	if err != nil {
		return err
	}

	var unit *model.CourseUnit
	for i := range run.Units {
		if run.Units[i].UnitIndex == unitIndex {
			unit = &run.Units[i]
			break
		}
	}
	if unit == nil {
		return repository.ErrNotFound
	}
	if unit.Generated {
		klog.V(6).Infof("[RetryUnitDetail] 单元已生成，跳过: runID=%s, unitIndex=%d", runID, unitIndex)
		return nil
	}

	// 清除上次失败记录后重新结算
	unit.ErrorMsg = ""
	transcriptText := s.fetchTranscript(ctx, run.SourceReference)
	s.attemptUnitDetail(ctx, run, unit, transcriptText)

	if err := s.unitRepo.Save(unit); err != nil {
		return err
	}

	run.Progress = deriveProgress(run.Units)
	return s.runRepo.Save(run)
}

// CleanupStuckRuns 启动期回收：长时间停留在生成态的运行标记为编排故障
func (s *RunService) CleanupStuckRuns(ctx context.Context, timeout time.Duration) error {
	runs, err := s.runRepo.GetStuckRuns(timeout)
	if err != nil {
		return err
	}
	for i := range runs {
		run := &runs[i]
		klog.Warningf("[CleanupStuckRuns] 发现滞留运行: runID=%s, updatedAt=%v", run.RunID, run.UpdatedAt)
		s.markRunError(ctx, run, fmt.Errorf("run abandoned: no progress within %v", timeout))
	}
	return nil
}

// markRunError 编排故障：运行级 error 态
func (s *RunService) markRunError(ctx context.Context, run *model.CourseRun, cause error) {
	klog.Errorf("[markRunError] 编排故障: runID=%s, err=%v", run.RunID, cause)

	if err := s.stateMachine.Transition(statemachine.RunStatus(run.Status), statemachine.RunStatusError, run.RunID); err != nil {
		klog.Errorf("[markRunError] 状态迁移失败: runID=%s, err=%v", run.RunID, err)
		return
	}
	run.Status = string(statemachine.RunStatusError)
	run.LastError = cause.Error()
	if err := s.runRepo.Save(run); err != nil {
		klog.Errorf("[markRunError] 错误态落库失败: runID=%s, err=%v", run.RunID, err)
	}

	s.publish(ctx, eventbus.RunEventFailed, eventbus.RunEvent{
		Type:     eventbus.RunEventFailed,
		RunID:    run.RunID,
		Title:    run.Title,
		ErrorMsg: run.LastError,
	})
}

func (s *RunService) fetchTranscript(ctx context.Context, sourceReference string) string {
	if sourceReference == "" {
		return ""
	}
	text, err := s.transcripts.Fetch(ctx, sourceReference)
	if err != nil {
		klog.Warningf("文字稿获取失败，按无文字稿继续: ref=%s, err=%v", sourceReference, err)
		return ""
	}
	return text
}

func (s *RunService) publish(ctx context.Context, eventType eventbus.RunEventType, event eventbus.RunEvent) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, eventType, event); err != nil {
		klog.Errorf("事件发布失败: type=%s, err=%v", eventType, err)
	}
}

// deriveProgress 进度 = round(100 * 已生成 / 总数)
func deriveProgress(units []model.CourseUnit) int {
	if len(units) == 0 {
		return 0
	}
	generated := 0
	for i := range units {
		if units[i].Generated {
			generated++
		}
	}
	return int(math.Round(100 * float64(generated) / float64(len(units))))
}

func countFailed(units []model.CourseUnit) int {
	failed := 0
	for i := range units {
		if !units[i].Generated && units[i].ErrorMsg != "" {
			failed++
		}
	}
	return failed
}

func decodeObjectives(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var objectives []string
	if err := json.Unmarshal([]byte(raw), &objectives); err != nil {
		return []string{}
	}
	return objectives
}
