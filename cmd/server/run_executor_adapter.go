package main

import (
	"context"

	"github.com/peerspark/backend/internal/service"
)

// runExecutorAdapter 将 RunService 适配为 RunExecutor 接口
// 避免 orchestrator 和 service 之间的循环依赖
type runExecutorAdapter struct {
	runService *service.RunService
}

// ExecuteRun 执行生成任务
// unitIndex < 0 表示整轮逐单元生成，否则仅重试指定单元
func (a *runExecutorAdapter) ExecuteRun(ctx context.Context, runID string, unitIndex int) error {
	if unitIndex >= 0 {
		return a.runService.RetryUnitDetail(ctx, runID, unitIndex)
	}
	return a.runService.GenerateUnits(ctx, runID)
}
