package coursegen

import (
	"context"
	"time"

	"k8s.io/klog/v2"
)

// StageExecutor 执行单次生成阶段
// 对客户端调用施加硬性墙钟时限并归类结果；不做任何重试
type StageExecutor struct {
	client GenerationClient
}

func NewStageExecutor(client GenerationClient) *StageExecutor {
	return &StageExecutor{client: client}
}

type generateResult struct {
	content string
	err     error
}

// Execute 执行一次生成调用
// 超时后放弃等待并返回 TimeoutError，进行中的调用不保证被终止；
// 客户端错误统一包装为 UpstreamError
func (e *StageExecutor) Execute(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	klog.V(6).Infof("[StageExecutor] 开始执行: promptLength=%d, timeout=%v", len(prompt), timeout)

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan generateResult, 1)
	go func() {
		content, err := e.client.Generate(callCtx, prompt)
		resultCh <- generateResult{content: content, err: err}
	}()

	select {
	case <-callCtx.Done():
		if ctx.Err() != nil {
			// 外层上下文被取消（如服务停机），不算阶段超时
			return "", &UpstreamError{Err: ctx.Err()}
		}
		klog.Warningf("[StageExecutor] 生成超时: timeout=%v", timeout)
		return "", &TimeoutError{Timeout: timeout}
	case result := <-resultCh:
		if result.err != nil {
			klog.Warningf("[StageExecutor] 上游生成失败: %v", result.err)
			return "", &UpstreamError{Err: result.err}
		}
		klog.V(6).Infof("[StageExecutor] 执行完成: contentLength=%d", len(result.content))
		return result.content, nil
	}
}
