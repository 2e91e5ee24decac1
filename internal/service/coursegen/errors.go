package coursegen

import (
	"fmt"
	"time"
)

// TimeoutError 阶段执行超出墙钟时限
// 底层调用不保证可取消，超时后只是放弃等待，不代表请求已终止
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("generation timed out after %v", e.Timeout)
}

// UpstreamError 生成客户端返回的错误，保留原始信息
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream generation failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ExtractionError 无法从模型输出中定位或解析期望结构
// 在单元结果层面与上游失败同等对待
type ExtractionError struct {
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract structured output: %s", e.Reason)
}
