package coursegen

import "context"

// GenerationClient 文本生成客户端
// 模型选择、token 限制、重试策略都是客户端自身的事情
type GenerationClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OutlineUnit 大纲阶段产出的单元桩
type OutlineUnit struct {
	Title           string   `json:"title"`
	Summary         string   `json:"summary"`
	EstimatedEffort string   `json:"estimated_effort"`
	Objectives      []string `json:"objectives"`
}

// UnitDetail 详情阶段产出的单元完整内容
// Content 为必填，其余键缺失时按空值处理
type UnitDetail struct {
	Content   string          `json:"content"`
	KeyPoints []string        `json:"key_points"`
	Tasks     []GeneratedTask `json:"tasks"`
	Notes     []string        `json:"notes"`
}

// GeneratedTask 单元内生成的练习任务
type GeneratedTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}
