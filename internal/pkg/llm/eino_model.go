package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/peerspark/backend/config"
	"k8s.io/klog/v2"
)

// EinoModel 基于 Eino ChatModel 的生成客户端
// 与 Client 提供相同的 Generate 能力，通过 llm.provider 配置切换
type EinoModel struct {
	chatModel model.BaseChatModel
}

// NewEinoModel 创建 Eino OpenAI ChatModel 客户端
func NewEinoModel(cfg *config.Config) (*EinoModel, error) {
	klog.V(6).Infof("[EinoModel] 创建 OpenAI ChatModel: model=%s, baseURL=%s", cfg.LLM.Model, cfg.LLM.APIURL)

	modelConfig := &openai.ChatModelConfig{
		APIKey: cfg.LLM.APIKey,
		Model:  cfg.LLM.Model,
	}

	if cfg.LLM.APIURL != "" {
		modelConfig.BaseURL = cfg.LLM.APIURL
	}

	if cfg.LLM.MaxTokens > 0 {
		maxTokens := cfg.LLM.MaxTokens
		modelConfig.MaxTokens = &maxTokens
	}

	chatModel, err := openai.NewChatModel(context.Background(), modelConfig)
	if err != nil {
		klog.Errorf("[EinoModel] 创建 ChatModel 失败: %v", err)
		return nil, err
	}

	return &EinoModel{chatModel: chatModel}, nil
}

// Generate 按单条提示词生成文本
func (m *EinoModel) Generate(ctx context.Context, prompt string) (string, error) {
	klog.V(6).Infof("[EinoModel] Generate 开始: promptLength=%d", len(prompt))

	resp, err := m.chatModel.Generate(ctx, []*schema.Message{
		{
			Role:    schema.User,
			Content: prompt,
		},
	})
	if err != nil {
		klog.Errorf("[EinoModel] Generate 失败: %v", err)
		return "", err
	}

	if resp == nil || resp.Content == "" {
		return "", fmt.Errorf("no response from LLM")
	}

	klog.V(6).Infof("[EinoModel] Generate 完成: responseLength=%d", len(resp.Content))
	return resp.Content, nil
}
