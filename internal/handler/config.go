package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/peerspark/backend/config"
)

type ConfigHandler struct {
	cfg *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// Get 返回脱敏后的运行配置
// API Key 不出参，只暴露是否已配置
func (h *ConfigHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"server": gin.H{
			"port": h.cfg.Server.Port,
			"mode": h.cfg.Server.Mode,
		},
		"llm": gin.H{
			"provider":    h.cfg.LLM.Provider,
			"api_url":     h.cfg.LLM.APIURL,
			"model":       h.cfg.LLM.Model,
			"max_tokens":  h.cfg.LLM.MaxTokens,
			"has_api_key": h.cfg.LLM.APIKey != "",
		},
		"generation": gin.H{
			"outline_timeout": h.cfg.Generation.OutlineTimeout.String(),
			"detail_timeout":  h.cfg.Generation.DetailTimeout.String(),
			"workers":         h.cfg.Generation.Workers,
		},
	})
}
