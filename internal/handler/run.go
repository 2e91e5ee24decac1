package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/peerspark/backend/internal/repository"
	"github.com/peerspark/backend/internal/service"
	"github.com/peerspark/backend/internal/service/orchestrator"
)

type RunHandler struct {
	service *service.RunService
}

func NewRunHandler(service *service.RunService) *RunHandler {
	return &RunHandler{
		service: service,
	}
}

// Create 创建运行
// 大纲阶段同步执行：失败时运行已以 error 态落库，返回 502 并附 run_id
func (h *RunHandler) Create(c *gin.Context) {
	var req CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	run, err := h.service.CreateRun(c.Request.Context(), req.Title, req.SourceReference)
	if err != nil {
		if run != nil {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":  err.Error(),
				"run_id": run.RunID,
				"status": run.Status,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, NewRunResponse(run))
}

func (h *RunHandler) List(c *gin.Context) {
	runs, err := h.service.ListRuns()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, NewRunListItems(runs))
}

func (h *RunHandler) Get(c *gin.Context) {
	run, err := h.service.GetRun(c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, NewRunResponse(run))
}

// RetryUnit 重试已完成运行中失败的单元
func (h *RunHandler) RetryUnit(c *gin.Context) {
	unitIndex, err := strconv.Atoi(c.Param("index"))
	if err != nil || unitIndex < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid unit index"})
		return
	}

	err = h.service.RetryUnit(c.Request.Context(), c.Param("id"), unitIndex)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run or unit not found"})
			return
		}
		if errors.Is(err, service.ErrUnitNotRetryable) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "unit retry scheduled"})
}

// QueueStatus 查看生成队列状态
func (h *RunHandler) QueueStatus(c *gin.Context) {
	orch := orchestrator.GetGlobalOrchestrator()
	if orch == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "orchestrator not initialized"})
		return
	}

	c.JSON(http.StatusOK, orch.GetQueueStatus())
}
