package handler

import (
	"encoding/json"
	"time"

	"github.com/peerspark/backend/internal/model"
)

// CreateRunRequest 创建运行请求
type CreateRunRequest struct {
	Title           string `json:"title" binding:"required"`
	SourceReference string `json:"source_reference"`
}

// UnitResponse 单元快照
// Objectives 与 Detail 在库里是 JSON 字符串，出参解码为结构化数据
type UnitResponse struct {
	UnitIndex       int             `json:"unit_index"`
	Title           string          `json:"title"`
	Summary         string          `json:"summary"`
	EstimatedEffort string          `json:"estimated_effort"`
	Objectives      []string        `json:"objectives"`
	Locked          bool            `json:"locked"`
	Generated       bool            `json:"generated"`
	Detail          json.RawMessage `json:"detail,omitempty"`
	ErrorMsg        string          `json:"error_msg,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// RunResponse 运行快照
type RunResponse struct {
	RunID           string         `json:"run_id"`
	Title           string         `json:"title"`
	SourceReference string         `json:"source_reference,omitempty"`
	Status          string         `json:"status"`
	Progress        int            `json:"progress"`
	LastError       string         `json:"last_error,omitempty"`
	FailedUnits     int            `json:"failed_units"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	Units           []UnitResponse `json:"units"`
}

func NewRunResponse(run *model.CourseRun) *RunResponse {
	resp := &RunResponse{
		RunID:           run.RunID,
		Title:           run.Title,
		SourceReference: run.SourceReference,
		Status:          run.Status,
		Progress:        run.Progress,
		LastError:       run.LastError,
		CreatedAt:       run.CreatedAt,
		UpdatedAt:       run.UpdatedAt,
		CompletedAt:     run.CompletedAt,
		Units:           make([]UnitResponse, 0, len(run.Units)),
	}
	for i := range run.Units {
		unit := &run.Units[i]
		if !unit.Generated && unit.ErrorMsg != "" {
			resp.FailedUnits++
		}
		resp.Units = append(resp.Units, newUnitResponse(unit))
	}
	return resp
}

func newUnitResponse(unit *model.CourseUnit) UnitResponse {
	resp := UnitResponse{
		UnitIndex:       unit.UnitIndex,
		Title:           unit.Title,
		Summary:         unit.Summary,
		EstimatedEffort: unit.EstimatedEffort,
		Objectives:      []string{},
		Locked:          unit.Locked,
		Generated:       unit.Generated,
		ErrorMsg:        unit.ErrorMsg,
		UpdatedAt:       unit.UpdatedAt,
	}
	if unit.Objectives != "" {
		var objectives []string
		if err := json.Unmarshal([]byte(unit.Objectives), &objectives); err == nil {
			resp.Objectives = objectives
		}
	}
	if unit.Generated && unit.Detail != "" {
		resp.Detail = json.RawMessage(unit.Detail)
	}
	return resp
}

// RunListItem 列表视图，不带单元
type RunListItem struct {
	RunID       string     `json:"run_id"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func NewRunListItems(runs []model.CourseRun) []RunListItem {
	items := make([]RunListItem, 0, len(runs))
	for i := range runs {
		run := &runs[i]
		items = append(items, RunListItem{
			RunID:       run.RunID,
			Title:       run.Title,
			Status:      run.Status,
			Progress:    run.Progress,
			CreatedAt:   run.CreatedAt,
			CompletedAt: run.CompletedAt,
		})
	}
	return items
}
