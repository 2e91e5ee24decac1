package model

import (
	"time"
)

// CourseRun 一次课程生成运行
// 由一次顶层请求创建，之后仅由流水线单写者更新
type CourseRun struct {
	ID              uint         `json:"id" gorm:"primaryKey"`
	RunID           string       `json:"run_id" gorm:"size:64;uniqueIndex;not null"` // UUID
	Title           string       `json:"title" gorm:"size:255;not null"`
	SourceReference string       `json:"source_reference" gorm:"size:500"`
	Status          string       `json:"status" gorm:"size:50;default:structuring"` // structuring, generating, completed, error
	Progress        int          `json:"progress" gorm:"default:0"`                 // 0-100，由 units 推导后缓存
	LastError       string       `json:"last_error" gorm:"size:2000"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	CompletedAt     *time.Time   `json:"completed_at"`
	Units           []CourseUnit `json:"units,omitempty" gorm:"foreignKey:CourseRunID"`
}

// CourseUnit 运行中的一个学习单元（章节）
// UnitIndex 即解锁顺序，创建后不变
type CourseUnit struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	CourseRunID     uint      `json:"course_run_id" gorm:"index;not null"`
	UnitIndex       int       `json:"unit_index" gorm:"not null;default:0"`
	Title           string    `json:"title" gorm:"size:255;not null"`
	Summary         string    `json:"summary" gorm:"size:2000"`
	EstimatedEffort string    `json:"estimated_effort" gorm:"size:100"`
	Objectives      string    `json:"objectives" gorm:"type:text"` // JSON 字符串数组
	Locked          bool      `json:"locked" gorm:"default:true"`
	Generated       bool      `json:"generated" gorm:"default:false"`
	Detail          string    `json:"detail" gorm:"type:text"` // JSON 详情，仅在 Generated=true 时存在
	ErrorMsg        string    `json:"error_msg" gorm:"size:2000"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
