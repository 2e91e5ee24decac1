package repository

import (
	"errors"
	"time"

	"github.com/peerspark/backend/internal/model"
	"gorm.io/gorm"
)

type runRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{db: db}
}

// Create 创建运行记录，级联写入关联的单元
func (r *runRepository) Create(run *model.CourseRun) error {
	return r.db.Create(run).Error
}

// List 按创建时间倒序返回所有运行（不含单元）
func (r *runRepository) List() ([]model.CourseRun, error) {
	var runs []model.CourseRun
	err := r.db.Order("created_at DESC").Find(&runs).Error
	return runs, err
}

// GetByRunID 按对外 runID 获取运行详情（含按序单元）
func (r *runRepository) GetByRunID(runID string) (*model.CourseRun, error) {
	var run model.CourseRun
	result := r.db.Preload("Units", func(db *gorm.DB) *gorm.DB {
		return db.Order("unit_index ASC")
	}).Where("run_id = ?", runID).First(&run)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &run, nil
}

// GetBasic 按对外 runID 获取运行基础信息（不含单元）
func (r *runRepository) GetBasic(runID string) (*model.CourseRun, error) {
	var run model.CourseRun
	result := r.db.Where("run_id = ?", runID).First(&run)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &run, nil
}

func (r *runRepository) Save(run *model.CourseRun) error {
	return r.db.Omit("Units").Save(run).Error
}

// GetStuckRuns 获取卡住的运行（generating 状态停留超过指定时间）
// 用于服务启动时的恢复处理
func (r *runRepository) GetStuckRuns(timeout time.Duration) ([]model.CourseRun, error) {
	cutoff := time.Now().Add(-timeout)
	var runs []model.CourseRun
	err := r.db.Where("status = ? AND updated_at < ?", "generating", cutoff).Find(&runs).Error
	return runs, err
}
