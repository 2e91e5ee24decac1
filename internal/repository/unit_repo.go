package repository

import (
	"errors"

	"github.com/peerspark/backend/internal/model"
	"gorm.io/gorm"
)

type unitRepository struct {
	db *gorm.DB
}

func NewUnitRepository(db *gorm.DB) UnitRepository {
	return &unitRepository{db: db}
}

// GetByRun 获取运行下的所有单元，按解锁顺序排列
func (r *unitRepository) GetByRun(courseRunID uint) ([]model.CourseUnit, error) {
	var units []model.CourseUnit
	err := r.db.Where("course_run_id = ?", courseRunID).Order("unit_index ASC").Find(&units).Error
	return units, err
}

func (r *unitRepository) GetByRunAndIndex(courseRunID uint, unitIndex int) (*model.CourseUnit, error) {
	var unit model.CourseUnit
	result := r.db.Where("course_run_id = ? AND unit_index = ?", courseRunID, unitIndex).First(&unit)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &unit, nil
}

func (r *unitRepository) Save(unit *model.CourseUnit) error {
	return r.db.Save(unit).Error
}
