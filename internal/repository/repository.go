package repository

import (
	"errors"
	"time"

	"github.com/peerspark/backend/internal/model"
)

// ErrNotFound 记录不存在错误
var ErrNotFound = errors.New("record not found")

type RunRepository interface {
	Create(run *model.CourseRun) error
	List() ([]model.CourseRun, error)
	GetByRunID(runID string) (*model.CourseRun, error)
	GetBasic(runID string) (*model.CourseRun, error)
	Save(run *model.CourseRun) error
	GetStuckRuns(timeout time.Duration) ([]model.CourseRun, error)
}

type UnitRepository interface {
	GetByRun(courseRunID uint) ([]model.CourseUnit, error)
	GetByRunAndIndex(courseRunID uint, unitIndex int) (*model.CourseUnit, error)
	Save(unit *model.CourseUnit) error
}
