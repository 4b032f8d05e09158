package repository

import (
	"context"
	"time"

	"github.com/linkdms/linkdms/models"
	"github.com/linkdms/linkdms/utils"
	"gorm.io/gorm"
)

// BatchScheduleRepositoryImpl implements the BatchScheduleRepository interface
type BatchScheduleRepositoryImpl struct {
	*BaseRepository[models.BatchSchedule, models.BatchScheduleFilter]
}

// NewBatchScheduleRepository creates a new batch schedule repository
func NewBatchScheduleRepository(db *gorm.DB) BatchScheduleRepository {
	return &BatchScheduleRepositoryImpl{
		BaseRepository: NewBaseRepository[models.BatchSchedule, models.BatchScheduleFilter](db),
	}
}

// ListDue lists scheduled batches whose run time has arrived
func (r *BatchScheduleRepositoryImpl) ListDue(ctx context.Context, now time.Time) ([]*models.BatchSchedule, error) {
	db := r.getDB(ctx)

	var batches []*models.BatchSchedule
	err := db.Where("status = ? AND run_at <= ?", models.BatchScheduleStatusScheduled, now).
		Order("run_at ASC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}

	return batches, nil
}

// UpdateStatus updates only the status of a batch schedule
func (r *BatchScheduleRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status models.BatchScheduleStatus) error {
	db := r.getDB(ctx)
	return db.Model(&models.BatchSchedule{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": utils.UTCNow(),
		}).Error
}
