package repository

import (
	"context"

	"github.com/linkdms/linkdms/models"
	"github.com/linkdms/linkdms/utils"
	"gorm.io/gorm"
)

// ExecutionLogRepositoryImpl implements the ExecutionLogRepository interface
type ExecutionLogRepositoryImpl struct {
	*BaseRepository[models.ExecutionLog, models.ExecutionLogFilter]
}

// NewExecutionLogRepository creates a new execution log repository
func NewExecutionLogRepository(db *gorm.DB) ExecutionLogRepository {
	return &ExecutionLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ExecutionLog, models.ExecutionLogFilter](db),
	}
}

// MarkCompleted closes a running execution with the final connection count
func (r *ExecutionLogRepositoryImpl) MarkCompleted(ctx context.Context, id uint, connections int) error {
	db := r.getDB(ctx)
	now := utils.UTCNow()
	return db.Model(&models.ExecutionLog{}).
		Where("id = ? AND status = ?", id, models.ExecutionStatusRunning).
		Updates(map[string]any{
			"status":           models.ExecutionStatusCompleted,
			"connections_made": connections,
			"completed_at":     now,
			"updated_at":       now,
		}).Error
}

// MarkFailed closes a running execution with the error and whatever count
// was reached before the failure
func (r *ExecutionLogRepositoryImpl) MarkFailed(ctx context.Context, id uint, errMsg string, connections int) error {
	db := r.getDB(ctx)
	now := utils.UTCNow()
	return db.Model(&models.ExecutionLog{}).
		Where("id = ? AND status = ?", id, models.ExecutionStatusRunning).
		Updates(map[string]any{
			"status":           models.ExecutionStatusFailed,
			"error_message":    errMsg,
			"connections_made": connections,
			"completed_at":     now,
			"updated_at":       now,
		}).Error
}

// ListByCampaign lists execution logs of a campaign, newest first
func (r *ExecutionLogRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.ExecutionLog, error) {
	db := r.getDB(ctx)

	query := db.Where("campaign_id = ?", campaignID).Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var logs []*models.ExecutionLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, err
	}

	return logs, nil
}
