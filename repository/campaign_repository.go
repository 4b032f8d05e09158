package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/linkdms/linkdms/models"
	"github.com/linkdms/linkdms/utils"
	"gorm.io/gorm"
)

// CampaignRepositoryImpl implements the CampaignRepository interface
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign, models.CampaignFilter]
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Campaign, models.CampaignFilter](db),
	}
}

// ByUUID retrieves a campaign by UUID
func (r *CampaignRepositoryImpl) ByUUID(ctx context.Context, id string) (*models.Campaign, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}

	campaigns, err := r.ByFilter(ctx, models.CampaignFilter{UUID: &parsed}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(campaigns) == 0 {
		return nil, nil
	}

	return campaigns[0], nil
}

// ByFilter retrieves campaigns matching the filter
func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.Campaign{})
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CTAMode != nil {
		query = query.Where("cta_mode = ?", *filter.CTAMode)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.NextRunBefore != nil {
		query = query.Where("next_run_date IS NOT NULL AND next_run_date <= ?", *filter.NextRunBefore)
	}

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var campaigns []*models.Campaign
	if err := query.Find(&campaigns).Error; err != nil {
		return nil, err
	}

	return campaigns, nil
}

// Update updates a campaign
func (r *CampaignRepositoryImpl) Update(ctx context.Context, campaign models.Campaign) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	now := utils.UTCNow()
	campaign.UpdatedAt = &now

	err = db.Save(&campaign).Error
	if err != nil {
		return err
	}

	return nil
}

// UpdateCursor persists only the search cursor fields of a campaign
func (r *CampaignRepositoryImpl) UpdateCursor(ctx context.Context, id uint, page, variation int) error {
	db := r.getDB(ctx)
	return db.Model(&models.Campaign{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"search_page":       page,
			"keyword_variation": variation,
			"updated_at":        utils.UTCNow(),
		}).Error
}

// IncrementSent bumps the daily and total sent counters by n.
// The increment runs in SQL so concurrent runs of other campaigns never
// clobber each other's counts.
func (r *CampaignRepositoryImpl) IncrementSent(ctx context.Context, id uint, n int) error {
	if n <= 0 {
		return nil
	}
	db := r.getDB(ctx)
	return db.Model(&models.Campaign{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"daily_sent": gorm.Expr("daily_sent + ?", n),
			"total_sent": gorm.Expr("total_sent + ?", n),
			"updated_at": utils.UTCNow(),
		}).Error
}

// SumDailySentByUser aggregates daily_sent across every campaign of a user
func (r *CampaignRepositoryImpl) SumDailySentByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	db := r.getDB(ctx)

	var total int64
	err := db.Model(&models.Campaign{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(daily_sent), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}

	return int(total), nil
}

// ListDue lists active campaigns whose next run date has arrived
func (r *CampaignRepositoryImpl) ListDue(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	active := models.CampaignStatusActive
	return r.ByFilter(ctx, models.CampaignFilter{
		Status:        &active,
		IsActive:      utils.ToPtr(true),
		NextRunBefore: &now,
	}, "next_run_date ASC", 0, 0)
}

// ResetDailyCounters zeroes daily_sent for campaigns whose last run predates the
// given day boundary. Returns the number of campaigns reset.
func (r *CampaignRepositoryImpl) ResetDailyCounters(ctx context.Context, before time.Time) (int64, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.Campaign{}).
		Where("daily_sent > 0 AND (last_run_date IS NULL OR last_run_date < ?)", before).
		Updates(map[string]any{
			"daily_sent": 0,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return 0, res.Error
	}

	return res.RowsAffected, nil
}

// UpdateRunDates records the completed run date and the next scheduled run
func (r *CampaignRepositoryImpl) UpdateRunDates(ctx context.Context, id uint, lastRun time.Time, nextRun *time.Time) error {
	db := r.getDB(ctx)

	updates := map[string]any{
		"last_run_date": lastRun,
		"updated_at":    utils.UTCNow(),
	}
	if nextRun != nil {
		updates["next_run_date"] = *nextRun
	}

	err := db.Model(&models.Campaign{}).Where("id = ?", id).Updates(updates).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return nil
}
