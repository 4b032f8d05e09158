package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/linkdms/linkdms/models"
	"github.com/linkdms/linkdms/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowUpRepositoryImpl implements the FollowUpRepository interface
type FollowUpRepositoryImpl struct {
	*BaseRepository[models.FollowUpRecord, models.FollowUpRecordFilter]
}

// NewFollowUpRepository creates a new follow-up repository
func NewFollowUpRepository(db *gorm.DB) FollowUpRepository {
	return &FollowUpRepositoryImpl{
		BaseRepository: NewBaseRepository[models.FollowUpRecord, models.FollowUpRecordFilter](db),
	}
}

// Upsert inserts a follow-up record, leaving any existing row for the same
// (campaign, profile URL) untouched. Records are never rewound once created.
func (r *FollowUpRepositoryImpl) Upsert(ctx context.Context, record *models.FollowUpRecord) error {
	db := r.getDB(ctx)
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "prospect_profile_url"}},
		DoNothing: true,
	}).Create(record).Error
}

// ByCampaignAndProfile retrieves the record for a campaign/profile pair
func (r *FollowUpRepositoryImpl) ByCampaignAndProfile(ctx context.Context, campaignID uint, profileURL string) (*models.FollowUpRecord, error) {
	db := r.getDB(ctx)

	var record models.FollowUpRecord
	err := db.Where("campaign_id = ? AND prospect_profile_url = ?", campaignID, profileURL).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &record, nil
}

// ListPendingByCampaign lists records still awaiting acceptance detection
func (r *FollowUpRepositoryImpl) ListPendingByCampaign(ctx context.Context, campaignID uint) ([]*models.FollowUpRecord, error) {
	db := r.getDB(ctx)

	var records []*models.FollowUpRecord
	err := db.Where("campaign_id = ? AND follow_up_status = ? AND connection_accepted_at IS NULL",
		campaignID, models.FollowUpStatusPending).
		Order("connection_sent_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	return records, nil
}

// ListEligible lists pending records whose acceptance predates the cutoff
func (r *FollowUpRepositoryImpl) ListEligible(ctx context.Context, campaignID uint, acceptedBefore time.Time) ([]*models.FollowUpRecord, error) {
	db := r.getDB(ctx)

	var records []*models.FollowUpRecord
	err := db.Where("campaign_id = ? AND follow_up_status = ? AND connection_accepted_at IS NOT NULL AND connection_accepted_at <= ?",
		campaignID, models.FollowUpStatusPending, acceptedBefore).
		Order("connection_accepted_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	return records, nil
}

// MarkAccepted stamps the detected acceptance time on a record
func (r *FollowUpRepositoryImpl) MarkAccepted(ctx context.Context, id uint, at time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.FollowUpRecord{}).
		Where("id = ? AND connection_accepted_at IS NULL", id).
		Updates(map[string]any{
			"connection_accepted_at": at,
			"updated_at":             utils.UTCNow(),
		}).Error
}

// MarkSent transitions a record to sent with the dispatched message
func (r *FollowUpRepositoryImpl) MarkSent(ctx context.Context, id uint, at time.Time, message string) error {
	db := r.getDB(ctx)
	return db.Model(&models.FollowUpRecord{}).
		Where("id = ? AND follow_up_status = ?", id, models.FollowUpStatusPending).
		Updates(map[string]any{
			"follow_up_status":  models.FollowUpStatusSent,
			"follow_up_sent_at": at,
			"follow_up_message": message,
			"updated_at":        utils.UTCNow(),
		}).Error
}

// MarkFailed transitions a record to failed
func (r *FollowUpRepositoryImpl) MarkFailed(ctx context.Context, id uint) error {
	db := r.getDB(ctx)
	return db.Model(&models.FollowUpRecord{}).
		Where("id = ? AND follow_up_status = ?", id, models.FollowUpStatusPending).
		Updates(map[string]any{
			"follow_up_status": models.FollowUpStatusFailed,
			"updated_at":       utils.UTCNow(),
		}).Error
}

// LatestSentByUser returns the most recent follow-up send time across all of
// the user's campaigns, or nil if none was ever sent
func (r *FollowUpRepositoryImpl) LatestSentByUser(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	db := r.getDB(ctx)

	var latest *time.Time
	err := db.Model(&models.FollowUpRecord{}).
		Joins("JOIN campaigns ON campaigns.id = follow_up_records.campaign_id").
		Where("campaigns.user_id = ? AND follow_up_records.follow_up_sent_at IS NOT NULL", userID).
		Select("MAX(follow_up_records.follow_up_sent_at)").
		Scan(&latest).Error
	if err != nil {
		return nil, err
	}

	return latest, nil
}

// CountSentByUserSince counts follow-ups a user has sent since the given time
func (r *FollowUpRepositoryImpl) CountSentByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.FollowUpRecord{}).
		Joins("JOIN campaigns ON campaigns.id = follow_up_records.campaign_id").
		Where("campaigns.user_id = ? AND follow_up_records.follow_up_sent_at >= ?", userID, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}
