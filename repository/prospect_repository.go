package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/linkdms/linkdms/models"
	"github.com/linkdms/linkdms/utils"
	"gorm.io/gorm"
)

// ProspectRepositoryImpl implements the ProspectRepository interface
type ProspectRepositoryImpl struct {
	*BaseRepository[models.Prospect, models.ProspectFilter]
}

// NewProspectRepository creates a new prospect repository
func NewProspectRepository(db *gorm.DB) ProspectRepository {
	return &ProspectRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Prospect, models.ProspectFilter](db),
	}
}

// ByProfileURL retrieves a prospect of a campaign by profile URL
func (r *ProspectRepositoryImpl) ByProfileURL(ctx context.Context, campaignID uint, profileURL string) (*models.Prospect, error) {
	db := r.getDB(ctx)

	var prospect models.Prospect
	err := db.Where("campaign_id = ? AND profile_url = ?", campaignID, profileURL).First(&prospect).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &prospect, nil
}

// ListByCampaign lists prospects of a campaign with pagination
func (r *ProspectRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.Prospect, error) {
	db := r.getDB(ctx)

	query := db.Where("campaign_id = ?", campaignID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var prospects []*models.Prospect
	if err := query.Find(&prospects).Error; err != nil {
		return nil, err
	}

	return prospects, nil
}

// UpdateStatus updates only the status of a prospect
func (r *ProspectRepositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ProspectStatus) error {
	db := r.getDB(ctx)
	return db.Model(&models.Prospect{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": utils.UTCNow(),
		}).Error
}
