package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/linkdms/linkdms/models"
	"gorm.io/gorm"
)

// InviteRepositoryImpl implements the InviteRepository interface
type InviteRepositoryImpl struct {
	*BaseRepository[models.Invite, models.InviteFilter]
}

// NewInviteRepository creates a new invite repository
func NewInviteRepository(db *gorm.DB) InviteRepository {
	return &InviteRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Invite, models.InviteFilter](db),
	}
}

// CountByUserSince counts invites a user has sent since the given time
func (r *InviteRepositoryImpl) CountByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.Invite{}).
		Where("user_id = ? AND sent_at >= ?", userID, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}
