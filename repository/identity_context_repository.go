package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/linkdms/linkdms/models"
	"github.com/linkdms/linkdms/utils"
	"gorm.io/gorm"
)

// IdentityContextRepositoryImpl implements the IdentityContextRepository interface
type IdentityContextRepositoryImpl struct {
	db *gorm.DB
}

// NewIdentityContextRepository creates a new identity context repository
func NewIdentityContextRepository(db *gorm.DB) IdentityContextRepository {
	return &IdentityContextRepositoryImpl{db: db}
}

func (r *IdentityContextRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}

// ByUserID retrieves the identity context of a user
func (r *IdentityContextRepositoryImpl) ByUserID(ctx context.Context, userID uuid.UUID) (*models.IdentityContext, error) {
	db := r.getDB(ctx)

	var row models.IdentityContext
	err := db.Where("user_id = ?", userID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &row, nil
}

// Save inserts or replaces an identity context row
func (r *IdentityContextRepositoryImpl) Save(ctx context.Context, ctxRow *models.IdentityContext) error {
	db := r.getDB(ctx)
	return db.Save(ctxRow).Error
}

// SetReady flips the ready gate of a user's identity context
func (r *IdentityContextRepositoryImpl) SetReady(ctx context.Context, userID uuid.UUID, ready bool) error {
	db := r.getDB(ctx)
	return db.Model(&models.IdentityContext{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"context_ready": ready,
			"updated_at":    utils.UTCNow(),
		}).Error
}

// SetLatestSession records the most recent agent session bound to the context
func (r *IdentityContextRepositoryImpl) SetLatestSession(ctx context.Context, userID uuid.UUID, sessionID string) error {
	db := r.getDB(ctx)
	return db.Model(&models.IdentityContext{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"latest_session_id": sessionID,
			"updated_at":        utils.UTCNow(),
		}).Error
}
