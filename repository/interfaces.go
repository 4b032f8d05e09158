// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/linkdms/linkdms/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
}

// CampaignRepository defines operations for outreach campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Campaign, error)
	ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error)
	Update(ctx context.Context, campaign models.Campaign) error
	UpdateCursor(ctx context.Context, id uint, page, variation int) error
	IncrementSent(ctx context.Context, id uint, n int) error
	SumDailySentByUser(ctx context.Context, userID uuid.UUID) (int, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.Campaign, error)
	ResetDailyCounters(ctx context.Context, before time.Time) (int64, error)
	UpdateRunDates(ctx context.Context, id uint, lastRun time.Time, nextRun *time.Time) error
}

// IdentityContextRepository defines operations for persisted browser identities
type IdentityContextRepository interface {
	ByUserID(ctx context.Context, userID uuid.UUID) (*models.IdentityContext, error)
	Save(ctx context.Context, ctxRow *models.IdentityContext) error
	SetReady(ctx context.Context, userID uuid.UUID, ready bool) error
	SetLatestSession(ctx context.Context, userID uuid.UUID, sessionID string) error
}

// ProspectRepository defines operations for prospects
type ProspectRepository interface {
	Save(ctx context.Context, prospect *models.Prospect) error
	ByProfileURL(ctx context.Context, campaignID uint, profileURL string) (*models.Prospect, error)
	ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.Prospect, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ProspectStatus) error
}

// InviteRepository defines operations for invites
type InviteRepository interface {
	Save(ctx context.Context, invite *models.Invite) error
	CountByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
}

// FollowUpRepository defines operations for follow-up lifecycle records
type FollowUpRepository interface {
	Upsert(ctx context.Context, record *models.FollowUpRecord) error
	ByCampaignAndProfile(ctx context.Context, campaignID uint, profileURL string) (*models.FollowUpRecord, error)
	ListPendingByCampaign(ctx context.Context, campaignID uint) ([]*models.FollowUpRecord, error)
	ListEligible(ctx context.Context, campaignID uint, acceptedBefore time.Time) ([]*models.FollowUpRecord, error)
	MarkAccepted(ctx context.Context, id uint, at time.Time) error
	MarkSent(ctx context.Context, id uint, at time.Time, message string) error
	MarkFailed(ctx context.Context, id uint) error
	LatestSentByUser(ctx context.Context, userID uuid.UUID) (*time.Time, error)
	CountSentByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
}

// ExecutionLogRepository defines operations for campaign execution logs
type ExecutionLogRepository interface {
	Repository[models.ExecutionLog, models.ExecutionLogFilter]
	MarkCompleted(ctx context.Context, id uint, connections int) error
	MarkFailed(ctx context.Context, id uint, errMsg string, connections int) error
	ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.ExecutionLog, error)
}

// BatchScheduleRepository defines operations for deferred invite batches
type BatchScheduleRepository interface {
	Repository[models.BatchSchedule, models.BatchScheduleFilter]
	ListDue(ctx context.Context, now time.Time) ([]*models.BatchSchedule, error)
	UpdateStatus(ctx context.Context, id uint, status models.BatchScheduleStatus) error
}
