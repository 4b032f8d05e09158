package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// BatchScheduleStatus represents the dispatch state of a scheduled batch
type BatchScheduleStatus string

const (
	BatchScheduleStatusScheduled  BatchScheduleStatus = "scheduled"
	BatchScheduleStatusDispatched BatchScheduleStatus = "dispatched"
	BatchScheduleStatusDone       BatchScheduleStatus = "done"
	BatchScheduleStatusFailed     BatchScheduleStatus = "failed"
)

// Valid checks if the status is valid
func (s BatchScheduleStatus) Valid() bool {
	switch s {
	case BatchScheduleStatusScheduled, BatchScheduleStatusDispatched,
		BatchScheduleStatusDone, BatchScheduleStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for BatchScheduleStatus
func (s *BatchScheduleStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = BatchScheduleStatus(v)
	case []byte:
		*s = BatchScheduleStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into BatchScheduleStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for BatchScheduleStatus
func (s BatchScheduleStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid BatchScheduleStatus: %s", s)
	}
	return string(s), nil
}

// BatchSchedule is a persisted continuation for a deferred invite batch.
// Inter-batch gaps span hours, so they survive as rows rather than sleeps.
type BatchSchedule struct {
	ID           uint                `gorm:"primaryKey" json:"id"`
	CampaignID   uint                `gorm:"not null;index:idx_batch_schedules_campaign_id" json:"campaign_id"`
	BatchNumber  int                 `gorm:"not null" json:"batch_number"`
	TotalBatches int                 `gorm:"not null" json:"total_batches"`
	Size         int                 `gorm:"not null" json:"size"`
	RunAt        time.Time           `gorm:"not null;index:idx_batch_schedules_run_at" json:"run_at"`
	Status       BatchScheduleStatus `gorm:"type:text;not null;default:'scheduled'" json:"status"`
	CreatedAt    time.Time           `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt    *time.Time          `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (BatchSchedule) TableName() string {
	return "batch_schedules"
}

// BatchScheduleFilter represents filter criteria for batch schedules
type BatchScheduleFilter struct {
	ID         *uint                `json:"id,omitempty"`
	CampaignID *uint                `json:"campaign_id,omitempty"`
	Status     *BatchScheduleStatus `json:"status,omitempty"`
	DueBefore  *time.Time           `json:"due_before,omitempty"`
}
