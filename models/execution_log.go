package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// ExecutionStatus represents the status of a campaign execution attempt
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// String returns the string representation of the status
func (s ExecutionStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecutionStatusRunning, ExecutionStatusCompleted, ExecutionStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ExecutionStatus
func (s *ExecutionStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ExecutionStatus(v)
	case []byte:
		*s = ExecutionStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ExecutionStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ExecutionStatus
func (s ExecutionStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ExecutionStatus: %s", s)
	}
	return string(s), nil
}

// ExecutionType distinguishes how a run was triggered
type ExecutionType string

const (
	ExecutionTypeManual    ExecutionType = "manual"
	ExecutionTypeScheduled ExecutionType = "scheduled"
	ExecutionTypeBatch     ExecutionType = "batch"
	ExecutionTypeFollowUp  ExecutionType = "followup"
)

// Valid checks if the execution type is valid
func (t ExecutionType) Valid() bool {
	switch t {
	case ExecutionTypeManual, ExecutionTypeScheduled, ExecutionTypeBatch, ExecutionTypeFollowUp:
		return true
	default:
		return false
	}
}

// ExecutionLog records one run attempt of a campaign
type ExecutionLog struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	CampaignID      uint            `gorm:"not null;index:idx_executions_campaign_id" json:"campaign_id"`
	ExecutionType   ExecutionType   `gorm:"type:text;not null;default:'manual'" json:"execution_type"`
	BatchNumber     *int            `json:"batch_number,omitempty"`
	TotalBatches    *int            `json:"total_batches,omitempty"`
	Status          ExecutionStatus `gorm:"type:execution_status;not null;default:'running'" json:"status"`
	ConnectionsMade int             `gorm:"not null;default:0" json:"connections_made"`
	ErrorMessage    *string         `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt       time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// TableName returns the table name for the model
func (ExecutionLog) TableName() string {
	return "campaign_executions"
}

// ExecutionLogFilter represents filter criteria for execution logs
type ExecutionLogFilter struct {
	ID         *uint            `json:"id,omitempty"`
	CampaignID *uint            `json:"campaign_id,omitempty"`
	Status     *ExecutionStatus `json:"status,omitempty"`
}
