package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// FollowUpStatus represents the status of a follow-up record.
// Transitions are forward-only: pending -> sent -> replied, or -> failed.
type FollowUpStatus string

const (
	FollowUpStatusPending FollowUpStatus = "pending"
	FollowUpStatusSent    FollowUpStatus = "sent"
	FollowUpStatusReplied FollowUpStatus = "replied"
	FollowUpStatusFailed  FollowUpStatus = "failed"
)

// String returns the string representation of the status
func (s FollowUpStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s FollowUpStatus) Valid() bool {
	switch s {
	case FollowUpStatusPending, FollowUpStatusSent, FollowUpStatusReplied, FollowUpStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for FollowUpStatus
func (s *FollowUpStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = FollowUpStatus(v)
	case []byte:
		*s = FollowUpStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into FollowUpStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for FollowUpStatus
func (s FollowUpStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid FollowUpStatus: %s", s)
	}
	return string(s), nil
}

// FollowUpRecord tracks the second-touch lifecycle of a contacted prospect.
// Keyed uniquely by (campaign, profile URL); never deleted by the engine.
type FollowUpRecord struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	CampaignID           uint           `gorm:"not null;uniqueIndex:uk_follow_ups_campaign_profile" json:"campaign_id"`
	ProspectProfileURL   string         `gorm:"type:text;not null;uniqueIndex:uk_follow_ups_campaign_profile" json:"prospect_profile_url"`
	ProspectFirstName    *string        `gorm:"type:text" json:"prospect_first_name,omitempty"`
	FollowUpStatus       FollowUpStatus `gorm:"type:follow_up_status;not null;default:'pending';index:idx_follow_ups_status" json:"follow_up_status"`
	ConnectionSentAt     time.Time      `gorm:"not null" json:"connection_sent_at"`
	ConnectionAcceptedAt *time.Time     `json:"connection_accepted_at,omitempty"`
	FollowUpSentAt       *time.Time     `json:"follow_up_sent_at,omitempty"`
	FollowUpMessage      *string        `gorm:"type:text" json:"follow_up_message,omitempty"`
	CreatedAt            time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt            *time.Time     `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (FollowUpRecord) TableName() string {
	return "follow_up_records"
}

// AcceptanceDetected reports whether the connection acceptance has been observed
func (f *FollowUpRecord) AcceptanceDetected() bool {
	return f.ConnectionAcceptedAt != nil
}

// EligibleAt returns the time from which a follow-up may be sent, given the
// configured delay. Eligibility is measured from acceptance, not the invite.
func (f *FollowUpRecord) EligibleAt(delay time.Duration) *time.Time {
	if f.ConnectionAcceptedAt == nil {
		return nil
	}
	t := f.ConnectionAcceptedAt.Add(delay)
	return &t
}

// CanTransitionTo checks if the record can transition to the given status
func (f *FollowUpRecord) CanTransitionTo(newStatus FollowUpStatus) bool {
	switch f.FollowUpStatus {
	case FollowUpStatusPending:
		return newStatus == FollowUpStatusSent || newStatus == FollowUpStatusFailed
	case FollowUpStatusSent:
		return newStatus == FollowUpStatusReplied
	default:
		return false
	}
}

// FollowUpRecordFilter represents filter criteria for follow-up records
type FollowUpRecordFilter struct {
	ID                 *uint           `json:"id,omitempty"`
	CampaignID         *uint           `json:"campaign_id,omitempty"`
	ProspectProfileURL *string         `json:"prospect_profile_url,omitempty"`
	FollowUpStatus     *FollowUpStatus `json:"follow_up_status,omitempty"`
	AcceptedBefore     *time.Time      `json:"accepted_before,omitempty"`
}
