package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CampaignStatus represents the lifecycle status of an outreach campaign
type CampaignStatus string

const (
	CampaignStatusDraft  CampaignStatus = "draft"
	CampaignStatusActive CampaignStatus = "active"
	CampaignStatusPaused CampaignStatus = "paused"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusActive, CampaignStatusPaused:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// CTAMode represents the call-to-action mode of a campaign
type CTAMode string

const (
	CTAModeConnectOnly      CTAMode = "connect_only"
	CTAModeConnectWithNote  CTAMode = "connect_with_note"
	CTAModeConnectFollowUp  CTAMode = "connect_then_followup"
)

// String returns the string representation of the CTA mode
func (m CTAMode) String() string {
	return string(m)
}

// Valid checks if the CTA mode is valid
func (m CTAMode) Valid() bool {
	switch m {
	case CTAModeConnectOnly, CTAModeConnectWithNote, CTAModeConnectFollowUp:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CTAMode
func (m *CTAMode) Scan(value any) error {
	if value == nil {
		*m = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*m = CTAMode(v)
	case []byte:
		*m = CTAMode(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CTAMode", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CTAMode
func (m CTAMode) Value() (driver.Value, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid CTAMode: %s", m)
	}
	return string(m), nil
}

// Campaign represents an outreach campaign in the database.
// SearchPage and KeywordVariation together form the resumable search cursor;
// they mutate only at page boundaries so a crash always resumes cleanly.
type Campaign struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	UUID             uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	UserID           uuid.UUID         `gorm:"type:uuid;not null;index:idx_campaigns_user_id" json:"user_id"`
	Name             *string           `gorm:"type:text" json:"name,omitempty"`
	Status           CampaignStatus    `gorm:"type:campaign_status;not null;default:'draft';index:idx_campaigns_status" json:"status"`
	IsActive         *bool             `gorm:"default:true" json:"is_active,omitempty"`
	DailyLimit       int               `gorm:"not null;default:10" json:"daily_limit"`
	WeeklyLimit      *int              `json:"weekly_limit,omitempty"`
	DailySent        int               `gorm:"not null;default:0" json:"daily_sent"`
	TotalSent        int               `gorm:"not null;default:0" json:"total_sent"`
	Keywords         *string           `gorm:"type:text" json:"keywords,omitempty"`
	Template         *string           `gorm:"type:text" json:"template,omitempty"`
	CTAMode          CTAMode           `gorm:"type:cta_mode;not null;default:'connect_only'" json:"cta_mode"`
	Targeting        TargetingCriteria `gorm:"type:jsonb;not null;default:'{}'" json:"targeting_criteria"`
	SearchPage       int               `gorm:"not null;default:1" json:"search_page"`
	KeywordVariation int               `gorm:"not null;default:0" json:"keyword_variation"`
	LastRunDate      *time.Time        `json:"last_run_date,omitempty"`
	NextRunDate      *time.Time        `json:"next_run_date,omitempty"`
	CreatedAt        time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt        *time.Time        `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate() error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	if c.CTAMode == "" {
		c.CTAMode = CTAModeConnectOnly
	}
	if c.SearchPage == 0 {
		c.SearchPage = 1
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return nil
}

// IsRunnable checks if the campaign is eligible for an execution run
func (c *Campaign) IsRunnable() bool {
	return c.Status == CampaignStatusActive && (c.IsActive == nil || *c.IsActive)
}

// RemainingToday returns the per-campaign quota left for the current day
func (c *Campaign) RemainingToday() int {
	remaining := c.DailyLimit - c.DailySent
	if remaining < 0 {
		return 0
	}
	return remaining
}

// WantsFollowUp reports whether invites from this campaign create follow-up records
func (c *Campaign) WantsFollowUp() bool {
	return c.CTAMode == CTAModeConnectFollowUp
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID            *uint           `json:"id,omitempty"`
	UUID          *uuid.UUID      `json:"uuid,omitempty"`
	UserID        *uuid.UUID      `json:"user_id,omitempty"`
	Status        *CampaignStatus `json:"status,omitempty"`
	CTAMode       *CTAMode        `json:"cta_mode,omitempty"`
	IsActive      *bool           `json:"is_active,omitempty"`
	NextRunBefore *time.Time      `json:"next_run_before,omitempty"`
}
