package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProspectStatus represents the status of a prospect
type ProspectStatus string

const (
	ProspectStatusContacted ProspectStatus = "contacted"
	ProspectStatusAccepted  ProspectStatus = "accepted"
	ProspectStatusReplied   ProspectStatus = "replied"
)

// String returns the string representation of the status
func (s ProspectStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s ProspectStatus) Valid() bool {
	switch s {
	case ProspectStatusContacted, ProspectStatusAccepted, ProspectStatusReplied:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ProspectStatus
func (s *ProspectStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ProspectStatus(v)
	case []byte:
		*s = ProspectStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ProspectStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ProspectStatus
func (s ProspectStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ProspectStatus: %s", s)
	}
	return string(s), nil
}

// Prospect represents a candidate profile a campaign has contacted.
// ProfileURL is nullable: the fast connect path never opens the profile.
type Prospect struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CampaignID uint           `gorm:"not null;index:idx_prospects_campaign_id" json:"campaign_id"`
	ProfileURL *string        `gorm:"type:text" json:"profile_url,omitempty"`
	FirstName  *string        `gorm:"type:text" json:"first_name,omitempty"`
	Headline   *string        `gorm:"type:text" json:"headline,omitempty"`
	Status     ProspectStatus `gorm:"type:prospect_status;not null;default:'contacted'" json:"status"`
	CreatedAt  time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt  *time.Time     `json:"updated_at,omitempty"`

	// Relations
	Campaign *Campaign `gorm:"foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`
}

// TableName returns the table name for the model
func (Prospect) TableName() string {
	return "prospects"
}

// BeforeCreate is called before creating a new record
func (p *Prospect) BeforeCreate() error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = ProspectStatusContacted
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return nil
}

// ProspectFilter represents filter criteria for prospects
type ProspectFilter struct {
	ID         *uuid.UUID      `json:"id,omitempty"`
	CampaignID *uint           `json:"campaign_id,omitempty"`
	ProfileURL *string         `json:"profile_url,omitempty"`
	Status     *ProspectStatus `json:"status,omitempty"`
}
