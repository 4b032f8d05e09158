package models

import (
	"time"

	"github.com/google/uuid"
)

// Invite records one successful connect action against a prospect
type Invite struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CampaignID uint      `gorm:"not null;index:idx_invites_campaign_id" json:"campaign_id"`
	ProspectID uuid.UUID `gorm:"type:uuid;not null;index:idx_invites_prospect_id" json:"prospect_id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`
	Note       *string   `gorm:"type:text" json:"note,omitempty"`
	SentAt     time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"sent_at"`

	// Relations
	Prospect *Prospect `gorm:"foreignKey:ProspectID;references:ID" json:"prospect,omitempty"`
}

// TableName returns the table name for the model
func (Invite) TableName() string {
	return "invites"
}

// BeforeCreate is called before creating a new record
func (i *Invite) BeforeCreate() error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.SentAt.IsZero() {
		i.SentAt = time.Now().UTC()
	}
	return nil
}

// InviteFilter represents filter criteria for invites
type InviteFilter struct {
	ID         *uuid.UUID `json:"id,omitempty"`
	CampaignID *uint      `json:"campaign_id,omitempty"`
	ProspectID *uuid.UUID `json:"prospect_id,omitempty"`
	UserID     *uuid.UUID `json:"user_id,omitempty"`
	SentAfter  *time.Time `json:"sent_after,omitempty"`
	SentBefore *time.Time `json:"sent_before,omitempty"`
}
