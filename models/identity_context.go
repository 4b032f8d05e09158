package models

import (
	"time"

	"github.com/google/uuid"
)

// IdentityContext references a persisted browser identity (cookies/session)
// owned by the automation agent provider. A run refuses to start unless the
// context is marked ready.
type IdentityContext struct {
	UserID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"user_id"`
	ContextID       *string    `gorm:"type:text" json:"context_id,omitempty"`
	ContextReady    *bool      `gorm:"default:false" json:"context_ready,omitempty"`
	LatestSessionID *string    `gorm:"type:text" json:"latest_session_id,omitempty"`
	CreatedAt       time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (IdentityContext) TableName() string {
	return "user_browser_contexts"
}

// IsReady reports whether the context can back an agent session
func (c *IdentityContext) IsReady() bool {
	return c.ContextID != nil && *c.ContextID != "" && c.ContextReady != nil && *c.ContextReady
}

// IdentityContextFilter represents filter criteria for identity contexts
type IdentityContextFilter struct {
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	ContextReady *bool      `json:"context_ready,omitempty"`
}
