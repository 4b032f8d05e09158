package businessflow

import (
	"context"

	"github.com/linkdms/linkdms/models"
	"github.com/linkdms/linkdms/repository"
	"github.com/linkdms/linkdms/utils"
)

// SearchCursor marks resumable progress through a campaign's search space.
// Page is 1-based and bounded by MaxSearchPages; Variation wraps modulo
// MaxKeywordVariations. The cursor only ever moves forward.
type SearchCursor struct {
	Page      int
	Variation int
}

// LoadCursor reads the cursor stored on a campaign, normalizing out-of-range
// values to the (1, 0) starting position
func LoadCursor(campaign *models.Campaign) SearchCursor {
	c := SearchCursor{Page: campaign.SearchPage, Variation: campaign.KeywordVariation}
	if c.Page < 1 || c.Page > utils.MaxSearchPages {
		c.Page = 1
	}
	if c.Variation < 0 || c.Variation >= utils.MaxKeywordVariations {
		c.Variation = 0
	}
	return c
}

// Advance moves the cursor past the page that just completed. When the page
// counter exceeds MaxSearchPages it resets to 1 and the variation rotates.
func (c SearchCursor) Advance() SearchCursor {
	next := SearchCursor{Page: c.Page + 1, Variation: c.Variation}
	if next.Page > utils.MaxSearchPages {
		next.Page = 1
		next.Variation = (next.Variation + 1) % utils.MaxKeywordVariations
	}
	return next
}

// CursorStore persists cursor positions
type CursorStore interface {
	Persist(ctx context.Context, campaignID uint, cursor SearchCursor) error
}

// repoCursorStore writes cursors through the campaign repository
type repoCursorStore struct {
	campaigns repository.CampaignRepository
}

// NewCursorStore creates a cursor store backed by the campaign repository
func NewCursorStore(campaigns repository.CampaignRepository) CursorStore {
	return &repoCursorStore{campaigns: campaigns}
}

func (s *repoCursorStore) Persist(ctx context.Context, campaignID uint, cursor SearchCursor) error {
	return s.campaigns.UpdateCursor(ctx, campaignID, cursor.Page, cursor.Variation)
}
