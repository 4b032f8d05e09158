package businessflow

import (
	"testing"

	"github.com/linkdms/linkdms/models"
	"github.com/linkdms/linkdms/utils"
	"github.com/stretchr/testify/assert"
)

func TestLoadCursor(t *testing.T) {
	tests := []struct {
		name          string
		page          int
		variation     int
		wantPage      int
		wantVariation int
	}{
		{name: "stored position preserved", page: 7, variation: 13, wantPage: 7, wantVariation: 13},
		{name: "zero page normalized", page: 0, variation: 3, wantPage: 1, wantVariation: 3},
		{name: "page past maximum normalized", page: 16, variation: 3, wantPage: 1, wantVariation: 3},
		{name: "negative variation normalized", page: 4, variation: -1, wantPage: 4, wantVariation: 0},
		{name: "variation past maximum normalized", page: 4, variation: 20, wantPage: 4, wantVariation: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			campaign := &models.Campaign{SearchPage: tt.page, KeywordVariation: tt.variation}
			cursor := LoadCursor(campaign)
			assert.Equal(t, tt.wantPage, cursor.Page)
			assert.Equal(t, tt.wantVariation, cursor.Variation)
		})
	}
}

func TestSearchCursorAdvance(t *testing.T) {
	t.Run("moves to next page within bounds", func(t *testing.T) {
		next := SearchCursor{Page: 3, Variation: 5}.Advance()
		assert.Equal(t, SearchCursor{Page: 4, Variation: 5}, next)
	})

	t.Run("wraps page and rotates variation", func(t *testing.T) {
		next := SearchCursor{Page: utils.MaxSearchPages, Variation: 5}.Advance()
		assert.Equal(t, SearchCursor{Page: 1, Variation: 6}, next)
	})

	t.Run("variation wraps modulo the variation count", func(t *testing.T) {
		next := SearchCursor{Page: utils.MaxSearchPages, Variation: utils.MaxKeywordVariations - 1}.Advance()
		assert.Equal(t, SearchCursor{Page: 1, Variation: 0}, next)
	})

	t.Run("full cycle returns to the start", func(t *testing.T) {
		cursor := SearchCursor{Page: 1, Variation: 0}
		seen := make(map[SearchCursor]bool)
		steps := utils.MaxSearchPages * utils.MaxKeywordVariations
		for i := 0; i < steps; i++ {
			assert.False(t, seen[cursor], "cursor position revisited before a full cycle")
			seen[cursor] = true
			cursor = cursor.Advance()
		}
		assert.Equal(t, SearchCursor{Page: 1, Variation: 0}, cursor)
	})
}
