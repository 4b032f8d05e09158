package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUTCDateKey(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{
			name: "utc time keeps its date",
			in:   time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC),
			want: "2026-03-14",
		},
		{
			name: "zoned time converts to the utc date",
			in:   time.Date(2026, 3, 15, 1, 30, 0, 0, time.FixedZone("UTC+5", 5*3600)),
			want: "2026-03-14",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UTCDateKey(tt.in))
		})
	}
}

func TestUTCToday(t *testing.T) {
	today := UTCToday()
	assert.Equal(t, 0, today.Hour())
	assert.Equal(t, 0, today.Minute())
	assert.Equal(t, time.UTC, today.Location())
}

func TestUTCNowAdd(t *testing.T) {
	past := UTCNowAdd(-time.Hour)
	assert.True(t, past.Before(UTCNow()))
	assert.Equal(t, time.UTC, past.Location())
}

func TestSameUTCDay(t *testing.T) {
	tests := []struct {
		name string
		a    time.Time
		b    time.Time
		want bool
	}{
		{
			name: "same calendar day",
			a:    time.Date(2026, 3, 14, 0, 5, 0, 0, time.UTC),
			b:    time.Date(2026, 3, 14, 23, 55, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "adjacent days",
			a:    time.Date(2026, 3, 14, 23, 55, 0, 0, time.UTC),
			b:    time.Date(2026, 3, 15, 0, 5, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "zoned times compare on their utc dates",
			a:    time.Date(2026, 3, 15, 1, 30, 0, 0, time.FixedZone("UTC+5", 5*3600)),
			b:    time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameUTCDay(tt.a, tt.b))
		})
	}
}
