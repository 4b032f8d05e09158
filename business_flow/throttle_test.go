package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/linkdms/linkdms/models"
	"github.com/linkdms/linkdms/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottleRemaining(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name       string
		dailyLimit int
		dailySent  int
		userUsed   int
		want       int
	}{
		{name: "campaign budget is the binding limit", dailyLimit: 15, dailySent: 10, userUsed: 0, want: 5},
		{name: "user ceiling is the binding limit", dailyLimit: 15, dailySent: 0, userUsed: 25, want: 5},
		{name: "campaign exhausted", dailyLimit: 10, dailySent: 10, userUsed: 0, want: 0},
		{name: "user ceiling exhausted", dailyLimit: 10, dailySent: 0, userUsed: 30, want: 0},
		{name: "over-spent user ceiling goes negative-free at reserve time", dailyLimit: 3, dailySent: 0, userUsed: 29, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			campaigns := newFakeCampaignRepo()
			campaigns.dailyByUser[userID] = tt.userUsed
			throttle := NewSafetyThrottle(campaigns, newFakeFollowUpRepo(), nil, DefaultThrottleSettings())

			campaign := &models.Campaign{
				UserID:     userID,
				DailyLimit: tt.dailyLimit,
				DailySent:  tt.dailySent,
			}
			got, err := throttle.Remaining(context.Background(), campaign)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestThrottleReserveConnectionDatabaseFallback(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name     string
		used     int
		expectOK bool
	}{
		{name: "below ceiling", used: utils.UserDailyConnectionCap - 1, expectOK: true},
		{name: "at ceiling", used: utils.UserDailyConnectionCap, expectOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			campaigns := newFakeCampaignRepo()
			campaigns.dailyByUser[userID] = tt.used
			throttle := NewSafetyThrottle(campaigns, newFakeFollowUpRepo(), nil, DefaultThrottleSettings())

			ok, err := throttle.ReserveConnection(context.Background(), userID)
			require.NoError(t, err)
			assert.Equal(t, tt.expectOK, ok)

			assert.NoError(t, throttle.ReleaseConnection(context.Background(), userID))
		})
	}
}

func TestThrottleCounterKeys(t *testing.T) {
	userID := uuid.MustParse("a2f1b3c4-d5e6-47a8-9b0c-1d2e3f4a5b6c")
	// the key date comes from the passed timestamp, not the wall clock
	at := time.Date(2026, 3, 15, 1, 30, 0, 0, time.FixedZone("UTC+5", 5*3600))

	assert.Equal(t, "outreach:user:a2f1b3c4-d5e6-47a8-9b0c-1d2e3f4a5b6c:daily:2026-03-14", userDailyKey(userID, at))
	assert.Equal(t, "outreach:user:a2f1b3c4-d5e6-47a8-9b0c-1d2e3f4a5b6c:fu:daily:2026-03-14", followUpDayKey(userID, at))
	assert.Equal(t, "outreach:user:a2f1b3c4-d5e6-47a8-9b0c-1d2e3f4a5b6c:fu:hour:2026-03-14T20", followUpHourKey(userID, at))
	assert.Equal(t, "outreach:user:a2f1b3c4-d5e6-47a8-9b0c-1d2e3f4a5b6c:fu:last", followUpLastKey(userID))
}

func TestThrottleCheckFollowUpLimits(t *testing.T) {
	userID := uuid.New()
	now := utils.UTCNow()

	t.Run("hourly cap reached", func(t *testing.T) {
		followUps := newFakeFollowUpRepo()
		for i := 0; i < utils.FollowUpHourlyCap; i++ {
			followUps.sentTimes = append(followUps.sentTimes, now.Add(-10*time.Minute))
		}
		throttle := NewSafetyThrottle(newFakeCampaignRepo(), followUps, nil, DefaultThrottleSettings())

		err := throttle.CheckFollowUpLimits(context.Background(), userID)
		assert.ErrorIs(t, err, ErrFollowUpHourlyCapReached)
		assert.True(t, IsLimitReached(err))
	})

	t.Run("daily cap reached", func(t *testing.T) {
		settings := ThrottleSettings{
			UserDailyCap:       utils.UserDailyConnectionCap,
			FollowUpHourlyCap:  100,
			FollowUpDailyCap:   5,
			FollowUpMinSpacing: time.Nanosecond,
		}
		followUps := newFakeFollowUpRepo()
		for i := 0; i < 5; i++ {
			followUps.sentTimes = append(followUps.sentTimes, now)
		}
		throttle := NewSafetyThrottle(newFakeCampaignRepo(), followUps, nil, settings)

		err := throttle.CheckFollowUpLimits(context.Background(), userID)
		assert.ErrorIs(t, err, ErrFollowUpDailyCapReached)
	})

	t.Run("minimum spacing enforced", func(t *testing.T) {
		followUps := newFakeFollowUpRepo()
		followUps.sentTimes = append(followUps.sentTimes, now.Add(-time.Minute))
		throttle := NewSafetyThrottle(newFakeCampaignRepo(), followUps, nil, DefaultThrottleSettings())

		err := throttle.CheckFollowUpLimits(context.Background(), userID)
		assert.ErrorIs(t, err, ErrFollowUpTooSoon)
	})

	t.Run("all limits clear", func(t *testing.T) {
		followUps := newFakeFollowUpRepo()
		followUps.sentTimes = append(followUps.sentTimes, now.Add(-30*time.Minute))
		throttle := NewSafetyThrottle(newFakeCampaignRepo(), followUps, nil, DefaultThrottleSettings())

		assert.NoError(t, throttle.CheckFollowUpLimits(context.Background(), userID))
	})
}
