package businessflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/linkdms/linkdms/models"
	"github.com/linkdms/linkdms/repository"
	"github.com/linkdms/linkdms/utils"
	"github.com/redis/go-redis/v9"
)

// ThrottleSettings holds the configurable caps of the safety throttle
type ThrottleSettings struct {
	UserDailyCap       int
	FollowUpHourlyCap  int
	FollowUpDailyCap   int
	FollowUpMinSpacing time.Duration
}

// DefaultThrottleSettings returns the stock limits
func DefaultThrottleSettings() ThrottleSettings {
	return ThrottleSettings{
		UserDailyCap:       utils.UserDailyConnectionCap,
		FollowUpHourlyCap:  utils.FollowUpHourlyCap,
		FollowUpDailyCap:   utils.FollowUpDailyCap,
		FollowUpMinSpacing: utils.DefaultFollowUpSpacing,
	}
}

// SafetyThrottle enforces the layered send limits. Remaining governs how many
// invites a run may attempt; ReserveConnection/ReleaseConnection keep the
// per-user aggregate exact under concurrent campaigns of the same user;
// CheckFollowUpLimits is re-evaluated before every individual follow-up.
type SafetyThrottle interface {
	Remaining(ctx context.Context, campaign *models.Campaign) (int, error)
	ReserveConnection(ctx context.Context, userID uuid.UUID) (bool, error)
	ReleaseConnection(ctx context.Context, userID uuid.UUID) error
	CheckFollowUpLimits(ctx context.Context, userID uuid.UUID) error
	RecordFollowUp(ctx context.Context, userID uuid.UUID, at time.Time) error
}

// SafetyThrottleImpl implements SafetyThrottle over redis counters with a
// database fallback when redis is not configured
type SafetyThrottleImpl struct {
	campaigns repository.CampaignRepository
	followUps repository.FollowUpRepository
	rdb       *redis.Client
	settings  ThrottleSettings
}

// NewSafetyThrottle creates a new safety throttle. rdb may be nil; counters
// then degrade to database aggregation, which is racy across concurrent
// campaigns of one user but never loses more than the in-flight batch.
func NewSafetyThrottle(campaigns repository.CampaignRepository, followUps repository.FollowUpRepository, rdb *redis.Client, settings ThrottleSettings) SafetyThrottle {
	if settings.UserDailyCap <= 0 {
		settings = DefaultThrottleSettings()
	}
	return &SafetyThrottleImpl{
		campaigns: campaigns,
		followUps: followUps,
		rdb:       rdb,
		settings:  settings,
	}
}

func userDailyKey(userID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("outreach:user:%s:daily:%s", userID, utils.UTCDateKey(day))
}

func followUpHourKey(userID uuid.UUID, t time.Time) string {
	return fmt.Sprintf("outreach:user:%s:fu:hour:%s", userID, t.UTC().Format("2006-01-02T15"))
}

func followUpDayKey(userID uuid.UUID, t time.Time) string {
	return fmt.Sprintf("outreach:user:%s:fu:daily:%s", userID, utils.UTCDateKey(t))
}

func followUpLastKey(userID uuid.UUID) string {
	return fmt.Sprintf("outreach:user:%s:fu:last", userID)
}

// Remaining computes the invite quota for one run: the minimum of the
// campaign's own remaining budget and what is left of the user's global
// daily ceiling.
func (t *SafetyThrottleImpl) Remaining(ctx context.Context, campaign *models.Campaign) (int, error) {
	perCampaign := campaign.RemainingToday()

	used, err := t.userDailyUsed(ctx, campaign.UserID)
	if err != nil {
		return 0, err
	}
	perUser := t.settings.UserDailyCap - used

	return min(perCampaign, perUser), nil
}

func (t *SafetyThrottleImpl) userDailyUsed(ctx context.Context, userID uuid.UUID) (int, error) {
	if t.rdb != nil {
		val, err := t.rdb.Get(ctx, userDailyKey(userID, utils.UTCNow())).Int()
		if err == nil {
			return val, nil
		}
		if err != redis.Nil {
			log.Printf("throttle: redis read failed, falling back to database: %v", err)
		} else {
			return 0, nil
		}
	}
	return t.campaigns.SumDailySentByUser(ctx, userID)
}

// ReserveConnection atomically claims one slot of the user's daily ceiling.
// Returns false when the ceiling is already spent. The claim is rolled back
// with ReleaseConnection if the send never happens.
func (t *SafetyThrottleImpl) ReserveConnection(ctx context.Context, userID uuid.UUID) (bool, error) {
	if t.rdb == nil {
		used, err := t.campaigns.SumDailySentByUser(ctx, userID)
		if err != nil {
			return false, err
		}
		return used < t.settings.UserDailyCap, nil
	}

	key := userDailyKey(userID, utils.UTCNow())
	val, err := t.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if val == 1 {
		t.rdb.Expire(ctx, key, 48*time.Hour)
	}
	if int(val) > t.settings.UserDailyCap {
		t.rdb.Decr(ctx, key)
		return false, nil
	}
	return true, nil
}

// ReleaseConnection returns a previously reserved slot
func (t *SafetyThrottleImpl) ReleaseConnection(ctx context.Context, userID uuid.UUID) error {
	if t.rdb == nil {
		return nil
	}
	return t.rdb.Decr(ctx, userDailyKey(userID, utils.UTCNow())).Err()
}

// CheckFollowUpLimits validates the hourly cap, the daily cap and the minimum
// spacing since the most recent follow-up. Called before each message, never
// once per batch, so a long batch crossing an hour boundary re-qualifies.
func (t *SafetyThrottleImpl) CheckFollowUpLimits(ctx context.Context, userID uuid.UUID) error {
	now := utils.UTCNow()

	hourly, daily, last, err := t.followUpUsage(ctx, userID, now)
	if err != nil {
		return err
	}

	if hourly >= t.settings.FollowUpHourlyCap {
		return ErrFollowUpHourlyCapReached
	}
	if daily >= t.settings.FollowUpDailyCap {
		return ErrFollowUpDailyCapReached
	}
	if last != nil && now.Sub(*last) < t.settings.FollowUpMinSpacing {
		return ErrFollowUpTooSoon
	}

	return nil
}

func (t *SafetyThrottleImpl) followUpUsage(ctx context.Context, userID uuid.UUID, now time.Time) (hourly, daily int, last *time.Time, err error) {
	if t.rdb != nil {
		var redisErr error
		hourly, redisErr = t.redisCount(ctx, followUpHourKey(userID, now))
		if redisErr == nil {
			daily, redisErr = t.redisCount(ctx, followUpDayKey(userID, now))
		}
		if redisErr == nil {
			var ts string
			ts, redisErr = t.rdb.Get(ctx, followUpLastKey(userID)).Result()
			if redisErr == redis.Nil {
				return hourly, daily, nil, nil
			}
			if redisErr == nil {
				parsed, parseErr := time.Parse(time.RFC3339Nano, ts)
				if parseErr == nil {
					return hourly, daily, &parsed, nil
				}
			}
		}
		log.Printf("throttle: redis follow-up counters unavailable, falling back to database: %v", redisErr)
	}

	hourCount, err := t.followUps.CountSentByUserSince(ctx, userID, now.Add(-time.Hour))
	if err != nil {
		return 0, 0, nil, err
	}
	dayCount, err := t.followUps.CountSentByUserSince(ctx, userID, utils.UTCToday())
	if err != nil {
		return 0, 0, nil, err
	}
	last, err = t.followUps.LatestSentByUser(ctx, userID)
	if err != nil {
		return 0, 0, nil, err
	}

	return int(hourCount), int(dayCount), last, nil
}

func (t *SafetyThrottleImpl) redisCount(ctx context.Context, key string) (int, error) {
	val, err := t.rdb.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

// RecordFollowUp bumps the follow-up counters after a confirmed send
func (t *SafetyThrottleImpl) RecordFollowUp(ctx context.Context, userID uuid.UUID, at time.Time) error {
	if t.rdb == nil {
		return nil
	}

	hourKey := followUpHourKey(userID, at)
	if val, err := t.rdb.Incr(ctx, hourKey).Result(); err != nil {
		return err
	} else if val == 1 {
		t.rdb.Expire(ctx, hourKey, 2*time.Hour)
	}

	dayKey := followUpDayKey(userID, at)
	if val, err := t.rdb.Incr(ctx, dayKey).Result(); err != nil {
		return err
	} else if val == 1 {
		t.rdb.Expire(ctx, dayKey, 48*time.Hour)
	}

	return t.rdb.Set(ctx, followUpLastKey(userID), at.UTC().Format(time.RFC3339Nano), 48*time.Hour).Err()
}
