package utils

import (
	"time"
)

// Search cursor bounds
const (
	// MaxSearchPages is the deepest search result page visited before the
	// cursor wraps to the next keyword variation
	MaxSearchPages = 15

	// MaxKeywordVariations is the size of the keyword variation space
	MaxKeywordVariations = 20
)

// Safety throttle caps
const (
	// UserDailyConnectionCap is the hard per-user ceiling across all campaigns
	UserDailyConnectionCap = 30

	// FollowUpHourlyCap is the maximum follow-up messages per user per hour
	FollowUpHourlyCap = 5

	// FollowUpDailyCap is the maximum follow-up messages per user per day
	FollowUpDailyCap = 20

	// DefaultFollowUpSpacing is the minimum gap between two follow-up sends
	DefaultFollowUpSpacing = 5 * time.Minute

	// DefaultFollowUpDelay is how long after acceptance a follow-up becomes eligible
	DefaultFollowUpDelay = 24 * time.Hour
)

// Agent session supervision
const (
	// MaxSessionRestarts bounds browser session restarts within a single run
	MaxSessionRestarts = 5

	// SessionRestartCoolDown is the wait before re-creating a crashed session
	SessionRestartCoolDown = 10 * time.Second

	// SessionCloseTimeout bounds the graceful close of a crashed session
	SessionCloseTimeout = 5 * time.Second
)

// Batch scheduling
const (
	// MaxBatchSize is the largest invite batch dispatched in one session
	MaxBatchSize = 7

	// MinBatchSize is the smallest invite batch worth scheduling separately
	MinBatchSize = 3

	// MinBatchGapMinutes and MaxBatchGapMinutes bound the random delay between scheduled batches
	MinBatchGapMinutes = 120
	MaxBatchGapMinutes = 240
)
