// Package businessflow contains the core business logic for outreach campaign execution
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Campaign-related errors
	ErrCampaignNotFound    = errors.New("campaign not found")
	ErrCampaignNotRunnable = errors.New("campaign is not active")
	ErrCampaignIDRequired  = errors.New("campaign ID is required")
	ErrNoKeywords          = errors.New("campaign has no usable keywords")

	// Identity context errors
	ErrIdentityContextNotFound = errors.New("identity context not found")
	ErrIdentityContextNotReady = errors.New("identity context is not ready")
	ErrSessionLoggedOut        = errors.New("platform session is logged out")

	// Throttle rejections (expected outcomes, not failures)
	ErrDailyLimitReached        = errors.New("campaign daily limit reached")
	ErrUserLimitReached         = errors.New("user daily connection limit reached")
	ErrFollowUpHourlyCapReached = errors.New("follow-up hourly cap reached")
	ErrFollowUpDailyCapReached  = errors.New("follow-up daily cap reached")
	ErrFollowUpTooSoon          = errors.New("minimum spacing since last follow-up not elapsed")

	// Supervisor errors
	ErrRestartBudgetExhausted = errors.New("session restart budget exhausted")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignNotRunnable(err error) bool {
	return errors.Is(err, ErrCampaignNotRunnable)
}

func IsNoKeywords(err error) bool {
	return errors.Is(err, ErrNoKeywords)
}

func IsIdentityContextNotReady(err error) bool {
	return errors.Is(err, ErrIdentityContextNotReady) || errors.Is(err, ErrIdentityContextNotFound)
}

func IsSessionLoggedOut(err error) bool {
	return errors.Is(err, ErrSessionLoggedOut)
}

// IsLimitReached reports whether the error is any throttle rejection
func IsLimitReached(err error) bool {
	return errors.Is(err, ErrDailyLimitReached) ||
		errors.Is(err, ErrUserLimitReached) ||
		errors.Is(err, ErrFollowUpHourlyCapReached) ||
		errors.Is(err, ErrFollowUpDailyCapReached) ||
		errors.Is(err, ErrFollowUpTooSoon)
}

func IsRestartBudgetExhausted(err error) bool {
	return errors.Is(err, ErrRestartBudgetExhausted)
}
