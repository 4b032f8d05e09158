// Package businessflow contains the business logic for the application.
package businessflow

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds caller information for audit logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// RunSummary is the result of one campaign run or follow-up pass
type RunSummary struct {
	Success       bool   `json:"success"`
	CampaignID    string `json:"campaignId"`
	InvitesSent   int    `json:"invitesSent"`
	FollowUpsSent int    `json:"followUpsSent"`
	LimitReached  bool   `json:"limitReached,omitempty"`
	Message       string `json:"message,omitempty"`
}
