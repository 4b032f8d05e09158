package dto

// RunCampaignRequest triggers one campaign run
type RunCampaignRequest struct {
	CampaignID    string `json:"campaignId" validate:"required,uuid4"`
	ExecutionType string `json:"executionType,omitempty" validate:"omitempty,oneof=manual scheduled batch"`
	MaxInvites    int    `json:"maxInvites,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// RunCampaignResponse is the run summary returned to the caller
type RunCampaignResponse struct {
	Success      bool   `json:"success"`
	CampaignID   string `json:"campaignId"`
	InvitesSent  int    `json:"invitesSent"`
	LimitReached bool   `json:"limitReached,omitempty"`
	Message      string `json:"message,omitempty"`
}

// ProcessFollowUpsRequest triggers a follow-up pass for a campaign
type ProcessFollowUpsRequest struct {
	CampaignID string `json:"campaignId" validate:"required,uuid4"`
}

// ProcessFollowUpsResponse is the follow-up pass summary
type ProcessFollowUpsResponse struct {
	Success       bool   `json:"success"`
	CampaignID    string `json:"campaignId"`
	FollowUpsSent int    `json:"followUpsSent"`
	LimitReached  bool   `json:"limitReached,omitempty"`
	Message       string `json:"message,omitempty"`
}

// HealthResponse reports service liveness
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
