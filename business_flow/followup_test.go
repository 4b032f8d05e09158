package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/linkdms/linkdms/models"
	"github.com/linkdms/linkdms/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type followUpFixture struct {
	campaigns  *fakeCampaignRepo
	identities *fakeIdentityRepo
	prospects  *fakeProspectRepo
	followUps  *fakeFollowUpRepo
	executions *fakeExecutionRepo
	throttle   *fakeThrottle
	agent      *fakeAgent
	campaign   *models.Campaign
	flow       FollowUpFlow
}

func followUpCampaign() *models.Campaign {
	return &models.Campaign{
		ID:         1,
		UUID:       uuid.New(),
		UserID:     uuid.New(),
		Status:     models.CampaignStatusActive,
		DailyLimit: 10,
		CTAMode:    models.CTAModeConnectFollowUp,
		Template:   utils.ToPtr("Hi {first_name}, thanks for connecting!"),
	}
}

func newFollowUpFixture(t *testing.T, campaign *models.Campaign, session *fakeSession, records ...*models.FollowUpRecord) *followUpFixture {
	t.Helper()

	fx := &followUpFixture{
		campaigns:  newFakeCampaignRepo(campaign),
		prospects:  newFakeProspectRepo(),
		followUps:  newFakeFollowUpRepo(records...),
		executions: &fakeExecutionRepo{},
		throttle:   &fakeThrottle{},
		campaign:   campaign,
	}
	fx.identities = newFakeIdentityRepo(&models.IdentityContext{
		UserID:       campaign.UserID,
		ContextID:    utils.ToPtr("ctx-1"),
		ContextReady: utils.ToPtr(true),
	})
	fx.agent = &fakeAgent{factory: func(n int) *fakeSession { return session }}
	fx.flow = NewFollowUpFlow(
		fx.campaigns, fx.identities, fx.prospects, fx.followUps, fx.executions,
		fx.throttle, fx.agent, nil,
		24*time.Hour, time.Millisecond, 2*time.Millisecond,
	)
	return fx
}

func acceptedRecord(campaignID uint, profileURL string, acceptedAgo time.Duration) *models.FollowUpRecord {
	accepted := utils.UTCNow().Add(-acceptedAgo)
	return &models.FollowUpRecord{
		CampaignID:           campaignID,
		ProspectProfileURL:   profileURL,
		ProspectFirstName:    utils.ToPtr("Sam"),
		FollowUpStatus:       models.FollowUpStatusPending,
		ConnectionSentAt:     accepted.Add(-24 * time.Hour),
		ConnectionAcceptedAt: &accepted,
	}
}

func TestProcessFollowUpsIgnoresNonFollowUpCampaigns(t *testing.T) {
	campaign := followUpCampaign()
	campaign.CTAMode = models.CTAModeConnectOnly
	fx := newFollowUpFixture(t, campaign, &fakeSession{id: "s"})

	summary, err := fx.flow.ProcessFollowUps(context.Background(), campaign.UUID.String(), nil)
	require.NoError(t, err)

	assert.True(t, summary.Success)
	assert.Zero(t, summary.FollowUpsSent)
	assert.Equal(t, 0, fx.agent.inits)
}

func TestProcessFollowUpsEligibilityGate(t *testing.T) {
	campaign := followUpCampaign()
	session := &fakeSession{id: "s", currentURL: "https://www.linkedin.com/in/eligible/"}
	fx := newFollowUpFixture(t, campaign, session,
		acceptedRecord(campaign.ID, "https://www.linkedin.com/in/eligible/", 25*time.Hour),
		acceptedRecord(campaign.ID, "https://www.linkedin.com/in/too-recent/", 23*time.Hour),
	)

	summary, err := fx.flow.ProcessFollowUps(context.Background(), campaign.UUID.String(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FollowUpsSent)
	assert.Equal(t, models.FollowUpStatusSent, fx.followUps.records[0].FollowUpStatus)
	assert.Equal(t, models.FollowUpStatusPending, fx.followUps.records[1].FollowUpStatus,
		"a connection accepted inside the delay window stays pending")
	assert.Equal(t, 1, fx.throttle.recorded)
	assert.Contains(t, session.navigated, "https://www.linkedin.com/in/eligible/")
}

func TestProcessFollowUpsDetectsAcceptances(t *testing.T) {
	campaign := followUpCampaign()

	pending := &models.FollowUpRecord{
		CampaignID:         campaign.ID,
		ProspectProfileURL: "https://www.linkedin.com/in/new-connection/",
		ProspectFirstName:  utils.ToPtr("Sam"),
		FollowUpStatus:     models.FollowUpStatusPending,
		ConnectionSentAt:   utils.UTCNow().Add(-48 * time.Hour),
	}

	session := &fakeSession{
		id:         "s",
		currentURL: "https://www.linkedin.com/mynetwork/invite-connect/connections/",
		extractFn: func(instruction string, out any) error {
			// URL shape differs from the stored one; matching is normalized
			listing := connectionsExtract{Connections: []connectionEntry{
				{Name: "Sam Example", ProfileURL: "http://linkedin.com/in/new-connection?src=hp"},
				{Name: "Unrelated", ProfileURL: "https://www.linkedin.com/in/someone-else/"},
			}}
			b, _ := json.Marshal(listing)
			return json.Unmarshal(b, out)
		},
	}
	fx := newFollowUpFixture(t, campaign, session, pending)

	prospect := &models.Prospect{
		ID:         uuid.New(),
		CampaignID: campaign.ID,
		ProfileURL: utils.ToPtr("https://www.linkedin.com/in/new-connection/"),
		Status:     models.ProspectStatusContacted,
	}
	require.NoError(t, fx.prospects.Save(context.Background(), prospect))

	summary, err := fx.flow.ProcessFollowUps(context.Background(), campaign.UUID.String(), nil)
	require.NoError(t, err)

	assert.NotNil(t, fx.followUps.records[0].ConnectionAcceptedAt, "acceptance stamped")
	assert.Equal(t, models.ProspectStatusAccepted, fx.prospects.statuses[prospect.ID])
	// freshly accepted connections are not yet past the delay
	assert.Zero(t, summary.FollowUpsSent)
}

func TestProcessFollowUpsFailedSendIsNotRetried(t *testing.T) {
	campaign := followUpCampaign()
	session := &fakeSession{
		id:         "s",
		currentURL: "https://www.linkedin.com/in/eligible/",
		actErr:     errors.New("message button not found"),
	}
	fx := newFollowUpFixture(t, campaign, session,
		acceptedRecord(campaign.ID, "https://www.linkedin.com/in/eligible/", 48*time.Hour),
	)

	summary, err := fx.flow.ProcessFollowUps(context.Background(), campaign.UUID.String(), nil)
	require.NoError(t, err)

	assert.Zero(t, summary.FollowUpsSent)
	assert.Equal(t, models.FollowUpStatusFailed, fx.followUps.records[0].FollowUpStatus)
	assert.Zero(t, fx.throttle.recorded)
	// both phrasings were attempted once, then the record was abandoned
	assert.Len(t, session.acts, len(messagePhrasings))
}

func TestProcessFollowUpsStopsAtThrottleLimit(t *testing.T) {
	campaign := followUpCampaign()
	session := &fakeSession{id: "s", currentURL: "https://www.linkedin.com/in/x/"}
	fx := newFollowUpFixture(t, campaign, session,
		acceptedRecord(campaign.ID, "https://www.linkedin.com/in/one/", 48*time.Hour),
		acceptedRecord(campaign.ID, "https://www.linkedin.com/in/two/", 48*time.Hour),
		acceptedRecord(campaign.ID, "https://www.linkedin.com/in/three/", 48*time.Hour),
	)
	fx.throttle.followUpErr = ErrFollowUpHourlyCapReached
	fx.throttle.followUpAfter = 1

	summary, err := fx.flow.ProcessFollowUps(context.Background(), campaign.UUID.String(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FollowUpsSent)
	assert.True(t, summary.LimitReached)
	assert.Equal(t, models.FollowUpStatusSent, fx.followUps.records[0].FollowUpStatus)
	assert.Equal(t, models.FollowUpStatusPending, fx.followUps.records[1].FollowUpStatus)
}

func TestProcessFollowUpsLoginWallAborts(t *testing.T) {
	campaign := followUpCampaign()
	session := &fakeSession{id: "s", currentURL: "https://www.linkedin.com/login"}
	fx := newFollowUpFixture(t, campaign, session,
		acceptedRecord(campaign.ID, "https://www.linkedin.com/in/eligible/", 48*time.Hour),
	)

	_, err := fx.flow.ProcessFollowUps(context.Background(), campaign.UUID.String(), nil)
	require.Error(t, err)
	assert.True(t, IsSessionLoggedOut(err))
	assert.Equal(t, []uint{1}, fx.executions.failed)
}

func TestNormalizeProfileURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.linkedin.com/in/sam/", "linkedin.com/in/sam"},
		{"http://linkedin.com/in/sam?src=hp", "linkedin.com/in/sam"},
		{"LINKEDIN.COM/in/Sam/", "linkedin.com/in/sam"},
		{"https://www.linkedin.com/in/sam#about", "linkedin.com/in/sam"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeProfileURL(tt.in))
	}
}
