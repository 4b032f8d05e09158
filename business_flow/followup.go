package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/linkdms/linkdms/app/services"
	"github.com/linkdms/linkdms/models"
	"github.com/linkdms/linkdms/repository"
	"github.com/linkdms/linkdms/utils"
)

const connectionsListURL = "https://www.linkedin.com/mynetwork/invite-connect/connections/"

const connectionsExtractInstruction = "Extract every connection visible in the connections list. " +
	"For each return name and profile_url as {\"connections\": [...]}."

// messagePhrasings are tried in order when opening the message composer on a
// prospect's profile
var messagePhrasings = []string{
	"Click the Message button on this profile, type %q into the composer, then click Send",
	"Open the messaging dialog for this person, write %q and send it",
}

type connectionEntry struct {
	Name       string `json:"name"`
	ProfileURL string `json:"profile_url"`
}

type connectionsExtract struct {
	Connections []connectionEntry `json:"connections"`
}

// FollowUpFlow processes the second-touch lifecycle of a campaign
type FollowUpFlow interface {
	ProcessFollowUps(ctx context.Context, campaignUUID string, metadata *ClientMetadata) (*RunSummary, error)
}

// FollowUpFlowImpl implements FollowUpFlow
type FollowUpFlowImpl struct {
	campaigns  repository.CampaignRepository
	identities repository.IdentityContextRepository
	prospects  repository.ProspectRepository
	followUps  repository.FollowUpRepository
	executions repository.ExecutionLogRepository
	throttle   SafetyThrottle
	agent      services.AgentClient
	textGen    services.TextGenService

	eligibilityDelay time.Duration
	pauseMin         time.Duration
	pauseMax         time.Duration
}

// NewFollowUpFlow creates a new follow-up flow
func NewFollowUpFlow(
	campaigns repository.CampaignRepository,
	identities repository.IdentityContextRepository,
	prospects repository.ProspectRepository,
	followUps repository.FollowUpRepository,
	executions repository.ExecutionLogRepository,
	throttle SafetyThrottle,
	agent services.AgentClient,
	textGen services.TextGenService,
	eligibilityDelay, pauseMin, pauseMax time.Duration,
) FollowUpFlow {
	if eligibilityDelay <= 0 {
		eligibilityDelay = utils.DefaultFollowUpDelay
	}
	if pauseMin <= 0 {
		pauseMin = 2 * time.Second
	}
	if pauseMax <= pauseMin {
		pauseMax = pauseMin + 4*time.Second
	}
	return &FollowUpFlowImpl{
		campaigns:        campaigns,
		identities:       identities,
		prospects:        prospects,
		followUps:        followUps,
		executions:       executions,
		throttle:         throttle,
		agent:            agent,
		textGen:          textGen,
		eligibilityDelay: eligibilityDelay,
		pauseMin:         pauseMin,
		pauseMax:         pauseMax,
	}
}

// ProcessFollowUps runs one follow-up pass for a campaign: detect newly
// accepted connections, then send messages to prospects whose acceptance
// passed the eligibility delay, re-checking the throttle before every message.
func (f *FollowUpFlowImpl) ProcessFollowUps(ctx context.Context, campaignUUID string, metadata *ClientMetadata) (*RunSummary, error) {
	campaign, err := f.campaigns.ByUUID(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "failed to load campaign", err)
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	if !campaign.WantsFollowUp() {
		return &RunSummary{
			Success:    true,
			CampaignID: campaign.UUID.String(),
			Message:    "campaign does not use follow-ups",
		}, nil
	}

	identity, err := f.identities.ByUserID(ctx, campaign.UserID)
	if err != nil {
		return nil, NewBusinessError("IDENTITY_LOOKUP_FAILED", "failed to load identity context", err)
	}
	if identity == nil {
		return nil, ErrIdentityContextNotFound
	}
	if !identity.IsReady() {
		return nil, ErrIdentityContextNotReady
	}

	execLog := &models.ExecutionLog{
		CampaignID:    campaign.ID,
		ExecutionType: models.ExecutionTypeFollowUp,
		Status:        models.ExecutionStatusRunning,
		StartedAt:     utils.UTCNow(),
	}
	if err := f.executions.Save(ctx, execLog); err != nil {
		return nil, NewBusinessError("EXECUTION_LOG_FAILED", "failed to record execution start", err)
	}

	sent := 0
	var runErr error
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if runErr != nil {
			if lerr := f.executions.MarkFailed(cleanupCtx, execLog.ID, runErr.Error(), sent); lerr != nil {
				log.Printf("campaign %s: failed to finalize follow-up log: %v", campaign.UUID, lerr)
			}
			return
		}
		if lerr := f.executions.MarkCompleted(cleanupCtx, execLog.ID, sent); lerr != nil {
			log.Printf("campaign %s: failed to finalize follow-up log: %v", campaign.UUID, lerr)
		}
	}()

	supervisor := NewCrashSupervisor(f.agent, *identity.ContextID, func(sessionID string) {
		if serr := f.identities.SetLatestSession(ctx, campaign.UserID, sessionID); serr != nil {
			log.Printf("campaign %s: failed to record session id: %v", campaign.UUID, serr)
		}
	})
	if err := supervisor.Start(ctx); err != nil {
		runErr = err
		return nil, NewBusinessError("AGENT_START_FAILED", "failed to start agent session", err)
	}
	defer supervisor.Close()

	if err := f.detectAcceptances(ctx, campaign, supervisor); err != nil {
		if errors.Is(err, ErrSessionLoggedOut) || IsRestartBudgetExhausted(err) {
			runErr = err
			return nil, err
		}
		// detection is best-effort; eligible records from earlier passes can
		// still be served
		log.Printf("campaign %s: acceptance detection failed: %v", campaign.UUID, err)
	}

	eligible, err := f.followUps.ListEligible(ctx, campaign.ID, utils.UTCNowAdd(-f.eligibilityDelay))
	if err != nil {
		runErr = err
		return nil, NewBusinessError("FOLLOWUP_LOOKUP_FAILED", "failed to list eligible follow-ups", err)
	}

	limitHit := false
	for _, record := range eligible {
		if ctx.Err() != nil {
			break
		}

		// limits are re-checked per message, not per batch
		if lerr := f.throttle.CheckFollowUpLimits(ctx, campaign.UserID); lerr != nil {
			if IsLimitReached(lerr) {
				limitHit = true
				break
			}
			runErr = lerr
			break
		}

		sendErr := f.sendFollowUp(ctx, campaign, supervisor, record)
		if sendErr != nil {
			if errors.Is(sendErr, context.DeadlineExceeded) || errors.Is(sendErr, context.Canceled) {
				break
			}
			if errors.Is(sendErr, ErrSessionLoggedOut) || IsRestartBudgetExhausted(sendErr) {
				runErr = sendErr
				break
			}
			if merr := f.followUps.MarkFailed(ctx, record.ID); merr != nil {
				log.Printf("campaign %s: failed to mark follow-up %d failed: %v", campaign.UUID, record.ID, merr)
			}
			continue
		}
		sent++

		if perr := f.pause(ctx); perr != nil {
			break
		}
	}

	if runErr != nil {
		return nil, runErr
	}

	return &RunSummary{
		Success:       true,
		CampaignID:    campaign.UUID.String(),
		FollowUpsSent: sent,
		LimitReached:  limitHit,
	}, nil
}

// detectAcceptances scans the connections listing and stamps acceptance times
// on pending records whose profile URL appears there. Best-effort: a missed
// acceptance is caught on a later pass.
func (f *FollowUpFlowImpl) detectAcceptances(ctx context.Context, campaign *models.Campaign, supervisor *CrashSupervisor) error {
	pending, err := f.followUps.ListPendingByCampaign(ctx, campaign.ID)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	var listing connectionsExtract
	for {
		session := supervisor.Session()
		err = session.Navigate(ctx, connectionsListURL)
		if err == nil {
			err = detectLoginWall(ctx, session, f.identities, campaign.UserID)
		}
		if err == nil {
			err = session.Extract(ctx, connectionsExtractInstruction, &listing)
		}
		if err == nil {
			break
		}
		if herr := supervisor.HandleFailure(ctx, err); herr != nil {
			return herr
		}
	}

	connected := make(map[string]bool, len(listing.Connections))
	for _, c := range listing.Connections {
		if c.ProfileURL != "" {
			connected[normalizeProfileURL(c.ProfileURL)] = true
		}
	}

	now := utils.UTCNow()
	for _, record := range pending {
		if !connected[normalizeProfileURL(record.ProspectProfileURL)] {
			continue
		}
		if merr := f.followUps.MarkAccepted(ctx, record.ID, now); merr != nil {
			log.Printf("campaign %s: failed to mark follow-up %d accepted: %v", campaign.UUID, record.ID, merr)
			continue
		}
		f.markProspectAccepted(ctx, campaign.ID, record.ProspectProfileURL)
	}

	return nil
}

func (f *FollowUpFlowImpl) markProspectAccepted(ctx context.Context, campaignID uint, profileURL string) {
	prospect, err := f.prospects.ByProfileURL(ctx, campaignID, profileURL)
	if err != nil || prospect == nil {
		return
	}
	if uerr := f.prospects.UpdateStatus(ctx, prospect.ID, models.ProspectStatusAccepted); uerr != nil {
		log.Printf("failed to update prospect %s status: %v", prospect.ID, uerr)
	}
}

// sendFollowUp drives the agent to deliver one message. The record moves to
// sent only after the agent confirms dispatch and the persistence write lands;
// a failed write after a confirmed send is logged but never re-sent.
func (f *FollowUpFlowImpl) sendFollowUp(ctx context.Context, campaign *models.Campaign, supervisor *CrashSupervisor, record *models.FollowUpRecord) error {
	firstName := ""
	if record.ProspectFirstName != nil {
		firstName = *record.ProspectFirstName
	}
	template := ""
	if campaign.Template != nil {
		template = *campaign.Template
	}
	message := PersonalizeMessage(ctx, f.textGen, template, firstName, "")
	if message == "" {
		message = fmt.Sprintf("Hi %s, thanks for connecting!", firstName)
	}

	for {
		session := supervisor.Session()
		err := session.Navigate(ctx, record.ProspectProfileURL)
		if err == nil {
			err = detectLoginWall(ctx, session, f.identities, campaign.UserID)
		}
		if err == nil {
			// the send itself is never retried after a crash: we cannot know
			// whether the message left, and a duplicate is worse than a
			// record stuck in pending
			if err = f.sendMessage(ctx, session, message); err != nil {
				if services.IsAgentCrash(err) {
					if herr := supervisor.HandleFailure(ctx, err); herr != nil && IsRestartBudgetExhausted(herr) {
						return herr
					}
				}
				return err
			}
			break
		}
		if herr := supervisor.HandleFailure(ctx, err); herr != nil {
			return herr
		}
	}

	now := utils.UTCNow()
	if err := f.followUps.MarkSent(ctx, record.ID, now, message); err != nil {
		log.Printf("campaign %s: follow-up delivered to %s but status write failed, NOT re-sending: %v",
			campaign.UUID, record.ProspectProfileURL, err)
	}
	if err := f.throttle.RecordFollowUp(ctx, campaign.UserID, now); err != nil {
		log.Printf("campaign %s: failed to record follow-up counters: %v", campaign.UUID, err)
	}
	followUpsSentTotal.Inc()

	return nil
}

func (f *FollowUpFlowImpl) sendMessage(ctx context.Context, session services.AgentSession, message string) error {
	var lastErr error
	for _, phrasing := range messagePhrasings {
		err := session.Act(ctx, fmt.Sprintf(phrasing, message))
		if err == nil {
			return nil
		}
		if services.IsAgentCrash(err) || ctx.Err() != nil {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("all message phrasings failed: %w", lastErr)
}

func (f *FollowUpFlowImpl) pause(ctx context.Context) error {
	span := f.pauseMax - f.pauseMin
	delay := f.pauseMin + time.Duration(rand.Int63n(int64(span)))
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// normalizeProfileURL canonicalizes profile URLs for matching: scheme and
// query dropped, trailing slash removed, lowercased host path
func normalizeProfileURL(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimRight(s, "/")
}
