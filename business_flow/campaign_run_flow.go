package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/linkdms/linkdms/app/services"
	"github.com/linkdms/linkdms/models"
	"github.com/linkdms/linkdms/repository"
	"github.com/linkdms/linkdms/utils"
)

// RunOptions tunes a single campaign run
type RunOptions struct {
	ExecutionType models.ExecutionType
	BatchNumber   *int
	TotalBatches  *int
	// MaxInvites caps the run below the throttle quota when > 0,
	// used by the batch scheduler
	MaxInvites int
}

// CampaignRunFlow executes outreach campaign runs
type CampaignRunFlow interface {
	RunCampaign(ctx context.Context, campaignUUID string, opts RunOptions, metadata *ClientMetadata) (*RunSummary, error)
}

// CampaignRunFlowImpl implements CampaignRunFlow
type CampaignRunFlowImpl struct {
	campaigns  repository.CampaignRepository
	identities repository.IdentityContextRepository
	prospects  repository.ProspectRepository
	invites    repository.InviteRepository
	followUps  repository.FollowUpRepository
	executions repository.ExecutionLogRepository
	cursors    CursorStore
	throttle   SafetyThrottle
	agent      services.AgentClient
	textGen    services.TextGenService

	pauseMin time.Duration
	pauseMax time.Duration
}

// NewCampaignRunFlow creates a new campaign run flow
func NewCampaignRunFlow(
	campaigns repository.CampaignRepository,
	identities repository.IdentityContextRepository,
	prospects repository.ProspectRepository,
	invites repository.InviteRepository,
	followUps repository.FollowUpRepository,
	executions repository.ExecutionLogRepository,
	throttle SafetyThrottle,
	agent services.AgentClient,
	textGen services.TextGenService,
	pauseMin, pauseMax time.Duration,
) CampaignRunFlow {
	if pauseMin <= 0 {
		pauseMin = 2 * time.Second
	}
	if pauseMax <= pauseMin {
		pauseMax = pauseMin + 4*time.Second
	}
	return &CampaignRunFlowImpl{
		campaigns:  campaigns,
		identities: identities,
		prospects:  prospects,
		invites:    invites,
		followUps:  followUps,
		executions: executions,
		cursors:    NewCursorStore(campaigns),
		throttle:   throttle,
		agent:      agent,
		textGen:    textGen,
		pauseMin:   pauseMin,
		pauseMax:   pauseMax,
	}
}

// searchCandidate is the shape the agent extracts per search result
type searchCandidate struct {
	Name       string `json:"name"`
	FirstName  string `json:"first_name"`
	Headline   string `json:"headline"`
	ProfileURL string `json:"profile_url"`
}

type searchExtract struct {
	Candidates []searchCandidate `json:"candidates"`
}

const searchExtractInstruction = "Extract every person from the search results on this page. " +
	"For each return name, first_name, headline and profile_url (empty string when not visible) " +
	"as {\"candidates\": [...]}."

// connectPhrasings are tried in order until one succeeds; different result
// card layouts respond to different instructions
var connectPhrasings = []string{
	"Click the Connect button on the search result for %s",
	"Click the 'Connect' action in the result card containing %s",
	"Open the actions menu on the search result for %s and choose Connect",
}

var loginWallMarkers = []string{"/login", "/authwall", "/checkpoint", "/uas/"}

// RunCampaign executes one run of a campaign: resolves preconditions, computes
// the invite quota, then walks search pages under the crash supervisor until
// the quota is spent or the search space for this pass is exhausted. The
// cursor is persisted after every completed page and once more unconditionally
// on the way out.
func (f *CampaignRunFlowImpl) RunCampaign(ctx context.Context, campaignUUID string, opts RunOptions, metadata *ClientMetadata) (*RunSummary, error) {
	campaign, err := f.campaigns.ByUUID(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "failed to load campaign", err)
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	if !campaign.IsRunnable() {
		return nil, ErrCampaignNotRunnable
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

	quota, err := f.throttle.Remaining(ctx, campaign)
	if err != nil {
		return nil, NewBusinessError("THROTTLE_CHECK_FAILED", "failed to compute send quota", err)
	}
	if quota <= 0 {
		limitReachedRunsTotal.Inc()
		return &RunSummary{
			Success:      true,
			CampaignID:   campaign.UUID.String(),
			LimitReached: true,
			Message:      "daily limit reached",
		}, nil
	}
	if opts.MaxInvites > 0 && opts.MaxInvites < quota {
		quota = opts.MaxInvites
	}

	keywords, err := resolveKeywords(campaign)
	if err != nil {
		return nil, err
	}

	execType := opts.ExecutionType
	if !execType.Valid() {
		execType = models.ExecutionTypeManual
	}
	execLog := &models.ExecutionLog{
		CampaignID:    campaign.ID,
		ExecutionType: execType,
		BatchNumber:   opts.BatchNumber,
		TotalBatches:  opts.TotalBatches,
		Status:        models.ExecutionStatusRunning,
		StartedAt:     utils.UTCNow(),
	}
	if err := f.executions.Save(ctx, execLog); err != nil {
		return nil, NewBusinessError("EXECUTION_LOG_FAILED", "failed to record execution start", err)
	}

	cursor := LoadCursor(campaign)
	sent := 0
	var runErr error

	defer func() {
		// the cursor write and log finalization must survive deadline expiry
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		if perr := f.cursors.Persist(cleanupCtx, campaign.ID, cursor); perr != nil {
			log.Printf("campaign %s: final cursor persist failed at (%d,%d): %v",
				campaign.UUID, cursor.Page, cursor.Variation, perr)
		}

		if runErr != nil {
			runsTotal.WithLabelValues("failed").Inc()
			if lerr := f.executions.MarkFailed(cleanupCtx, execLog.ID, runErr.Error(), sent); lerr != nil {
				log.Printf("campaign %s: failed to finalize execution log: %v", campaign.UUID, lerr)
			}
			return
		}
		runsTotal.WithLabelValues("completed").Inc()
		if lerr := f.executions.MarkCompleted(cleanupCtx, execLog.ID, sent); lerr != nil {
			log.Printf("campaign %s: failed to finalize execution log: %v", campaign.UUID, lerr)
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

	variations := NewQueryVariationGenerator(f.textGen)
	limitHit := false
	pagesDone := 0

	for sent < quota && pagesDone < utils.MaxSearchPages {
		if ctx.Err() != nil {
			break
		}

		pageSent, pageErr := f.runPage(ctx, campaign, supervisor.Session(), variations, keywords, cursor, quota-sent)
		sent += pageSent

		if pageErr != nil {
			if errors.Is(pageErr, context.DeadlineExceeded) || errors.Is(pageErr, context.Canceled) {
				break
			}
			if errors.Is(pageErr, ErrUserLimitReached) {
				limitHit = true
				break
			}
			if errors.Is(pageErr, ErrSessionLoggedOut) {
				runErr = pageErr
				break
			}
			herr := supervisor.HandleFailure(ctx, pageErr)
			if herr == nil {
				// restarted; retry the same page at the unchanged cursor
				continue
			}
			if errors.Is(herr, context.DeadlineExceeded) || errors.Is(herr, context.Canceled) {
				break
			}
			runErr = herr
			break
		}

		cursor = cursor.Advance()
		pagesDone++
		if perr := f.cursors.Persist(ctx, campaign.ID, cursor); perr != nil {
			log.Printf("campaign %s: cursor persist failed at (%d,%d): %v",
				campaign.UUID, cursor.Page, cursor.Variation, perr)
		}
	}

	if runErr != nil {
		return nil, runErr
	}

	if uerr := f.campaigns.UpdateRunDates(ctx, campaign.ID, utils.UTCNow(), nil); uerr != nil {
		log.Printf("campaign %s: failed to update run dates: %v", campaign.UUID, uerr)
	}

	return &RunSummary{
		Success:      true,
		CampaignID:   campaign.UUID.String(),
		InvitesSent:  sent,
		LimitReached: limitHit,
	}, nil
}

// runPage processes one search page: navigate, extract, qualify, connect.
// Returns how many invites were sent on this page even when it also returns
// an error, so partially processed pages are counted.
func (f *CampaignRunFlowImpl) runPage(ctx context.Context, campaign *models.Campaign, session services.AgentSession, variations *QueryVariationGenerator, keywords string, cursor SearchCursor, budget int) (int, error) {
	variant := variations.Variant(ctx, keywords, cursor.Variation)
	searchURL := buildSearchURL(variant, cursor.Page)

	if err := session.Navigate(ctx, searchURL); err != nil {
		return 0, err
	}
	if err := f.checkLoginWall(ctx, session, campaign.UserID); err != nil {
		return 0, err
	}
	if err := f.humanPause(ctx); err != nil {
		return 0, err
	}

	var page searchExtract
	if err := f.extractWithRetry(ctx, session, searchExtractInstruction, &page); err != nil {
		return 0, err
	}

	sent := 0
	for _, cand := range page.Candidates {
		if sent >= budget {
			break
		}
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}

		firstName := cand.FirstName
		if firstName == "" {
			firstName = firstToken(cand.Name)
		}
		if !Qualifies(cand.Name+" "+cand.Headline, firstName, campaign.Targeting) {
			continue
		}

		if cand.ProfileURL != "" {
			existing, err := f.prospects.ByProfileURL(ctx, campaign.ID, cand.ProfileURL)
			if err != nil {
				log.Printf("campaign %s: prospect lookup failed for %s: %v", campaign.UUID, cand.ProfileURL, err)
			} else if existing != nil {
				continue
			}
		}

		if err := f.sendInvite(ctx, session, campaign, cand, firstName); err != nil {
			if services.IsAgentCrash(err) || ctx.Err() != nil || errors.Is(err, ErrUserLimitReached) {
				return sent, err
			}
			// a single failed candidate is skipped, never blindly retried
			log.Printf("campaign %s: skipping candidate %q: %v", campaign.UUID, cand.Name, err)
			continue
		}
		sent++

		if err := f.humanPause(ctx); err != nil {
			return sent, err
		}
	}

	return sent, nil
}

// sendInvite performs one connect action. Ordering is deliberate: the user
// slot is reserved, the platform-visible send happens, and only then are the
// rows written and counters incremented, so an interruption under-counts
// rather than over-counts.
func (f *CampaignRunFlowImpl) sendInvite(ctx context.Context, session services.AgentSession, campaign *models.Campaign, cand searchCandidate, firstName string) error {
	reserved, err := f.throttle.ReserveConnection(ctx, campaign.UserID)
	if err != nil {
		return err
	}
	if !reserved {
		return ErrUserLimitReached
	}

	note := ""
	if campaign.CTAMode == models.CTAModeConnectWithNote && campaign.Template != nil {
		note = PersonalizeMessage(ctx, f.textGen, *campaign.Template, firstName, cand.Headline)
	}

	if err := f.clickConnect(ctx, session, cand.Name); err != nil {
		f.releaseQuietly(ctx, campaign.UserID)
		return err
	}
	if err := f.completeInviteDialog(ctx, session, note); err != nil {
		f.releaseQuietly(ctx, campaign.UserID)
		return err
	}

	now := utils.UTCNow()
	prospect := &models.Prospect{
		ID:         uuid.New(),
		CampaignID: campaign.ID,
		FirstName:  utils.ToPtr(firstName),
		Status:     models.ProspectStatusContacted,
		CreatedAt:  now,
	}
	if cand.ProfileURL != "" {
		prospect.ProfileURL = utils.ToPtr(cand.ProfileURL)
	}
	if cand.Headline != "" {
		prospect.Headline = utils.ToPtr(cand.Headline)
	}
	if err := f.prospects.Save(ctx, prospect); err != nil {
		log.Printf("campaign %s: invite sent but prospect persist failed for %q: %v", campaign.UUID, cand.Name, err)
	}

	invite := &models.Invite{
		ID:         uuid.New(),
		CampaignID: campaign.ID,
		ProspectID: prospect.ID,
		UserID:     campaign.UserID,
		SentAt:     now,
	}
	if note != "" {
		invite.Note = utils.ToPtr(note)
	}
	if err := f.invites.Save(ctx, invite); err != nil {
		log.Printf("campaign %s: invite sent but invite persist failed for %q: %v", campaign.UUID, cand.Name, err)
	}

	if campaign.WantsFollowUp() && cand.ProfileURL != "" {
		record := &models.FollowUpRecord{
			CampaignID:         campaign.ID,
			ProspectProfileURL: cand.ProfileURL,
			ProspectFirstName:  utils.ToPtr(firstName),
			FollowUpStatus:     models.FollowUpStatusPending,
			ConnectionSentAt:   now,
			CreatedAt:          now,
		}
		if err := f.followUps.Upsert(ctx, record); err != nil {
			log.Printf("campaign %s: invite sent but follow-up record persist failed for %q: %v", campaign.UUID, cand.Name, err)
		}
	}

	if err := f.campaigns.IncrementSent(ctx, campaign.ID, 1); err != nil {
		log.Printf("campaign %s: invite sent but counter increment failed: %v", campaign.UUID, err)
	}
	campaign.DailySent++
	campaign.TotalSent++
	invitesSentTotal.Inc()

	return nil
}

func (f *CampaignRunFlowImpl) clickConnect(ctx context.Context, session services.AgentSession, name string) error {
	var lastErr error
	for _, phrasing := range connectPhrasings {
		err := session.Act(ctx, fmt.Sprintf(phrasing, name))
		if err == nil {
			return nil
		}
		if services.IsAgentCrash(err) || ctx.Err() != nil {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("all connect phrasings failed: %w", lastErr)
}

func (f *CampaignRunFlowImpl) completeInviteDialog(ctx context.Context, session services.AgentSession, note string) error {
	if note != "" {
		return session.Act(ctx, fmt.Sprintf(
			"In the invitation dialog, click 'Add a note', type the message %q, then click Send", note))
	}
	return session.Act(ctx, "In the invitation dialog, click 'Send without a note', or Send if there is no note option")
}

// extractWithRetry retries an idempotent read with bounded exponential
// backoff. Crash-class errors abort immediately for the supervisor to handle.
func (f *CampaignRunFlowImpl) extractWithRetry(ctx context.Context, session services.AgentSession, instruction string, out any) error {
	var lastErr error
	backoff := time.Second
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}
		lastErr = session.Extract(ctx, instruction, out)
		if lastErr == nil {
			return nil
		}
		if services.IsAgentCrash(lastErr) || ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

func (f *CampaignRunFlowImpl) checkLoginWall(ctx context.Context, session services.AgentSession, userID uuid.UUID) error {
	return detectLoginWall(ctx, session, f.identities, userID)
}

// detectLoginWall detects a logged-out session. The stored context is marked
// not ready so subsequent runs fail fast at the precondition instead of
// burning agent time.
func detectLoginWall(ctx context.Context, session services.AgentSession, identities repository.IdentityContextRepository, userID uuid.UUID) error {
	current, err := session.CurrentURL(ctx)
	if err != nil {
		return err
	}
	lower := strings.ToLower(current)
	for _, marker := range loginWallMarkers {
		if strings.Contains(lower, marker) {
			if serr := identities.SetReady(ctx, userID, false); serr != nil {
				log.Printf("failed to mark identity context not ready for user %s: %v", userID, serr)
			}
			return ErrSessionLoggedOut
		}
	}
	return nil
}

func (f *CampaignRunFlowImpl) humanPause(ctx context.Context) error {
	span := f.pauseMax - f.pauseMin
	delay := f.pauseMin + time.Duration(rand.Int63n(int64(span)))
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *CampaignRunFlowImpl) releaseQuietly(ctx context.Context, userID uuid.UUID) {
	if err := f.throttle.ReleaseConnection(ctx, userID); err != nil {
		log.Printf("failed to release reserved connection slot for user %s: %v", userID, err)
	}
}

// resolveKeywords picks the base search keywords for a campaign, falling back
// to targeting fields when no explicit keywords were set
func resolveKeywords(campaign *models.Campaign) (string, error) {
	if campaign.Keywords != nil && strings.TrimSpace(*campaign.Keywords) != "" {
		return strings.TrimSpace(*campaign.Keywords), nil
	}
	if titles := campaign.Targeting.Professional.CurrentJobTitles; len(titles) > 0 {
		return strings.Join(titles, " "), nil
	}
	if industries := campaign.Targeting.Professional.Industries; len(industries) > 0 {
		return strings.Join(industries, " "), nil
	}
	if required := campaign.Targeting.Professional.RequiredKeywords; len(required) > 0 {
		return strings.Join(required, " "), nil
	}
	return "", ErrNoKeywords
}

func buildSearchURL(query string, page int) string {
	v := url.Values{}
	v.Set("keywords", query)
	if page > 1 {
		v.Set("page", fmt.Sprintf("%d", page))
	}
	return "https://www.linkedin.com/search/results/people/?" + v.Encode()
}

func firstToken(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
