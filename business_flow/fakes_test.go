package businessflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linkdms/linkdms/app/services"
	"github.com/linkdms/linkdms/models"
)

// In-memory fakes backing the flow tests. They implement just enough of the
// repository and service contracts to observe what a flow did.

type fakeCampaignRepo struct {
	mu          sync.Mutex
	campaigns   map[string]*models.Campaign
	cursorPage  int
	cursorVar   int
	cursorSaves int
	incremented int
	dailyByUser map[uuid.UUID]int
	lastRunSet  bool
}

func newFakeCampaignRepo(campaigns ...*models.Campaign) *fakeCampaignRepo {
	r := &fakeCampaignRepo{
		campaigns:   make(map[string]*models.Campaign),
		dailyByUser: make(map[uuid.UUID]int),
	}
	for _, c := range campaigns {
		r.campaigns[c.UUID.String()] = c
	}
	return r
}

func (r *fakeCampaignRepo) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.campaigns {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeCampaignRepo) Save(ctx context.Context, c *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[c.UUID.String()] = c
	return nil
}

func (r *fakeCampaignRepo) SaveBatch(ctx context.Context, cs []*models.Campaign) error {
	for _, c := range cs {
		if err := r.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeCampaignRepo) ByUUID(ctx context.Context, id string) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.campaigns[id], nil
}

func (r *fakeCampaignRepo) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.campaigns {
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		if filter.CTAMode != nil && c.CTAMode != *filter.CTAMode {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *fakeCampaignRepo) Update(ctx context.Context, c models.Campaign) error {
	return nil
}

func (r *fakeCampaignRepo) UpdateCursor(ctx context.Context, id uint, page, variation int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursorPage = page
	r.cursorVar = variation
	r.cursorSaves++
	return nil
}

func (r *fakeCampaignRepo) IncrementSent(ctx context.Context, id uint, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incremented += n
	return nil
}

func (r *fakeCampaignRepo) SumDailySentByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dailyByUser[userID], nil
}

func (r *fakeCampaignRepo) ListDue(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	return nil, nil
}

func (r *fakeCampaignRepo) ResetDailyCounters(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeCampaignRepo) UpdateRunDates(ctx context.Context, id uint, lastRun time.Time, nextRun *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastRunSet = true
	return nil
}

type fakeIdentityRepo struct {
	mu         sync.Mutex
	identities map[uuid.UUID]*models.IdentityContext
	readySet   []bool
	sessionIDs []string
}

func newFakeIdentityRepo(identities ...*models.IdentityContext) *fakeIdentityRepo {
	r := &fakeIdentityRepo{identities: make(map[uuid.UUID]*models.IdentityContext)}
	for _, i := range identities {
		r.identities[i.UserID] = i
	}
	return r
}

func (r *fakeIdentityRepo) ByUserID(ctx context.Context, userID uuid.UUID) (*models.IdentityContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.identities[userID], nil
}

func (r *fakeIdentityRepo) Save(ctx context.Context, row *models.IdentityContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities[row.UserID] = row
	return nil
}

func (r *fakeIdentityRepo) SetReady(ctx context.Context, userID uuid.UUID, ready bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readySet = append(r.readySet, ready)
	if row, ok := r.identities[userID]; ok {
		row.ContextReady = &ready
	}
	return nil
}

func (r *fakeIdentityRepo) SetLatestSession(ctx context.Context, userID uuid.UUID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessionIDs = append(r.sessionIDs, sessionID)
	return nil
}

type fakeProspectRepo struct {
	mu       sync.Mutex
	saved    []*models.Prospect
	existing map[string]*models.Prospect
	statuses map[uuid.UUID]models.ProspectStatus
}

func newFakeProspectRepo() *fakeProspectRepo {
	return &fakeProspectRepo{
		existing: make(map[string]*models.Prospect),
		statuses: make(map[uuid.UUID]models.ProspectStatus),
	}
}

func (r *fakeProspectRepo) Save(ctx context.Context, p *models.Prospect) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, p)
	if p.ProfileURL != nil {
		r.existing[*p.ProfileURL] = p
	}
	return nil
}

func (r *fakeProspectRepo) ByProfileURL(ctx context.Context, campaignID uint, profileURL string) (*models.Prospect, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.existing[profileURL], nil
}

func (r *fakeProspectRepo) ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.Prospect, error) {
	return r.saved, nil
}

func (r *fakeProspectRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ProspectStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[id] = status
	return nil
}

type fakeInviteRepo struct {
	mu    sync.Mutex
	saved []*models.Invite
}

func (r *fakeInviteRepo) Save(ctx context.Context, i *models.Invite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, i)
	return nil
}

func (r *fakeInviteRepo) CountByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.saved)), nil
}

type fakeFollowUpRepo struct {
	mu        sync.Mutex
	records   []*models.FollowUpRecord
	nextID    uint
	marked    map[uint]models.FollowUpStatus
	sentTimes []time.Time
}

func newFakeFollowUpRepo(records ...*models.FollowUpRecord) *fakeFollowUpRepo {
	r := &fakeFollowUpRepo{marked: make(map[uint]models.FollowUpStatus), nextID: 1}
	for _, rec := range records {
		if rec.ID == 0 {
			rec.ID = r.nextID
		}
		r.nextID = rec.ID + 1
		r.records = append(r.records, rec)
	}
	return r
}

func (r *fakeFollowUpRepo) Upsert(ctx context.Context, rec *models.FollowUpRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.CampaignID == rec.CampaignID && existing.ProspectProfileURL == rec.ProspectProfileURL {
			return nil
		}
	}
	rec.ID = r.nextID
	r.nextID++
	r.records = append(r.records, rec)
	return nil
}

func (r *fakeFollowUpRepo) ByCampaignAndProfile(ctx context.Context, campaignID uint, profileURL string) (*models.FollowUpRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.CampaignID == campaignID && rec.ProspectProfileURL == profileURL {
			return rec, nil
		}
	}
	return nil, nil
}

func (r *fakeFollowUpRepo) ListPendingByCampaign(ctx context.Context, campaignID uint) ([]*models.FollowUpRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.FollowUpRecord
	for _, rec := range r.records {
		if rec.CampaignID == campaignID && rec.FollowUpStatus == models.FollowUpStatusPending && rec.ConnectionAcceptedAt == nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeFollowUpRepo) ListEligible(ctx context.Context, campaignID uint, acceptedBefore time.Time) ([]*models.FollowUpRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.FollowUpRecord
	for _, rec := range r.records {
		if rec.CampaignID != campaignID || rec.FollowUpStatus != models.FollowUpStatusPending {
			continue
		}
		if rec.ConnectionAcceptedAt == nil || rec.ConnectionAcceptedAt.After(acceptedBefore) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *fakeFollowUpRepo) MarkAccepted(ctx context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id && rec.ConnectionAcceptedAt == nil {
			rec.ConnectionAcceptedAt = &at
		}
	}
	return nil
}

func (r *fakeFollowUpRepo) MarkSent(ctx context.Context, id uint, at time.Time, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id {
			rec.FollowUpStatus = models.FollowUpStatusSent
			rec.FollowUpSentAt = &at
			rec.FollowUpMessage = &message
		}
	}
	r.marked[id] = models.FollowUpStatusSent
	r.sentTimes = append(r.sentTimes, at)
	return nil
}

func (r *fakeFollowUpRepo) MarkFailed(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id {
			rec.FollowUpStatus = models.FollowUpStatusFailed
		}
	}
	r.marked[id] = models.FollowUpStatusFailed
	return nil
}

func (r *fakeFollowUpRepo) LatestSentByUser(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sentTimes) == 0 {
		return nil, nil
	}
	last := r.sentTimes[len(r.sentTimes)-1]
	return &last, nil
}

func (r *fakeFollowUpRepo) CountSentByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, at := range r.sentTimes {
		if !at.Before(since) {
			n++
		}
	}
	return n, nil
}

type fakeExecutionRepo struct {
	mu        sync.Mutex
	logs      []*models.ExecutionLog
	completed []uint
	failed    []uint
}

func (r *fakeExecutionRepo) ByID(ctx context.Context, id uint) (*models.ExecutionLog, error) {
	return nil, nil
}

func (r *fakeExecutionRepo) Save(ctx context.Context, l *models.ExecutionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.ID = uint(len(r.logs) + 1)
	r.logs = append(r.logs, l)
	return nil
}

func (r *fakeExecutionRepo) SaveBatch(ctx context.Context, ls []*models.ExecutionLog) error {
	for _, l := range ls {
		if err := r.Save(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeExecutionRepo) MarkCompleted(ctx context.Context, id uint, connections int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, id)
	return nil
}

func (r *fakeExecutionRepo) MarkFailed(ctx context.Context, id uint, errMsg string, connections int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, id)
	return nil
}

func (r *fakeExecutionRepo) ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.ExecutionLog, error) {
	return r.logs, nil
}

// fakeThrottle is a SafetyThrottle with scriptable limits
type fakeThrottle struct {
	mu            sync.Mutex
	remaining     int
	reserved      int
	released      int
	followUpErr   error
	followUpAfter int // messages allowed before followUpErr kicks in
	recorded      int
}

func (t *fakeThrottle) Remaining(ctx context.Context, campaign *models.Campaign) (int, error) {
	return t.remaining, nil
}

func (t *fakeThrottle) ReserveConnection(ctx context.Context, userID uuid.UUID) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reserved++
	return true, nil
}

func (t *fakeThrottle) ReleaseConnection(ctx context.Context, userID uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.released++
	return nil
}

func (t *fakeThrottle) CheckFollowUpLimits(ctx context.Context, userID uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.followUpErr != nil && t.recorded >= t.followUpAfter {
		return t.followUpErr
	}
	return nil
}

func (t *fakeThrottle) RecordFollowUp(ctx context.Context, userID uuid.UUID, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recorded++
	return nil
}

// fakeSession scripts agent behavior per call type
type fakeSession struct {
	mu         sync.Mutex
	id         string
	currentURL string
	extractFn  func(instruction string, out any) error
	actErr     error
	navErr     error
	navigated  []string
	acts       []string
	closed     bool
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigated = append(s.navigated, url)
	return s.navErr
}

func (s *fakeSession) Observe(ctx context.Context, instruction string) ([]services.AgentAction, error) {
	return nil, nil
}

func (s *fakeSession) Act(ctx context.Context, instruction string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acts = append(s.acts, instruction)
	return s.actErr
}

func (s *fakeSession) Extract(ctx context.Context, instruction string, out any) error {
	if s.extractFn != nil {
		return s.extractFn(instruction, out)
	}
	return errors.New("no extract scripted")
}

func (s *fakeSession) CurrentURL(ctx context.Context) (string, error) {
	return s.currentURL, nil
}

func (s *fakeSession) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// fakeAgent hands out fakeSessions; a factory may vary behavior per init
type fakeAgent struct {
	mu      sync.Mutex
	inits   int
	initErr error
	factory func(n int) *fakeSession
}

func (a *fakeAgent) Init(ctx context.Context, contextID string) (services.AgentSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.initErr != nil {
		return nil, a.initErr
	}
	a.inits++
	if a.factory != nil {
		return a.factory(a.inits), nil
	}
	return &fakeSession{id: "session-1"}, nil
}

type fakeTextGen struct {
	reply string
	err   error
	calls int
}

func (g *fakeTextGen) Complete(ctx context.Context, prompt string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}
