// Package scheduler drives daily campaign execution and batch continuations
package scheduler

import (
	"context"
	"io"
	"log"
	"math/rand"
	"os"
	"time"

	businessflow "github.com/linkdms/linkdms/business_flow"
	"github.com/linkdms/linkdms/models"
	"github.com/linkdms/linkdms/repository"
	"github.com/linkdms/linkdms/utils"
	"gopkg.in/natefinch/lumberjack.v2"
)

// CampaignScheduler periodically resets daily counters, starts campaigns
// whose run date arrived, dispatches due invite batches and runs follow-up
// passes. Inter-batch gaps are persisted as BatchSchedule rows and picked up
// by a later tick, never slept through in-process.
type CampaignScheduler struct {
	campaigns repository.CampaignRepository
	batches   repository.BatchScheduleRepository
	runFlow   businessflow.CampaignRunFlow
	followUps businessflow.FollowUpFlow
	logger    *log.Logger
	interval  time.Duration
	runBudget time.Duration
}

// NewCampaignScheduler creates a new campaign scheduler
func NewCampaignScheduler(
	campaigns repository.CampaignRepository,
	batches repository.BatchScheduleRepository,
	runFlow businessflow.CampaignRunFlow,
	followUps businessflow.FollowUpFlow,
	interval time.Duration,
	runBudget time.Duration,
	logPath string,
) *CampaignScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if runBudget <= 0 {
		runBudget = 20 * time.Minute
	}

	var out io.Writer = os.Stdout
	if logPath != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	return &CampaignScheduler{
		campaigns: campaigns,
		batches:   batches,
		runFlow:   runFlow,
		followUps: followUps,
		logger:    log.New(out, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC),
		interval:  interval,
		runBudget: runBudget,
	}
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *CampaignScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *CampaignScheduler) runOnce(ctx context.Context) {
	s.resetDailyCounters(ctx)
	s.dispatchDueBatches(ctx)
	s.startDueCampaigns(ctx)
	s.processFollowUps(ctx)
}

// resetDailyCounters zeroes daily_sent on campaigns whose last run was before
// today's UTC boundary
func (s *CampaignScheduler) resetDailyCounters(ctx context.Context) {
	reset, err := s.campaigns.ResetDailyCounters(ctx, utils.UTCToday())
	if err != nil {
		s.logger.Printf("daily counter reset failed: %v", err)
		return
	}
	if reset > 0 {
		s.logger.Printf("reset daily counters on %d campaigns", reset)
	}
}

// dispatchDueBatches executes persisted batch continuations whose run time
// arrived
func (s *CampaignScheduler) dispatchDueBatches(ctx context.Context) {
	due, err := s.batches.ListDue(ctx, utils.UTCNow())
	if err != nil {
		s.logger.Printf("failed to list due batches: %v", err)
		return
	}

	for _, batch := range due {
		if ctx.Err() != nil {
			return
		}

		campaign, err := s.campaigns.ByID(ctx, batch.CampaignID)
		if err != nil || campaign == nil {
			s.logger.Printf("batch %d: campaign %d not found: %v", batch.ID, batch.CampaignID, err)
			s.markBatch(ctx, batch.ID, models.BatchScheduleStatusFailed)
			continue
		}

		if err := s.batches.UpdateStatus(ctx, batch.ID, models.BatchScheduleStatusDispatched); err != nil {
			s.logger.Printf("batch %d: failed to mark dispatched: %v", batch.ID, err)
			continue
		}

		runCtx, cancel := context.WithTimeout(ctx, s.runBudget)
		summary, err := s.runFlow.RunCampaign(runCtx, campaign.UUID.String(), businessflow.RunOptions{
			ExecutionType: models.ExecutionTypeBatch,
			BatchNumber:   utils.ToPtr(batch.BatchNumber),
			TotalBatches:  utils.ToPtr(batch.TotalBatches),
			MaxInvites:    batch.Size,
		}, nil)
		cancel()

		if err != nil {
			s.logger.Printf("batch %d/%d of campaign %s failed: %v", batch.BatchNumber, batch.TotalBatches, campaign.UUID, err)
			s.markBatch(ctx, batch.ID, models.BatchScheduleStatusFailed)
			continue
		}
		s.logger.Printf("batch %d/%d of campaign %s sent %d invites", batch.BatchNumber, batch.TotalBatches, campaign.UUID, summary.InvitesSent)
		s.markBatch(ctx, batch.ID, models.BatchScheduleStatusDone)
	}
}

func (s *CampaignScheduler) markBatch(ctx context.Context, id uint, status models.BatchScheduleStatus) {
	if err := s.batches.UpdateStatus(ctx, id, status); err != nil {
		s.logger.Printf("batch %d: failed to mark %s: %v", id, status, err)
	}
}

// startDueCampaigns begins the day's work for campaigns whose next run date
// arrived: the first batch runs inline, the rest become BatchSchedule rows
// spread over the day with randomized gaps.
func (s *CampaignScheduler) startDueCampaigns(ctx context.Context) {
	due, err := s.campaigns.ListDue(ctx, utils.UTCNow())
	if err != nil {
		s.logger.Printf("failed to list due campaigns: %v", err)
		return
	}

	for _, campaign := range due {
		if ctx.Err() != nil {
			return
		}

		// a campaign whose next-run update failed must not start twice in a day
		if campaign.LastRunDate != nil && utils.SameUTCDay(*campaign.LastRunDate, utils.UTCNow()) {
			continue
		}

		quota := campaign.RemainingToday()
		if quota <= 0 {
			s.scheduleNextRun(ctx, campaign.ID)
			continue
		}

		sizes := planBatches(quota)
		total := len(sizes)
		s.logger.Printf("campaign %s: planning %d invites over %d batches", campaign.UUID, quota, total)

		runCtx, cancel := context.WithTimeout(ctx, s.runBudget)
		summary, err := s.runFlow.RunCampaign(runCtx, campaign.UUID.String(), businessflow.RunOptions{
			ExecutionType: models.ExecutionTypeScheduled,
			BatchNumber:   utils.ToPtr(1),
			TotalBatches:  utils.ToPtr(total),
			MaxInvites:    sizes[0],
		}, nil)
		cancel()
		if err != nil {
			s.logger.Printf("campaign %s: first batch failed: %v", campaign.UUID, err)
		} else {
			s.logger.Printf("campaign %s: first batch sent %d invites", campaign.UUID, summary.InvitesSent)
		}

		runAt := utils.UTCNow()
		for i := 1; i < total; i++ {
			gap := time.Duration(utils.MinBatchGapMinutes+rand.Intn(utils.MaxBatchGapMinutes-utils.MinBatchGapMinutes)) * time.Minute
			runAt = runAt.Add(gap)
			batch := &models.BatchSchedule{
				CampaignID:   campaign.ID,
				BatchNumber:  i + 1,
				TotalBatches: total,
				Size:         sizes[i],
				RunAt:        runAt,
				Status:       models.BatchScheduleStatusScheduled,
				CreatedAt:    utils.UTCNow(),
			}
			if err := s.batches.Save(ctx, batch); err != nil {
				s.logger.Printf("campaign %s: failed to persist batch %d: %v", campaign.UUID, i+1, err)
			}
		}

		s.scheduleNextRun(ctx, campaign.ID)
	}
}

// scheduleNextRun moves the campaign's next run to tomorrow at a random
// business hour
func (s *CampaignScheduler) scheduleNextRun(ctx context.Context, campaignID uint) {
	now := utils.UTCNow()
	tomorrow := utils.UTCToday().AddDate(0, 0, 1)
	next := tomorrow.Add(time.Duration(9+rand.Intn(8)) * time.Hour).
		Add(time.Duration(rand.Intn(60)) * time.Minute)

	if err := s.campaigns.UpdateRunDates(ctx, campaignID, now, &next); err != nil {
		s.logger.Printf("campaign %d: failed to schedule next run: %v", campaignID, err)
	}
}

// processFollowUps runs a follow-up pass for every active campaign that uses
// the connect-then-followup mode
func (s *CampaignScheduler) processFollowUps(ctx context.Context) {
	mode := models.CTAModeConnectFollowUp
	active := models.CampaignStatusActive
	candidates, err := s.campaigns.ByFilter(ctx, models.CampaignFilter{
		Status:  &active,
		CTAMode: &mode,
	}, "", 0, 0)
	if err != nil {
		s.logger.Printf("failed to list follow-up campaigns: %v", err)
		return
	}

	for _, campaign := range candidates {
		if ctx.Err() != nil {
			return
		}

		runCtx, cancel := context.WithTimeout(ctx, s.runBudget)
		summary, err := s.followUps.ProcessFollowUps(runCtx, campaign.UUID.String(), nil)
		cancel()
		if err != nil {
			s.logger.Printf("campaign %s: follow-up pass failed: %v", campaign.UUID, err)
			continue
		}
		if summary.FollowUpsSent > 0 {
			s.logger.Printf("campaign %s: follow-up pass sent %d messages", campaign.UUID, summary.FollowUpsSent)
		}
	}
}

// planBatches splits a daily quota into human-looking batch sizes
func planBatches(total int) []int {
	var sizes []int
	remaining := total
	for remaining > 0 {
		size := utils.MinBatchSize + rand.Intn(utils.MaxBatchSize-utils.MinBatchSize+1)
		if size > remaining {
			size = remaining
		}
		sizes = append(sizes, size)
		remaining -= size
	}
	return sizes
}
