package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/wa-property-crm/internal/storage"
	"gitlab.com/timkado/api/wa-property-crm/internal/worker"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
	"gitlab.com/timkado/api/wa-property-crm/pkg/utils"
)

// Launcher starts a campaign.
type Launcher interface {
	Launch(ctx context.Context, campaignID string) (*LaunchResult, error)
}

// Scheduler launches scheduled campaigns once their time has come.
type Scheduler struct {
	campaigns storage.CampaignRepo
	launcher  Launcher
	pool      worker.Submitter
	interval  time.Duration
}

// NewScheduler creates a new campaign scheduler
func NewScheduler(campaigns storage.CampaignRepo, launcher Launcher, pool worker.Submitter, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{campaigns: campaigns, launcher: launcher, pool: pool, interval: interval}
}

// Run polls for due campaigns until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log := logger.FromContext(ctx).Named("campaign_scheduler")
	log.Info("Campaign scheduler started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Campaign scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick claims every due campaign and hands it to the worker pool. It returns
// the number of launches submitted.
func (s *Scheduler) Tick(ctx context.Context) int {
	log := logger.FromContext(ctx)

	due, err := s.campaigns.ClaimDue(ctx, utils.Now())
	if err != nil {
		log.Error("Failed to claim due campaigns", zap.Error(err))
		return 0
	}

	submitted := 0
	for _, campaign := range due {
		id := campaign.ID
		task := worker.Task{
			Ctx:  detach(ctx),
			Name: "launch_campaign",
			Run: func(ctx context.Context) error {
				_, err := s.launcher.Launch(ctx, id)
				return err
			},
		}
		if err := s.pool.Submit(task); err != nil {
			// The campaign is already active; an operator relaunch picks it up.
			log.Error("Failed to submit scheduled launch", zap.String("campaign_id", id), zap.Error(err))
			continue
		}
		log.Info("Scheduled campaign submitted", zap.String("campaign_id", id))
		submitted++
	}
	return submitted
}
