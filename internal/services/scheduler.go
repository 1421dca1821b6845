package services

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/mergewise/mergewise/pkg/logger"
)

// Scheduler runs the periodic maintenance jobs: sweeping abandoned runs,
// purging runs past retention, and a workday digest log entry.
type Scheduler struct {
	cron     *cron.Cron
	runs     *ReviewRunService
	sysCfg   *SystemConfigService
	workdays *cal.BusinessCalendar
}

func NewScheduler(db *gorm.DB) *Scheduler {
	workdays := cal.NewBusinessCalendar()
	workdays.AddHoliday(us.Holidays...)

	return &Scheduler{
		cron:     cron.New(),
		runs:     NewReviewRunService(db),
		sysCfg:   NewSystemConfigService(db),
		workdays: workdays,
	}
}

func (s *Scheduler) Start() {
	s.cron.AddFunc("*/10 * * * *", s.sweepStaleRuns)
	s.cron.AddFunc("30 3 * * *", s.purgeExpiredRuns)
	s.cron.AddFunc("0 9 * * *", s.logDigest)
	s.cron.Start()
	logger.Infof("[Scheduler] started")
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Infof("[Scheduler] stopped")
}

func (s *Scheduler) sweepStaleRuns() {
	limit := s.sysCfg.GetInt(ConfigStaleRunMinutes, 30)
	n, err := s.runs.MarkStaleFailed(limit)
	if err != nil {
		logger.Errorf("[Scheduler] stale run sweep failed: %v", err)
		return
	}
	if n > 0 {
		logger.Warnf("[Scheduler] marked %d stale runs as failed", n)
	}
}

func (s *Scheduler) purgeExpiredRuns() {
	days := s.sysCfg.GetInt(ConfigRetentionDays, 90)
	n, err := s.runs.CleanupOlderThan(days)
	if err != nil {
		logger.Errorf("[Scheduler] retention cleanup failed: %v", err)
		return
	}
	if n > 0 {
		logger.Infof("[Scheduler] purged %d runs older than %d days", n, days)
	}
}

// logDigest emits an activity summary on workdays; Mondays cover the
// whole weekend.
func (s *Scheduler) logDigest() {
	now := time.Now()
	if !s.workdays.IsWorkday(now) {
		return
	}

	lookback := 24 * time.Hour
	for d := now.AddDate(0, 0, -1); !s.workdays.IsWorkday(d); d = d.AddDate(0, 0, -1) {
		lookback += 24 * time.Hour
	}

	stats, err := s.runs.StatsSince(now.Add(-lookback))
	if err != nil {
		logger.Errorf("[Scheduler] digest failed: %v", err)
		return
	}

	logger.Info().
		Int64("runs", stats.Total).
		Int64("completed", stats.Completed).
		Int64("failed", stats.Failed).
		Int64("critical_findings", stats.Critical).
		Dur("window", lookback).
		Msg("review digest")
}
