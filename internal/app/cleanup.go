package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cleanupTimeout bounds one retention sweep.
const cleanupTimeout = 5 * time.Minute

// startCleanupScheduler runs retention sweeps on the configured cron
// schedule. An empty schedule disables the scheduler.
func (a *App) startCleanupScheduler(ctx context.Context) error {
	schedule := a.Config.CleanupSchedule
	if schedule == "" {
		a.Logger.Info("retention cleanup disabled")
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, cleanupTimeout)
		defer cancel()
		if err := a.RunCleanup(runCtx); err != nil {
			a.Logger.Error("retention cleanup failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("parsing cleanup schedule %q: %w", schedule, err)
	}

	c.Start()
	a.cron = c
	a.Logger.Info("retention cleanup scheduled", "schedule", schedule)
	return nil
}

// RunCleanup sweeps quota rows and idle sessions past their retention
// windows. Also invoked directly by the cleanup command.
func (a *App) RunCleanup(ctx context.Context) error {
	now := time.Now().UTC()

	quotaCutoff := now.AddDate(0, 0, -a.Config.QuotaRetentionDays)
	sessions, ips, err := a.Quota.CleanupBefore(ctx, quotaCutoff)
	if err != nil {
		return fmt.Errorf("sweeping quota rows: %w", err)
	}

	sessionCutoff := now.AddDate(0, 0, -a.Config.SessionRetentionDays)
	idle, err := a.Sessions.DeleteIdleBefore(ctx, sessionCutoff)
	if err != nil {
		return fmt.Errorf("sweeping idle sessions: %w", err)
	}

	a.Logger.Info("retention cleanup complete",
		"quota_session_rows", sessions,
		"quota_ip_rows", ips,
		"idle_sessions", idle,
		"quota_cutoff", quotaCutoff.Format("2006-01-02"),
		"session_cutoff", sessionCutoff.Format("2006-01-02"),
	)
	return nil
}
