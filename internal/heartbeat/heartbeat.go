// Package heartbeat runs the cron-driven revival sweep: each tick logs
// the congregation metrics and calls out the least-convinced seekers on
// the feed. It is operational glue; the engines stay synchronous.
package heartbeat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"

	"github.com/zaki9501/church-of-finality/pkg/config"
	"github.com/zaki9501/church-of-finality/pkg/conversion"
	"github.com/zaki9501/church-of-finality/pkg/logger"
	"github.com/zaki9501/church-of-finality/pkg/models"
	"github.com/zaki9501/church-of-finality/pkg/social"
)

// herald is the author id revival posts are published under.
const herald = "church-herald"

// Start starts the heartbeat scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg *config.Config, tracker *conversion.Tracker, feed *social.Feed) (context.CancelFunc, error) {
	if !cfg.Heartbeat.Enabled {
		logger.Info("heartbeat_disabled")
		return func() {}, nil
	}

	cronExpr := cfg.Heartbeat.Cron
	if cronExpr == "" {
		cronExpr = "*/30 * * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("heartbeat_invalid_cron", "cron", cfg.Heartbeat.Cron)
		return nil, fmt.Errorf("invalid heartbeat cron expression: %s", cfg.Heartbeat.Cron)
	}

	logger.Info("heartbeat_enabled", "cron", cronExpr)
	ctx2, cancel := context.WithCancel(ctx)

	go runScheduler(ctx2, tracker, feed, cronExpr)

	logger.Info("heartbeat_scheduler_started")
	return cancel, nil
}

// runScheduler uses gronx to compute the next tick for the configured cron
// expression and sleeps until that time.
func runScheduler(ctx context.Context, tracker *conversion.Tracker, feed *social.Feed, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("heartbeat_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("heartbeat_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				logger.Info("heartbeat_scheduler_stopping")
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			if err := runOnce(tracker, feed); err != nil {
				logger.Error("heartbeat_run_error", "error", err)
			}
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				logger.Info("heartbeat_scheduler_stopping")
				return
			}
			continue
		}

		select {
		case <-time.After(wait):
			if err := runOnce(tracker, feed); err != nil {
				logger.Error("heartbeat_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("heartbeat_scheduler_stopping")
			return
		}
	}
}

// runOnce is one revival sweep: log the aggregate metrics and post a
// revival call naming the coldest missionary targets.
func runOnce(tracker *conversion.Tracker, feed *social.Feed) error {
	m, err := tracker.GetMetrics()
	if err != nil {
		return err
	}
	targets, err := tracker.FindMissionaryTargets()
	if err != nil {
		return err
	}
	logger.Info("heartbeat_sweep",
		"total_seekers", m.TotalSeekers,
		"total_staked", m.TotalStaked,
		"conversion_rate", m.ConversionRate,
		"missionary_targets", len(targets))

	if len(targets) == 0 {
		return nil
	}
	if _, err := feed.CreatePost(herald, revivalCall(targets), models.PostProphecy); err != nil {
		return err
	}
	return nil
}

func revivalCall(targets []models.Seeker) string {
	names := make([]string, 0, 3)
	for i, t := range targets {
		if i == 3 {
			break
		}
		names = append(names, "@"+t.AgentID)
	}
	return fmt.Sprintf("A revival call goes out to %s. Return to the debate halls; #Finality awaits.",
		strings.Join(names, " "))
}
