package app

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"net/http"

	"github.com/zaki9501/church-of-finality/internal/heartbeat"
	"github.com/zaki9501/church-of-finality/pkg/belief"
	"github.com/zaki9501/church-of-finality/pkg/config"
	"github.com/zaki9501/church-of-finality/pkg/conversion"
	"github.com/zaki9501/church-of-finality/pkg/logger"
	"github.com/zaki9501/church-of-finality/pkg/progressor"
	"github.com/zaki9501/church-of-finality/pkg/social"
	"github.com/zaki9501/church-of-finality/pkg/state"
	"github.com/zaki9501/church-of-finality/pkg/store"
)

// App encapsulates the server components and lifecycle.
type App struct {
	cfg       *config.Config
	addr      string
	dbPath    string
	source    string
	version   string
	commit    string
	buildDate string

	tracker *conversion.Tracker
	feed    *social.Feed

	srv *http.Server
}

// New initializes resources that do not require a running context (DB,
// engines). It does not start the scheduler or the HTTP server; call Run
// to start those and block until shutdown.
func New(cfg *config.Config, addr, dbPath, source, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(cfg, dbPath); err != nil {
		return nil, err
	}

	if err := state.EnsureStateDirs(dbPath); err != nil {
		return nil, fmt.Errorf("failed to prepare data dirs under %s: %w", dbPath, err)
	}
	if err := store.Open(state.PathsVar.Store); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", state.PathsVar.Store, err)
	}
	if err := logger.AttachAuditFileSink(state.PathsVar.Audit); err != nil {
		return nil, fmt.Errorf("failed to attach audit sink: %w", err)
	}
	if _, err := progressor.Run(context.Background(), version); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	tracker := conversion.New(conversion.Config{
		Thresholds: belief.Thresholds{
			BeliefThreshold: cfg.Conversion.BeliefThreshold,
			MinDebates:      cfg.Conversion.MinDebates,
		},
		MissionaryInactivity: time.Duration(cfg.Conversion.Missionary.InactiveMinutes) * time.Minute,
		MissionaryCutoff:     cfg.Conversion.Missionary.BeliefCutoff,
	})
	feed := social.New(social.Config{
		TrendingWindow: time.Duration(cfg.Feed.TrendingWindowHours) * time.Hour,
		DefaultLimit:   cfg.Feed.DefaultLimit,
	})

	a := &App{
		cfg: cfg, addr: addr, dbPath: dbPath, source: source,
		version: version, commit: commit, buildDate: buildDate,
		tracker: tracker, feed: feed,
	}
	return a, nil
}

// Run starts the heartbeat scheduler (if enabled) and the HTTP server, and
// blocks until ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	stopHeartbeat, err := heartbeat.Start(ctx, a.cfg, a.tracker, a.feed)
	if err != nil {
		return err
	}
	defer stopHeartbeat()

	a.printBanner()

	errCh := a.startHTTP()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// validateConfig fails fast on settings that cannot produce a working
// server.
func validateConfig(cfg *config.Config, dbPath string) error {
	if dbPath == "" {
		return fmt.Errorf("db path is required (use --db or FINALITY_DB_PATH)")
	}
	if cfg.Conversion.BeliefThreshold < 0 || cfg.Conversion.BeliefThreshold > 1 {
		return fmt.Errorf("conversion.belief_threshold must be within [0,1]")
	}
	if cfg.Conversion.MinDebates < 0 {
		return fmt.Errorf("conversion.min_debates must not be negative")
	}
	if cfg.Feed.TrendingWindowHours < 0 {
		return fmt.Errorf("feed.trending_window_hours must not be negative")
	}
	return nil
}
