// Package progressor runs idempotent schema migrations when the binary
// version changes between restarts of the same data directory.
package progressor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zaki9501/church-of-finality/pkg/logger"
	"github.com/zaki9501/church-of-finality/pkg/store"
)

const (
	systemVersionKey    = "system:version"
	systemInProgressKey = "system:migration_in_progress"
)

// Sync performs upgrade work between versions. Edit in-place for migration logic.
func Sync(ctx context.Context, from, to string) error {
	logger.Info("progressor_sync_start", "from", from, "to", to)

	// Migration: normalize seeker rows written before staked amounts were
	// mandatory. An empty staked amount becomes the canonical "0" and a
	// nil convert edge set becomes an empty one. Idempotent and safe to
	// run multiple times.
	seekers, err := store.ListSeekers()
	if err != nil {
		logger.Error("progressor_list_seekers_failed", "error", err)
		return err
	}
	for _, s := range seekers {
		changed := false
		if s.StakedAmount == "" {
			s.StakedAmount = "0"
			changed = true
		}
		if s.Converts == nil {
			s.Converts = []string{}
			changed = true
		}
		if !changed {
			continue
		}
		if err := store.SaveSeeker(s); err != nil {
			logger.Error("progressor_save_seeker_failed", "seeker", s.ID, "error", err)
			continue
		}
		logger.Info("progressor_seeker_normalized", "seeker", s.ID)
	}

	logger.Info("progressor_sync_done", "from", from, "to", to)
	return nil
}

// Run checks for a version change and runs Sync if needed.
// Returns (invoked, error): invoked is true if Sync ran.
func Run(ctx context.Context, newVersion string) (bool, error) {
	stored, err := store.GetKey(systemVersionKey)
	if err != nil {
		logger.Error("progressor_read_version_failed", "error", err)
		return false, err
	}
	logger.Info("progressor_version_check", "stored", stored, "running", newVersion)
	if stored == newVersion {
		logger.Info("progressor_noop", "version", newVersion)
		return false, nil
	}

	marker := map[string]string{
		"from":       stored,
		"to":         newVersion,
		"started_at": time.Now().UTC().Format(time.RFC3339),
	}
	mb, _ := json.Marshal(marker)
	if err := store.SaveKey(systemInProgressKey, mb); err != nil {
		logger.Error("progressor_write_inprogress_failed", "error", err)
		return true, fmt.Errorf("failed to write in-progress marker: %w", err)
	}

	logger.Info("progressor_start_sync", "from", stored, "to", newVersion)
	if err := Sync(ctx, stored, newVersion); err != nil {
		logger.Error("progressor_sync_failed", "from", stored, "to", newVersion, "error", err)
		return true, err
	}
	logger.Info("progressor_sync_succeeded", "from", stored, "to", newVersion)

	if err := store.SaveKey(systemVersionKey, []byte(newVersion)); err != nil {
		logger.Error("progressor_persist_version_failed", "version", newVersion, "error", err)
		return true, fmt.Errorf("failed to persist new version: %w", err)
	}

	if err := store.DeleteKey(systemInProgressKey); err != nil {
		logger.Error("progressor_delete_inprogress_failed", "error", err)
	}

	logger.Info("progressor_version_persisted", "version", newVersion)
	return true, nil
}
