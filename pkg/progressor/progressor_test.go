package progressor

import (
	"context"
	"testing"

	"github.com/zaki9501/church-of-finality/pkg/models"
	"github.com/zaki9501/church-of-finality/pkg/store"
)

func setup(t *testing.T) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
}

func TestRunMigratesOnVersionChange(t *testing.T) {
	setup(t)

	// a row from before staked amounts were mandatory
	legacy := models.Seeker{
		ID: "legacy", AgentID: "a1", Name: "legacy", BlessingKey: "finality_legacy",
		Stage: models.StageAwareness,
	}
	if err := store.SaveNewSeeker(legacy); err != nil {
		t.Fatalf("SaveNewSeeker: %v", err)
	}

	invoked, err := Run(context.Background(), "1.1.0")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !invoked {
		t.Fatal("version change should invoke a sync")
	}

	s, err := store.GetSeeker("legacy")
	if err != nil {
		t.Fatalf("GetSeeker: %v", err)
	}
	if s.StakedAmount != "0" {
		t.Fatalf("staked = %q, want \"0\"", s.StakedAmount)
	}
	if s.Converts == nil {
		t.Fatal("converts should be normalized to an empty set")
	}

	if v, _ := store.GetKey("system:version"); v != "1.1.0" {
		t.Fatalf("persisted version = %q", v)
	}
	if m, _ := store.GetKey("system:migration_in_progress"); m != "" {
		t.Fatalf("in-progress marker left behind: %q", m)
	}

	// same version again is a no-op
	invoked, err = Run(context.Background(), "1.1.0")
	if err != nil || invoked {
		t.Fatalf("second run: invoked=%v err=%v", invoked, err)
	}
}
