package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/zaki9501/church-of-finality/pkg/models"
)

func setup(t *testing.T) {
	t.Helper()
	if err := Open(t.TempDir()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = Close() })
}

func TestSaveNewSeekerRejectsDuplicateAgent(t *testing.T) {
	setup(t)
	a := models.Seeker{ID: "s1", AgentID: "agent-1", Name: "one", BlessingKey: "finality_aaa", Stage: models.StageAwareness, StakedAmount: "0"}
	if err := SaveNewSeeker(a); err != nil {
		t.Fatalf("SaveNewSeeker: %v", err)
	}
	b := models.Seeker{ID: "s2", AgentID: "agent-1", Name: "two", BlessingKey: "finality_bbb", Stage: models.StageAwareness, StakedAmount: "0"}
	if err := SaveNewSeeker(b); !errors.Is(err, ErrDuplicateAgent) {
		t.Fatalf("expected ErrDuplicateAgent, got %v", err)
	}
	// the duplicate must leave no row or index behind
	if _, err := SeekerByKey("finality_bbb"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for losing key, got %v", err)
	}
}

func TestSeekerRoundtripAndIndexes(t *testing.T) {
	setup(t)
	s := models.Seeker{
		ID: "s1", AgentID: "agent-1", Name: "one",
		BlessingKey: "finality_abc", Stage: models.StageBelief,
		BeliefScore: 0.6, Debates: 4, StakedAmount: "1000",
		Converts: []string{"s2"},
	}
	if err := SaveNewSeeker(s); err != nil {
		t.Fatalf("SaveNewSeeker: %v", err)
	}
	got, err := GetSeeker("s1")
	if err != nil {
		t.Fatalf("GetSeeker: %v", err)
	}
	if got.StakedAmount != "1000" || got.Stage != models.StageBelief || len(got.Converts) != 1 {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
	byKey, err := SeekerByKey("finality_abc")
	if err != nil || byKey.ID != "s1" {
		t.Fatalf("SeekerByKey: %v %+v", err, byKey)
	}
	byAgent, err := SeekerByAgent("agent-1")
	if err != nil || byAgent.ID != "s1" {
		t.Fatalf("SeekerByAgent: %v %+v", err, byAgent)
	}
}

func TestConversionEventsKeepAppendOrder(t *testing.T) {
	setup(t)
	stages := []models.Stage{models.StageAwareness, models.StageBelief, models.StageSacrifice, models.StageEvangelist}
	for i := 1; i < len(stages); i++ {
		ev := models.ConversionEvent{
			SeekerID:  "s1",
			FromStage: stages[i-1],
			ToStage:   stages[i],
			Trigger:   fmt.Sprintf("step-%d", i),
			TS:        int64(i),
		}
		if err := AppendConversion(ev); err != nil {
			t.Fatalf("AppendConversion: %v", err)
		}
	}
	evs, err := ListConversions("s1")
	if err != nil {
		t.Fatalf("ListConversions: %v", err)
	}
	if len(evs) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evs))
	}
	for i, ev := range evs {
		if ev.Trigger != fmt.Sprintf("step-%d", i+1) {
			t.Fatalf("event %d out of order: %+v", i, ev)
		}
	}
}

func TestMiraclesListNewestFirst(t *testing.T) {
	setup(t)
	for i := 0; i < 3; i++ {
		m := models.Miracle{ID: fmt.Sprintf("m%d", i), Type: models.MiracleInstantTransfer, TS: int64(i)}
		if err := AppendMiracle(m); err != nil {
			t.Fatalf("AppendMiracle: %v", err)
		}
	}
	ms, err := ListMiracles(2)
	if err != nil {
		t.Fatalf("ListMiracles: %v", err)
	}
	if len(ms) != 2 || ms[0].ID != "m2" || ms[1].ID != "m1" {
		t.Fatalf("unexpected order: %+v", ms)
	}
}

func TestReplyBatchUpdatesPostRow(t *testing.T) {
	setup(t)
	p := models.Post{ID: "p1", AuthorID: "s1", Content: "hello", Type: models.PostGeneral}
	if err := SavePost(p); err != nil {
		t.Fatalf("SavePost: %v", err)
	}
	p.ReplyCount = 1
	rep := models.Reply{ID: "r1", PostID: "p1", AuthorID: "s2", Content: "hi", CreatedTS: 1}
	if err := SaveReplyWithPost(p, rep); err != nil {
		t.Fatalf("SaveReplyWithPost: %v", err)
	}
	got, err := GetPost("p1")
	if err != nil || got.ReplyCount != 1 {
		t.Fatalf("post row not updated with reply: %v %+v", err, got)
	}
	reps, err := ListReplies("p1")
	if err != nil || len(reps) != 1 || reps[0].ID != "r1" {
		t.Fatalf("ListReplies: %v %+v", err, reps)
	}
}

func TestMarkNotificationsReadIsIdempotentAndScoped(t *testing.T) {
	setup(t)
	for i := 0; i < 2; i++ {
		n := models.Notification{ID: fmt.Sprintf("n%d", i), UserID: "u1", Type: "like", Message: "x", CreatedTS: int64(i)}
		if err := SaveNotification(n); err != nil {
			t.Fatalf("SaveNotification: %v", err)
		}
	}
	other := models.Notification{ID: "n-other", UserID: "u2", Type: "like", Message: "y", CreatedTS: 9}
	if err := SaveNotification(other); err != nil {
		t.Fatalf("SaveNotification: %v", err)
	}

	n, err := MarkNotificationsRead("u1")
	if err != nil || n != 2 {
		t.Fatalf("first mark: %v marked=%d", err, n)
	}
	n, err = MarkNotificationsRead("u1")
	if err != nil || n != 0 {
		t.Fatalf("second mark should be a no-op: %v marked=%d", err, n)
	}
	ns, err := ListNotifications("u2")
	if err != nil || len(ns) != 1 || ns[0].Read {
		t.Fatalf("other user's notifications must stay unread: %v %+v", err, ns)
	}
}

func TestSystemKeys(t *testing.T) {
	setup(t)
	v, err := GetKey("system:version")
	if err != nil || v != "" {
		t.Fatalf("missing key should read empty: %q %v", v, err)
	}
	if err := SaveKey("system:version", []byte("1.0")); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}
	v, err = GetKey("system:version")
	if err != nil || v != "1.0" {
		t.Fatalf("GetKey: %q %v", v, err)
	}
	if err := DeleteKey("system:version"); err != nil {
		t.Fatalf("DeleteKey: %v", err)
	}
	v, _ = GetKey("system:version")
	if v != "" {
		t.Fatalf("key should be gone, got %q", v)
	}
}
