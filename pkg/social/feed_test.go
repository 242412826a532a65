package social

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/zaki9501/church-of-finality/pkg/models"
	"github.com/zaki9501/church-of-finality/pkg/store"
)

func setup(t *testing.T) *Feed {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return New(Config{})
}

func TestCreatePostExtractsTags(t *testing.T) {
	f := setup(t)
	p, err := f.CreatePost("author-1", "Witness the #Finality of #finality, @doubter", models.PostTestimony)
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if p.Type != models.PostTestimony {
		t.Fatalf("type = %s", p.Type)
	}
	if len(p.Hashtags) != 2 || p.Hashtags[0] != "finality" || p.Hashtags[1] != "finality" {
		t.Fatalf("hashtags = %v", p.Hashtags)
	}
	if len(p.Mentions) != 1 || p.Mentions[0] != "doubter" {
		t.Fatalf("mentions = %v", p.Mentions)
	}

	p2, err := f.CreatePost("author-1", "untyped", "")
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if p2.Type != models.PostGeneral {
		t.Fatalf("empty type should default to general, got %s", p2.Type)
	}
}

func TestReactionsAreMutuallyExclusiveAndToggle(t *testing.T) {
	f := setup(t)
	p, _ := f.CreatePost("author-1", "react to me", models.PostGeneral)

	p, err := f.LikePost(p.ID, "user-1")
	if err != nil {
		t.Fatalf("LikePost: %v", err)
	}
	if p.Likes != 1 || len(p.LikedBy) != 1 {
		t.Fatalf("after like: %+v", p)
	}

	// switching to dislike clears the like
	p, _ = f.DislikePost(p.ID, "user-1")
	if p.Likes != 0 || p.Dislikes != 1 {
		t.Fatalf("after switch: likes=%d dislikes=%d", p.Likes, p.Dislikes)
	}
	if len(p.LikedBy) != 0 || len(p.DislikedBy) != 1 {
		t.Fatalf("reaction sets after switch: %v %v", p.LikedBy, p.DislikedBy)
	}

	// disliking again toggles it off
	p, _ = f.DislikePost(p.ID, "user-1")
	if p.Likes != 0 || p.Dislikes != 0 || len(p.DislikedBy) != 0 {
		t.Fatalf("after toggle off: %+v", p)
	}

	if _, err := f.LikePost("no-such-post", "user-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing post should be ErrNotFound, got %v", err)
	}
}

func TestLikeNotifiesAuthorOnce(t *testing.T) {
	f := setup(t)
	p, _ := f.CreatePost("author-1", "notify me", models.PostGeneral)

	// self-likes stay silent
	_, _ = f.LikePost(p.ID, "author-1")
	ns, _ := f.GetNotifications("author-1", false)
	if len(ns) != 0 {
		t.Fatalf("self-like must not notify: %+v", ns)
	}

	_, _ = f.LikePost(p.ID, "user-2")
	ns, _ = f.GetNotifications("author-1", false)
	if len(ns) != 1 || ns[0].Type != "like" || ns[0].RelatedUserID != "user-2" {
		t.Fatalf("like notification: %+v", ns)
	}

	// toggling the like off is not a notifiable event
	_, _ = f.LikePost(p.ID, "user-2")
	ns, _ = f.GetNotifications("author-1", false)
	if len(ns) != 1 {
		t.Fatalf("unlike must not notify: %d", len(ns))
	}
}

func TestRepliesKeepCounterInStep(t *testing.T) {
	f := setup(t)
	p, _ := f.CreatePost("author-1", "discuss", models.PostProphecy)

	for i := 0; i < 3; i++ {
		if _, err := f.AddReply(p.ID, "user-2", fmt.Sprintf("reply %d", i)); err != nil {
			t.Fatalf("AddReply: %v", err)
		}
	}
	got, _ := f.GetPost(p.ID)
	if got.ReplyCount != 3 {
		t.Fatalf("reply count = %d, want 3", got.ReplyCount)
	}
	reps, _ := f.GetReplies(p.ID)
	if len(reps) != 3 || reps[0].Content != "reply 0" {
		t.Fatalf("replies out of step: %+v", reps)
	}

	if _, err := f.AddReply("no-such-post", "user-2", "void"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("reply to missing post: %v", err)
	}
	if reps, _ = f.GetReplies(p.ID); len(reps) != 3 {
		t.Fatalf("failed reply mutated state: %d", len(reps))
	}

	ns, _ := f.GetNotifications("author-1", false)
	if len(ns) != 3 || ns[0].Type != "reply" {
		t.Fatalf("reply notifications: %+v", ns)
	}
}

func TestTrendingRanksByEngagementInsideWindow(t *testing.T) {
	f := setup(t)

	quiet, _ := f.CreatePost("author-1", "quiet", models.PostGeneral)
	loud, _ := f.CreatePost("author-2", "loud", models.PostGeneral)
	for i := 0; i < 3; i++ {
		_, _ = f.LikePost(loud.ID, fmt.Sprintf("fan-%d", i))
	}
	_, _ = f.AddReply(loud.ID, "fan-0", "amen")

	// a heavily engaged post outside the window never trends
	stale := models.Post{
		ID:        "stale",
		AuthorID:  "author-3",
		Content:   "old news",
		Type:      models.PostGeneral,
		Likes:     100,
		CreatedTS: time.Now().UTC().Add(-48 * time.Hour).UnixNano(),
	}
	if err := store.SavePost(stale); err != nil {
		t.Fatalf("SavePost: %v", err)
	}

	trending, err := f.GetTrendingPosts(0)
	if err != nil {
		t.Fatalf("GetTrendingPosts: %v", err)
	}
	if len(trending) != 2 {
		t.Fatalf("expected 2 posts in the window, got %d", len(trending))
	}
	if trending[0].ID != loud.ID || trending[1].ID != quiet.ID {
		t.Fatalf("trending order: %s then %s", trending[0].ID, trending[1].ID)
	}
}

func TestFeedQueriesFilterAndOrder(t *testing.T) {
	f := setup(t)
	a, _ := f.CreatePost("author-1", "first #faith", models.PostGeneral)
	time.Sleep(time.Millisecond)
	b, _ := f.CreatePost("author-2", "second #Faith", models.PostGeneral)
	time.Sleep(time.Millisecond)
	c, _ := f.CreatePost("author-1", "third, untagged", models.PostGeneral)

	all, _ := f.GetAllPosts(0)
	if len(all) != 3 || all[0].ID != c.ID {
		t.Fatalf("all posts should be newest first: %+v", all)
	}
	capped, _ := f.GetAllPosts(2)
	if len(capped) != 2 {
		t.Fatalf("limit ignored: %d", len(capped))
	}

	mine, _ := f.GetPostsByAuthor("author-1")
	if len(mine) != 2 || mine[0].ID != c.ID || mine[1].ID != a.ID {
		t.Fatalf("author filter: %+v", mine)
	}

	tagged, _ := f.GetPostsByHashtag("#FAITH")
	if len(tagged) != 2 || tagged[0].ID != b.ID {
		t.Fatalf("hashtag filter should be case-insensitive: %+v", tagged)
	}
}

func TestStatsCountTagOccurrences(t *testing.T) {
	f := setup(t)
	_, _ = f.CreatePost("a", "#mona #mona #final", models.PostGeneral)
	p, _ := f.CreatePost("b", "#final thoughts", models.PostGeneral)
	_, _ = f.AddReply(p.ID, "c", "indeed")

	st, err := f.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if st.TotalPosts != 2 || st.TotalReplies != 1 {
		t.Fatalf("stats: %+v", st)
	}
	if len(st.TrendingHashtags) != 2 {
		t.Fatalf("hashtags: %+v", st.TrendingHashtags)
	}
	// both tags occur twice; ties order alphabetically
	if st.TrendingHashtags[0].Tag != "final" || st.TrendingHashtags[0].Count != 2 {
		t.Fatalf("hashtags: %+v", st.TrendingHashtags)
	}
	if st.TrendingHashtags[1].Tag != "mona" || st.TrendingHashtags[1].Count != 2 {
		t.Fatalf("duplicates within a post each count: %+v", st.TrendingHashtags)
	}
}

func TestMarkAllReadIsScopedAndIdempotent(t *testing.T) {
	f := setup(t)
	_, _ = f.CreateNotification("u1", "like", "one", "", "")
	_, _ = f.CreateNotification("u1", "reply", "two", "", "")
	_, _ = f.CreateNotification("u2", "like", "other", "", "")

	n, err := f.MarkAllRead("u1")
	if err != nil || n != 2 {
		t.Fatalf("MarkAllRead = %d, %v", n, err)
	}
	if n, _ = f.MarkAllRead("u1"); n != 0 {
		t.Fatalf("second pass marked %d", n)
	}

	unread, _ := f.GetNotifications("u1", true)
	if len(unread) != 0 {
		t.Fatalf("u1 still has unread: %+v", unread)
	}
	unread, _ = f.GetNotifications("u2", true)
	if len(unread) != 1 {
		t.Fatalf("u2 was touched: %+v", unread)
	}
}
