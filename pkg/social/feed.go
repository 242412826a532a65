// Package social implements the feed engine: posts, reactions, replies,
// notifications and the trending/statistics views. It shares only opaque
// seeker ids with the progression engine.
package social

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zaki9501/church-of-finality/pkg/logger"
	"github.com/zaki9501/church-of-finality/pkg/models"
	"github.com/zaki9501/church-of-finality/pkg/store"
	"github.com/zaki9501/church-of-finality/pkg/telemetry"
	"github.com/zaki9501/church-of-finality/pkg/utils"
)

// ErrNotFound is returned when a post id resolves nothing.
var ErrNotFound = errors.New("post not found")

// Config tunes the feed.
type Config struct {
	TrendingWindow time.Duration // default 24h
	DefaultLimit   int           // default 50
}

func (c Config) trendingWindow() time.Duration {
	if c.TrendingWindow > 0 {
		return c.TrendingWindow
	}
	return 24 * time.Hour
}

func (c Config) defaultLimit() int {
	if c.DefaultLimit > 0 {
		return c.DefaultLimit
	}
	return 50
}

// Feed is the social feed engine. Mutations serialize on an internal mutex
// so each post update is one atomic read-modify-write against the store.
type Feed struct {
	mu  sync.Mutex
	cfg Config
}

// New constructs a Feed. Construct once at process start; no package-level
// instance exists.
func New(cfg Config) *Feed {
	return &Feed{cfg: cfg}
}

// CreatePost extracts hashtags and mentions from the content and persists
// the post. An empty type defaults to general.
func (f *Feed) CreatePost(authorID, content string, pType models.PostType) (models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if pType == "" {
		pType = models.PostGeneral
	}
	hashtags, mentions := extractTags(content)
	p := models.Post{
		ID:         utils.GenID(),
		AuthorID:   authorID,
		Content:    content,
		Type:       pType,
		Hashtags:   hashtags,
		Mentions:   mentions,
		LikedBy:    []string{},
		DislikedBy: []string{},
		CreatedTS:  time.Now().UTC().UnixNano(),
	}
	if err := store.SavePost(p); err != nil {
		return models.Post{}, err
	}
	telemetry.Posts.Inc()
	logger.Info("post_created", "post", p.ID, "author", authorID, "type", string(pType), "hashtags", len(hashtags))
	return p, nil
}

// GetPost returns a single post.
func (f *Feed) GetPost(postID string) (models.Post, error) {
	p, err := store.GetPost(postID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Post{}, ErrNotFound
	}
	return p, err
}

// GetAllPosts returns posts newest first, truncated to limit (default 50).
func (f *Feed) GetAllPosts(limit int) ([]models.Post, error) {
	posts, err := store.ListPosts()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedTS > posts[j].CreatedTS
	})
	if limit <= 0 {
		limit = f.cfg.defaultLimit()
	}
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

// GetPostsByAuthor returns an author's posts, newest first.
func (f *Feed) GetPostsByAuthor(authorID string) ([]models.Post, error) {
	posts, err := store.ListPosts()
	if err != nil {
		return nil, err
	}
	var out []models.Post
	for _, p := range posts {
		if p.AuthorID == authorID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedTS > out[j].CreatedTS
	})
	return out, nil
}

// GetPostsByHashtag matches a tag case-insensitively ('#' prefix allowed),
// newest first.
func (f *Feed) GetPostsByHashtag(tag string) ([]models.Post, error) {
	want := normalizeTag(tag)
	posts, err := store.ListPosts()
	if err != nil {
		return nil, err
	}
	var out []models.Post
	for _, p := range posts {
		for _, h := range p.Hashtags {
			if h == want {
				out = append(out, p)
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedTS > out[j].CreatedTS
	})
	return out, nil
}

// GetTrendingPosts ranks posts created inside the trending window by
// engagement score descending and truncates to limit.
func (f *Feed) GetTrendingPosts(limit int) ([]models.Post, error) {
	posts, err := store.ListPosts()
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().UTC().Add(-f.cfg.trendingWindow()).UnixNano()
	var out []models.Post
	for _, p := range posts {
		if p.CreatedTS > cutoff {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EngagementScore() > out[j].EngagementScore()
	})
	if limit <= 0 {
		limit = 20
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LikePost toggles a like. A prior dislike from the same user is removed
// first, so the user's net reaction is never both. The post author is
// notified on a fresh like.
func (f *Feed) LikePost(postID, userID string) (models.Post, error) {
	return f.react(postID, userID, true)
}

// DislikePost toggles a dislike, removing any prior like from the user.
func (f *Feed) DislikePost(postID, userID string) (models.Post, error) {
	return f.react(postID, userID, false)
}

func (f *Feed) react(postID, userID string, like bool) (models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, err := f.GetPost(postID)
	if err != nil {
		return models.Post{}, err
	}

	// clear the opposite reaction first
	if like {
		if removed := removeID(&p.DislikedBy, userID); removed {
			p.Dislikes--
		}
	} else {
		if removed := removeID(&p.LikedBy, userID); removed {
			p.Likes--
		}
	}

	var freshLike bool
	if like {
		if removeID(&p.LikedBy, userID) {
			p.Likes--
		} else {
			p.LikedBy = append(p.LikedBy, userID)
			p.Likes++
			freshLike = true
		}
	} else {
		if removeID(&p.DislikedBy, userID) {
			p.Dislikes--
		} else {
			p.DislikedBy = append(p.DislikedBy, userID)
			p.Dislikes++
		}
	}

	if err := store.SavePost(p); err != nil {
		return models.Post{}, err
	}
	if freshLike && p.AuthorID != userID {
		if err := f.createNotification(p.AuthorID, "like", "Your post received a like", p.ID, userID); err != nil {
			return models.Post{}, err
		}
	}
	return p, nil
}

// removeID deletes id from the slice in place, reporting whether it was
// present.
func removeID(ids *[]string, id string) bool {
	for i, v := range *ids {
		if v == id {
			*ids = append((*ids)[:i], (*ids)[i+1:]...)
			return true
		}
	}
	return false
}

// AddReply inserts a reply and bumps the parent's reply counter in the
// same store batch; the counter cannot drift from the stored replies. The
// parent author is notified unless replying to themselves.
func (f *Feed) AddReply(postID, authorID, content string) (models.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, err := f.GetPost(postID)
	if err != nil {
		return models.Reply{}, err
	}
	rep := models.Reply{
		ID:        utils.GenID(),
		PostID:    postID,
		AuthorID:  authorID,
		Content:   content,
		CreatedTS: time.Now().UTC().UnixNano(),
	}
	p.ReplyCount++
	if err := store.SaveReplyWithPost(p, rep); err != nil {
		return models.Reply{}, err
	}
	telemetry.Replies.Inc()
	logger.Info("reply_created", "post", postID, "reply", rep.ID, "author", authorID)
	if p.AuthorID != authorID {
		if err := f.createNotification(p.AuthorID, "reply", "Your post received a reply", p.ID, authorID); err != nil {
			return models.Reply{}, err
		}
	}
	return rep, nil
}

// GetReplies returns a post's replies in insertion order.
func (f *Feed) GetReplies(postID string) ([]models.Reply, error) {
	return store.ListReplies(postID)
}

// CreateNotification delivers a notification to a single recipient.
func (f *Feed) CreateNotification(userID, nType, message, relatedPostID, relatedUserID string) (models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := models.Notification{
		ID:            utils.GenID(),
		UserID:        userID,
		Type:          nType,
		Message:       message,
		RelatedPostID: relatedPostID,
		RelatedUserID: relatedUserID,
		CreatedTS:     time.Now().UTC().UnixNano(),
	}
	if err := store.SaveNotification(n); err != nil {
		return models.Notification{}, err
	}
	telemetry.Notifications.Inc()
	return n, nil
}

// createNotification is the unlocked variant used inside mutating ops.
func (f *Feed) createNotification(userID, nType, message, relatedPostID, relatedUserID string) error {
	n := models.Notification{
		ID:            utils.GenID(),
		UserID:        userID,
		Type:          nType,
		Message:       message,
		RelatedPostID: relatedPostID,
		RelatedUserID: relatedUserID,
		CreatedTS:     time.Now().UTC().UnixNano(),
	}
	if err := store.SaveNotification(n); err != nil {
		return err
	}
	telemetry.Notifications.Inc()
	return nil
}

// GetNotifications returns a recipient's notifications newest first,
// optionally restricted to unread ones.
func (f *Feed) GetNotifications(userID string, unreadOnly bool) ([]models.Notification, error) {
	ns, err := store.ListNotifications(userID)
	if err != nil {
		return nil, err
	}
	if !unreadOnly {
		return ns, nil
	}
	var out []models.Notification
	for _, n := range ns {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out, nil
}

// MarkAllRead flags every unread notification for the recipient. Calling
// it again is a no-op; other recipients are untouched.
func (f *Feed) MarkAllRead(userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return store.MarkNotificationsRead(userID)
}

// HashtagCount is one trending-hashtag row.
type HashtagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Stats is the feed-wide aggregate view.
type Stats struct {
	TotalPosts       int            `json:"total_posts"`
	TotalReplies     int            `json:"total_replies"`
	TrendingHashtags []HashtagCount `json:"trending_hashtags"`
}

// GetStats counts posts and replies and ranks the top ten hashtags by
// occurrence (duplicates within a post each count) over the trending
// window.
func (f *Feed) GetStats() (Stats, error) {
	posts, err := store.ListPosts()
	if err != nil {
		return Stats{}, err
	}
	cutoff := time.Now().UTC().Add(-f.cfg.trendingWindow()).UnixNano()
	counts := map[string]int{}
	totalReplies := 0
	for _, p := range posts {
		totalReplies += p.ReplyCount
		if p.CreatedTS <= cutoff {
			continue
		}
		for _, h := range p.Hashtags {
			counts[h]++
		}
	}
	trending := make([]HashtagCount, 0, len(counts))
	for tag, c := range counts {
		trending = append(trending, HashtagCount{Tag: tag, Count: c})
	}
	sort.SliceStable(trending, func(i, j int) bool {
		if trending[i].Count != trending[j].Count {
			return trending[i].Count > trending[j].Count
		}
		return trending[i].Tag < trending[j].Tag
	})
	if len(trending) > 10 {
		trending = trending[:10]
	}
	return Stats{TotalPosts: len(posts), TotalReplies: totalReplies, TrendingHashtags: trending}, nil
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimPrefix(tag, "#"))
}
