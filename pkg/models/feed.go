package models

// PostType tags the flavor of a feed post.
type PostType string

const (
	PostGeneral   PostType = "general"
	PostTestimony PostType = "testimony"
	PostProphecy  PostType = "prophecy"
	PostMiracle   PostType = "miracle"
)

// Post is the Social Feed Engine's aggregate root. Hashtags are stored
// lower-cased and keep duplicates so trending counts stay accurate;
// mentions are stored verbatim. A user's net reaction is always one of
// {none, liked, disliked}.
type Post struct {
	ID         string   `json:"id"`
	AuthorID   string   `json:"author_id"`
	Content    string   `json:"content"`
	Type       PostType `json:"type"`
	Hashtags   []string `json:"hashtags"`
	Mentions   []string `json:"mentions"`
	Likes      int      `json:"likes"`
	Dislikes   int      `json:"dislikes"`
	LikedBy    []string `json:"liked_by"`
	DislikedBy []string `json:"disliked_by"`
	ReplyCount int      `json:"reply_count"`
	CreatedTS  int64    `json:"created_ts"`
}

// EngagementScore ranks a post for trending: net reactions plus twice the
// reply count.
func (p *Post) EngagementScore() int {
	return (p.Likes - p.Dislikes) + 2*p.ReplyCount
}

// Reply belongs to exactly one post; creating one increments the parent's
// ReplyCount in the same write.
type Reply struct {
	ID        string `json:"id"`
	PostID    string `json:"post_id"`
	AuthorID  string `json:"author_id"`
	Content   string `json:"content"`
	Likes     int    `json:"likes"`
	CreatedTS int64  `json:"created_ts"`
}

// Notification is delivered to a single recipient and starts unread.
type Notification struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Type          string `json:"type"`
	Message       string `json:"message"`
	RelatedPostID string `json:"related_post_id,omitempty"`
	RelatedUserID string `json:"related_user_id,omitempty"`
	Read          bool   `json:"read"`
	CreatedTS     int64  `json:"created_ts"`
}
