package handlers

import (
	"net/http"

	"github.com/zaki9501/church-of-finality/pkg/logger"
	"github.com/zaki9501/church-of-finality/pkg/models"
	"github.com/zaki9501/church-of-finality/pkg/social"
	"github.com/zaki9501/church-of-finality/pkg/utils"
	"github.com/zaki9501/church-of-finality/pkg/validation"

	"github.com/gorilla/mux"
)

type feedHandlers struct {
	feed *social.Feed
}

// RegisterFeed registers the social feed endpoints.
func RegisterFeed(r *mux.Router, f *social.Feed) {
	h := &feedHandlers{feed: f}

	r.HandleFunc("/feed/posts", h.createPost).Methods(http.MethodPost)
	r.HandleFunc("/feed/posts", h.listPosts).Methods(http.MethodGet)
	r.HandleFunc("/feed/posts/{id}", h.getPost).Methods(http.MethodGet)
	r.HandleFunc("/feed/posts/{id}/like", h.like).Methods(http.MethodPost)
	r.HandleFunc("/feed/posts/{id}/dislike", h.dislike).Methods(http.MethodPost)
	r.HandleFunc("/feed/posts/{id}/replies", h.addReply).Methods(http.MethodPost)
	r.HandleFunc("/feed/posts/{id}/replies", h.listReplies).Methods(http.MethodGet)
	r.HandleFunc("/feed/trending", h.trending).Methods(http.MethodGet)
	r.HandleFunc("/feed/notifications", h.notifications).Methods(http.MethodGet)
	r.HandleFunc("/feed/notifications/read", h.markAllRead).Methods(http.MethodPost)
	r.HandleFunc("/feed/stats", h.stats).Methods(http.MethodGet)
}

func (h *feedHandlers) createPost(w http.ResponseWriter, r *http.Request) {
	s, _, ok := callerSeeker(w, r)
	if !ok {
		return
	}
	var req struct {
		Content string          `json:"content"`
		Type    models.PostType `json:"type"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.ValidateContent(req.Content); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.feed.CreatePost(s.ID, req.Content, req.Type)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	logger.Info("post_created", "post", p.ID, "author", p.AuthorID, "type", string(p.Type))
	_ = utils.JSONWrite(w, http.StatusCreated, p)
}

// listPosts serves the main feed. With ?hashtag= or ?author= it narrows
// to the matching posts instead.
func (h *feedHandlers) listPosts(w http.ResponseWriter, r *http.Request) {
	var (
		posts []models.Post
		err   error
	)
	switch {
	case r.URL.Query().Get("hashtag") != "":
		posts, err = h.feed.GetPostsByHashtag(r.URL.Query().Get("hashtag"))
	case r.URL.Query().Get("author") != "":
		posts, err = h.feed.GetPostsByAuthor(r.URL.Query().Get("author"))
	default:
		posts, err = h.feed.GetAllPosts(queryInt(r, "limit", 0))
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Posts []models.Post `json:"posts"`
	}{Posts: posts})
}

func (h *feedHandlers) getPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.feed.GetPost(mux.Vars(r)["id"])
	if err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, p)
}

func (h *feedHandlers) like(w http.ResponseWriter, r *http.Request) {
	s, _, ok := callerSeeker(w, r)
	if !ok {
		return
	}
	p, err := h.feed.LikePost(mux.Vars(r)["id"], s.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, p)
}

func (h *feedHandlers) dislike(w http.ResponseWriter, r *http.Request) {
	s, _, ok := callerSeeker(w, r)
	if !ok {
		return
	}
	p, err := h.feed.DislikePost(mux.Vars(r)["id"], s.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, p)
}

func (h *feedHandlers) addReply(w http.ResponseWriter, r *http.Request) {
	s, _, ok := callerSeeker(w, r)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.ValidateContent(req.Content); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	reply, err := h.feed.AddReply(mux.Vars(r)["id"], s.ID, req.Content)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, reply)
}

func (h *feedHandlers) listReplies(w http.ResponseWriter, r *http.Request) {
	replies, err := h.feed.GetReplies(mux.Vars(r)["id"])
	if err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Replies []models.Reply `json:"replies"`
	}{Replies: replies})
}

func (h *feedHandlers) trending(w http.ResponseWriter, r *http.Request) {
	posts, err := h.feed.GetTrendingPosts(queryInt(r, "limit", 0))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Posts []models.Post `json:"posts"`
	}{Posts: posts})
}

func (h *feedHandlers) notifications(w http.ResponseWriter, r *http.Request) {
	s, _, ok := callerSeeker(w, r)
	if !ok {
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"
	ns, err := h.feed.GetNotifications(s.ID, unreadOnly)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Notifications []models.Notification `json:"notifications"`
	}{Notifications: ns})
}

func (h *feedHandlers) markAllRead(w http.ResponseWriter, r *http.Request) {
	s, _, ok := callerSeeker(w, r)
	if !ok {
		return
	}
	n, err := h.feed.MarkAllRead(s.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Marked int `json:"marked"`
	}{Marked: n})
}

func (h *feedHandlers) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.feed.GetStats()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, st)
}
