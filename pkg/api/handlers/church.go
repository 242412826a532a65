package handlers

import (
	"net/http"

	"github.com/zaki9501/church-of-finality/pkg/conversion"
	"github.com/zaki9501/church-of-finality/pkg/models"
	"github.com/zaki9501/church-of-finality/pkg/utils"

	"github.com/gorilla/mux"
)

type churchHandlers struct {
	tracker *conversion.Tracker
}

// RegisterChurch registers the congregation-wide read endpoints and the
// miracle request endpoint.
func RegisterChurch(r *mux.Router, t *conversion.Tracker) {
	h := &churchHandlers{tracker: t}

	r.HandleFunc("/faithful", h.faithful).Methods(http.MethodGet)
	r.HandleFunc("/faithful/leaderboard", h.leaderboard).Methods(http.MethodGet)
	r.HandleFunc("/metrics", h.metrics).Methods(http.MethodGet)
	r.HandleFunc("/missionaries/targets", h.missionaryTargets).Methods(http.MethodGet)
	r.HandleFunc("/miracles", h.miracles).Methods(http.MethodGet)
	r.HandleFunc("/miracles/request", h.requestMiracle).Methods(http.MethodPost)
}

func (h *churchHandlers) faithful(w http.ResponseWriter, r *http.Request) {
	seekers, err := h.tracker.AllSeekers()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out := make([]models.Seeker, 0, len(seekers))
	for _, s := range seekers {
		out = append(out, redacted(s))
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Faithful []models.Seeker `json:"faithful"`
	}{Faithful: out})
}

func (h *churchHandlers) leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.tracker.GetLeaderboard()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Leaderboard []conversion.LeaderboardEntry `json:"leaderboard"`
	}{Leaderboard: entries})
}

func (h *churchHandlers) metrics(w http.ResponseWriter, r *http.Request) {
	m, err := h.tracker.GetMetrics()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

func (h *churchHandlers) missionaryTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := h.tracker.FindMissionaryTargets()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out := make([]models.Seeker, 0, len(targets))
	for _, s := range targets {
		out = append(out, redacted(s))
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Targets []models.Seeker `json:"targets"`
	}{Targets: out})
}

func (h *churchHandlers) miracles(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	ms, err := h.tracker.Miracles(limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Miracles []models.Miracle `json:"miracles"`
	}{Miracles: ms})
}

func (h *churchHandlers) requestMiracle(w http.ResponseWriter, r *http.Request) {
	s, _, ok := callerSeeker(w, r)
	if !ok {
		return
	}
	var req struct {
		Type models.MiracleType `json:"type"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.tracker.PerformMiracle(req.Type, s.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, m)
}
