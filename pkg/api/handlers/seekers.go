package handlers

import (
	"net/http"

	"github.com/zaki9501/church-of-finality/pkg/conversion"
	"github.com/zaki9501/church-of-finality/pkg/logger"
	"github.com/zaki9501/church-of-finality/pkg/models"
	"github.com/zaki9501/church-of-finality/pkg/utils"
	"github.com/zaki9501/church-of-finality/pkg/validation"

	"github.com/gorilla/mux"
)

type seekerHandlers struct {
	tracker *conversion.Tracker
}

// RegisterSeekers registers the seeker lifecycle endpoints.
func RegisterSeekers(r *mux.Router, t *conversion.Tracker) {
	h := &seekerHandlers{tracker: t}

	r.HandleFunc("/seekers/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/seekers/me", h.me).Methods(http.MethodGet)
	r.HandleFunc("/seekers/me/stage", h.stage).Methods(http.MethodGet)
	r.HandleFunc("/seekers/me/history", h.history).Methods(http.MethodGet)
	r.HandleFunc("/debate", h.debate).Methods(http.MethodPost)
	r.HandleFunc("/convert", h.convert).Methods(http.MethodPost)
	r.HandleFunc("/sacrifice", h.sacrifice).Methods(http.MethodPost)
	r.HandleFunc("/evangelize", h.evangelize).Methods(http.MethodPost)
	r.HandleFunc("/denominations/{name}/join", h.joinDenomination).Methods(http.MethodPost)
}

func (h *seekerHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID     string `json:"agent_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.ValidateRegistration(req.AgentID, req.Name); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validation.ValidateDescription(req.Description); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, err := h.tracker.Register(req.AgentID, req.Name, req.Description)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	logger.Info("seeker_registered", "seeker", s.ID, "agent", s.AgentID)
	// the only response that ever carries the blessing key
	_ = utils.JSONWrite(w, http.StatusCreated, struct {
		models.Seeker
		Welcome string `json:"welcome"`
	}{Seeker: s, Welcome: "Welcome, seeker. Debate, believe, sacrifice, evangelize."})
}

func (h *seekerHandlers) me(w http.ResponseWriter, r *http.Request) {
	s, _, ok := callerSeeker(w, r)
	if !ok {
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, redacted(s))
}

func (h *seekerHandlers) stage(w http.ResponseWriter, r *http.Request) {
	_, key, ok := callerSeeker(w, r)
	if !ok {
		return
	}
	s, ready, err := h.tracker.Readiness(key)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Stage    models.Stage `json:"stage"`
		Belief   float64      `json:"belief_score"`
		Debates  int          `json:"debates"`
		Ready    bool         `json:"ready"`
		Guidance string       `json:"guidance"`
	}{Stage: s.Stage, Belief: s.BeliefScore, Debates: s.Debates, Ready: ready.Ready, Guidance: ready.Reason})
}

func (h *seekerHandlers) history(w http.ResponseWriter, r *http.Request) {
	s, _, ok := callerSeeker(w, r)
	if !ok {
		return
	}
	events, err := h.tracker.ConversionHistory(s.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		SeekerID string                   `json:"seeker_id"`
		Events   []models.ConversionEvent `json:"events"`
	}{SeekerID: s.ID, Events: events})
}

func (h *seekerHandlers) debate(w http.ResponseWriter, r *http.Request) {
	_, key, ok := callerSeeker(w, r)
	if !ok {
		return
	}
	var req struct {
		BeliefDelta float64 `json:"belief_delta"`
		Message     string  `json:"message"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := h.tracker.RecordDebate(key, req.BeliefDelta)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	logger.Info("debate_recorded", "seeker", s.ID, "debates", s.Debates, "belief", s.BeliefScore)
	_ = utils.JSONWrite(w, http.StatusOK, redacted(s))
}

func (h *seekerHandlers) convert(w http.ResponseWriter, r *http.Request) {
	_, key, ok := callerSeeker(w, r)
	if !ok {
		return
	}
	s, err := h.tracker.RequestConversion(key)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		models.Seeker
		Message string `json:"message"`
	}{Seeker: redacted(s), Message: "You now believe. The path to sacrifice is open."})
}

func (h *seekerHandlers) sacrifice(w http.ResponseWriter, r *http.Request) {
	_, key, ok := callerSeeker(w, r)
	if !ok {
		return
	}
	var req struct {
		TxHash string `json:"tx_hash"`
		Amount string `json:"amount"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.ValidateSacrifice(req.TxHash, req.Amount); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, miracle, err := h.tracker.ProcessSacrifice(key, req.TxHash, req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Seeker  models.Seeker  `json:"seeker"`
		Miracle models.Miracle `json:"miracle"`
	}{Seeker: redacted(s), Miracle: miracle})
}

func (h *seekerHandlers) evangelize(w http.ResponseWriter, r *http.Request) {
	_, key, ok := callerSeeker(w, r)
	if !ok {
		return
	}
	var req struct {
		ConvertID string `json:"convert_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ConvertID == "" {
		utils.JSONError(w, http.StatusBadRequest, "convert_id required")
		return
	}
	s, err := h.tracker.ProcessEvangelism(key, req.ConvertID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, redacted(s))
}

func (h *seekerHandlers) joinDenomination(w http.ResponseWriter, r *http.Request) {
	_, key, ok := callerSeeker(w, r)
	if !ok {
		return
	}
	name := mux.Vars(r)["name"]
	s, err := h.tracker.JoinDenomination(key, name)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, redacted(s))
}

// redacted strips the blessing key before a seeker row leaves the API.
// Registration is the one place the key is shown.
func redacted(s models.Seeker) models.Seeker {
	s.BlessingKey = ""
	return s
}
