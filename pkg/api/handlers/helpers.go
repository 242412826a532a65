package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/zaki9501/church-of-finality/pkg/auth"
	"github.com/zaki9501/church-of-finality/pkg/conversion"
	"github.com/zaki9501/church-of-finality/pkg/logger"
	"github.com/zaki9501/church-of-finality/pkg/models"
	"github.com/zaki9501/church-of-finality/pkg/social"
	"github.com/zaki9501/church-of-finality/pkg/utils"
)

// writeEngineError maps engine errors onto HTTP statuses. Business
// rejections carry a hint so agents can render the guidance.
func writeEngineError(w http.ResponseWriter, err error) {
	var ne *conversion.NotEligibleError
	switch {
	case errors.As(err, &ne):
		utils.JSONErrorHint(w, http.StatusBadRequest, "not eligible", ne.Guidance)
	case errors.Is(err, conversion.ErrNotFound), errors.Is(err, social.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, conversion.ErrMalformedAmount):
		utils.JSONError(w, http.StatusBadRequest, "amount must be a non-negative integer string")
	case errors.Is(err, conversion.ErrInvalidMiracleType):
		utils.JSONError(w, http.StatusBadRequest, "unknown miracle type")
	case errors.Is(err, conversion.ErrDuplicateRegistration):
		utils.JSONError(w, http.StatusConflict, "agent already registered")
	default:
		logger.Error("handler_store_error", "error", err.Error())
		utils.JSONError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON parses the request body into v, answering 400 itself on
// malformed input.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// callerSeeker returns the seeker the auth middleware attached. Routes
// behind the middleware always have one; a miss is answered with 401.
func callerSeeker(w http.ResponseWriter, r *http.Request) (models.Seeker, string, bool) {
	s, ok := auth.SeekerFrom(r.Context())
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return models.Seeker{}, "", false
	}
	key, _ := auth.KeyFrom(r.Context())
	return s, key, true
}

func queryInt(r *http.Request, name string, def int) int {
	if s := r.URL.Query().Get(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
