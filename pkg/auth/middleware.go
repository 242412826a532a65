package auth

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/zaki9501/church-of-finality/pkg/conversion"
	"github.com/zaki9501/church-of-finality/pkg/logger"
	"github.com/zaki9501/church-of-finality/pkg/models"
	"github.com/zaki9501/church-of-finality/pkg/utils"
)

// Config carries the security settings the gateway enforces.
type Config struct {
	AllowedOrigins []string
	IPWhitelist    []string
	RPS            float64
	Burst          int
}

// Resolver looks up a seeker by its blessing key. The progression
// tracker satisfies this.
type Resolver interface {
	SeekerByKey(key string) (models.Seeker, error)
}

// Middleware authenticates every request with a blessing key carried
// as a bearer token (X-API-Key accepted as fallback). Registration is
// the only open endpoint: a seeker obtains its key there.
func Middleware(cfg Config, resolver Resolver) func(http.Handler) http.Handler {
	// rate limiters keyed by blessing key or remote ip
	limiters := &limiterPool{cfg: cfg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// log request (redacts sensitive headers)
			logger.LogRequest(r)

			// cors preflight
			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,PATCH,OPTIONS")
				w.Header().Set("Access-Control-Max-Age", "600")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type,X-API-Key")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			// ip whitelist
			if len(cfg.IPWhitelist) > 0 {
				ip := clientIP(r)
				logger.Debug("ip_check", "ip", ip)
				if !ipWhitelisted(ip, cfg.IPWhitelist) {
					utils.JSONError(w, http.StatusForbidden, "forbidden")
					logger.Warn("request_blocked", "reason", "ip_not_whitelisted", "ip", ip, "path", r.URL.Path)
					return
				}
			}

			key := extractKey(r)

			// registration is open so a seeker can obtain a blessing key;
			// rate limit by remote ip instead
			if openEndpoint(r) {
				if !limiters.Allow(clientIP(r)) {
					utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
					logger.Warn("rate_limited", "path", r.URL.Path)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if key == "" {
				utils.JSONErrorHint(w, http.StatusUnauthorized, "unauthorized",
					"register first, then send Authorization: Bearer <blessing_key>")
				logger.Warn("request_unauthorized", "path", r.URL.Path, "remote", r.RemoteAddr)
				return
			}

			seeker, err := resolver.SeekerByKey(key)
			if err != nil {
				if errors.Is(err, conversion.ErrNotFound) {
					utils.JSONErrorHint(w, http.StatusUnauthorized, "unauthorized",
						"unknown blessing key; register to receive one")
					logger.Warn("request_unauthorized", "reason", "unknown_key", "path", r.URL.Path)
					return
				}
				utils.JSONError(w, http.StatusInternalServerError, "internal error")
				logger.Error("auth_lookup_failed", "error", err.Error())
				return
			}

			// rate limiting
			if !limiters.Allow(key) {
				utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				logger.Warn("rate_limited", "seeker", seeker.ID, "path", r.URL.Path)
				return
			}

			logger.Info("request_allowed", "method", r.Method, "path", r.URL.Path, "seeker", seeker.ID, "stage", string(seeker.Stage))

			next.ServeHTTP(w, r.WithContext(WithSeeker(r.Context(), seeker, key)))
		})
	}
}

func extractKey(r *http.Request) string {
	// prefer authorization: bearer <key>, fallback to x-api-key
	auth := r.Header.Get("Authorization")
	var key string
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		key = strings.TrimSpace(auth[7:])
	}
	if key == "" {
		key = r.Header.Get("X-API-Key")
	}
	return key
}

func openEndpoint(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	return strings.HasSuffix(r.URL.Path, "/seekers/register")
}

func originAllowed(origin string, allowed []string) bool {
	// check if origin is allowed
	if len(allowed) == 0 {
		return false
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	// get client ip from remoteaddr
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func ipWhitelisted(ip string, list []string) bool {
	// check if ip is in whitelist
	for _, w := range list {
		if ip == w {
			return true
		}
	}
	return false
}
