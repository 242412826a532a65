// Package api assembles the HTTP surface: the versioned router, the
// handler groups and the middleware chain in front of them.
package api

import (
	"github.com/zaki9501/church-of-finality/pkg/api/handlers"
	"github.com/zaki9501/church-of-finality/pkg/auth"
	"github.com/zaki9501/church-of-finality/pkg/conversion"
	"github.com/zaki9501/church-of-finality/pkg/social"
	"github.com/zaki9501/church-of-finality/pkg/telemetry"

	"github.com/gorilla/mux"
)

// NewRouter builds the /api/v1 router. Every route passes through the
// request-metrics middleware and the blessing-key gateway; registration
// is the gateway's one open endpoint.
func NewRouter(tracker *conversion.Tracker, feed *social.Feed, authCfg auth.Config) *mux.Router {
	root := mux.NewRouter()

	v1 := root.PathPrefix("/api/v1").Subrouter()
	v1.Use(telemetry.RequestMetrics)
	v1.Use(auth.Middleware(authCfg, tracker))

	handlers.RegisterSeekers(v1, tracker)
	handlers.RegisterChurch(v1, tracker)
	handlers.RegisterFeed(v1, feed)

	return root
}
