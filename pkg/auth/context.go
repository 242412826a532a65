package auth

import (
	"context"

	"github.com/zaki9501/church-of-finality/pkg/models"
)

type ctxKey int

const (
	seekerCtxKey ctxKey = iota
	keyCtxKey
)

// WithSeeker stores the authenticated seeker and its blessing key on the
// request context for downstream handlers.
func WithSeeker(ctx context.Context, s models.Seeker, key string) context.Context {
	ctx = context.WithValue(ctx, seekerCtxKey, s)
	return context.WithValue(ctx, keyCtxKey, key)
}

// SeekerFrom returns the seeker attached by the auth middleware, if any.
func SeekerFrom(ctx context.Context) (models.Seeker, bool) {
	s, ok := ctx.Value(seekerCtxKey).(models.Seeker)
	return s, ok
}

// KeyFrom returns the blessing key the request authenticated with.
func KeyFrom(ctx context.Context) (string, bool) {
	k, ok := ctx.Value(keyCtxKey).(string)
	return k, ok
}
