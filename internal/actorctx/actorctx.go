package actorctx

import (
	"context"

	"github.com/geocoder89/estategate/internal/domain/user"
)

type ctxKey int

const (
	keyIdentity ctxKey = iota
	keyRequestID
)

func WithIdentity(ctx context.Context, id user.Identity) context.Context {
	return context.WithValue(ctx, keyIdentity, id)
}

func IdentityFrom(ctx context.Context) (user.Identity, bool) {
	v, ok := ctx.Value(keyIdentity).(user.Identity)

	return v, ok && v.UserID != ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

func RequestIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRequestID).(string)

	return v, ok && v != ""
}
