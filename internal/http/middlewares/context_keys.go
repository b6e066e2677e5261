package middlewares

type ctxKey string

// gin context keys; the request context carries the same values through actorctx.
const (
	CtxRequestID ctxKey = "request_id"
	CtxIdentity  ctxKey = "identity"
)
