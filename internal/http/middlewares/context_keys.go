package middlewares

// gin context keys shared between middleware and handlers
const (
	CtxRequestID = "requestID"
	CtxUserID    = "auth.userID"
	CtxEmail     = "auth.email"
)
