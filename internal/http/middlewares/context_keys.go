package middlewares

type ctxKey string

// CtxRequestID keys the request id on the gin context. The auth middleware
// keeps its own "auth."-prefixed keys next to its helpers.
const CtxRequestID ctxKey = "requestID"
