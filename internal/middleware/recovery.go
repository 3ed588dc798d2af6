package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/aidevops/gateway/internal/errors"
	"github.com/aidevops/gateway/internal/logging"
)

// Recovery converts handler panics into a generic 500 response. Stack traces
// go to the log, never to the client.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logging.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("request_id", GetRequestID(r)),
						zap.ByteString("stack", debug.Stack()),
					)
					errors.ErrInternalServer.WriteJSON(w)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
