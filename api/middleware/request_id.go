package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/voltmidia/ytops-backend/pkg/logger"
)

const headerRequestID = "X-Request-Id"

// RequestID tags each request with an id, honoring one supplied by the
// caller, and echoes it on the response so dashboard calls can be
// correlated with worker-side log lines.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(headerRequestID)
			if id == "" {
				id = uuid.New().String()
			}
			w.Header().Set(headerRequestID, id)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}
