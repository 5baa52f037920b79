// middleware/recovery.go
package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"beatspace/utils"
)

// RecoveryMiddleware recovers from panics
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic recovered", "event", "panic", "path", r.URL.Path, "panic", err, "stack", string(debug.Stack()))
				utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
