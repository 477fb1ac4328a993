package middleware

import (
	"net/http"
	"runtime/debug"

	"coachdesk-backend/pkg/config"
	"coachdesk-backend/pkg/logging"
	"coachdesk-backend/pkg/utils"

	"github.com/sirupsen/logrus"
)

// Recovery turns panics into logged 500 responses. Stack traces reach the
// client only in development.
func Recovery(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					stack := debug.Stack()

					logging.L().WithFields(logrus.Fields{
						"panic": err,
						"path":  r.URL.Path,
					}).Error(string(stack))

					if cfg.IsDevelopment() {
						utils.WriteErrorResponseWithCode(w, http.StatusInternalServerError,
							"INTERNAL_SERVER_ERROR", "Internal server error", string(stack))
					} else {
						utils.WriteInternalServerErrorResponse(w, "Internal server error occurred")
					}
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
