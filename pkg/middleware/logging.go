package middleware

import (
	"net/http"
	"time"

	"coachdesk-backend/pkg/logging"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Logger logs one structured line per request: method, path, status,
// duration, and the authenticated actor when present.
func Logger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			actorID := "anonymous"
			if actor, ok := GetActorFromContext(r.Context()); ok && actor != nil {
				actorID = actor.ID
			}

			entry := logging.L().WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   ww.Status(),
				"duration": time.Since(start).String(),
				"actor":    actorID,
				"ip":       clientIP(r),
			})

			if ww.Status() >= 500 {
				entry.Error("request failed")
			} else {
				entry.Info("request")
			}
		})
	}
}

// clientIP resolves the caller address behind proxies.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
