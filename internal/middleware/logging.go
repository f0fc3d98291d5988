package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/taskboard/app/internal/logger"
)

// Logging writes one structured line per request. It expects RequestID to
// run first so the line can be correlated.
func Logging(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrap(w)
			entry := logger.WithRequestID(log, GetRequestID(r.Context()))

			entry.Debugf("request started: %s %s", r.Method, r.URL.Path)
			next.ServeHTTP(wrapped, r)

			fields := logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      wrapped.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote_ip":   r.RemoteAddr,
				"user_agent":  r.UserAgent(),
			}
			switch {
			case wrapped.statusCode >= 500:
				entry.WithFields(fields).Error("request completed")
			default:
				entry.WithFields(fields).Info("request completed")
			}
		})
	}
}
