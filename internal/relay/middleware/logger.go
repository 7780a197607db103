package middleware

import (
	"log/slog"
	"net/http"
)

// NewRequestLogger creates a middleware that logs details about each incoming request.
func NewRequestLogger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var ip, room string
			if reqMeta, ok := ReqMetadataFrom(r.Context()); ok {
				ip, room = reqMeta.IP, reqMeta.Room
			}

			logger.Info("Incoming HTTP request",
				slog.String("method", r.Method),
				slog.String("uri", r.RequestURI),
				slog.String("ip", ip),
				slog.String("room", room),
			)
			next.ServeHTTP(w, r)
		})
	}
}
