package server

import (
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/RyanBlaney/sonido-chords/logging"
)

// requestLogger logs each request once it completes and threads the request
// id into the context so downstream loggers pick it up
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := middleware.GetReqID(r.Context())

		ctx := logging.ContextWithFields(r.Context(), logging.Fields{"request_id": reqID})
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		fields := logging.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"bytes":    humanize.Bytes(uint64(ww.BytesWritten())),
			"duration": time.Since(start).String(),
			"remote":   r.RemoteAddr,
		}

		logger := s.logger.WithContext(ctx)
		switch {
		case ww.Status() >= http.StatusInternalServerError:
			logger.Warn("Request failed", fields)
		default:
			logger.Info("Request handled", fields)
		}
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.AllowedOrigin != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", s.config.AllowedOrigin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
