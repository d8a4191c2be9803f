package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hoopindex/ratings-pipeline/internal/metrics"
	"github.com/hoopindex/ratings-pipeline/internal/ratings"
)

type requestIDKey struct{}
type callerKey struct{}

// callerHolder lets the auth middleware report the resolved identity
// back out to the request-log middleware that wraps it.
type callerHolder struct {
	name string
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
				)
				s.writeError(w, http.StatusInternalServerError, kindInternal, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		metrics.ObserveHTTPRequest(r.Method, ww.status, time.Since(start))
	})
}

// requestLogMiddleware records every API request, including ones the
// auth and rate-limit layers reject. Rejections carry the anonymous
// caller when no valid key was presented.
func (s *Server) requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		holder := &callerHolder{name: ratings.AnonymousCaller}
		ctx := context.WithValue(r.Context(), callerKey{}, holder)
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r.WithContext(ctx))

		id, _ := r.Context().Value(requestIDKey{}).(string)
		if id == "" {
			id = uuid.NewString()
		}
		entry := ratings.RequestLog{
			ID:        id,
			Timestamp: s.clock.Now(),
			Caller:    holder.name,
			Endpoint:  r.URL.Path,
			Status:    ww.status,
		}
		if err := s.logs.AppendRequestLog(r.Context(), entry); err != nil {
			s.logger.Error("request log append failed",
				zap.String("endpoint", entry.Endpoint),
				zap.Error(err),
			)
		}
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.Auth.Enabled {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		caller, ok := s.cfg.Auth.Keys[key]
		if key == "" || !ok {
			s.writeError(w, http.StatusUnauthorized, kindAuthenticationFailed, ratings.ErrAuthenticationFailed.Error())
			return
		}
		if holder, ok := r.Context().Value(callerKey{}).(*callerHolder); ok {
			holder.name = caller
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware admits up to the configured number of requests per
// caller per fixed window. The window bucket is derived from wall time
// so every replica sharing a Redis backend counts against the same
// bucket.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := ratings.AnonymousCaller
		if holder, ok := r.Context().Value(callerKey{}).(*callerHolder); ok {
			caller = holder.name
		}

		window := s.cfg.RateLimit.Window()
		bucket := s.clock.Now().Unix() / int64(s.cfg.RateLimit.WindowSeconds)
		count, err := s.limits.Incr(r.Context(), caller, bucket, window+time.Second)
		if err != nil {
			// Fail open: a broken counter should not take the API down.
			s.logger.Error("rate limit check failed", zap.String("caller", caller), zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		if count > int64(s.cfg.RateLimit.Limit) {
			metrics.IncRateLimitRejection()
			s.writeError(w, http.StatusTooManyRequests, kindRateLimited, ratings.ErrRateLimitExceeded.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
