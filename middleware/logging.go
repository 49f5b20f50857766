package middleware

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"notevault/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// RequestLogger tags each request with an ID and logs its outcome once the
// handler returns: info below 400, warn for 4xx, error for 5xx.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		// The identity is attached further down the chain; share a slot so it can be logged here.
		slot := &identitySlot{}
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = context.WithValue(ctx, identitySlotKey, slot)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(ctx))

		user := "anonymous"
		if slot.userID != "" {
			user = slot.userID
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("user", user),
			zap.String("request_id", requestID),
		}
		switch {
		case rec.status >= 500:
			logger.Log.Error("request completed", fields...)
		case rec.status >= 400:
			logger.Log.Warn("request completed", fields...)
		default:
			logger.Log.Info("request completed", fields...)
		}
	})
}

const identitySlotKey contextKey = "identitySlot"

type identitySlot struct {
	userID string
}

// recordIdentity lets the request logger see who the auth middleware resolved.
func recordIdentity(ctx context.Context, userID string) {
	if slot, ok := ctx.Value(identitySlotKey).(*identitySlot); ok {
		slot.userID = userID
	}
}
