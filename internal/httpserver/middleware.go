package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gitlab.com/timkado/api/wa-property-crm/internal/model"
	"gitlab.com/timkado/api/wa-property-crm/internal/requestctx"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
)

// RequestIDHeader carries the request ID in and out.
const RequestIDHeader = "X-Request-ID"

// requestID reuses an incoming X-Request-ID or generates one, and stores it
// in the context so every log line of the request carries it.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(requestctx.WithRequestID(r.Context(), id)))
	})
}

// operatorActor marks operator API calls so stage changes are attributed correctly.
func operatorActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(requestctx.WithActor(r.Context(), model.ActorOperator)))
	})
}

// accessLog writes one log line per request. Probe and metrics traffic is logged at debug.
func accessLog(base *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			ctx := logger.WithLogger(r.Context(), base)

			defer func() {
				level := zapcore.InfoLevel
				switch {
				case ww.Status() >= http.StatusInternalServerError:
					level = zapcore.ErrorLevel
				case isQuietPath(r.URL.Path):
					level = zapcore.DebugLevel
				}
				logger.FromContext(ctx).Check(level, "HTTP request").Write(
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("remote_addr", r.RemoteAddr),
				)
			}()

			next.ServeHTTP(ww, r.WithContext(ctx))
		})
	}
}

func isQuietPath(path string) bool {
	switch path {
	case "/health", "/ready", "/metrics":
		return true
	}
	return false
}
