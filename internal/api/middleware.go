package api

import (
	"net/http"
	"strings"
	"time"

	"airsupport/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-Id"

func requestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(requestIDHeader)); id != "" {
		return id
	}
	return uuid.NewString()
}

// loggingMiddleware tags every request with an id, counts it per endpoint
// and writes one access log line.
func loggingMiddleware(logger *zerolog.Logger, next http.Handler) http.Handler {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "http").Logger()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestID(r)
		w.Header().Set(requestIDHeader, id)

		reqLogger := base.With().Str("request_id", id).Logger()
		r = r.WithContext(reqLogger.WithContext(r.Context()))

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(endpointLabel(r.URL.Path))

		reqLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// endpointLabel folds path parameters away so metric cardinality stays fixed.
func endpointLabel(path string) string {
	switch {
	case path == "/healthz", path == "/readyz", path == toolsPath, path == exportPath:
		return path
	case strings.HasPrefix(path, toolsPrefix):
		return toolsPrefix + "{name}"
	case strings.HasSuffix(path, "/approve"):
		return approvalsPrefix + "{id}/approve"
	case strings.HasSuffix(path, "/deny"):
		return approvalsPrefix + "{id}/deny"
	case strings.HasPrefix(path, approvalsPrefix):
		return approvalsPrefix + "{id}"
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
