package middleware

import (
	"net/http"
	"time"

	"github.com/effective-security/xlog"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/basakesin/mri-defacing-platform/internal/api/ctxkeys"
	"github.com/basakesin/mri-defacing-platform/internal/infra/logging"
)

var logger = logging.NewPackageLogger("http")

// AccessLog writes one structured record per request after the handler returns.
// 5xx responses are logged at ERROR, 4xx at WARNING and the rest at INFO.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)

		kv := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.statusCode,
			"bytes", recorder.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote", r.RemoteAddr,
		}
		if id := chimw.GetReqID(r.Context()); id != "" {
			kv = append(kv, "request_id", id)
		}
		if sub := ctxkeys.String(r.Context(), ctxkeys.Subject); sub != "" {
			kv = append(kv, "subject", sub)
		}
		if jobID := recorder.Header().Get("X-Job-ID"); jobID != "" {
			kv = append(kv, "job", jobID)
		}
		logger.KV(levelFromStatus(recorder.statusCode), kv...)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	bytes       int64
	wroteHeader bool
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.statusCode = statusCode
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func levelFromStatus(statusCode int) xlog.LogLevel {
	switch {
	case statusCode >= http.StatusInternalServerError:
		return xlog.ERROR
	case statusCode >= http.StatusBadRequest:
		return xlog.WARNING
	default:
		return xlog.INFO
	}
}
