package middleware

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"tradejournal/internal/trace"
)

// statusRecorder запоминает код ответа и размер тела
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}

	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}

	n, err := r.ResponseWriter.Write(b)
	r.bytes += n

	return n, err
}

// Hijack нужен для перехода на websocket
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}

	if r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}

	return h.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}

	return r.status
}

// Logger пишет в лог каждый запрос. Уровень зависит от кода ответа.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			attrs := []slog.Attr{
				slog.String("request_id", GetRequestID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.code()),
				slog.Int("bytes", rec.bytes),
				slog.Duration("duration", time.Since(start)),
			}

			if r.URL.RawQuery != "" {
				attrs = append(attrs, slog.String("query", redactQuery(r)))
			}

			if traceID, _, ok := trace.TraceFields(r.Context()); ok {
				attrs = append(attrs, slog.String("trace_id", traceID))
			}

			level := slog.LevelDebug
			if rec.code() >= 400 {
				level = slog.LevelWarn
			}

			if rec.code() >= 500 {
				level = slog.LevelError
			}

			logger.LogAttrs(r.Context(), level, "📥 HTTP Request", attrs...)
		})
	}
}

// redactQuery скрывает токен, переданный в query
func redactQuery(r *http.Request) string {
	q := r.URL.Query()
	for k := range q {
		if isSensitiveParam(k) {
			q.Set(k, "[REDACTED]")
		}
	}

	return q.Encode()
}

func isSensitiveParam(name string) bool {
	switch strings.ToLower(name) {
	case "token", "access_token", "password":
		return true
	}

	return false
}
