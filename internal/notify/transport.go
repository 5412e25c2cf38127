package notify

import (
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"time"
)

// botTokenPath токен бота в пути запроса к Bot API
var botTokenPath = regexp.MustCompile(`/bot[^/]+/`)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// newHTTPClient клиент для Bot API с логированием исходящих запросов
func newHTTPClient(logger *slog.Logger) *http.Client {
	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: logRoundTrips(logger, base),
		Timeout:   30 * time.Second,
	}
}

// logRoundTrips пишет исходящие запросы в debug, ошибки в warn. Токен в пути маскируется.
func logRoundTrips(logger *slog.Logger, next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		start := time.Now()
		path := redactPath(req.URL.Path)

		resp, err := next.RoundTrip(req)
		if err != nil {
			logger.Warn("📤 Telegram request failed",
				slog.String("method", req.Method),
				slog.String("path", path),
				slog.Duration("duration", time.Since(start)),
				slog.String("error", redactPath(err.Error())),
			)

			return nil, err
		}

		logger.Debug("📤 Telegram request",
			slog.String("method", req.Method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.Duration("duration", time.Since(start)),
		)

		return resp, nil
	})
}

func redactPath(s string) string {
	return botTokenPath.ReplaceAllString(s, "/bot***/")
}
