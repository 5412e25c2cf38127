package notify

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactPath(t *testing.T) {
	assert.Equal(t, "/bot***/sendMessage", redactPath("/bot123456:ABC-def/sendMessage"))
	assert.Equal(t,
		`Post "https://api.telegram.org/bot***/getMe": timeout`,
		redactPath(`Post "https://api.telegram.org/bot123:secret/getMe": timeout`))
	assert.Equal(t, "/health", redactPath("/health"))
}

func TestLogRoundTripsMasksToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	client := &http.Client{Transport: logRoundTrips(logger, http.DefaultTransport)}

	resp, err := client.Get(srv.URL + "/bot42:secret/getMe")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Contains(t, buf.String(), "path=/bot***/getMe")
	assert.Contains(t, buf.String(), "status=418")
	assert.NotContains(t, buf.String(), "secret")
}
