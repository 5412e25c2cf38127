package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/internal/auth"
	"tradejournal/internal/defaults"
	"tradejournal/internal/events"
	"tradejournal/internal/storage"
	"tradejournal/internal/upload"
)

type testAPI struct {
	t     *testing.T
	srv   *httptest.Server
	store *storage.Storage
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := storage.Open(context.Background(), storage.Options{
		Driver: storage.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "api.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	defs, err := defaults.Load()
	require.NoError(t, err)

	uploads, err := upload.NewStore(t.TempDir(), 1024, "/uploads/")
	require.NoError(t, err)

	hub := events.NewHub(logger)
	t.Cleanup(hub.Close)

	h := New(Deps{
		Storage:  store,
		Auth:     auth.NewService("test-secret", time.Hour),
		Defaults: defs,
		Uploads:  uploads,
		Hub:      hub,
		Logger:   logger,
	})

	srv := httptest.NewServer(h.SetupRouter(""))
	t.Cleanup(srv.Close)

	return &testAPI{t: t, srv: srv, store: store}
}

// do отправляет JSON-запрос и декодирует JSON-ответ
func (a *testAPI) do(method, path, token string, body any) (int, map[string]any) {
	a.t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)

	return resp.StatusCode, out
}

func (a *testAPI) register(username string) string {
	a.t.Helper()

	status, body := a.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"password": "secret123",
	})
	require.Equal(a.t, http.StatusCreated, status, body)

	return body["token"].(string)
}

func (a *testAPI) createJournal(token, name string) int {
	a.t.Helper()

	status, body := a.do(http.MethodPost, "/api/accounts", token, map[string]any{
		"name":           name,
		"initialBalance": 1000,
	})
	require.Equal(a.t, http.StatusCreated, status, body)

	return int(body["id"].(float64))
}

func trade(side string, journalID int) map[string]any {
	t := map[string]any{
		"symbol":     "eurusd",
		"type":       side,
		"entryPrice": 100,
		"exitPrice":  110,
		"quantity":   1,
		"entryTime":  "2024-03-04T09:15:00Z",
		"exitTime":   "2024-03-04T11:00:00Z",
	}

	if journalID > 0 {
		t["journalId"] = journalID
	}

	return t
}

func listLen(body map[string]any, key string) int {
	items, _ := body[key].([]any)
	return len(items)
}

func TestAuthFlow(t *testing.T) {
	a := newTestAPI(t)
	token := a.register("alice")
	assert.NotEmpty(t, token)

	status, _ := a.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = a.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "bob", "password": "123",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = a.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "alice", "password": "wrong-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := a.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "alice", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", body["username"])

	status, _ = a.do(http.MethodGet, "/api/trades", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = a.do(http.MethodGet, "/api/user/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", body["username"])
	assert.NotContains(t, body, "passwordHash")
}

func TestRegisterSeedsDefaults(t *testing.T) {
	a := newTestAPI(t)
	token := a.register("alice")

	_, body := a.do(http.MethodGet, "/api/setup-types", token, nil)
	assert.Equal(t, 5, listLen(body, "setupTypes"))

	_, body = a.do(http.MethodGet, "/api/checklists", token, nil)
	assert.Equal(t, 4, listLen(body, "checklists"))

	status, body := a.do(http.MethodGet, "/api/settings", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "USD", body["currency"])
}

func TestCreateTradeDerivesPnLPercent(t *testing.T) {
	a := newTestAPI(t)
	token := a.register("alice")
	a.createJournal(token, "Main")

	status, body := a.do(http.MethodPost, "/api/trades", token, trade("buy", 0))
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, 10.0, body["pnlPercent"])
	assert.Equal(t, 10.0, body["pnl"])
	assert.Equal(t, "EURUSD", body["symbol"])

	status, body = a.do(http.MethodPost, "/api/trades", token, trade("short", 0))
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "sell", body["type"])
	assert.Equal(t, -10.0, body["pnlPercent"])

	_, body = a.do(http.MethodGet, "/api/trades", token, nil)
	assert.Equal(t, 2, listLen(body, "trades"))

	bad := trade("buy", 0)
	bad["entryPrice"] = 0
	status, _ = a.do(http.MethodPost, "/api/trades", token, bad)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCreateTradeWithoutJournal(t *testing.T) {
	a := newTestAPI(t)
	token := a.register("alice")

	status, body := a.do(http.MethodPost, "/api/trades", token, trade("buy", 0))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "no active journal")
}

func TestTradeLifecycle(t *testing.T) {
	a := newTestAPI(t)
	token := a.register("alice")
	a.createJournal(token, "Main")

	_, body := a.do(http.MethodPost, "/api/trades", token, trade("buy", 0))
	id := int(body["id"].(float64))

	updated := trade("buy", 0)
	updated["exitPrice"] = 120
	updated["notes"] = "moved target"

	status, body := a.do(http.MethodPut, fmt.Sprintf("/api/trades/%d", id), token, updated)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, 20.0, body["pnlPercent"])

	status, body = a.do(http.MethodGet, fmt.Sprintf("/api/trades/%d", id), token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "moved target", body["notes"])

	other := a.register("bob")
	status, _ = a.do(http.MethodGet, fmt.Sprintf("/api/trades/%d", id), other, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = a.do(http.MethodDelete, fmt.Sprintf("/api/trades/%d", id), token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = a.do(http.MethodGet, fmt.Sprintf("/api/trades/%d", id), token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDeleteJournalCascades(t *testing.T) {
	a := newTestAPI(t)
	token := a.register("alice")
	first := a.createJournal(token, "Main")
	second := a.createJournal(token, "Prop")

	status, body := a.do(http.MethodPost, "/api/trades", token, trade("buy", second))
	require.Equal(t, http.StatusCreated, status, body)

	status, body = a.do(http.MethodDelete, fmt.Sprintf("/api/accounts/%d", second), token, nil)
	require.Equal(t, http.StatusOK, status, body)

	_, body = a.do(http.MethodGet, "/api/trades", token, nil)
	assert.Equal(t, 0, listLen(body, "trades"))

	status, body = a.do(http.MethodDelete, fmt.Sprintf("/api/accounts/%d", first), token, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, body["error"], "last journal")
}

func TestDeleteActiveJournalPromotes(t *testing.T) {
	a := newTestAPI(t)
	token := a.register("alice")
	first := a.createJournal(token, "Main")
	second := a.createJournal(token, "Prop")

	status, _ := a.do(http.MethodDelete, fmt.Sprintf("/api/accounts/%d", first), token, nil)
	require.Equal(t, http.StatusOK, status)

	_, body := a.do(http.MethodGet, fmt.Sprintf("/api/accounts/%d", second), token, nil)
	assert.Equal(t, true, body["isActive"])
}

func TestJournalTransitions(t *testing.T) {
	a := newTestAPI(t)
	token := a.register("alice")
	first := a.createJournal(token, "Main")
	second := a.createJournal(token, "Prop")

	for i := 0; i < 2; i++ {
		status, body := a.do(http.MethodPost, fmt.Sprintf("/api/accounts/%d/activate", second), token, nil)
		require.Equal(t, http.StatusOK, status, body)
		assert.Equal(t, true, body["isActive"])
	}

	_, body := a.do(http.MethodGet, "/api/accounts", token, nil)
	active := 0
	for _, j := range body["journals"].([]any) {
		if j.(map[string]any)["isActive"] == true {
			active++
		}
	}
	assert.Equal(t, 1, active)

	status, body := a.do(http.MethodPost, fmt.Sprintf("/api/accounts/%d/blow", first), token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["isBlown"])

	status, _ = a.do(http.MethodPost, "/api/trades", token, trade("buy", first))
	assert.Equal(t, http.StatusConflict, status)
}

func TestImportIsAllOrNothing(t *testing.T) {
	a := newTestAPI(t)
	token := a.register("alice")
	a.createJournal(token, "Main")

	broken := trade("buy", 0)
	delete(broken, "symbol")

	status, body := a.do(http.MethodPost, "/api/trades/import", token, map[string]any{
		"trades": []any{trade("buy", 0), broken},
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "trade 2")

	_, body = a.do(http.MethodGet, "/api/trades", token, nil)
	assert.Equal(t, 0, listLen(body, "trades"))

	status, body = a.do(http.MethodPost, "/api/trades/import", token, map[string]any{
		"trades": []any{trade("buy", 0), trade("sell", 0)},
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, 2.0, body["imported"])
}

func TestNoTradeDayDateNormalization(t *testing.T) {
	a := newTestAPI(t)
	token := a.register("alice")

	status, body := a.do(http.MethodPost, "/api/no-trade-days", token, map[string]any{
		"date":  "2024-03-05T12:34:56.000Z",
		"notes": "rest",
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "2024-03-05", body["date"])
	id := body["id"]

	status, body = a.do(http.MethodPost, "/api/no-trade-days", token, map[string]any{
		"date":  body["date"],
		"notes": "still resting",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "2024-03-05", body["date"])
	assert.Equal(t, id, body["id"])

	_, body = a.do(http.MethodGet, "/api/no-trade-days?from=2024-03-01&to=2024-03-31", token, nil)
	require.Equal(t, 1, listLen(body, "noTradeDays"))

	status, _ = a.do(http.MethodPost, "/api/no-trade-days", token, map[string]any{"date": "05/03/2024"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestChecklistToggle(t *testing.T) {
	a := newTestAPI(t)
	token := a.register("alice")

	status, body := a.do(http.MethodPost, "/api/checklists", token, map[string]any{
		"name":  "Entry",
		"type":  "pre",
		"items": []map[string]any{{"text": "Trend"}, {"text": "Level"}},
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, 0.0, body["completionRate"])

	id := int(body["id"].(float64))
	itemID := body["items"].([]any)[0].(map[string]any)["id"].(string)

	status, body = a.do(http.MethodPost, fmt.Sprintf("/api/checklists/%d/items/%s/toggle", id, itemID), token, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, 50.0, body["completionRate"])

	status, _ = a.do(http.MethodPost, fmt.Sprintf("/api/checklists/%d/items/missing/toggle", id), token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = a.do(http.MethodPost, "/api/checklists", token, map[string]any{"name": "Bad", "type": "weekly"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestChangePassword(t *testing.T) {
	a := newTestAPI(t)
	token := a.register("alice")

	status, _ := a.do(http.MethodPut, "/api/user/password", token, map[string]string{
		"currentPassword": "nope-nope", "newPassword": "newsecret1",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = a.do(http.MethodPut, "/api/user/password", token, map[string]string{
		"currentPassword": "secret123", "newPassword": "abc",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = a.do(http.MethodPut, "/api/user/password", token, map[string]string{
		"currentPassword": "secret123", "newPassword": "newsecret1",
	})
	require.Equal(t, http.StatusOK, status)

	status, _ = a.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "alice", "password": "newsecret1",
	})
	assert.Equal(t, http.StatusOK, status)
}

func TestSettingsUpdate(t *testing.T) {
	a := newTestAPI(t)
	token := a.register("alice")

	status, body := a.do(http.MethodPut, "/api/settings", token, map[string]any{
		"currency":    "eur",
		"preferences": map[string]any{"theme": "neon", "numberPrecision": 4},
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "EUR", body["currency"])

	_, body = a.do(http.MethodGet, "/api/settings", token, nil)
	prefs := body["preferences"].(map[string]any)
	assert.Equal(t, "neon", prefs["theme"])
	assert.Equal(t, 4.0, prefs["numberPrecision"])

	status, _ = a.do(http.MethodPut, "/api/settings", token, map[string]any{
		"preferences": map[string]any{"pnlColorScheme": "purple"},
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDashboardAndChart(t *testing.T) {
	a := newTestAPI(t)
	token := a.register("alice")
	a.createJournal(token, "Main")

	_, _ = a.do(http.MethodPost, "/api/trades", token, trade("buy", 0))

	status, body := a.do(http.MethodGet, "/api/analytics/dashboard", token, nil)
	require.Equal(t, http.StatusOK, status, body)
	summary := body["summary"].(map[string]any)
	assert.Equal(t, 1.0, summary["totalTrades"])
	assert.Equal(t, 1010.0, summary["balance"])

	// кэш сбрасывается после новой сделки
	_, _ = a.do(http.MethodPost, "/api/trades", token, trade("sell", 0))
	_, body = a.do(http.MethodGet, "/api/analytics/dashboard", token, nil)
	assert.Equal(t, 2.0, body["summary"].(map[string]any)["totalTrades"])

	req, err := http.NewRequest(http.MethodGet, a.srv.URL+"/api/analytics/charts/equity.svg?style=area", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	svg, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(svg), "<path class=\"series\"")

	status, _ = a.do(http.MethodGet, "/api/analytics/charts/unknown.svg", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUpload(t *testing.T) {
	a := newTestAPI(t)
	token := a.register("alice")

	send := func(name string, content []byte) (int, map[string]any) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, _ = fw.Write(content)
		require.NoError(t, mw.Close())

		req, err := http.NewRequest(http.MethodPost, a.srv.URL+"/api/upload", &buf)
		require.NoError(t, err)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		var out map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&out)

		return resp.StatusCode, out
	}

	status, body := send("chart.PNG", []byte("png-bytes"))
	require.Equal(t, http.StatusCreated, status, body)

	url := body["url"].(string)
	assert.True(t, strings.HasPrefix(url, "/uploads/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	resp, err := http.Get(a.srv.URL + url)
	require.NoError(t, err)
	content, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "png-bytes", string(content))

	status, _ = send("virus.exe", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = send("big.png", bytes.Repeat([]byte("a"), 2048))
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
}

func TestHealthAndRequestID(t *testing.T) {
	a := newTestAPI(t)

	resp, err := http.Get(a.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req, err := http.NewRequest(http.MethodOptions, a.srv.URL+"/api/trades", nil)
	require.NoError(t, err)

	preflight, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer preflight.Body.Close()

	assert.Equal(t, http.StatusNoContent, preflight.StatusCode)
	assert.Equal(t, "*", preflight.Header.Get("Access-Control-Allow-Origin"))
}
