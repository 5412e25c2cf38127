package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/internal/config"
	"tradejournal/internal/models"
	"tradejournal/internal/storage"
)

const tradesCSV = `Symbol,Side,Entry Price,Exit Price,Entry Time,Exit Time,Qty,Emotions,Notes
btcusdt,long,100,110,2024-03-04 10:00,2024-03-04 12:00,2,"calm, focused",breakout
ethusdt,short,50,55,2024-03-04 13:00,2024-03-04 14:00,1,,
`

type testCLI struct {
	t   *testing.T
	cfg *config.Config
	dir string
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()

	dir := t.TempDir()

	cfg, err := config.Parse(map[string]string{
		"DB_DSN":     filepath.Join(dir, "cli.db"),
		"UPLOAD_DIR": filepath.Join(dir, "uploads"),
	})
	require.NoError(t, err)

	return &testCLI{t: t, cfg: cfg, dir: dir}
}

func (c *testCLI) run(args ...string) (string, error) {
	c.t.Helper()

	rc := &RootConfig{
		Config:  c.cfg,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Version: "test",
	}

	var out bytes.Buffer

	cmd := NewRoot(rc)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func (c *testCLI) mustRun(args ...string) string {
	c.t.Helper()

	out, err := c.run(args...)
	require.NoError(c.t, err, out)

	return out
}

func (c *testCLI) store() *storage.Storage {
	c.t.Helper()

	s, err := storage.Open(context.Background(), storage.Options{
		Driver: storage.DriverSQLite,
		DSN:    c.cfg.DBDSN,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(c.t, err)
	c.t.Cleanup(func() { _ = s.Close() })

	return s
}

func (c *testCLI) writeFile(name, content string) string {
	c.t.Helper()

	path := filepath.Join(c.dir, name)
	require.NoError(c.t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestReadCSVTradesAliases(t *testing.T) {
	trades, err := readCSVTrades(strings.NewReader("\ufeff" + tradesCSV))
	require.NoError(t, err)
	require.Len(t, trades, 2)

	first := trades[0]
	assert.Equal(t, "BTCUSDT", first.Symbol)
	assert.Equal(t, models.TradeBuy, first.Type)
	assert.Equal(t, 2.0, first.Quantity)
	assert.Equal(t, []string{"calm", "focused"}, first.Emotions)
	assert.Equal(t, "breakout", first.Notes)
	require.NotNil(t, first.PnL)
	assert.InDelta(t, 20.0, *first.PnL, 1e-9)
	require.NotNil(t, first.PnLPercent)
	assert.InDelta(t, 10.0, *first.PnLPercent, 1e-9)

	second := trades[1]
	assert.Equal(t, models.TradeSell, second.Type)
	require.NotNil(t, second.PnL)
	assert.InDelta(t, -5.0, *second.PnL, 1e-9)
	assert.Empty(t, second.Emotions)
}

func TestReadCSVTradesReportsRow(t *testing.T) {
	data := "symbol,type,entry_price,entry_time,quantity\n" +
		"BTCUSDT,buy,100,2024-03-04,1\n" +
		"ETHUSDT,buy,,2024-03-04,1\n"

	_, err := readCSVTrades(strings.NewReader(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
	assert.Contains(t, err.Error(), "entryPrice")

	_, err = readCSVTrades(strings.NewReader(""))
	assert.Error(t, err)
}

func TestUserCreateAndResetPassword(t *testing.T) {
	c := newTestCLI(t)

	out := c.mustRun("user", "create", "--username", "alice", "--password", "secret123")
	assert.Contains(t, out, `user "alice" created`)

	_, err := c.run("user", "create", "--username", "alice", "--password", "secret123")
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = c.run("user", "create", "--username", "bob", "--password", "123")
	assert.Error(t, err)

	out = c.mustRun("user", "reset-password", "--user", "alice", "--password", "another-secret")
	assert.Contains(t, out, "password updated")

	_, err = c.run("user", "reset-password", "--user", "nobody", "--password", "another-secret")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	store := c.store()
	user, err := store.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)

	setupTypes, err := store.ListSetupTypes(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, setupTypes)
}

func TestImportExportRoundTrip(t *testing.T) {
	c := newTestCLI(t)
	ctx := context.Background()

	c.mustRun("user", "create", "--username", "alice", "--password", "secret123")

	csvPath := c.writeFile("trades.csv", tradesCSV)

	_, err := c.run("import", "--user", "alice", csvPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active journal")

	store := c.store()
	user, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)

	primary := models.Journal{UserID: user.ID, Name: "Main", AccountType: "personal", InitialBalance: 1000, Currency: "USD"}
	require.NoError(t, store.CreateJournal(ctx, &primary))

	other := models.Journal{UserID: user.ID, Name: "Other", AccountType: "demo", InitialBalance: 500, Currency: "USD"}
	require.NoError(t, store.CreateJournal(ctx, &other))

	out := c.mustRun("import", "--user", "alice", csvPath)
	assert.Contains(t, out, "imported 2 trades")

	count, err := store.CountTrades(ctx, user.ID, primary.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	exportPath := filepath.Join(c.dir, "export.csv")
	c.mustRun("export", "--user", "alice", "--journal", "0", "-o", exportPath)

	exported, err := os.Open(exportPath)
	require.NoError(t, err)
	defer exported.Close()

	trades, err := readCSVTrades(exported)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "BTCUSDT", trades[0].Symbol)
	assert.Equal(t, primary.ID, trades[0].JournalID)
	assert.Equal(t, []string{"calm", "focused"}, trades[0].Emotions)

	// Повторный импорт выгрузки в другой журнал
	out = c.mustRun("import", "--user", "alice", "--journal", strconv.Itoa(other.ID), exportPath)
	assert.Contains(t, out, "imported 2 trades")

	count, err = store.CountTrades(ctx, user.ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	out = c.mustRun("export", "--user", "alice", "--journal", strconv.Itoa(other.ID), "--format", "yaml")
	assert.Contains(t, out, "symbol: BTCUSDT")
	assert.Contains(t, out, "2024-03-04T10:00:00Z")
	assert.Equal(t, 2, strings.Count(out, "symbol:"))

	_, err = c.run("export", "--user", "alice", "--format", "xml")
	assert.Error(t, err)
}

func TestImportIsAllOrNothing(t *testing.T) {
	c := newTestCLI(t)
	ctx := context.Background()

	c.mustRun("user", "create", "--username", "alice", "--password", "secret123")

	store := c.store()
	user, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)

	j := models.Journal{UserID: user.ID, Name: "Main", AccountType: "personal", InitialBalance: 1000, Currency: "USD"}
	require.NoError(t, store.CreateJournal(ctx, &j))

	path := c.writeFile("bad.csv", "symbol,type,entry_price,entry_time,quantity,journal_id\n"+
		"BTCUSDT,buy,100,2024-03-04,1,\n"+
		"ETHUSDT,buy,100,2024-03-04,1,9999\n")

	_, err = c.run("import", "--user", "alice", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Contains(t, err.Error(), "trade 2")

	count, err := store.CountTrades(ctx, user.ID, j.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMigrateAndSnapshot(t *testing.T) {
	c := newTestCLI(t)
	ctx := context.Background()

	out := c.mustRun("migrate")
	assert.Contains(t, out, "schema version:")

	c.mustRun("user", "create", "--username", "alice", "--password", "secret123")

	out = c.mustRun("migrate", "--backfill", "--cleanup-placeholders")
	assert.Contains(t, out, "placeholder settings removed: 0")
	assert.Contains(t, out, "settings created: 0")
	assert.Contains(t, out, "setup types seeded: 0, checklists seeded: 0")

	store := c.store()
	user, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)

	j := models.Journal{UserID: user.ID, Name: "Main", AccountType: "personal", InitialBalance: 1000, Currency: "USD"}
	require.NoError(t, store.CreateJournal(ctx, &j))

	c.mustRun("import", "--user", "alice", c.writeFile("trades.csv", tradesCSV))

	out = c.mustRun("snapshot", "--date", "2024-03-04", "--silent")
	assert.Contains(t, out, "2024-03-04: 1 snapshots recorded")

	snaps, err := store.ListDailySnapshots(ctx, user.ID, j.ID, "2024-03-01", "2024-03-31")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 2, snaps[0].Trades)

	_, err = c.run("snapshot", "--date", "04.03.2024")
	assert.Error(t, err)
}

func TestCSVKeepsChecklistSnapshots(t *testing.T) {
	exit := 110.0
	trade := models.Trade{
		JournalID:  3,
		Symbol:     "BTCUSDT",
		Type:       models.TradeBuy,
		EntryPrice: 100,
		ExitPrice:  &exit,
		EntryTime:  time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
		Quantity:   1,
		ChecklistSnapshots: []models.ChecklistSnapshot{{
			ChecklistID: 7,
			Name:        "Pre-market",
			Items: []models.ChecklistItem{
				{ID: "a", Text: "Check news, calendar", Completed: true},
				{ID: "b", Text: "Mark \"levels\"", Completed: false},
			},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, writeCSVTrades(&buf, []models.Trade{trade}))

	trades, err := readCSVTrades(&buf)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	snaps := trades[0].ChecklistSnapshots
	require.Len(t, snaps, 1)
	assert.Equal(t, 7, snaps[0].ChecklistID)
	assert.Equal(t, "Pre-market", snaps[0].Name)
	assert.Equal(t, trade.ChecklistSnapshots[0].Items, snaps[0].Items)
	assert.InDelta(t, 50.0, snaps[0].CompletionRate, 1e-9)
}

func TestReadCSVTradesRejectsBadSnapshotJSON(t *testing.T) {
	data := "symbol,type,entry_price,entry_time,quantity,checklist_snapshots\n" +
		"BTCUSDT,buy,100,2024-03-04,1,[{\n"

	_, err := readCSVTrades(strings.NewReader(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")
}

func TestStorageOptionsFromConfig(t *testing.T) {
	cfg, err := config.Parse(map[string]string{
		"DB_DRIVER":            "postgres",
		"DB_DSN":               "postgres://localhost/journal",
		"DB_MAX_OPEN_CONNS":    "25",
		"DB_CONN_MAX_LIFETIME": "5m",
	})
	require.NoError(t, err)

	opts := (&RootConfig{Config: cfg}).storageOptions()
	assert.Equal(t, "postgres", opts.Driver)
	assert.Equal(t, "postgres://localhost/journal", opts.DSN)
	assert.Equal(t, 25, opts.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, opts.ConnMaxLifetime)
}
