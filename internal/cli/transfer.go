package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tradejournal/internal/journal"
	"tradejournal/internal/models"
	"tradejournal/internal/storage"
)

// Форматы экспорта
const (
	formatCSV  = "csv"
	formatYAML = "yaml"
)

// csvColumns колонки экспорта; те же имена принимает импорт
var csvColumns = []string{
	"journal_id", "symbol", "type", "entry_price", "exit_price", "entry_time", "exit_time",
	"quantity", "pnl", "pnl_percent", "planned_risk", "r_multiple", "stop_loss", "take_profit",
	"fees", "setup_type", "emotions", "screenshots", "voice_notes", "notes", "checklist_snapshots",
}

// jsonColumns колонки, значение которых - JSON, а не строка
var jsonColumns = map[string]bool{
	"checklist_snapshots": true,
	"checklists":          true,
}

func newImportCmd(rc *RootConfig) *cobra.Command {
	var (
		username  string
		journalID int
	)

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import trades from a CSV file (all rows or none)",
		Long: `import reads trades from a CSV file with a header row. Column names are
matched case-insensitively and accept the same aliases as the REST API
(entry_price or entryPrice, qty or quantity, ...). Rows without a
journal_id go to --journal, or to the active journal when it is omitted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			trades, err := readCSVTrades(f)
			if err != nil {
				return err
			}

			if len(trades) == 0 {
				return errors.New("no trades in file")
			}

			store, err := rc.openStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			userID, err := lookupUser(ctx, store, username)
			if err != nil {
				return err
			}

			if err := assignJournal(ctx, store, userID, journalID, trades); err != nil {
				return err
			}

			if err := store.ImportTrades(ctx, trades); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d trades\n", len(trades))

			return nil
		},
	}

	cmd.Flags().StringVar(&username, "user", "", "owner of the trades")
	cmd.Flags().IntVar(&journalID, "journal", 0, "target journal id, overrides journal_id in the file")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newExportCmd(rc *RootConfig) *cobra.Command {
	var (
		username  string
		journalID int
		format    string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export trades as CSV or YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if format != formatCSV && format != formatYAML {
				return fmt.Errorf("unknown format %q, expected csv or yaml", format)
			}

			store, err := rc.openStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			userID, err := lookupUser(ctx, store, username)
			if err != nil {
				return err
			}

			trades, err := store.ListTrades(ctx, userID, storage.TradeFilter{JournalID: journalID})
			if err != nil {
				return err
			}

			slices.SortStableFunc(trades, func(a, b models.Trade) int {
				return a.EntryTime.Compare(b.EntryTime)
			})

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()

				w = f
			}

			if format == formatYAML {
				return writeYAMLTrades(w, trades)
			}

			return writeCSVTrades(w, trades)
		},
	}

	cmd.Flags().StringVar(&username, "user", "", "owner of the trades")
	cmd.Flags().IntVar(&journalID, "journal", 0, "export only this journal")
	cmd.Flags().StringVar(&format, "format", formatCSV, "csv or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, stdout by default")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

// assignJournal проставляет журнал сделкам без journal_id; override заменяет его у всех
func assignJournal(ctx context.Context, store *storage.Storage, userID, override int, trades []models.Trade) error {
	fallback := override

	for i := range trades {
		trades[i].UserID = userID

		if override != 0 {
			trades[i].JournalID = override
			continue
		}

		if trades[i].JournalID != 0 {
			continue
		}

		if fallback == 0 {
			active, err := store.GetActiveJournal(ctx, userID)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return errors.New("no active journal, pass --journal")
				}

				return err
			}

			fallback = active.ID
		}

		trades[i].JournalID = fallback
	}

	return nil
}

// readCSVTrades разбирает CSV с заголовком. Номер строки в ошибке считается с первой строки данных.
func readCSVTrades(r io.Reader) ([]models.Trade, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty csv file")
		}

		return nil, fmt.Errorf("csv header: %w", err)
	}

	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		name = strings.ToLower(strings.TrimSpace(name))
		header[i] = strings.NewReplacer(" ", "_", "-", "_").Replace(name)
	}

	var trades []models.Trade

	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		fields := make(map[string]json.RawMessage, len(record))
		for i, value := range record {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}

			if jsonColumns[header[i]] {
				if !json.Valid([]byte(value)) {
					return nil, fmt.Errorf("row %d: %s is not valid JSON", row, header[i])
				}

				fields[header[i]] = json.RawMessage(value)

				continue
			}

			encoded, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", row, err)
			}

			fields[header[i]] = encoded
		}

		raw, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		var in journal.TradeInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		t, err := journal.NormalizeTrade(in)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		trades = append(trades, t)
	}

	return trades, nil
}

// exportRecord сделка в формате выгрузки
type exportRecord struct {
	ID                 int                        `yaml:"id"`
	JournalID          int                        `yaml:"journal_id"`
	Symbol             string                     `yaml:"symbol"`
	Type               string                     `yaml:"type"`
	EntryPrice         float64                    `yaml:"entry_price"`
	ExitPrice          *float64                   `yaml:"exit_price,omitempty"`
	EntryTime          string                     `yaml:"entry_time"`
	ExitTime           string                     `yaml:"exit_time,omitempty"`
	Quantity           float64                    `yaml:"quantity"`
	PnL                *float64                   `yaml:"pnl,omitempty"`
	PnLPercent         *float64                   `yaml:"pnl_percent,omitempty"`
	PlannedRisk        *float64                   `yaml:"planned_risk,omitempty"`
	RMultiple          *float64                   `yaml:"r_multiple,omitempty"`
	StopLoss           *float64                   `yaml:"stop_loss,omitempty"`
	TakeProfit         *float64                   `yaml:"take_profit,omitempty"`
	Fees               *float64                   `yaml:"fees,omitempty"`
	SetupType          string                     `yaml:"setup_type,omitempty"`
	Emotions           []string                   `yaml:"emotions,omitempty"`
	ChecklistSnapshots []models.ChecklistSnapshot `yaml:"checklist_snapshots,omitempty"`
	Screenshots        []string                   `yaml:"screenshots,omitempty"`
	VoiceNotes         []string                   `yaml:"voice_notes,omitempty"`
	Notes              string                     `yaml:"notes,omitempty"`
}

func newExportRecord(t models.Trade) exportRecord {
	rec := exportRecord{
		ID:                 t.ID,
		JournalID:          t.JournalID,
		Symbol:             t.Symbol,
		Type:               t.Type,
		EntryPrice:         t.EntryPrice,
		ExitPrice:          t.ExitPrice,
		EntryTime:          t.EntryTime.UTC().Format(time.RFC3339),
		Quantity:           t.Quantity,
		PnL:                t.PnL,
		PnLPercent:         t.PnLPercent,
		PlannedRisk:        t.PlannedRisk,
		RMultiple:          t.RMultiple,
		StopLoss:           t.StopLoss,
		TakeProfit:         t.TakeProfit,
		Fees:               t.Fees,
		SetupType:          t.SetupType,
		Emotions:           t.Emotions,
		ChecklistSnapshots: t.ChecklistSnapshots,
		Screenshots:        t.Screenshots,
		VoiceNotes:         t.VoiceNotes,
		Notes:              t.Notes,
	}

	if t.ExitTime != nil {
		rec.ExitTime = t.ExitTime.UTC().Format(time.RFC3339)
	}

	return rec
}

func (rec exportRecord) csvRow() ([]string, error) {
	snapshots := ""
	if len(rec.ChecklistSnapshots) > 0 {
		b, err := json.Marshal(rec.ChecklistSnapshots)
		if err != nil {
			return nil, err
		}

		snapshots = string(b)
	}

	return []string{
		strconv.Itoa(rec.JournalID),
		rec.Symbol,
		rec.Type,
		formatFloat(&rec.EntryPrice),
		formatFloat(rec.ExitPrice),
		rec.EntryTime,
		rec.ExitTime,
		formatFloat(&rec.Quantity),
		formatFloat(rec.PnL),
		formatFloat(rec.PnLPercent),
		formatFloat(rec.PlannedRisk),
		formatFloat(rec.RMultiple),
		formatFloat(rec.StopLoss),
		formatFloat(rec.TakeProfit),
		formatFloat(rec.Fees),
		rec.SetupType,
		strings.Join(rec.Emotions, ","),
		strings.Join(rec.Screenshots, ","),
		strings.Join(rec.VoiceNotes, ","),
		rec.Notes,
		snapshots,
	}, nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}

	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func writeCSVTrades(w io.Writer, trades []models.Trade) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvColumns); err != nil {
		return err
	}

	for _, t := range trades {
		row, err := newExportRecord(t).csvRow()
		if err != nil {
			return fmt.Errorf("trade %d: %w", t.ID, err)
		}

		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

func writeYAMLTrades(w io.Writer, trades []models.Trade) error {
	records := make([]exportRecord, 0, len(trades))
	for _, t := range trades {
		records = append(records, newExportRecord(t))
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(map[string]any{"trades": records}); err != nil {
		return err
	}

	return enc.Close()
}
