package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tradejournal/internal/defaults"
	"tradejournal/internal/jobs"
	"tradejournal/internal/notify"
)

func newSnapshotCmd(rc *RootConfig) *cobra.Command {
	var (
		date   string
		silent bool
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Record daily journal snapshots once (yesterday by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			loc := rc.Config.Location()

			day := time.Now().In(loc).AddDate(0, 0, -1)
			if date != "" {
				parsed, err := time.ParseInLocation(time.DateOnly, date, loc)
				if err != nil {
					return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", date)
				}

				day = parsed
			}

			store, err := rc.openStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			defs, err := defaults.Load()
			if err != nil {
				return err
			}

			var notifier notify.Notifier = notify.Nop{}
			if !silent {
				if notifier, err = newNotifier(rc, store); err != nil {
					return err
				}
			}

			snapshotter := jobs.NewSnapshotter(store, nil, notifier, defs.UserSettings(), loc, rc.Logger)

			n, err := snapshotter.RunFor(ctx, day)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d snapshots recorded\n", day.Format(time.DateOnly), n)

			return err
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "day to snapshot, YYYY-MM-DD")
	cmd.Flags().BoolVar(&silent, "silent", false, "skip daily summary notifications")

	return cmd
}
