package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"tradejournal/internal/defaults"
)

func newMigrateCmd(rc *RootConfig) *cobra.Command {
	var (
		backfill bool
		cleanup  bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema and optionally repair user settings",
		Long: `migrate applies the database schema (idempotent) and prints its version.

--cleanup-placeholders removes settings rows left without a user.
--backfill creates missing settings, upgrades old settings rows to the
current schema version and seeds default setup types and checklists for
users that have none.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			store, err := rc.openStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			version, err := store.SchemaVersion(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "schema version: %d (%s)\n", version, store.Driver())

			if cleanup {
				removed, err := store.DeletePlaceholderSettings(ctx)
				if err != nil {
					return fmt.Errorf("cleanup: %w", err)
				}

				fmt.Fprintf(out, "placeholder settings removed: %d\n", removed)
			}

			if !backfill {
				return nil
			}

			defs, err := defaults.Load()
			if err != nil {
				return err
			}

			result, err := store.BackfillSettings(ctx, defs.UserSettings())
			if err != nil {
				return fmt.Errorf("backfill: %w", err)
			}

			fmt.Fprintf(out, "settings created: %d, upgraded: %d\n", result.Created, result.Upgraded)

			userIDs, err := store.ListUserIDs(ctx)
			if err != nil {
				return err
			}

			var seeded defaults.SeedResult
			for _, id := range userIDs {
				res, err := defs.Seed(ctx, store, id)
				if err != nil {
					return fmt.Errorf("seed user %d: %w", id, err)
				}

				seeded.SetupTypes += res.SetupTypes
				seeded.Checklists += res.Checklists
			}

			fmt.Fprintf(out, "setup types seeded: %d, checklists seeded: %d\n", seeded.SetupTypes, seeded.Checklists)

			rc.Logger.Info("✅ Migration finished",
				slog.Int("schema_version", version),
				slog.Int("users", len(userIDs)),
			)

			return nil
		},
	}

	cmd.Flags().BoolVar(&backfill, "backfill", false, "create or upgrade settings and seed defaults for existing users")
	cmd.Flags().BoolVar(&cleanup, "cleanup-placeholders", false, "delete settings rows that have no user")

	return cmd
}
