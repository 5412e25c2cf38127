package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tradejournal/internal/auth"
	"tradejournal/internal/defaults"
)

func newUserCmd(rc *RootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	cmd.AddCommand(newUserCreateCmd(rc), newUserPasswordCmd(rc))

	return cmd
}

func newUserCreateCmd(rc *RootConfig) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user and seed the default setup types, checklists and settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if len(username) < 3 || len(username) > 50 {
				return errors.New("username must be between 3 and 50 characters")
			}

			authService := auth.NewService(rc.Config.JWTSecret, rc.Config.TokenTTL)

			if err := auth.ValidatePassword(password); err != nil {
				return err
			}

			hash, err := authService.HashPassword(password)
			if err != nil {
				return err
			}

			store, err := rc.openStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			user, err := store.CreateUser(ctx, username, hash)
			if err != nil {
				return err
			}

			defs, err := defaults.Load()
			if err != nil {
				return err
			}

			if err := defs.SeedUser(ctx, store, user.ID); err != nil {
				return fmt.Errorf("user created but seeding failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "user %q created with id %d\n", user.Username, user.ID)

			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newUserPasswordCmd(rc *RootConfig) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password for an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if err := auth.ValidatePassword(password); err != nil {
				return err
			}

			hash, err := auth.NewService(rc.Config.JWTSecret, rc.Config.TokenTTL).HashPassword(password)
			if err != nil {
				return err
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

			if err := store.UpdatePassword(ctx, userID, hash); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "password updated for %q\n", username)

			return nil
		},
	}

	cmd.Flags().StringVar(&username, "user", "", "login name")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
