package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/passage/internal/config"
	"github.com/devilmonastery/passage/internal/domain/services"
	"github.com/devilmonastery/passage/internal/infrastructure/database"
)

func newUserCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User profile commands",
		Long:  "Commands for inspecting user profiles in the passage database",
	}

	cmd.AddCommand(newUserLookupCommand(configPath))

	return cmd
}

func newUserLookupCommand(configPath *string) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Show the profile stored for an email",
		Example: `  # Show a user's profile
  passage user lookup --email ada@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			conn, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			reconciler := services.NewReconciler(database.NewUserRepository(conn.DB), services.ReconcilerConfig{})
			user, err := reconciler.Lookup(cmd.Context(), email)
			if services.IsUserNotFound(err) {
				return fmt.Errorf("no user with email %s", email)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(user)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "User email (required)")
	cmd.MarkFlagRequired("email")

	return cmd
}
