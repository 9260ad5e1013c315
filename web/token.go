package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/passage/internal/config"
)

func newTokenCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Session token commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "inspect <token>",
		Short: "Verify a session token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			codec, err := newCodec(cfg)
			if err != nil {
				return err
			}

			claims, err := codec.Decode(args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"issuer":     claims.Issuer,
				"issued_at":  claims.IssuedAt.UTC().Format(time.RFC3339),
				"expires_at": claims.ExpiresAt.UTC().Format(time.RFC3339),
				"session":    claims.Session,
			})
		},
	})

	return cmd
}
