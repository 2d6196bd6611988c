package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Maintain the revoked token list",
}

var tokensPurgeRevokedCmd = &cobra.Command{
	Use:   "purge-revoked",
	Short: "Delete revoked-token entries whose tokens have expired",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, cfg, err := openDatabaseForCommands(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		svc, err := buildServices(db, cfg)
		if err != nil {
			return err
		}
		count, err := svc.sessions.PurgeRevoked(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("purged %d expired revoked token(s)\n", count)
		return nil
	},
}

func init() {
	tokensCmd.AddCommand(tokensPurgeRevokedCmd)
	rootCmd.AddCommand(tokensCmd)
}
