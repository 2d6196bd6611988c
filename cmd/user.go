package cmd

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/breviobot/breviobot-service/app/repository"
	"github.com/breviobot/breviobot-service/app/service"

	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Administer user accounts",
}

func newUserFlagCmd(use, short, done string, apply func(*service.CredentialStore, *cobra.Command, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <username>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, db, err := newCredentialStoreForUserCommands(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			username := args[0]
			if err = apply(store, cmd, username); err != nil {
				if errors.Is(err, service.ErrUserNotFound) {
					return fmt.Errorf("user %q not found", username)
				}
				return err
			}

			fmt.Printf("%s: %s\n", done, username)
			return nil
		},
	}
}

var (
	userActivateCmd = newUserFlagCmd("activate", "Allow a user to log in again", "activated",
		func(s *service.CredentialStore, cmd *cobra.Command, username string) error {
			return s.SetActive(cmd.Context(), username, true)
		})
	userDeactivateCmd = newUserFlagCmd("deactivate", "Block a user; outstanding tokens stop working", "deactivated",
		func(s *service.CredentialStore, cmd *cobra.Command, username string) error {
			return s.SetActive(cmd.Context(), username, false)
		})
	userPromoteCmd = newUserFlagCmd("promote", "Grant the admin role", "promoted",
		func(s *service.CredentialStore, cmd *cobra.Command, username string) error {
			return s.SetAdmin(cmd.Context(), username, true)
		})
	userDemoteCmd = newUserFlagCmd("demote", "Revoke the admin role", "demoted",
		func(s *service.CredentialStore, cmd *cobra.Command, username string) error {
			return s.SetAdmin(cmd.Context(), username, false)
		})
)

func init() {
	userCmd.AddCommand(userActivateCmd, userDeactivateCmd, userPromoteCmd, userDemoteCmd)
	rootCmd.AddCommand(userCmd)
}

func newCredentialStoreForUserCommands(cmd *cobra.Command) (*service.CredentialStore, *sql.DB, error) {
	db, cfg, err := openDatabaseForCommands(cmd.Context())
	if err != nil {
		return nil, nil, err
	}

	store := service.NewCredentialStore(db, repository.NewUserRepository(db), service.NewBcryptHasher(cfg.Auth.BcryptCost))
	return store, db, nil
}
