package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go-twitter-digest/internal/credentials"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store x.com session cookies for future runs",
	Long: `Prompt for the auth_token and ct0 cookies of a logged-in x.com browser
session and save them to the token file with owner-only permissions.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := tokenStore()
		creds, err := credentials.NewTerminalPrompter().Cookies()
		if err != nil {
			return err
		}
		defer creds.Wipe()
		if err := store.Save(creds); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Tokens saved to %s\n", store.Path())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete the stored session cookies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := tokenStore()
		if err := store.Delete(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", store.Path())
		return nil
	},
}
