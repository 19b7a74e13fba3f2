package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/envelopezero/engine/internal/cli"
	"github.com/envelopezero/engine/internal/config"
	"github.com/envelopezero/engine/internal/sheets"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate external services",
	}

	cmd.AddCommand(authSheetsCmd())

	return cmd
}

func authSheetsCmd() *cobra.Command {
	var tokenFile string

	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Authorize Google Sheets access",
		Long: `Run the OAuth2 consent flow for Google Sheets. Requires
sheets.client_id and sheets.client_secret from a Google Cloud OAuth client.
The resulting refresh token is printed and saved; put it under
sheets.refresh_token in the config file to make exports non-interactive.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			clientID := viper.GetString("sheets.client_id")
			clientSecret := viper.GetString("sheets.client_secret")
			if clientID == "" || clientSecret == "" {
				return fmt.Errorf("sheets.client_id and sheets.client_secret are required; create an OAuth client in the Google Cloud console first")
			}

			if tokenFile == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("failed to get home directory: %w", err)
				}
				tokenFile = fmt.Sprintf("%s/.config/envelope/sheets-token.json", home)
			}

			token, err := sheets.AuthenticateInteractive(ctx, sheets.OAuth2Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				TokenFile:    config.ExpandPath(tokenFile),
			})
			if err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render("Authorized."))
			if token.RefreshToken != "" {
				fmt.Println("Add this to your config file to make exports non-interactive:")
				fmt.Printf("\n  sheets:\n    refresh_token: %s\n", token.RefreshToken)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tokenFile, "token-file", "", "where to save the token (default: ~/.config/envelope/sheets-token.json)")

	return cmd
}
