package cli

import (
	"fmt"

	"github.com/felixgeelhaar/mediabot/internal/config"
	"github.com/felixgeelhaar/mediabot/internal/credential"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the Telegram bot token",
	Long: `The bot reads its token from the BOT_TOKEN environment variable.
When that is unset it falls back to a token saved with "token set",
which is stored encrypted in the settings table.`,
}

var tokenSetCmd = &cobra.Command{
	Use:   "set <token>",
	Short: "Encrypt and save the bot token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer e.Close()

		mgr, err := credential.NewManager()
		if err != nil {
			return err
		}
		if err := mgr.StoreToken(e.settings, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Token saved: %s\n", credential.MaskSecret(args[0]))
		return nil
	},
}

var tokenStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where the bot token comes from",
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.TokenFromEnv() != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Using %s: %s\n", config.TokenEnv, credential.MaskSecret(config.TokenFromEnv()))
			return nil
		}

		e, err := openEnv(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer e.Close()

		tok, err := e.token()
		if err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No token configured.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Using saved token: %s\n", credential.MaskSecret(tok))
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenStatusCmd)
	RootCmd.AddCommand(tokenCmd)
}
