package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/felixgeelhaar/mediabot/internal/guard"
	"github.com/felixgeelhaar/mediabot/internal/transport/console"
	"github.com/spf13/cobra"
)

var consoleExec []string

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Use the bot from a local terminal",
	Long: `Start an interactive console that accepts the same commands as the
Telegram bot, plus /upload <glob> [caption] to add local files.

With --exec the given lines are run in order and the console exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer e.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		s, err := e.newStore(ctx, nil)
		if err != nil {
			return err
		}
		g := guard.New(e.guardPolicy(false))
		h, err := e.newHandler(ctx, s, g)
		if err != nil {
			return err
		}
		session := console.NewSession(h, g)

		if len(consoleExec) == 0 {
			return console.Run(ctx, "mediabot console", session)
		}
		for _, line := range consoleExec {
			replies, quit := session.Exec(ctx, line)
			for _, r := range replies {
				fmt.Fprintln(cmd.OutOrStdout(), r)
			}
			if quit {
				break
			}
		}
		return nil
	},
}

func init() {
	consoleCmd.Flags().StringArrayVarP(&consoleExec, "exec", "e", nil, "Run a line and exit (repeatable)")
	RootCmd.AddCommand(consoleCmd)
}
