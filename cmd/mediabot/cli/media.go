package cli

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/mediabot/internal/command"
	"github.com/felixgeelhaar/mediabot/internal/guard"
	"github.com/felixgeelhaar/mediabot/internal/media"
	"github.com/spf13/cobra"
)

// runCommand executes one chat command against the local collection and
// prints the reply the bot would have sent.
func runCommand(cmd *cobra.Command, name string, args []string) error {
	e, err := openEnv(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	s, err := e.newStore(ctx, nil)
	if err != nil {
		return err
	}
	h, err := e.newHandler(ctx, s, guard.New(e.guardPolicy(false)))
	if err != nil {
		return err
	}

	reply := h.Handle(ctx, command.Request{Command: name, Args: args})
	if reply.Text != "" {
		fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
	}
	if errors.Is(reply.Err, media.ErrPersistence) {
		return reply.Err
	}
	return nil
}

func chatCommand(use, short, name string, args cobra.PositionalArgs) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, a []string) error {
			return runCommand(cmd, name, a)
		},
	}
}

var (
	listCmd    = chatCommand("list", "List the 10 most recent media", "list", cobra.NoArgs)
	searchCmd  = chatCommand("search <tag>", "Find media carrying a tag", "search", cobra.ExactArgs(1))
	tagCmd     = chatCommand("tag <media_index> <tag>...", "Add tags to a media", "tag", cobra.MinimumNArgs(2))
	deleteCmd  = chatCommand("delete <media_index>", "Remove a media", "delete", cobra.ExactArgs(1))
	statsCmd   = chatCommand("stats", "Show collection totals", "stats", cobra.NoArgs)
	summaryCmd = chatCommand("summary", "Summarize the collection with the configured provider", "summary", cobra.NoArgs)
)

func init() {
	RootCmd.AddCommand(listCmd, searchCmd, tagCmd, deleteCmd, statsCmd, summaryCmd)
}
