package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/felixgeelhaar/mediabot/internal/backup"
	"github.com/felixgeelhaar/mediabot/internal/events"
	"github.com/felixgeelhaar/mediabot/internal/guard"
	"github.com/felixgeelhaar/mediabot/internal/transport/telegram"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot",
	Run: func(cmd *cobra.Command, args []string) {
		e, err := openEnv(cmd.ErrOrStderr())
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Failed to start: %v\n", err)
			os.Exit(1)
		}
		defer e.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := serve(ctx, e); err != nil {
			e.obs.Log().Fatal().Err(err).Msg("bot stopped")
		}
	},
}

func serve(ctx context.Context, e *env) error {
	token, err := e.token()
	if err != nil {
		return err
	}

	bus := events.NewBus()
	bus.Subscribe(events.PersistFailed, func(ev events.Event) {
		op, _ := ev.Data["op"].(string)
		msg, _ := ev.Data["error"].(string)
		e.obs.Log().Error().Str("op", op).Str("error", msg).Msg("media collection not saved")
	})

	var wg sync.WaitGroup
	defer wg.Wait()

	if e.cfg.Backup.Enabled {
		bucket, err := backup.NewMinioBucket(e.cfg.Backup)
		if err != nil {
			return err
		}
		if err := bucket.EnsureBucket(ctx); err != nil {
			e.obs.Log().Warn().Err(err).Msg("backup bucket unavailable, snapshots will be retried")
		}
		mirror := backup.NewMirror(bucket, e.cfg.Backup.ObjectKey, e.obs)
		mirror.Attach(bus)
		wg.Add(1)
		go func() {
			defer wg.Done()
			mirror.Run(ctx)
		}()
	}

	s, err := e.newStore(ctx, bus)
	if err != nil {
		return err
	}
	h, err := e.newHandler(ctx, s, guard.New(e.guardPolicy(true)))
	if err != nil {
		return err
	}

	e.obs.Log().Info().Int("media", s.Len()).Str("backend", e.cfg.Storage.Backend).Msg("media collection loaded")

	client := telegram.NewClient(nil, e.cfg.Telegram.BaseURL, token)
	bot := telegram.NewBot(client, h, e.obs, telegram.Options{
		PollTimeout:    e.cfg.Telegram.PollTimeout,
		MaxConcurrency: e.cfg.Telegram.MaxConcurrency,
		Commands:       h.Registry().List(),
	})
	return bot.Run(ctx)
}

func init() {
	RootCmd.AddCommand(serveCmd)
}
