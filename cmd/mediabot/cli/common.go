package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/felixgeelhaar/mediabot/internal/command"
	"github.com/felixgeelhaar/mediabot/internal/config"
	"github.com/felixgeelhaar/mediabot/internal/credential"
	"github.com/felixgeelhaar/mediabot/internal/events"
	"github.com/felixgeelhaar/mediabot/internal/guard"
	"github.com/felixgeelhaar/mediabot/internal/media"
	"github.com/felixgeelhaar/mediabot/internal/observe"
	"github.com/felixgeelhaar/mediabot/internal/store"
	"github.com/felixgeelhaar/mediabot/internal/summarize"
)

// env bundles what every command needs: config, logging and storage.
type env struct {
	cfg      *config.Config
	obs      *observe.Observer
	storage  store.MediaStorage
	settings *store.SQLiteStore
	closers  []io.Closer
}

// openEnv loads the config and opens storage. The SQLite database always
// holds the configuration table; with the sqlite backend it also holds the media.
func openEnv(logOut io.Writer) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	obs := observe.ForFormat(logOut, cfg.Log.Format, verbose || cfg.Log.Verbose)

	settings, err := store.NewSQLiteStore(cfg.SQLitePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	e := &env{cfg: cfg, obs: obs, settings: settings}
	switch cfg.Storage.Backend {
	case store.BackendSQLite:
		e.storage = settings
	default:
		js, err := store.NewJSONFileStore(cfg.JSONPath())
		if err != nil {
			settings.Close()
			return nil, err
		}
		e.storage = js
	}
	return e, nil
}

func (e *env) Close() {
	for _, c := range e.closers {
		_ = c.Close()
	}
	if e.storage != store.MediaStorage(e.settings) {
		_ = e.storage.Close()
	}
	_ = e.settings.Close()
	_ = e.obs.Close()
}

// newStore loads the collection, publishing mutations on bus when it is non-nil.
func (e *env) newStore(ctx context.Context, bus *events.Bus) (*media.Store, error) {
	var opts []media.Option
	if bus != nil {
		opts = append(opts, media.WithEvents(bus))
	}
	return media.NewStore(ctx, e.storage, opts...)
}

// guardPolicy maps the guard settings. Rate limits and the chat allow-list
// only apply to Telegram; the local console and CLI run as one trusted user.
func (e *env) guardPolicy(telegram bool) guard.Policy {
	p := guard.DefaultPolicy
	p.CommandsPerMinute = e.cfg.Guard.CommandsPerMinute
	p.Burst = e.cfg.Guard.Burst
	p.MaxTags = e.cfg.Guard.MaxTags
	p.MaxTagLength = e.cfg.Guard.MaxTagLength
	p.AllowedChatIDs = e.cfg.Telegram.AllowedChatIDs
	if len(e.cfg.Guard.AllowedFileGlobs) > 0 {
		p.AllowedFileGlobs = e.cfg.Guard.AllowedFileGlobs
	}
	if !telegram {
		return p.Local()
	}
	return p
}

// newHandler wires the command handler with g and, if configured, a summarizer.
func (e *env) newHandler(ctx context.Context, s *media.Store, g *guard.Guard) (*command.Handler, error) {
	opts := []command.Option{command.WithGuard(g)}

	sum, err := summarize.New(ctx, e.cfg.Summary)
	if err != nil {
		return nil, err
	}
	if sum != nil {
		opts = append(opts, command.WithSummarizer(sum))
		if c, ok := sum.(io.Closer); ok {
			e.closers = append(e.closers, c)
		}
	}
	return command.New(s, e.obs, opts...), nil
}

// token returns BOT_TOKEN or the sealed token saved with `mediabot token set`.
func (e *env) token() (string, error) {
	mgr, err := credential.NewManager()
	if err != nil {
		return "", err
	}
	tok, err := mgr.ResolveToken(config.TokenFromEnv(), e.settings)
	if err != nil {
		return "", err
	}
	if tok == "" {
		return "", config.ErrMissingToken
	}
	return tok, nil
}
