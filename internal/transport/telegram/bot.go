// Package telegram serves the command handler over the Telegram Bot API.
//
// Updates are long-polled on one goroutine and dispatched to one worker per
// chat, so a chat's messages are answered in order while different chats run
// in parallel up to MaxConcurrency.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/felixgeelhaar/mediabot/internal/command"
	"github.com/felixgeelhaar/mediabot/internal/observe"
)

const (
	workerQueueSize = 16
	sendTimeout     = 15 * time.Second
	retryPause      = time.Second
	idleTimeout     = 5 * time.Minute
)

// Handler answers one request.
type Handler interface {
	Handle(ctx context.Context, req command.Request) command.Reply
}

type Options struct {
	PollTimeout    time.Duration
	MaxConcurrency int
	// Commands, when set, are published as the bot's command menu at startup.
	Commands []command.Definition
	// IdleTimeout stops a chat's worker after this long without messages.
	IdleTimeout time.Duration
}

type job struct {
	msg     *Message
	channel bool
}

// chatWorker serializes one chat. pending counts jobs handed out by acquire
// and not yet finished; the worker only retires while it is zero.
type chatWorker struct {
	jobs    chan job
	pending int
}

type Bot struct {
	api     *Client
	handler Handler
	obs     *observe.Observer
	opts    Options

	sem     chan struct{}
	mu      sync.Mutex
	workers map[int64]*chatWorker
	wg      sync.WaitGroup
}

func NewBot(api *Client, h Handler, obs *observe.Observer, opts Options) *Bot {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30 * time.Second
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 8
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = idleTimeout
	}
	return &Bot{
		api:     api,
		handler: h,
		obs:     obs,
		opts:    opts,
		sem:     make(chan struct{}, opts.MaxConcurrency),
		workers: make(map[int64]*chatWorker),
	}
}

// Run polls until ctx is cancelled. It fails fast only when the token is
// rejected at startup; later polling errors are logged and retried.
func (b *Bot) Run(ctx context.Context) error {
	me, err := b.api.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to reach telegram: %w", err)
	}
	b.obs.Log().Info().
		Str("bot_username", me.Username).
		Int("max_concurrency", b.opts.MaxConcurrency).
		Str("poll_timeout", b.opts.PollTimeout.String()).
		Msg("telegram bot started")

	if len(b.opts.Commands) > 0 {
		if err := b.api.SetMyCommands(ctx, Commands(b.opts.Commands)); err != nil {
			b.obs.Log().Warn().Err(err).Msg("failed to publish command menu")
		}
	}

	defer b.stopWorkers()

	var offset int64
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, next, err := b.api.GetUpdates(ctx, offset, b.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.obs.Log().Warn().Err(err).Msg("getUpdates failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryPause):
			}
			continue
		}
		offset = next

		for _, u := range updates {
			b.dispatch(ctx, u)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, u Update) {
	j := job{msg: u.Message}
	if j.msg == nil && u.ChannelPost != nil {
		j = job{msg: u.ChannelPost, channel: true}
	}
	if j.msg == nil || j.msg.Chat == nil {
		return
	}
	if j.msg.From != nil && j.msg.From.IsBot {
		return
	}

	w := b.acquire(ctx, j.msg.Chat.ID)
	select {
	case w.jobs <- j:
	case <-ctx.Done():
		b.release(w)
	}
}

// acquire returns the chat's worker, starting one if needed, and reserves a
// slot so the worker cannot retire before the job arrives.
func (b *Bot) acquire(ctx context.Context, chatID int64) *chatWorker {
	b.mu.Lock()
	defer b.mu.Unlock()

	w, ok := b.workers[chatID]
	if !ok {
		w = &chatWorker{jobs: make(chan job, workerQueueSize)}
		b.workers[chatID] = w
		b.wg.Add(1)
		go b.work(ctx, chatID, w)
	}
	w.pending++
	return w
}

func (b *Bot) release(w *chatWorker) {
	b.mu.Lock()
	w.pending--
	b.mu.Unlock()
}

func (b *Bot) work(ctx context.Context, chatID int64, w *chatWorker) {
	defer b.wg.Done()

	idle := time.NewTimer(b.opts.IdleTimeout)
	defer idle.Stop()
	for {
		select {
		case j, ok := <-w.jobs:
			if !ok {
				return
			}
			b.sem <- struct{}{}
			b.process(ctx, j)
			<-b.sem
			b.release(w)
		case <-idle.C:
			b.mu.Lock()
			if w.pending == 0 && b.workers[chatID] == w {
				delete(b.workers, chatID)
				b.mu.Unlock()
				return
			}
			b.mu.Unlock()
		}
		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(b.opts.IdleTimeout)
	}
}

// activeWorkers reports how many chats currently have a worker.
func (b *Bot) activeWorkers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.workers)
}

// process answers one job. Accepted updates are answered even during shutdown
// because their offset has already been confirmed to Telegram.
func (b *Bot) process(ctx context.Context, j job) {
	ctx = context.WithoutCancel(ctx)
	chatID := j.msg.Chat.ID

	var text string
	if j.channel {
		text = ChannelAck(j.msg)
	} else {
		text = b.handler.Handle(ctx, RequestFrom(j.msg)).Text
	}
	if text == "" {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := b.api.SendMessage(sendCtx, chatID, text, j.msg.MessageID); err != nil {
		b.obs.Log().Error().Err(err).Str("chat_id", strconv.FormatInt(chatID, 10)).Msg("failed to send reply")
	}
}

// stopWorkers lets every worker drain its queue, then waits for them.
func (b *Bot) stopWorkers() {
	b.mu.Lock()
	for id, w := range b.workers {
		close(w.jobs)
		delete(b.workers, id)
	}
	b.mu.Unlock()
	b.wg.Wait()
}
