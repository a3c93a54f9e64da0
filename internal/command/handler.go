// Package command turns chat requests into media store calls and fixed reply strings.
package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/mediabot/internal/guard"
	"github.com/felixgeelhaar/mediabot/internal/media"
	"github.com/felixgeelhaar/mediabot/internal/observe"
	"github.com/google/uuid"
)

// Greeting opens the /start reply.
const Greeting = "Hello! Send me photos, videos, or documents and I will save them."

const (
	ReplyNotANumber     = "The media index must be a number."
	ReplyOutOfRange     = "Invalid media index."
	ReplyUnsupported    = "Unsupported media type. Please send photos, videos, or documents."
	ReplyPersistence    = "Could not save your changes. Please try again later."
	ReplyRateLimited    = "You're sending commands too quickly. Please wait a moment."
	ReplyUnknown        = "Unknown command. Send /start to see what I can do."
	ReplyGeneric        = "Something went wrong. Please try again."
	ReplyEmpty          = "No media saved yet."
	ReplySummaryOff     = "Summaries are not enabled."
	captionPreviewLimit = 30
)

var (
	ErrNotANumber      = errors.New("media index is not a number")
	ErrUsage           = errors.New("wrong number of arguments")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrRateLimited     = errors.New("rate limited")
	ErrNotAllowed      = errors.New("chat not allowed")
	ErrTagLimit        = errors.New("tag limit exceeded")
	ErrSummaryDisabled = errors.New("summaries are not enabled")
)

// UsageError carries the usage line of the command that was misused.
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string { return "usage: " + e.Usage }

func (e *UsageError) Is(target error) bool { return target == ErrUsage }

// Request is one inbound chat event. An empty Command means a media message:
// Upload is set when the payload is a photo, video or document, and HasMedia
// reports whether the message carried any attachment at all.
type Request struct {
	ChatID   int64
	Command  string
	Args     []string
	Upload   *media.Upload
	HasMedia bool
}

// Reply is what the transport sends back. An empty Text means stay silent.
type Reply struct {
	Text string
	Err  error
}

// Summarizer writes a short narrative about the collection.
type Summarizer interface {
	Summarize(ctx context.Context, recent []media.Entry, stats media.Stats) (string, error)
}

// Handler validates requests, calls the store and formats replies.
type Handler struct {
	store      *media.Store
	obs        *observe.Observer
	guard      *guard.Guard
	summarizer Summarizer
	registry   *Registry
}

type Option func(*Handler)

// WithGuard admits every request through g before it runs.
func WithGuard(g *guard.Guard) Option {
	return func(h *Handler) { h.guard = g }
}

// WithSummarizer enables /summary.
func WithSummarizer(s Summarizer) Option {
	return func(h *Handler) { h.summarizer = s }
}

// New builds a handler with the built-in commands registered.
func New(store *media.Store, obs *observe.Observer, opts ...Option) *Handler {
	h := &Handler{
		store:    store,
		obs:      obs,
		registry: NewRegistry(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.registerBuiltins()
	return h
}

// Registry exposes the command table, e.g. for transports that publish a command menu.
func (h *Handler) Registry() *Registry {
	return h.registry
}

func (h *Handler) registerBuiltins() {
	builtins := []struct {
		def  Definition
		exec Executor
	}{
		{Definition{Name: "start", Aliases: []string{"menu", "help"}, Usage: "/start", MaxArgs: -1}, h.start},
		{Definition{Name: "tag", Usage: "/tag <media_index> <tag1> [tag2 ...]", Description: "tag a saved media", MinArgs: 2, MaxArgs: -1}, h.tag},
		{Definition{Name: "list", Usage: "/list", Description: "see recent saved media", MaxArgs: -1}, h.list},
		{Definition{Name: "delete", Usage: "/delete <media_index>", Description: "remove a saved media", MinArgs: 1, MaxArgs: 1}, h.delete},
		{Definition{Name: "search", Usage: "/search <tag>", Description: "find media by tag", MinArgs: 1, MaxArgs: 1}, h.search},
		{Definition{Name: "stats", Usage: "/stats", Description: "see collection totals", MaxArgs: -1}, h.stats},
		{Definition{Name: "summary", Usage: "/summary", Description: "get a short summary of your media", MaxArgs: -1}, h.summary},
	}
	for _, b := range builtins {
		// Built-in names are distinct, so Register can't fail here.
		_ = h.registry.Register(b.def, b.exec)
	}
}

// Handle runs one request and never returns a raw error to the user.
func (h *Handler) Handle(ctx context.Context, req Request) Reply {
	name := req.Command
	if name == "" {
		name = "media"
	}
	log := h.obs.Log().With().
		Str("request_id", uuid.NewString()).
		Str("chat_id", strconv.FormatInt(req.ChatID, 10)).
		Str("command", name).
		Logger()

	ctx, span := h.obs.StartSpan(ctx, "command."+name)
	defer span.End()

	if req.Command == "" && req.Upload == nil && !req.HasMedia {
		return Reply{}
	}

	if h.guard != nil {
		if v := h.guard.Admit(req.ChatID); v != nil {
			log.Warn().Str("violation", v.Rule).Msg("request rejected")
			if v.Rule == "allowed_chat_ids" {
				return Reply{Err: fmt.Errorf("%w: %s", ErrNotAllowed, v.Message)}
			}
			return Reply{Text: ReplyRateLimited, Err: fmt.Errorf("%w: %s", ErrRateLimited, v.Message)}
		}
	}

	var (
		text string
		err  error
	)
	if req.Command == "" {
		text, err = h.saveMedia(ctx, req)
	} else {
		text, err = h.registry.Execute(ctx, req)
	}
	if err != nil {
		span.RecordError(err)
		reply := h.replyFor(err)
		if reply == ReplyGeneric || reply == ReplyPersistence {
			log.Error().Err(err).Msg("command failed")
		} else {
			log.Info().Err(err).Msg("command rejected")
		}
		return Reply{Text: reply, Err: err}
	}

	log.Info().Msg("command handled")
	return Reply{Text: text}
}

func (h *Handler) replyFor(err error) string {
	var usage *UsageError
	switch {
	case errors.As(err, &usage):
		return "Usage: " + usage.Usage
	case errors.Is(err, ErrNotANumber):
		return ReplyNotANumber
	case errors.Is(err, media.ErrIndexOutOfRange):
		return ReplyOutOfRange
	case errors.Is(err, media.ErrUnsupportedMedia):
		return ReplyUnsupported
	case errors.Is(err, media.ErrPersistence):
		return ReplyPersistence
	case errors.Is(err, ErrUnknownCommand):
		return ReplyUnknown
	case errors.Is(err, ErrSummaryDisabled):
		return ReplySummaryOff
	case errors.Is(err, ErrTagLimit):
		p := h.guard.Policy()
		return fmt.Sprintf("Please use at most %d tags of up to %d characters each.", p.MaxTags, p.MaxTagLength)
	case errors.Is(err, media.ErrNoTags):
		def, _ := h.registry.Get("tag")
		return "Usage: " + def.Usage
	}
	return ReplyGeneric
}

func (h *Handler) saveMedia(ctx context.Context, req Request) (string, error) {
	up := req.Upload
	if up == nil {
		return "", media.ErrUnsupportedMedia
	}
	pos, err := h.store.Append(ctx, up.Type, up.Caption, up.FileID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s saved! It is media #%d.", up.Type.Display(), pos), nil
}

func (h *Handler) start(_ context.Context, _ Request) (string, error) {
	return h.registry.HelpText(Greeting), nil
}

func (h *Handler) tag(ctx context.Context, req Request) (string, error) {
	pos, err := parseIndex(req.Args[0])
	if err != nil {
		return "", err
	}
	tags := req.Args[1:]
	if h.guard != nil {
		if v := h.guard.CheckTags(tags); v != nil {
			return "", fmt.Errorf("%w: %s", ErrTagLimit, v.Message)
		}
	}
	added, err := h.store.AddTags(ctx, pos, tags)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Added tags to media #%d: %s", pos, strings.Join(added, ", ")), nil
}

func (h *Handler) list(_ context.Context, _ Request) (string, error) {
	entries := h.store.ListRecent(media.DefaultRecentLimit)
	if len(entries) == 0 {
		return ReplyEmpty, nil
	}
	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, fmt.Sprintf("Last %d saved media:", media.DefaultRecentLimit))
	for _, e := range entries {
		tags := "None"
		if len(e.Record.Tags) > 0 {
			tags = strings.Join(e.Record.Tags, ", ")
		}
		lines = append(lines, fmt.Sprintf("%d. Type: %s, Tags: %s, Caption: %s",
			e.Position, e.Record.Type.Display(), tags, PreviewCaption(e.Record.Caption)))
	}
	return strings.Join(lines, "\n"), nil
}

func (h *Handler) delete(ctx context.Context, req Request) (string, error) {
	pos, err := parseIndex(req.Args[0])
	if err != nil {
		return "", err
	}
	removed, err := h.store.Delete(ctx, pos)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Deleted %s (was media #%d).", removed.Type.Display(), pos), nil
}

func (h *Handler) search(_ context.Context, req Request) (string, error) {
	tag := req.Args[0]
	entries := h.store.SearchByTag(tag)
	if len(entries) == 0 {
		return fmt.Sprintf("No media found with tag '%s'.", tag), nil
	}
	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, fmt.Sprintf("Media tagged '%s':", tag))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%d. Type: %s, Caption: %s",
			e.Position, e.Record.Type.Display(), PreviewCaption(e.Record.Caption)))
	}
	return strings.Join(lines, "\n"), nil
}

func (h *Handler) stats(_ context.Context, _ Request) (string, error) {
	s := h.store.Stats()
	return fmt.Sprintf("Total media: %d\nPhotos: %d\nVideos: %d\nDocuments: %d\nTotal tags: %d",
		s.Total, s.ByType[media.Photo], s.ByType[media.Video], s.ByType[media.Document], s.TotalTags), nil
}

func (h *Handler) summary(ctx context.Context, _ Request) (string, error) {
	if h.summarizer == nil {
		return "", ErrSummaryDisabled
	}
	text, err := h.summarizer.Summarize(ctx, h.store.ListRecent(media.DefaultRecentLimit), h.store.Stats())
	if err != nil {
		return "", fmt.Errorf("failed to summarize: %w", err)
	}
	return text, nil
}

func parseIndex(arg string) (int, error) {
	pos, err := strconv.Atoi(arg)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("%w: %s", media.ErrIndexOutOfRange, arg)
		}
		return 0, fmt.Errorf("%w: %q", ErrNotANumber, arg)
	}
	return pos, nil
}

// PreviewCaption shortens captions over 30 characters to 27 plus "...".
func PreviewCaption(caption string) string {
	r := []rune(caption)
	if len(r) > captionPreviewLimit {
		return string(r[:captionPreviewLimit-3]) + "..."
	}
	return caption
}
