// Package summarize writes a short narrative about the saved media using an
// LLM provider, or a deterministic stub when no model is configured.
package summarize

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/felixgeelhaar/mediabot/internal/config"
	"github.com/felixgeelhaar/mediabot/internal/media"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("mediabot/summarize")

// Provider completes a single prompt.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	// Name returns the provider identifier (e.g., "stub", "openai").
	Name() string
}

// Summarizer describes the collection from its most recent entries and totals.
type Summarizer interface {
	Summarize(ctx context.Context, recent []media.Entry, stats media.Stats) (string, error)
}

// New returns the summarizer selected by cfg.Provider, or nil when summaries are off.
func New(ctx context.Context, cfg config.SummaryConfig) (Summarizer, error) {
	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case "":
		return nil, nil
	case "stub":
		return Stub{}, nil
	case "openai":
		p, err = NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model)
	case "ollama":
		p, err = NewOllamaProvider(cfg.BaseURL, cfg.Model)
	case "gemini":
		p, err = NewGeminiProvider(ctx, cfg.APIKey, cfg.Model)
	case "anthropic":
		p, err = NewAnthropicProvider(cfg.APIKey, cfg.Model)
		if err == nil && cfg.BaseURL != "" {
			p.(*AnthropicProvider).SetBaseURL(cfg.BaseURL)
		}
	case "command":
		p, err = NewCommandProvider(cfg.Command, cfg.Args)
	default:
		return nil, fmt.Errorf("unknown summary provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s provider: %w", cfg.Provider, err)
	}
	return NewLLM(p), nil
}

// LLM summarizes through a Provider.
type LLM struct {
	provider Provider
}

func NewLLM(p Provider) *LLM {
	return &LLM{provider: p}
}

// Close releases the provider's connection when it holds one (Gemini does).
func (l *LLM) Close() error {
	if c, ok := l.provider.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (l *LLM) Summarize(ctx context.Context, recent []media.Entry, stats media.Stats) (string, error) {
	if stats.Total == 0 {
		return emptyCollection, nil
	}

	ctx, span := tracer.Start(ctx, "summarize."+l.provider.Name())
	defer span.End()

	out, err := l.provider.Complete(ctx, BuildPrompt(recent, stats))
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%s returned an empty summary", l.provider.Name())
	}
	return out, nil
}

const emptyCollection = "Nothing saved yet, so there is nothing to summarize."

// BuildPrompt renders totals and recent entries as plain text for a model.
func BuildPrompt(recent []media.Entry, stats media.Stats) string {
	var b strings.Builder
	b.WriteString("Summarize this media collection for its owner in two or three friendly sentences. ")
	b.WriteString("Mention what kinds of media dominate and which topics the tags suggest.\n\n")
	fmt.Fprintf(&b, "Totals: %d media (%d photos, %d videos, %d documents), %d tags.\n",
		stats.Total, stats.ByType[media.Photo], stats.ByType[media.Video], stats.ByType[media.Document], stats.TotalTags)

	if len(recent) > 0 {
		b.WriteString("Most recent uploads:\n")
		for _, e := range recent {
			tags := "none"
			if len(e.Record.Tags) > 0 {
				tags = strings.Join(e.Record.Tags, ", ")
			}
			fmt.Fprintf(&b, "%d. %s, tags: %s, caption: %q\n", e.Position, e.Record.Type.Display(), tags, e.Record.Caption)
		}
	}
	return b.String()
}

// Stub builds the summary from counts alone.
type Stub struct{}

func (Stub) Summarize(_ context.Context, recent []media.Entry, stats media.Stats) (string, error) {
	if stats.Total == 0 {
		return emptyCollection, nil
	}
	text := fmt.Sprintf("You have saved %d media: %d photos, %d videos and %d documents, carrying %d tags in total.",
		stats.Total, stats.ByType[media.Photo], stats.ByType[media.Video], stats.ByType[media.Document], stats.TotalTags)
	if top := TopTags(recent, 3); len(top) > 0 {
		text += " Recent favourites: " + strings.Join(top, ", ") + "."
	}
	return text, nil
}

// TopTags returns up to n tags by frequency (case-insensitive), ties alphabetical.
func TopTags(entries []media.Entry, n int) []string {
	counts := make(map[string]int)
	for _, e := range entries {
		for _, t := range e.Record.Tags {
			counts[strings.ToLower(t)]++
		}
	}
	tags := make([]string, 0, len(counts))
	for t := range counts {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})
	if len(tags) > n {
		tags = tags[:n]
	}
	return tags
}
