package command

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/mediabot/internal/guard"
	"github.com/felixgeelhaar/mediabot/internal/media"
	"github.com/felixgeelhaar/mediabot/internal/observe"
	"github.com/felixgeelhaar/mediabot/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(t *testing.T, opts ...Option) (*Handler, *media.Store) {
	t.Helper()
	js, err := store.NewJSONFileStore(filepath.Join(t.TempDir(), "media_data.json"))
	require.NoError(t, err)
	s, err := media.NewStore(context.Background(), js)
	require.NoError(t, err)
	return New(s, observe.Discard(), opts...), s
}

func send(h *Handler, text string) Reply {
	name, args, _ := Split(text)
	return h.Handle(context.Background(), Request{ChatID: 1, Command: name, Args: args})
}

func upload(h *Handler, t media.MediaType, caption, fileID string) Reply {
	return h.Handle(context.Background(), Request{
		ChatID:   1,
		Upload:   &media.Upload{Type: t, Caption: caption, FileID: fileID},
		HasMedia: true,
	})
}

type failingPersister struct{}

func (failingPersister) Load(context.Context) ([]media.Record, error) { return nil, nil }
func (failingPersister) Save(context.Context, []media.Record) error {
	return errors.New("disk full")
}

type fixedSummarizer struct {
	text string
	err  error
	got  []media.Entry
}

func (f *fixedSummarizer) Summarize(_ context.Context, recent []media.Entry, _ media.Stats) (string, error) {
	f.got = recent
	return f.text, f.err
}

func TestHandle_SaveAndList(t *testing.T) {
	h, _ := newHandler(t)

	assert.Equal(t, "Photo saved! It is media #1.", upload(h, media.Photo, "", "p1").Text)
	caption := strings.Repeat("abcdefghij", 4)
	assert.Equal(t, "Document saved! It is media #2.", upload(h, media.Document, caption, "d1").Text)

	reply := send(h, "/list")
	require.NoError(t, reply.Err)
	assert.Equal(t, "Last 10 saved media:\n"+
		"1. Type: Photo, Tags: None, Caption: \n"+
		"2. Type: Document, Tags: None, Caption: abcdefghijabcdefghijabcdefg...", reply.Text)
}

func TestHandle_ListEmptyAndWindow(t *testing.T) {
	h, _ := newHandler(t)
	assert.Equal(t, ReplyEmpty, send(h, "/list").Text)

	for i := 0; i < 12; i++ {
		upload(h, media.Video, "", "v")
	}
	lines := strings.Split(send(h, "/list").Text, "\n")
	require.Len(t, lines, 11)
	assert.True(t, strings.HasPrefix(lines[1], "3. Type: Video"))
	assert.True(t, strings.HasPrefix(lines[10], "12. Type: Video"))
}

func TestHandle_UnsupportedMedia(t *testing.T) {
	h, s := newHandler(t)
	reply := h.Handle(context.Background(), Request{ChatID: 1, HasMedia: true})
	assert.Equal(t, ReplyUnsupported, reply.Text)
	assert.ErrorIs(t, reply.Err, media.ErrUnsupportedMedia)
	assert.Equal(t, 0, s.Len())
}

func TestHandle_PlainTextIsIgnored(t *testing.T) {
	h, _ := newHandler(t)
	reply := h.Handle(context.Background(), Request{ChatID: 1})
	assert.Empty(t, reply.Text)
	assert.NoError(t, reply.Err)
}

func TestHandle_Tag(t *testing.T) {
	h, s := newHandler(t)
	upload(h, media.Photo, "cat", "p1")

	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"ok", "/tag 1 cute Cat", "Added tags to media #1: cute, Cat"},
		{"repeat is idempotent", "/tag 1 cute", "Added tags to media #1: cute"},
		{"missing tags", "/tag 1", "Usage: /tag <media_index> <tag1> [tag2 ...]"},
		{"no args", "/tag", "Usage: /tag <media_index> <tag1> [tag2 ...]"},
		{"not a number", "/tag one cute", ReplyNotANumber},
		{"out of range", "/tag 99 x", ReplyOutOfRange},
		{"zero", "/tag 0 x", ReplyOutOfRange},
		{"huge", "/tag 99999999999999999999999 x", ReplyOutOfRange},
		{"huge negative", "/tag -99999999999999999999999 x", ReplyOutOfRange},
		{"bot suffix", "/tag@MediaBot 1 pet", "Added tags to media #1: pet"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, send(h, tc.input).Text)
		})
	}

	assert.Equal(t, []string{"cute", "Cat", "pet"}, s.Snapshot()[0].Tags)
}

func TestHandle_Delete(t *testing.T) {
	h, _ := newHandler(t)
	upload(h, media.Photo, "a", "1")
	upload(h, media.Video, "b", "2")
	upload(h, media.Document, "c", "3")

	assert.Equal(t, "Deleted Video (was media #2).", send(h, "/delete 2").Text)
	assert.Equal(t, "Last 10 saved media:\n"+
		"1. Type: Photo, Tags: None, Caption: a\n"+
		"2. Type: Document, Tags: None, Caption: c", send(h, "/list").Text)

	assert.Equal(t, "Usage: /delete <media_index>", send(h, "/delete").Text)
	assert.Equal(t, "Usage: /delete <media_index>", send(h, "/delete 1 2").Text)
	assert.Equal(t, ReplyNotANumber, send(h, "/delete x").Text)
	assert.Equal(t, ReplyOutOfRange, send(h, "/delete 3").Text)
	assert.Equal(t, ReplyOutOfRange, send(h, "/delete 123456789012345678901234567890").Text)
}

func TestHandle_Search(t *testing.T) {
	h, _ := newHandler(t)
	upload(h, media.Photo, "first", "1")
	upload(h, media.Video, "second", "2")
	send(h, "/tag 1 Holiday")
	send(h, "/tag 2 holiday work")

	want := "Media tagged 'HOLIDAY':\n1. Type: Photo, Caption: first\n2. Type: Video, Caption: second"
	assert.Equal(t, want, send(h, "/search HOLIDAY").Text)
	assert.Equal(t, "No media found with tag 'beach'.", send(h, "/search beach").Text)
	assert.Equal(t, "Usage: /search <tag>", send(h, "/search").Text)
}

func TestHandle_Stats(t *testing.T) {
	h, _ := newHandler(t)
	assert.Equal(t, "Total media: 0\nPhotos: 0\nVideos: 0\nDocuments: 0\nTotal tags: 0", send(h, "/stats").Text)

	upload(h, media.Photo, "", "1")
	upload(h, media.Photo, "", "2")
	upload(h, media.Document, "", "3")
	send(h, "/tag 1 a b")
	send(h, "/tag 3 c")

	assert.Equal(t, "Total media: 3\nPhotos: 2\nVideos: 0\nDocuments: 1\nTotal tags: 3", send(h, "/stats").Text)
}

func TestHandle_StartAndUnknown(t *testing.T) {
	h, _ := newHandler(t)

	start := send(h, "/start").Text
	assert.True(t, strings.HasPrefix(start, Greeting))
	assert.Contains(t, start, "Use /tag <media_index> <tag1> [tag2 ...] to tag a saved media.")
	assert.Contains(t, start, "Use /list to see recent saved media.")
	assert.Equal(t, start, send(h, "/menu").Text)
	assert.Equal(t, start, send(h, "/help").Text)

	reply := send(h, "/frobnicate")
	assert.Equal(t, ReplyUnknown, reply.Text)
	assert.ErrorIs(t, reply.Err, ErrUnknownCommand)
}

func TestHandle_PersistenceFailure(t *testing.T) {
	s, err := media.NewStore(context.Background(), failingPersister{})
	require.NoError(t, err)
	h := New(s, observe.Discard())

	reply := upload(h, media.Photo, "", "p1")
	assert.Equal(t, ReplyPersistence, reply.Text)
	assert.ErrorIs(t, reply.Err, media.ErrPersistence)
	assert.Equal(t, ReplyEmpty, send(h, "/list").Text)
}

func TestHandle_Guard(t *testing.T) {
	t.Run("Rate limit", func(t *testing.T) {
		h, _ := newHandler(t, WithGuard(guard.New(guard.Policy{CommandsPerMinute: 1, Burst: 2})))
		send(h, "/stats")
		send(h, "/stats")
		reply := send(h, "/stats")
		assert.Equal(t, ReplyRateLimited, reply.Text)
		assert.ErrorIs(t, reply.Err, ErrRateLimited)
	})

	t.Run("Allow-list is silent", func(t *testing.T) {
		h, _ := newHandler(t, WithGuard(guard.New(guard.Policy{AllowedChatIDs: []int64{42}})))
		reply := send(h, "/stats")
		assert.Empty(t, reply.Text)
		assert.ErrorIs(t, reply.Err, ErrNotAllowed)
	})

	t.Run("Tag limits", func(t *testing.T) {
		h, s := newHandler(t, WithGuard(guard.New(guard.Policy{MaxTags: 2, MaxTagLength: 4})))
		upload(h, media.Photo, "", "p")
		assert.Equal(t, "Please use at most 2 tags of up to 4 characters each.", send(h, "/tag 1 a b c").Text)
		assert.Equal(t, "Please use at most 2 tags of up to 4 characters each.", send(h, "/tag 1 toolong").Text)
		assert.Empty(t, s.Snapshot()[0].Tags)
	})
}

func TestHandle_Summary(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		h, _ := newHandler(t)
		assert.Equal(t, ReplySummaryOff, send(h, "/summary").Text)
	})

	t.Run("Enabled", func(t *testing.T) {
		sum := &fixedSummarizer{text: "You mostly save cat photos."}
		h, _ := newHandler(t, WithSummarizer(sum))
		upload(h, media.Photo, "cat", "p")
		assert.Equal(t, "You mostly save cat photos.", send(h, "/summary").Text)
		require.Len(t, sum.got, 1)
		assert.Equal(t, 1, sum.got[0].Position)
	})

	t.Run("Provider failure", func(t *testing.T) {
		h, _ := newHandler(t, WithSummarizer(&fixedSummarizer{err: errors.New("timeout")}))
		assert.Equal(t, ReplyGeneric, send(h, "/summary").Text)
	})
}

func TestPreviewCaption(t *testing.T) {
	testCases := []struct {
		in, want string
	}{
		{"", ""},
		{strings.Repeat("x", 30), strings.Repeat("x", 30)},
		{strings.Repeat("x", 31), strings.Repeat("x", 27) + "..."},
		{strings.Repeat("é", 40), strings.Repeat("é", 27) + "..."},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, PreviewCaption(tc.in))
	}
}
