package console

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/felixgeelhaar/mediabot/internal/command"
	"github.com/felixgeelhaar/mediabot/internal/guard"
	"github.com/felixgeelhaar/mediabot/internal/media"
	"github.com/felixgeelhaar/mediabot/internal/observe"
	"github.com/felixgeelhaar/mediabot/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, g *guard.Guard) (*Session, *media.Store) {
	t.Helper()
	js, err := store.NewJSONFileStore(filepath.Join(t.TempDir(), "media_data.json"))
	require.NoError(t, err)
	s, err := media.NewStore(context.Background(), js)
	require.NoError(t, err)
	return NewSession(command.New(s, observe.Discard()), g), s
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte("not really media"), 0644))
	}
}

func TestClassify(t *testing.T) {
	testCases := map[string]media.MediaType{
		"a.jpg":        media.Photo,
		"b.JPEG":       media.Photo,
		"c.png":        media.Photo,
		"d.mp4":        media.Video,
		"e.MOV":        media.Video,
		"f.pdf":        media.Document,
		"g.mp3":        media.Document,
		"no-extension": media.Document,
	}
	for name, want := range testCases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, Classify(name))
		})
	}
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.jpg", "b.png", ".hidden.jpg", "sub/c.jpg", "sub/deeper/d.jpg", "notes.txt")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.jpg"), 0755))

	files, err := Expand(filepath.Join(dir, "*.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.jpg")}, files)

	files, err = Expand(filepath.Join(dir, "**", "*.jpg"))
	require.NoError(t, err)
	assert.Len(t, files, 3)

	_, err = Expand(filepath.Join(dir, "[unclosed"))
	assert.Error(t, err)
}

func TestUploadFor(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "clip.mp4")
	path := filepath.Join(dir, "clip.mp4")

	up, err := UploadFor(path, "")
	require.NoError(t, err)
	assert.Equal(t, media.Video, up.Type)
	assert.Equal(t, "local:"+path, up.FileID)
	// No readable metadata, so no caption.
	assert.Equal(t, "", up.Caption)

	up, err = UploadFor(path, "holiday clip")
	require.NoError(t, err)
	assert.Equal(t, "holiday clip", up.Caption)
}

func TestSession_Exec(t *testing.T) {
	s, st := newSession(t, nil)
	ctx := context.Background()

	replies, quit := s.Exec(ctx, "/stats")
	assert.False(t, quit)
	assert.Equal(t, []string{"Total media: 0\nPhotos: 0\nVideos: 0\nDocuments: 0\nTotal tags: 0"}, replies)

	replies, _ = s.Exec(ctx, "hello there")
	assert.Equal(t, []string{hint}, replies)

	replies, _ = s.Exec(ctx, "   ")
	assert.Empty(t, replies)

	replies, _ = s.Exec(ctx, "/upload")
	assert.Equal(t, []string{uploadUsage}, replies)

	dir := t.TempDir()
	touch(t, dir, "one.jpg", "two.pdf")
	replies, _ = s.Exec(ctx, "/upload "+filepath.Join(dir, "*")+" trip photos")
	require.Len(t, replies, 2)
	assert.True(t, strings.HasSuffix(replies[0], "Photo saved! It is media #1."))
	assert.True(t, strings.HasSuffix(replies[1], "Document saved! It is media #2."))
	assert.Equal(t, "trip photos", st.Snapshot()[1].Caption)

	replies, _ = s.Exec(ctx, "/upload "+filepath.Join(dir, "*.gif"))
	assert.Equal(t, []string{"No files match " + filepath.Join(dir, "*.gif") + "."}, replies)

	replies, quit = s.Exec(ctx, "/quit")
	assert.True(t, quit)
	assert.Equal(t, []string{"Bye!"}, replies)
}

func TestSession_UploadGuard(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "ok.jpg", "secret.pdf")
	g := guard.New(guard.Policy{AllowedFileGlobs: []string{filepath.ToSlash(dir) + "/*.jpg"}})
	s, st := newSession(t, g)

	replies, _ := s.Exec(context.Background(), "/upload "+filepath.Join(dir, "*"))
	require.Len(t, replies, 2)
	assert.Contains(t, replies[0], "Photo saved!")
	assert.Contains(t, replies[1], "skipped, not allowed.")
	assert.Equal(t, 1, st.Len())
}

func TestSession_UploadManyFilesWithLocalGuard(t *testing.T) {
	dir := t.TempDir()
	var names []string
	for i := 0; i < 15; i++ {
		names = append(names, fmt.Sprintf("p%02d.jpg", i))
	}
	touch(t, dir, names...)

	p := guard.DefaultPolicy.Local()
	p.AllowedFileGlobs = []string{filepath.ToSlash(dir) + "/**"}
	g := guard.New(p)

	js, err := store.NewJSONFileStore(filepath.Join(t.TempDir(), "media_data.json"))
	require.NoError(t, err)
	st, err := media.NewStore(context.Background(), js)
	require.NoError(t, err)
	s := NewSession(command.New(st, observe.Discard(), command.WithGuard(g)), g)

	replies, _ := s.Exec(context.Background(), "/upload "+filepath.Join(dir, "*.jpg"))
	require.Len(t, replies, 15)
	assert.True(t, strings.HasSuffix(replies[14], "Photo saved! It is media #15."), replies[14])
	assert.Equal(t, 15, st.Len())
}

func TestModel_Update(t *testing.T) {
	s, _ := newSession(t, nil)
	m := NewModel(context.Background(), "mediabot", s)

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = updated.(Model)
	require.True(t, m.Ready)

	m.Input.SetValue("/list")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.Busy)
	assert.Equal(t, "", m.Input.Value())
	assert.Equal(t, []string{"> /list"}, m.Log)

	updated, _ = m.Update(cmd())
	m = updated.(Model)
	assert.False(t, m.Busy)
	assert.Equal(t, []string{"> /list", command.ReplyEmpty}, m.Log)
	assert.Contains(t, m.View(), "mediabot")

	m.Input.SetValue("/quit")
	updated, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	updated, cmd = m.Update(cmd())
	m = updated.(Model)
	assert.True(t, m.Quitting)
	require.NotNil(t, cmd)
}

func TestModel_CtrlCQuits(t *testing.T) {
	s, _ := newSession(t, nil)
	m := NewModel(context.Background(), "mediabot", s)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, updated.(Model).Quitting)
	require.NotNil(t, cmd)
}
