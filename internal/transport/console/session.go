// Package console drives the command handler from a local terminal.
//
// Besides the chat commands it understands /upload <glob> [caption], which
// turns matching local files into media messages, and /quit.
package console

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dhowden/tag"
	"github.com/felixgeelhaar/mediabot/internal/command"
	"github.com/felixgeelhaar/mediabot/internal/guard"
	"github.com/felixgeelhaar/mediabot/internal/media"
)

// ChatID identifies the console in logs and rate limiting.
const ChatID int64 = 0

const (
	uploadUsage = "Usage: /upload <glob> [caption]"
	hint        = "Send /start to see what I can do, or /upload <glob> [caption] to add local files."
)

var (
	photoExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".heic": true}
	videoExt = map[string]bool{".mp4": true, ".m4v": true, ".mov": true, ".mkv": true, ".webm": true, ".avi": true}
)

// Handler answers one request.
type Handler interface {
	Handle(ctx context.Context, req command.Request) command.Reply
}

// Session executes console lines. It holds no terminal state, so it is
// shared by the interactive model and by tests.
type Session struct {
	handler Handler
	guard   *guard.Guard
}

// NewSession returns a session; g may be nil to allow every file.
func NewSession(h Handler, g *guard.Guard) *Session {
	return &Session{handler: h, guard: g}
}

// Exec runs one input line and returns the lines to print.
func (s *Session) Exec(ctx context.Context, line string) (replies []string, quit bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}

	name, args, ok := command.Split(line)
	if !ok {
		return []string{hint}, false
	}

	switch name {
	case "quit", "exit":
		return []string{"Bye!"}, true
	case "upload":
		return s.upload(ctx, args), false
	}

	reply := s.handler.Handle(ctx, command.Request{ChatID: ChatID, Command: name, Args: args})
	if reply.Text == "" {
		return nil, false
	}
	return []string{reply.Text}, false
}

func (s *Session) upload(ctx context.Context, args []string) []string {
	if len(args) == 0 {
		return []string{uploadUsage}
	}
	pattern := args[0]
	caption := strings.Join(args[1:], " ")

	files, err := Expand(pattern)
	if err != nil {
		return []string{fmt.Sprintf("Invalid pattern %q: %v", pattern, err)}
	}
	if len(files) == 0 {
		return []string{fmt.Sprintf("No files match %s.", pattern)}
	}

	out := make([]string, 0, len(files))
	for _, path := range files {
		if s.guard != nil {
			if v := s.guard.CheckFile(filepath.ToSlash(path)); v != nil {
				out = append(out, fmt.Sprintf("%s: skipped, not allowed.", path))
				continue
			}
		}
		up, err := UploadFor(path, caption)
		if err != nil {
			out = append(out, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		reply := s.handler.Handle(ctx, command.Request{ChatID: ChatID, Upload: up, HasMedia: true})
		out = append(out, fmt.Sprintf("%s: %s", path, reply.Text))
	}
	return out
}

// Expand returns the regular, non-hidden files matching pattern in sorted order.
func Expand(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, err
	}
	files := matches[:0]
	for _, m := range matches {
		if strings.HasPrefix(filepath.Base(m), ".") {
			continue
		}
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, m)
	}
	return files, nil
}

// Classify maps a file extension to the media kind Telegram would deliver it as.
func Classify(path string) media.MediaType {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case photoExt[ext]:
		return media.Photo
	case videoExt[ext]:
		return media.Video
	}
	return media.Document
}

// UploadFor builds the upload for a local file. Without an explicit caption
// the embedded title of audio or video files is used when one exists.
func UploadFor(path, caption string) (*media.Upload, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if caption == "" {
		caption = EmbeddedTitle(abs)
	}
	return &media.Upload{
		Type:    Classify(path),
		FileID:  "local:" + abs,
		Caption: caption,
	}, nil
}

// EmbeddedTitle reads the ID3/MP4/FLAC/OGG title of path, or "".
func EmbeddedTitle(path string) string {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return ""
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(m.Title())
}
