package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/mediabot/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig points data_dir at a fresh temp directory.
func writeConfig(t *testing.T, extra string) (path, dir string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "mediabot.yaml")
	body := "data_dir: " + dir + "\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path, dir
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&logs)
	RootCmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := RootCmd.Execute()
	return out.String(), err
}

func TestCLI_Root(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range RootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "console", "list", "search", "tag", "delete", "stats", "summary", "config", "token", "backup"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestCLI_Config(t *testing.T) {
	found := false
	for _, cmd := range RootCmd.Commands() {
		if cmd.Name() == "config" {
			found = true
			assert.GreaterOrEqual(t, len(cmd.Commands()), 2)
		}
	}
	require.True(t, found, "config command not registered")

	cfgPath, _ := writeConfig(t, "")

	out, err := run(t, cfgPath, "config", "get", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "(not set)\n", out)

	out, err = run(t, cfgPath, "config", "set", "greeting", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Configuration saved: greeting\n", out)

	out, err = run(t, cfgPath, "config", "get", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", out)
}

func TestCLI_Catalogue(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "in")
	cfgPath, _ := writeConfig(t, "storage:\n  backend: sqlite\nguard:\n  allowed_file_globs: [\""+filepath.ToSlash(in)+"/**\"]\n")
	require.NoError(t, os.MkdirAll(in, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(in, "beach.jpg"), []byte("jpeg"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(in, "clip.mp4"), []byte("mp4"), 0600))

	out, err := run(t, cfgPath, "console",
		"-e", "/upload "+filepath.Join(in, "*.jpg")+" holiday",
		"-e", "/upload "+filepath.Join(in, "*.mp4")+" surf",
		"-e", "/quit",
		"-e", "/stats")
	require.NoError(t, err)
	assert.Contains(t, out, "beach.jpg: Photo saved! It is media #1.")
	assert.Contains(t, out, "clip.mp4: Video saved! It is media #2.")
	assert.Contains(t, out, "Bye!")
	assert.NotContains(t, out, "Total media", "lines after /quit must not run")

	out, err = run(t, cfgPath, "tag", "1", "beach", "sun")
	require.NoError(t, err)
	assert.Equal(t, "Added tags to media #1: beach, sun\n", out)

	out, err = run(t, cfgPath, "search", "BEACH")
	require.NoError(t, err)
	assert.Equal(t, "Media tagged 'BEACH':\n1. Type: Photo, Caption: holiday\n", out)

	out, err = run(t, cfgPath, "delete", "2")
	require.NoError(t, err)
	assert.Equal(t, "Deleted Video (was media #2).\n", out)

	out, err = run(t, cfgPath, "stats")
	require.NoError(t, err)
	assert.Equal(t, "Total media: 1\nPhotos: 1\nVideos: 0\nDocuments: 0\nTotal tags: 2\n", out)

	out, err = run(t, cfgPath, "list")
	require.NoError(t, err)
	assert.Equal(t, "Last 10 saved media:\n1. Type: Photo, Tags: beach, sun, Caption: holiday\n", out)

	out, err = run(t, cfgPath, "delete", "7")
	require.NoError(t, err)
	assert.Equal(t, "Invalid media index.\n", out)
}

func TestCLI_Summary(t *testing.T) {
	cfgPath, _ := writeConfig(t, "")
	out, err := run(t, cfgPath, "summary")
	require.NoError(t, err)
	assert.Equal(t, "Summaries are not enabled.\n", out)

	cfgPath, _ = writeConfig(t, "summary:\n  provider: stub\n")
	out, err = run(t, cfgPath, "summary")
	require.NoError(t, err)
	assert.Equal(t, "Nothing saved yet, so there is nothing to summarize.\n", out)
}

func TestCLI_Token(t *testing.T) {
	t.Setenv(config.TokenEnv, "")
	cfgPath, _ := writeConfig(t, "")

	out, err := run(t, cfgPath, "token", "status")
	require.NoError(t, err)
	assert.Equal(t, "No token configured.\n", out)

	out, err = run(t, cfgPath, "token", "set", "123456:ABCDEFGHIJKLMNOP")
	require.NoError(t, err)
	assert.Equal(t, "Token saved: 1234...MNOP\n", out)

	out, err = run(t, cfgPath, "config", "get", "telegram.bot_token")
	require.NoError(t, err)
	assert.NotContains(t, out, "ABCDEFGHIJKLMNOP")

	out, err = run(t, cfgPath, "token", "status")
	require.NoError(t, err)
	assert.Equal(t, "Using saved token: 1234...MNOP\n", out)

	t.Setenv(config.TokenEnv, "999999:ZYXWVUTSRQ")
	out, err = run(t, cfgPath, "token", "status")
	require.NoError(t, err)
	assert.Equal(t, "Using BOT_TOKEN: 9999...TSRQ\n", out)
}

func TestCLI_BackupDisabled(t *testing.T) {
	cfgPath, _ := writeConfig(t, "")
	_, err := run(t, cfgPath, "backup", "push")
	assert.ErrorIs(t, err, errBackupDisabled)
	_, err = run(t, cfgPath, "backup", "restore")
	assert.ErrorIs(t, err, errBackupDisabled)
}

func TestServe_MissingToken(t *testing.T) {
	t.Setenv(config.TokenEnv, "")
	cfgPath, _ := writeConfig(t, "")
	configPath = cfgPath

	var logs bytes.Buffer
	e, err := openEnv(&logs)
	require.NoError(t, err)
	defer e.Close()

	err = serve(context.Background(), e)
	assert.ErrorIs(t, err, config.ErrMissingToken)
}
