package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Contains(t, cfg.GMCP.Subscriptions, "char.vitals 1")
	assert.Equal(t, "<MAPSTART>", cfg.Patterns.Map.StartTag)
	assert.Equal(t, `^INFO:\s+`, cfg.Patterns.Info.Prefix)
	assert.Len(t, cfg.Patterns.Conversation, 5)
	assert.Equal(t, 8.0, cfg.Timers.Conversation.AutoClose)
	assert.Equal(t, 200, cfg.Timers.Info.MaxHistory)
	assert.Equal(t, 5000, cfg.UI.MaxOutputLines)
	assert.True(t, cfg.UI.History.Conversations)
	assert.False(t, cfg.UI.History.Maps)
	assert.Equal(t, []string{"map", "look"}, cfg.Hooks.PostLogin)
	assert.Empty(t, cfg.Hooks.OnExit)
	assert.Empty(t, cfg.Connection.Host)
}

func TestDefaultPatternsCompile(t *testing.T) {
	_, err := Default().ClassifyPatterns().Compile()
	require.NoError(t, err)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "game.yml", `
connection:
  host: mud.example.com
  port: 4000
  charset: ISO-8859-1
timers:
  conversation:
    auto_close: 3.5
hooks:
  on_exit:
    - quit
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mud.example.com", cfg.Connection.Host)
	assert.Equal(t, 4000, cfg.Connection.Port)
	assert.Equal(t, "ISO-8859-1", cfg.Connection.Charset)
	assert.Equal(t, 3.5, cfg.Timers.Conversation.AutoClose)
	assert.Equal(t, []string{"quit"}, cfg.Hooks.OnExit)

	// Untouched sections keep the defaults.
	assert.Equal(t, "<MAPSTART>", cfg.Patterns.Map.StartTag)
	assert.Equal(t, 5000, cfg.UI.MaxOutputLines)
}

func TestLoadDefaultToleratesMissingFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Patterns.Map.StartTag, cfg.Patterns.Map.StartTag)
}

func TestLoadMissingNamedConfigFails(t *testing.T) {
	_, err := Load("no-such-config-name")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-config-name")
	assert.Contains(t, err.Error(), "searched")
}

func TestLoadMissingPathFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoadBadYAMLFails(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.yml", "connection: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadProfile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "hero.yml", `
username: hero
password: hunter2
`)

	profile, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "hero", profile.Username)
	assert.Equal(t, "hunter2", profile.Password)
}

func TestLoadProfileMissingFails(t *testing.T) {
	_, err := LoadProfile("no-such-profile")
	assert.Error(t, err)
}

func TestClassifyPatternsCarriesConversation(t *testing.T) {
	pc := Default().ClassifyPatterns()
	require.Len(t, pc.Conversation, 5)
	assert.Equal(t, "says", pc.Conversation[0].Label)
	assert.NotEmpty(t, pc.Conversation[0].Pattern)
}
