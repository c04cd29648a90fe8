package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFile_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 7, cfg.Relay.DedupWindowDays)
	assert.Equal(t, 3, cfg.Relay.DebounceSeconds)
	assert.Equal(t, 60, cfg.Retry.BaseDelaySeconds)
	assert.Equal(t, 3600, cfg.Retry.MaxDelaySeconds)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 10, cfg.Retry.MaxConcurrent)
	assert.Equal(t, "token_bucket", cfg.RateLimit.Algorithm)
	assert.Equal(t, 120, cfg.Media.TokenTTLMinutes)
	assert.Equal(t, 1000, cfg.Media.TokenCacheSize)
	assert.Equal(t, int64(5<<20), cfg.Media.DefaultCeilingBytes)
}

func TestLoad_ParsesAndKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
retry:
  maxRetries: 5
destinations:
  - platform: discord
    botId: bot-1
    credential: tok
mappings:
  - sourceChannel: "12345"
    platform: discord
    botId: bot-1
    destChannel: general
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, 60, cfg.Retry.BaseDelaySeconds, "unset fields keep defaults")
	require.Len(t, cfg.Mappings, 1)
	assert.Equal(t, "12345", cfg.Mappings[0].SourceChannel)
}

func TestLoad_ExpandsCredentialEnvVars(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN", "s3cret")
	path := writeConfig(t, `
destinations:
  - platform: telegram
    botId: tg-1
    credential: ${TEST_BOT_TOKEN}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Destinations[0].Credential)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RELAYLINE_LOG_LEVEL", "WARN")
	t.Setenv("RELAYLINE_RELAY_SHARDS", "8")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 8, cfg.Relay.Shards)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "logging: [not a map")
	_, err := Load(path)
	require.Error(t, err)
	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestValidSourceChannelID(t *testing.T) {
	assert.True(t, ValidSourceChannelID("12345"))
	assert.True(t, ValidSourceChannelID("12345/678"))
	assert.False(t, ValidSourceChannelID(""))
	assert.False(t, ValidSourceChannelID("abc"))
	assert.False(t, ValidSourceChannelID("12/34/56"))
}

func TestValidate_CatchesIssues(t *testing.T) {
	cfg := Config{
		Logging:   LoggingConfig{Level: "loud"},
		RateLimit: RateLimitConfig{Algorithm: "coin_flip"},
		Destinations: []DestinationConfig{
			{Platform: "discord", BotID: "bot-1", Credential: "tok"},
			{Platform: "discord", BotID: "bot-1", Credential: "tok"},
		},
		Mappings: []MappingEntry{
			{SourceChannel: "not-a-channel", Platform: "discord", BotID: "bot-1", DestChannel: "general"},
			{SourceChannel: "123", Platform: "telegram", BotID: "missing", DestChannel: "c"},
		},
	}
	issues := Validate(&cfg)

	paths := make([]string, 0, len(issues))
	for _, i := range issues {
		paths = append(paths, i.Path)
	}
	assert.Contains(t, paths, "logging.level")
	assert.Contains(t, paths, "rateLimit.algorithm")
	assert.Contains(t, paths, "destinations[1]")
	assert.Contains(t, paths, "mappings[0].sourceChannel")
	assert.Contains(t, paths, "mappings[1]")
}

func TestValidate_CleanConfig(t *testing.T) {
	cfg := Config{
		Destinations: []DestinationConfig{
			{Platform: "discord", BotID: "bot-1", Credential: "tok"},
		},
		Mappings: []MappingEntry{
			{SourceChannel: "123", Platform: "discord", BotID: "bot-1", DestChannel: "general"},
		},
	}
	assert.Empty(t, Validate(&cfg))
}

func TestResolvePaths_HomeOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RELAYLINE_HOME", dir)

	p, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, dir, p.Base)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), p.Config)

	require.NoError(t, p.EnsureDirs())
	for _, d := range []string{p.Data, p.Media, p.Logs} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
