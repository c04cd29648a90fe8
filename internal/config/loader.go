package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigError reports a problem loading or parsing configuration.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so bot tokens and account credentials can be stored
// as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	for i := range cfg.Accounts {
		cfg.Accounts[i].Credential = expandEnvVars(cfg.Accounts[i].Credential)
	}
	for i := range cfg.Destinations {
		cfg.Destinations[i].Credential = expandEnvVars(cfg.Destinations[i].Credential)
	}
}

// Load reads the config file, applies defaults and environment overrides,
// and returns a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyDefaults(&cfg)
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields with the documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Style == "" {
		cfg.Logging.Style = "pretty"
	}
	if cfg.Ingest.HealthSampleSeconds == 0 {
		cfg.Ingest.HealthSampleSeconds = 30
	}
	if cfg.Ingest.RestartMaxSeconds == 0 {
		cfg.Ingest.RestartMaxSeconds = 300
	}
	if cfg.Relay.Shards == 0 {
		cfg.Relay.Shards = 4
	}
	if cfg.Relay.DedupWindowDays == 0 {
		cfg.Relay.DedupWindowDays = 7
	}
	if cfg.Relay.DebounceSeconds == 0 {
		cfg.Relay.DebounceSeconds = 3
	}
	if cfg.Retry.BaseDelaySeconds == 0 {
		cfg.Retry.BaseDelaySeconds = 60
	}
	if cfg.Retry.MaxDelaySeconds == 0 {
		cfg.Retry.MaxDelaySeconds = 3600
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.PollSeconds == 0 {
		cfg.Retry.PollSeconds = 10
	}
	if cfg.Retry.MaxConcurrent == 0 {
		cfg.Retry.MaxConcurrent = 10
	}
	if cfg.RateLimit.Algorithm == "" {
		cfg.RateLimit.Algorithm = "token_bucket"
	}
	if cfg.RateLimit.Capacity == 0 {
		cfg.RateLimit.Capacity = 5
	}
	if cfg.RateLimit.RatePerSecond == 0 {
		cfg.RateLimit.RatePerSecond = 1
	}
	if cfg.RateLimit.WindowSeconds == 0 {
		cfg.RateLimit.WindowSeconds = 10
	}
	if cfg.RateLimit.MaxPerWindow == 0 {
		cfg.RateLimit.MaxPerWindow = 10
	}
	if cfg.Media.ListenAddr == "" {
		cfg.Media.ListenAddr = "127.0.0.1:18750"
	}
	if cfg.Media.TokenTTLMinutes == 0 {
		cfg.Media.TokenTTLMinutes = 120
	}
	if cfg.Media.TokenCacheSize == 0 {
		cfg.Media.TokenCacheSize = 1000
	}
	if cfg.Media.DirectProbeSeconds == 0 {
		cfg.Media.DirectProbeSeconds = 10
	}
	if cfg.Media.DefaultCeilingBytes == 0 {
		cfg.Media.DefaultCeilingBytes = 5 << 20
	}
	if cfg.Media.MaxDimensionPixels == 0 {
		cfg.Media.MaxDimensionPixels = 2048
	}
	if cfg.Mapping.SuggestFloor == 0 {
		cfg.Mapping.SuggestFloor = 0.3
	}
	if cfg.Mapping.FeedbackMaxAgeDays == 0 {
		cfg.Mapping.FeedbackMaxAgeDays = 180
	}
}

// applyEnvOverrides reads RELAYLINE_* environment variables and overrides
// config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RELAYLINE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("RELAYLINE_BRIDGE_URL"); v != "" {
		cfg.Ingest.BridgeURL = v
	}
	if v := os.Getenv("RELAYLINE_MEDIA_ADDR"); v != "" {
		cfg.Media.ListenAddr = v
	}
	if v := os.Getenv("RELAYLINE_RELAY_SHARDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Relay.Shards = n
		}
	}
}
