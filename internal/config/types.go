package config

import "github.com/relayline/relayline/internal/domain"

// Config is the root configuration for Relayline.
type Config struct {
	Logging      LoggingConfig       `yaml:"logging,omitempty"`
	Storage      StorageConfig       `yaml:"storage,omitempty"`
	Ingest       IngestConfig        `yaml:"ingest,omitempty"`
	Relay        RelayConfig         `yaml:"relay,omitempty"`
	Retry        RetryConfig         `yaml:"retry,omitempty"`
	RateLimit    RateLimitConfig     `yaml:"rateLimit,omitempty"`
	Media        MediaConfig         `yaml:"media,omitempty"`
	Mapping      MappingConfig       `yaml:"mapping,omitempty"`
	Accounts     []AccountConfig     `yaml:"accounts,omitempty"`
	Destinations []DestinationConfig `yaml:"destinations,omitempty"`
	Mappings     []MappingEntry      `yaml:"mappings,omitempty"`
	Filters      domain.FilterRules  `yaml:"filters,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	Style string `yaml:"style,omitempty"` // "pretty" | "json"
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Path string `yaml:"path,omitempty"` // defaults to <data>/relayline.db
}

// IngestConfig controls source-account ingestion sessions.
type IngestConfig struct {
	BridgeURL           string `yaml:"bridgeUrl,omitempty"` // scraper bridge websocket endpoint
	HealthSampleSeconds int    `yaml:"healthSampleSeconds,omitempty"`
	RestartMaxSeconds   int    `yaml:"restartMaxSeconds,omitempty"` // cap for session respawn backoff
}

// AccountConfig registers one source account. The credential blob is opaque
// to the relay core and handed to the scraper bridge as-is.
type AccountConfig struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name,omitempty"`
	Credential string `yaml:"credential,omitempty"`
}

// RelayConfig controls the relay worker.
type RelayConfig struct {
	Shards          int `yaml:"shards,omitempty"`          // worker shards, hashed by source channel
	DedupWindowDays int `yaml:"dedupWindowDays,omitempty"` // rolling dedup window
	DebounceSeconds int `yaml:"debounceSeconds,omitempty"` // reaction/edit coalescing window
}

// RetryConfig controls the retry queue.
type RetryConfig struct {
	BaseDelaySeconds int `yaml:"baseDelaySeconds,omitempty"`
	MaxDelaySeconds  int `yaml:"maxDelaySeconds,omitempty"`
	MaxRetries       int `yaml:"maxRetries,omitempty"`
	PollSeconds      int `yaml:"pollSeconds,omitempty"`
	MaxConcurrent    int `yaml:"maxConcurrent,omitempty"`
}

// RateLimitConfig selects and tunes the per-destination admission algorithm.
type RateLimitConfig struct {
	Algorithm     string  `yaml:"algorithm,omitempty"` // "token_bucket" | "sliding_window" | "leaky_bucket"
	Capacity      float64 `yaml:"capacity,omitempty"`
	RatePerSecond float64 `yaml:"ratePerSecond,omitempty"`
	WindowSeconds int     `yaml:"windowSeconds,omitempty"`
	MaxPerWindow  int     `yaml:"maxPerWindow,omitempty"`
}

// MediaConfig controls the media pipeline and its HTTP endpoint.
type MediaConfig struct {
	Dir                  string `yaml:"dir,omitempty"`     // artifact directory, defaults to <data>/media
	BaseURL              string `yaml:"baseUrl,omitempty"` // public base for tokened URLs
	ListenAddr           string `yaml:"listenAddr,omitempty"`
	TokenTTLMinutes      int    `yaml:"tokenTtlMinutes,omitempty"`
	TokenCacheSize       int    `yaml:"tokenCacheSize,omitempty"`
	DirectProbeSeconds   int    `yaml:"directProbeSeconds,omitempty"`
	DefaultCeilingBytes  int64  `yaml:"defaultCeilingBytes,omitempty"`
	TranscodeWorkers     int    `yaml:"transcodeWorkers,omitempty"`
	MaxDimensionPixels   int    `yaml:"maxDimensionPixels,omitempty"`
}

// MappingConfig tunes the mapping engine.
type MappingConfig struct {
	SuggestFloor       float64 `yaml:"suggestFloor,omitempty"`       // minimum confidence to surface
	FeedbackMaxAgeDays int     `yaml:"feedbackMaxAgeDays,omitempty"` // prune feedback older than this
}

// DestinationConfig declares one destination bot.
type DestinationConfig struct {
	Platform      string `yaml:"platform"` // "discord" | "telegram" | "slack"
	BotID         string `yaml:"botId"`
	Credential    string `yaml:"credential"`
	MaxMediaBytes int64  `yaml:"maxMediaBytes,omitempty"`
}

// MappingEntry declares one source-to-destination channel mapping.
type MappingEntry struct {
	SourceChannel string `yaml:"sourceChannel"`
	Platform      string `yaml:"platform"`
	BotID         string `yaml:"botId"`
	DestChannel   string `yaml:"destChannel"`
	Disabled      bool   `yaml:"disabled,omitempty"`
}
