package domain

import "time"

// Platform identifies a destination chat platform.
type Platform string

const (
	PlatformDiscord  Platform = "discord"
	PlatformTelegram Platform = "telegram"
	PlatformSlack    Platform = "slack"
)

// ChannelMapping binds a source channel to one destination channel.
// Many mappings may share a source channel (fan-out). Mappings are
// configuration: read-only to the relay core at relay time.
type ChannelMapping struct {
	ID            int64     `json:"id"`
	SourceChannel string    `json:"sourceChannel"`
	Platform      Platform  `json:"platform"`
	BotID         string    `json:"botId"`
	DestChannel   string    `json:"destChannel"`
	Enabled       bool      `json:"enabled"`
	CreatedAt     time.Time `json:"createdAt"`
}

// DestKey returns a stable key identifying the mapping's destination,
// used for rate limiting and retry bookkeeping.
func (m ChannelMapping) DestKey() string {
	return string(m.Platform) + ":" + m.BotID + ":" + m.DestChannel
}

// MappingFeedback is an append-only accept/reject signal consumed by the
// mapping engine's learned weight.
type MappingFeedback struct {
	SourceChannel string    `json:"sourceChannel"`
	DestKey       string    `json:"destKey"`
	Accepted      bool      `json:"accepted"`
	Timestamp     time.Time `json:"timestamp"`
}

// Suggestion is one ranked candidate from the mapping engine.
type Suggestion struct {
	Candidate  string  `json:"candidate"`
	Confidence float64 `json:"confidence"` // always in [0,1]
	Reason     string  `json:"reason"`
}
