package domain

import (
	"context"
	"time"
)

// TaskState is the persisted state of a retry record. Delivered tasks are
// removed from the retry queue rather than kept in a terminal state.
type TaskState string

const (
	TaskRetrying  TaskState = "retrying"
	TaskAbandoned TaskState = "abandoned"
)

// DestinationConfig is the opaque configuration blob for one destination bot.
// The core never constructs platform signatures or tokens; adapters consume
// the credential as-is.
type DestinationConfig struct {
	Platform      Platform `json:"platform"`
	BotID         string   `json:"botId"`
	Credential    string   `json:"credential"`
	MaxMediaBytes int64    `json:"maxMediaBytes,omitempty"` // destination size ceiling, 0 = platform default
}

// FormattedContent is a message body rendered for a destination's markup
// dialect, plus resolved mention and quote text.
type FormattedContent struct {
	Body       string `json:"body"`
	QuotedText string `json:"quotedText,omitempty"`
	SenderName string `json:"senderName,omitempty"`
}

// OutboundMedia is a media reference resolved by the media pipeline.
type OutboundMedia struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// DeliveryTask binds one raw event to one resolved mapping.
type DeliveryTask struct {
	ID        string           `json:"id"`
	Event     RawMessageEvent  `json:"event"`
	Mapping   ChannelMapping   `json:"mapping"`
	Content   FormattedContent `json:"content"`
	Media     []OutboundMedia  `json:"media,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// RetryRecord wraps a failed delivery task awaiting another attempt.
type RetryRecord struct {
	ID           string       `json:"id"`
	Task         DeliveryTask `json:"task"`
	RetryCount   int          `json:"retryCount"`
	LastError    string       `json:"lastError"`
	NextEligible time.Time    `json:"nextEligible"`
	State        TaskState    `json:"state"`
}

// DeliveryLogEntry is one record per delivery attempt, written through the
// log store for later querying and export.
type DeliveryLogEntry struct {
	ID            int64     `json:"id"`
	TaskID        string    `json:"taskId"`
	SourceMsgID   string    `json:"sourceMsgId"`
	SourceChannel string    `json:"sourceChannel"`
	DestKey       string    `json:"destKey"`
	Status        string    `json:"status"` // "success" | "failed"
	LatencyMs     int64     `json:"latencyMs"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Destination is the narrow delivery capability the relay core calls.
// Implementations live in internal/destination and classify platform
// errors into the failure taxonomy.
type Destination interface {
	Platform() Platform
	Deliver(ctx context.Context, cfg DestinationConfig, channelID string, content FormattedContent, media []OutboundMedia) error
}

// FilterRules are evaluated against the unfiltered raw content of every
// event. Any deny match vetoes forwarding; non-empty allow lists require at
// least one match.
type FilterRules struct {
	KeywordAllow   []string    `json:"keywordAllow,omitempty" yaml:"keywordAllow,omitempty"`
	KeywordDeny    []string    `json:"keywordDeny,omitempty" yaml:"keywordDeny,omitempty"`
	SenderAllow    []string    `json:"senderAllow,omitempty" yaml:"senderAllow,omitempty"`
	SenderDeny     []string    `json:"senderDeny,omitempty" yaml:"senderDeny,omitempty"`
	TypeAllow      []EventKind `json:"typeAllow,omitempty" yaml:"typeAllow,omitempty"`
	MentionAllOnly bool        `json:"mentionAllOnly,omitempty" yaml:"mentionAllOnly,omitempty"`
}
