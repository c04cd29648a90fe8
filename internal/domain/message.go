package domain

import "time"

// EventKind classifies a raw event from the ingestion layer.
type EventKind string

const (
	EventMessage  EventKind = "message"
	EventReaction EventKind = "reaction"
	EventEdit     EventKind = "edit"
)

// Attachment is a media reference carried by a raw event.
type Attachment struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType,omitempty"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// RawMessageEvent is the immutable fact emitted by an ingestion session.
// Exactly one event per source-message id may sit in the ingestion queue;
// duplicates are detected by the relay worker's dedup window.
type RawMessageEvent struct {
	ID          string       `json:"id"` // globally unique source-message id
	ChannelID   string       `json:"channelId"`
	ChannelName string       `json:"channelName,omitempty"`
	AccountID   string       `json:"accountId,omitempty"`
	Sender      string       `json:"sender"`
	SenderName  string       `json:"senderName,omitempty"`
	Kind        EventKind    `json:"kind"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments,omitempty"`
	ReplyToID   string       `json:"replyToId,omitempty"`
	QuotedBody  string       `json:"quotedBody,omitempty"`
	Mentions    []string     `json:"mentions,omitempty"`
	MentionAll  bool         `json:"mentionAll,omitempty"`
	Reaction    string       `json:"reaction,omitempty"` // set for reaction events
	Timestamp   time.Time    `json:"timestamp"`
}

// IsUpdate reports whether the event amends an earlier message rather than
// introducing a new one. Updates are debounced per source-message id.
func (e RawMessageEvent) IsUpdate() bool {
	return e.Kind == EventReaction || e.Kind == EventEdit
}
