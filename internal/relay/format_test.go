package relay

import (
	"testing"

	"github.com/relayline/relayline/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestFormatFor_PlatformDialects(t *testing.T) {
	ev := domain.RawMessageEvent{SenderName: "alice", Body: "hello", Kind: domain.EventMessage}

	assert.Contains(t, FormatFor(domain.PlatformDiscord, ev).Body, "**alice**")
	assert.Contains(t, FormatFor(domain.PlatformSlack, ev).Body, "*alice*")
	assert.Contains(t, FormatFor(domain.PlatformTelegram, ev).Body, "alice:")
}

func TestFormatFor_QuoteBlock(t *testing.T) {
	ev := domain.RawMessageEvent{
		SenderName: "bob", Body: "agreed", Kind: domain.EventMessage,
		QuotedBody: "line one\nline two",
	}
	got := FormatFor(domain.PlatformDiscord, ev)
	assert.Contains(t, got.Body, "> line one\n> line two")
	assert.Equal(t, "line one\nline two", got.QuotedText)
}

func TestFormatFor_Mentions(t *testing.T) {
	ev := domain.RawMessageEvent{
		Sender: "u1", Body: "meeting now", Kind: domain.EventMessage,
		Mentions: []string{"carol"}, MentionAll: true,
	}
	got := FormatFor(domain.PlatformDiscord, ev)
	assert.Contains(t, got.Body, "@everyone")
	assert.Contains(t, got.Body, "@carol")
}

func TestFormatFor_Reaction(t *testing.T) {
	ev := domain.RawMessageEvent{SenderName: "dave", Kind: domain.EventReaction, Reaction: "👍"}
	got := FormatFor(domain.PlatformDiscord, ev)
	assert.Contains(t, got.Body, "reacted with 👍")
}

func TestFormatFor_SenderFallsBackToID(t *testing.T) {
	ev := domain.RawMessageEvent{Sender: "user-77", Body: "hi", Kind: domain.EventMessage}
	got := FormatFor(domain.PlatformTelegram, ev)
	assert.Equal(t, "user-77", got.SenderName)
}
