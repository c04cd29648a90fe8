package relay

import (
	"fmt"
	"strings"

	"github.com/relayline/relayline/internal/domain"
)

// FormatFor renders an event for a destination's markup dialect: sender
// attribution, a quote block for replies, resolved mention text. Raw
// content is never mutated; filters run before formatting.
func FormatFor(platform domain.Platform, ev domain.RawMessageEvent) domain.FormattedContent {
	var b strings.Builder

	sender := ev.SenderName
	if sender == "" {
		sender = ev.Sender
	}
	if sender != "" {
		b.WriteString(boldFor(platform, sender))
		b.WriteString("\n")
	}

	if ev.QuotedBody != "" {
		for _, line := range strings.Split(ev.QuotedBody, "\n") {
			b.WriteString("> ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	switch ev.Kind {
	case domain.EventReaction:
		b.WriteString(fmt.Sprintf("reacted with %s", ev.Reaction))
	case domain.EventEdit:
		b.WriteString(italicFor(platform, "(edited)"))
		b.WriteString(" ")
		b.WriteString(renderBody(ev))
	default:
		b.WriteString(renderBody(ev))
	}

	return domain.FormattedContent{
		Body:       strings.TrimSpace(b.String()),
		QuotedText: ev.QuotedBody,
		SenderName: sender,
	}
}

// renderBody resolves mention placeholders into readable text.
func renderBody(ev domain.RawMessageEvent) string {
	body := ev.Body
	if ev.MentionAll {
		body = "@everyone " + body
	}
	for _, m := range ev.Mentions {
		if m != "" && !strings.Contains(body, "@"+m) {
			body = "@" + m + " " + body
		}
	}
	return body
}

// boldFor wraps text in the platform's bold markup. Telegram gets plain
// text because messages are sent without a parse mode.
func boldFor(p domain.Platform, s string) string {
	switch p {
	case domain.PlatformDiscord:
		return "**" + s + "**"
	case domain.PlatformSlack:
		return "*" + s + "*"
	default:
		return s + ":"
	}
}

func italicFor(p domain.Platform, s string) string {
	switch p {
	case domain.PlatformDiscord:
		return "*" + s + "*"
	case domain.PlatformSlack:
		return "_" + s + "_"
	default:
		return s
	}
}
