package relay

import (
	"strings"

	"github.com/relayline/relayline/internal/domain"
)

// FilterVerdict says what happened to an event and why, for logging.
type FilterVerdict struct {
	Forward bool
	Reason  string
}

// EvaluateFilters applies the configured rules to the raw, unformatted
// event content. Any deny match vetoes forwarding regardless of allow
// lists; a non-empty allow list requires at least one match.
func EvaluateFilters(rules domain.FilterRules, ev domain.RawMessageEvent) FilterVerdict {
	body := strings.ToLower(ev.Body)

	for _, kw := range rules.KeywordDeny {
		if kw != "" && strings.Contains(body, strings.ToLower(kw)) {
			return FilterVerdict{Forward: false, Reason: "keyword denied: " + kw}
		}
	}
	for _, s := range rules.SenderDeny {
		if s != "" && (s == ev.Sender || s == ev.SenderName) {
			return FilterVerdict{Forward: false, Reason: "sender denied: " + s}
		}
	}

	if len(rules.TypeAllow) > 0 && !containsKind(rules.TypeAllow, ev.Kind) {
		return FilterVerdict{Forward: false, Reason: "event type not allowed: " + string(ev.Kind)}
	}
	if rules.MentionAllOnly && !ev.MentionAll {
		return FilterVerdict{Forward: false, Reason: "mention-all only"}
	}

	if len(rules.KeywordAllow) > 0 {
		matched := false
		for _, kw := range rules.KeywordAllow {
			if kw != "" && strings.Contains(body, strings.ToLower(kw)) {
				matched = true
				break
			}
		}
		if !matched {
			return FilterVerdict{Forward: false, Reason: "no allowed keyword matched"}
		}
	}
	if len(rules.SenderAllow) > 0 {
		matched := false
		for _, s := range rules.SenderAllow {
			if s == ev.Sender || s == ev.SenderName {
				matched = true
				break
			}
		}
		if !matched {
			return FilterVerdict{Forward: false, Reason: "sender not in allow list"}
		}
	}

	return FilterVerdict{Forward: true}
}

func containsKind(kinds []domain.EventKind, k domain.EventKind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}
