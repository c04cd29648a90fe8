package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapping_DestKey(t *testing.T) {
	m := ChannelMapping{Platform: PlatformDiscord, BotID: "bot-1", DestChannel: "general"}
	assert.Equal(t, "discord:bot-1:general", m.DestKey())
}

func TestRawMessageEvent_IsUpdate(t *testing.T) {
	assert.False(t, RawMessageEvent{Kind: EventMessage}.IsUpdate())
	assert.True(t, RawMessageEvent{Kind: EventReaction}.IsUpdate())
	assert.True(t, RawMessageEvent{Kind: EventEdit}.IsUpdate())
}

func TestDeliveryError_Retryable(t *testing.T) {
	cases := []struct {
		kind      FailureKind
		retryable bool
	}{
		{FailTransient, true},
		{FailRateLimited, true},
		{FailPermanentAuth, false},
		{FailPermanentConfig, false},
		{FailMediaUnavailable, false},
	}
	for _, tc := range cases {
		de := NewDeliveryError(tc.kind, errors.New("boom"))
		assert.Equal(t, tc.retryable, de.Retryable(), "kind %s", tc.kind)
		assert.Equal(t, tc.retryable, IsRetryable(de), "kind %s via chain", tc.kind)
	}
}

func TestClassifyDelivery_Wrapped(t *testing.T) {
	inner := NewDeliveryError(FailPermanentAuth, errors.New("401"))
	wrapped := errors.New("outer")
	assert.Equal(t, FailTransient, ClassifyDelivery(wrapped), "unclassified defaults to transient")

	chain := &DeliveryError{Kind: FailPermanentConfig, Err: inner}
	assert.Equal(t, FailPermanentConfig, ClassifyDelivery(chain))
}

func TestOperatorText_AllVariantsCovered(t *testing.T) {
	for _, k := range []FailureKind{FailTransient, FailRateLimited, FailPermanentAuth, FailPermanentConfig, FailMediaUnavailable} {
		assert.NotEqual(t, "delivery failed", OperatorText(k), "missing text for %s", k)
	}
	assert.Equal(t, "delivery failed", OperatorText(FailureKind("bogus")))
}
