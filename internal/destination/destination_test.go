package destination

import (
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/slack-go/slack"

	"github.com/relayline/relayline/internal/domain"
	"github.com/relayline/relayline/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() *logging.Logger {
	return logging.New(io.Discard, "error", "json")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(testLog())
	RegisterDefaults(r, testLog())

	for _, p := range []domain.Platform{domain.PlatformDiscord, domain.PlatformTelegram, domain.PlatformSlack} {
		d, ok := r.Get(p)
		require.True(t, ok, p)
		assert.Equal(t, p, d.Platform())
	}
	_, ok := r.Get(domain.Platform("matrix"))
	assert.False(t, ok)
	assert.Len(t, r.Platforms(), 3)
}

func TestClassifyStatus(t *testing.T) {
	cases := map[int]domain.FailureKind{
		http.StatusTooManyRequests:     domain.FailRateLimited,
		http.StatusUnauthorized:        domain.FailPermanentAuth,
		http.StatusForbidden:           domain.FailPermanentAuth,
		http.StatusNotFound:            domain.FailPermanentConfig,
		http.StatusBadRequest:          domain.FailPermanentConfig,
		http.StatusInternalServerError: domain.FailTransient,
		http.StatusBadGateway:          domain.FailTransient,
	}
	for code, want := range cases {
		assert.Equal(t, want, classifyStatus(code), "status %d", code)
	}
}

func TestWrapErr_PreservesExistingKind(t *testing.T) {
	inner := domain.NewDeliveryError(domain.FailPermanentAuth, errors.New("bad token"))
	got := wrapErr(domain.FailTransient, inner)
	assert.Equal(t, domain.FailPermanentAuth, domain.ClassifyDelivery(got))
}

func TestDiscord_Classify(t *testing.T) {
	d := NewDiscord(testLog())

	restErr := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusUnauthorized}}
	assert.Equal(t, domain.FailPermanentAuth, domain.ClassifyDelivery(d.classify(restErr)))

	restErr = &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusTooManyRequests}}
	assert.Equal(t, domain.FailRateLimited, domain.ClassifyDelivery(d.classify(restErr)))

	assert.Equal(t, domain.FailTransient, domain.ClassifyDelivery(d.classify(errors.New("connection reset"))))
}

func TestSlack_Classify(t *testing.T) {
	s := NewSlack(testLog())

	assert.Equal(t, domain.FailPermanentAuth, domain.ClassifyDelivery(s.classify(errors.New("invalid_auth"))))
	assert.Equal(t, domain.FailPermanentConfig, domain.ClassifyDelivery(s.classify(errors.New("channel_not_found"))))
	assert.Equal(t, domain.FailRateLimited, domain.ClassifyDelivery(s.classify(errors.New("rate_limited"))))
	assert.Equal(t, domain.FailTransient,
		domain.ClassifyDelivery(s.classify(slack.StatusCodeError{Code: http.StatusBadGateway})))
	assert.Equal(t, domain.FailTransient, domain.ClassifyDelivery(s.classify(errors.New("eof"))))
}

func TestAdapters_MissingCredentialIsConfigError(t *testing.T) {
	r := NewRegistry(testLog())
	RegisterDefaults(r, testLog())

	for _, p := range r.Platforms() {
		d, _ := r.Get(p)
		err := d.Deliver(t.Context(), domain.DestinationConfig{Platform: p}, "chan",
			domain.FormattedContent{Body: "hi"}, nil)
		require.Error(t, err, p)
		assert.Equal(t, domain.FailPermanentConfig, domain.ClassifyDelivery(err), p)
		assert.False(t, domain.IsRetryable(err), p)
	}
}
