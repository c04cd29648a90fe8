package destination

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/slack-go/slack"

	"github.com/relayline/relayline/internal/domain"
	"github.com/relayline/relayline/internal/logging"
)

// slackErrorKinds maps chat.postMessage error codes to failure kinds. The
// Slack web API reports errors as stable code strings, not free text.
var slackErrorKinds = map[string]domain.FailureKind{
	"invalid_auth":      domain.FailPermanentAuth,
	"not_authed":        domain.FailPermanentAuth,
	"token_revoked":     domain.FailPermanentAuth,
	"account_inactive":  domain.FailPermanentAuth,
	"channel_not_found": domain.FailPermanentConfig,
	"not_in_channel":    domain.FailPermanentConfig,
	"is_archived":       domain.FailPermanentConfig,
	"msg_too_long":      domain.FailPermanentConfig,
	"rate_limited":      domain.FailRateLimited,
	"ratelimited":       domain.FailRateLimited,
}

// Slack delivers through the Slack web API.
type Slack struct {
	log *logging.Logger

	mu      sync.Mutex
	clients map[string]*slack.Client
}

// NewSlack creates the Slack adapter.
func NewSlack(log *logging.Logger) *Slack {
	return &Slack{
		log:     log.Sub("slack"),
		clients: make(map[string]*slack.Client),
	}
}

// Platform implements domain.Destination.
func (s *Slack) Platform() domain.Platform { return domain.PlatformSlack }

// Deliver implements domain.Destination.
func (s *Slack) Deliver(ctx context.Context, cfg domain.DestinationConfig, channelID string, content domain.FormattedContent, media []domain.OutboundMedia) error {
	if cfg.Credential == "" {
		return domain.NewDeliveryError(domain.FailPermanentConfig, errors.New("slack bot has no credential"))
	}
	client := s.client(cfg.Credential)

	opts := []slack.MsgOption{slack.MsgOptionText(content.Body, false)}
	var attachments []slack.Attachment
	for _, m := range media {
		if strings.HasPrefix(m.MimeType, "image/") {
			attachments = append(attachments, slack.Attachment{ImageURL: m.URL})
		} else {
			attachments = append(attachments, slack.Attachment{Title: m.Filename, TitleLink: m.URL})
		}
	}
	if len(attachments) > 0 {
		opts = append(opts, slack.MsgOptionAttachments(attachments...))
	}

	if _, _, err := client.PostMessageContext(ctx, channelID, opts...); err != nil {
		return s.classify(err)
	}
	return nil
}

func (s *Slack) client(credential string) *slack.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[credential]; ok {
		return c
	}
	c := slack.New(credential)
	s.clients[credential] = c
	return c
}

func (s *Slack) classify(err error) error {
	var rl *slack.RateLimitedError
	if errors.As(err, &rl) {
		return wrapErr(domain.FailRateLimited, err)
	}
	var sc slack.StatusCodeError
	if errors.As(err, &sc) {
		return wrapErr(classifyStatus(sc.Code), err)
	}
	if kind, ok := slackErrorKinds[err.Error()]; ok {
		return wrapErr(kind, err)
	}
	return wrapErr(domain.FailTransient, err)
}
