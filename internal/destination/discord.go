package destination

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/relayline/relayline/internal/domain"
	"github.com/relayline/relayline/internal/logging"
)

// Discord delivers through the Discord REST API. Sessions are created per
// credential and reused; the gateway websocket is never opened.
type Discord struct {
	log *logging.Logger

	mu       sync.Mutex
	sessions map[string]*discordgo.Session
}

// NewDiscord creates the Discord adapter.
func NewDiscord(log *logging.Logger) *Discord {
	return &Discord{
		log:      log.Sub("discord"),
		sessions: make(map[string]*discordgo.Session),
	}
}

// Platform implements domain.Destination.
func (d *Discord) Platform() domain.Platform { return domain.PlatformDiscord }

// Deliver implements domain.Destination.
func (d *Discord) Deliver(ctx context.Context, cfg domain.DestinationConfig, channelID string, content domain.FormattedContent, media []domain.OutboundMedia) error {
	if cfg.Credential == "" {
		return domain.NewDeliveryError(domain.FailPermanentConfig, errors.New("discord bot has no credential"))
	}
	s, err := d.session(cfg.Credential)
	if err != nil {
		return domain.NewDeliveryError(domain.FailPermanentConfig, err)
	}

	msg := &discordgo.MessageSend{Content: content.Body}
	var extraURLs []string
	for _, m := range media {
		if strings.HasPrefix(m.MimeType, "image/") && len(msg.Embeds) < 4 {
			msg.Embeds = append(msg.Embeds, &discordgo.MessageEmbed{
				Image: &discordgo.MessageEmbedImage{URL: m.URL},
			})
			continue
		}
		extraURLs = append(extraURLs, m.URL)
	}
	if len(extraURLs) > 0 {
		msg.Content = strings.TrimSpace(msg.Content + "\n" + strings.Join(extraURLs, "\n"))
	}

	_, err = s.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
	if err != nil {
		return d.classify(err)
	}
	return nil
}

func (d *Discord) session(credential string) (*discordgo.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.sessions[credential]; ok {
		return s, nil
	}
	s, err := discordgo.New("Bot " + credential)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	d.sessions[credential] = s
	return s, nil
}

func (d *Discord) classify(err error) error {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		return wrapErr(classifyStatus(rest.Response.StatusCode), err)
	}
	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		return wrapErr(domain.FailRateLimited, err)
	}
	return wrapErr(domain.FailTransient, err)
}
