package destination

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoapi"

	"github.com/relayline/relayline/internal/domain"
	"github.com/relayline/relayline/internal/logging"
)

// Telegram delivers through the Bot API. A single image rides as a photo
// with the body as caption; everything else goes as a text message.
type Telegram struct {
	log *logging.Logger

	mu   sync.Mutex
	bots map[string]*telego.Bot
}

// NewTelegram creates the Telegram adapter.
func NewTelegram(log *logging.Logger) *Telegram {
	return &Telegram{
		log:  log.Sub("telegram"),
		bots: make(map[string]*telego.Bot),
	}
}

// Platform implements domain.Destination.
func (t *Telegram) Platform() domain.Platform { return domain.PlatformTelegram }

// Deliver implements domain.Destination.
func (t *Telegram) Deliver(ctx context.Context, cfg domain.DestinationConfig, channelID string, content domain.FormattedContent, media []domain.OutboundMedia) error {
	if cfg.Credential == "" {
		return domain.NewDeliveryError(domain.FailPermanentConfig, errors.New("telegram bot has no credential"))
	}
	bot, err := t.bot(cfg.Credential)
	if err != nil {
		return domain.NewDeliveryError(domain.FailPermanentAuth, err)
	}
	chatID := parseChatID(channelID)

	if len(media) == 1 && strings.HasPrefix(media[0].MimeType, "image/") {
		_, err = bot.SendPhoto(ctx, &telego.SendPhotoParams{
			ChatID:  chatID,
			Photo:   telego.InputFile{URL: media[0].URL},
			Caption: content.Body,
		})
		if err != nil {
			return t.classify(err)
		}
		return nil
	}

	body := content.Body
	for _, m := range media {
		body = strings.TrimSpace(body + "\n" + m.URL)
	}
	_, err = bot.SendMessage(ctx, &telego.SendMessageParams{ChatID: chatID, Text: body})
	if err != nil {
		return t.classify(err)
	}
	return nil
}

func (t *Telegram) bot(credential string) (*telego.Bot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.bots[credential]; ok {
		return b, nil
	}
	b, err := telego.NewBot(credential, telego.WithDiscardLogger())
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	t.bots[credential] = b
	return b, nil
}

// parseChatID accepts numeric chat ids and @usernames.
func parseChatID(channelID string) telego.ChatID {
	if id, err := strconv.ParseInt(channelID, 10, 64); err == nil {
		return telego.ChatID{ID: id}
	}
	return telego.ChatID{Username: channelID}
}

func (t *Telegram) classify(err error) error {
	var apiErr *telegoapi.Error
	if errors.As(err, &apiErr) {
		return wrapErr(classifyStatus(apiErr.ErrorCode), err)
	}
	return wrapErr(domain.FailTransient, err)
}
