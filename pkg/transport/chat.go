package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bmadcode/courier/pkg/webhook"
)

// Chat payload flavors.
const (
	FlavorSlack   = "slack"
	FlavorDiscord = "discord"
)

// ChatConfig configures the chat transport.
// When WebhookURL is set, recipients that are not URLs are treated as channel names.
type ChatConfig struct {
	Flavor     string        `env:"CHAT_FLAVOR" envDefault:"slack"`
	WebhookURL string        `env:"CHAT_WEBHOOK_URL"`
	Username   string        `env:"CHAT_USERNAME" envDefault:"Courier"`
	Timeout    time.Duration `env:"CHAT_TIMEOUT" envDefault:"30s"`
}

type slackMessage struct {
	Username string `json:"username,omitempty"`
	Channel  string `json:"channel,omitempty"`
	Text     string `json:"text"`
}

type discordEmbed struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description"`
}

type discordMessage struct {
	Username string         `json:"username,omitempty"`
	Content  string         `json:"content,omitempty"`
	Embeds   []discordEmbed `json:"embeds,omitempty"`
}

// Chat posts to Slack or Discord incoming webhooks. Single attempt per call.
type Chat struct {
	cfg    ChatConfig
	sender *webhook.Sender
	opts   []webhook.SendOption
}

// NewChat creates a chat transport.
func NewChat(cfg ChatConfig, sender *webhook.Sender, opts ...webhook.SendOption) *Chat {
	if sender == nil {
		sender = webhook.NewSender()
	}
	if cfg.Flavor == "" {
		cfg.Flavor = FlavorSlack
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = webhook.DefaultTimeout
	}
	return &Chat{cfg: cfg, sender: sender, opts: opts}
}

func (c *Chat) Channel() Channel { return ChannelChat }

func (c *Chat) Send(ctx context.Context, recipient string, content Content, metadata map[string]string) (string, error) {
	target, channel, err := c.resolve(recipient, metadata)
	if err != nil {
		return "", err
	}

	var payload any
	switch c.cfg.Flavor {
	case FlavorDiscord:
		msg := discordMessage{Username: c.cfg.Username}
		if content.Subject != "" {
			msg.Embeds = []discordEmbed{{Title: content.Subject, Description: content.Body}}
		} else {
			msg.Content = content.Body
		}
		payload = msg
	default:
		text := content.Body
		if content.Subject != "" {
			text = "*" + content.Subject + "*\n" + content.Body
		}
		payload = slackMessage{Username: c.cfg.Username, Channel: channel, Text: text}
	}

	opts := append([]webhook.SendOption{webhook.WithNoRetry(), webhook.WithTimeout(c.cfg.Timeout)}, c.opts...)
	receipt, err := c.sender.Send(ctx, target, payload, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return receipt.DeliveryID, nil
}

// resolve returns the webhook URL to post to and the optional channel override.
func (c *Chat) resolve(recipient string, metadata map[string]string) (string, string, error) {
	if strings.HasPrefix(recipient, "https://") || strings.HasPrefix(recipient, "http://") {
		return recipient, metadata[MetaChatChannel], nil
	}
	if c.cfg.WebhookURL == "" {
		return "", "", fmt.Errorf("%w: %w: chat recipient %q is not a webhook URL", ErrSendFailed, ErrInvalidRecipient, recipient)
	}
	return c.cfg.WebhookURL, recipient, nil
}

func (c *Chat) Health(context.Context) Health {
	switch c.cfg.Flavor {
	case FlavorSlack, FlavorDiscord:
	default:
		return Health{Status: HealthError, Detail: "unknown chat flavor " + c.cfg.Flavor}
	}
	if c.cfg.WebhookURL == "" {
		return Health{Status: HealthConfigured, Detail: c.cfg.Flavor + " (recipient URLs)"}
	}
	return Health{Status: HealthConfigured, Detail: c.cfg.Flavor}
}
