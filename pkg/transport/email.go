package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bmadcode/courier/pkg/email"
	"github.com/bmadcode/courier/pkg/logger"
)

// Metadata keys understood by transports.
const (
	MetaTag            = "tag"
	MetaNotificationID = "notification_id"
	MetaWebhookMethod  = "webhook_method"
	MetaChatChannel    = "chat_channel"
)

// Email delivers through an email.EmailSender.
type Email struct {
	sender email.EmailSender
	mode   string
	logger *slog.Logger
}

// EmailOption configures the Email transport.
type EmailOption func(*Email)

// WithEmailMode labels the underlying provider in health reports, e.g. "postmark" or "dev".
func WithEmailMode(mode string) EmailOption {
	return func(e *Email) { e.mode = mode }
}

// WithEmailLogger sets the logger.
func WithEmailLogger(l *slog.Logger) EmailOption {
	return func(e *Email) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEmail creates an email transport. A nil sender yields an unconfigured transport.
func NewEmail(sender email.EmailSender, opts ...EmailOption) *Email {
	e := &Email{sender: sender, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewEmailFromConfig picks Postmark when both tokens are present, otherwise the on-disk DevSender.
func NewEmailFromConfig(cfg email.Config, opts ...EmailOption) (*Email, error) {
	if !cfg.HasPostmark() {
		return NewEmail(email.NewDevSender(cfg.DevDir), append([]EmailOption{WithEmailMode("dev")}, opts...)...), nil
	}
	sender, err := email.NewPostmarkClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewEmail(sender, append([]EmailOption{WithEmailMode("postmark")}, opts...)...), nil
}

func (e *Email) Channel() Channel { return ChannelEmail }

func (e *Email) Send(ctx context.Context, recipient string, content Content, metadata map[string]string) (string, error) {
	if e.sender == nil {
		return "", fmt.Errorf("%w: %w: email", ErrSendFailed, ErrUnconfigured)
	}

	params := email.SendEmailParams{
		SendTo:   recipient,
		Subject:  content.Subject,
		Tag:      metadata[MetaTag],
		Metadata: metadata,
	}
	if content.HTML {
		params.BodyHTML = content.Body
	} else {
		params.BodyText = content.Body
	}

	id, err := e.sender.SendEmail(ctx, params)
	if err != nil {
		if errors.Is(err, email.ErrInvalidParams) {
			return "", fmt.Errorf("%w: %w: %w", ErrSendFailed, ErrInvalidRecipient, err)
		}
		return "", fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	e.logger.DebugContext(ctx, "email sent",
		logger.Component("transport.email"),
		slog.String("message_id", id),
	)
	return id, nil
}

func (e *Email) Health(context.Context) Health {
	if e.sender == nil {
		return Health{Status: HealthUnconfigured, Detail: "no email sender"}
	}
	return Health{Status: HealthConfigured, Detail: e.mode}
}
