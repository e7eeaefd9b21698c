package transport

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/bmadcode/courier/pkg/webhook"
)

// SMSConfig points the SMS transport at an HTTP SMS gateway.
type SMSConfig struct {
	GatewayURL string        `env:"SMS_GATEWAY_URL"`
	APIKey     string        `env:"SMS_API_KEY"`
	From       string        `env:"SMS_FROM"`
	Timeout    time.Duration `env:"SMS_TIMEOUT" envDefault:"30s"`
}

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// SMS posts one message per call to an HTTP gateway. It never retries;
// the orchestrator's retry sweep owns resubmission.
type SMS struct {
	cfg    SMSConfig
	sender *webhook.Sender
	opts   []webhook.SendOption
}

// NewSMS creates an SMS transport. Extra send options are applied after the defaults.
func NewSMS(cfg SMSConfig, sender *webhook.Sender, opts ...webhook.SendOption) *SMS {
	if sender == nil {
		sender = webhook.NewSender()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = webhook.DefaultTimeout
	}
	return &SMS{cfg: cfg, sender: sender, opts: opts}
}

func (s *SMS) Channel() Channel { return ChannelSMS }

type smsMessage struct {
	To             string `json:"to"`
	From           string `json:"from,omitempty"`
	Body           string `json:"body"`
	NotificationID string `json:"notification_id,omitempty"`
}

func (s *SMS) Send(ctx context.Context, recipient string, content Content, metadata map[string]string) (string, error) {
	if s.cfg.GatewayURL == "" {
		return "", fmt.Errorf("%w: %w: sms gateway", ErrSendFailed, ErrUnconfigured)
	}
	if !e164.MatchString(recipient) {
		return "", fmt.Errorf("%w: %w: %q is not an E.164 number", ErrSendFailed, ErrInvalidRecipient, recipient)
	}

	opts := []webhook.SendOption{webhook.WithNoRetry(), webhook.WithTimeout(s.cfg.Timeout)}
	if s.cfg.APIKey != "" {
		opts = append(opts, webhook.WithHeader("Authorization", "Bearer "+s.cfg.APIKey))
	}
	opts = append(opts, s.opts...)

	receipt, err := s.sender.Send(ctx, s.cfg.GatewayURL, smsMessage{
		To:             recipient,
		From:           s.cfg.From,
		Body:           content.Body,
		NotificationID: metadata[MetaNotificationID],
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return receipt.DeliveryID, nil
}

func (s *SMS) Health(context.Context) Health {
	if s.cfg.GatewayURL == "" {
		return Health{Status: HealthUnconfigured, Detail: "SMS_GATEWAY_URL not set"}
	}
	return Health{Status: HealthConfigured, Detail: "http gateway"}
}
