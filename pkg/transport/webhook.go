package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bmadcode/courier/pkg/logger"
	"github.com/bmadcode/courier/pkg/webhook"
)

// WebhookConfig configures the generic webhook transport.
type WebhookConfig struct {
	Secret           string        `env:"WEBHOOK_SECRET"`
	Timeout          time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"30s"`
	MaxAttempts      int           `env:"WEBHOOK_MAX_ATTEMPTS" envDefault:"3"`
	BaseDelay        time.Duration `env:"WEBHOOK_BASE_DELAY" envDefault:"5s"`
	BreakerFailures  int           `env:"WEBHOOK_BREAKER_FAILURES" envDefault:"5"`
	BreakerSuccesses int           `env:"WEBHOOK_BREAKER_SUCCESSES" envDefault:"2"`
	BreakerRecovery  time.Duration `env:"WEBHOOK_BREAKER_RECOVERY" envDefault:"30s"`
}

// DefaultWebhookConfig returns the documented defaults: 3 attempts, 5s base delay, 30s timeout.
func DefaultWebhookConfig() WebhookConfig {
	return WebhookConfig{
		Timeout:          webhook.DefaultTimeout,
		MaxAttempts:      webhook.DefaultMaxAttempts,
		BaseDelay:        webhook.DefaultBaseDelay,
		BreakerFailures:  5,
		BreakerSuccesses: 2,
		BreakerRecovery:  30 * time.Second,
	}
}

// WebhookPayload is the JSON body posted to webhook recipients.
type WebhookPayload struct {
	NotificationID string            `json:"notification_id,omitempty"`
	Subject        string            `json:"subject,omitempty"`
	Body           string            `json:"body"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	SentAt         time.Time         `json:"sent_at"`
}

// Webhook delivers to arbitrary HTTP endpoints, retrying inside a single Send
// and keeping one circuit breaker per endpoint host.
type Webhook struct {
	cfg    WebhookConfig
	sender *webhook.Sender
	opts   []webhook.SendOption
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	breakers map[string]*webhook.CircuitBreaker
}

// WebhookOption configures the Webhook transport.
type WebhookOption func(*Webhook)

// WithWebhookSendOptions appends raw sender options, applied after the configured ones.
func WithWebhookSendOptions(opts ...webhook.SendOption) WebhookOption {
	return func(w *Webhook) { w.opts = append(w.opts, opts...) }
}

// WithWebhookLogger sets the logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithWebhookSender overrides the HTTP sender.
func WithWebhookSender(s *webhook.Sender) WebhookOption {
	return func(w *Webhook) {
		if s != nil {
			w.sender = s
		}
	}
}

// NewWebhook creates a webhook transport.
func NewWebhook(cfg WebhookConfig, opts ...WebhookOption) *Webhook {
	def := DefaultWebhookConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = def.BreakerFailures
	}
	if cfg.BreakerSuccesses <= 0 {
		cfg.BreakerSuccesses = def.BreakerSuccesses
	}
	if cfg.BreakerRecovery <= 0 {
		cfg.BreakerRecovery = def.BreakerRecovery
	}

	w := &Webhook{
		cfg:      cfg,
		sender:   webhook.NewSender(),
		logger:   slog.Default(),
		now:      time.Now,
		breakers: make(map[string]*webhook.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Webhook) Channel() Channel { return ChannelWebhook }

func (w *Webhook) Send(ctx context.Context, recipient string, content Content, metadata map[string]string) (string, error) {
	u, err := url.Parse(recipient)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: %w: %q is not an http(s) URL", ErrSendFailed, ErrInvalidRecipient, recipient)
	}

	method := http.MethodPost
	if m := strings.ToUpper(metadata[MetaWebhookMethod]); m != "" {
		method = m
	}

	opts := []webhook.SendOption{
		webhook.WithMethod(method),
		webhook.WithTimeout(w.cfg.Timeout),
		webhook.WithMaxAttempts(w.cfg.MaxAttempts),
		webhook.WithBackoff(webhook.ExponentialBackoff{Base: w.cfg.BaseDelay}),
		webhook.WithCircuitBreaker(w.breaker(u.Host)),
		webhook.WithOnAttempt(func(r webhook.AttemptResult) {
			if r.Err == nil {
				return
			}
			w.logger.WarnContext(ctx, "webhook attempt failed",
				logger.Component("transport.webhook"),
				logger.NotificationID(metadata[MetaNotificationID]),
				logger.Attempt(r.Attempt),
				slog.Int("status_code", r.StatusCode),
				logger.Duration(r.Duration),
				logger.Error(r.Err),
			)
		}),
	}
	if w.cfg.Secret != "" {
		opts = append(opts, webhook.WithSignature(w.cfg.Secret))
	}
	opts = append(opts, w.opts...)

	receipt, err := w.sender.Send(ctx, recipient, WebhookPayload{
		NotificationID: metadata[MetaNotificationID],
		Subject:        content.Subject,
		Body:           content.Body,
		Metadata:       metadata,
		SentAt:         w.now().UTC(),
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return receipt.DeliveryID, nil
}

func (w *Webhook) breaker(host string) *webhook.CircuitBreaker {
	w.mu.Lock()
	defer w.mu.Unlock()
	cb, ok := w.breakers[host]
	if !ok {
		cb = webhook.NewCircuitBreaker(w.cfg.BreakerFailures, w.cfg.BreakerSuccesses, w.cfg.BreakerRecovery)
		w.breakers[host] = cb
	}
	return cb
}

// OpenCircuits returns the hosts whose breaker is currently open.
func (w *Webhook) OpenCircuits() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var hosts []string
	for host, cb := range w.breakers {
		if cb.State() == webhook.CircuitOpen {
			hosts = append(hosts, host)
		}
	}
	return hosts
}

func (w *Webhook) Health(context.Context) Health {
	if open := w.OpenCircuits(); len(open) > 0 {
		return Health{Status: HealthConfigured, Detail: fmt.Sprintf("%d endpoint circuit(s) open", len(open))}
	}
	if w.cfg.Secret == "" {
		return Health{Status: HealthConfigured, Detail: "unsigned"}
	}
	return Health{Status: HealthConfigured, Detail: "signed"}
}
