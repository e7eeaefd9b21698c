package delivery

import (
	"time"

	"github.com/bmadcode/courier/pkg/transport"
)

// Channel is a delivery medium. The set is closed: email, sms, chat, webhook.
type Channel = transport.Channel

const (
	ChannelEmail   = transport.ChannelEmail
	ChannelSMS     = transport.ChannelSMS
	ChannelChat    = transport.ChannelChat
	ChannelWebhook = transport.ChannelWebhook
)

// Status is the delivery status of a notification.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Priority orders notifications and picks their default scheduling delay.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Outcome is the result recorded in a delivery log entry.
type Outcome string

const (
	OutcomeSent      Outcome = "sent"
	OutcomeDelivered Outcome = "delivered"
	OutcomeFailed    Outcome = "failed"
)

// BatchStatus is the aggregate status of a bulk batch.
type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchPartial   BatchStatus = "partial"
	BatchDelivered BatchStatus = "delivered"
	BatchFailed    BatchStatus = "failed"
)

// Notification is one logical message to one recipient.
type Notification struct {
	ID            string            `json:"id"`
	BatchID       string            `json:"batch_id,omitempty"`
	Recipient     string            `json:"recipient"`
	Channel       Channel           `json:"channel"`
	TemplateID    string            `json:"template_id"`
	Variables     map[string]any    `json:"variables,omitempty"`
	Subject       string            `json:"subject,omitempty"`
	Body          string            `json:"body,omitempty"`
	Status        Status            `json:"status"`
	Priority      Priority          `json:"priority"`
	RetryCount    int               `json:"retry_count"`
	MaxRetries    int               `json:"max_retries"`
	ScheduledAt   time.Time         `json:"scheduled_at"`
	NextAttemptAt *time.Time        `json:"next_attempt_at,omitempty"`
	SentAt        *time.Time        `json:"sent_at,omitempty"`
	DeliveredAt   *time.Time        `json:"delivered_at,omitempty"`
	LastError     string            `json:"last_error,omitempty"`
	ReferenceID   string            `json:"reference_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Version       int               `json:"version"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Terminal reports whether no further transition can happen.
func (n *Notification) Terminal() bool {
	switch n.Status {
	case StatusDelivered:
		return true
	case StatusFailed:
		return n.RetryCount >= n.MaxRetries
	}
	return false
}

// Clone returns a deep copy.
func (n *Notification) Clone() *Notification {
	c := *n
	if n.Variables != nil {
		c.Variables = make(map[string]any, len(n.Variables))
		for k, v := range n.Variables {
			c.Variables[k] = v
		}
	}
	if n.Metadata != nil {
		c.Metadata = make(map[string]string, len(n.Metadata))
		for k, v := range n.Metadata {
			c.Metadata[k] = v
		}
	}
	c.NextAttemptAt = cloneTime(n.NextAttemptAt)
	c.SentAt = cloneTime(n.SentAt)
	c.DeliveredAt = cloneTime(n.DeliveredAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// LogEntry is an immutable record of one delivery step.
// Attempt is the notification's retry count at the time of the step.
type LogEntry struct {
	ID             string    `json:"id"`
	NotificationID string    `json:"notification_id"`
	Channel        Channel   `json:"channel"`
	Attempt        int       `json:"attempt"`
	Outcome        Outcome   `json:"outcome"`
	ReferenceID    string    `json:"reference_id,omitempty"`
	Error          string    `json:"error,omitempty"`
	AttemptedAt    time.Time `json:"attempted_at"`
}

// BulkBatch groups the notifications created from one bulk request.
type BulkBatch struct {
	ID              string      `json:"id"`
	TemplateID      string      `json:"template_id"`
	Channel         Channel     `json:"channel"`
	Total           int         `json:"total"`
	NotificationIDs []string    `json:"notification_ids"`
	Successful      int         `json:"successful"`
	Failed          int         `json:"failed"`
	Pending         int         `json:"pending"`
	Status          BatchStatus `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
}

// Clone returns a deep copy.
func (b *BulkBatch) Clone() *BulkBatch {
	c := *b
	c.NotificationIDs = append([]string(nil), b.NotificationIDs...)
	c.CompletedAt = cloneTime(b.CompletedAt)
	return &c
}

// aggregateStatus derives the batch status from its tallies.
// An empty batch is vacuously delivered.
func aggregateStatus(successful, failed, pending int) BatchStatus {
	switch {
	case pending > 0:
		return BatchPending
	case failed == 0:
		return BatchDelivered
	case successful == 0:
		return BatchFailed
	default:
		return BatchPartial
	}
}

// DeliveryRequest asks for one notification to be delivered.
type DeliveryRequest struct {
	TemplateID string
	Channel    Channel
	Recipient  string
	Variables  map[string]any
	// Priority defaults to normal.
	Priority Priority
	// ScheduledAt defers delivery. Zero means now plus the priority delay.
	ScheduledAt time.Time
	// MaxRetries of zero uses the configured default; a negative value disables retries.
	MaxRetries int
	Metadata   map[string]string
}

// DeliveryResult is the outcome of a delivery attempt.
type DeliveryResult struct {
	NotificationID string
	Status         Status
	Message        string
	RetryCount     int
	ReferenceID    string
	// Retryable is true when a failed notification will be picked up by the retry sweep.
	Retryable bool
	// Err classifies a failure: ErrChannelUnavailable, ErrTemplate or ErrTransport.
	Err error
}

// BulkDeliveryRequest fans one template out to many recipients.
type BulkDeliveryRequest struct {
	TemplateID  string
	Channel     Channel
	Recipients  []string
	Variables   map[string]any
	Priority    Priority
	ScheduledAt time.Time
	MaxRetries  int
	Metadata    map[string]string
	// BatchSize of zero uses the configured default.
	BatchSize int
}

// BulkDeliveryResult summarises a bulk request.
type BulkDeliveryResult struct {
	BatchID    string
	Status     BatchStatus
	Total      int
	Successful int
	Failed     int
	Pending    int
	Results    []DeliveryResult
}

// RetryResult summarises one retry sweep.
type RetryResult struct {
	Retried   int `json:"retried"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// DispatchResult summarises one pass over scheduled notifications.
type DispatchResult struct {
	Dispatched int `json:"dispatched"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
}

// ChannelConfig holds per-channel operational settings. Read-only to the orchestrator.
type ChannelConfig struct {
	Active             bool              `yaml:"active"`
	RateLimitPerMinute int               `yaml:"rate_limit_per_minute"`
	Params             map[string]string `yaml:"params"`
}

// ChannelConfigs maps channels to their settings.
type ChannelConfigs map[Channel]ChannelConfig

// ChannelsFile is the on-disk shape of the channel configuration file.
type ChannelsFile struct {
	Channels ChannelConfigs `yaml:"channels"`
}

// DefaultChannelConfigs enables every channel without a rate limit.
func DefaultChannelConfigs() ChannelConfigs {
	out := make(ChannelConfigs, 4)
	for _, c := range transport.Channels() {
		out[c] = ChannelConfig{Active: true}
	}
	return out
}
