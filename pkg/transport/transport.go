package transport

import (
	"context"
	"fmt"
)

// Channel is a delivery medium.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelSMS     Channel = "sms"
	ChannelChat    Channel = "chat"
	ChannelWebhook Channel = "webhook"
)

// Channels returns the supported channels in a stable order.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelSMS, ChannelChat, ChannelWebhook}
}

// Valid reports whether c is one of the supported channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelChat, ChannelWebhook:
		return true
	}
	return false
}

func (c Channel) String() string { return string(c) }

// Content is a rendered message.
type Content struct {
	Subject string
	Body    string
	HTML    bool
}

// Transport sends one rendered message to one recipient.
// Send returns a channel-native reference id on success.
type Transport interface {
	Channel() Channel
	Send(ctx context.Context, recipient string, content Content, metadata map[string]string) (string, error)
	Health(ctx context.Context) Health
}

// Set holds exactly one transport per supported channel.
// A nil field means the channel has no transport configured.
type Set struct {
	Email   Transport
	SMS     Transport
	Chat    Transport
	Webhook Transport
}

// Get returns the transport for c, or nil when the channel is not configured.
// It panics on a channel outside the closed set.
func (s Set) Get(c Channel) Transport {
	switch c {
	case ChannelEmail:
		return s.Email
	case ChannelSMS:
		return s.SMS
	case ChannelChat:
		return s.Chat
	case ChannelWebhook:
		return s.Webhook
	}
	panic(fmt.Sprintf("transport: unsupported channel %q", c))
}

// Health reports the health of every channel.
// Channels without a transport report HealthUnconfigured.
func (s Set) Health(ctx context.Context) map[Channel]Health {
	out := make(map[Channel]Health, 4)
	for _, c := range Channels() {
		t := s.Get(c)
		if t == nil {
			out[c] = Health{Status: HealthUnconfigured, Detail: "no transport"}
			continue
		}
		out[c] = t.Health(ctx)
	}
	return out
}
