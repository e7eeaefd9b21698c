// Package transport delivers rendered content over one of four channels:
// email, SMS, chat and generic webhooks.
//
// Every channel implements Transport. A Set holds exactly one transport per
// channel; the channel list is closed, so adding a channel means adding a
// field to Set rather than registering something at runtime.
//
// Email goes through pkg/email (Postmark or the on-disk DevSender). SMS and
// Chat post JSON through pkg/webhook with a single attempt per call. The
// Webhook transport is the only one that retries inside Send, using
// exponential backoff, HMAC-SHA256 signing and a circuit breaker per
// endpoint host.
//
// Pacer converts a per-minute rate limit into a blocking Wait.
package transport
