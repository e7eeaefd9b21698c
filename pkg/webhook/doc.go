// Package webhook delivers JSON payloads to HTTP endpoints.
//
// A single Send call builds the request (GET, POST, PUT or PATCH; JSON body,
// or query parameters for GET), applies default and caller headers, optionally
// signs the canonical payload and retries failed attempts with exponential
// backoff:
//
//	sender := webhook.NewSender()
//	receipt, err := sender.Send(ctx, "https://hooks.example.com/notify", payload,
//	    webhook.WithSignature(secret),
//	    webhook.WithMaxAttempts(3),
//	    webhook.WithBackoff(webhook.ExponentialBackoff{Base: 5 * time.Second}),
//	)
//
// # Signing
//
// With WithSignature the payload is encoded as canonical JSON (compact, keys
// sorted) and signed with HMAC-SHA256. The request carries
//
//	X-BMAD-Signature: sha256=<hex digest>
//
// and the same canonical bytes are sent as the body, so receivers can call
// VerifySignature over the raw body they received.
//
// # Retries
//
// Attempts are retried on transport errors, per-attempt timeouts and any non-2xx
// status. The delay after the n-th failure (zero-based) is Base * 2^n, so the
// defaults wait 5s and then 10s. Retries happen inside one Send call and are
// independent from any higher-level redelivery.
//
// A CircuitBreaker can be shared across calls to the same endpoint to fail fast
// with ErrCircuitOpen while the endpoint keeps failing.
package webhook
