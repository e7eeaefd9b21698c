package webhook

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Defaults for a single Send call.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 5 * time.Second
	DefaultUserAgent   = "BMAD-Webhook/1.0"
)

// AttemptResult describes one HTTP attempt made by Send.
type AttemptResult struct {
	Attempt    int // 1-based
	StatusCode int
	Duration   time.Duration
	Err        error
}

// AttemptHook is called after each delivery attempt.
type AttemptHook func(result AttemptResult)

// Sleeper pauses between attempts. It must return early with ctx.Err() when
// the context is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type sendOptions struct {
	method      string
	timeout     time.Duration
	headers     map[string]string
	maxAttempts int
	backoff     BackoffStrategy
	secret      string
	breaker     *CircuitBreaker
	onAttempt   AttemptHook
	sleep       Sleeper
	httpClient  *http.Client
}

func defaultSendOptions() *sendOptions {
	return &sendOptions{
		method:      http.MethodPost,
		timeout:     DefaultTimeout,
		headers:     make(map[string]string),
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoffStrategy(),
		sleep:       sleepContext,
	}
}

// SendOption is a functional option for configuring webhook sends
type SendOption func(*sendOptions)

// WithMethod selects the HTTP method. GET, POST, PUT and PATCH are supported;
// GET sends the payload as query parameters instead of a body.
func WithMethod(method string) SendOption {
	return func(o *sendOptions) {
		if method != "" {
			o.method = strings.ToUpper(method)
		}
	}
}

// WithTimeout sets the per-attempt request timeout.
func WithTimeout(timeout time.Duration) SendOption {
	return func(o *sendOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithHeader adds or overrides a request header, including the defaults.
func WithHeader(key, value string) SendOption {
	return func(o *sendOptions) {
		if key != "" {
			o.headers[key] = value
		}
	}
}

// WithHeaders adds or overrides several request headers.
func WithHeaders(headers map[string]string) SendOption {
	return func(o *sendOptions) {
		for k, v := range headers {
			if k != "" {
				o.headers[k] = v
			}
		}
	}
}

// WithMaxAttempts sets the total number of attempts, including the first one.
// Values below 1 are ignored.
func WithMaxAttempts(n int) SendOption {
	return func(o *sendOptions) {
		if n >= 1 {
			o.maxAttempts = n
		}
	}
}

// WithNoRetry makes Send give up after the first attempt.
func WithNoRetry() SendOption {
	return func(o *sendOptions) {
		o.maxAttempts = 1
	}
}

// WithBackoff sets the delay strategy between attempts.
func WithBackoff(strategy BackoffStrategy) SendOption {
	return func(o *sendOptions) {
		if strategy != nil {
			o.backoff = strategy
		}
	}
}

// WithSignature signs the canonical payload with HMAC-SHA256 and sends the
// result in the X-BMAD-Signature header.
func WithSignature(secret string) SendOption {
	return func(o *sendOptions) {
		o.secret = secret
	}
}

// WithCircuitBreaker guards the endpoint with cb. Reuse one breaker per endpoint.
func WithCircuitBreaker(cb *CircuitBreaker) SendOption {
	return func(o *sendOptions) {
		o.breaker = cb
	}
}

// WithOnAttempt registers a callback invoked after every attempt.
func WithOnAttempt(hook AttemptHook) SendOption {
	return func(o *sendOptions) {
		o.onAttempt = hook
	}
}

// WithSleeper replaces the pause between attempts. Tests use it to skip real waits.
func WithSleeper(s Sleeper) SendOption {
	return func(o *sendOptions) {
		if s != nil {
			o.sleep = s
		}
	}
}

// WithHTTPClient overrides the sender's client for a single call.
func WithHTTPClient(client *http.Client) SendOption {
	return func(o *sendOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
