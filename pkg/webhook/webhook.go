package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DeliveryHeader carries the unique id of a Send call; it is identical across
// retries so receivers can deduplicate.
const DeliveryHeader = "X-BMAD-Delivery"

// Receipt summarises a successful Send.
type Receipt struct {
	DeliveryID string
	StatusCode int
	Attempts   int
}

// Sender delivers JSON payloads to HTTP endpoints with in-call retries.
// Zero value is not usable; use NewSender to create instances.
type Sender struct {
	client *http.Client
}

// NewSender creates a webhook sender with a pooled HTTP client.
func NewSender() *Sender {
	return &Sender{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// NewSenderWithClient creates a webhook sender with a custom HTTP client.
func NewSenderWithClient(client *http.Client) *Sender {
	if client == nil {
		return NewSender()
	}
	return &Sender{client: client}
}

// Send delivers data to webhookURL. The payload is encoded as canonical JSON
// (sorted keys) and sent as the body, or as query parameters for GET.
//
// Up to WithMaxAttempts attempts are made (default 3). A timeout or any non-2xx
// response triggers another attempt after the backoff delay (default 5s, 10s, ...);
// the first 2xx response ends the call successfully. When every attempt fails
// the last error is returned wrapped in ErrDeliveryFailed.
//
//	receipt, err := sender.Send(ctx, endpoint, event,
//		webhook.WithSignature(secret),
//		webhook.WithHeader("X-Event", "notification.delivered"),
//	)
func (s *Sender) Send(ctx context.Context, webhookURL string, data any, opts ...SendOption) (Receipt, error) {
	options := defaultSendOptions()
	for _, opt := range opts {
		opt(options)
	}

	target, err := validateURL(webhookURL)
	if err != nil {
		return Receipt{}, err
	}
	switch options.method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return Receipt{}, fmt.Errorf("%w: %s", ErrInvalidMethod, options.method)
	}

	payload, err := CanonicalJSON(data)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if len(payload) == 0 || string(payload) == "null" {
		return Receipt{}, fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}

	var signature string
	if options.secret != "" {
		if signature, err = Sign(options.secret, payload); err != nil {
			return Receipt{}, err
		}
	}

	if options.method == http.MethodGet {
		query, err := queryFromPayload(payload)
		if err != nil {
			return Receipt{}, err
		}
		q := target.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		target.RawQuery = q.Encode()
	}

	client := s.client
	if options.httpClient != nil {
		client = options.httpClient
	}

	if options.breaker != nil && !options.breaker.Allow() {
		return Receipt{}, ErrCircuitOpen
	}

	receipt := Receipt{DeliveryID: uuid.NewString()}

	var lastErr error
	for attempt := 0; attempt < options.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := options.sleep(ctx, options.backoff.Delay(attempt-1)); err != nil {
				return receipt, errors.Join(ErrDeliveryFailed, lastErr, err)
			}
		}

		status, err := s.attempt(ctx, attempt+1, client, target.String(), payload, signature, receipt.DeliveryID, options)
		receipt.Attempts = attempt + 1

		if options.breaker != nil {
			if err == nil {
				options.breaker.RecordSuccess()
			} else {
				options.breaker.RecordFailure()
			}
		}

		if err == nil {
			receipt.StatusCode = status
			return receipt, nil
		}
		lastErr = err
	}

	return receipt, fmt.Errorf("%w after %d attempts: %w", ErrDeliveryFailed, receipt.Attempts, lastErr)
}

func (s *Sender) attempt(ctx context.Context, n int, client *http.Client, target string, payload []byte, signature, deliveryID string, options *sendOptions) (int, error) {
	start := time.Now()
	status, err := s.do(ctx, client, target, payload, signature, deliveryID, options)
	if options.onAttempt != nil {
		options.onAttempt(AttemptResult{
			Attempt:    n,
			StatusCode: status,
			Duration:   time.Since(start),
			Err:        err,
		})
	}
	return status, err
}

func (s *Sender) do(ctx context.Context, client *http.Client, target string, payload []byte, signature, deliveryID string, options *sendOptions) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()

	var body io.Reader
	if options.method != http.MethodGet {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(reqCtx, options.method, target, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set(DeliveryHeader, deliveryID)
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	for k, v := range options.headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return 0, fmt.Errorf("%w: %w", ErrTemporaryFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Response bodies are only kept for error context.
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.ReplaceAll(string(raw), "\n", " ")
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
		return resp.StatusCode, &StatusError{StatusCode: resp.StatusCode, Body: snippet}
	}
	return resp.StatusCode, nil
}

func validateURL(webhookURL string) (*url.URL, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	u, err := url.Parse(webhookURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return u, nil
}

// queryFromPayload flattens a top-level JSON object into query parameters.
// Scalars are sent verbatim; nested objects and arrays are sent as JSON.
func queryFromPayload(payload []byte) (url.Values, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: GET payload must be a JSON object", ErrInvalidPayload)
	}

	values := make(url.Values, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case nil:
			values.Set(k, "")
		case string:
			values.Set(k, val)
		case json.Number:
			values.Set(k, val.String())
		case bool:
			values.Set(k, fmt.Sprint(val))
		default:
			nested, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
			}
			values.Set(k, string(nested))
		}
	}
	return values, nil
}
