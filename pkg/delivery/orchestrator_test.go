package delivery_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmadcode/courier/pkg/delivery"
	"github.com/bmadcode/courier/pkg/logger"
	"github.com/bmadcode/courier/pkg/transport"
	"github.com/bmadcode/courier/pkg/webhook"
)

func TestDeliver_EmailDelivered(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	sub := h.bus.Subscribe(context.Background())
	ctx := context.Background()

	res, err := h.orch.Deliver(ctx, welcome(transport.ChannelEmail, "ada@example.com"))
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusDelivered, res.Status)
	assert.NoError(t, res.Err)
	assert.Equal(t, 0, res.RetryCount)
	assert.Equal(t, "ref-1", res.ReferenceID)

	n, err := h.orch.GetDeliveryStatus(ctx, res.NotificationID)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusDelivered, n.Status)
	assert.Equal(t, "Welcome Ada", n.Subject)
	assert.Equal(t, "Hello Ada!", n.Body)
	assert.Equal(t, delivery.PriorityNormal, n.Priority)
	assert.Equal(t, 3, n.MaxRetries)
	assert.NotNil(t, n.SentAt)
	assert.NotNil(t, n.DeliveredAt)

	logs, err := h.orch.DeliveryLogs(ctx, res.NotificationID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, delivery.OutcomeSent, logs[0].Outcome)
	assert.Equal(t, delivery.OutcomeDelivered, logs[1].Outcome)
	assert.Equal(t, "ref-1", logs[1].ReferenceID)

	assert.Equal(t, []string{delivery.EventNotificationRequested, delivery.EventNotificationDelivered}, drain(sub))
}

func TestDeliver_WebhookRetriesInsideTransport(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	var delays []time.Duration
	wh := transport.NewWebhook(transport.WebhookConfig{Secret: "k"},
		transport.WithWebhookLogger(logger.Discard()),
		transport.WithWebhookSendOptions(webhook.WithSleeper(func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		})),
	)

	orch := delivery.NewOrchestrator(delivery.NewMemoryStore(), templates(t),
		transport.Set{Webhook: wh}, delivery.DefaultConfig(), delivery.WithLogger(logger.Discard()))

	res, err := orch.Deliver(context.Background(), welcome(transport.ChannelWebhook, srv.URL))
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusDelivered, res.Status)
	assert.Equal(t, 0, res.RetryCount)
	assert.EqualValues(t, 3, hits.Load())
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, delays)
}

func TestDeliver_TemplateErrorIsTerminal(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	sub := h.bus.Subscribe(context.Background())
	ctx := context.Background()

	res, err := h.orch.Deliver(ctx, delivery.DeliveryRequest{
		TemplateID: "otp",
		Channel:    transport.ChannelSMS,
		Recipient:  "+15551234567",
		Variables:  map[string]any{},
		MaxRetries: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, delivery.ErrTemplate)
	assert.False(t, res.Retryable)
	assert.Equal(t, 0, res.RetryCount)
	assert.Zero(t, h.sms.calls.Load())

	n, err := h.orch.GetDeliveryStatus(ctx, res.NotificationID)
	require.NoError(t, err)
	assert.Equal(t, 0, n.MaxRetries)
	assert.True(t, n.Terminal())

	h.clock.Advance(24 * time.Hour)
	sweep, err := h.orch.RetryFailed(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, delivery.RetryResult{}, sweep)

	logs, err := h.orch.DeliveryLogs(ctx, res.NotificationID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, delivery.OutcomeFailed, logs[0].Outcome)

	assert.Equal(t, []string{delivery.EventNotificationRequested, delivery.EventNotificationFailed}, drain(sub))
}

func TestDeliver_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  delivery.DeliveryRequest
	}{
		{name: "unsupported channel", req: delivery.DeliveryRequest{TemplateID: "welcome", Channel: "fax", Recipient: "x"}},
		{name: "missing template", req: delivery.DeliveryRequest{Channel: transport.ChannelEmail, Recipient: "a@example.com"}},
		{name: "missing recipient", req: delivery.DeliveryRequest{TemplateID: "welcome", Channel: transport.ChannelEmail, Recipient: "  "}},
		{name: "unknown priority", req: delivery.DeliveryRequest{TemplateID: "welcome", Channel: transport.ChannelEmail, Recipient: "a@example.com", Priority: "asap"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			ctx := context.Background()

			res, err := h.orch.Deliver(ctx, tt.req)
			assert.ErrorIs(t, err, delivery.ErrValidation)
			assert.Equal(t, delivery.StatusFailed, res.Status)
			assert.Empty(t, res.NotificationID)

			due, err := h.store.ListDue(ctx, h.clock.Now().Add(time.Hour), 0)
			require.NoError(t, err)
			assert.Empty(t, due)
		})
	}
}

func TestDeliver_ChannelUnavailable(t *testing.T) {
	t.Parallel()

	t.Run("inactive channel", func(t *testing.T) {
		t.Parallel()
		cfgs := delivery.DefaultChannelConfigs()
		cfgs[transport.ChannelSMS] = delivery.ChannelConfig{Active: false}
		h := newHarness(t, delivery.WithChannelConfigs(cfgs))

		res, err := h.orch.Deliver(context.Background(), welcome(transport.ChannelSMS, "+15551234567"))
		require.NoError(t, err)
		assert.Equal(t, delivery.StatusFailed, res.Status)
		assert.ErrorIs(t, res.Err, delivery.ErrChannelUnavailable)
		assert.Empty(t, res.NotificationID)
		assert.Zero(t, h.sms.calls.Load())

		health := h.orch.ChannelHealth(context.Background())
		assert.Equal(t, transport.Health{Status: transport.HealthUnconfigured, Detail: "disabled"}, health[transport.ChannelSMS])
		assert.True(t, health[transport.ChannelEmail].OK())
	})

	t.Run("missing transport", func(t *testing.T) {
		t.Parallel()
		orch := delivery.NewOrchestrator(delivery.NewMemoryStore(), templates(t), transport.Set{},
			delivery.DefaultConfig(), delivery.WithLogger(logger.Discard()))

		res, err := orch.Deliver(context.Background(), welcome(transport.ChannelChat, "#ops"))
		require.NoError(t, err)
		assert.ErrorIs(t, res.Err, delivery.ErrChannelUnavailable)
		assert.Equal(t, transport.HealthUnconfigured, orch.ChannelHealth(context.Background())[transport.ChannelChat].Status)
	})
}

func TestDeliver_TransportFailureSchedulesRetry(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.email.failWith(func(string) error { return errProvider })
	ctx := context.Background()

	res, err := h.orch.Deliver(ctx, welcome(transport.ChannelEmail, "ada@example.com"))
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, delivery.ErrTransport)
	assert.ErrorIs(t, res.Err, errProvider)
	assert.True(t, res.Retryable)

	n, err := h.orch.GetDeliveryStatus(ctx, res.NotificationID)
	require.NoError(t, err)
	require.NotNil(t, n.NextAttemptAt)
	assert.Equal(t, h.clock.Now().Add(time.Minute), *n.NextAttemptAt)
	assert.Contains(t, n.LastError, "provider unavailable")

	// Not yet due.
	sweep, err := h.orch.RetryFailed(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, sweep.Retried)

	h.clock.Advance(time.Minute)
	h.email.failWith(nil)
	sweep, err = h.orch.RetryFailed(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, delivery.RetryResult{Retried: 1, Succeeded: 1}, sweep)

	n, err = h.orch.GetDeliveryStatus(ctx, res.NotificationID)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusDelivered, n.Status)
	assert.Equal(t, 1, n.RetryCount)
	assert.Empty(t, n.LastError)

	logs, err := h.orch.DeliveryLogs(ctx, n.ID)
	require.NoError(t, err)
	outcomes := make([]delivery.Outcome, len(logs))
	for i, l := range logs {
		outcomes[i] = l.Outcome
	}
	assert.Equal(t, []delivery.Outcome{
		delivery.OutcomeSent, delivery.OutcomeFailed,
		delivery.OutcomeSent, delivery.OutcomeDelivered,
	}, outcomes)
	assert.Equal(t, 0, logs[1].Attempt)
	assert.Equal(t, 1, logs[3].Attempt)
}

func TestRetryFailed_MixedOutcomes(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	recipients := []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com", "e@example.com"}
	h.email.failWith(func(string) error { return errProvider })
	for _, r := range recipients {
		res, err := h.orch.Deliver(ctx, welcome(transport.ChannelEmail, r))
		require.NoError(t, err)
		require.Equal(t, delivery.StatusFailed, res.Status)
	}

	h.email.failWith(func(r string) error {
		if r == "d@example.com" || r == "e@example.com" {
			return errProvider
		}
		return nil
	})
	h.clock.Advance(time.Minute)

	sweep, err := h.orch.RetryFailed(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, delivery.RetryResult{Retried: 5, Succeeded: 3, Failed: 2}, sweep)

	h.clock.Advance(time.Hour)
	remaining, err := h.store.ListRetryable(ctx, h.clock.Now(), 0)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	for _, n := range remaining {
		assert.Equal(t, 1, n.RetryCount)
		assert.Contains(t, []string{"d@example.com", "e@example.com"}, n.Recipient)
	}
}

func TestRetryFailed_BudgetExhaustion(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.email.failWith(func(string) error { return errProvider })
	ctx := context.Background()

	req := welcome(transport.ChannelEmail, "ada@example.com")
	req.MaxRetries = 2
	res, err := h.orch.Deliver(ctx, req)
	require.NoError(t, err)

	for range 2 {
		h.clock.Advance(2 * time.Hour)
		sweep, err := h.orch.RetryFailed(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, delivery.RetryResult{Retried: 1, Failed: 1}, sweep)
	}

	n, err := h.orch.GetDeliveryStatus(ctx, res.NotificationID)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusFailed, n.Status)
	assert.Equal(t, 2, n.RetryCount)
	assert.Nil(t, n.NextAttemptAt)
	assert.True(t, n.Terminal())

	h.clock.Advance(24 * time.Hour)
	sweep, err := h.orch.RetryFailed(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, sweep.Retried)
	assert.EqualValues(t, 3, h.email.calls.Load())
}

func TestRetryFailed_CapsBudget(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.email.failWith(func(string) error { return errProvider })
	ctx := context.Background()

	_, err := h.orch.Deliver(ctx, welcome(transport.ChannelEmail, "ada@example.com"))
	require.NoError(t, err)

	h.clock.Advance(2 * time.Hour)
	sweep, err := h.orch.RetryFailed(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sweep.Retried)

	h.clock.Advance(2 * time.Hour)
	sweep, err = h.orch.RetryFailed(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, sweep.Retried)

	sweep, err = h.orch.RetryFailed(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, sweep.Retried)
}

func TestRetryFailed_DeliveredIsNeverTouched(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.orch.Deliver(ctx, welcome(transport.ChannelChat, "#ops"))
	require.NoError(t, err)
	require.Equal(t, delivery.StatusDelivered, res.Status)

	h.clock.Advance(24 * time.Hour)
	sweep, err := h.orch.RetryFailed(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, sweep.Retried)
	dispatched, err := h.orch.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, dispatched.Dispatched)

	n, err := h.orch.GetDeliveryStatus(ctx, res.NotificationID)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusDelivered, n.Status)
	assert.EqualValues(t, 1, h.chat.calls.Load())
}

func TestRetryFailed_ConcurrentSweepsRetryOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.webhook.failWith(func(string) error { return errProvider })
	ctx := context.Background()

	const total = 20
	for range total {
		_, err := h.orch.Deliver(ctx, welcome(transport.ChannelWebhook, "https://hooks.example.com/x"))
		require.NoError(t, err)
	}
	h.clock.Advance(time.Hour)

	var (
		wg      sync.WaitGroup
		retried atomic.Int32
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweep, err := h.orch.RetryFailed(ctx, 0)
			assert.NoError(t, err)
			retried.Add(int32(sweep.Retried))
		}()
	}
	wg.Wait()

	assert.EqualValues(t, total, retried.Load())
	assert.EqualValues(t, 2*total, h.webhook.calls.Load())
}

type denyLocker struct{}

func (denyLocker) TryLock(context.Context, string) (func(), bool, error) { return func() {}, false, nil }

func TestRetryFailed_SkipsLockedNotifications(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.sms.failWith(func(string) error { return errProvider })
	ctx := context.Background()

	_, err := h.orch.Deliver(ctx, welcome(transport.ChannelSMS, "+15551234567"))
	require.NoError(t, err)
	h.clock.Advance(time.Hour)

	locked := delivery.NewOrchestrator(h.store, templates(t), h.transports, delivery.DefaultConfig(),
		delivery.WithClock(h.clock.Now),
		delivery.WithLocker(denyLocker{}),
		delivery.WithLogger(logger.Discard()),
	)
	sweep, err := locked.RetryFailed(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, sweep.Retried)

	_, err = locked.Deliver(ctx, welcome(transport.ChannelSMS, "+15551234567"))
	assert.ErrorIs(t, err, delivery.ErrLocked)
}

func TestDeliver_ScheduledAndDispatchDue(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	req := welcome(transport.ChannelEmail, "ada@example.com")
	req.ScheduledAt = h.clock.Now().Add(10 * time.Minute)
	res, err := h.orch.Deliver(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusPending, res.Status)
	assert.Zero(t, h.email.calls.Load())

	low := welcome(transport.ChannelEmail, "bob@example.com")
	low.Priority = delivery.PriorityLow
	lowRes, err := h.orch.Deliver(ctx, low)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusPending, lowRes.Status)

	out, err := h.orch.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, out.Dispatched)

	h.clock.Advance(5 * time.Minute)
	out, err = h.orch.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, delivery.DispatchResult{Dispatched: 1, Succeeded: 1}, out)

	h.clock.Advance(5 * time.Minute)
	out, err = h.orch.DispatchDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, delivery.DispatchResult{Dispatched: 1, Succeeded: 1}, out)

	n, err := h.orch.GetDeliveryStatus(ctx, res.NotificationID)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusDelivered, n.Status)
}

func TestDeliver_UrgentBypassesPacing(t *testing.T) {
	t.Parallel()
	cfgs := delivery.DefaultChannelConfigs()
	cfgs[transport.ChannelEmail] = delivery.ChannelConfig{Active: true, RateLimitPerMinute: 1}
	h := newHarness(t, delivery.WithChannelConfigs(cfgs))

	first, err := h.orch.Deliver(context.Background(), welcome(transport.ChannelEmail, "a@example.com"))
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusDelivered, first.Status)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	paced, err := h.orch.Deliver(ctx, welcome(transport.ChannelEmail, "b@example.com"))
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusPending, paced.Status)
	assert.Error(t, paced.Err)

	urgent := welcome(transport.ChannelEmail, "c@example.com")
	urgent.Priority = delivery.PriorityUrgent
	res, err := h.orch.Deliver(context.Background(), urgent)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusDelivered, res.Status)
	assert.EqualValues(t, 2, h.email.calls.Load())
}

func TestDeliveryLogs_NotFound(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, err := h.orch.DeliveryLogs(context.Background(), "missing")
	assert.ErrorIs(t, err, delivery.ErrNotFound)
	_, err = h.orch.GetDeliveryStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, delivery.ErrNotFound)
}

func TestNewOrchestrator_PanicsOnNilDependencies(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		delivery.NewOrchestrator(nil, templates(t), transport.Set{}, delivery.DefaultConfig())
	})
	assert.Panics(t, func() {
		delivery.NewOrchestrator(delivery.NewMemoryStore(), nil, transport.Set{}, delivery.DefaultConfig())
	})
}
