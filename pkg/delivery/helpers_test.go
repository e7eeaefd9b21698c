package delivery_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bmadcode/courier/pkg/delivery"
	"github.com/bmadcode/courier/pkg/events"
	"github.com/bmadcode/courier/pkg/logger"
	"github.com/bmadcode/courier/pkg/render"
	"github.com/bmadcode/courier/pkg/transport"
)

var errProvider = errors.New("provider unavailable")

// fakeTransport records sends and answers with the configured function.
type fakeTransport struct {
	channel transport.Channel
	calls   atomic.Int32
	mu      sync.Mutex
	sent    []string
	send    func(recipient string) error
}

func newFakeTransport(ch transport.Channel) *fakeTransport {
	return &fakeTransport{channel: ch}
}

func (f *fakeTransport) Channel() transport.Channel { return f.channel }

func (f *fakeTransport) Send(_ context.Context, recipient string, _ transport.Content, _ map[string]string) (string, error) {
	n := f.calls.Add(1)
	f.mu.Lock()
	f.sent = append(f.sent, recipient)
	fn := f.send
	f.mu.Unlock()
	if fn != nil {
		if err := fn(recipient); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("ref-%d", n), nil
}

func (f *fakeTransport) Health(context.Context) transport.Health {
	return transport.Health{Status: transport.HealthConfigured, Detail: "fake"}
}

func (f *fakeTransport) failWith(fn func(recipient string) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.send = fn
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	store      *delivery.MemoryStore
	clock      *clock
	bus        *events.Bus
	email      *fakeTransport
	sms        *fakeTransport
	chat       *fakeTransport
	webhook    *fakeTransport
	orch       *delivery.Orchestrator
	transports transport.Set
}

func templates(t *testing.T) *render.Store {
	t.Helper()
	s, err := render.NewStore(
		render.Template{ID: "welcome", Subject: "Welcome {{.Name}}", Body: "Hello {{.Name}}!"},
		render.Template{ID: "otp", Body: "Your code is {{.Code}}", Required: []string{"Code"}},
	)
	require.NoError(t, err)
	return s
}

func newHarness(t *testing.T, opts ...delivery.Option) *harness {
	t.Helper()
	h := &harness{
		store:   delivery.NewMemoryStore(),
		clock:   newClock(),
		bus:     events.NewBus(64),
		email:   newFakeTransport(transport.ChannelEmail),
		sms:     newFakeTransport(transport.ChannelSMS),
		chat:    newFakeTransport(transport.ChannelChat),
		webhook: newFakeTransport(transport.ChannelWebhook),
	}
	t.Cleanup(func() { _ = h.bus.Close() })
	h.transports = transport.Set{Email: h.email, SMS: h.sms, Chat: h.chat, Webhook: h.webhook}

	base := []delivery.Option{
		delivery.WithClock(h.clock.Now),
		delivery.WithPublisher(h.bus),
		delivery.WithLogger(logger.Discard()),
	}
	h.orch = delivery.NewOrchestrator(h.store, templates(t), h.transports, delivery.DefaultConfig(), append(base, opts...)...)
	return h
}

func welcome(ch transport.Channel, recipient string) delivery.DeliveryRequest {
	return delivery.DeliveryRequest{
		TemplateID: "welcome",
		Channel:    ch,
		Recipient:  recipient,
		Variables:  map[string]any{"Name": "Ada"},
	}
}

func drain(ch <-chan events.Event) []string {
	var types []string
	for {
		select {
		case e := <-ch:
			types = append(types, e.Type)
		default:
			return types
		}
	}
}
