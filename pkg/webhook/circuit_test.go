package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(failures, successes int, recovery time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(failures, successes, recovery)
	cb.now = clock.now
	return cb, clock
}

func TestCircuitBreaker_Transitions(t *testing.T) {
	t.Parallel()

	t.Run("closed to open", func(t *testing.T) {
		t.Parallel()
		cb, _ := newTestBreaker(2, 1, time.Minute)

		assert.True(t, cb.Allow())
		cb.RecordFailure()
		assert.Equal(t, CircuitClosed, cb.State())
		cb.RecordFailure()
		assert.Equal(t, CircuitOpen, cb.State())
		assert.False(t, cb.Allow())
	})

	t.Run("open to half-open to closed", func(t *testing.T) {
		t.Parallel()
		cb, clock := newTestBreaker(1, 2, time.Minute)

		cb.RecordFailure()
		assert.False(t, cb.Allow())

		clock.advance(2 * time.Minute)
		assert.Equal(t, CircuitHalfOpen, cb.State())
		assert.True(t, cb.Allow())

		cb.RecordSuccess()
		assert.Equal(t, CircuitHalfOpen, cb.State())
		cb.RecordSuccess()
		assert.Equal(t, CircuitClosed, cb.State())
	})

	t.Run("half-open failure reopens", func(t *testing.T) {
		t.Parallel()
		cb, clock := newTestBreaker(1, 2, time.Minute)

		cb.RecordFailure()
		clock.advance(2 * time.Minute)
		assert.True(t, cb.Allow())

		cb.RecordFailure()
		assert.Equal(t, CircuitOpen, cb.State())
		assert.False(t, cb.Allow())
	})

	t.Run("success resets failure count", func(t *testing.T) {
		t.Parallel()
		cb, _ := newTestBreaker(2, 1, time.Minute)

		cb.RecordFailure()
		cb.RecordSuccess()
		cb.RecordFailure()
		assert.Equal(t, CircuitClosed, cb.State())
	})

	t.Run("reset", func(t *testing.T) {
		t.Parallel()
		cb, _ := newTestBreaker(1, 1, time.Minute)

		cb.RecordFailure()
		cb.Reset()
		assert.Equal(t, CircuitClosed, cb.State())
		assert.True(t, cb.Allow())
	})
}

func TestCircuitState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}
