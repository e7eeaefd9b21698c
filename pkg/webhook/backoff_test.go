package webhook_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bmadcode/courier/pkg/webhook"
)

func TestExponentialBackoff_Delay(t *testing.T) {
	t.Parallel()

	b := webhook.DefaultBackoffStrategy()
	assert.Equal(t, 5*time.Second, b.Delay(0))
	assert.Equal(t, 10*time.Second, b.Delay(1))
	assert.Equal(t, 20*time.Second, b.Delay(2))
	assert.Equal(t, time.Duration(0), b.Delay(-1))
}

func TestExponentialBackoff_StrictlyIncreasing(t *testing.T) {
	t.Parallel()

	b := webhook.ExponentialBackoff{Base: 100 * time.Millisecond}
	prev := time.Duration(0)
	for attempt := 0; attempt < 3; attempt++ {
		d := b.Delay(attempt)
		assert.Greater(t, d, prev)
		if attempt > 0 {
			assert.Equal(t, 2*prev, d)
		}
		prev = d
	}
}

func TestExponentialBackoff_Cap(t *testing.T) {
	t.Parallel()

	b := webhook.ExponentialBackoff{Base: time.Second, Max: 3 * time.Second}
	assert.Equal(t, 2*time.Second, b.Delay(1))
	assert.Equal(t, 3*time.Second, b.Delay(2))
	assert.Equal(t, 3*time.Second, b.Delay(100))
}

func TestExponentialBackoff_Jitter(t *testing.T) {
	t.Parallel()

	b := webhook.ExponentialBackoff{Base: time.Second, JitterFactor: 0.1}
	for range 50 {
		d := b.Delay(1)
		assert.GreaterOrEqual(t, d, 1800*time.Millisecond)
		assert.LessOrEqual(t, d, 2200*time.Millisecond)
	}
}

func TestFixedBackoff(t *testing.T) {
	t.Parallel()

	b := webhook.FixedBackoff{Interval: time.Millisecond}
	assert.Equal(t, time.Millisecond, b.Delay(0))
	assert.Equal(t, time.Millisecond, b.Delay(7))
}
