package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmadcode/courier/pkg/logger"
)

type channel string

func TestError(t *testing.T) {
	t.Parallel()

	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

func TestIdentifiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		attr slog.Attr
		key  string
		want string
	}{
		{name: "notification id", attr: logger.NotificationID("n-1"), key: "notification_id", want: "n-1"},
		{name: "batch id", attr: logger.BatchID("b-1"), key: "batch_id", want: "b-1"},
		{name: "typed channel", attr: logger.Channel(channel("sms")), key: "channel", want: "sms"},
		{name: "status", attr: logger.Status("delivered"), key: "status", want: "delivered"},
		{name: "component", attr: logger.Component("sweeper"), key: "component", want: "sweeper"},
		{name: "event", attr: logger.Event("notification_failed"), key: "event", want: "notification_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.key, tt.attr.Key)
			assert.Equal(t, tt.want, tt.attr.Value.String())
		})
	}
}

func TestEmptyIdentifiersAreDropped(t *testing.T) {
	t.Parallel()

	assert.True(t, logger.NotificationID("").Equal(slog.Attr{}))
	assert.True(t, logger.BatchID("").Equal(slog.Attr{}))
}

func TestNumericAttrs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(2), logger.Attempt(2).Value.Int64())
	assert.Equal(t, int64(3), logger.RetryCount(3).Value.Int64())
	assert.Equal(t, 1500*time.Millisecond, logger.Duration(1500*time.Millisecond).Value.Duration())
}

func TestCounts(t *testing.T) {
	t.Parallel()

	attr := logger.Counts(5, 3, 2)
	require.Equal(t, "counts", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 3)
	assert.Equal(t, "total", g[0].Key)
	assert.Equal(t, int64(5), g[0].Value.Int64())
	assert.Equal(t, int64(2), g[2].Value.Int64())
}
