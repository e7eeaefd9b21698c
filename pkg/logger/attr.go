package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// NotificationID records the notification identifier under the key "notification_id".
func NotificationID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("notification_id", id)
}

// BatchID records the bulk batch identifier under the key "batch_id".
func BatchID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("batch_id", id)
}

// Channel records the delivery channel under the key "channel".
// Accepts any string-like channel type.
func Channel[T ~string](ch T) slog.Attr {
	return slog.String("channel", string(ch))
}

// Status records a delivery status under the key "status".
func Status[T ~string](st T) slog.Attr {
	return slog.String("status", string(st))
}

// Attempt records the attempt number under the key "attempt".
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// RetryCount records the retry count under the key "retry_count".
func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Event records the domain event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Counts groups the outcome counters of a bulk operation.
func Counts(total, succeeded, failed int) slog.Attr {
	return slog.Group("counts",
		slog.Int("total", total),
		slog.Int("succeeded", succeeded),
		slog.Int("failed", failed),
	)
}
