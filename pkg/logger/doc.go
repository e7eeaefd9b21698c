// Package logger builds *slog.Logger instances for courier services and
// provides attribute helpers that keep key names consistent across the
// delivery pipeline (notification_id, channel, batch_id, retry_count, ...).
//
// Usage:
//
//	log := logger.New(logger.WithEnvironment(cfg.Env, "courier"))
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "notification delivered",
//	    logger.NotificationID(n.ID),
//	    logger.Channel(n.Channel),
//	    logger.Duration(time.Since(start)),
//	)
//
// Helpers such as Error return an empty attribute for nil input, so they can be
// passed unconditionally.
package logger
