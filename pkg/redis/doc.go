// Package redis provides helpers for connecting to Redis and using it for
// cross-process coordination.
//
// The package wraps the go-redis client and adds:
//
//   - Connect, which retries the connection using the supplied configuration.
//   - Healthcheck, for readiness probes.
//   - Locker, a SET NX PX try-lock with token-checked release, used to keep
//     the retry sweep and live deliveries from touching the same
//     notification at once across several processes.
//
// Configuration is described by Config, populated from environment
// variables via github.com/caarlos0/env.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	locker := redis.NewLocker(client, cfg)
//	release, ok, err := locker.TryLock(ctx, "notification:"+id)
//
// Sentinel errors wrap the underlying go-redis errors using errors.Join.
package redis
