package redis

import "time"

type Config struct {
	ConnectionURL  string        `env:"REDIS_URL"`                                       // ConnectionURL like "redis://:password@localhost:6379/0"; empty disables Redis.
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`             // RetryAttempts is the number of retry attempts to connect to the database.
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`            // RetryInterval is the interval between retry attempts.
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`          // ConnectTimeout is the timeout for connecting to the database.
	LockPrefix     string        `env:"REDIS_LOCK_PREFIX" envDefault:"courier:lock:"`    // LockPrefix namespaces per-notification lock keys.
	LockTTL        time.Duration `env:"REDIS_LOCK_TTL" envDefault:"5m"`                  // LockTTL bounds how long a crashed holder blocks a notification.
	EventsChannel  string        `env:"REDIS_EVENTS_CHANNEL" envDefault:"courier:events"` // EventsChannel is the pub/sub channel for domain events.
}
