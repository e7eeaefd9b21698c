package delivery

import "time"

// Config holds the orchestrator settings.
type Config struct {
	DefaultMaxRetries int           `env:"DELIVERY_DEFAULT_MAX_RETRIES" envDefault:"3"`
	BatchSize         int           `env:"DELIVERY_BATCH_SIZE" envDefault:"100"`
	BatchPause        time.Duration `env:"DELIVERY_BATCH_PAUSE" envDefault:"1s"`
	AttemptTimeout    time.Duration `env:"DELIVERY_ATTEMPT_TIMEOUT" envDefault:"2m"`
	SweepSchedule     string        `env:"DELIVERY_SWEEP_SCHEDULE" envDefault:"@every 1m"`
	SweepLimit        int           `env:"DELIVERY_SWEEP_LIMIT" envDefault:"500"`
	SweepConcurrency  int           `env:"DELIVERY_SWEEP_CONCURRENCY" envDefault:"10"`
	SweepMaxRetries   int           `env:"DELIVERY_SWEEP_MAX_RETRIES" envDefault:"0"`
	RetryMaxWait      time.Duration `env:"DELIVERY_RETRY_MAX_WAIT" envDefault:"1h"`

	UrgentDelay time.Duration `env:"DELIVERY_URGENT_DELAY" envDefault:"0s"`
	HighDelay   time.Duration `env:"DELIVERY_HIGH_DELAY" envDefault:"0s"`
	NormalDelay time.Duration `env:"DELIVERY_NORMAL_DELAY" envDefault:"0s"`
	LowDelay    time.Duration `env:"DELIVERY_LOW_DELAY" envDefault:"5m"`
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{
		DefaultMaxRetries: 3,
		BatchSize:         100,
		BatchPause:        time.Second,
		AttemptTimeout:    2 * time.Minute,
		SweepSchedule:     "@every 1m",
		SweepLimit:        500,
		SweepConcurrency:  10,
		RetryMaxWait:      time.Hour,
		LowDelay:          5 * time.Minute,
	}
}

// priorityDelay returns the scheduling delay applied when a request has no ScheduledAt.
func (c Config) priorityDelay(p Priority) time.Duration {
	switch p {
	case PriorityUrgent:
		return c.UrgentDelay
	case PriorityHigh:
		return c.HighDelay
	case PriorityLow:
		return c.LowDelay
	default:
		return c.NormalDelay
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DefaultMaxRetries < 0 {
		c.DefaultMaxRetries = 0
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.BatchPause < 0 {
		c.BatchPause = 0
	}
	if c.SweepLimit <= 0 {
		c.SweepLimit = def.SweepLimit
	}
	if c.SweepConcurrency <= 0 {
		c.SweepConcurrency = def.SweepConcurrency
	}
	if c.SweepSchedule == "" {
		c.SweepSchedule = def.SweepSchedule
	}
	return c
}
