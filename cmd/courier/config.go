package main

// appConfig holds process-level settings.
type appConfig struct {
	Env           string `env:"APP_ENV" envDefault:"development"`
	Service       string `env:"APP_SERVICE" envDefault:"courier"`
	StoreDriver   string `env:"COURIER_STORE" envDefault:"memory"` // memory or postgres
	ChannelsFile  string `env:"COURIER_CHANNELS_FILE" envDefault:"configs/channels.yaml"`
	TemplatesFile string `env:"COURIER_TEMPLATES_FILE" envDefault:"configs/templates.yaml"`
	EventBuffer   int    `env:"COURIER_EVENT_BUFFER" envDefault:"256"`
}

const (
	storeMemory   = "memory"
	storePostgres = "postgres"
)
