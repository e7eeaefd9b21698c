// Package config loads courier configuration.
//
// Environment-driven settings are described by structs with `env` tags and
// parsed by Load, which wraps github.com/caarlos0/env/v11 and reads a local
// .env file through github.com/joho/godotenv. Parsed structs are cached per
// type for the lifetime of the process; ResetCache clears the cache in tests.
//
// File-driven settings, such as the per-channel configuration, are read with
// LoadYAML:
//
//	var channels delivery.ChannelConfigs
//	err := config.LoadYAML("channels.yaml", &channels)
//	if errors.Is(err, config.ErrFileNotFound) {
//		channels = delivery.DefaultChannelConfigs()
//	}
package config
