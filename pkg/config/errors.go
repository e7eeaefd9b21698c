package config

import "errors"

var (
	// ErrParsingConfig is returned when environment variables cannot be parsed into the config struct
	ErrParsingConfig = errors.New("failed to parse environment variables into config")

	// ErrNilPointer is returned when a nil pointer is provided to a loader
	ErrNilPointer = errors.New("nil pointer provided to config loader")

	// ErrFileNotFound is returned by LoadYAML when the file does not exist
	ErrFileNotFound = errors.New("config file not found")

	ErrReadingFile = errors.New("failed to read config file")
	ErrParsingYAML = errors.New("failed to parse yaml config")
)
