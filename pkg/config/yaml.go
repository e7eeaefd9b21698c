package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadYAML decodes the YAML document at path into v.
// A missing file returns ErrFileNotFound so callers can fall back to defaults.
// Unknown keys are rejected to catch typos in hand-edited files.
func LoadYAML(path string, v any) error {
	if v == nil {
		return ErrNilPointer
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return errors.Join(ErrReadingFile, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrParsingYAML, fmt.Errorf("%s: %w", path, err))
	}
	return nil
}
