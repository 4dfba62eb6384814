package oauthfilter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML configuration file into a Config pre-populated
// with defaults. The result still has to pass Validate via New.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(raw)
}

// ParseConfig decodes YAML configuration bytes. Unknown fields are rejected
// so typos fail loudly at startup instead of silently disabling a matcher.
func ParseConfig(raw []byte) (*Config, error) {
	config := CreateConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return config, nil
}
