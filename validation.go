package interop

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/reglet-dev/reglet-interop/application/schema"
	"github.com/reglet-dev/reglet-interop/infrastructure/parser"
)

// validate is a package-level singleton for better performance.
// Creating a new validator on each call is expensive; reusing is recommended.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds runtime settings.
type Config struct {
	// BuiltinComponent names the component that hosts the Dispatcher entries
	// the calling side uses to settle outbound calls and release objects.
	BuiltinComponent string `json:"builtin_component" validate:"required"`

	// MaxArgsBytes limits the argument payload of a single call. Zero means unlimited.
	MaxArgsBytes int `json:"max_args_bytes" validate:"gte=0"`

	// LogDispatch logs every dispatch through LoggingMiddleware.
	LogDispatch bool `json:"log_dispatch"`

	// ValidateArgs checks arguments against each entry's JSON Schema before
	// they are converted.
	ValidateArgs bool `json:"validate_args"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BuiltinComponent: "interop",
	}
}

// Validate checks the configuration's constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// ParseConfig overlays a generic configuration map on DefaultConfig and validates
// the result. It first marshals the map to JSON, then unmarshals it into the
// struct, and finally runs the validator.
func ParseConfig(values map[string]any) (Config, error) {
	cfg := DefaultConfig()

	jsonBytes, err := json.Marshal(values)
	if err != nil {
		return Config{}, fmt.Errorf("failed to marshal config map: %w", err)
	}
	if err := json.Unmarshal(jsonBytes, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig parses a YAML configuration document.
func LoadConfig(data []byte) (Config, error) {
	values, err := parser.NewYamlConfigParser().Parse(data)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(values)
}

// ConfigSchema returns the JSON Schema of the configuration document accepted
// by LoadConfig, for editors and config linters.
func ConfigSchema() ([]byte, error) {
	return schema.GenerateSchema(Config{})
}
