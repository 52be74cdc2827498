package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	apperrors "github.com/offsoc/libsecret/internal/errors"
	"github.com/offsoc/libsecret/internal/logging"
	"github.com/offsoc/libsecret/pkg/schema"
)

// EnvBusAddress overrides bus_address when set.
const EnvBusAddress = "SECRETPASS_BUS_ADDRESS"

// DefaultTimeoutMs applies when timeout_ms is absent.
const DefaultTimeoutMs = 30000

//go:embed config.schema.json
var definitionSchema string

// Config holds the runtime configuration
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition is the on-disk secretpass.yaml structure.
type Definition struct {
	Version     int                     `yaml:"version" json:"version"`
	BusAddress  string                  `yaml:"bus_address,omitempty" json:"bus_address,omitempty"`
	ServiceName string                  `yaml:"service_name,omitempty" json:"service_name,omitempty"`
	Algorithm   string                  `yaml:"algorithm,omitempty" json:"algorithm,omitempty"`
	TimeoutMs   int                     `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
	Collection  string                  `yaml:"collection,omitempty" json:"collection,omitempty"`
	WindowID    string                  `yaml:"window_id,omitempty" json:"window_id,omitempty"`
	Metrics     MetricsConfig           `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	Schemas     map[string]SchemaConfig `yaml:"schemas,omitempty" json:"schemas,omitempty"`
}

// MetricsConfig controls call metrics collection.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// SchemaConfig declares a schema for use from the command line.
type SchemaConfig struct {
	AllowUndefined bool              `yaml:"allow_undefined,omitempty" json:"allow_undefined,omitempty"`
	Attributes     map[string]string `yaml:"attributes" json:"attributes"`
}

// Defaults returns the definition used when no file exists.
func Defaults() *Definition {
	return &Definition{TimeoutMs: DefaultTimeoutMs}
}

// Load reads, validates and parses the configuration file. A missing file
// is not an error: the defaults apply.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			if c.Logger != nil {
				c.Logger.Debug("no configuration at %s, using defaults", c.Path)
			}
			c.Definition = Defaults()
			c.applyEnv()
			return nil
		}
		return apperrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	def, err := Parse(data)
	if err != nil {
		return err
	}
	c.Definition = def
	c.applyEnv()
	return nil
}

// Parse validates data against the configuration schema and decodes it.
func Parse(data []byte) (*Definition, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, apperrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	if raw != nil {
		if err := validate(raw); err != nil {
			return nil, err
		}
	}

	def := Defaults()
	if err := yaml.Unmarshal(data, def); err != nil {
		return nil, apperrors.ConfigError{
			Message:    "configuration does not match the expected structure",
			Suggestion: err.Error(),
		}
	}
	if def.TimeoutMs == 0 {
		def.TimeoutMs = DefaultTimeoutMs
	}
	if _, err := def.BuildSchemas(); err != nil {
		return nil, apperrors.ConfigError{
			Field:   "schemas",
			Message: err.Error(),
		}
	}
	return def, nil
}

func validate(raw interface{}) error {
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(definitionSchema),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var messages []string
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}
	sort.Strings(messages)
	return apperrors.ConfigError{
		Field:      result.Errors()[0].Field(),
		Message:    "schema validation failed:\n  - " + strings.Join(messages, "\n  - "),
		Suggestion: "See the example secretpass.yaml in the README",
	}
}

func (c *Config) applyEnv() {
	if addr := os.Getenv(EnvBusAddress); addr != "" {
		c.Definition.BusAddress = addr
	}
}

// Timeout returns the per-operation timeout.
func (d *Definition) Timeout() time.Duration {
	return time.Duration(d.TimeoutMs) * time.Millisecond
}

// BuildSchemas turns the declared schemas into schema values.
func (d *Definition) BuildSchemas() (map[string]*schema.Schema, error) {
	out := make(map[string]*schema.Schema, len(d.Schemas))
	for name, sc := range d.Schemas {
		types := make(map[string]schema.AttributeType, len(sc.Attributes))
		for attr, typ := range sc.Attributes {
			t, err := schema.ParseAttributeType(typ)
			if err != nil {
				return nil, fmt.Errorf("schema %s: attribute %s: %w", name, attr, err)
			}
			types[attr] = t
		}
		flags := schema.None
		if sc.AllowUndefined {
			flags |= schema.AllowUndefined
		}
		s, err := schema.Define(name, flags, types)
		if err != nil {
			return nil, err
		}
		out[name] = s
	}
	return out, nil
}

// Schema resolves a schema by name: declared schemas first, then the
// built-in ones, which also answer to the short names generic, network
// and note.
func (d *Definition) Schema(name string) (*schema.Schema, error) {
	declared, err := d.BuildSchemas()
	if err != nil {
		return nil, err
	}
	if s, ok := declared[name]; ok {
		return s, nil
	}
	switch name {
	case "generic", schema.Generic.Name():
		return schema.Generic, nil
	case "network", schema.Network.Name():
		return schema.Network, nil
	case "note", schema.Note.Name():
		return schema.Note, nil
	}
	return nil, apperrors.ConfigError{
		Field:      "schemas",
		Value:      name,
		Message:    "unknown schema",
		Suggestion: fmt.Sprintf("Declare it under 'schemas:' in your configuration, or use one of: %s", strings.Join(d.SchemaNames(), ", ")),
	}
}

// SchemaNames lists declared and built-in schema names, sorted.
func (d *Definition) SchemaNames() []string {
	names := []string{schema.Generic.Name(), schema.Network.Name(), schema.Note.Name()}
	for name := range d.Schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
