// Package testutil provides test utilities and helpers for secretpass tests.
//
// This package contains shared test infrastructure including configuration
// builders, logger helpers and a scripted Secret Service.
package testutil

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/offsoc/libsecret/internal/config"
	"github.com/offsoc/libsecret/internal/logging"
)

// TestConfigBuilder provides a fluent API for building secretpass.yaml
// files in a test's temporary directory.
//
// Example usage:
//
//	cfg := NewTestConfig(t).
//	    WithAlgorithm("plain").
//	    WithSchema("org.example.Mail", false, map[string]string{"user": "string"}).
//	    Config()
type TestConfigBuilder struct {
	t          *testing.T
	definition *config.Definition
	dir        string
}

// NewTestConfig starts from the same defaults as a missing file.
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()

	return &TestConfigBuilder{
		t:          t,
		definition: config.Defaults(),
		dir:        t.TempDir(),
	}
}

func (b *TestConfigBuilder) WithAlgorithm(algorithm string) *TestConfigBuilder {
	b.definition.Algorithm = algorithm
	return b
}

func (b *TestConfigBuilder) WithTimeoutMs(ms int) *TestConfigBuilder {
	b.definition.TimeoutMs = ms
	return b
}

func (b *TestConfigBuilder) WithCollection(collection string) *TestConfigBuilder {
	b.definition.Collection = collection
	return b
}

func (b *TestConfigBuilder) WithMetrics(enabled bool) *TestConfigBuilder {
	b.definition.Metrics.Enabled = enabled
	return b
}

// WithSchema declares a schema; attributes maps names to type names.
func (b *TestConfigBuilder) WithSchema(name string, allowUndefined bool, attributes map[string]string) *TestConfigBuilder {
	if b.definition.Schemas == nil {
		b.definition.Schemas = make(map[string]config.SchemaConfig)
	}
	b.definition.Schemas[name] = config.SchemaConfig{
		AllowUndefined: allowUndefined,
		Attributes:     attributes,
	}
	return b
}

// WithMockSchema declares MockSchema so commands can address it by name.
func (b *TestConfigBuilder) WithMockSchema() *TestConfigBuilder {
	return b.WithSchema(MockSchemaName, false, map[string]string{
		"number": "integer",
		"string": "string",
		"even":   "boolean",
	})
}

// Write marshals the definition and returns the file path.
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	data, err := yaml.Marshal(b.definition)
	if err != nil {
		b.t.Fatalf("Failed to marshal config: %v", err)
	}
	path := filepath.Join(b.dir, "secretpass.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		b.t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

// Config writes the file and returns an unloaded *config.Config that
// points at it, logging nowhere.
func (b *TestConfigBuilder) Config() *config.Config {
	b.t.Helper()

	return &config.Config{
		Path:   b.Write(),
		Logger: logging.NewWithWriter(io.Discard, false, true),
	}
}
