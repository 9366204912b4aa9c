package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	vmerrors "github.com/homelab-ops/vaultmig/internal/errors"
	"github.com/homelab-ops/vaultmig/internal/logging"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration shared by all commands.
type Config struct {
	Path           string // optional vaultmig.yaml path
	Logger         *logging.Logger
	NonInteractive bool
	Settings       Settings
}

// Settings mirrors the vaultmig.yaml structure. Flags override file values,
// file values override defaults.
type Settings struct {
	AnsibleDir        string   `yaml:"ansible_dir"`
	OutputDir         string   `yaml:"output_dir"`
	Environment       string   `yaml:"environment"`
	ProjectID         string   `yaml:"project_id"`
	VaultPasswordFile string   `yaml:"vault_password_file"`
	TimeoutSeconds    int      `yaml:"timeout_seconds"`
	RetryAttempts     int      `yaml:"retry_attempts"`
	NamePatterns      []string `yaml:"name_patterns"`
	// FlattenPrefix is the variable-name prefix marking "select sensitive
	// variables" files. A non-scalar top-level value under a key without
	// this prefix is treated as a single opaque secret.
	FlattenPrefix string `yaml:"flatten_prefix"`
}

// Defaults returns the built-in settings, matching the shell tool this
// replaces.
func Defaults() Settings {
	return Settings{
		AnsibleDir:     "ansible",
		OutputDir:      "migration-output",
		Environment:    "prod",
		TimeoutSeconds: 30,
		RetryAttempts:  3,
		NamePatterns:   []string{"*vault*.yml", "*vault*.yaml"},
		FlattenPrefix:  "vault_",
	}
}

// Load reads and validates the vaultmig.yaml file into c.Settings, on top of
// defaults. A missing file is only an error when a path was set explicitly.
func (c *Config) Load() error {
	c.Settings = Defaults()
	if c.Path == "" {
		return nil
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return vmerrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Omit --config to run with built-in defaults",
			}
		}
		return vmerrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	if err := validateSchema(data); err != nil {
		return vmerrors.ConfigError{
			Field:      "path",
			Value:      c.Path,
			Message:    err.Error(),
			Suggestion: "Compare your file against the documented vaultmig.yaml keys",
		}
	}

	if err := yaml.Unmarshal(data, &c.Settings); err != nil {
		return vmerrors.ConfigError{
			Field:      "path",
			Value:      c.Path,
			Message:    "invalid YAML: " + err.Error(),
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	return c.validate()
}

func (c *Config) validate() error {
	s := c.Settings
	if s.TimeoutSeconds <= 0 {
		return vmerrors.ConfigError{
			Field:   "timeout_seconds",
			Value:   s.TimeoutSeconds,
			Message: "must be positive",
		}
	}
	if s.RetryAttempts < 1 {
		return vmerrors.ConfigError{
			Field:   "retry_attempts",
			Value:   s.RetryAttempts,
			Message: "must be at least 1",
		}
	}
	if strings.TrimSpace(s.Environment) == "" {
		return vmerrors.ConfigError{
			Field:   "environment",
			Message: "must not be empty",
		}
	}
	return nil
}

// validateSchema checks the raw YAML document against the embedded JSON
// schema before unmarshaling, so typos in key names fail loudly instead of
// being silently ignored.
func validateSchema(data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}
	if doc == nil {
		return nil
	}

	jsonData, err := json.Marshal(normalizeYAML(doc))
	if err != nil {
		return fmt.Errorf("failed to marshal config for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(settingsSchema),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("schema validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
	}
	return nil
}

// normalizeYAML converts map[interface{}]interface{} trees from YAML into
// map[string]interface{} so they can be JSON-marshaled.
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(inner)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[k] = normalizeYAML(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = normalizeYAML(inner)
		}
		return out
	default:
		return v
	}
}
