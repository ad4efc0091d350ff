// Package config loads asktable settings from defaults, a YAML file, the
// environment and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/spektr-org/asktable/llm"
)

// EnvPrefix prefixes every environment override. A double underscore
// separates nesting levels: ASKTABLE_LLM__MODEL sets llm.model.
const EnvPrefix = "ASKTABLE_"

// FileNames are searched in the working directory when no file is given.
var FileNames = []string{"asktable.yaml", "asktable.yml"}

// ErrUnknownKey is returned by With for a key the config does not have.
var ErrUnknownKey = errors.New("unknown config key")

// LLM configures the language-model backend.
type LLM struct {
	Provider    string  `koanf:"provider" yaml:"provider" validate:"oneof=ollama gemini none"`
	Model       string  `koanf:"model" yaml:"model"`
	Endpoint    string  `koanf:"endpoint" yaml:"endpoint" validate:"omitempty,url"`
	APIKey      string  `koanf:"api_key" yaml:"api_key,omitempty"`
	Temperature float64 `koanf:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `koanf:"max_tokens" yaml:"max_tokens" validate:"gte=1"`
	Timeout     int     `koanf:"timeout" yaml:"timeout" validate:"gte=1"`
}

// Config is the full asktable configuration. Durations are in seconds.
type Config struct {
	LLM              LLM    `koanf:"llm" yaml:"llm"`
	Verbose          bool   `koanf:"verbose" yaml:"verbose"`
	LogLevel         string `koanf:"log_level" yaml:"log_level" validate:"oneof=trace debug info warn error"`
	PlotStyle        string `koanf:"plot_style" yaml:"plot_style" validate:"oneof=default seaborn ggplot classic"`
	OutputDir        string `koanf:"output_dir" yaml:"output_dir"`
	MaxExecutionTime int    `koanf:"max_execution_time" yaml:"max_execution_time" validate:"gte=1"`
	MaxRows          int    `koanf:"max_rows" yaml:"max_rows" validate:"gte=0"`
	HistoryPath      string `koanf:"history_path" yaml:"history_path"`
	Output           string `koanf:"output" yaml:"output" validate:"oneof=table json csv text"`
}

// Defaults returns the default settings as flat dotted keys.
func Defaults() map[string]any {
	d := llm.DefaultConfig()
	return map[string]any{
		"llm.provider":       d.Provider,
		"llm.model":          d.Model,
		"llm.endpoint":       d.Endpoint,
		"llm.api_key":        "",
		"llm.temperature":    d.Temperature,
		"llm.max_tokens":     d.MaxTokens,
		"llm.timeout":        int(d.Timeout / time.Second),
		"verbose":            false,
		"log_level":          "info",
		"plot_style":         "default",
		"output_dir":         "output",
		"max_execution_time": 30,
		"max_rows":           0,
		"history_path":       "",
		"output":             "table",
	}
}

// Default returns the validated default configuration.
func Default() *Config {
	cfg, err := fromMap(Defaults())
	if err != nil {
		panic(fmt.Sprintf("invalid default config: %v", err))
	}
	return cfg
}

// Load builds a Config from defaults, then the YAML file, then ASKTABLE_
// environment variables, then the flags in fs that were explicitly set.
// path may be empty, in which case FileNames are tried. The returned string
// is the file actually read, or "".
func Load(path string, fs *pflag.FlagSet) (*Config, string, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load defaults: %w", err)
	}

	used := findFile(path)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, "", fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load env vars: %w", err)
	}

	if fs != nil {
		if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, flagKey(fs)), nil); err != nil {
			return nil, "", fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg, err := unmarshal(k)
	if err != nil {
		return nil, "", err
	}
	return cfg, used, nil
}

// LoadFile reads the defaults and the YAML file at path, ignoring the
// environment and flags. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}
	return unmarshal(k)
}

func findFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range FileNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// envKey maps ASKTABLE_LLM__MAX_TOKENS to llm.max_tokens.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// flagAliases maps short CLI flag names onto config keys.
var flagAliases = map[string]string{
	"provider": "llm.provider",
	"model":    "llm.model",
	"endpoint": "llm.endpoint",
	"api-key":  "llm.api_key",
}

func flagKey(fs *pflag.FlagSet) func(f *pflag.Flag) (string, any) {
	known := Defaults()
	return func(f *pflag.Flag) (string, any) {
		if !f.Changed {
			return "", nil
		}
		key, ok := flagAliases[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
		}
		if _, ok := known[key]; !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}

func fromMap(m map[string]any) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(m, "."), nil); err != nil {
		return nil, err
	}
	return unmarshal(k)
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s: failed %q (got %v)", fe.Namespace(), fieldRule(fe), fe.Value())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func fieldRule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// Map returns the configuration as flat dotted keys.
func (c *Config) Map() map[string]any {
	return map[string]any{
		"llm.provider":       c.LLM.Provider,
		"llm.model":          c.LLM.Model,
		"llm.endpoint":       c.LLM.Endpoint,
		"llm.api_key":        c.LLM.APIKey,
		"llm.temperature":    c.LLM.Temperature,
		"llm.max_tokens":     c.LLM.MaxTokens,
		"llm.timeout":        c.LLM.Timeout,
		"verbose":            c.Verbose,
		"log_level":          c.LogLevel,
		"plot_style":         c.PlotStyle,
		"output_dir":         c.OutputDir,
		"max_execution_time": c.MaxExecutionTime,
		"max_rows":           c.MaxRows,
		"history_path":       c.HistoryPath,
		"output":             c.Output,
	}
}

// Keys returns every config key, sorted.
func (c *Config) Keys() []string {
	m := c.Map()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Redacted is Map with the API key masked.
func (c *Config) Redacted() map[string]any {
	m := c.Map()
	if c.LLM.APIKey != "" {
		m["llm.api_key"] = "********"
	}
	return m
}

// With returns a copy of c with overrides applied and validated. String
// values are converted to the field type, so "0.3" sets a float. c is
// left unchanged.
func (c *Config) With(overrides map[string]any) (*Config, error) {
	base := c.Map()
	for key := range overrides {
		if _, ok := base[key]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
		}
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(base, "."), nil); err != nil {
		return nil, err
	}
	if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
		return nil, err
	}
	return unmarshal(k)
}

// Save writes c to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// LLMConfig converts the llm block for llm.New.
func (c *Config) LLMConfig() llm.Config {
	return llm.Config{
		Provider:    c.LLM.Provider,
		Model:       c.LLM.Model,
		Endpoint:    c.LLM.Endpoint,
		APIKey:      c.LLM.APIKey,
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
		Timeout:     time.Duration(c.LLM.Timeout) * time.Second,
	}
}

// ExecutionTimeout is MaxExecutionTime as a duration.
func (c *Config) ExecutionTimeout() time.Duration {
	return time.Duration(c.MaxExecutionTime) * time.Second
}
