// Package llm provides the language-model backends used to translate
// questions and refine schemas. The model never sees raw rows.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoProvider is returned by New when the provider is "none" or empty.
	ErrNoProvider = errors.New("no language model provider configured")
	// ErrUnavailable wraps every failure to reach a backend.
	ErrUnavailable = errors.New("language model unavailable")
	// ErrModelNotFound means the backend is up but does not serve the model.
	ErrModelNotFound = errors.New("model not found")
)

// Provider names.
const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)

// Client is a text-completion backend.
type Client interface {
	Name() string
	Model() string
	// Ping checks that the backend is reachable and serves Model.
	Ping(ctx context.Context) error
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config selects and tunes a backend.
type Config struct {
	Provider    string
	Model       string
	Endpoint    string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// DefaultConfig is a local Ollama with the mistral model.
func DefaultConfig() Config {
	return Config{
		Provider:    ProviderOllama,
		Model:       "mistral",
		Endpoint:    DefaultOllamaEndpoint,
		Temperature: 0.1,
		MaxTokens:   1024,
		Timeout:     60 * time.Second,
	}
}

// SuggestedModels lists small models that work well per provider.
var SuggestedModels = map[string][]string{
	ProviderOllama: {"phi3:mini", "llama3.2:3b", "mistral:7b", "gemma:2b"},
	ProviderGemini: {"gemini-2.5-flash-lite", "gemini-2.5-flash", "gemini-2.0-flash"},
}

const pingTimeout = 3 * time.Second

// IsAvailable pings c with a short timeout.
func IsAvailable(ctx context.Context, c Client) bool {
	if c == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.Ping(ctx) == nil
}

// New builds the client for cfg.Provider. It does not contact the backend.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOllama:
		return NewOllama(cfg), nil
	case ProviderGemini:
		return NewGemini(ctx, cfg)
	case ProviderNone, "":
		return nil, ErrNoProvider
	default:
		return nil, fmt.Errorf("unknown provider %q: %w", cfg.Provider, ErrNoProvider)
	}
}

// AvailableModels probes Ollama and Gemini concurrently. A provider that
// cannot be listed reports its suggested models instead.
func AvailableModels(ctx context.Context, cfg Config) map[string][]string {
	out := make(map[string][]string, len(SuggestedModels))
	var mu sync.Mutex
	set := func(provider string, models []string) {
		mu.Lock()
		defer mu.Unlock()
		out[provider] = models
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		o := NewOllama(Config{Endpoint: ollamaEndpoint(cfg), Timeout: pingTimeout})
		models, err := o.Models(gctx)
		if err != nil || len(models) == 0 {
			models = SuggestedModels[ProviderOllama]
		}
		set(ProviderOllama, models)
		return nil
	})
	g.Go(func() error {
		models := SuggestedModels[ProviderGemini]
		if cfg.APIKey != "" {
			gem, err := NewGemini(gctx, Config{APIKey: cfg.APIKey})
			if err == nil {
				if listed, err := gem.Models(gctx); err == nil && len(listed) > 0 {
					models = listed
				}
			}
		}
		set(ProviderGemini, models)
		return nil
	})
	_ = g.Wait()
	return out
}

func ollamaEndpoint(cfg Config) string {
	if strings.EqualFold(cfg.Provider, ProviderOllama) && cfg.Endpoint != "" {
		return cfg.Endpoint
	}
	return DefaultOllamaEndpoint
}
