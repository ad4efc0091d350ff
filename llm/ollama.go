package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spektr-org/asktable/helpers"
)

// =============================================================================
// OLLAMA BACKEND
// =============================================================================

// DefaultOllamaEndpoint is where `ollama serve` listens.
const DefaultOllamaEndpoint = "http://localhost:11434"

// Ollama talks to a local Ollama server over its HTTP API.
type Ollama struct {
	endpoint    string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// NewOllama creates an Ollama client. Empty fields take DefaultConfig values.
func NewOllama(cfg Config) *Ollama {
	def := DefaultConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Ollama{
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name returns "ollama".
func (o *Ollama) Name() string { return ProviderOllama }

// Model returns the configured model.
func (o *Ollama) Model() string { return o.model }

// Ping checks that the server answers and has the model pulled.
func (o *Ollama) Ping(ctx context.Context) error {
	models, err := o.Models(ctx)
	if err != nil {
		return err
	}
	for _, m := range models {
		if sameModel(m, o.model) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (run: ollama pull %s)", ErrModelNotFound, o.model, o.model)
}

// Models lists the models pulled on the server.
func (o *Ollama) Models(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var result ollamaTagsResponse
	if err := o.do(httpReq, &result); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(result.Models))
	for _, m := range result.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Complete sends a single non-streaming generate request.
func (o *Ollama) Complete(ctx context.Context, prompt string) (string, error) {
	req := ollamaGenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: o.temperature,
			NumPredict:  o.maxTokens,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var result ollamaGenerateResponse
	if err := o.do(httpReq, &result); err != nil {
		return "", err
	}
	if result.Error != "" {
		return "", fmt.Errorf("ollama: %s", result.Error)
	}
	return strings.TrimSpace(result.Response), nil
}

func (o *Ollama) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ollama request failed: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, helpers.Truncate(string(bodyBytes), 200))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response after %s: %w", time.Since(start).Round(time.Millisecond), err)
	}
	return nil
}

// sameModel treats "mistral" and "mistral:latest" as the same model.
func sameModel(a, b string) bool {
	norm := func(s string) string {
		if !strings.Contains(s, ":") {
			return s + ":latest"
		}
		return s
	}
	return norm(a) == norm(b)
}

// =============================================================================
// OLLAMA API TYPES
// =============================================================================

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}
