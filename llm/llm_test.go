package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOllamaServer(t *testing.T, models []string, reply string) (*httptest.Server, *ollamaGenerateRequest) {
	t.Helper()
	var last ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			var tags ollamaTagsResponse
			for _, m := range models {
				tags.Models = append(tags.Models, struct {
					Name string `json:"name"`
				}{Name: m})
			}
			_ = json.NewEncoder(w).Encode(tags)
		case "/api/generate":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&last))
			_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: reply, Done: true})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &last
}

func TestOllamaComplete(t *testing.T) {
	srv, last := newOllamaServer(t, []string{"mistral:latest"}, "  {\"intent\":\"text\"}\n")

	o := NewOllama(Config{Endpoint: srv.URL + "/", Model: "mistral", Temperature: 0.2, MaxTokens: 256})
	out, err := o.Complete(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, `{"intent":"text"}`, out)
	assert.Equal(t, "mistral", last.Model)
	assert.Equal(t, "hello", last.Prompt)
	assert.False(t, last.Stream)
	assert.Equal(t, 0.2, last.Options.Temperature)
	assert.Equal(t, 256, last.Options.NumPredict)
}

func TestOllamaPing(t *testing.T) {
	srv, _ := newOllamaServer(t, []string{"mistral:latest", "phi3:mini"}, "")

	assert.NoError(t, NewOllama(Config{Endpoint: srv.URL, Model: "mistral"}).Ping(context.Background()))
	assert.NoError(t, NewOllama(Config{Endpoint: srv.URL, Model: "phi3:mini"}).Ping(context.Background()))

	err := NewOllama(Config{Endpoint: srv.URL, Model: "llama3"}).Ping(context.Background())
	assert.ErrorIs(t, err, ErrModelNotFound)

	assert.True(t, IsAvailable(context.Background(), NewOllama(Config{Endpoint: srv.URL})))
	assert.False(t, IsAvailable(context.Background(), nil))
}

func TestOllamaUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	o := NewOllama(Config{Endpoint: url, Timeout: time.Second})
	_, err := o.Complete(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, IsAvailable(context.Background(), o))
}

func TestOllamaErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'nope' not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllama(Config{Endpoint: srv.URL, Model: "nope"}).Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "not found")
}

func TestNew(t *testing.T) {
	c, err := New(context.Background(), Config{Provider: "Ollama"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", c.Name())
	assert.Equal(t, "mistral", c.Model())

	_, err = New(context.Background(), Config{Provider: "none"})
	assert.ErrorIs(t, err, ErrNoProvider)

	_, err = New(context.Background(), Config{Provider: "openai"})
	assert.ErrorIs(t, err, ErrNoProvider)

	_, err = New(context.Background(), Config{Provider: "gemini"})
	assert.ErrorContains(t, err, "API key")
}

func TestGeminiTimeout(t *testing.T) {
	g, err := NewGemini(context.Background(), Config{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Timeout, g.timeout)
	assert.Equal(t, defaultGeminiModel, g.Model())

	g, err = NewGemini(context.Background(), Config{APIKey: "test-key", Timeout: 2 * time.Second})
	require.NoError(t, err)

	ctx, cancel := g.withTimeout(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, time.Second)
}

func TestAvailableModels(t *testing.T) {
	srv, _ := newOllamaServer(t, []string{"gemma:2b"}, "")

	models := AvailableModels(context.Background(), Config{Provider: ProviderOllama, Endpoint: srv.URL})
	assert.Equal(t, []string{"gemma:2b"}, models[ProviderOllama])
	assert.Equal(t, SuggestedModels[ProviderGemini], models[ProviderGemini])
}

func TestSameModel(t *testing.T) {
	assert.True(t, sameModel("mistral", "mistral:latest"))
	assert.True(t, sameModel("phi3:mini", "phi3:mini"))
	assert.False(t, sameModel("phi3:mini", "phi3"))
}
