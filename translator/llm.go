package translator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/spektr-org/asktable/helpers"
	"github.com/spektr-org/asktable/llm"
	"github.com/spektr-org/asktable/query"
	"github.com/spektr-org/asktable/schema"
)

// ============================================================================
// MODEL TRANSLATOR — prompts an llm.Client for NL → QuerySpec
// ============================================================================
// This is the only translator that makes external calls, and the only data
// it sends is the prompt built from schema metadata and the data summary.
// ============================================================================

const ratioHint = "\nHINT: This is a RATIO query. Use aggregation:\"ratio\" with BOTH \"filters\" (denominator) AND \"compareFilters\" (numerator).\n"

// LLM implements Translator with a language model.
type LLM struct {
	client llm.Client
	log    zerolog.Logger
}

// NewLLM creates a model-backed translator.
func NewLLM(client llm.Client, log zerolog.Logger) *LLM {
	return &LLM{client: client, log: log}
}

// Name returns the backend name of the wrapped client.
func (t *LLM) Name() string { return t.client.Name() }

// Translate prompts the model and parses its QuerySpec. A model error is
// returned. An unparseable answer becomes a low-confidence list table.
func (t *LLM) Translate(ctx context.Context, q string, sch schema.Config, summary *DataSummary) (*TranslateResult, error) {
	prompt := BuildPrompt(sch, summary) + "\n\nUSER QUERY: " + q
	if query.IsRatio(q) {
		prompt += ratioHint
	}
	prompt += "\n\nRespond with valid JSON only:"

	t.log.Debug().
		Str("query", helpers.Truncate(q, 80)).
		Str("schema", sch.Name).
		Str("backend", t.client.Name()).
		Str("model", t.client.Model()).
		Int("prompt_bytes", len(prompt)).
		Msg("translating")

	response, err := t.client.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%s translate: %w", t.client.Name(), err)
	}

	result, err := parseResponse(response)
	if err != nil {
		t.log.Warn().Err(err).Msg("translator parse failed, using list fallback")
		return &TranslateResult{
			QuerySpec:      fallbackSpec(),
			Interpretation: parseFallbackInterpretation(response),
		}, nil
	}

	t.log.Debug().
		Str("intent", result.QuerySpec.Intent).
		Str("aggregation", result.QuerySpec.Aggregation).
		Str("visualize", result.QuerySpec.Visualize).
		Float64("confidence", result.QuerySpec.Confidence).
		Bool("normalized", result.Normalized).
		Msg("translated")

	return result, nil
}
