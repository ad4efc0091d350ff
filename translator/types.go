package translator

import (
	"context"

	"github.com/spektr-org/asktable/engine"
	"github.com/spektr-org/asktable/schema"
)

// ============================================================================
// TRANSLATOR — natural language → QuerySpec
// ============================================================================
// A translator receives schema metadata, a lightweight data summary and the
// user's question, and returns a QuerySpec for the engine. It never sees
// raw rows: only column names, sample values and distinct dimension values.
//
// Two implementations:
//   - LLM: prompts a language model (Ollama, Gemini)
//   - Heuristic: keyword and value matching, no model
// ============================================================================

// Translator translates natural language queries into QuerySpecs.
type Translator interface {
	// Name identifies the backend in answers and history ("ollama", "heuristic").
	Name() string
	// Translate converts a question into a QuerySpec plus an Interpretation
	// the user can preview. summary may be nil.
	Translate(ctx context.Context, query string, sch schema.Config, summary *DataSummary) (*TranslateResult, error)
}

// TranslateResult contains both the QuerySpec and the Interpretation.
type TranslateResult struct {
	QuerySpec      engine.QuerySpec      `json:"querySpec"`
	Interpretation engine.Interpretation `json:"interpretation"`
	// Normalized is set when engine rules had to correct the spec.
	Normalized bool `json:"normalized,omitempty"`
}

// DataSummary provides lightweight metadata about available data.
// This is what the model sees. Never raw records.
type DataSummary struct {
	RecordCount int                 `json:"recordCount"`
	Dimensions  map[string][]string `json:"dimensions"` // dimension key → distinct values found
	Truncated   []string            `json:"truncated,omitempty"`
}
