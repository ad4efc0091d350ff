package translator

import (
	"encoding/json"
	"fmt"

	"github.com/spektr-org/asktable/engine"
	"github.com/spektr-org/asktable/helpers"
)

// ============================================================================
// RESPONSE PARSER — extracts QuerySpec from a model response
// ============================================================================

// parseResponse extracts a TranslateResult from the model's JSON response.
func parseResponse(response string) (*TranslateResult, error) {
	response = helpers.StripCodeFence(response)

	var result TranslateResult
	if err := json.Unmarshal([]byte(response), &result); err != nil {
		return nil, fmt.Errorf("failed to parse translator response: %w (response: %s)", err, helpers.Truncate(response, 200))
	}
	if result.QuerySpec.Intent == "" && result.QuerySpec.Aggregation == "" && len(result.QuerySpec.GroupBy) == 0 {
		return nil, fmt.Errorf("translator response has no querySpec (response: %s)", helpers.Truncate(response, 200))
	}

	// Apply defaults for missing fields
	if result.QuerySpec.Intent == "" {
		result.QuerySpec.Intent = "text"
	}
	if result.QuerySpec.Aggregation == "" {
		result.QuerySpec.Aggregation = "sum"
	}
	if result.QuerySpec.Visualize == "" {
		result.QuerySpec.Visualize = result.QuerySpec.Intent
	}

	// Sync confidence
	if result.QuerySpec.Confidence == 0 && result.Interpretation.Confidence > 0 {
		result.QuerySpec.Confidence = result.Interpretation.Confidence
	}

	result.QuerySpec, result.Normalized = engine.NormalizeQuerySpec(result.QuerySpec)

	return &result, nil
}

// parseFallbackInterpretation tries to extract just the Interpretation.
// Used when the full response parse fails.
func parseFallbackInterpretation(response string) engine.Interpretation {
	response = helpers.StripCodeFence(response)

	// Try wrapped format: {"interpretation": {...}}
	var wrapper struct {
		Interpretation engine.Interpretation `json:"interpretation"`
	}
	if err := json.Unmarshal([]byte(response), &wrapper); err == nil && wrapper.Interpretation.Summary != "" {
		return wrapper.Interpretation
	}

	// Try direct format
	var direct engine.Interpretation
	if err := json.Unmarshal([]byte(response), &direct); err == nil && direct.Summary != "" {
		return direct
	}

	return engine.Interpretation{
		VisualType: "table",
		Summary:    "I'll try to show results for your query",
		Details: []engine.InterpretDetail{
			{Label: "Display", Value: "Data table"},
		},
		Confidence: 0.5,
	}
}

// fallbackSpec is the low-confidence list table used when a response
// cannot be parsed.
func fallbackSpec() engine.QuerySpec {
	return engine.QuerySpec{
		Intent:      "table",
		Aggregation: "list",
		Visualize:   "table",
		Title:       "Query Results",
		Limit:       50,
		Confidence:  0.5,
	}
}
