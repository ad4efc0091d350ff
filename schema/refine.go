package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/spektr-org/asktable/helpers"
)

// ============================================================================
// SMART REFINE — model-assisted schema enrichment (one-time)
// ============================================================================
//
// After FromFrame produces a draft schema from heuristics, Refine optionally
// sends column metadata to a language model for semantic enrichment. The
// caller keeps the result; it is never re-fetched unless the data changes.
//
// What the model sees:
//   - Column names, dtypes, sample values, unique counts
//   - Row count
//   - Detected hierarchies and temporal flags
//
// What the model NEVER sees:
//   - Full rows or any values beyond the capped samples
//
// What the model returns:
//   - Suggested dataset name + description
//   - Display names, descriptions, units per column
//   - Sort hints for ordinal dimensions (P1 > P2 > P3 > P4)
//   - Default aggregation suggestions (sum vs avg vs count)
//   - Hierarchies the heuristics missed
// ============================================================================

// Completer is the slice of llm.Client that Refine needs.
type Completer interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Refine enriches a draft schema with a single model call. The draft is not
// mutated. When the call or the parse fails, the draft is returned together
// with the error so callers can carry on with it.
//
// Logs go to the zerolog logger attached to ctx, if any.
func Refine(ctx context.Context, draft *Config, c Completer) (*Config, error) {
	if draft == nil {
		return nil, errors.New("draft schema is nil")
	}
	if c == nil {
		return draft, errors.New("no language model configured for refine")
	}
	log := zerolog.Ctx(ctx)

	payload := buildRefinePayload(draft)
	prompt := buildRefinePrompt(payload)

	log.Debug().
		Int("columns", len(payload.Columns)).
		Int("prompt_bytes", len(prompt)).
		Str("backend", c.Name()).
		Msg("refining schema")

	response, err := c.Complete(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Msg("schema refine call failed, keeping draft")
		return draft, fmt.Errorf("schema refine call failed: %w", err)
	}

	enrichment, err := parseRefineResponse(response)
	if err != nil {
		log.Warn().Err(err).Msg("schema refine parse failed, keeping draft")
		return draft, fmt.Errorf("schema refine parse failed: %w", err)
	}

	result := applyEnrichments(draft, enrichment)
	result.RefinedAt = time.Now().UTC().Format(time.RFC3339)
	result.RefinedBy = c.Name()

	log.Info().
		Int("dimensions", len(result.Dimensions)).
		Int("measures", len(result.Measures)).
		Msg("schema refined")

	return result, nil
}

// ============================================================================
// PAYLOAD BUILDER — what the model sees
// ============================================================================

type refinePayload struct {
	Columns  []refineColumn `json:"columns"`
	RowCount int            `json:"rowCount"`
	Detected refineDetected `json:"detected"`
}

type refineColumn struct {
	Key        string   `json:"key"`
	Role       string   `json:"role"` // "dimension", "measure"
	DType      string   `json:"dtype"`
	Samples    []string `json:"samples,omitempty"`
	Unique     int      `json:"unique,omitempty"`
	IsTemporal bool     `json:"isTemporal,omitempty"`
	Parent     string   `json:"parent,omitempty"`
}

type refineDetected struct {
	HasTemporal    bool     `json:"hasTemporal"`
	Hierarchies    []string `json:"hierarchies,omitempty"`    // "child → parent"
	SkippedColumns []string `json:"skippedColumns,omitempty"` // names of skipped columns
}

func buildRefinePayload(draft *Config) refinePayload {
	p := refinePayload{RowCount: draft.RowCount}

	for _, d := range draft.Dimensions {
		if d.DerivedFrom != "" {
			continue
		}
		p.Columns = append(p.Columns, refineColumn{
			Key:        d.Key,
			Role:       "dimension",
			DType:      d.DType,
			Samples:    limitSamples(d.SampleValues, 5),
			Unique:     d.UniqueCount,
			IsTemporal: d.IsTemporal,
			Parent:     d.Parent,
		})
		if d.IsTemporal {
			p.Detected.HasTemporal = true
		}
		if d.Parent != "" {
			p.Detected.Hierarchies = append(p.Detected.Hierarchies,
				fmt.Sprintf("%s → %s", d.Key, d.Parent))
		}
	}

	// Measures (skip synthetic)
	for _, m := range draft.Measures {
		if m.IsSynthetic {
			continue
		}
		p.Columns = append(p.Columns, refineColumn{
			Key:   m.Key,
			Role:  "measure",
			DType: m.DType,
		})
	}

	for _, s := range draft.SkippedColumns {
		p.Detected.SkippedColumns = append(p.Detected.SkippedColumns, s.Column)
	}

	return p
}

// ============================================================================
// PROMPT BUILDER
// ============================================================================

func buildRefinePrompt(payload refinePayload) string {
	payloadJSON, _ := json.MarshalIndent(payload, "", "  ")

	return fmt.Sprintf(`You are a data analyst inspecting a dataset's structure. Based on the column metadata below, provide semantic enrichments.

COLUMN METADATA:
%s

INSTRUCTIONS:
1. Suggest a concise, descriptive name for this dataset (2-5 words)
2. Write a one-line description of what this dataset contains
3. For each column, provide:
   - displayName: Human-friendly label (e.g., "story_points" → "Story Points")
   - description: What this column represents in the domain
   - unit: For measures only — one of: "currency", "hours", "points", "percent", "units", or "" if unknown
   - sortHint: For ordinal dimensions — natural ordering (e.g., "P1 > P2 > P3 > P4")
   - defaultAggregation: For measures — "sum", "avg", "median", "count", "max", "min"
4. Suggest any hierarchies the heuristics may have missed (parent → child relationships)

Respond with ONLY valid JSON (no markdown, no backticks):
{
  "datasetName": "...",
  "datasetDescription": "...",
  "enrichments": [
    {
      "key": "column_key",
      "displayName": "...",
      "description": "...",
      "unit": "",
      "sortHint": "",
      "defaultAggregation": ""
    }
  ],
  "suggestedHierarchies": [
    {"parent": "parent_key", "child": "child_key", "reason": "..."}
  ]
}`, string(payloadJSON))
}

// ============================================================================
// RESPONSE TYPES
// ============================================================================

type refineEnrichment struct {
	DatasetName          string                `json:"datasetName"`
	DatasetDescription   string                `json:"datasetDescription"`
	Enrichments          []columnEnrichment    `json:"enrichments"`
	SuggestedHierarchies []hierarchySuggestion `json:"suggestedHierarchies"`
}

type columnEnrichment struct {
	Key                string `json:"key"`
	DisplayName        string `json:"displayName"`
	Description        string `json:"description"`
	Unit               string `json:"unit"`
	SortHint           string `json:"sortHint"`
	DefaultAggregation string `json:"defaultAggregation"`
}

type hierarchySuggestion struct {
	Parent string `json:"parent"`
	Child  string `json:"child"`
	Reason string `json:"reason"`
}

func parseRefineResponse(response string) (*refineEnrichment, error) {
	response = helpers.StripCodeFence(response)

	var result refineEnrichment
	if err := json.Unmarshal([]byte(response), &result); err != nil {
		return nil, fmt.Errorf("failed to parse refine response: %w (response: %s)", err, helpers.Truncate(response, 300))
	}
	return &result, nil
}

// ============================================================================
// APPLY ENRICHMENTS — merge model suggestions into the schema
// ============================================================================

// applyEnrichments creates a new Config with suggestions merged in.
// Rules:
//   - suggestions override generic display names and empty descriptions
//   - column roles and keys never change
//   - columns are never added or removed
//   - hierarchy suggestions apply only between known dimensions without a parent
func applyEnrichments(draft *Config, enrichment *refineEnrichment) *Config {
	result := deepCopyConfig(draft)

	if enrichment.DatasetName != "" {
		result.Name = enrichment.DatasetName
	}
	if enrichment.DatasetDescription != "" {
		result.Description = enrichment.DatasetDescription
	}

	enrichMap := make(map[string]columnEnrichment)
	for _, e := range enrichment.Enrichments {
		enrichMap[e.Key] = e
	}

	for i := range result.Dimensions {
		d := &result.Dimensions[i]
		if e, ok := enrichMap[d.Key]; ok {
			if e.DisplayName != "" {
				d.DisplayName = e.DisplayName
			}
			if e.Description != "" {
				d.Description = e.Description
			}
			if e.SortHint != "" {
				d.SortHint = e.SortHint
			}
		}
	}

	for i := range result.Measures {
		m := &result.Measures[i]
		if e, ok := enrichMap[m.Key]; ok {
			if e.DisplayName != "" {
				m.DisplayName = e.DisplayName
			}
			if e.Description != "" {
				m.Description = e.Description
			}
			if e.Unit != "" {
				m.Unit = e.Unit
			}
			if e.DefaultAggregation != "" && isValidAggregation(e.DefaultAggregation) {
				m.DefaultAggregation = e.DefaultAggregation
			}
		}
	}

	known := make(map[string]bool, len(result.Dimensions))
	for _, d := range result.Dimensions {
		known[d.Key] = true
	}
	for _, h := range enrichment.SuggestedHierarchies {
		if !known[h.Parent] || h.Parent == h.Child {
			continue
		}
		for i := range result.Dimensions {
			if result.Dimensions[i].Key == h.Child && result.Dimensions[i].Parent == "" {
				result.Dimensions[i].Parent = h.Parent
			}
		}
	}

	return result
}

// ============================================================================
// HELPERS
// ============================================================================

func deepCopyConfig(src *Config) *Config {
	dst := *src

	dst.Dimensions = make([]DimensionMeta, len(src.Dimensions))
	for i, d := range src.Dimensions {
		dst.Dimensions[i] = d
		dst.Dimensions[i].SampleValues = append([]string(nil), d.SampleValues...)
	}

	dst.Measures = make([]MeasureMeta, len(src.Measures))
	for i, m := range src.Measures {
		dst.Measures[i] = m
		dst.Measures[i].Aggregations = append([]string(nil), m.Aggregations...)
	}

	dst.SkippedColumns = append([]SkippedColumn(nil), src.SkippedColumns...)
	return &dst
}

func limitSamples(vals []string, max int) []string {
	if len(vals) <= max {
		return vals
	}
	return vals[:max]
}

func isValidAggregation(agg string) bool {
	switch agg {
	case "sum", "avg", "median", "count", "max", "min":
		return true
	}
	return false
}
