package query

import (
	"errors"
	"fmt"
	"strings"
)

// MaxQueryLength is the longest question accepted.
const MaxQueryLength = 1000

// blockedPatterns are fragments that only show up in attempts to smuggle
// code or commands through a question.
var blockedPatterns = []string{
	"import os",
	"import sys",
	"exec(",
	"eval(",
	"__",
	"subprocess",
	"os.system",
	"drop table",
	"delete from",
	"truncate table",
	"rm -rf",
}

// Validation is the outcome of Validate.
type Validation struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Validate checks a question before it reaches a translator. Errors make
// the question unusable. Warnings are advisory.
func Validate(q string, columns []string) Validation {
	var v Validation
	trimmed := strings.TrimSpace(q)

	if trimmed == "" {
		v.Errors = append(v.Errors, "query is empty")
		return v
	}
	if n := len([]rune(trimmed)); n > MaxQueryLength {
		v.Errors = append(v.Errors, fmt.Sprintf("query is too long (%d characters, max %d)", n, MaxQueryLength))
	}

	lower := strings.ToLower(trimmed)
	for _, p := range blockedPatterns {
		if strings.Contains(lower, p) {
			v.Errors = append(v.Errors, fmt.Sprintf("query contains a disallowed pattern: %q", p))
		}
	}

	if len(columns) > 0 && len(MentionedColumns(trimmed, columns)) == 0 {
		v.Warnings = append(v.Warnings, "query does not reference any known column; results may be generic")
	}
	if len(strings.Fields(trimmed)) < 2 {
		v.Warnings = append(v.Warnings, "query is very short; consider adding more detail")
	}

	v.IsValid = len(v.Errors) == 0
	return v
}

// Err joins the validation errors, or returns nil when the query is valid.
func (v Validation) Err() error {
	if v.IsValid {
		return nil
	}
	return errors.New(strings.Join(v.Errors, "; "))
}
