package model

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Kind is a stable machine-readable error category surfaced to callers.
type Kind string

const (
	KindInvalidName      Kind = "invalid_name"
	KindInsufficientData Kind = "insufficient_data"
	KindAnalysisParse    Kind = "analysis_parse"
	KindInvalidScore     Kind = "invalid_score"
	KindDuplicateInput   Kind = "duplicate_input"
	KindPartialAnalysis  Kind = "partial_analysis"
	KindTimeout          Kind = "timeout"
	KindInternal         Kind = "internal"
)

// Error is a categorised failure scoped to one request or key.
type Error struct {
	Kind    Kind
	Key     string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Key != "" {
		b.WriteString(" [")
		b.WriteString(e.Key)
		b.WriteString("]")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the Err* sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidName      = &Error{Kind: KindInvalidName}
	ErrInsufficientData = &Error{Kind: KindInsufficientData}
	ErrAnalysisParse    = &Error{Kind: KindAnalysisParse}
	ErrInvalidScore     = &Error{Kind: KindInvalidScore}
	ErrDuplicateInput   = &Error{Kind: KindDuplicateInput}
	ErrTimeout          = &Error{Kind: KindTimeout}
)

// InvalidNameError reports a product name that normalises to nothing.
func InvalidNameError(raw string) *Error {
	return &Error{Kind: KindInvalidName, Message: fmt.Sprintf("product name %q is empty after normalization", raw)}
}

// InsufficientDataError reports that no source documents exist for key.
func InsufficientDataError(key string, cause error) *Error {
	return &Error{Kind: KindInsufficientData, Key: key, Message: "not enough discussion data found", Err: cause}
}

// AnalysisParseError reports an LLM response that is not a JSON object even
// after repair. raw is truncated for the message.
func AnalysisParseError(key, raw string, cause error) *Error {
	const maxRaw = 200
	if utf8.RuneCountInString(raw) > maxRaw {
		raw = string([]rune(raw)[:maxRaw]) + "..."
	}
	return &Error{Kind: KindAnalysisParse, Key: key, Message: fmt.Sprintf("unusable model response %q", raw), Err: cause}
}

// InvalidScoreError reports a missing or out-of-range sentiment score.
func InvalidScoreError(key, detail string) *Error {
	return &Error{Kind: KindInvalidScore, Key: key, Message: detail}
}

// DuplicateInputError reports the same product on both sides of a comparison.
func DuplicateInputError(key string) *Error {
	return &Error{Kind: KindDuplicateInput, Key: key, Message: "both names refer to the same product"}
}

// TimeoutError reports a caller deadline that expired before completion.
func TimeoutError(cause error) *Error {
	return &Error{Kind: KindTimeout, Message: "deadline exceeded before analysis completed", Err: cause}
}

// SideFailure identifies one failed side of a comparison.
type SideFailure struct {
	Side string // "a" or "b"
	Key  string
	Err  error
}

// PartialAnalysisError reports that at least one side of a comparison
// failed. A comparison is never produced from a single side.
type PartialAnalysisError struct {
	Failures []SideFailure
}

func (e *PartialAnalysisError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("side %s (%s): %v", f.Side, f.Key, f.Err))
	}
	return string(KindPartialAnalysis) + ": " + strings.Join(parts, "; ")
}

// Unwrap exposes every side's cause to errors.Is / errors.As.
func (e *PartialAnalysisError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Failed reports whether key is among the failed sides.
func (e *PartialAnalysisError) Failed(key string) bool {
	for _, f := range e.Failures {
		if f.Key == key {
			return true
		}
	}
	return false
}

// KindOf returns the category of err. A partial-analysis failure wins over
// the kinds of its causes.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var pe *PartialAnalysisError
	if errors.As(err, &pe) {
		return KindPartialAnalysis
	}
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return KindInternal
}

// KeyOf returns the key attached to err, if any.
func KeyOf(err error) string {
	var pe *PartialAnalysisError
	if errors.As(err, &pe) && len(pe.Failures) > 0 {
		return pe.Failures[0].Key
	}
	var me *Error
	if errors.As(err, &me) {
		return me.Key
	}
	return ""
}
