// Package model wraps the generative text service the pipeline depends on.
// Callers see a prompt-in/text-out contract and a tagged Response; transport
// details stay behind the Service interface.
package model

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable reports that the service cannot be used at all (no key,
// disabled, or offline mode). It is never retried.
var ErrUnavailable = errors.New("model service not available")

// Service completes a prompt.
type Service interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Func adapts a plain function to Service.
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ErrorKind is the closed set of reasons a Response carries no content.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindUnavailable
	KindFormatIssue
	KindCallFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUnavailable:
		return "unavailable"
	case KindFormatIssue:
		return "format-issue"
	case KindCallFailed:
		return "call-failed"
	default:
		return "unknown"
	}
}

// Response is either text from the service or a named failure.
type Response struct {
	Text string
	Kind ErrorKind
	Err  error // underlying cause when Kind is KindCallFailed
}

// Text wraps successful output.
func Text(s string) Response { return Response{Text: s} }

// Failure builds an error response of the given kind.
func Failure(kind ErrorKind, err error) Response {
	return Response{Kind: kind, Err: err}
}

// Failed reports whether the response carries an error kind instead of text.
func (r Response) Failed() bool { return r.Kind != KindNone }

// legacy textual codes written by older tooling into test-case sheets.
var sentinels = map[string]ErrorKind{
	"ERROR_API_NOT_AVAILABLE":   KindUnavailable,
	"ERROR_GENERATION_FORMAT":   KindFormatIssue,
	"ERROR_API_CALL_FAILED":     KindCallFailed,
	"ERROR_API_QUOTA_EXCEEDED":  KindCallFailed,
	"ERROR_GENERATION_FAILED":   KindCallFailed,
	"ERROR_NO_CONTENT_RETURNED": KindFormatIssue,
}

// ParseSentinel maps a textual error marker found in an imported artifact to
// its ErrorKind. Any text starting with "ERROR_" is treated as a marker;
// unknown codes map to KindCallFailed.
func ParseSentinel(text string) (ErrorKind, bool) {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "ERROR_") {
		return KindNone, false
	}
	for prefix, kind := range sentinels {
		if strings.HasPrefix(s, prefix) {
			return kind, true
		}
	}
	return KindCallFailed, true
}
