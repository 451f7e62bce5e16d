// Package apperrors defines the error taxonomy shared across the application.
//
// Sentinel errors cover conditions the workflow branches on with errors.Is;
// structured types carry extra context for conditions that are reported per
// item (network failures, malformed saved files, bad selection input).
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth indicates bad or missing API credentials. It is fatal for the
	// whole run: the workflow aborts immediately when it sees this error.
	ErrAuth = errors.New("authentication failed")

	// ErrNotFound indicates a user, team or ticket id that does not resolve.
	// Fatal for the item it concerns, the batch continues.
	ErrNotFound = errors.New("not found")

	// ErrRateLimit indicates provider throttling on the completion API.
	// Fatal for that ticket's plan step; the ticket file already written
	// is kept.
	ErrRateLimit = errors.New("rate limited")
)

// NetworkError wraps a transport-level failure for a single API call.
type NetworkError struct {
	// Op names the call that failed (e.g. "linear query", "anthropic completion")
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ParseError reports a malformed saved ticket file. Fatal for that file only.
type ParseError struct {
	// Path is the file being parsed, empty when parsing an in-memory document
	Path    string
	Message string
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse ticket file %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse ticket: %s", e.Message)
}

// InputError reports an invalid interactive selection token. It never aborts
// the workflow: valid tokens in the same selection still proceed.
type InputError struct {
	Token  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid selection %q: %s", e.Token, e.Reason)
}
