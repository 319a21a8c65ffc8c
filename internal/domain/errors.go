package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a gateway failure.
type ErrorKind string

const (
	// ErrKindTransport covers connectivity failures and timeouts.
	ErrKindTransport ErrorKind = "transport"
	// ErrKindParse covers structurally unexpected remote payloads.
	ErrKindParse ErrorKind = "parse"
	// ErrKindAPI covers failures the remote service reported explicitly.
	ErrKindAPI ErrorKind = "api"
)

// GatewayError is a classified failure of a remote gateway call. The session
// boundary converts it to a user-visible diagnostic; it never propagates as
// process-fatal.
type GatewayError struct {
	Op   string // "completion" or "transcription"
	Kind ErrorKind
	Err  error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayError wraps err with an operation name and a failure kind.
func NewGatewayError(op string, kind ErrorKind, err error) *GatewayError {
	return &GatewayError{Op: op, Kind: kind, Err: err}
}

// AsGatewayError extracts a GatewayError from err's chain.
func AsGatewayError(err error) (*GatewayError, bool) {
	var gerr *GatewayError
	if errors.As(err, &gerr) {
		return gerr, true
	}
	return nil, false
}

// ErrInvalidBudget is returned when a budget update is not a positive integer.
var ErrInvalidBudget = errors.New("token limit must be a positive integer")
