package models

import (
	"errors"
	"fmt"
)

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// ErrorKind classifies failures surfaced to callers
type ErrorKind string

const (
	KindNoProvider          ErrorKind = "no_provider"
	KindUserRejected        ErrorKind = "user_rejected"
	KindInsufficientFunds   ErrorKind = "insufficient_funds"
	KindAuthorizationDenied ErrorKind = "authorization_denied"
	KindContractNotDeployed ErrorKind = "contract_not_deployed"
	KindNetworkMismatch     ErrorKind = "network_mismatch"
	KindDataUnavailable     ErrorKind = "data_unavailable"
	KindGenericFailure      ErrorKind = "generic_failure"
)

// FloodError is a classified failure. Reason is the short human-readable
// text shown to users; Err keeps the raw cause for logs.
type FloodError struct {
	Kind    ErrorKind
	Op      string
	Reason  string
	Timeout bool
	Err     error
}

func (e *FloodError) Error() string {
	if e.Op == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *FloodError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether retrying later could succeed
func (e *FloodError) IsTransient() bool {
	switch e.Kind {
	case KindGenericFailure, KindDataUnavailable:
		return true
	default:
		return e.Timeout
	}
}

// NewFloodError builds a classified error
func NewFloodError(kind ErrorKind, op, reason string, err error) *FloodError {
	return &FloodError{Kind: kind, Op: op, Reason: reason, Err: err}
}

// KindOf returns the classification of err, GenericFailure for anything unclassified
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var fe *FloodError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindGenericFailure
}

// ReasonOf returns the user-facing text for err
func ReasonOf(err error) string {
	var fe *FloodError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsTimeout reports whether err is a classified timeout
func IsTimeout(err error) bool {
	var fe *FloodError
	return errors.As(err, &fe) && fe.Timeout
}
