// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package ingest

import (
	"errors"
	"strings"
)

// ErrorCategory classifies failures for the ledger and metrics labels.
type ErrorCategory int

const (
	// ErrorCategoryUnknown is the default for unclassified errors.
	ErrorCategoryUnknown ErrorCategory = iota
	// ErrorCategoryConnection indicates network or broker failures.
	ErrorCategoryConnection
	// ErrorCategoryTimeout indicates an operation deadline was exceeded.
	ErrorCategoryTimeout
	// ErrorCategoryValidation indicates malformed or unparseable data.
	ErrorCategoryValidation
	// ErrorCategoryDatabase indicates warehouse operation failures.
	ErrorCategoryDatabase
)

// String returns the metrics label for the category.
func (c ErrorCategory) String() string {
	switch c {
	case ErrorCategoryConnection:
		return "connection"
	case ErrorCategoryTimeout:
		return "timeout"
	case ErrorCategoryValidation:
		return "validation"
	case ErrorCategoryDatabase:
		return "database"
	default:
		return "unknown"
	}
}

// RetryableError wraps a transient failure. The consumer nacks the message
// so JetStream redelivers it.
type RetryableError struct {
	Message  string
	Cause    error
	Category ErrorCategory
}

// NewRetryableError creates a retryable error, categorized from the message.
func NewRetryableError(message string, cause error) *RetryableError {
	return &RetryableError{
		Message:  message,
		Cause:    cause,
		Category: categorize(message),
	}
}

func (e *RetryableError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RetryableError) Unwrap() error { return e.Cause }

// PermanentError wraps a failure that redelivery cannot fix. The consumer
// records it, dead-letters the payload, and acks.
type PermanentError struct {
	Message  string
	Cause    error
	Category ErrorCategory
}

// NewPermanentError creates a permanent error. Unclassifiable permanent
// errors default to the validation category since malformed input is the
// dominant cause.
func NewPermanentError(message string, cause error) *PermanentError {
	category := categorize(message)
	if category == ErrorCategoryUnknown {
		category = ErrorCategoryValidation
	}
	return &PermanentError{
		Message:  message,
		Cause:    cause,
		Category: category,
	}
}

func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *PermanentError) Unwrap() error { return e.Cause }

// IsRetryable reports whether err is (or wraps) a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// categorize guesses a category from the error message text.
func categorize(message string) ErrorCategory {
	m := strings.ToLower(message)
	switch {
	case containsAny(m, "connection", "connect", "refused", "reset", "network"):
		return ErrorCategoryConnection
	case containsAny(m, "timeout", "deadline", "timed out"):
		return ErrorCategoryTimeout
	case containsAny(m, "invalid", "malformed", "parse", "decode", "validation"):
		return ErrorCategoryValidation
	case containsAny(m, "database", "sql", "query", "insert", "constraint"):
		return ErrorCategoryDatabase
	default:
		return ErrorCategoryUnknown
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
