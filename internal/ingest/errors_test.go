// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package ingest

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCategorization(t *testing.T) {
	tests := []struct {
		message string
		want    ErrorCategory
	}{
		{"connection refused by broker", ErrorCategoryConnection},
		{"operation timed out", ErrorCategoryTimeout},
		{"malformed statement payload", ErrorCategoryValidation},
		{"SQL constraint violation", ErrorCategoryDatabase},
		{"something odd happened", ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		if got := categorize(tt.message); got != tt.want {
			t.Errorf("categorize(%q) = %s, want %s", tt.message, got, tt.want)
		}
	}
}

func TestPermanentErrorDefaultsToValidation(t *testing.T) {
	err := NewPermanentError("something odd happened", nil)
	if err.Category != ErrorCategoryValidation {
		t.Errorf("Category = %s, want validation default", err.Category)
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("root cause")
	retryable := NewRetryableError("connection lost", cause)
	permanent := NewPermanentError("invalid payload", cause)

	if !IsRetryable(fmt.Errorf("wrapped: %w", retryable)) {
		t.Error("IsRetryable missed a wrapped RetryableError")
	}
	if !IsPermanent(fmt.Errorf("wrapped: %w", permanent)) {
		t.Error("IsPermanent missed a wrapped PermanentError")
	}
	if IsRetryable(permanent) || IsPermanent(retryable) {
		t.Error("categories crossed")
	}
	if !errors.Is(retryable, cause) {
		t.Error("Unwrap lost the cause")
	}
}
