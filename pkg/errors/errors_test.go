package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrappedErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		code     string
	}{
		{"not found", WrapApplicationNotFound("42"), ErrNotFound, ErrCodeNotFound},
		{"invalid state", WrapInvalidState("42", "approve", "SUBMITTED", "ASSESSED"), ErrInvalidState, ErrCodeInvalidState},
		{"incomplete", WrapIncompleteApplication("42", "email is blank"), ErrIncompleteApplication, ErrCodeIncompleteApplication},
		{"not eligible", WrapNotEligible("42", "ratio too high"), ErrNotEligible, ErrCodeNotEligible},
		{"invalid input", WrapInvalidInput("reason is required"), ErrInvalidInput, ErrCodeInvalidInput},
		{"access denied", WrapAccessDenied("42"), ErrAccessDenied, ErrCodeAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, errors.Is(wrapped, tt.sentinel))
			assert.Equal(t, tt.code, CodeOf(wrapped))
		})
	}
}

func TestWrapInvalidState_NamesRequiredStatuses(t *testing.T) {
	err := WrapInvalidState("42", "reject", "SUBMITTED", "UNDER_REVIEW", "ASSESSED")
	assert.Contains(t, err.Error(), "requires UNDER_REVIEW or ASSESSED")
	assert.Contains(t, err.Error(), "in status SUBMITTED")
}

func TestCodeOf_Unclassified(t *testing.T) {
	assert.Equal(t, "", CodeOf(errors.New("boom")))
	assert.Equal(t, ErrCodeDatabaseError, CodeOf(WrapDatabaseError(errors.New("boom"))))
}
