package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("connection refused")
	err := DatabaseError("failed to load account", cause)

	got := err.Error()
	want := "DATABASE_ERROR: failed to load account (caused by: connection refused)"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	bare := NotFound("account not found", nil)
	if bare.Error() != "NOT_FOUND: account not found" {
		t.Errorf("Unexpected message: %q", bare.Error())
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := ServiceError("something failed", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to reach the cause through Unwrap")
	}
}

func TestIsMatchesCode(t *testing.T) {
	err := Conflict("status changed concurrently", nil)

	if !Is(err, ErrCodeConflict) {
		t.Error("Expected Is to match the error's own code")
	}
	if Is(err, ErrCodeNotFound) {
		t.Error("Expected Is to reject a different code")
	}
	if Is(nil, ErrCodeConflict) {
		t.Error("Expected Is to reject nil")
	}
	if Is(errors.New("plain"), ErrCodeConflict) {
		t.Error("Expected Is to reject non-AppError values")
	}
}

func TestIsUnwrapsWrappedAppError(t *testing.T) {
	inner := LimitExceeded("plan starter allows 3 approved profiles")
	wrapped := fmt.Errorf("approve profile: %w", inner)

	if !Is(wrapped, ErrCodeLimitExceeded) {
		t.Error("Expected Is to unwrap to the AppError")
	}
}

func TestWithOperationAndDetails(t *testing.T) {
	err := InvalidInput("unknown sort key", nil).
		WithOperation("Ranking").
		WithDetails("sort=created_at")

	if err.Operation != "Ranking" {
		t.Errorf("Expected operation Ranking, got %q", err.Operation)
	}
	if err.Details != "sort=created_at" {
		t.Errorf("Expected details to be recorded, got %q", err.Details)
	}
}

func TestConstructorsCarryCodes(t *testing.T) {
	cases := []struct {
		err  *AppError
		code string
	}{
		{AlreadyEnrolled("x"), ErrCodeAlreadyEnrolled},
		{GraduatedImmutable("x"), ErrCodeGraduatedFrozen},
		{TierGap("x"), ErrCodeTierGap},
		{LimitExceeded("x"), ErrCodeLimitExceeded},
		{Unauthorized("x", nil), ErrCodeUnauthorized},
		{Forbidden("x", nil), ErrCodeForbidden},
		{ValidationError("x", nil), ErrCodeValidationError},
	}
	for _, tc := range cases {
		if tc.err.Code != tc.code {
			t.Errorf("Expected code %s, got %s", tc.code, tc.err.Code)
		}
	}
}
