package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name: "message only",
			err: &Error{
				Code:    EINVALID,
				Message: "missing event id",
			},
			expected: "missing event id",
		},
		{
			name: "with operation",
			err: &Error{
				Code:    EPAYLOAD,
				Op:      "processor.customer",
				Message: "unexpected object tag",
			},
			expected: "processor.customer: unexpected object tag",
		},
		{
			name: "with wrapped error",
			err: &Error{
				Code:    EINTERNAL,
				Op:      "store.upsert_customer",
				Message: "failed to save",
				Err:     errors.New("database connection failed"),
			},
			expected: "store.upsert_customer: failed to save: database connection failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	underlying := errors.New("connection refused")
	err := &Error{
		Code: EUNAVAILABLE,
		Op:   "identity.get_user",
		Err:  underlying,
	}

	if unwrapped := errors.Unwrap(err); unwrapped != underlying {
		t.Errorf("Error.Unwrap() = %v, want %v", unwrapped, underlying)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: ""},
		{name: "domain error", err: &Error{Code: ESIGNATURE}, expected: ESIGNATURE},
		{
			name:     "wrapped domain error",
			err:      fmt.Errorf("wrapped: %w", &Error{Code: ENOTFOUND, Message: "test"}),
			expected: ENOTFOUND,
		},
		{name: "plain error", err: errors.New("boom"), expected: EINTERNAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.expected {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: ""},
		{
			name:     "domain error",
			err:      &Error{Code: EINVALID, Message: "email is required"},
			expected: "email is required",
		},
		{
			name:     "internal error is hidden",
			err:      &Error{Code: EINTERNAL, Message: "database password rejected"},
			expected: "An internal error occurred. Please try again later.",
		},
		{
			name:     "plain error is hidden",
			err:      errors.New("database password rejected"),
			expected: "An internal error occurred. Please try again later.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorMessage(tt.err); got != tt.expected {
				t.Errorf("ErrorMessage() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorOp(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: ""},
		{name: "domain error", err: &Error{Op: "syncer.customers"}, expected: "syncer.customers"},
		{name: "plain error", err: errors.New("boom"), expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorOp(tt.err); got != tt.expected {
				t.Errorf("ErrorOp() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf(EPAYLOAD, "processor.refund", "unexpected object tag: %s", "invoice")

	var domainErr *Error
	if !errors.As(err, &domainErr) {
		t.Fatal("Errorf should return *Error")
	}

	if domainErr.Code != EPAYLOAD {
		t.Errorf("Code = %q, want %q", domainErr.Code, EPAYLOAD)
	}

	if domainErr.Op != "processor.refund" {
		t.Errorf("Op = %q, want %q", domainErr.Op, "processor.refund")
	}

	if domainErr.Message != "unexpected object tag: invoice" {
		t.Errorf("Message = %q, want %q", domainErr.Message, "unexpected object tag: invoice")
	}
}

func TestWrapError(t *testing.T) {
	t.Run("wraps error", func(t *testing.T) {
		underlying := errors.New("connection lost")
		err := WrapError(underlying, EINTERNAL, "store.upsert_subscription", "failed to save subscription")

		var domainErr *Error
		if !errors.As(err, &domainErr) {
			t.Fatal("WrapError should return *Error")
		}

		if domainErr.Code != EINTERNAL {
			t.Errorf("Code = %q, want %q", domainErr.Code, EINTERNAL)
		}

		if !errors.Is(err, underlying) {
			t.Error("wrapped error should match errors.Is")
		}
	})

	t.Run("nil returns nil", func(t *testing.T) {
		err := WrapError(nil, EINTERNAL, "test", "test")
		if err != nil {
			t.Errorf("WrapError(nil) should return nil, got %v", err)
		}
	})
}

func TestIsCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     string
		expected bool
	}{
		{name: "matching code", err: &Error{Code: ENOTFOUND}, code: ENOTFOUND, expected: true},
		{name: "different code", err: &Error{Code: ENOTFOUND}, code: EINVALID, expected: false},
		{name: "plain error is internal", err: errors.New("boom"), code: EINTERNAL, expected: true},
		{name: "nil error", err: nil, code: EINTERNAL, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCode(tt.err, tt.code); got != tt.expected {
				t.Errorf("IsCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestConvenienceFunctions(t *testing.T) {
	t.Run("NotFound", func(t *testing.T) {
		err := NotFound("store.get_customer", "customer", "cus_123")
		if ErrorCode(err) != ENOTFOUND {
			t.Errorf("NotFound code = %q, want %q", ErrorCode(err), ENOTFOUND)
		}
		if ErrorMessage(err) != "customer not found: cus_123" {
			t.Errorf("NotFound message = %q", ErrorMessage(err))
		}
	})

	t.Run("Unauthorized", func(t *testing.T) {
		err := Unauthorized("webhook.verify", "missing signature header")
		if ErrorCode(err) != EUNAUTHORIZED {
			t.Errorf("Unauthorized code = %q, want %q", ErrorCode(err), EUNAUTHORIZED)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		err := Invalid("logto.post_register", "primaryEmail is required")
		if ErrorCode(err) != EINVALID {
			t.Errorf("Invalid code = %q, want %q", ErrorCode(err), EINVALID)
		}
	})

	t.Run("Unavailable", func(t *testing.T) {
		underlying := errors.New("connection refused")
		err := Unavailable(underlying, "identity.token", "token endpoint request failed")
		if ErrorCode(err) != EUNAVAILABLE {
			t.Errorf("Unavailable code = %q, want %q", ErrorCode(err), EUNAVAILABLE)
		}
		if !errors.Is(err, underlying) {
			t.Error("Unavailable should preserve the underlying error")
		}
	})

	t.Run("Internal", func(t *testing.T) {
		underlying := errors.New("duplicate key")
		err := Internal(underlying, "store.upsert_price", "failed to save")
		if ErrorCode(err) != EINTERNAL {
			t.Errorf("Internal code = %q, want %q", ErrorCode(err), EINTERNAL)
		}
		if !errors.Is(err, underlying) {
			t.Error("Internal should preserve the underlying error")
		}
		if msg := ErrorMessage(err); msg == "failed to save" {
			t.Errorf("Internal message should be hidden, got %q", msg)
		}
	})
}
