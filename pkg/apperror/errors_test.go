package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("PAY_001", "Insufficient funds", http.StatusPaymentRequired),
			expected: "[PAY_001] Insufficient funds",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
	assert.Nil(t, New("PAY_001", "test", http.StatusBadRequest).Unwrap())
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("settle: %w", ErrInsufficientFunds())

	assert.Equal(t, "PAY_001", CodeOf(wrapped))
	assert.True(t, Is(wrapped, "PAY_001"))
	assert.Equal(t, "", CodeOf(fmt.Errorf("plain")))
	assert.False(t, Is(nil, "PAY_001"))
}

func TestErrorCatalog(t *testing.T) {
	inner := fmt.Errorf("boom")
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InvalidSignature", ErrInvalidSignature(), "SEC_002", 401},
		{"MissingSignature", ErrMissingSignature(), "SEC_002", 401},
		{"InsufficientFunds", ErrInsufficientFunds(), "PAY_001", 402},
		{"InvalidAmount", ErrInvalidAmount(), "PAY_002", 400},
		{"DuplicateTransaction", ErrDuplicateTransaction(), "PAY_003", 409},
		{"NotFound", ErrNotFound("Wallet"), "PAY_004", 404},
		{"InactiveActor", ErrInactiveActor(), "PAY_008", 403},
		{"Forbidden", ErrForbidden("merchants only"), "PAY_008", 403},
		{"MissingMerchantDetails", ErrMissingMerchantDetails([]string{"cardNumber"}), "PAY_009", 400},
		{"PaymentProcessing", ErrPaymentProcessing(inner), "PAY_010", 502},
		{"InvalidTransition", ErrInvalidTransition("SUCCESS", "FAILED"), "PAY_011", 409},
		{"UnknownPartner", ErrUnknownPartner("acme"), "CFG_001", 400},
		{"MissingCredentials", ErrMissingCredentials("djamo"), "CFG_002", 500},
		{"InvalidToken", ErrInvalidToken(), "AUTH_003", 401},
		{"RateLimitExceeded", ErrRateLimitExceeded(), "RATE_001", 429},
		{"DatabaseError", ErrDatabaseError(inner), "SYS_001", 500},
		{"LockTimeout", ErrLockTimeout(inner), "SYS_002", 503},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestMessagesCarryContext(t *testing.T) {
	assert.Contains(t, ErrNotFound("Merchant").Message, "Merchant")
	assert.Contains(t, ErrMissingMerchantDetails([]string{"meterNumber"}).Message, "meterNumber")
	assert.Contains(t, ErrInvalidTransition("SUCCESS", "FAILED").Message, "SUCCESS -> FAILED")
	assert.Contains(t, ErrUnknownPartner("acme").Message, "acme")
}
