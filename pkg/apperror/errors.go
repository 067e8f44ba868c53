package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err is an *AppError carrying the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Error codes referenced outside this package.
const (
	CodeBidTooLow            = "BID_001"
	CodeLotNotOpen           = "BID_002"
	CodeLotAlreadyClosed     = "BID_003"
	CodeBuyItNowUnavailable  = "BID_004"
	CodeInsufficientFunds    = "WAL_001"
	CodeInvalidAmount        = "WAL_002"
	CodeUnknownReservation   = "WAL_003"
	CodeDuplicateDeposit     = "WAL_004"
	CodeInvalidTransition    = "LOT_001"
	CodeNotFound             = "LOT_002"
	CodeInvariantViolation   = "SYS_004"
	CodeInternal             = "SYS_001"
	CodeRateLimitExceeded    = "RATE_001"
	CodeInvalidToken         = "SEC_005"
	CodeInvalidOperatorKey   = "SEC_006"
	CodeInvalidSignature     = "SEC_002"
	CodeInvalidGatewayKey    = "SEC_001"
	CodeTimestampExpired     = "SEC_003"
	CodeNonceUsed            = "SEC_004"
	CodeValidation           = "REQ_001"
	CodeLockAcquisitionError = "SYS_002"
)

// ---- Bidding (BID) ----

func ErrBidTooLow(floor int64) *AppError {
	return New(CodeBidTooLow, fmt.Sprintf("Bid must be at least %d", floor), http.StatusUnprocessableEntity)
}

func ErrLotNotOpen() *AppError {
	return New(CodeLotNotOpen, "Lot is not open for bidding", http.StatusConflict)
}

func ErrLotAlreadyClosed() *AppError {
	return New(CodeLotAlreadyClosed, "Lot has already closed", http.StatusConflict)
}

func ErrBuyItNowUnavailable() *AppError {
	return New(CodeBuyItNowUnavailable, "Buy-it-now is not available for this lot", http.StatusConflict)
}

// ---- Wallet (WAL) ----

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient available balance in wallet", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Invalid amount", http.StatusBadRequest)
}

func ErrUnknownReservation() *AppError {
	return New(CodeUnknownReservation, "Reservation does not exist or is already closed", http.StatusConflict)
}

func ErrDuplicateDeposit() *AppError {
	return New(CodeDuplicateDeposit, "Deposit reference already processed", http.StatusConflict)
}

// ---- Lots (LOT) ----

func ErrInvalidTransition(from, to string) *AppError {
	return New(CodeInvalidTransition, fmt.Sprintf("Lot cannot move from %s to %s", from, to), http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Security & Authentication (SEC) ----

func ErrInvalidGatewayKey() *AppError {
	return New(CodeInvalidGatewayKey, "Invalid gateway credentials", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New(CodeInvalidSignature, "Invalid signature", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New(CodeTimestampExpired, "Request timestamp expired", http.StatusForbidden)
}

func ErrNonceUsed() *AppError {
	return New(CodeNonceUsed, "Nonce has already been used", http.StatusForbidden)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrInvalidOperatorKey() *AppError {
	return New(CodeInvalidOperatorKey, "Invalid operator key", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrLockTimeout(err error) *AppError {
	return Wrap(CodeLockAcquisitionError, "Lot lock acquisition failed", http.StatusServiceUnavailable, err)
}

// ErrInvariantViolation marks a ledger or lot invariant that would have been
// broken. It is never a user error; the enclosing transaction must abort.
func ErrInvariantViolation(err error) *AppError {
	return Wrap(CodeInvariantViolation, "Internal invariant violation", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}
