package domain

import "fmt"

// AppError is the base error type shared by the harness and the stub wallet.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Standard error constructors.

// ErrSetup marks a scenario misconfiguration detected before any network
// call (missing rollback reference, incomplete expected values).
func ErrSetup(msg string) *AppError {
	return &AppError{Code: "SETUP_ERROR", Message: msg, Status: 0}
}

// ErrAssertion marks a response/balance mismatch against the oracle.
func ErrAssertion(msg string) *AppError {
	return &AppError{Code: "ASSERTION_FAILED", Message: msg, Status: 0}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: msg, Status: 400}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: msg, Status: 401}
}

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrTransactionNotFound(id string) *AppError {
	return &AppError{Code: "TRANSACTION_NOT_FOUND", Message: fmt.Sprintf("transaction %s not found", id), Status: 404}
}

func ErrInsufficientBalance() *AppError {
	return &AppError{Code: "INSUFFICIENT_BALANCE", Message: "insufficient balance", Status: 400}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: msg, Status: 500, Cause: cause}
}
