// Package errors provides custom error types for the splitledger API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError carrying the same code, so
// errors.Is(err, ErrGroupNotFound) holds for wrapped and re-messaged copies.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized        = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials  = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrInvalidRefreshToken = &AppError{Code: "INVALID_REFRESH_TOKEN", Message: "Invalid or expired refresh token", StatusCode: http.StatusUnauthorized}
	ErrForbidden           = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
	ErrAccountLocked       = &AppError{Code: "ACCOUNT_LOCKED", Message: "Account is temporarily locked", StatusCode: http.StatusLocked}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound    = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail  = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
	ErrUserHasExpenses = &AppError{Code: "USER_HAS_EXPENSES", Message: "Account is referenced by active expenses", StatusCode: http.StatusConflict}
)

// Group errors.
var (
	ErrGroupNotFound = &AppError{Code: "GROUP_NOT_FOUND", Message: "Group not found", StatusCode: http.StatusNotFound}
	ErrNotGroupAdmin = &AppError{Code: "NOT_GROUP_ADMIN", Message: "Only group admins can perform this action", StatusCode: http.StatusForbidden}
)

// Membership errors.
var (
	ErrMemberNotFound    = &AppError{Code: "MEMBER_NOT_FOUND", Message: "User is not a member of this group", StatusCode: http.StatusNotFound}
	ErrAlreadyMember     = &AppError{Code: "ALREADY_MEMBER", Message: "User is already a member of this group", StatusCode: http.StatusConflict}
	ErrLastAdmin         = &AppError{Code: "LAST_ADMIN", Message: "A group must keep at least one admin", StatusCode: http.StatusConflict}
	ErrMemberHasExpenses = &AppError{Code: "MEMBER_HAS_EXPENSES", Message: "Member is referenced by existing expenses", StatusCode: http.StatusConflict}
	ErrInvalidMemberRole = &AppError{Code: "INVALID_MEMBER_ROLE", Message: "Role must be admin or member", StatusCode: http.StatusBadRequest}
)

// Expense errors.
var (
	ErrExpenseNotFound = &AppError{Code: "EXPENSE_NOT_FOUND", Message: "Expense not found", StatusCode: http.StatusNotFound}
	ErrInvalidExpense  = &AppError{Code: "INVALID_EXPENSE", Message: "Expense must be paid by and split between group members", StatusCode: http.StatusBadRequest}
	ErrNotExpenseOwner = &AppError{Code: "NOT_EXPENSE_OWNER", Message: "Only the payer or a group admin can change this expense", StatusCode: http.StatusForbidden}
)

// Category errors.
var (
	ErrCategoryNotFound  = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
	ErrCategoryInUse     = &AppError{Code: "CATEGORY_IN_USE", Message: "Category is used by existing expenses", StatusCode: http.StatusConflict}
	ErrCategoryIsDefault = &AppError{Code: "CATEGORY_IS_DEFAULT", Message: "Default categories cannot be modified", StatusCode: http.StatusForbidden}
	ErrDuplicateCategory = &AppError{Code: "DUPLICATE_CATEGORY", Message: "A category with this name already exists", StatusCode: http.StatusConflict}
)

// Ledger warnings. These never fail a request; they are reported alongside the result.
var (
	ErrUnbalancedLedger = &AppError{Code: "UNBALANCED_LEDGER", Message: "Group balances do not sum to zero", StatusCode: http.StatusOK}
)
