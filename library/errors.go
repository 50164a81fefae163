package library

import "errors"

// Validation failures.
var (
	ErrRequiredField    = errors.New("required field is empty")
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrWeakPassword     = errors.New("password must be at least 8 characters and contain a digit, a lowercase and an uppercase letter")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// Business rule violations.
var (
	ErrBookUnavailable     = errors.New("book is not available")
	ErrLoanLimitReached    = errors.New("user has reached the maximum number of active loans")
	ErrBookOnLoan          = errors.New("book is currently on loan")
	ErrLastAdmin           = errors.New("at least one administrator must remain")
	ErrUserHasLoans        = errors.New("user still has books on loan")
	ErrEmailTaken          = errors.New("email is already registered")
	ErrLoanAlreadyReturned = errors.New("loan has already been returned")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrForbidden           = errors.New("administrator role required")
	ErrInvalidSession      = errors.New("invalid or expired session")
)

// Lookup failures.
var (
	ErrBookNotFound = errors.New("book not found")
	ErrUserNotFound = errors.New("user not found")
	ErrLoanNotFound = errors.New("loan not found")
)

// ErrStorage wraps every database failure. The cause is joined to it and logged
// where it happened.
var ErrStorage = errors.New("storage failure")
