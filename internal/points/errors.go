package points

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error identifier.
type Code string

const (
	CodeNotFound              Code = "NOT_FOUND"
	CodeAccessDenied          Code = "ACCESS_DENIED"
	CodeRewardInactive        Code = "REWARD_INACTIVE"
	CodeInsufficientAvailable Code = "INSUFFICIENT_AVAILABLE"
	CodeInsufficientBalance   Code = "INSUFFICIENT_BALANCE"
	CodeNotPending            Code = "NOT_PENDING"
	CodeInvalidAmount         Code = "INVALID_AMOUNT"
	CodeInvalidInput          Code = "INVALID_INPUT"
	CodeConflict              Code = "CONFLICT"
)

// Error is a domain failure. Two Errors match under errors.Is when their
// codes are equal, so callers compare against the sentinels below.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrNotFound              = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAccessDenied          = &Error{Code: CodeAccessDenied, Message: "access denied"}
	ErrRewardInactive        = &Error{Code: CodeRewardInactive, Message: "reward is not active"}
	ErrInsufficientAvailable = &Error{Code: CodeInsufficientAvailable, Message: "not enough available points"}
	ErrInsufficientBalance   = &Error{Code: CodeInsufficientBalance, Message: "not enough points"}
	ErrNotPending            = &Error{Code: CodeNotPending, Message: "purchase is not pending"}
	ErrInvalidAmount         = &Error{Code: CodeInvalidAmount, Message: "amount must be positive"}
	ErrInvalidInput          = &Error{Code: CodeInvalidInput, Message: "invalid input"}
	ErrConflict              = &Error{Code: CodeConflict, Message: "resource busy, try again"}
)

func errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the domain code carried by err, or "" for any other error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
