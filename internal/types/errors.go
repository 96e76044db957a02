package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is a typed string for categorizing dispatch-layer errors.
type ErrorCode string

// Complete error code constants.
// All packages MUST use these constants instead of hardcoded strings.
const (
	// Configuration (load-time, fatal for the whole table)
	ErrCodeConfigInvalidLotteryType    ErrorCode = "config_invalid_lottery_type"
	ErrCodeConfigInvalidBoardCount     ErrorCode = "config_invalid_board_count"
	ErrCodeConfigDuplicateSchedule     ErrorCode = "config_duplicate_schedule_name"
	ErrCodeConfigExcludeConflict       ErrorCode = "config_exclude_conflicts_with_games"
	ErrCodeConfigDuplicateType         ErrorCode = "config_duplicate_lottery_type"
	ErrCodeConfigEmptyGames            ErrorCode = "config_empty_games"
	ErrCodeConfigInvalidName           ErrorCode = "config_invalid_schedule_name"
	ErrCodeConfigInvalidTimeExpression ErrorCode = "config_invalid_time_expression"
	ErrCodeConfigInvalidTolerance      ErrorCode = "config_invalid_tolerance_window"
	ErrCodeConfigMalformedTable        ErrorCode = "config_malformed_table"

	// Resolution (dispatch-time, fatal for that firing)
	ErrCodeResolutionNotFound   ErrorCode = "resolution_schedule_not_found"
	ErrCodeResolutionNoMatch    ErrorCode = "resolution_no_matching_schedule"
	ErrCodeResolutionEmptyEvent ErrorCode = "resolution_empty_trigger"

	// Invocation (dispatch-time, recoverable by the trigger mechanism)
	ErrCodeInvocationUnreachable ErrorCode = "invocation_unreachable"
	ErrCodeInvocationThrottled   ErrorCode = "invocation_throttled"
	ErrCodeInvocationTimeout     ErrorCode = "invocation_timeout"
	ErrCodeInvocationRejected    ErrorCode = "invocation_rejected"

	// Internal
	ErrCodeInternalEncoding ErrorCode = "internal_payload_encoding"
)

// ErrorClass groups error codes by where they occur and who may recover them.
type ErrorClass string

const (
	ClassConfig     ErrorClass = "config"
	ClassResolution ErrorClass = "resolution"
	ClassInvocation ErrorClass = "invocation"
	ClassInternal   ErrorClass = "internal"
)

// Class maps an ErrorCode to its ErrorClass using the code prefix.
// Returns ClassInternal for unrecognized codes.
func (c ErrorCode) Class() ErrorClass {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "config_"):
		return ClassConfig
	case strings.HasPrefix(s, "resolution_"):
		return ClassResolution
	case strings.HasPrefix(s, "invocation_"):
		return ClassInvocation
	default:
		return ClassInternal
	}
}

// Retryable reports whether the trigger mechanism's retry policy should act on
// this error. Only transport-level invocation failures qualify; a rejected
// request will not succeed on replay.
func (c ErrorCode) Retryable() bool {
	return c.Class() == ClassInvocation && c != ErrCodeInvocationRejected
}

// AppError is the standard error type used throughout the dispatch layer.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Class returns the ErrorClass of this error's code.
func (e *AppError) Class() ErrorClass {
	return e.Code.Class()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsClass reports whether any AppError in err's tree (including errors.Join
// branches) belongs to the given class.
func IsClass(err error, class ErrorClass) bool {
	if err == nil {
		return false
	}
	if appErr, ok := err.(*AppError); ok && appErr.Class() == class {
		return true
	}
	switch x := err.(type) {
	case interface{ Unwrap() []error }:
		for _, e := range x.Unwrap() {
			if IsClass(e, class) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return IsClass(x.Unwrap(), class)
	}
	return false
}

// IsRetryable reports whether err carries an invocation error that the trigger
// mechanism may retry.
func IsRetryable(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code.Retryable()
}
