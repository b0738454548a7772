package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer. Only ErrConfigLoad may terminate the
// process, and only during startup; every other sentinel is handled per-request.
var (
	ErrConfigLoad         = fmt.Errorf("failed to load configuration")
	ErrStorageUnavailable = fmt.Errorf("conversation store unavailable")
	ErrUnknownTool        = fmt.Errorf("unknown tool")
	ErrInference          = fmt.Errorf("model inference failed")
	ErrEmptyInput         = fmt.Errorf("empty input")

	ErrToolFailure     = fmt.Errorf("tool execution failed")
	ErrMaxIterations   = fmt.Errorf("agent reached max iterations")
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
	ErrContextOverflow = fmt.Errorf("context window exceeded")
	ErrTimeout         = fmt.Errorf("operation timed out")
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrDuplicate       = fmt.Errorf("duplicate")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Gateway.Invoke")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a transient error that may succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrTimeout)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

// Error codes. Every sentinel error maps to exactly one code.
const (
	CodeUnknown            ErrorCode = "UNKNOWN"
	CodeConfigLoad         ErrorCode = "CONFIG_LOAD"
	CodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	CodeUnknownTool        ErrorCode = "UNKNOWN_TOOL"
	CodeInference          ErrorCode = "INFERENCE_FAILED"
	CodeEmptyInput         ErrorCode = "EMPTY_INPUT"
	CodeToolFailure        ErrorCode = "TOOL_FAILURE"
	CodeMaxIterations      ErrorCode = "MAX_ITERATIONS"
	CodeRateLimit          ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid        ErrorCode = "AUTH_INVALID"
	CodeContextOverflow    ErrorCode = "CONTEXT_OVERFLOW"
	CodeTimeout            ErrorCode = "TIMEOUT"
	CodeInvalidInput       ErrorCode = "INVALID_INPUT"
	CodeDuplicate          ErrorCode = "DUPLICATE"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrConfigLoad:         CodeConfigLoad,
	ErrStorageUnavailable: CodeStorageUnavailable,
	ErrUnknownTool:        CodeUnknownTool,
	ErrInference:          CodeInference,
	ErrEmptyInput:         CodeEmptyInput,
	ErrToolFailure:        CodeToolFailure,
	ErrMaxIterations:      CodeMaxIterations,
	ErrRateLimit:          CodeRateLimit,
	ErrAuthInvalid:        CodeAuthInvalid,
	ErrContextOverflow:    CodeContextOverflow,
	ErrTimeout:            CodeTimeout,
	ErrInvalidInput:       CodeInvalidInput,
	ErrDuplicate:          CodeDuplicate,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	// Fast path: direct sentinel lookup.
	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	// Walk the error chain with errors.Is.
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
