// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors provides the typed error used across Atlas.
//
// Every failure surfaced by the registry, pipeline, memory store, state
// manager and runtime is an *AtlasError carrying a flat ErrorCode, so callers
// can branch on the kind of failure while the original cause stays reachable
// through errors.Is and errors.As.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies Atlas errors.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidConfig indicates an agent or component configuration was rejected.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// CodeInvalidRequest indicates the request parameters were malformed.
	CodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	// CodeToolNotFound indicates no tool is registered under the requested name.
	CodeToolNotFound ErrorCode = "TOOL_NOT_FOUND"

	// CodeToolExecutionFailed indicates the tool body returned an error.
	CodeToolExecutionFailed ErrorCode = "TOOL_EXECUTION_FAILED"

	// CodeResourceNotFound indicates no resource is registered under the requested name.
	CodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"

	// CodeResourceAccessFailed indicates the resource body returned an error.
	CodeResourceAccessFailed ErrorCode = "RESOURCE_ACCESS_FAILED"

	// CodeStateError indicates an agent state operation failed.
	CodeStateError ErrorCode = "STATE_ERROR"

	// CodeTaskError indicates a task bookkeeping violation.
	CodeTaskError ErrorCode = "TASK_ERROR"

	// CodeMemoryError indicates a memory store or persistence failure.
	CodeMemoryError ErrorCode = "MEMORY_ERROR"

	// CodeUnauthorized indicates a policy rejected the call.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// CodeRateLimit indicates rate limiting was triggered.
	CodeRateLimit ErrorCode = "RATE_LIMITED"
)

// AtlasError is a typed error with context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type AtlasError struct {
	Code       ErrorCode
	Message    string
	Err        error
	Context    map[string]interface{}
	StatusCode int // For transport responses
}

// Error implements the error interface.
func (e *AtlasError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *AtlasError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *AtlasError) MarshalJSON() ([]byte, error) {
	out := struct {
		Code       string                 `json:"code"`
		Message    string                 `json:"message"`
		Cause      string                 `json:"cause,omitempty"`
		Context    map[string]interface{} `json:"context,omitempty"`
		StatusCode int                    `json:"status_code"`
	}{
		Code:       string(e.Code),
		Message:    e.Message,
		Context:    e.Context,
		StatusCode: e.StatusCode,
	}
	if e.Err != nil {
		out.Cause = e.Err.Error()
	}
	return json.Marshal(out)
}

// New creates a new AtlasError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *AtlasError {
	return &AtlasError{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		StatusCode: codeToStatusCode(code),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *AtlasError) WithContext(key string, value interface{}) *AtlasError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// AsAtlasError returns the first *AtlasError in err's chain. Errors of any
// other type are wrapped as CodeInternal.
func AsAtlasError(err error) *AtlasError {
	if err == nil {
		return nil
	}
	var ae *AtlasError
	if stderrors.As(err, &ae) {
		return ae
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf reports the code of the first *AtlasError in err's chain, or
// CodeInternal when there is none. A nil error has no code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var ae *AtlasError
	if stderrors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// HasCode reports whether err's outermost AtlasError carries code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// InvalidConfig reports a rejected configuration.
func InvalidConfig(msg string) *AtlasError {
	return New(CodeInvalidConfig, msg, nil)
}

// InvalidRequest reports malformed request parameters.
func InvalidRequest(msg string, cause error) *AtlasError {
	return New(CodeInvalidRequest, msg, cause)
}

// ToolNotFound reports that name is not registered.
func ToolNotFound(name string) *AtlasError {
	return New(CodeToolNotFound, "tool not found: "+name, nil).WithContext("tool", name)
}

// ToolExecutionFailed wraps an error returned by the body of tool name.
func ToolExecutionFailed(name string, cause error) *AtlasError {
	return New(CodeToolExecutionFailed, "tool execution failed: "+name, cause).WithContext("tool", name)
}

// ResourceNotFound reports that resource name is not registered.
func ResourceNotFound(name string) *AtlasError {
	return New(CodeResourceNotFound, "resource not found: "+name, nil).WithContext("resource", name)
}

// ResourceAccessFailed wraps an error returned by the body of resource name.
func ResourceAccessFailed(name string, cause error) *AtlasError {
	return New(CodeResourceAccessFailed, "resource access failed: "+name, cause).WithContext("resource", name)
}

// StateError reports an agent state failure.
func StateError(msg string, cause error) *AtlasError {
	return New(CodeStateError, msg, cause)
}

// TaskError reports a task bookkeeping violation.
func TaskError(msg string) *AtlasError {
	return New(CodeTaskError, msg, nil)
}

// MemoryError reports a memory store failure.
func MemoryError(msg string, cause error) *AtlasError {
	return New(CodeMemoryError, msg, cause)
}

// codeToStatusCode maps error codes to HTTP status codes.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeToolNotFound, CodeResourceNotFound:
		return 404 // NOT_FOUND
	case CodeInvalidRequest, CodeInvalidConfig:
		return 400 // INVALID_ARGUMENT
	case CodeUnauthorized:
		return 403 // PERMISSION_DENIED
	case CodeRateLimit:
		return 429 // RESOURCE_EXHAUSTED
	default:
		return 500 // INTERNAL
	}
}
