// Package apperrors defines the error taxonomy used across the orchestration core.
// Every failure mode is modeled as a typed AppError rather than an ad-hoc wrapped
// error, so components upstream (Engine, WorkflowRuntime) can branch on Code
// without string matching.
package apperrors

import (
	"errors"
	"fmt"
)

// Code identifies a failure category from the orchestration core's taxonomy.
type Code string

const (
	CodeInputError            Code = "INPUT_ERROR"
	CodeCatalogUnavailable    Code = "CATALOG_UNAVAILABLE"
	CodeRouterMalformedOutput Code = "ROUTER_MALFORMED_OUTPUT"
	CodeRouterInvalidChoice   Code = "ROUTER_INVALID_CHOICE"
	CodeLowConfidence         Code = "LOW_CONFIDENCE"
	CodeAgentTimeout          Code = "AGENT_TIMEOUT"
	CodeAgentFailure          Code = "AGENT_FAILURE"
	CodeWorkflowError         Code = "WORKFLOW_ERROR"
	CodeStateViolation        Code = "STATE_VIOLATION"
	CodeCancellationRequested Code = "CANCELLATION_REQUESTED"
)

// AppError is the orchestration core's application-level error type.
type AppError struct {
	Code    Code
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func InputError(message string) *AppError {
	return &AppError{Code: CodeInputError, Message: message}
}

func CatalogUnavailable(message string) *AppError {
	return &AppError{Code: CodeCatalogUnavailable, Message: message}
}

func RouterMalformedOutput(err error) *AppError {
	return &AppError{Code: CodeRouterMalformedOutput, Message: "router produced malformed output", Err: err}
}

func RouterInvalidChoice(message string) *AppError {
	return &AppError{Code: CodeRouterInvalidChoice, Message: message}
}

func LowConfidence(confidence float64) *AppError {
	return &AppError{Code: CodeLowConfidence, Message: fmt.Sprintf("confidence %.2f below threshold", confidence)}
}

func AgentTimeout(agentID string, timeoutMs int64) *AppError {
	return &AppError{Code: CodeAgentTimeout, Message: fmt.Sprintf("agent %q execution timed out after %dms", agentID, timeoutMs)}
}

func AgentFailure(agentID string, err error) *AppError {
	return &AppError{Code: CodeAgentFailure, Message: fmt.Sprintf("agent %q failed", agentID), Err: err}
}

func WorkflowError(message string, err error) *AppError {
	return &AppError{Code: CodeWorkflowError, Message: message, Err: err}
}

func StateViolation(message string) *AppError {
	return &AppError{Code: CodeStateViolation, Message: message}
}

func CancellationRequested() *AppError {
	return &AppError{Code: CodeCancellationRequested, Message: "request canceled"}
}

// Wrap preserves an existing AppError's code, or wraps a plain error as a
// WorkflowError.
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{Code: appErr.Code, Message: fmt.Sprintf("%s: %s", message, appErr.Message), Err: err}
	}
	return &AppError{Code: CodeWorkflowError, Message: message, Err: err}
}

// CodeOf returns the Code of err, or CodeWorkflowError if err is not an AppError.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeWorkflowError
}

// Is reports whether err is an AppError with the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
