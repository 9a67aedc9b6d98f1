// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with rich context for Orchestra.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies Orchestra errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeConfig indicates invalid configuration. Fatal before any round starts.
	CodeConfig ErrorCode = "CONFIG_ERROR"

	// CodeBudgetExceeded indicates a budget ceiling was breached. This is an
	// expected terminal signal for the run, not a bug.
	CodeBudgetExceeded ErrorCode = "BUDGET_EXCEEDED"

	// CodeAgentFailure indicates a single agent's turn failed.
	CodeAgentFailure ErrorCode = "AGENT_FAILURE"

	// CodePersistence indicates the turn log or score store could not durably write.
	CodePersistence ErrorCode = "PERSISTENCE_ERROR"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeLLMError indicates an LLM provider error.
	CodeLLMError ErrorCode = "LLM_ERROR"

	// CodeContextLost indicates the context was cancelled mid-operation.
	CodeContextLost ErrorCode = "CONTEXT_LOST"
)

// OrchestraError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type OrchestraError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Attributes  map[string]string
	Recoverable bool
}

// Error implements the error interface.
func (e *OrchestraError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *OrchestraError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *OrchestraError) MarshalJSON() ([]byte, error) {
	type Alias OrchestraError
	return json.Marshal(&struct {
		Message     string `json:"message"`
		Code        string `json:"code"`
		Err         string `json:"error,omitempty"`
		Recoverable bool   `json:"recoverable"`
		*Alias
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Err:         fmt.Sprintf("%v", e.Err),
		Recoverable: e.Recoverable,
		Alias:       (*Alias)(e),
	})
}

// New creates a new OrchestraError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *OrchestraError {
	return &OrchestraError{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		Attributes: make(map[string]string),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *OrchestraError) WithContext(key string, value interface{}) *OrchestraError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
// Returns the error for method chaining.
func (e *OrchestraError) WithAttribute(key, value string) *OrchestraError {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *OrchestraError) WithRecoverable(recoverable bool) *OrchestraError {
	e.Recoverable = recoverable
	return e
}

// AsOrchestraError attempts to convert an error to an OrchestraError.
// Returns the error as OrchestraError if it is one, or wraps it otherwise.
func AsOrchestraError(err error) *OrchestraError {
	if err == nil {
		return nil
	}
	if oe, ok := err.(*OrchestraError); ok {
		return oe
	}
	return New(CodeInternal, "wrapped error", err)
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		if oe, ok := err.(*OrchestraError); ok && oe.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *OrchestraError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}
