package utils

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the category of an error
type ErrorCategory int

const (
	CategorySystem ErrorCategory = iota
	CategoryNetwork
	CategoryFileSystem
	CategoryConfiguration
	CategoryValidation
	CategoryExecution
	CategoryUser
)

func (c ErrorCategory) String() string {
	switch c {
	case CategorySystem:
		return "system"
	case CategoryNetwork:
		return "network"
	case CategoryFileSystem:
		return "filesystem"
	case CategoryConfiguration:
		return "configuration"
	case CategoryValidation:
		return "validation"
	case CategoryExecution:
		return "execution"
	case CategoryUser:
		return "user"
	default:
		return "unknown"
	}
}

// StructuredError represents a standardized error with a stable code
type StructuredError struct {
	Code      string
	Message   string
	Category  ErrorCategory
	Operation string
	RootCause error
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	if e.RootCause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.RootCause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for compatibility with errors.Is and errors.As
func (e *StructuredError) Unwrap() error {
	return e.RootCause
}

// NewStructuredError creates a new structured error
func NewStructuredError(code, message string, category ErrorCategory, rootCause error) *StructuredError {
	return &StructuredError{
		Code:      code,
		Message:   message,
		Category:  category,
		RootCause: rootCause,
	}
}

// NewConfigError creates a configuration-related error
func NewConfigError(key string, rootCause error) *StructuredError {
	return NewStructuredError(
		"CFG_ERROR",
		fmt.Sprintf("Configuration error for %s", key),
		CategoryConfiguration,
		rootCause,
	)
}

// NewExecutionError creates an execution error for a pipeline operation
func NewExecutionError(operation string, rootCause error) *StructuredError {
	err := NewStructuredError(
		"EXEC_ERROR",
		fmt.Sprintf("Execution failed during %s", operation),
		CategoryExecution,
		rootCause,
	)
	err.Operation = operation
	return err
}

// WithOperation adds operation context
func (e *StructuredError) WithOperation(operation string) *StructuredError {
	e.Operation = operation
	return e
}

// CodeOf returns the code of the first StructuredError in err's chain.
func CodeOf(err error) string {
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
