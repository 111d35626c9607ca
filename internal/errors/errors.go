// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrStockNotFound    = errors.New("stock not found")
	ErrNoEvents         = errors.New("no news events available")
	ErrNoPriceData      = errors.New("no price data available")
	ErrDataNotFound     = errors.New("data not found")
	ErrDatabaseError    = errors.New("database error")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrDuplicateEvent   = errors.New("duplicate news event")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrCredentialAccess = errors.New("credential access denied")
	ErrRateLimited      = errors.New("rate limited")
	ErrConnectionFailed = errors.New("connection failed")
	ErrTimeout          = errors.New("operation timed out")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrInputValidation  = errors.New("input validation failed")
)

// StageError represents a recoverable failure inside one pipeline stage.
// The orchestrator records it and continues with the remaining stages.
type StageError struct {
	Stage  string
	Ticker string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage error [%s] %s: %v", e.Stage, e.Ticker, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError creates a new StageError.
func NewStageError(stage, ticker string, err error) *StageError {
	return &StageError{
		Stage:  stage,
		Ticker: ticker,
		Err:    err,
	}
}

// StoreError represents an error from the persistence layer.
type StoreError struct {
	Operation string
	Entity    string
	Err       error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store error [%s] %s: %v", e.Operation, e.Entity, e.Err)
	}
	return fmt.Sprintf("store error [%s] %s", e.Operation, e.Entity)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(operation, entity string, err error) *StoreError {
	return &StoreError{
		Operation: operation,
		Entity:    entity,
		Err:       err,
	}
}

// FetchError represents an error from an external data source.
type FetchError struct {
	Source string
	Symbol string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch error [%s] %s: %v", e.Source, e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError.
func NewFetchError(source, symbol string, err error) *FetchError {
	return &FetchError{
		Source: source,
		Symbol: symbol,
		Err:    err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// SecurityError represents a security-related error.
type SecurityError struct {
	Operation string
	Reason    string
	Err       error
}

func (e *SecurityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("security error [%s]: %s: %v", e.Operation, e.Reason, e.Err)
	}
	return fmt.Sprintf("security error [%s]: %s", e.Operation, e.Reason)
}

func (e *SecurityError) Unwrap() error {
	return e.Err
}

// NewSecurityError creates a new SecurityError.
func NewSecurityError(operation, reason string, err error) *SecurityError {
	return &SecurityError{
		Operation: operation,
		Reason:    reason,
		Err:       err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
