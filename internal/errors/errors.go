// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrDataUnavailable = errors.New("market data unavailable")
	ErrQuorumNotMet    = errors.New("opinion quorum not met")
	ErrHoldDecision    = errors.New("hold decision, no order")
	ErrRiskRejected    = errors.New("risk control rejected")
	ErrPersistFailure  = errors.New("order persistence failed")
	ErrCycleInFlight   = errors.New("cycle already in flight for symbol")
	ErrConfigInvalid   = errors.New("invalid configuration")
	ErrSymbolNotFound  = errors.New("symbol not found")
	ErrTimeout         = errors.New("operation timed out")
)

// DataError represents a market/news data error.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrDataUnavailable
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// AgentError represents a failed analyst unit invocation. It is carried as
// data on the Opinion, never thrown across component boundaries.
type AgentError struct {
	UnitID    string
	Team      string
	Operation string
	Err       error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent error [%s/%s] %s: %v", e.Team, e.UnitID, e.Operation, e.Err)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// NewAgentError creates a new AgentError.
func NewAgentError(unitID, team, operation string, err error) *AgentError {
	return &AgentError{
		UnitID:    unitID,
		Team:      team,
		Operation: operation,
		Err:       err,
	}
}

// RiskError represents a hard risk-check violation.
type RiskError struct {
	Check   string
	Current float64
	Limit   float64
	Message string
}

func (e *RiskError) Error() string {
	return fmt.Sprintf("risk violation [%s]: %s (current: %.2f, limit: %.2f)", e.Check, e.Message, e.Current, e.Limit)
}

func (e *RiskError) Unwrap() error {
	return ErrRiskRejected
}

// NewRiskError creates a new RiskError.
func NewRiskError(check string, current, limit float64, message string) *RiskError {
	return &RiskError{
		Check:   check,
		Current: current,
		Limit:   limit,
		Message: message,
	}
}

// PersistError represents an exhausted order persistence attempt. It is fatal
// for the cycle and must reach the operator channel.
type PersistError struct {
	IdempotencyKey string
	Attempts       int
	Err            error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist error [%s] after %d attempts: %v", e.IdempotencyKey, e.Attempts, e.Err)
}

func (e *PersistError) Unwrap() error {
	return ErrPersistFailure
}

// NewPersistError creates a new PersistError.
func NewPersistError(key string, attempts int, err error) *PersistError {
	return &PersistError{
		IdempotencyKey: key,
		Attempts:       attempts,
		Err:            err,
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
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
