package txflow

import (
	"errors"
	"fmt"
)

var (
	ErrBusy             = errors.New("txflow: a transaction is already in flight")
	ErrNotApproved      = errors.New("txflow: approval has not completed")
	ErrAlreadyConfirmed = errors.New("txflow: action already confirmed")
	ErrTimeout          = errors.New("txflow: timed out waiting for transaction")
	ErrClosed           = errors.New("txflow: orchestrator closed")
)

// ValidationError is a pre-flight rejection. Nothing was submitted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid amount: " + e.Reason }

// AllowanceError wraps a failed approval submission.
type AllowanceError struct {
	Err error
}

func (e *AllowanceError) Error() string { return fmt.Sprintf("approval failed: %v", e.Err) }

func (e *AllowanceError) Unwrap() error { return e.Err }

// ConfirmationError wraps a failed deposit or claim submission.
type ConfirmationError struct {
	Err error
}

func (e *ConfirmationError) Error() string { return fmt.Sprintf("confirmation failed: %v", e.Err) }

func (e *ConfirmationError) Unwrap() error { return e.Err }
