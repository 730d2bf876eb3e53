package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOrganization    = errors.New("invalid_organization")
	ErrInvalidClientID        = errors.New("invalid_client_id")
	ErrInvalidInvoiceID       = errors.New("invalid_invoice_id")
	ErrInvalidPromiseID       = errors.New("invalid_promise_id")
	ErrInvalidAmount          = errors.New("invalid_amount")
	ErrInvalidPromisedDate    = errors.New("invalid_promised_date")
	ErrInvalidActionType      = errors.New("invalid_action_type")
	ErrInvalidDescription     = errors.New("invalid_description")
	ErrInvalidPriority        = errors.New("invalid_priority")
	ErrInvalidPromiseState    = errors.New("invalid_promise_state")
	ErrInvalidDateRange       = errors.New("invalid_date_range")
	ErrPromiseNotFound        = errors.New("promise_not_found")
	ErrPromiseAlreadyResolved = errors.New("promise_already_resolved")
	ErrPromiseResolutionBusy  = errors.New("promise_resolution_in_progress")

	// ErrLedgerUnavailable matches any *LedgerError.
	ErrLedgerUnavailable = errors.New("ledger_unavailable")
)

// LedgerError marks a failed read or write against an external
// collaborator. It keeps the cause reachable through errors.Unwrap so
// callers can tell "could not fetch" apart from "no data".
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

func (e *LedgerError) Is(target error) bool {
	return target == ErrLedgerUnavailable
}

func NewLedgerError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &LedgerError{Op: op, Err: err}
}
