// Package errors provides custom storage error types.
package errors

import (
	"fmt"
)

type (
	StatementPSQLError struct {
		Err error
	}
	ExecutionPSQLError struct {
		Err error
	}
	ScanningPSQLError struct {
		Err error
	}
	ContextTimeoutExceededError struct {
		Err error
	}
	// AlreadyExistsError reports a unique constraint violation, the
	// authoritative duplicate-event guard.
	AlreadyExistsError struct {
		Err error
		ID  string
	}
	NotFoundError struct {
		Err error
	}
	// AlreadyProcessedError reports a transition attempted on an entity that
	// has already left the expected state. Redeliveries resolve to this and
	// must be acknowledged as success without balance mutation.
	AlreadyProcessedError struct {
		ID     string
		Status string
	}
	// NotEnoughFundsError reports a balance reservation that would drive a
	// bucket negative.
	NotEnoughFundsError struct {
		Err error
	}
	// NotEligibleError reports an administrative action on an entity whose
	// current state forbids it.
	NotEligibleError struct {
		ID     string
		Status string
	}
)

func (e *StatementPSQLError) Error() string {
	return fmt.Sprintf("%s: could not compile", e.Err.Error())
}

func (e *ExecutionPSQLError) Error() string {
	return fmt.Sprintf("%s: could not execute", e.Err.Error())
}

func (e *ScanningPSQLError) Error() string {
	return fmt.Sprintf("%s: could not scan", e.Err.Error())
}

func (e *ContextTimeoutExceededError) Error() string {
	return fmt.Sprintf("%s: context timeout exceeded", e.Err.Error())
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s: already exists", e.ID)
}

func (e *NotFoundError) Error() string {
	return "requested entity was not found"
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("%s: already processed, current status %s", e.ID, e.Status)
}

func (e *NotEnoughFundsError) Error() string {
	return "not enough funds are available"
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("%s: not eligible for this action, current status %s", e.ID, e.Status)
}
