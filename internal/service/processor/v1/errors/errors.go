// Package errors provides custom service error types.
package errors

import "fmt"

type (
	ServiceFoundNilArgument struct {
		Msg string
	}
	// ServiceUnknownClick reports a postback referencing an untracked or
	// anonymous click. Acknowledged to the sender, never retried.
	ServiceUnknownClick struct {
		ClickID string
	}
	// ServiceDuplicateEvent reports a redelivered external event.
	// Acknowledged as success without re-applying any balance mutation.
	ServiceDuplicateEvent struct {
		Key string
	}
	ServiceNotEnoughFunds struct {
		Msg string
	}
	ServiceBelowMinimumAmount struct {
		Minimum float64
	}
	ServiceIllegalPaymentDetails struct {
		Msg string
	}
	// ServiceEventIgnored reports a benign unprocessable event (unknown
	// entity, unsupported status) that the sender must not retry.
	ServiceEventIgnored struct {
		Msg string
	}
	// ServiceNotEligible reports an admin action on an entity whose state
	// forbids it, in contrast to the silent duplicate-event no-op.
	ServiceNotEligible struct {
		Msg string
	}
	// ServicePayoutGatewayError reports a failed payout provider call. The
	// affected withdrawal is left unchanged and the action may be retried.
	ServicePayoutGatewayError struct {
		Err error
	}
)

func (e *ServiceFoundNilArgument) Error() string {
	return e.Msg
}

func (e *ServiceUnknownClick) Error() string {
	return fmt.Sprintf("click %s is unknown or anonymous", e.ClickID)
}

func (e *ServiceDuplicateEvent) Error() string {
	return fmt.Sprintf("duplicate event %s", e.Key)
}

func (e *ServiceNotEnoughFunds) Error() string {
	return e.Msg
}

func (e *ServiceBelowMinimumAmount) Error() string {
	return fmt.Sprintf("minimum withdrawal amount is %.2f", e.Minimum)
}

func (e *ServiceIllegalPaymentDetails) Error() string {
	return e.Msg
}

func (e *ServiceEventIgnored) Error() string {
	return e.Msg
}

func (e *ServiceNotEligible) Error() string {
	return e.Msg
}

func (e *ServicePayoutGatewayError) Error() string {
	return fmt.Sprintf("%s: payout provider call failed", e.Err.Error())
}
