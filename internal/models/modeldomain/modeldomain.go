// Package modeldomain provides domain-level constants for entity lifecycles.
package modeldomain

// Transaction statuses. A transaction starts as pending and ends in exactly
// one of the terminal statuses.
const (
	TransactionPending   = "pending"
	TransactionConfirmed = "confirmed"
	TransactionRejected  = "rejected"
	TransactionCancelled = "cancelled"
)

// Withdrawal statuses.
const (
	WithdrawalPending    = "pending"
	WithdrawalProcessing = "processing"
	WithdrawalCompleted  = "completed"
	WithdrawalCancelled  = "cancelled"
	WithdrawalFailed     = "failed"
)

// Payment methods accepted for withdrawal requests.
const (
	MethodBankTransfer = "bank_transfer"
	MethodPayPal       = "paypal"
	MethodCard         = "card"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Payout provider webhook event types.
const (
	PayoutEventProcessed = "payout.processed"
	PayoutEventFailed    = "payout.failed"
	PayoutEventReversed  = "payout.reversed"
)

// TransactionIsTerminal reports whether no further transitions are permitted
// for a transaction in the given status.
func TransactionIsTerminal(status string) bool {
	return status == TransactionConfirmed || status == TransactionRejected || status == TransactionCancelled
}

// WithdrawalIsTerminal reports whether no further transitions are permitted
// for a withdrawal in the given status.
func WithdrawalIsTerminal(status string) bool {
	return status == WithdrawalCompleted || status == WithdrawalCancelled || status == WithdrawalFailed
}

// ValidPaymentMethod reports whether the payment method is supported.
func ValidPaymentMethod(method string) bool {
	return method == MethodBankTransfer || method == MethodPayPal || method == MethodCard
}
