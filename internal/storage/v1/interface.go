// Package storage declares the ledger store contract.
package storage

import (
	"context"

	"github.com/akarpov/ak-go-cashback/internal/models/modeldto"
	"github.com/akarpov/ak-go-cashback/internal/models/modelstorage"
)

// Register provides user registration and authentication checks.
type Register interface {
	AddNewUser(ctx context.Context, credentials modeldto.User, userID, role string) error
	CheckUser(ctx context.Context, credentials modeldto.User) (userID, role string, err error)
}

// ClickKeeper records outbound clicks and resolves them on postback arrival.
type ClickKeeper interface {
	RegisterClick(ctx context.Context, clickID, userID string, retailerID, offerID int64) (redirectURL string, err error)
	GetClick(ctx context.Context, clickID string) (*modelstorage.ClickStorageEntry, error)
}

// TransactionLedger governs sale records and their balance effects. Every
// method mutating a balance commits the entity change and the balance delta
// as one atomic unit.
type TransactionLedger interface {
	AddNewTransaction(ctx context.Context, entry modelstorage.TransactionStorageEntry) error
	SettleTransaction(ctx context.Context, orderID, newStatus string) error
	GetTransactions(ctx context.Context, userID string) ([]modelstorage.TransactionStorageEntry, error)
}

// WithdrawalLedger governs payout requests and their balance effects.
type WithdrawalLedger interface {
	AddNewWithdrawal(ctx context.Context, entry modelstorage.WithdrawalStorageEntry) error
	GetWithdrawal(ctx context.Context, withdrawalID string) (*modelstorage.WithdrawalStorageEntry, error)
	GetWithdrawals(ctx context.Context, userID string) ([]modelstorage.WithdrawalStorageEntry, error)
	SetWithdrawalProcessing(ctx context.Context, withdrawalID, externalID string) error
	CompleteWithdrawal(ctx context.Context, withdrawalID, externalID string) error
	FailWithdrawal(ctx context.Context, withdrawalID, newStatus, reason string, fromStatuses []string) error
	GetProcessingWithdrawals(ctx context.Context) ([]modelstorage.WithdrawalStorageEntry, error)
}

// BalanceKeeper exposes the two-bucket user balance.
type BalanceKeeper interface {
	GetBalance(ctx context.Context, userID string) (*modeldto.Balance, error)
}

// Storage is the full ledger store contract.
type Storage interface {
	Register
	ClickKeeper
	TransactionLedger
	WithdrawalLedger
	BalanceKeeper
}
