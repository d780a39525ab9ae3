// Package processor declares the settlement service contract.
package processor

import (
	"context"

	"github.com/akarpov/ak-go-cashback/internal/models/modeldto"
)

// Processor is the single entry point for every inbound settlement event
// kind: postbacks, status updates, payout webhooks, withdrawal requests and
// admin actions, plus the read paths backing the user API.
type Processor interface {
	AddNewUser(ctx context.Context, credentials modeldto.User) (string, error)
	LoginUser(ctx context.Context, credentials modeldto.User) (string, error)
	GetUserID(accessToken string) (string, error)
	GetBalance(ctx context.Context, userID string) (*modeldto.Balance, error)
	GetTransactions(ctx context.Context, userID string) ([]modeldto.Transaction, error)
	GetWithdrawals(ctx context.Context, userID string) ([]modeldto.Withdrawal, error)
	RegisterClick(ctx context.Context, userID string, newClick modeldto.NewClick) (*modeldto.ClickRedirect, error)
	ProcessPostback(ctx context.Context, postback modeldto.Postback) error
	ProcessStatusUpdate(ctx context.Context, update modeldto.StatusUpdate) error
	ProcessPayoutEvent(ctx context.Context, event modeldto.PayoutEvent) error
	SettleProviderStatus(ctx context.Context, withdrawalID, externalID, providerStatus, failureReason string) (bool, error)
	RequestWithdrawal(ctx context.Context, userID string, request modeldto.NewWithdrawal) (*modeldto.Withdrawal, error)
	ApproveWithdrawal(ctx context.Context, withdrawalID string) (*modeldto.Withdrawal, error)
	FailWithdrawal(ctx context.Context, withdrawalID, reason string) error
	CancelWithdrawal(ctx context.Context, withdrawalID, reason string) error
	CancelTransaction(ctx context.Context, orderID string) error
}
