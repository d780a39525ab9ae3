// Package processor provides the settlement service coordinating external
// events, state machine transitions and atomic ledger commits.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ShiraazMoollatjie/goluhn"
	"github.com/akarpov/ak-go-cashback/internal/api/rest/client"
	"github.com/akarpov/ak-go-cashback/internal/config"
	"github.com/akarpov/ak-go-cashback/internal/metrics"
	"github.com/akarpov/ak-go-cashback/internal/models/modeldomain"
	"github.com/akarpov/ak-go-cashback/internal/models/modeldto"
	"github.com/akarpov/ak-go-cashback/internal/models/modelqueue"
	"github.com/akarpov/ak-go-cashback/internal/models/modelstorage"
	"github.com/akarpov/ak-go-cashback/internal/service/cashback"
	"github.com/akarpov/ak-go-cashback/internal/service/guard/v1"
	serviceErrors "github.com/akarpov/ak-go-cashback/internal/service/processor/v1/errors"
	"github.com/akarpov/ak-go-cashback/internal/service/secretary/v1"
	"github.com/akarpov/ak-go-cashback/internal/storage/v1"
	storageErrors "github.com/akarpov/ak-go-cashback/internal/storage/v1/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Processor defines attributes of a struct available to its methods.
type Processor struct {
	storage     storage.Storage
	secretary   secretary.Secretary
	guard       guard.Guard
	gateway     client.PayoutGateway
	policy      *cashback.Policy
	cashbackCfg *config.CashbackConfig
	payoutQueue chan modelqueue.PayoutQueueEntry
	log         *zerolog.Logger
}

// InitService initializes the settlement service.
func InitService(st storage.Storage, sec secretary.Secretary, grd guard.Guard, gateway client.PayoutGateway,
	policy *cashback.Policy, cashbackCfg *config.CashbackConfig, payoutQueue chan modelqueue.PayoutQueueEntry,
	log *zerolog.Logger) (*Processor, error) {
	if st == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil storage was passed to service initializer"}
	}
	if sec == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil secretary was passed to service initializer"}
	}
	if grd == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil guard was passed to service initializer"}
	}
	if gateway == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil payout gateway was passed to service initializer"}
	}
	return &Processor{
		storage:     st,
		secretary:   sec,
		guard:       grd,
		gateway:     gateway,
		policy:      policy,
		cashbackCfg: cashbackCfg,
		payoutQueue: payoutQueue,
		log:         log,
	}, nil
}

// GetUserID retrieves a user identifier from an access token.
func (proc *Processor) GetUserID(accessToken string) (string, error) {
	userID, _, err := proc.secretary.ValidateToken(accessToken)
	return userID, err
}

// AddNewUser processes user register requests.
func (proc *Processor) AddNewUser(ctx context.Context, credentials modeldto.User) (string, error) {
	accessToken, userID, err := proc.secretary.NewToken(modeldomain.RoleUser)
	if err != nil {
		return "", err
	}
	cipheredCredentials := modeldto.User{
		Login:    proc.secretary.Encode(credentials.Login),
		Password: proc.secretary.Encode(credentials.Password),
	}
	err = proc.storage.AddNewUser(ctx, cipheredCredentials, userID, modeldomain.RoleUser)
	if err != nil {
		return "", err
	}
	return accessToken, nil
}

// LoginUser processes user login requests.
func (proc *Processor) LoginUser(ctx context.Context, credentials modeldto.User) (string, error) {
	cipheredCredentials := modeldto.User{
		Login:    proc.secretary.Encode(credentials.Login),
		Password: proc.secretary.Encode(credentials.Password),
	}
	userID, role, err := proc.storage.CheckUser(ctx, cipheredCredentials)
	if err != nil {
		return "", err
	}
	return proc.secretary.GetTokenForUser(userID, role)
}

// GetBalance processes balance query requests.
func (proc *Processor) GetBalance(ctx context.Context, userID string) (*modeldto.Balance, error) {
	return proc.storage.GetBalance(ctx, userID)
}

// GetTransactions processes transaction listing requests.
func (proc *Processor) GetTransactions(ctx context.Context, userID string) ([]modeldto.Transaction, error) {
	entries, err := proc.storage.GetTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	var transactions []modeldto.Transaction
	for _, entry := range entries {
		transactions = append(transactions, modeldto.Transaction{
			OrderID:        entry.OrderID,
			RetailerName:   entry.RetailerName,
			SaleAmount:     entry.SaleAmount,
			CashbackAmount: entry.CashbackAmount,
			Status:         entry.Status,
			CreatedAt:      entry.CreatedAt,
		})
	}
	return transactions, nil
}

// GetWithdrawals processes withdrawal listing requests.
func (proc *Processor) GetWithdrawals(ctx context.Context, userID string) ([]modeldto.Withdrawal, error) {
	entries, err := proc.storage.GetWithdrawals(ctx, userID)
	if err != nil {
		return nil, err
	}
	var withdrawals []modeldto.Withdrawal
	for _, entry := range entries {
		withdrawals = append(withdrawals, modeldto.Withdrawal{
			ID:                    entry.WithdrawalID,
			Amount:                entry.Amount,
			PaymentMethod:         entry.PaymentMethod,
			Status:                entry.Status,
			ExternalTransactionID: entry.ExternalTransactionID.String,
			Reason:                entry.Reason.String,
			RequestedAt:           entry.RequestedAt,
		})
	}
	return withdrawals, nil
}

// RegisterClick stores an outbound click and builds the redirect URL with the
// click identifier appended as the affiliate sub-id.
func (proc *Processor) RegisterClick(ctx context.Context, userID string, newClick modeldto.NewClick) (*modeldto.ClickRedirect, error) {
	clickID := uuid.New().String()
	redirectURL, err := proc.storage.RegisterClick(ctx, clickID, userID, newClick.RetailerID, newClick.OfferID)
	if err != nil {
		return nil, err
	}
	parsedURL, err := url.Parse(redirectURL)
	if err != nil {
		return nil, err
	}
	query := parsedURL.Query()
	query.Set("subId", clickID)
	parsedURL.RawQuery = query.Encode()
	return &modeldto.ClickRedirect{ClickID: clickID, RedirectURL: parsedURL.String()}, nil
}

// ProcessPostback ingests an affiliate sale notification: it resolves the
// originating click, fixes the cashback amount and commits the pending
// transaction together with its balance increment as one atomic unit.
func (proc *Processor) ProcessPostback(ctx context.Context, postback modeldto.Postback) error {
	eventKey := "postback:" + postback.OrderID
	if !proc.guard.Admit(ctx, eventKey) {
		metrics.SettlementEvents.WithLabelValues("postback", metrics.OutcomeDuplicate).Inc()
		return &serviceErrors.ServiceDuplicateEvent{Key: postback.OrderID}
	}
	clickEntry, err := proc.storage.GetClick(ctx, postback.ClickID)
	if err != nil {
		proc.guard.Forget(ctx, eventKey)
		var notFoundError *storageErrors.NotFoundError
		if errors.As(err, &notFoundError) {
			metrics.SettlementEvents.WithLabelValues("postback", metrics.OutcomeIgnored).Inc()
			proc.log.Warn().Msg(fmt.Sprintf("postback received for untracked click %s", postback.ClickID))
			return &serviceErrors.ServiceUnknownClick{ClickID: postback.ClickID}
		}
		metrics.SettlementEvents.WithLabelValues("postback", metrics.OutcomeError).Inc()
		return err
	}
	if !clickEntry.UserID.Valid {
		proc.guard.Forget(ctx, eventKey)
		metrics.SettlementEvents.WithLabelValues("postback", metrics.OutcomeIgnored).Inc()
		proc.log.Warn().Msg(fmt.Sprintf("postback received for anonymous click %s", postback.ClickID))
		return &serviceErrors.ServiceUnknownClick{ClickID: postback.ClickID}
	}
	var retailerShare, offerShare *float64
	if clickEntry.RetailerShare.Valid {
		retailerShare = &clickEntry.RetailerShare.Float64
	}
	if clickEntry.OfferShare.Valid {
		offerShare = &clickEntry.OfferShare.Float64
	}
	// the cashback amount is fixed here once, it is never recomputed later
	cashbackAmount := proc.policy.Compute(postback.Commission, retailerShare, offerShare)
	entry := modelstorage.TransactionStorageEntry{
		UserID:         clickEntry.UserID.String,
		RetailerID:     clickEntry.RetailerID,
		ClickID:        postback.ClickID,
		OrderID:        postback.OrderID,
		SaleAmount:     postback.SaleAmount,
		Commission:     postback.Commission,
		CashbackAmount: cashbackAmount,
	}
	err = proc.storage.AddNewTransaction(ctx, entry)
	if err != nil {
		var alreadyExistsError *storageErrors.AlreadyExistsError
		if errors.As(err, &alreadyExistsError) {
			metrics.SettlementEvents.WithLabelValues("postback", metrics.OutcomeDuplicate).Inc()
			proc.log.Warn().Msg(fmt.Sprintf("duplicate postback for order %s", postback.OrderID))
			return &serviceErrors.ServiceDuplicateEvent{Key: postback.OrderID}
		}
		proc.guard.Forget(ctx, eventKey)
		metrics.SettlementEvents.WithLabelValues("postback", metrics.OutcomeError).Inc()
		return err
	}
	metrics.SettlementEvents.WithLabelValues("postback", metrics.OutcomeProcessed).Inc()
	return nil
}

// ProcessStatusUpdate settles a pending transaction on an affiliate
// confirmed/rejected event. Redeliveries and events for settled transactions
// resolve to acknowledged no-ops.
func (proc *Processor) ProcessStatusUpdate(ctx context.Context, update modeldto.StatusUpdate) error {
	var newStatus string
	switch update.Status {
	case "confirmed":
		newStatus = modeldomain.TransactionConfirmed
	case "rejected":
		newStatus = modeldomain.TransactionRejected
	default:
		metrics.SettlementEvents.WithLabelValues("status", metrics.OutcomeIgnored).Inc()
		return &serviceErrors.ServiceEventIgnored{Msg: fmt.Sprintf("status %s is not supported", update.Status)}
	}
	eventKey := "status:" + update.OrderID + ":" + update.Status
	if !proc.guard.Admit(ctx, eventKey) {
		metrics.SettlementEvents.WithLabelValues("status", metrics.OutcomeDuplicate).Inc()
		return &serviceErrors.ServiceDuplicateEvent{Key: eventKey}
	}
	err := proc.storage.SettleTransaction(ctx, update.OrderID, newStatus)
	if err != nil {
		var notFoundError *storageErrors.NotFoundError
		var alreadyProcessedError *storageErrors.AlreadyProcessedError
		if errors.As(err, &notFoundError) {
			proc.guard.Forget(ctx, eventKey)
			metrics.SettlementEvents.WithLabelValues("status", metrics.OutcomeIgnored).Inc()
			proc.log.Warn().Msg(fmt.Sprintf("status update for unknown order %s", update.OrderID))
			return &serviceErrors.ServiceEventIgnored{Msg: fmt.Sprintf("order %s is unknown", update.OrderID)}
		}
		if errors.As(err, &alreadyProcessedError) {
			metrics.SettlementEvents.WithLabelValues("status", metrics.OutcomeDuplicate).Inc()
			return &serviceErrors.ServiceDuplicateEvent{Key: eventKey}
		}
		proc.guard.Forget(ctx, eventKey)
		metrics.SettlementEvents.WithLabelValues("status", metrics.OutcomeError).Inc()
		return err
	}
	metrics.SettlementEvents.WithLabelValues("status", metrics.OutcomeProcessed).Inc()
	return nil
}

// RequestWithdrawal validates a payout request and atomically reserves the
// requested amount from the user's available balance.
func (proc *Processor) RequestWithdrawal(ctx context.Context, userID string, request modeldto.NewWithdrawal) (*modeldto.Withdrawal, error) {
	if request.Amount < proc.cashbackCfg.MinWithdrawal {
		return nil, &serviceErrors.ServiceBelowMinimumAmount{Minimum: proc.cashbackCfg.MinWithdrawal}
	}
	if err := validatePaymentDetails(request.PaymentMethod, request.PaymentDetails); err != nil {
		return nil, err
	}
	detailsBytes, err := json.Marshal(request.PaymentDetails)
	if err != nil {
		return nil, err
	}
	withdrawalID := uuid.New().String()
	entry := modelstorage.WithdrawalStorageEntry{
		WithdrawalID:   withdrawalID,
		UserID:         userID,
		Amount:         request.Amount,
		PaymentMethod:  request.PaymentMethod,
		PaymentDetails: string(detailsBytes),
	}
	err = proc.storage.AddNewWithdrawal(ctx, entry)
	if err != nil {
		var notEnoughFundsError *storageErrors.NotEnoughFundsError
		if errors.As(err, &notEnoughFundsError) {
			metrics.SettlementEvents.WithLabelValues("withdrawal", metrics.OutcomeRejected).Inc()
			return nil, &serviceErrors.ServiceNotEnoughFunds{Msg: "insufficient available balance"}
		}
		metrics.SettlementEvents.WithLabelValues("withdrawal", metrics.OutcomeError).Inc()
		return nil, err
	}
	metrics.SettlementEvents.WithLabelValues("withdrawal", metrics.OutcomeProcessed).Inc()
	return &modeldto.Withdrawal{
		ID:            withdrawalID,
		Amount:        request.Amount,
		PaymentMethod: request.PaymentMethod,
		Status:        modeldomain.WithdrawalPending,
	}, nil
}

// ApproveWithdrawal moves a pending withdrawal to processing: the payout is
// created at the provider outside of any DB transaction, then the external
// identifier is stored in a follow-up conditional commit. A gateway failure
// leaves the withdrawal pending with its funds still reserved.
func (proc *Processor) ApproveWithdrawal(ctx context.Context, withdrawalID string) (*modeldto.Withdrawal, error) {
	entry, err := proc.storage.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if entry.Status != modeldomain.WithdrawalPending {
		return nil, &serviceErrors.ServiceNotEligible{Msg: fmt.Sprintf("withdrawal %s is %s, not pending", withdrawalID, entry.Status)}
	}
	var details modeldto.PaymentDetails
	if err = json.Unmarshal([]byte(entry.PaymentDetails), &details); err != nil {
		return nil, err
	}
	externalID, err := proc.gateway.CreatePayout(ctx, withdrawalID, entry.Amount, entry.PaymentMethod, details)
	if err != nil {
		metrics.SettlementEvents.WithLabelValues("admin", metrics.OutcomeError).Inc()
		return nil, &serviceErrors.ServicePayoutGatewayError{Err: err}
	}
	err = proc.storage.SetWithdrawalProcessing(ctx, withdrawalID, externalID)
	if err != nil {
		var alreadyProcessedError *storageErrors.AlreadyProcessedError
		var notEligibleError *storageErrors.NotEligibleError
		if errors.As(err, &alreadyProcessedError) || errors.As(err, &notEligibleError) {
			// a concurrent transition raced the approval after the payout was
			// created, the webhook for the orphaned payout will be ignored
			proc.log.Error().Err(err).Msg(fmt.Sprintf("withdrawal %s changed state during approval, payout %s orphaned", withdrawalID, externalID))
			return nil, &serviceErrors.ServiceNotEligible{Msg: err.Error()}
		}
		return nil, err
	}
	if proc.payoutQueue != nil {
		proc.payoutQueue <- modelqueue.PayoutQueueEntry{WithdrawalID: withdrawalID, ExternalID: externalID}
	}
	metrics.SettlementEvents.WithLabelValues("admin", metrics.OutcomeProcessed).Inc()
	return &modeldto.Withdrawal{
		ID:                    withdrawalID,
		Amount:                entry.Amount,
		PaymentMethod:         entry.PaymentMethod,
		Status:                modeldomain.WithdrawalProcessing,
		ExternalTransactionID: externalID,
		RequestedAt:           entry.RequestedAt,
	}, nil
}

// FailWithdrawal is the administrative pending-only failure path, restoring
// the reserved amount to the user's available balance.
func (proc *Processor) FailWithdrawal(ctx context.Context, withdrawalID, reason string) error {
	if reason == "" {
		reason = "Manually failed by admin"
	}
	return proc.settleAdminTermination(ctx, withdrawalID, modeldomain.WithdrawalFailed, reason)
}

// CancelWithdrawal is the administrative pending-only cancellation path.
func (proc *Processor) CancelWithdrawal(ctx context.Context, withdrawalID, reason string) error {
	if reason == "" {
		reason = "Cancelled by admin"
	}
	return proc.settleAdminTermination(ctx, withdrawalID, modeldomain.WithdrawalCancelled, reason)
}

func (proc *Processor) settleAdminTermination(ctx context.Context, withdrawalID, newStatus, reason string) error {
	err := proc.storage.FailWithdrawal(ctx, withdrawalID, newStatus, reason, []string{modeldomain.WithdrawalPending})
	if err != nil {
		var alreadyProcessedError *storageErrors.AlreadyProcessedError
		var notEligibleError *storageErrors.NotEligibleError
		if errors.As(err, &alreadyProcessedError) || errors.As(err, &notEligibleError) {
			metrics.SettlementEvents.WithLabelValues("admin", metrics.OutcomeRejected).Inc()
			return &serviceErrors.ServiceNotEligible{Msg: err.Error()}
		}
		metrics.SettlementEvents.WithLabelValues("admin", metrics.OutcomeError).Inc()
		return err
	}
	metrics.SettlementEvents.WithLabelValues("admin", metrics.OutcomeProcessed).Inc()
	return nil
}

// CancelTransaction is the administrative override settling a pending
// transaction as cancelled, with the rejected-style balance effect.
func (proc *Processor) CancelTransaction(ctx context.Context, orderID string) error {
	err := proc.storage.SettleTransaction(ctx, orderID, modeldomain.TransactionCancelled)
	if err != nil {
		var alreadyProcessedError *storageErrors.AlreadyProcessedError
		if errors.As(err, &alreadyProcessedError) {
			metrics.SettlementEvents.WithLabelValues("admin", metrics.OutcomeRejected).Inc()
			return &serviceErrors.ServiceNotEligible{Msg: err.Error()}
		}
		metrics.SettlementEvents.WithLabelValues("admin", metrics.OutcomeError).Inc()
		return err
	}
	metrics.SettlementEvents.WithLabelValues("admin", metrics.OutcomeProcessed).Inc()
	return nil
}

// ProcessPayoutEvent settles a withdrawal on a payout provider webhook event.
func (proc *Processor) ProcessPayoutEvent(ctx context.Context, event modeldto.PayoutEvent) error {
	entity := event.Payload.Payout.Entity
	if entity.Notes.WithdrawalID == "" {
		metrics.SettlementEvents.WithLabelValues("webhook", metrics.OutcomeIgnored).Inc()
		proc.log.Warn().Msg("payout webhook received without withdrawal reference")
		return &serviceErrors.ServiceEventIgnored{Msg: "no withdrawal reference in event"}
	}
	var providerStatus string
	switch event.Event {
	case modeldomain.PayoutEventProcessed:
		providerStatus = "processed"
	case modeldomain.PayoutEventFailed:
		providerStatus = "failed"
	case modeldomain.PayoutEventReversed:
		providerStatus = "reversed"
	default:
		metrics.SettlementEvents.WithLabelValues("webhook", metrics.OutcomeIgnored).Inc()
		return &serviceErrors.ServiceEventIgnored{Msg: fmt.Sprintf("event %s is not supported", event.Event)}
	}
	eventKey := "payout:" + entity.ID + ":" + event.Event
	if !proc.guard.Admit(ctx, eventKey) {
		metrics.SettlementEvents.WithLabelValues("webhook", metrics.OutcomeDuplicate).Inc()
		return &serviceErrors.ServiceDuplicateEvent{Key: eventKey}
	}
	_, err := proc.settleProviderStatus(ctx, "webhook", entity.Notes.WithdrawalID, entity.ID, providerStatus, entity.FailureReason)
	if err != nil {
		var duplicateEvent *serviceErrors.ServiceDuplicateEvent
		if !errors.As(err, &duplicateEvent) {
			proc.guard.Forget(ctx, eventKey)
		}
		return err
	}
	return nil
}

// SettleProviderStatus applies a provider-reported payout state to a
// withdrawal, reported terminal when no further polling is needed.
func (proc *Processor) SettleProviderStatus(ctx context.Context, withdrawalID, externalID, providerStatus, failureReason string) (bool, error) {
	return proc.settleProviderStatus(ctx, "poller", withdrawalID, externalID, providerStatus, failureReason)
}

func (proc *Processor) settleProviderStatus(ctx context.Context, source, withdrawalID, externalID, providerStatus, failureReason string) (bool, error) {
	var err error
	switch providerStatus {
	case "processed":
		err = proc.storage.CompleteWithdrawal(ctx, withdrawalID, externalID)
	case "failed", "reversed", "cancelled":
		if failureReason == "" {
			failureReason = "Reversed by bank"
		}
		err = proc.storage.FailWithdrawal(ctx, withdrawalID, modeldomain.WithdrawalFailed, failureReason,
			[]string{modeldomain.WithdrawalPending, modeldomain.WithdrawalProcessing})
	default:
		// provider-side intermediate state, nothing to settle yet
		return false, nil
	}
	if err != nil {
		var notFoundError *storageErrors.NotFoundError
		var alreadyProcessedError *storageErrors.AlreadyProcessedError
		var notEligibleError *storageErrors.NotEligibleError
		if errors.As(err, &notFoundError) {
			metrics.SettlementEvents.WithLabelValues(source, metrics.OutcomeIgnored).Inc()
			proc.log.Error().Msg(fmt.Sprintf("payout %s reported for unknown withdrawal %s", externalID, withdrawalID))
			return true, &serviceErrors.ServiceEventIgnored{Msg: fmt.Sprintf("withdrawal %s is unknown", withdrawalID)}
		}
		if errors.As(err, &alreadyProcessedError) {
			metrics.SettlementEvents.WithLabelValues(source, metrics.OutcomeDuplicate).Inc()
			return true, &serviceErrors.ServiceDuplicateEvent{Key: withdrawalID + ":" + providerStatus}
		}
		if errors.As(err, &notEligibleError) {
			metrics.SettlementEvents.WithLabelValues(source, metrics.OutcomeIgnored).Inc()
			proc.log.Warn().Msg(fmt.Sprintf("payout %s state %s not applicable to withdrawal %s", externalID, providerStatus, withdrawalID))
			return false, &serviceErrors.ServiceEventIgnored{Msg: err.Error()}
		}
		metrics.SettlementEvents.WithLabelValues(source, metrics.OutcomeError).Inc()
		return false, err
	}
	metrics.SettlementEvents.WithLabelValues(source, metrics.OutcomeProcessed).Inc()
	return true, nil
}

// validatePaymentDetails checks that the method is supported and that the
// method-specific destination fields are present and well-formed.
func validatePaymentDetails(method string, details modeldto.PaymentDetails) error {
	if !modeldomain.ValidPaymentMethod(method) {
		return &serviceErrors.ServiceIllegalPaymentDetails{Msg: fmt.Sprintf("payment method %s is not supported", method)}
	}
	switch method {
	case modeldomain.MethodBankTransfer:
		if details.AccountName == "" || details.AccountNumber == "" || details.BankName == "" {
			return &serviceErrors.ServiceIllegalPaymentDetails{Msg: "bank transfer requires account name, account number and bank name"}
		}
	case modeldomain.MethodPayPal:
		if !strings.Contains(details.PayPalEmail, "@") {
			return &serviceErrors.ServiceIllegalPaymentDetails{Msg: "paypal requires a valid email"}
		}
	case modeldomain.MethodCard:
		if err := goluhn.Validate(details.CardNumber); err != nil {
			return &serviceErrors.ServiceIllegalPaymentDetails{Msg: fmt.Sprintf("illegal card number %s", details.CardNumber)}
		}
	}
	return nil
}
