// Package inpsql implements the ledger store over PostgreSQL. Every operation
// that moves money commits the entity change and the balance delta inside one
// DB transaction; status transitions are guarded by row locks and conditional
// updates so that redelivered events settle as no-ops.
package inpsql

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akarpov/ak-go-cashback/internal/config"
	"github.com/akarpov/ak-go-cashback/internal/models/modeldomain"
	"github.com/akarpov/ak-go-cashback/internal/models/modeldto"
	"github.com/akarpov/ak-go-cashback/internal/models/modelstorage"
	storageErrors "github.com/akarpov/ak-go-cashback/internal/storage/v1/errors"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/rs/zerolog"
)

// Storage defines attributes of the PSQL-backed ledger store.
type Storage struct {
	Cfg *config.StorageConfig
	DB  *sql.DB
	log *zerolog.Logger
}

// InitStorage opens a DB connection and prepares the schema.
func InitStorage(ctx context.Context, cfg *config.StorageConfig, log *zerolog.Logger) (*Storage, error) {
	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}
	st := Storage{
		Cfg: cfg,
		DB:  db,
		log: log,
	}
	err = st.createTables(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}
	log.Info().Msg("PSQL DB connection was established")
	return &st, nil
}

// NewStorage wraps an existing DB handle, used in tests.
func NewStorage(db *sql.DB, log *zerolog.Logger) *Storage {
	return &Storage{DB: db, log: log}
}

// AddNewUser adds a user entry together with a zeroed balance entry.
func (s *Storage) AddNewUser(ctx context.Context, credentials modeldto.User, userID, role string) error {
	chanOk := make(chan bool)
	chanEr := make(chan error)
	go func() {
		tx, err := s.DB.BeginTx(ctx, nil)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		defer tx.Rollback()
		_, err = tx.ExecContext(ctx, "INSERT INTO users (user_id, login, password, role, registered_at) VALUES ($1, $2, $3, $4, $5)",
			userID, credentials.Login, credentials.Password, role, time.Now().Format(time.RFC3339))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				chanEr <- &storageErrors.AlreadyExistsError{Err: err, ID: credentials.Login}
				return
			}
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		_, err = tx.ExecContext(ctx, "INSERT INTO balance (user_id, pending, available) VALUES ($1, 0, 0)", userID)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		if err = tx.Commit(); err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		chanOk <- true
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("adding new user failed for %s", credentials.Login))
		return &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("adding new user failed for %s", credentials.Login))
		return methodErr
	case <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("adding new user done for %s", credentials.Login))
		return nil
	}
}

// CheckUser verifies credentials and returns the user identifier and role.
func (s *Storage) CheckUser(ctx context.Context, credentials modeldto.User) (string, string, error) {
	selectStmt, err := s.DB.PrepareContext(ctx, "SELECT user_id, password, role FROM users WHERE login = $1 AND is_active")
	if err != nil {
		return "", "", &storageErrors.StatementPSQLError{Err: err}
	}
	defer selectStmt.Close()
	var entry modelstorage.UserStorageEntry
	err = selectStmt.QueryRowContext(ctx, credentials.Login).Scan(&entry.UserID, &entry.Password, &entry.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", &storageErrors.NotFoundError{Err: err}
		}
		return "", "", &storageErrors.ExecutionPSQLError{Err: err}
	}
	passwordHash := sha256.Sum256([]byte(credentials.Password))
	expectedPasswordHash := sha256.Sum256([]byte(entry.Password))
	if subtle.ConstantTimeCompare(passwordHash[:], expectedPasswordHash[:]) != 1 {
		return "", "", &storageErrors.NotFoundError{Err: nil}
	}
	return entry.UserID, entry.Role, nil
}

// GetBalance retrieves the two-bucket balance of a user.
func (s *Storage) GetBalance(ctx context.Context, userID string) (*modeldto.Balance, error) {
	selectStmt, err := s.DB.PrepareContext(ctx, "SELECT pending, available FROM balance WHERE user_id = $1")
	if err != nil {
		return nil, &storageErrors.StatementPSQLError{Err: err}
	}
	defer selectStmt.Close()
	var balance modeldto.Balance
	err = selectStmt.QueryRowContext(ctx, userID).Scan(&balance.PendingAmount, &balance.AvailableAmount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &storageErrors.NotFoundError{Err: err}
		}
		return nil, &storageErrors.ExecutionPSQLError{Err: err}
	}
	return &balance, nil
}

// RegisterClick stores a click entry and returns the affiliate URL it should
// redirect to. Anonymous clicks are stored with a NULL user.
func (s *Storage) RegisterClick(ctx context.Context, clickID, userID string, retailerID, offerID int64) (string, error) {
	var redirectURL string
	var err error
	if offerID != 0 {
		var offer modelstorage.OfferStorageEntry
		err = s.DB.QueryRowContext(ctx, "SELECT affiliate_url FROM offers WHERE id = $1 AND retailer_id = $2 AND is_active",
			offerID, retailerID).Scan(&offer.AffiliateURL)
		if errors.Is(err, sql.ErrNoRows) {
			// inactive or foreign offer falls back to the retailer URL
			offerID = 0
			err = nil
		}
		redirectURL = offer.AffiliateURL
	}
	if offerID == 0 {
		var retailer modelstorage.RetailerStorageEntry
		err = s.DB.QueryRowContext(ctx, "SELECT affiliate_url FROM retailers WHERE id = $1 AND is_active", retailerID).Scan(&retailer.AffiliateURL)
		redirectURL = retailer.AffiliateURL
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", &storageErrors.NotFoundError{Err: err}
		}
		return "", &storageErrors.ExecutionPSQLError{Err: err}
	}
	_, err = s.DB.ExecContext(ctx, "INSERT INTO clicks (click_id, user_id, retailer_id, offer_id, created_at) VALUES ($1, $2, $3, $4, $5)",
		clickID, toNullString(userID), retailerID, toNullInt64(offerID), time.Now().Format(time.RFC3339))
	if err != nil {
		return "", &storageErrors.ExecutionPSQLError{Err: err}
	}
	s.log.Info().Msg(fmt.Sprintf("click %s registered for retailer %d", clickID, retailerID))
	return redirectURL, nil
}

// GetClick retrieves a click entry together with the retailer- and
// offer-level cashback share overrides.
func (s *Storage) GetClick(ctx context.Context, clickID string) (*modelstorage.ClickStorageEntry, error) {
	query := `SELECT c.click_id, c.user_id, c.retailer_id, c.offer_id, c.is_converted, r.cashback_share, o.cashback_share
		FROM clicks c
		JOIN retailers r ON r.id = c.retailer_id
		LEFT JOIN offers o ON o.id = c.offer_id
		WHERE c.click_id = $1`
	var entry modelstorage.ClickStorageEntry
	err := s.DB.QueryRowContext(ctx, query, clickID).Scan(&entry.ClickID, &entry.UserID, &entry.RetailerID,
		&entry.OfferID, &entry.IsConverted, &entry.RetailerShare, &entry.OfferShare)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &storageErrors.NotFoundError{Err: err}
		}
		return nil, &storageErrors.ExecutionPSQLError{Err: err}
	}
	return &entry, nil
}

// AddNewTransaction atomically inserts a pending transaction, increments the
// owner's pending balance by the cashback amount and marks the originating
// click as converted. The unique index on order_id is the duplicate guard.
func (s *Storage) AddNewTransaction(ctx context.Context, entry modelstorage.TransactionStorageEntry) error {
	chanOk := make(chan bool)
	chanEr := make(chan error)
	go func() {
		tx, err := s.DB.BeginTx(ctx, nil)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		defer tx.Rollback()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO transactions (user_id, retailer_id, click_id, order_id, sale_amount, commission, cashback_amount, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			entry.UserID, entry.RetailerID, entry.ClickID, entry.OrderID, entry.SaleAmount, entry.Commission,
			entry.CashbackAmount, modeldomain.TransactionPending, time.Now().Format(time.RFC3339))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				chanEr <- &storageErrors.AlreadyExistsError{Err: err, ID: entry.OrderID}
				return
			}
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		res, err := tx.ExecContext(ctx, "UPDATE balance SET pending = pending + $1 WHERE user_id = $2",
			entry.CashbackAmount, entry.UserID)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			chanEr <- &storageErrors.NotFoundError{Err: nil}
			return
		}
		_, err = tx.ExecContext(ctx, "UPDATE clicks SET is_converted = TRUE WHERE click_id = $1", entry.ClickID)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		if err = tx.Commit(); err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		chanOk <- true
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("adding new transaction failed for order %s", entry.OrderID))
		return &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("adding new transaction failed for order %s", entry.OrderID))
		return methodErr
	case <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("adding new transaction done for order %s", entry.OrderID))
		return nil
	}
}

// SettleTransaction moves a pending transaction to a terminal status and
// applies the corresponding balance movement. Non-pending transactions yield
// AlreadyProcessedError so that redeliveries can be acknowledged silently.
func (s *Storage) SettleTransaction(ctx context.Context, orderID, newStatus string) error {
	chanOk := make(chan bool)
	chanEr := make(chan error)
	go func() {
		tx, err := s.DB.BeginTx(ctx, nil)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		defer tx.Rollback()
		var userID, status string
		var cashback float64
		err = tx.QueryRowContext(ctx, "SELECT user_id, cashback_amount, status FROM transactions WHERE order_id = $1 FOR UPDATE",
			orderID).Scan(&userID, &cashback, &status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				chanEr <- &storageErrors.NotFoundError{Err: err}
				return
			}
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		if status != modeldomain.TransactionPending {
			chanEr <- &storageErrors.AlreadyProcessedError{ID: orderID, Status: status}
			return
		}
		_, err = tx.ExecContext(ctx, "UPDATE transactions SET status = $1, settled_at = $2 WHERE order_id = $3",
			newStatus, time.Now().Format(time.RFC3339), orderID)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		if newStatus == modeldomain.TransactionConfirmed {
			_, err = tx.ExecContext(ctx, "UPDATE balance SET pending = pending - $1, available = available + $1 WHERE user_id = $2",
				cashback, userID)
		} else {
			_, err = tx.ExecContext(ctx, "UPDATE balance SET pending = pending - $1 WHERE user_id = $2",
				cashback, userID)
		}
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		if err = tx.Commit(); err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		chanOk <- true
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("settling transaction failed for order %s", orderID))
		return &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("settling transaction failed for order %s", orderID))
		return methodErr
	case <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("settling transaction done for order %s, new status %s", orderID, newStatus))
		return nil
	}
}

// GetTransactions retrieves all transactions of a user, newest first.
func (s *Storage) GetTransactions(ctx context.Context, userID string) ([]modelstorage.TransactionStorageEntry, error) {
	query := `SELECT t.order_id, t.sale_amount, t.cashback_amount, t.status, t.created_at, r.name
		FROM transactions t
		JOIN retailers r ON r.id = t.retailer_id
		WHERE t.user_id = $1
		ORDER BY t.created_at DESC`
	rows, err := s.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, &storageErrors.ExecutionPSQLError{Err: err}
	}
	defer rows.Close()
	var entries []modelstorage.TransactionStorageEntry
	for rows.Next() {
		var entry modelstorage.TransactionStorageEntry
		err = rows.Scan(&entry.OrderID, &entry.SaleAmount, &entry.CashbackAmount, &entry.Status, &entry.CreatedAt, &entry.RetailerName)
		if err != nil {
			return nil, &storageErrors.ScanningPSQLError{Err: err}
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, &storageErrors.ScanningPSQLError{Err: err}
	}
	return entries, nil
}

// AddNewWithdrawal atomically reserves the requested amount from the owner's
// available balance and inserts a pending withdrawal. The reservation is a
// conditional decrement so that concurrent requests cannot overdraw.
func (s *Storage) AddNewWithdrawal(ctx context.Context, entry modelstorage.WithdrawalStorageEntry) error {
	chanOk := make(chan bool)
	chanEr := make(chan error)
	go func() {
		tx, err := s.DB.BeginTx(ctx, nil)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		defer tx.Rollback()
		res, err := tx.ExecContext(ctx, "UPDATE balance SET available = available - $1 WHERE user_id = $2 AND available >= $1",
			entry.Amount, entry.UserID)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			var exists bool
			err = tx.QueryRowContext(ctx, "SELECT TRUE FROM balance WHERE user_id = $1", entry.UserID).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				chanEr <- &storageErrors.NotFoundError{Err: err}
				return
			}
			chanEr <- &storageErrors.NotEnoughFundsError{Err: nil}
			return
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO withdrawals (withdrawal_id, user_id, amount, payment_method, payment_details, status, requested_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			entry.WithdrawalID, entry.UserID, entry.Amount, entry.PaymentMethod, entry.PaymentDetails,
			modeldomain.WithdrawalPending, time.Now().Format(time.RFC3339))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				chanEr <- &storageErrors.AlreadyExistsError{Err: err, ID: entry.WithdrawalID}
				return
			}
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		if err = tx.Commit(); err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		chanOk <- true
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("adding new withdrawal failed for user %s", entry.UserID))
		return &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("adding new withdrawal failed for user %s", entry.UserID))
		return methodErr
	case <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("adding new withdrawal %s done for user %s", entry.WithdrawalID, entry.UserID))
		return nil
	}
}

// GetWithdrawal retrieves one withdrawal entry by its identifier.
func (s *Storage) GetWithdrawal(ctx context.Context, withdrawalID string) (*modelstorage.WithdrawalStorageEntry, error) {
	var entry modelstorage.WithdrawalStorageEntry
	err := s.DB.QueryRowContext(ctx,
		`SELECT withdrawal_id, user_id, amount, payment_method, payment_details, status, external_tx_id, reason, requested_at
		FROM withdrawals WHERE withdrawal_id = $1`, withdrawalID).
		Scan(&entry.WithdrawalID, &entry.UserID, &entry.Amount, &entry.PaymentMethod, &entry.PaymentDetails,
			&entry.Status, &entry.ExternalTransactionID, &entry.Reason, &entry.RequestedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &storageErrors.NotFoundError{Err: err}
		}
		return nil, &storageErrors.ExecutionPSQLError{Err: err}
	}
	return &entry, nil
}

// GetWithdrawals retrieves all withdrawals of a user, newest first.
func (s *Storage) GetWithdrawals(ctx context.Context, userID string) ([]modelstorage.WithdrawalStorageEntry, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT withdrawal_id, amount, payment_method, status, external_tx_id, reason, requested_at
		FROM withdrawals WHERE user_id = $1 ORDER BY requested_at DESC`, userID)
	if err != nil {
		return nil, &storageErrors.ExecutionPSQLError{Err: err}
	}
	defer rows.Close()
	var entries []modelstorage.WithdrawalStorageEntry
	for rows.Next() {
		var entry modelstorage.WithdrawalStorageEntry
		err = rows.Scan(&entry.WithdrawalID, &entry.Amount, &entry.PaymentMethod, &entry.Status,
			&entry.ExternalTransactionID, &entry.Reason, &entry.RequestedAt)
		if err != nil {
			return nil, &storageErrors.ScanningPSQLError{Err: err}
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, &storageErrors.ScanningPSQLError{Err: err}
	}
	return entries, nil
}

// SetWithdrawalProcessing advances a pending withdrawal to processing and
// stores the external payout identifier. The reserved funds stay debited, no
// balance movement happens here.
func (s *Storage) SetWithdrawalProcessing(ctx context.Context, withdrawalID, externalID string) error {
	res, err := s.DB.ExecContext(ctx,
		"UPDATE withdrawals SET status = $1, external_tx_id = $2, processed_at = $3 WHERE withdrawal_id = $4 AND status = $5",
		modeldomain.WithdrawalProcessing, externalID, time.Now().Format(time.RFC3339), withdrawalID, modeldomain.WithdrawalPending)
	if err != nil {
		return &storageErrors.ExecutionPSQLError{Err: err}
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return s.explainMissedTransition(ctx, withdrawalID)
	}
	s.log.Info().Msg(fmt.Sprintf("withdrawal %s moved to processing, payout %s", withdrawalID, externalID))
	return nil
}

// CompleteWithdrawal terminally consumes the reserved funds of a processing
// withdrawal. Redeliveries on a terminal withdrawal resolve to
// AlreadyProcessedError.
func (s *Storage) CompleteWithdrawal(ctx context.Context, withdrawalID, externalID string) error {
	res, err := s.DB.ExecContext(ctx,
		"UPDATE withdrawals SET status = $1, external_tx_id = $2, settled_at = $3 WHERE withdrawal_id = $4 AND status = $5",
		modeldomain.WithdrawalCompleted, externalID, time.Now().Format(time.RFC3339), withdrawalID, modeldomain.WithdrawalProcessing)
	if err != nil {
		return &storageErrors.ExecutionPSQLError{Err: err}
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return s.explainMissedTransition(ctx, withdrawalID)
	}
	s.log.Info().Msg(fmt.Sprintf("withdrawal %s completed, payout %s", withdrawalID, externalID))
	return nil
}

// FailWithdrawal moves a withdrawal to failed or cancelled and atomically
// restores the reserved amount to the owner's available balance. fromStatuses
// narrows which current states may take this transition: admin actions pass
// pending only, provider events pass pending and processing.
func (s *Storage) FailWithdrawal(ctx context.Context, withdrawalID, newStatus, reason string, fromStatuses []string) error {
	chanOk := make(chan bool)
	chanEr := make(chan error)
	go func() {
		tx, err := s.DB.BeginTx(ctx, nil)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		defer tx.Rollback()
		var userID, status string
		var amount float64
		err = tx.QueryRowContext(ctx, "SELECT user_id, amount, status FROM withdrawals WHERE withdrawal_id = $1 FOR UPDATE",
			withdrawalID).Scan(&userID, &amount, &status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				chanEr <- &storageErrors.NotFoundError{Err: err}
				return
			}
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		if modeldomain.WithdrawalIsTerminal(status) {
			chanEr <- &storageErrors.AlreadyProcessedError{ID: withdrawalID, Status: status}
			return
		}
		allowed := false
		for _, from := range fromStatuses {
			if status == from {
				allowed = true
			}
		}
		if !allowed {
			chanEr <- &storageErrors.NotEligibleError{ID: withdrawalID, Status: status}
			return
		}
		_, err = tx.ExecContext(ctx, "UPDATE withdrawals SET status = $1, reason = $2, settled_at = $3 WHERE withdrawal_id = $4",
			newStatus, reason, time.Now().Format(time.RFC3339), withdrawalID)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		_, err = tx.ExecContext(ctx, "UPDATE balance SET available = available + $1 WHERE user_id = $2", amount, userID)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		if err = tx.Commit(); err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		chanOk <- true
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("failing withdrawal %s failed", withdrawalID))
		return &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("failing withdrawal %s failed", withdrawalID))
		return methodErr
	case <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("withdrawal %s moved to %s, funds restored", withdrawalID, newStatus))
		return nil
	}
}

// GetProcessingWithdrawals retrieves withdrawals awaiting provider settlement,
// used to seed the payout status poller on startup.
func (s *Storage) GetProcessingWithdrawals(ctx context.Context) ([]modelstorage.WithdrawalStorageEntry, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT withdrawal_id, user_id, amount, status, external_tx_id FROM withdrawals WHERE status = $1",
		modeldomain.WithdrawalProcessing)
	if err != nil {
		return nil, &storageErrors.ExecutionPSQLError{Err: err}
	}
	defer rows.Close()
	var entries []modelstorage.WithdrawalStorageEntry
	for rows.Next() {
		var entry modelstorage.WithdrawalStorageEntry
		err = rows.Scan(&entry.WithdrawalID, &entry.UserID, &entry.Amount, &entry.Status, &entry.ExternalTransactionID)
		if err != nil {
			return nil, &storageErrors.ScanningPSQLError{Err: err}
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, &storageErrors.ScanningPSQLError{Err: err}
	}
	return entries, nil
}

// explainMissedTransition resolves a zero-row conditional update into the
// precise domain error.
func (s *Storage) explainMissedTransition(ctx context.Context, withdrawalID string) error {
	var status string
	err := s.DB.QueryRowContext(ctx, "SELECT status FROM withdrawals WHERE withdrawal_id = $1", withdrawalID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &storageErrors.NotFoundError{Err: err}
		}
		return &storageErrors.ExecutionPSQLError{Err: err}
	}
	if modeldomain.WithdrawalIsTerminal(status) {
		return &storageErrors.AlreadyProcessedError{ID: withdrawalID, Status: status}
	}
	return &storageErrors.NotEligibleError{ID: withdrawalID, Status: status}
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func toNullInt64(i int64) sql.NullInt64 {
	if i == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: i, Valid: true}
}

func (s *Storage) createTables(ctx context.Context) error {
	var queries []string
	query := `CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL   PRIMARY KEY,
		user_id       TEXT        NOT NULL UNIQUE,
		login         TEXT        NOT NULL UNIQUE,
		password      TEXT        NOT NULL,
		role          TEXT        NOT NULL DEFAULT 'user',
		is_active     BOOLEAN     NOT NULL DEFAULT TRUE,
		registered_at TIMESTAMPTZ NOT NULL
	);`
	queries = append(queries, query)
	query = `CREATE TABLE IF NOT EXISTS balance (
		id        BIGSERIAL      PRIMARY KEY,
		user_id   TEXT           NOT NULL UNIQUE,
		pending   NUMERIC(12, 2) NOT NULL DEFAULT 0 CHECK (pending >= 0),
		available NUMERIC(12, 2) NOT NULL DEFAULT 0 CHECK (available >= 0)
	);`
	queries = append(queries, query)
	query = `CREATE TABLE IF NOT EXISTS retailers (
		id             BIGSERIAL     PRIMARY KEY,
		name           TEXT          NOT NULL,
		affiliate_url  TEXT          NOT NULL,
		cashback_share NUMERIC(5, 4),
		is_active      BOOLEAN       NOT NULL DEFAULT TRUE
	);`
	queries = append(queries, query)
	query = `CREATE TABLE IF NOT EXISTS offers (
		id             BIGSERIAL     PRIMARY KEY,
		retailer_id    BIGINT        NOT NULL REFERENCES retailers (id),
		affiliate_url  TEXT          NOT NULL,
		cashback_share NUMERIC(5, 4),
		is_active      BOOLEAN       NOT NULL DEFAULT TRUE
	);`
	queries = append(queries, query)
	query = `CREATE TABLE IF NOT EXISTS clicks (
		id           BIGSERIAL   PRIMARY KEY,
		click_id     TEXT        NOT NULL UNIQUE,
		user_id      TEXT,
		retailer_id  BIGINT      NOT NULL REFERENCES retailers (id),
		offer_id     BIGINT,
		is_converted BOOLEAN     NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL
	);`
	queries = append(queries, query)
	query = `CREATE TABLE IF NOT EXISTS transactions (
		id              BIGSERIAL      PRIMARY KEY,
		user_id         TEXT           NOT NULL,
		retailer_id     BIGINT         NOT NULL,
		click_id        TEXT           NOT NULL,
		order_id        TEXT           NOT NULL UNIQUE,
		sale_amount     NUMERIC(12, 2) NOT NULL CHECK (sale_amount >= 0),
		commission      NUMERIC(12, 2) NOT NULL CHECK (commission >= 0),
		cashback_amount NUMERIC(12, 2) NOT NULL CHECK (cashback_amount >= 0),
		status          TEXT           NOT NULL,
		created_at      TIMESTAMPTZ    NOT NULL,
		settled_at      TIMESTAMPTZ
	);`
	queries = append(queries, query)
	query = `CREATE TABLE IF NOT EXISTS withdrawals (
		id              BIGSERIAL      PRIMARY KEY,
		withdrawal_id   TEXT           NOT NULL UNIQUE,
		user_id         TEXT           NOT NULL,
		amount          NUMERIC(12, 2) NOT NULL CHECK (amount > 0),
		payment_method  TEXT           NOT NULL,
		payment_details TEXT           NOT NULL,
		status          TEXT           NOT NULL,
		external_tx_id  TEXT,
		reason          TEXT,
		requested_at    TIMESTAMPTZ    NOT NULL,
		processed_at    TIMESTAMPTZ,
		settled_at      TIMESTAMPTZ
	);`
	queries = append(queries, query)
	for _, subquery := range queries {
		_, err := s.DB.ExecContext(ctx, subquery)
		if err != nil {
			return err
		}
	}
	return nil
}
