package inpsql

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/akarpov/ak-go-cashback/internal/models/modeldomain"
	"github.com/akarpov/ak-go-cashback/internal/models/modeldto"
	"github.com/akarpov/ak-go-cashback/internal/models/modelstorage"
	storageErrors "github.com/akarpov/ak-go-cashback/internal/storage/v1/errors"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// newMockStorage builds a storage over a fresh sqlmock handle. Mutating
// methods roll back on a goroutine after reporting their error, so rollback
// expectations are not asserted with ExpectationsWereMet on failure paths.
func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	log := zerolog.Nop()
	return NewStorage(db, &log), mock
}

func TestStorage_AddNewTransaction(t *testing.T) {
	ctx := context.Background()
	entry := modelstorage.TransactionStorageEntry{
		UserID:         "user1",
		RetailerID:     1,
		ClickID:        "click1",
		OrderID:        "ORD1",
		SaleAmount:     200.0,
		Commission:     20.0,
		CashbackAmount: 10.0,
	}

	t.Run("Success", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).
			WithArgs(entry.UserID, entry.RetailerID, entry.ClickID, entry.OrderID, entry.SaleAmount,
				entry.Commission, entry.CashbackAmount, modeldomain.TransactionPending, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE balance SET pending = pending + $1 WHERE user_id = $2")).
			WithArgs(entry.CashbackAmount, entry.UserID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE clicks SET is_converted = TRUE WHERE click_id = $1")).
			WithArgs(entry.ClickID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := st.AddNewTransaction(ctx, entry)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateOrder", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).
			WithArgs(entry.UserID, entry.RetailerID, entry.ClickID, entry.OrderID, entry.SaleAmount,
				entry.Commission, entry.CashbackAmount, modeldomain.TransactionPending, sqlmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
		mock.ExpectRollback()

		err := st.AddNewTransaction(ctx, entry)
		var alreadyExistsError *storageErrors.AlreadyExistsError
		assert.ErrorAs(t, err, &alreadyExistsError)
	})

	t.Run("MissingBalance", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).
			WithArgs(entry.UserID, entry.RetailerID, entry.ClickID, entry.OrderID, entry.SaleAmount,
				entry.Commission, entry.CashbackAmount, modeldomain.TransactionPending, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE balance SET pending = pending + $1 WHERE user_id = $2")).
			WithArgs(entry.CashbackAmount, entry.UserID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := st.AddNewTransaction(ctx, entry)
		var notFoundError *storageErrors.NotFoundError
		assert.ErrorAs(t, err, &notFoundError)
	})
}

func TestStorage_SettleTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("Confirmed", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, cashback_amount, status FROM transactions WHERE order_id = $1 FOR UPDATE")).
			WithArgs("ORD1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "cashback_amount", "status"}).
				AddRow("user1", 10.0, modeldomain.TransactionPending))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE transactions SET status = $1, settled_at = $2 WHERE order_id = $3")).
			WithArgs(modeldomain.TransactionConfirmed, sqlmock.AnyArg(), "ORD1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE balance SET pending = pending - $1, available = available + $1 WHERE user_id = $2")).
			WithArgs(10.0, "user1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := st.SettleTransaction(ctx, "ORD1", modeldomain.TransactionConfirmed)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rejected", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, cashback_amount, status FROM transactions WHERE order_id = $1 FOR UPDATE")).
			WithArgs("ORD1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "cashback_amount", "status"}).
				AddRow("user1", 10.0, modeldomain.TransactionPending))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE transactions SET status = $1, settled_at = $2 WHERE order_id = $3")).
			WithArgs(modeldomain.TransactionRejected, sqlmock.AnyArg(), "ORD1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE balance SET pending = pending - $1 WHERE user_id = $2")).
			WithArgs(10.0, "user1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := st.SettleTransaction(ctx, "ORD1", modeldomain.TransactionRejected)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AlreadySettled", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, cashback_amount, status FROM transactions WHERE order_id = $1 FOR UPDATE")).
			WithArgs("ORD1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "cashback_amount", "status"}).
				AddRow("user1", 10.0, modeldomain.TransactionConfirmed))
		mock.ExpectRollback()

		err := st.SettleTransaction(ctx, "ORD1", modeldomain.TransactionConfirmed)
		var alreadyProcessedError *storageErrors.AlreadyProcessedError
		assert.ErrorAs(t, err, &alreadyProcessedError)
	})

	t.Run("UnknownOrder", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, cashback_amount, status FROM transactions WHERE order_id = $1 FOR UPDATE")).
			WithArgs("ORD404").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "cashback_amount", "status"}))
		mock.ExpectRollback()

		err := st.SettleTransaction(ctx, "ORD404", modeldomain.TransactionConfirmed)
		var notFoundError *storageErrors.NotFoundError
		assert.ErrorAs(t, err, &notFoundError)
	})
}

func TestStorage_AddNewWithdrawal(t *testing.T) {
	ctx := context.Background()
	entry := modelstorage.WithdrawalStorageEntry{
		WithdrawalID:   "wid1",
		UserID:         "user1",
		Amount:         60.0,
		PaymentMethod:  modeldomain.MethodPayPal,
		PaymentDetails: `{"paypalEmail":"user@example.com"}`,
	}

	t.Run("Success", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE balance SET available = available - $1 WHERE user_id = $2 AND available >= $1")).
			WithArgs(entry.Amount, entry.UserID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO withdrawals")).
			WithArgs(entry.WithdrawalID, entry.UserID, entry.Amount, entry.PaymentMethod, entry.PaymentDetails,
				modeldomain.WithdrawalPending, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := st.AddNewWithdrawal(ctx, entry)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotEnoughFunds", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE balance SET available = available - $1 WHERE user_id = $2 AND available >= $1")).
			WithArgs(entry.Amount, entry.UserID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT TRUE FROM balance WHERE user_id = $1")).
			WithArgs(entry.UserID).
			WillReturnRows(sqlmock.NewRows([]string{"bool"}).AddRow(true))
		mock.ExpectRollback()

		err := st.AddNewWithdrawal(ctx, entry)
		var notEnoughFundsError *storageErrors.NotEnoughFundsError
		assert.ErrorAs(t, err, &notEnoughFundsError)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE balance SET available = available - $1 WHERE user_id = $2 AND available >= $1")).
			WithArgs(entry.Amount, entry.UserID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT TRUE FROM balance WHERE user_id = $1")).
			WithArgs(entry.UserID).
			WillReturnRows(sqlmock.NewRows([]string{"bool"}))
		mock.ExpectRollback()

		err := st.AddNewWithdrawal(ctx, entry)
		var notFoundError *storageErrors.NotFoundError
		assert.ErrorAs(t, err, &notFoundError)
	})
}

func TestStorage_CompleteWithdrawal(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE withdrawals SET status = $1, external_tx_id = $2, settled_at = $3 WHERE withdrawal_id = $4 AND status = $5")).
			WithArgs(modeldomain.WithdrawalCompleted, "pout_1", sqlmock.AnyArg(), "wid1", modeldomain.WithdrawalProcessing).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := st.CompleteWithdrawal(ctx, "wid1", "pout_1")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AlreadyCompleted", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE withdrawals SET status = $1, external_tx_id = $2, settled_at = $3 WHERE withdrawal_id = $4 AND status = $5")).
			WithArgs(modeldomain.WithdrawalCompleted, "pout_1", sqlmock.AnyArg(), "wid1", modeldomain.WithdrawalProcessing).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM withdrawals WHERE withdrawal_id = $1")).
			WithArgs("wid1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(modeldomain.WithdrawalCompleted))

		err := st.CompleteWithdrawal(ctx, "wid1", "pout_1")
		var alreadyProcessedError *storageErrors.AlreadyProcessedError
		assert.ErrorAs(t, err, &alreadyProcessedError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("StillPending", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE withdrawals SET status = $1, external_tx_id = $2, settled_at = $3 WHERE withdrawal_id = $4 AND status = $5")).
			WithArgs(modeldomain.WithdrawalCompleted, "pout_1", sqlmock.AnyArg(), "wid1", modeldomain.WithdrawalProcessing).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM withdrawals WHERE withdrawal_id = $1")).
			WithArgs("wid1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(modeldomain.WithdrawalPending))

		err := st.CompleteWithdrawal(ctx, "wid1", "pout_1")
		var notEligibleError *storageErrors.NotEligibleError
		assert.ErrorAs(t, err, &notEligibleError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE withdrawals SET status = $1, external_tx_id = $2, settled_at = $3 WHERE withdrawal_id = $4 AND status = $5")).
			WithArgs(modeldomain.WithdrawalCompleted, "pout_1", sqlmock.AnyArg(), "wid404", modeldomain.WithdrawalProcessing).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM withdrawals WHERE withdrawal_id = $1")).
			WithArgs("wid404").
			WillReturnRows(sqlmock.NewRows([]string{"status"}))

		err := st.CompleteWithdrawal(ctx, "wid404", "pout_1")
		var notFoundError *storageErrors.NotFoundError
		assert.ErrorAs(t, err, &notFoundError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStorage_FailWithdrawal(t *testing.T) {
	ctx := context.Background()

	t.Run("RefundsReservedAmount", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, amount, status FROM withdrawals WHERE withdrawal_id = $1 FOR UPDATE")).
			WithArgs("wid1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "amount", "status"}).
				AddRow("user1", 60.0, modeldomain.WithdrawalProcessing))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE withdrawals SET status = $1, reason = $2, settled_at = $3 WHERE withdrawal_id = $4")).
			WithArgs(modeldomain.WithdrawalFailed, "Reversed by bank", sqlmock.AnyArg(), "wid1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE balance SET available = available + $1 WHERE user_id = $2")).
			WithArgs(60.0, "user1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := st.FailWithdrawal(ctx, "wid1", modeldomain.WithdrawalFailed, "Reversed by bank",
			[]string{modeldomain.WithdrawalPending, modeldomain.WithdrawalProcessing})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("TerminalStateIsNoOp", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, amount, status FROM withdrawals WHERE withdrawal_id = $1 FOR UPDATE")).
			WithArgs("wid1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "amount", "status"}).
				AddRow("user1", 60.0, modeldomain.WithdrawalCompleted))
		mock.ExpectRollback()

		err := st.FailWithdrawal(ctx, "wid1", modeldomain.WithdrawalFailed, "Reversed by bank",
			[]string{modeldomain.WithdrawalPending, modeldomain.WithdrawalProcessing})
		var alreadyProcessedError *storageErrors.AlreadyProcessedError
		assert.ErrorAs(t, err, &alreadyProcessedError)
	})

	t.Run("AdminMayNotFailProcessing", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, amount, status FROM withdrawals WHERE withdrawal_id = $1 FOR UPDATE")).
			WithArgs("wid1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "amount", "status"}).
				AddRow("user1", 60.0, modeldomain.WithdrawalProcessing))
		mock.ExpectRollback()

		err := st.FailWithdrawal(ctx, "wid1", modeldomain.WithdrawalFailed, "Manually failed by admin",
			[]string{modeldomain.WithdrawalPending})
		var notEligibleError *storageErrors.NotEligibleError
		assert.ErrorAs(t, err, &notEligibleError)
	})
}

func TestStorage_GetBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectPrepare(regexp.QuoteMeta("SELECT pending, available FROM balance WHERE user_id = $1")).
			ExpectQuery().
			WithArgs("user1").
			WillReturnRows(sqlmock.NewRows([]string{"pending", "available"}).AddRow(12.5, 40.0))

		balance, err := st.GetBalance(ctx, "user1")
		assert.NoError(t, err)
		assert.Equal(t, 12.5, balance.PendingAmount)
		assert.Equal(t, 40.0, balance.AvailableAmount)
	})

	t.Run("Unknown", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectPrepare(regexp.QuoteMeta("SELECT pending, available FROM balance WHERE user_id = $1")).
			ExpectQuery().
			WithArgs("user404").
			WillReturnRows(sqlmock.NewRows([]string{"pending", "available"}))

		balance, err := st.GetBalance(ctx, "user404")
		assert.Nil(t, balance)
		var notFoundError *storageErrors.NotFoundError
		assert.ErrorAs(t, err, &notFoundError)
	})
}

func TestStorage_CheckUser(t *testing.T) {
	ctx := context.Background()
	credentials := modeldto.User{Login: "user1", Password: "hash1"}

	t.Run("Success", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectPrepare(regexp.QuoteMeta("SELECT user_id, password, role FROM users WHERE login = $1 AND is_active")).
			ExpectQuery().
			WithArgs(credentials.Login).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "password", "role"}).
				AddRow("uid1", "hash1", modeldomain.RoleUser))

		userID, role, err := st.CheckUser(ctx, credentials)
		assert.NoError(t, err)
		assert.Equal(t, "uid1", userID)
		assert.Equal(t, modeldomain.RoleUser, role)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("WrongPassword", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectPrepare(regexp.QuoteMeta("SELECT user_id, password, role FROM users WHERE login = $1 AND is_active")).
			ExpectQuery().
			WithArgs(credentials.Login).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "password", "role"}).
				AddRow("uid1", "otherhash", modeldomain.RoleUser))

		_, _, err := st.CheckUser(ctx, credentials)
		var notFoundError *storageErrors.NotFoundError
		assert.ErrorAs(t, err, &notFoundError)
	})

	t.Run("UnknownLogin", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectPrepare(regexp.QuoteMeta("SELECT user_id, password, role FROM users WHERE login = $1 AND is_active")).
			ExpectQuery().
			WithArgs(credentials.Login).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "password", "role"}))

		_, _, err := st.CheckUser(ctx, credentials)
		var notFoundError *storageErrors.NotFoundError
		assert.ErrorAs(t, err, &notFoundError)
	})
}

func TestStorage_RegisterClick(t *testing.T) {
	ctx := context.Background()

	t.Run("RetailerURL", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT affiliate_url FROM retailers WHERE id = $1 AND is_active")).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"affiliate_url"}).AddRow("https://shop.example/aff"))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO clicks")).
			WithArgs("click1", "user1", int64(1), nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		redirectURL, err := st.RegisterClick(ctx, "click1", "user1", 1, 0)
		assert.NoError(t, err)
		assert.Equal(t, "https://shop.example/aff", redirectURL)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InactiveOfferFallsBackToRetailer", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT affiliate_url FROM offers WHERE id = $1 AND retailer_id = $2 AND is_active")).
			WithArgs(int64(7), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"affiliate_url"}))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT affiliate_url FROM retailers WHERE id = $1 AND is_active")).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"affiliate_url"}).AddRow("https://shop.example/aff"))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO clicks")).
			WithArgs("click1", "user1", int64(1), nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		redirectURL, err := st.RegisterClick(ctx, "click1", "user1", 1, 7)
		assert.NoError(t, err)
		assert.Equal(t, "https://shop.example/aff", redirectURL)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UnknownRetailer", func(t *testing.T) {
		st, mock := newMockStorage(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT affiliate_url FROM retailers WHERE id = $1 AND is_active")).
			WithArgs(int64(404)).
			WillReturnRows(sqlmock.NewRows([]string{"affiliate_url"}))

		_, err := st.RegisterClick(ctx, "click1", "user1", 404, 0)
		var notFoundError *storageErrors.NotFoundError
		assert.ErrorAs(t, err, &notFoundError)
	})
}
