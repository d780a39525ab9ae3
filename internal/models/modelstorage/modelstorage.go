// Package modelstorage provides types for querying relational DB.
package modelstorage

import "database/sql"

type UserStorageEntry struct {
	ID           uint   `db:"id"`
	UserID       string `db:"user_id"`
	Login        string `db:"login"`
	Password     string `db:"password"`
	Role         string `db:"role"`
	IsActive     bool   `db:"is_active"`
	RegisteredAt string `db:"registered_at"`
}

type BalanceStorageEntry struct {
	ID        uint    `db:"id"`
	UserID    string  `db:"user_id"`
	Pending   float64 `db:"pending"`
	Available float64 `db:"available"`
}

type ClickStorageEntry struct {
	ID            uint            `db:"id"`
	ClickID       string          `db:"click_id"`
	UserID        sql.NullString  `db:"user_id"`
	RetailerID    int64           `db:"retailer_id"`
	OfferID       sql.NullInt64   `db:"offer_id"`
	IsConverted   bool            `db:"is_converted"`
	CreatedAt     string          `db:"created_at"`
	RetailerShare sql.NullFloat64 `db:"retailer_share"`
	OfferShare    sql.NullFloat64 `db:"offer_share"`
}

type RetailerStorageEntry struct {
	ID            int64           `db:"id"`
	Name          string          `db:"name"`
	AffiliateURL  string          `db:"affiliate_url"`
	CashbackShare sql.NullFloat64 `db:"cashback_share"`
	IsActive      bool            `db:"is_active"`
}

type OfferStorageEntry struct {
	ID            int64           `db:"id"`
	RetailerID    int64           `db:"retailer_id"`
	AffiliateURL  string          `db:"affiliate_url"`
	CashbackShare sql.NullFloat64 `db:"cashback_share"`
	IsActive      bool            `db:"is_active"`
}

type TransactionStorageEntry struct {
	ID             uint    `db:"id"`
	UserID         string  `db:"user_id"`
	RetailerID     int64   `db:"retailer_id"`
	ClickID        string  `db:"click_id"`
	OrderID        string  `db:"order_id"`
	SaleAmount     float64 `db:"sale_amount"`
	Commission     float64 `db:"commission"`
	CashbackAmount float64 `db:"cashback_amount"`
	Status         string  `db:"status"`
	RetailerName   string  `db:"retailer_name"`
	CreatedAt      string  `db:"created_at"`
	SettledAt      sql.NullString `db:"settled_at"`
}

type WithdrawalStorageEntry struct {
	ID                    uint           `db:"id"`
	WithdrawalID          string         `db:"withdrawal_id"`
	UserID                string         `db:"user_id"`
	Amount                float64        `db:"amount"`
	PaymentMethod         string         `db:"payment_method"`
	PaymentDetails        string         `db:"payment_details"`
	Status                string         `db:"status"`
	ExternalTransactionID sql.NullString `db:"external_tx_id"`
	Reason                sql.NullString `db:"reason"`
	RequestedAt           string         `db:"requested_at"`
	ProcessedAt           sql.NullString `db:"processed_at"`
	SettledAt             sql.NullString `db:"settled_at"`
}
