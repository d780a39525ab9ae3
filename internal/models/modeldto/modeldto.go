// Package modeldto provides types for data transfer between the API boundary
// and the settlement service.
package modeldto

type (
	// User carries register/login credentials.
	User struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	// Balance is the two-bucket user balance.
	Balance struct {
		PendingAmount   float64 `json:"pending"`
		AvailableAmount float64 `json:"available"`
	}
	// Postback is an affiliate network sale notification.
	Postback struct {
		ClickID    string  `json:"clickId"`
		OrderID    string  `json:"orderId"`
		SaleAmount float64 `json:"saleAmount"`
		Commission float64 `json:"commission"`
	}
	// StatusUpdate is an affiliate network transaction status event.
	StatusUpdate struct {
		OrderID string `json:"orderId"`
		Status  string `json:"status"`
	}
	// NewClick is a click tracking request.
	NewClick struct {
		RetailerID int64 `json:"retailerId"`
		OfferID    int64 `json:"offerId,omitempty"`
	}
	// ClickRedirect is the click tracking response.
	ClickRedirect struct {
		ClickID     string `json:"clickId"`
		RedirectURL string `json:"redirectUrl"`
	}
	// Transaction is a reported sale as presented to the owning user.
	Transaction struct {
		OrderID        string  `json:"orderId"`
		RetailerName   string  `json:"retailer"`
		SaleAmount     float64 `json:"saleAmount"`
		CashbackAmount float64 `json:"cashbackAmount"`
		Status         string  `json:"status"`
		CreatedAt      string  `json:"createdAt"`
	}
	// PaymentDetails carries method-specific payout destination fields.
	PaymentDetails struct {
		AccountName   string `json:"accountName,omitempty"`
		AccountNumber string `json:"accountNumber,omitempty"`
		BankName      string `json:"bankName,omitempty"`
		PayPalEmail   string `json:"paypalEmail,omitempty"`
		CardNumber    string `json:"cardNumber,omitempty"`
	}
	// NewWithdrawal is a user payout request.
	NewWithdrawal struct {
		Amount         float64        `json:"amount"`
		PaymentMethod  string         `json:"paymentMethod"`
		PaymentDetails PaymentDetails `json:"paymentDetails"`
	}
	// Withdrawal is a payout request as presented to the owning user.
	Withdrawal struct {
		ID                    string  `json:"id"`
		Amount                float64 `json:"amount"`
		PaymentMethod         string  `json:"paymentMethod"`
		Status                string  `json:"status"`
		ExternalTransactionID string  `json:"externalTransactionId,omitempty"`
		Reason                string  `json:"reason,omitempty"`
		RequestedAt           string  `json:"requestedAt"`
	}
	// CallbackResponse acknowledges affiliate and provider callbacks.
	CallbackResponse struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
)

// PayoutEvent is the payout provider webhook envelope. The notes block of the
// payout entity carries back the withdrawal identifier embedded on creation.
type PayoutEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payout struct {
			Entity PayoutEntity `json:"entity"`
		} `json:"payout"`
	} `json:"payload"`
}

// PayoutEntity is the provider-side payout referenced by a webhook event.
type PayoutEntity struct {
	ID            string `json:"id"`
	Status        string `json:"status,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
	Notes         struct {
		WithdrawalID string `json:"withdrawal_id"`
	} `json:"notes"`
}
