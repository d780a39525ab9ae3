// Package client implements a client for the external payout provider API.
package client

import (
	"context"
	"fmt"
	"math"

	"github.com/akarpov/ak-go-cashback/internal/config"
	"github.com/akarpov/ak-go-cashback/internal/metrics"
	"github.com/akarpov/ak-go-cashback/internal/models/modeldto"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// PayoutGateway defines the payout provider contract consumed by the
// settlement service and the status poller.
type PayoutGateway interface {
	CreatePayout(ctx context.Context, withdrawalID string, amount float64, method string, details modeldto.PaymentDetails) (string, error)
	GetPayout(ctx context.Context, externalID string) (*modeldto.PayoutEntity, error)
}

// Client defines attributes of a struct available to its methods.
type Client struct {
	client *resty.Client
	cfg    *config.PayoutConfig
	log    *zerolog.Logger
}

type payoutCreateRequest struct {
	AccountNumber string            `json:"account_number"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Mode          string            `json:"mode"`
	Purpose       string            `json:"purpose"`
	FundAccount   fundAccount       `json:"fund_account"`
	Notes         map[string]string `json:"notes"`
}

type fundAccount struct {
	AccountType string                   `json:"account_type"`
	BankAccount *modeldto.PaymentDetails `json:"bank_account,omitempty"`
}

// InitClient initializes a resty client for the payout provider.
func InitClient(cfg *config.PayoutConfig, log *zerolog.Logger) *Client {
	payoutClient := resty.New().SetBaseURL(cfg.Address).SetBasicAuth(cfg.KeyID, cfg.KeySecret)
	log.Info().Msg("payout provider client initialized")
	return &Client{client: payoutClient, cfg: cfg, log: log}
}

// CreatePayout requests an external payout for a withdrawal. The amount is
// submitted in minor currency units and the withdrawal identifier travels in
// the notes block so that webhook events can be correlated back.
func (c *Client) CreatePayout(ctx context.Context, withdrawalID string, amount float64, method string, details modeldto.PaymentDetails) (string, error) {
	body := payoutCreateRequest{
		AccountNumber: c.cfg.AccountNumber,
		Amount:        int64(math.Round(amount * 100)),
		Currency:      c.cfg.Currency,
		Mode:          payoutMode(method),
		Purpose:       "payout",
		FundAccount:   fundAccount{AccountType: method, BankAccount: &details},
		Notes:         map[string]string{"withdrawal_id": withdrawalID},
	}
	var entity modeldto.PayoutEntity
	response, err := c.client.R().SetContext(ctx).SetBody(body).SetResult(&entity).Post("/v1/payouts")
	if err != nil {
		metrics.PayoutRequests.WithLabelValues("create", "error").Inc()
		c.log.Err(err).Msg(fmt.Sprintf("payout creation failed for withdrawal %s", withdrawalID))
		return "", err
	}
	if response.IsError() {
		metrics.PayoutRequests.WithLabelValues("create", "error").Inc()
		err = fmt.Errorf("payout creation rejected with status %d", response.StatusCode())
		c.log.Err(err).Msg(fmt.Sprintf("payout creation failed for withdrawal %s", withdrawalID))
		return "", err
	}
	metrics.PayoutRequests.WithLabelValues("create", "ok").Inc()
	c.log.Info().Msg(fmt.Sprintf("payout %s created for withdrawal %s", entity.ID, withdrawalID))
	return entity.ID, nil
}

// GetPayout retrieves the provider-side state of a payout.
func (c *Client) GetPayout(ctx context.Context, externalID string) (*modeldto.PayoutEntity, error) {
	var entity modeldto.PayoutEntity
	response, err := c.client.R().SetContext(ctx).SetResult(&entity).
		SetPathParams(map[string]string{"payoutID": externalID}).Get("/v1/payouts/{payoutID}")
	if err != nil {
		metrics.PayoutRequests.WithLabelValues("get", "error").Inc()
		c.log.Err(err).Msg(fmt.Sprintf("payout retrieval failed for %s", externalID))
		return nil, err
	}
	if response.IsError() {
		metrics.PayoutRequests.WithLabelValues("get", "error").Inc()
		err = fmt.Errorf("payout retrieval rejected with status %d", response.StatusCode())
		c.log.Err(err).Msg(fmt.Sprintf("payout retrieval failed for %s", externalID))
		return nil, err
	}
	metrics.PayoutRequests.WithLabelValues("get", "ok").Inc()
	return &entity, nil
}

func payoutMode(method string) string {
	switch method {
	case "card":
		return "card"
	case "paypal":
		return "wallet"
	default:
		return "IMPS"
	}
}
