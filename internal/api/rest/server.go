// Package rest provides functionality for initializing a server.
package rest

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/akarpov/ak-go-cashback/internal/api/rest/client"
	"github.com/akarpov/ak-go-cashback/internal/api/rest/handlers"
	"github.com/akarpov/ak-go-cashback/internal/api/rest/middleware"
	"github.com/akarpov/ak-go-cashback/internal/config"
	"github.com/akarpov/ak-go-cashback/internal/models/modelqueue"
	"github.com/akarpov/ak-go-cashback/internal/service/broker/v1/broker"
	"github.com/akarpov/ak-go-cashback/internal/service/cashback"
	"github.com/akarpov/ak-go-cashback/internal/service/guard/v1/guard"
	"github.com/akarpov/ak-go-cashback/internal/service/processor/v1/processor"
	"github.com/akarpov/ak-go-cashback/internal/service/secretary/v1/secretary"
	"github.com/akarpov/ak-go-cashback/internal/storage/v1/inpsql"
	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// InitServer returns a http.Server object ready to be listening and serving.
func InitServer(ctx context.Context, cfg *config.Config, log *zerolog.Logger, wg *sync.WaitGroup) (server *http.Server, err error) {
	// initialize secretary
	secretaryService, err := secretary.NewSecretaryService(cfg.SecretConfig)
	if err != nil {
		return nil, err
	}

	// initialize middleware handlers
	tokenHandler, err := middleware.NewTokenHandler(secretaryService, cfg.SecretConfig)
	if err != nil {
		return nil, err
	}
	apiKeyHandler, err := middleware.NewAPIKeyHandler(cfg.ServerConfig)
	if err != nil {
		return nil, err
	}
	signatureHandler, err := middleware.NewSignatureHandler(cfg.PayoutConfig)
	if err != nil {
		return nil, err
	}

	// initialize storage
	storage, err := inpsql.InitStorage(ctx, cfg.StorageConfig, log)
	if err != nil {
		return nil, err
	}

	// initialize duplicate event guard
	guardService := guard.InitGuard(cfg.RedisConfig.RedisAddress, log)

	// initialize payout provider client
	payoutClient := client.InitClient(cfg.PayoutConfig, log)

	// initialize cashback share policy
	policy := cashback.NewPolicy(cfg.CashbackConfig.Share)

	// initialize main service
	payoutQueue := make(chan modelqueue.PayoutQueueEntry, 100)
	mainService, err := processor.InitService(storage, secretaryService, guardService, payoutClient, policy, cfg.CashbackConfig, payoutQueue, log)
	if err != nil {
		return nil, err
	}

	// initialize payout status poller
	brokerService := broker.InitBroker(ctx, payoutQueue, payoutClient, mainService, cfg.QueueConfig.WorkerNumber, cfg.QueueConfig.RetryNumber, log, wg)
	brokerService.ListenAndProcess()

	// requeue payouts that were in flight when the previous process stopped
	inflight, err := storage.GetProcessingWithdrawals(ctx)
	if err != nil {
		return nil, err
	}
	for _, entry := range inflight {
		payoutQueue <- modelqueue.PayoutQueueEntry{
			WithdrawalID: entry.WithdrawalID,
			ExternalID:   entry.ExternalTransactionID.String,
		}
	}

	// initialize handlers
	urlHandler, err := handlers.InitHandlers(mainService, cfg.ServerConfig, log)
	if err != nil {
		return nil, err
	}

	// initialize server and set routing
	r := chi.NewRouter()
	loginGroup := r.Group(nil)
	callbackGroup := r.Group(nil)
	webhookGroup := r.Group(nil)
	mainGroup := r.Group(nil)
	adminGroup := r.Group(nil)
	callbackGroup.Use(apiKeyHandler.APIKeyHandle)
	webhookGroup.Use(signatureHandler.SignatureHandle)
	mainGroup.Use(tokenHandler.TokenHandle)
	adminGroup.Use(tokenHandler.AdminHandle)
	loginGroup.Post("/api/user/register", urlHandler.HandleRegister())
	loginGroup.Post("/api/user/login", urlHandler.HandleLogin())
	loginGroup.Get("/metrics", promhttp.Handler().ServeHTTP)
	callbackGroup.Post("/api/callback/postback", urlHandler.HandlePostback())
	callbackGroup.Post("/api/callback/status", urlHandler.HandleStatusUpdate())
	webhookGroup.Post("/api/webhook/payout", urlHandler.HandlePayoutWebhook())
	mainGroup.Post("/api/user/clicks", urlHandler.HandleNewClick())
	mainGroup.Get("/api/user/transactions", urlHandler.HandleGetTransactions())
	mainGroup.Get("/api/user/balance", urlHandler.HandleGetBalance())
	mainGroup.Post("/api/user/balance/withdraw", urlHandler.HandleNewWithdrawal())
	mainGroup.Get("/api/user/balance/withdrawals", urlHandler.HandleGetWithdrawals())
	adminGroup.Post("/api/admin/withdrawals/{withdrawalID}/approve", urlHandler.HandleApproveWithdrawal())
	adminGroup.Post("/api/admin/withdrawals/{withdrawalID}/fail", urlHandler.HandleFailWithdrawal())
	adminGroup.Post("/api/admin/withdrawals/{withdrawalID}/cancel", urlHandler.HandleCancelWithdrawal())
	adminGroup.Post("/api/admin/transactions/{orderID}/cancel", urlHandler.HandleCancelTransaction())

	srv := &http.Server{
		Addr:         cfg.ServerConfig.ServerAddress,
		Handler:      r,
		IdleTimeout:  60 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return srv, nil
}
