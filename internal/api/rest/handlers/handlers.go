// Package handlers provides API endpoint handling functionality.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	handlersErrors "github.com/akarpov/ak-go-cashback/internal/api/rest/errors"
	"github.com/akarpov/ak-go-cashback/internal/config"
	"github.com/akarpov/ak-go-cashback/internal/models/modeldto"
	"github.com/akarpov/ak-go-cashback/internal/service/processor/v1"
	serviceErrors "github.com/akarpov/ak-go-cashback/internal/service/processor/v1/errors"
	storageErrors "github.com/akarpov/ak-go-cashback/internal/storage/v1/errors"
	"github.com/go-chi/chi"
	"github.com/rs/zerolog"
)

// Handler defines attributes of a struct available to its methods.
type Handler struct {
	service      processor.Processor
	serverConfig *config.ServerConfig
	log          *zerolog.Logger
}

// InitHandlers initializes a handler object.
func InitHandlers(mainService processor.Processor, serverConfig *config.ServerConfig, log *zerolog.Logger) (*Handler, error) {
	if mainService == nil {
		return nil, &handlersErrors.HandlersFoundNilArgument{Msg: "nil processor was passed to handlers initializer"}
	}
	return &Handler{service: mainService, serverConfig: serverConfig, log: log}, nil
}

// HandleRegister processes user register requests.
func (h *Handler) HandleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "Invalid Content-Type", http.StatusBadRequest)
		}
		b, err := io.ReadAll(r.Body)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleRegister failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var credentials modeldto.User
		err = json.Unmarshal(b, &credentials)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleRegister failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(credentials.Login) == 0 || len(credentials.Password) == 0 {
			h.log.Error().Msg("HandleRegister failed")
			http.Error(w, "Empty values are not allowed", http.StatusBadRequest)
			return
		}
		h.log.Info().Msg(fmt.Sprintf("new user register request detected for %s", credentials.Login))
		accessToken, err := h.service.AddNewUser(ctx, credentials)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleRegister failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			var alreadyExistsError *storageErrors.AlreadyExistsError
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else if errors.As(err, &alreadyExistsError) {
				w.WriteHeader(http.StatusConflict)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		w.Header().Set("Authorization", "Bearer "+accessToken)
		w.WriteHeader(http.StatusOK)
	}
}

// HandleLogin processes user login requests.
func (h *Handler) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "Invalid Content-Type", http.StatusBadRequest)
		}
		b, err := io.ReadAll(r.Body)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleLogin failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var credentials modeldto.User
		err = json.Unmarshal(b, &credentials)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleLogin failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if credentials.Login == "" || credentials.Password == "" {
			h.log.Error().Msg("HandleLogin failed")
			http.Error(w, "Empty values are not allowed", http.StatusBadRequest)
			return
		}
		h.log.Info().Msg(fmt.Sprintf("new login request detected for %s", credentials.Login))
		accessToken, err := h.service.LoginUser(ctx, credentials)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleLogin failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			var notFoundError *storageErrors.NotFoundError
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else if errors.As(err, &notFoundError) {
				w.WriteHeader(http.StatusUnauthorized)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		w.Header().Set("Authorization", "Bearer "+accessToken)
		w.WriteHeader(http.StatusOK)
	}
}

// HandleGetBalance processes balance query requests.
func (h *Handler) HandleGetBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		userID, err := h.getUserID(r)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetBalance failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		balance, err := h.service.GetBalance(ctx, userID)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetBalance failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resBody, err := json.Marshal(balance)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetBalance failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, err = w.Write(resBody)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetBalance failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// HandleGetTransactions processes cashback transaction listing requests.
func (h *Handler) HandleGetTransactions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		userID, err := h.getUserID(r)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetTransactions failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		transactions, err := h.service.GetTransactions(ctx, userID)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetTransactions failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if len(transactions) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		resBody, err := json.Marshal(transactions)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetTransactions failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, err = w.Write(resBody)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetTransactions failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// HandleGetWithdrawals processes withdrawals query requests.
func (h *Handler) HandleGetWithdrawals() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		userID, err := h.getUserID(r)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetWithdrawals failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		withdrawals, err := h.service.GetWithdrawals(ctx, userID)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetWithdrawals failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if len(withdrawals) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		resBody, err := json.Marshal(withdrawals)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetWithdrawals failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, err = w.Write(resBody)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetWithdrawals failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// HandleNewClick processes outbound click registration requests.
func (h *Handler) HandleNewClick() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		userID, err := h.getUserID(r)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewClick failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "Invalid Content-Type", http.StatusBadRequest)
		}
		b, err := io.ReadAll(r.Body)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewClick failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var newClick modeldto.NewClick
		err = json.Unmarshal(b, &newClick)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewClick failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if newClick.RetailerID == 0 {
			http.Error(w, "Retailer identifier is required", http.StatusBadRequest)
			return
		}
		redirect, err := h.service.RegisterClick(ctx, userID, newClick)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewClick failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			var notFoundError *storageErrors.NotFoundError
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else if errors.As(err, &notFoundError) {
				http.Error(w, err.Error(), http.StatusNotFound)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		resBody, err := json.Marshal(redirect)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewClick failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, err = w.Write(resBody)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewClick failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// HandleNewWithdrawal processes new withdrawal requests.
func (h *Handler) HandleNewWithdrawal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		userID, err := h.getUserID(r)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewWithdrawal failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "Invalid Content-Type", http.StatusBadRequest)
		}
		b, err := io.ReadAll(r.Body)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewWithdrawal failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var newWithdrawal modeldto.NewWithdrawal
		err = json.Unmarshal(b, &newWithdrawal)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewWithdrawal failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Info().Msg(fmt.Sprintf("new withdrawal request detected for %.2f via %s", newWithdrawal.Amount, newWithdrawal.PaymentMethod))
		withdrawal, err := h.service.RequestWithdrawal(ctx, userID, newWithdrawal)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewWithdrawal failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			var serviceBelowMinimumAmount *serviceErrors.ServiceBelowMinimumAmount
			var serviceIllegalPaymentDetails *serviceErrors.ServiceIllegalPaymentDetails
			var serviceNotEnoughFunds *serviceErrors.ServiceNotEnoughFunds
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else if errors.As(err, &serviceBelowMinimumAmount) || errors.As(err, &serviceIllegalPaymentDetails) || errors.As(err, &serviceNotEnoughFunds) {
				http.Error(w, err.Error(), http.StatusBadRequest)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		resBody, err := json.Marshal(withdrawal)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewWithdrawal failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, err = w.Write(resBody)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewWithdrawal failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// HandlePostback processes affiliate network sale notifications. Events that
// cannot produce a transaction are still acknowledged so the network does not
// retry them.
func (h *Handler) HandlePostback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		b, err := io.ReadAll(r.Body)
		if err != nil {
			h.log.Error().Err(err).Msg("HandlePostback failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var postback modeldto.Postback
		err = json.Unmarshal(b, &postback)
		if err != nil {
			h.log.Error().Err(err).Msg("HandlePostback failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if postback.ClickID == "" || postback.OrderID == "" || postback.SaleAmount == 0 || postback.Commission == 0 {
			http.Error(w, "Click identifier, order identifier, sale amount and commission are required", http.StatusBadRequest)
			return
		}
		h.log.Info().Msg(fmt.Sprintf("postback detected for order %s, click %s", postback.OrderID, postback.ClickID))
		err = h.service.ProcessPostback(ctx, postback)
		if err != nil {
			var serviceUnknownClick *serviceErrors.ServiceUnknownClick
			var serviceDuplicateEvent *serviceErrors.ServiceDuplicateEvent
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			if errors.As(err, &serviceUnknownClick) {
				h.writeCallbackResponse(w, "success", "Postback received but not processed (no user).")
			} else if errors.As(err, &serviceDuplicateEvent) {
				h.writeCallbackResponse(w, "success", "Duplicate transaction.")
			} else if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else {
				h.log.Error().Err(err).Msg("HandlePostback failed")
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		h.writeCallbackResponse(w, "success", "Transaction recorded.")
	}
}

// HandleStatusUpdate processes affiliate network transaction status events.
func (h *Handler) HandleStatusUpdate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		b, err := io.ReadAll(r.Body)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleStatusUpdate failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var update modeldto.StatusUpdate
		err = json.Unmarshal(b, &update)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleStatusUpdate failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if update.OrderID == "" || update.Status == "" {
			http.Error(w, "Order identifier and status are required", http.StatusBadRequest)
			return
		}
		h.log.Info().Msg(fmt.Sprintf("status update detected for order %s, status %s", update.OrderID, update.Status))
		err = h.service.ProcessStatusUpdate(ctx, update)
		if err != nil {
			var serviceDuplicateEvent *serviceErrors.ServiceDuplicateEvent
			var serviceEventIgnored *serviceErrors.ServiceEventIgnored
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			if errors.As(err, &serviceDuplicateEvent) {
				h.writeCallbackResponse(w, "success", "Duplicate status update.")
			} else if errors.As(err, &serviceEventIgnored) {
				h.writeCallbackResponse(w, "success", "Status update received but not applied.")
			} else if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else {
				h.log.Error().Err(err).Msg("HandleStatusUpdate failed")
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		h.writeCallbackResponse(w, "success", "Status updated.")
	}
}

// HandlePayoutWebhook processes payout provider events. The provider retries
// non-2xx responses, hence benign outcomes are acknowledged with 200.
func (h *Handler) HandlePayoutWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		b, err := io.ReadAll(r.Body)
		if err != nil {
			h.log.Error().Err(err).Msg("HandlePayoutWebhook failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var event modeldto.PayoutEvent
		err = json.Unmarshal(b, &event)
		if err != nil {
			h.log.Error().Err(err).Msg("HandlePayoutWebhook failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Info().Msg(fmt.Sprintf("payout webhook detected for event %s", event.Event))
		err = h.service.ProcessPayoutEvent(ctx, event)
		if err != nil {
			var serviceDuplicateEvent *serviceErrors.ServiceDuplicateEvent
			var serviceEventIgnored *serviceErrors.ServiceEventIgnored
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			if errors.As(err, &serviceDuplicateEvent) {
				h.writeCallbackResponse(w, "ok", "Duplicate event.")
			} else if errors.As(err, &serviceEventIgnored) {
				h.writeCallbackResponse(w, "ok", "Event received but not applied.")
			} else if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else {
				h.log.Error().Err(err).Msg("HandlePayoutWebhook failed")
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		h.writeCallbackResponse(w, "ok", "Event processed.")
	}
}

// HandleApproveWithdrawal processes admin withdrawal approval requests.
func (h *Handler) HandleApproveWithdrawal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		withdrawalID := chi.URLParam(r, "withdrawalID")
		h.log.Info().Msg(fmt.Sprintf("withdrawal approval detected for %s", withdrawalID))
		withdrawal, err := h.service.ApproveWithdrawal(ctx, withdrawalID)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleApproveWithdrawal failed")
			var notFoundError *storageErrors.NotFoundError
			var serviceNotEligible *serviceErrors.ServiceNotEligible
			var servicePayoutGatewayError *serviceErrors.ServicePayoutGatewayError
			if errors.As(err, &notFoundError) {
				http.Error(w, err.Error(), http.StatusNotFound)
			} else if errors.As(err, &serviceNotEligible) {
				http.Error(w, err.Error(), http.StatusConflict)
			} else if errors.As(err, &servicePayoutGatewayError) {
				http.Error(w, err.Error(), http.StatusBadGateway)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		resBody, err := json.Marshal(withdrawal)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleApproveWithdrawal failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, err = w.Write(resBody)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleApproveWithdrawal failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// HandleFailWithdrawal processes admin withdrawal failure requests.
func (h *Handler) HandleFailWithdrawal() http.HandlerFunc {
	return h.handleAdminTermination("HandleFailWithdrawal", h.service.FailWithdrawal)
}

// HandleCancelWithdrawal processes admin withdrawal cancellation requests.
func (h *Handler) HandleCancelWithdrawal() http.HandlerFunc {
	return h.handleAdminTermination("HandleCancelWithdrawal", h.service.CancelWithdrawal)
}

func (h *Handler) handleAdminTermination(name string, action func(ctx context.Context, withdrawalID, reason string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		withdrawalID := chi.URLParam(r, "withdrawalID")
		var reqBody struct {
			Reason string `json:"reason"`
		}
		b, err := io.ReadAll(r.Body)
		if err != nil {
			h.log.Error().Err(err).Msg(name + " failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if len(b) > 0 {
			if err = json.Unmarshal(b, &reqBody); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		err = action(ctx, withdrawalID, reqBody.Reason)
		if err != nil {
			h.log.Error().Err(err).Msg(name + " failed")
			var notFoundError *storageErrors.NotFoundError
			var serviceNotEligible *serviceErrors.ServiceNotEligible
			if errors.As(err, &notFoundError) {
				http.Error(w, err.Error(), http.StatusNotFound)
			} else if errors.As(err, &serviceNotEligible) {
				http.Error(w, err.Error(), http.StatusConflict)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// HandleCancelTransaction processes admin transaction cancellation requests.
func (h *Handler) HandleCancelTransaction() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		orderID := chi.URLParam(r, "orderID")
		h.log.Info().Msg(fmt.Sprintf("transaction cancellation detected for order %s", orderID))
		err := h.service.CancelTransaction(ctx, orderID)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleCancelTransaction failed")
			var notFoundError *storageErrors.NotFoundError
			var serviceNotEligible *serviceErrors.ServiceNotEligible
			if errors.As(err, &notFoundError) {
				http.Error(w, err.Error(), http.StatusNotFound)
			} else if errors.As(err, &serviceNotEligible) {
				http.Error(w, err.Error(), http.StatusConflict)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (h *Handler) writeCallbackResponse(w http.ResponseWriter, status, message string) {
	resBody, err := json.Marshal(modeldto.CallbackResponse{Status: status, Message: message})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resBody)
}

// getUserID retrieves user identifier from the request metadata.
func (h *Handler) getUserID(r *http.Request) (string, error) {
	accessToken := r.Header.Get("Authorization")
	if len(accessToken) == 0 {
		return "", errors.New("token authorization required")
	}
	accessToken = strings.Replace(accessToken, "Bearer ", "", 1)
	userID, err := h.service.GetUserID(accessToken)
	if err != nil {
		return "", err
	}
	return userID, nil
}
