package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/go-chi/chi"
)

type Response struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type PayoutRequest struct {
	AccountNumber string            `json:"account_number"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Mode          string            `json:"mode"`
	Notes         map[string]string `json:"notes"`
}

type Payout struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Notes         map[string]string `json:"notes,omitempty"`
}

type ServerConfig struct {
	ServerAddress string `env:"PAYOUT_MOCK_ADDRESS"`
}

func NewServerConfig() (*ServerConfig, error) {
	cfg := ServerConfig{}
	err := env.Parse(&cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func isFlagPassed(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func (c *ServerConfig) ParseFlags() {
	a := flag.String("a", ":7070", "Server address")
	flag.Parse()
	if isFlagPassed("a") || c.ServerAddress == "" {
		c.ServerAddress = *a
	}
}

func HandleCreatePayout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// mock http status 500 error
		chance500 := 10
		if chance500 > rand.Intn(100) {
			log.Println("responding with error 500")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		b, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var request PayoutRequest
		err = json.Unmarshal(b, &request)
		if err != nil || request.Amount <= 0 {
			log.Println("responding with error 400")
			w.WriteHeader(http.StatusBadRequest)
			response400 := Response{
				Error: "Invalid payout request",
			}
			resBody, _ := json.Marshal(response400)
			w.Write(resBody)
			return
		}
		response200 := Payout{
			ID:     fmt.Sprintf("pout_%016x", rand.Int63()),
			Status: "queued",
			Notes:  request.Notes,
		}
		log.Println("responding with status 200 for payout", response200.ID)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		resBody, _ := json.Marshal(response200)
		w.Write(resBody)
	}
}

func HandleGetPayout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// mock http status 429 error
		chance429 := 10
		if chance429 > rand.Intn(100) {
			log.Println("responding with error 429")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			response429 := Response{
				Error: "No more than N requests per minute allowed",
			}
			resBody, _ := json.Marshal(response429)
			w.Write(resBody)
			return
		}
		payoutID := chi.URLParam(r, "payoutID")
		var response200 Payout
		switch rand.Intn(4) {
		case 0:
			response200 = Payout{
				ID:     payoutID,
				Status: "processed",
			}
		case 1:
			response200 = Payout{
				ID:            payoutID,
				Status:        "reversed",
				FailureReason: "Beneficiary account closed",
			}
		case 2:
			response200 = Payout{
				ID:     payoutID,
				Status: "queued",
			}
		case 3:
			response200 = Payout{
				ID:     payoutID,
				Status: "processing",
			}
		}
		log.Println("responding with status 200")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		resBody, _ := json.Marshal(response200)
		w.Write(resBody)
	}
}

func InitServer(cfg *ServerConfig) (server *http.Server, err error) {
	r := chi.NewRouter()
	r.Post("/v1/payouts", HandleCreatePayout())
	r.Get("/v1/payouts/{payoutID}", HandleGetPayout())
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      r,
		IdleTimeout:  60 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return srv, nil
}

func main() {
	cfg, err := NewServerConfig()
	if err != nil {
		log.Println(err)
	}
	cfg.ParseFlags()
	server, err := InitServer(cfg)
	if err != nil {
		log.Println(err)
	}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println(err)
	}
}
