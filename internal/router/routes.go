package router

import (
	"net/http"
	"time"

	"github.com/AlenaMolokova/receiptbank/internal/handlers"
	"github.com/AlenaMolokova/receiptbank/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const (
	APIPrefix             = "/api"
	ReceiptsPath          = "/receipts"
	ReceiptStatsPath      = "/receipts/stats"
	BalancePath           = "/balance"
	WithdrawalsPath       = "/withdrawals"
	WithdrawRequestPath   = "/withdrawals/request"
	WithdrawalStatsPath   = "/withdrawals/stats/summary"
	WithdrawalPath        = "/withdrawals/{id}"
	PayoutCallbackPath    = "/payouts/callback"
	defaultRequestTimeout = 15 * time.Second
)

// Service is everything the HTTP layer needs from the ledger.
type Service interface {
	handlers.ReceiptService
	handlers.BalanceService
	handlers.WithdrawalService
	handlers.PayoutResultService
}

type Options struct {
	JWTSecret      string
	CallbackSecret string
	RequestTimeout time.Duration
}

func SetupRoutes(svc Service, opts Options, log zerolog.Logger) *chi.Mux {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(opts.RequestTimeout))

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(opts.JWTSecret))
		r.Post(APIPrefix+ReceiptsPath, handlers.NewReceiptSubmitHandler(svc).ServeHTTP)
		r.Get(APIPrefix+ReceiptsPath, handlers.NewReceiptsListHandler(svc).ServeHTTP)
		r.Get(APIPrefix+ReceiptStatsPath, handlers.NewReceiptStatsHandler(svc).ServeHTTP)
		r.Get(APIPrefix+BalancePath, handlers.NewBalanceHandler(svc).ServeHTTP)
		r.Post(APIPrefix+WithdrawRequestPath, handlers.NewWithdrawHandler(svc).ServeHTTP)
		r.Get(APIPrefix+WithdrawalsPath, handlers.NewWithdrawalsHandler(svc).ServeHTTP)
		r.Get(APIPrefix+WithdrawalStatsPath, handlers.NewWithdrawalStatsHandler(svc).ServeHTTP)
		r.Get(APIPrefix+WithdrawalPath, handlers.NewWithdrawalGetHandler(svc).ServeHTTP)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.CallbackAuth(opts.CallbackSecret))
		r.Post(APIPrefix+PayoutCallbackPath, handlers.NewPayoutCallbackHandler(svc).ServeHTTP)
	})

	return r
}
