package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"rentledger/internal/config"
	"rentledger/internal/http/handlers"
	middlewarex "rentledger/internal/http/middleware"
	"rentledger/internal/initiate"
	"rentledger/internal/reconcile"
	"rentledger/internal/store/repositories"
	"rentledger/internal/vault"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RouterDependencies holds everything the HTTP surface needs.
type RouterDependencies struct {
	Config       config.Cfg
	Initiator    *initiate.Service
	Engine       *reconcile.Engine
	Resolver     *vault.Resolver
	Configs      repositories.GatewayConfigRepository
	Transactions repositories.TransactionRepository
	Payments     repositories.PaymentRepository
	Tokens       repositories.TokenRepository
}

func NewRouter(deps RouterDependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	// Admin surface: gateway-config registration, guarded by the static
	// admin token.
	r.Route("/admin", func(r chi.Router) {
		r.Use(middlewarex.AdminAuth(deps.Config.Sec.AdminToken))
		r.Post("/gateway-configs", handlers.SaveGatewayConfig(deps.Configs, deps.Config.Sec.AESKey))
		r.Get("/landlords/{landlordID}/gateway-configs", handlers.ListGatewayConfigs(deps.Configs))
	})

	// Authenticated API.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarex.TokenAuth(deps.Tokens))
		r.Post("/payments/initiate", handlers.InitiatePayment(deps.Initiator, deps.Config.Payments.GatewayTimeout))
		r.Get("/transactions", handlers.ListTransactions(deps.Transactions))
		r.Get("/payments", handlers.ListPayments(deps.Payments))
	})

	// Gateway callbacks: public endpoints, each rail verified its own way.
	r.Route("/hooks", func(r chi.Router) {
		r.Post("/mpesa/{shortcode}", handlers.MpesaCallback(deps.Engine, deps.Configs, deps.Config.Platform.Shortcode))
		r.Post("/jenga", handlers.JengaIPN(deps.Engine, deps.Configs, deps.Resolver))
		r.Post("/kopokopo", handlers.KopoKopoWebhook(deps.Engine, deps.Configs, deps.Resolver))
	})

	return r
}
