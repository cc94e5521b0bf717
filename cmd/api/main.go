package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rentledger/internal/config"
	"rentledger/internal/domain/gatewayconfig"
	"rentledger/internal/gateway"
	"rentledger/internal/gateway/jenga"
	"rentledger/internal/gateway/kopokopo"
	"rentledger/internal/gateway/mpesa"
	httpx "rentledger/internal/http"
	"rentledger/internal/initiate"
	"rentledger/internal/notify"
	"rentledger/internal/ratelimit"
	"rentledger/internal/reconcile"
	"rentledger/internal/store/postgres"
	"rentledger/internal/sweep"
	"rentledger/internal/vault"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := postgres.MustOpen(ctx, cfg.DB.DSN)
	defer pool.Close()

	configs := postgres.NewGatewayConfigRepo(pool)
	landlords := postgres.NewLandlordRepo(pool)
	invoices := postgres.NewInvoiceRepo(pool)
	transactions := postgres.NewTransactionRepo(pool)
	payments := postgres.NewPaymentRepo(pool)
	claims := postgres.NewCallbackClaimRepo(pool)
	ledger := postgres.NewLedgerRepo(pool)
	notifications := postgres.NewNotificationRepo(pool)
	tokens := postgres.NewTokenRepo(pool)

	resolver := vault.NewResolver(configs, landlords, invoices, cfg)

	var sms notify.SMSSender = notify.NoopSMS{}
	if cfg.Notify.SMSEndpoint != "" {
		sms = notify.NewHTTPSMSSender(cfg.Notify.SMSEndpoint)
	}
	dispatcher := notify.NewDispatcher(notifications, sms, landlords)

	engine := reconcile.NewEngine(
		reconcile.NewMatcher(transactions),
		reconcile.NewGuard(claims, payments),
		invoices, transactions, ledger, dispatcher,
	)

	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.Sec.RateLimitPerMin, time.Minute)
	}

	timeout := cfg.Payments.GatewayTimeout
	pushers := map[gatewayconfig.Kind]gateway.Pusher{
		gatewayconfig.KindMpesaCustom:   mpesa.New(timeout),
		gatewayconfig.KindMpesaPlatform: mpesa.New(timeout),
		gatewayconfig.KindJenga:         jenga.New(timeout),
		gatewayconfig.KindKopoKopo:      kopokopo.New(timeout),
	}
	initiator := initiate.NewService(resolver, invoices, transactions, pushers,
		limiter, cfg.Payments.AmountCeiling, cfg.App.CallbackBaseURL)

	worker := sweep.NewWorker(transactions, dispatcher, cfg.Payments.SweepEvery, cfg.Payments.SweepStaleAge)
	go worker.Run(ctx)

	r := httpx.NewRouter(httpx.RouterDependencies{
		Config:       cfg,
		Initiator:    initiator,
		Engine:       engine,
		Resolver:     resolver,
		Configs:      configs,
		Transactions: transactions,
		Payments:     payments,
		Tokens:       tokens,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Msgf("RentLedger API listening on :%s", cfg.App.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	cancel()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	log.Info().Msg("server stopped")
}
