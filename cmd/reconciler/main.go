package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CharlesNJoroge8822/space-bookings/internal/adapters/postgres"
	"github.com/CharlesNJoroge8822/space-bookings/internal/clients/bookings"
	"github.com/CharlesNJoroge8822/space-bookings/internal/clients/daraja"
	"github.com/CharlesNJoroge8822/space-bookings/internal/clients/spaces"
	"github.com/CharlesNJoroge8822/space-bookings/internal/config"
	"github.com/CharlesNJoroge8822/space-bookings/internal/observability"
	"github.com/CharlesNJoroge8822/space-bookings/internal/payment"
	"github.com/CharlesNJoroge8822/space-bookings/internal/reconcile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PGDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := postgres.NewRepository(pool)

	catalog := spaces.NewClient(cfg.SpacesBaseURL, cfg.StoreToken)
	ledger := bookings.NewClient(cfg.BookingsBaseURL, cfg.StoreToken)
	gateway := daraja.NewClient(cfg.DarajaBaseURL)
	payments := payment.NewInitiator(gateway, repo, logger)

	rec := reconcile.New(catalog, ledger, repo, payments, logger, cfg.PaymentTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go rec.Run(ctx, cfg.ReconcileInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown reconciler")
}
