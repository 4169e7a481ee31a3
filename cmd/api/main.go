package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/CharlesNJoroge8822/space-bookings/internal/adapters/mongo"
	"github.com/CharlesNJoroge8822/space-bookings/internal/adapters/postgres"
	redisadapter "github.com/CharlesNJoroge8822/space-bookings/internal/adapters/redis"
	"github.com/CharlesNJoroge8822/space-bookings/internal/clients/bookings"
	"github.com/CharlesNJoroge8822/space-bookings/internal/clients/daraja"
	"github.com/CharlesNJoroge8822/space-bookings/internal/clients/spaces"
	"github.com/CharlesNJoroge8822/space-bookings/internal/config"
	httphandler "github.com/CharlesNJoroge8822/space-bookings/internal/http"
	"github.com/CharlesNJoroge8822/space-bookings/internal/idempotency"
	"github.com/CharlesNJoroge8822/space-bookings/internal/observability"
	"github.com/CharlesNJoroge8822/space-bookings/internal/orchestrator"
	"github.com/CharlesNJoroge8822/space-bookings/internal/payment"
	"github.com/CharlesNJoroge8822/space-bookings/internal/ratelimit"
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

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	audit := mongoadapter.NewAuditLogger(mongoClient.Database("spacebookings"), logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, time.Hour)
	rl := ratelimit.NewRateLimiter(redisCache)
	locker := redisadapter.NewSpaceLock(redisClient)

	catalog := spaces.NewClient(cfg.SpacesBaseURL, cfg.StoreToken)
	ledger := bookings.NewClient(cfg.BookingsBaseURL, cfg.StoreToken)
	gateway := daraja.NewClient(cfg.DarajaBaseURL)

	payments := payment.NewInitiator(gateway, repo, logger)

	orch := orchestrator.New(catalog, ledger, payments, locker, repo, audit, logger, orchestrator.Config{
		PollInterval:   cfg.PaymentPollInterval,
		PollMax:        cfg.PaymentPollMax,
		PaymentTimeout: cfg.PaymentTimeout,
		RetryBase:      cfg.RetryBase,
		RetryMax:       cfg.RetryMax,
		CommitRetryMax: cfg.CommitRetryMax,
		LockTTL:        cfg.SpaceLockTTL,
	})

	handlers := httphandler.NewHandlers(cfg, orch, catalog, idemp)
	r := httphandler.SetupRouter(handlers, logger, rl)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	// drain in-flight settlements before exit
	orch.Wait()
	logger.Info("Server exiting")
}
