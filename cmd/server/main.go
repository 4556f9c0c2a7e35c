// Command server runs the KYC verification service: HTTP API, status cache,
// and the outbox relay. main wires dependencies and owns the process
// lifecycle; business logic lives in the internal services.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	httpapi "keohams/internal/http"
	"keohams/internal/jwttoken"
	kycdocstore "keohams/internal/kyc/docstore"
	kychandler "keohams/internal/kyc/handler"
	kycmetrics "keohams/internal/kyc/metrics"
	kycservice "keohams/internal/kyc/service"
	kycstore "keohams/internal/kyc/store"
	"keohams/internal/outbox"
	"keohams/internal/platform/config"
	"keohams/internal/platform/httpserver"
	"keohams/internal/platform/logger"
	platformmetrics "keohams/internal/platform/metrics"
	platformredis "keohams/internal/platform/redis"
	riskhandler "keohams/internal/risk/handler"
	riskmetrics "keohams/internal/risk/metrics"
	riskservice "keohams/internal/risk/service"
	riskstore "keohams/internal/risk/store"
	verificationhandler "keohams/internal/verification/handler"
	verificationmetrics "keohams/internal/verification/metrics"
	verificationservice "keohams/internal/verification/service"
	verificationstore "keohams/internal/verification/store"
	"keohams/pkg/cache"
	txpkg "keohams/pkg/platform/tx"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	var statusCache cache.Cache
	if redisClient != nil {
		statusCache = cache.NewRedisCache(redisClient.Client, "verification:status", cfg.StatusCacheTTL)
		log.Info("status cache backed by redis")
	} else {
		statusCache = cache.NewLRU(cfg.StatusCacheCap, cfg.StatusCacheTTL)
		log.Info("status cache in-process", "capacity", cfg.StatusCacheCap)
	}

	docs, err := kycdocstore.NewDiskStore(cfg.UploadDir)
	if err != nil {
		log.Error("document store init failed", "error", err)
		os.Exit(1)
	}

	var publisher outbox.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher, err := outbox.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka connect failed", "error", err)
			os.Exit(1)
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.Info("outbox publishing to kafka", "topic", cfg.Kafka.Topic)
	} else {
		publisher = outbox.NewLogPublisher(log)
		log.Warn("no kafka brokers configured, outbox events are log-only")
	}

	txm := txpkg.NewSQLManager(db)
	stateMetrics := verificationmetrics.New()
	stateStore := verificationstore.NewPostgresStore(db, stateMetrics)
	eventStore := riskstore.NewPostgresStore(db)
	submissionStore := kycstore.NewPostgresStore(db)
	outboxStore := outbox.NewPostgresStore(db)

	verificationSvc := verificationservice.New(stateStore, txm, statusCache, log, stateMetrics)
	riskSvc := riskservice.New(eventStore, stateStore, outboxStore, txm, log, riskmetrics.New())
	kycSvc := kycservice.New(submissionStore, verificationSvc, riskSvc, outboxStore, txm, log, kycmetrics.New())

	validator := jwttoken.NewService(cfg.JWTSigningKey, cfg.JWTIssuer)

	router := httpapi.NewRouter(log, platformmetrics.New(),
		verificationhandler.New(verificationSvc, validator, log),
		kychandler.New(kycSvc, docs, validator, log),
		riskhandler.New(riskSvc, validator, log),
	)
	srv := httpserver.New(cfg.Addr, router)
	relay := outbox.NewWorker(outboxStore, publisher, log, cfg.Kafka.PollInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
