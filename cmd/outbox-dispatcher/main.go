package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rbravo-MCR/car-rental-reservations/internal/config"
	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
	"github.com/rbravo-MCR/car-rental-reservations/internal/gateway"
	"github.com/rbravo-MCR/car-rental-reservations/internal/repository"
	"github.com/rbravo-MCR/car-rental-reservations/internal/service"
	"github.com/rbravo-MCR/car-rental-reservations/internal/worker"
	"github.com/rbravo-MCR/car-rental-reservations/pkg/database"
	"github.com/rbravo-MCR/car-rental-reservations/pkg/kafka"
	"github.com/rbravo-MCR/car-rental-reservations/pkg/logger"
	"github.com/rbravo-MCR/car-rental-reservations/pkg/telemetry"
)

const serviceName = "reservations-outbox-dispatcher"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(&logger.Config{
		Level:       "info",
		ServiceName: serviceName,
		Development: cfg.App.IsDevelopment(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting outbox dispatcher...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
	}); err != nil {
		appLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	db, err := database.Connect(ctx, &database.Config{
		URL:             cfg.Database.URL,
		PoolSize:        cfg.Database.PoolSize,
		Overflow:        cfg.Database.Overflow,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		EnableTracing:   cfg.Database.EnableTracing,
	})
	if err != nil {
		appLog.Fatal("Database connection failed", zap.Error(err))
	}
	defer db.Close()
	appLog.Info("Database connected")

	pool := db.Pool()
	outboxRepo := repository.NewPostgresOutboxRepository(pool)
	idempotencyRepo := repository.NewPostgresIdempotencyRepository(pool)

	dispatcher := worker.NewOutboxDispatcher(outboxRepo, &worker.Config{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
	})

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(ctx, &kafka.Config{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID,
		})
		if err != nil {
			appLog.Fatal("Kafka connection failed", zap.Error(err))
		}
		defer producer.Close()
		appLog.Info("Kafka producer connected", zap.String("topic", cfg.Kafka.Topic))
		dispatcher.HandleDefault(worker.KafkaPublisher(producer, cfg.Kafka.Topic))
	} else {
		// Without a broker, events are logged and acknowledged so the
		// table does not grow without bound in local setups.
		dispatcher.HandleDefault(func(ctx context.Context, event *domain.OutboxEvent) error {
			appLog.Info("Outbox event",
				zap.String("event_type", event.EventType),
				zap.String("aggregate_id", event.AggregateID))
			return nil
		})
	}

	reconciliation := service.NewReconciliationService(
		pool,
		repository.NewPostgresReservationRepository(pool),
		repository.NewPostgresSupplierRequestRepository(pool),
		outboxRepo,
		repository.NewPostgresCatalogRepository(pool),
		buildSupplierFactory(cfg),
		&service.ReconciliationServiceConfig{
			MinAge:          cfg.Reconciliation.MinAge,
			SupplierTimeout: cfg.Booking.SupplierTimeout,
		},
	)

	dispatcher.Start(ctx)

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		ticker := time.NewTicker(cfg.Reconciliation.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				repaired, err := reconciliation.Sweep(ctx, cfg.Reconciliation.BatchSize)
				if err != nil {
					appLog.Error("Reconciliation sweep failed", zap.Error(err))
				} else if repaired > 0 {
					appLog.Info("Reconciliation sweep repaired reservations", zap.Int("repaired", repaired))
				}

				dropped, err := idempotencyRepo.DeleteExpired(ctx, cfg.Idempotency.TTL)
				if err != nil {
					appLog.Error("Idempotency cleanup failed", zap.Error(err))
				} else if dropped > 0 {
					appLog.Info("Idempotency records expired", zap.Int64("dropped", dropped))
				}
			}
		}
	}()

	<-ctx.Done()
	appLog.Info("Shutting down dispatcher...")

	dispatcher.Stop()
	<-sweepDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		appLog.Warn("Telemetry shutdown failed", zap.Error(err))
	}

	appLog.Info("Dispatcher exited gracefully")
}

func buildSupplierFactory(cfg *config.Config) *gateway.SupplierFactory {
	suppliers := gateway.NewSupplierFactory()
	suppliers.Register("LOCALIZA", func() (gateway.SupplierGateway, error) {
		return gateway.NewLocalizaGateway(&gateway.LocalizaConfig{
			BaseURL:      cfg.Localiza.BaseURL,
			AuthURL:      cfg.Localiza.AuthURL,
			ClientID:     cfg.Localiza.ClientID,
			ClientSecret: cfg.Localiza.ClientSecret,
			Timeout:      cfg.Localiza.Timeout,
		})
	})
	return suppliers
}
