package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rbravo-MCR/car-rental-reservations/internal/config"
	"github.com/rbravo-MCR/car-rental-reservations/internal/gateway"
	"github.com/rbravo-MCR/car-rental-reservations/internal/handler"
	"github.com/rbravo-MCR/car-rental-reservations/internal/repository"
	"github.com/rbravo-MCR/car-rental-reservations/internal/service"
	"github.com/rbravo-MCR/car-rental-reservations/pkg/database"
	"github.com/rbravo-MCR/car-rental-reservations/pkg/logger"
	pkgredis "github.com/rbravo-MCR/car-rental-reservations/pkg/redis"
	"github.com/rbravo-MCR/car-rental-reservations/pkg/telemetry"
)

const serviceName = "reservations-api"

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
	appLog.Info("Starting reservations API...")

	ctx := context.Background()

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

	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, &pkgredis.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			appLog.Warn("Redis connection failed, offer caching disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			appLog.Info("Redis connected")
		}
	}

	pool := db.Pool()
	reservationRepo := repository.NewPostgresReservationRepository(pool)
	paymentRepo := repository.NewPostgresPaymentRepository(pool)
	supplierRequestRepo := repository.NewPostgresSupplierRequestRepository(pool)
	outboxRepo := repository.NewPostgresOutboxRepository(pool)
	idempotencyRepo := repository.NewPostgresIdempotencyRepository(pool)
	catalogRepo := repository.NewPostgresCatalogRepository(pool)

	stripeGW, err := gateway.NewStripeGateway(&gateway.StripeGatewayConfig{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	})
	if err != nil {
		appLog.Fatal("Failed to build Stripe gateway", zap.Error(err))
	}

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

	reservationSvc := service.NewReservationService(
		pool,
		reservationRepo,
		paymentRepo,
		supplierRequestRepo,
		outboxRepo,
		idempotencyRepo,
		catalogRepo,
		stripeGW,
		suppliers,
		&service.ReservationServiceConfig{
			PaymentTimeout:  cfg.Booking.PaymentTimeout,
			SupplierTimeout: cfg.Booking.SupplierTimeout,
		},
	)
	availabilitySvc := service.NewAvailabilityService(reservationRepo, catalogRepo, suppliers, redisClient, &service.AvailabilityServiceConfig{
		CacheTTL:        cfg.Booking.OfferCacheTTL,
		SupplierTimeout: cfg.Booking.SupplierTimeout,
	})

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handler.NewRouter(
		&handler.RouterConfig{ServiceName: serviceName, Version: cfg.App.Version},
		handler.NewHealthHandler(db, redisClient, outboxRepo),
		handler.NewReservationHandler(reservationSvc, idempotencyRepo),
		handler.NewAvailabilityHandler(availabilitySvc),
		handler.NewWebhookHandler(stripeGW, reservationSvc),
	)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		appLog.Info("Reservations API listening", zap.String("addr", cfg.Server.Addr()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal("Server forced to shutdown", zap.Error(err))
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		appLog.Warn("Telemetry shutdown failed", zap.Error(err))
	}

	appLog.Info("Server exited gracefully")
}
