package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-orders/internal/auth"
	"ms-orders/internal/config"
	"ms-orders/internal/contact"
	"ms-orders/internal/contact/contact_api"
	"ms-orders/internal/database/migrations"
	"ms-orders/internal/kafka"
	"ms-orders/internal/logger"
	"ms-orders/internal/notify"
	"ms-orders/internal/order"
	orderdb "ms-orders/internal/order/db"
	"ms-orders/internal/order/order_api"
	"ms-orders/internal/qrcode"
	"ms-orders/internal/verify"
)

func connectDatabase(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	if cfg.DSN == "" {
		log.Fatal("CONFIG", "POSTGRES_DSN not set")
	}

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err == nil {
			err = sqldb.Ping()
		}
		if err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

// requestLogger records every request through the category logger.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, strconv.Itoa(ww.Status()), time.Since(start).String())
		})
	}
}

func connectRedis(cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}

	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Addr))
	return client
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting order service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	bunDB := connectDatabase(cfg.Database, log)
	defer bunDB.Close()

	redisClient := connectRedis(cfg.Redis, log)
	defer redisClient.Close()

	if os.Getenv("AUTO_MIGRATE") != "false" {
		runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		log.Info("DATABASE", "Migrations applied")
	}

	var orderPublisher order.KafkaPublisher = kafka.Noop{}
	var verifyPublisher verify.EventPublisher = kafka.Noop{}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics)
		defer producer.Close()

		topics := []string{
			cfg.Kafka.Topics.OrderCreated,
			cfg.Kafka.Topics.OrderUpdated,
			cfg.Kafka.Topics.OrderCancelled,
			cfg.Kafka.Topics.OrderVerified,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
		orderPublisher = producer
		verifyPublisher = producer
	} else {
		log.Warn("KAFKA", "Kafka disabled, lifecycle events will not be published")
	}

	codec := qrcode.NewCodec(cfg.QR.Dir, cfg.QR.BaseURL)
	mailer := notify.NewMailer(cfg.Email, cfg.QR.BaseURL, log)
	store := &orderdb.DB{Bun: bunDB}

	orderService := order.NewOrderService(store, codec, mailer, orderPublisher, log, cfg.Order)
	verifyService := verify.NewService(store, codec, verify.NewScanLock(redisClient), verifyPublisher, log)
	contactService := contact.NewService(&contact.DB{Bun: bunDB}, mailer, log)

	handler := &order_api.Handler{
		OrderService:  orderService,
		VerifyService: verifyService,
		Codec:         codec,
		Logger:        log,
	}
	contactHandler := &contact_api.Handler{Service: contactService, Logger: log}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	retention := time.Duration(cfg.QR.RetentionDays) * 24 * time.Hour
	orderService.StartArtifactSweep(sweepCtx, cfg.QR.SweepInterval, retention)
	log.Info("APP", fmt.Sprintf("Credential artifact sweep started (retention %dd)", cfg.QR.RetentionDays))

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(requestLogger(log))

	// --- Public routes ---
	r.Post("/api/orders", handler.CreateOrder)
	r.Post("/api/orders/verify", handler.VerifyScan)
	r.Get("/api/orders/verify", handler.VerifyScan)
	r.Get("/api/qr/{filename}", handler.QRImage)
	r.Post("/api/contact", contactHandler.Submit)

	// --- Privileged routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.JWTSecret))
		r.Use(auth.RequireAdmin)

		r.Get("/api/orders", handler.ListOrders)
		r.Get("/api/orders/stats", handler.DashboardStats)
		r.Get("/api/orders/{code}", handler.GetOrder)
		r.Put("/api/orders/{code}/status", handler.UpdateOrderStatus)
		r.Delete("/api/orders/{code}", handler.DeleteOrder)
		r.Get("/api/contact", contactHandler.List)
		r.Put("/api/contact/{id}/read", contactHandler.MarkRead)
	})
	log.Info("ROUTER", "Order, verification and contact routes registered")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Server listening on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("Server error: %v", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("APP", "Shutdown signal received")

	stopSweep()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP", fmt.Sprintf("Graceful shutdown failed: %v", err))
	}
	orderService.WaitForNotifications()
	log.Info("APP", "Server stopped")
}
