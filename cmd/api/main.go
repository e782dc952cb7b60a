package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"golang.org/x/exp/slog"

	"github.com/swigpay/qr-payments-backend/api/routes"
	"github.com/swigpay/qr-payments-backend/internal/config"
	"github.com/swigpay/qr-payments-backend/internal/handlers"
	mongorepo "github.com/swigpay/qr-payments-backend/internal/repositories/mongodb"
	"github.com/swigpay/qr-payments-backend/internal/services"
	"github.com/swigpay/qr-payments-backend/pkg/mongodb"
	"github.com/swigpay/qr-payments-backend/pkg/mpesa"
	"github.com/swigpay/qr-payments-backend/pkg/notion"
)

func main() {
	// .env is optional; real deployments use environment variables
	_ = godotenv.Load()

	cfg, err := config.Load(config.GetEnv("CONFIG_PATH", "."))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	// Connect to MongoDB
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDB.URI)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			slog.Error("Error disconnecting from MongoDB", "error", err)
		}
	}()

	db := mongoClient.Database(cfg.MongoDB.Database)

	// Initialize repositories
	paymentRepo := mongorepo.NewPaymentRepository(db)
	if err := paymentRepo.EnsureIndexes(context.Background()); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	// Initialize upstream clients
	mpesaClient := mpesa.NewClient(
		cfg.MPesa.Environment,
		cfg.MPesa.ConsumerKey,
		cfg.MPesa.ConsumerSecret,
		cfg.MPesa.ShortCode,
		cfg.MPesa.Passkey,
		cfg.MPesa.CallbackURL,
		cfg.MPesa.MockAPI,
	)
	notionClient := notion.NewClient(cfg.Notion.APIKey, cfg.Notion.DatabaseID)

	// Optional Redis for the initiate idempotency cache
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
	}

	// Initialize services
	paymentService := services.NewPaymentService(paymentRepo, mpesaClient,
		cfg.MPesa.ConfirmationURL, cfg.MPesa.ValidationURL)
	callbackService := services.NewCallbackService(paymentRepo, notionClient)
	c2bService := services.NewC2BService(paymentRepo, notionClient)
	authService := services.NewAuthService(cfg)

	// Initialize handlers
	paymentHandler := handlers.NewPaymentHandler(paymentService, callbackService, c2bService)
	authHandler := handlers.NewAuthHandler(authService)

	router := routes.SetupRouter(cfg, routes.HandlerDependencies{
		AuthHandler:    authHandler,
		PaymentHandler: paymentHandler,
		RedisClient:    redisClient,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	slog.Info("Server starting", "port", cfg.Server.Port, "mockApi", cfg.MPesa.MockAPI)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	slog.Info("Server exiting")
}
