package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"storepulse-shopify-core/internal/application"
	"storepulse-shopify-core/internal/application/webhook_handlers"
	apiinfra "storepulse-shopify-core/internal/infrastructure/api"
	"storepulse-shopify-core/internal/infrastructure/lease"
	"storepulse-shopify-core/internal/infrastructure/metrics"
	"storepulse-shopify-core/internal/infrastructure/pubsub"
	"storepulse-shopify-core/internal/infrastructure/repository"
	"storepulse-shopify-core/internal/infrastructure/scheduler"
	shopifyinfra "storepulse-shopify-core/internal/infrastructure/shopify"
	"storepulse-shopify-core/internal/infrastructure/warehouse"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("⚠️  Warning: .env file not found")
	}

	// Get configuration from environment
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}
	mongoDatabase := os.Getenv("MONGODB_DATABASE")
	if mongoDatabase == "" {
		mongoDatabase = "storepulse"
	}
	warehousePath := os.Getenv("WAREHOUSE_PATH")
	if warehousePath == "" {
		warehousePath = "./data/events.duckdb"
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	apiKey := os.Getenv("SHOPIFY_API_KEY")
	apiSecret := os.Getenv("SHOPIFY_API_SECRET")
	webhookSecret := os.Getenv("SHOPIFY_WEBHOOK_SECRET")
	if webhookSecret == "" {
		logger.Fatal().Msg("SHOPIFY_WEBHOOK_SECRET environment variable is required")
	}

	syncInterval := envDuration("SYNC_INTERVAL", 30*time.Minute)
	syncConcurrency := envInt("SYNC_CONCURRENCY", 4)

	// Connect to MongoDB
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(mongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())

	db := client.Database(mongoDatabase)

	// Open the event warehouse
	eventLog, err := warehouse.Open(warehousePath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open event warehouse")
	}
	defer eventLog.Close()

	// Connect to Redis for the sync lease
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	// Initialize repositories
	connectionRepo := repository.NewMongoConnectionRepository(db)
	snapshotRepo := repository.NewMongoSnapshotRepository(db)
	syncLease := lease.NewRedisLease(redisClient)

	// Initialize metrics
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// Initialize the platform client with rate limiting and retry
	rateLimiter := shopifyinfra.NewRateLimiter()
	retryConfig := shopifyinfra.DefaultRetryConfig()
	platformClient := shopifyinfra.NewClientWithOptions(apiKey, apiSecret, rateLimiter, retryConfig, logger)

	// Initialize application services
	connectionService := application.NewConnectionService(connectionRepo, platformClient, logger)
	syncService := application.NewSyncService(
		connectionRepo,
		snapshotRepo,
		eventLog,
		platformClient,
		syncLease,
		collector,
		logger,
		syncConcurrency,
	)
	analyticsService := application.NewAnalyticsService(eventLog, snapshotRepo, logger)
	healthService := application.NewHealthService(eventLog, collector, logger)

	// Initialize sync pub/sub and attach it to the orchestrator
	syncPubSub := pubsub.NewSyncPubSub(logger)
	syncService.SetNotifier(syncPubSub)

	// Initialize webhook verification and dispatch
	webhookVerifier := shopifyinfra.NewWebhookVerifier(webhookSecret)
	webhookDispatcher := application.NewWebhookDispatcher(logger,
		webhook_handlers.NewProductHandler(syncService, logger),
		webhook_handlers.NewOrderHandler(syncService, logger),
		webhook_handlers.NewAppUninstalledHandler(connectionService, logger),
		webhook_handlers.NewCustomerHandler(logger),
	)

	// Start the background sync scheduler
	schedCtx, cancelSched := context.WithCancel(context.Background())
	defer cancelSched()
	go scheduler.NewScheduler(syncService, logger, syncInterval).Start(schedCtx)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	// Health check - must be public for monitoring
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	// Prometheus metrics
	r.Handle("/metrics", metrics.SetupMetricsRoute(registry))

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, "./docs/swagger.json")
	})

	// REST API
	server := apiinfra.NewServer(connectionService, syncService, analyticsService, healthService, syncPubSub, logger)
	server.RegisterRoutes(r)

	// Webhook endpoint
	r.Post("/webhooks/shopify", apiinfra.WebhookHandler(webhookVerifier, webhookDispatcher, collector, logger))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.Info().Str("port", port).Msg("Starting API server")
	if err := http.ListenAndServe(":"+port, r); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
