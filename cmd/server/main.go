package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricing-engine/config"
	"pricing-engine/internal/api"
	"pricing-engine/internal/broker"
	"pricing-engine/internal/cache"
	"pricing-engine/internal/service"
	"pricing-engine/internal/store"
	"pricing-engine/internal/util"
	"pricing-engine/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting pricing engine")

	tp, err := util.InitTracer("pricing-engine", cfg.Observ.JaegerEndpoint, cfg.Observ.SampleRatio)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	rates, err := cfg.Pricing.LoadExchangeRates()
	if err != nil {
		logger.Fatal("Failed to load exchange rates", zap.Error(err))
	}
	logger.Info("Exchange rates loaded",
		zap.String("base", rates.Base()),
		zap.Strings("currencies", rates.Currencies()))

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		logger.Fatal("Failed to apply schema", zap.Error(err))
	}
	logger.Info("Database connected")

	var priceCache cache.PriceCache
	redisCache, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, using in-memory price cache", zap.Error(err))
		priceCache = cache.NewMemoryCache()
	} else {
		defer redisCache.Close()
		priceCache = redisCache
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	// nil interfaces disable event publishing entirely
	var (
		catalogEvents service.CatalogPublisher
		priceEvents   api.PriceEventPublisher
	)
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()

		publisher := broker.NewEventPublisher(producer, cfg.Kafka.TopicPricing, cfg.Kafka.TopicCatalog)
		catalogEvents = publisher
		priceEvents = publisher
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	pricingService := service.NewPricingService(db, db, priceCache, rates, service.PricingOptions{
		CacheTTL:        cfg.Pricing.CacheTTL,
		DefaultRounding: cfg.Pricing.DefaultRounding,
	})
	simulationService := service.NewSimulationService(pricingService)
	promotionService := service.NewPromotionService(db, priceCache, catalogEvents)
	productService := service.NewProductService(db, priceCache, rates, catalogEvents)
	auditService := service.NewAuditService(db)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var (
		auditWorker        *worker.AuditWorker
		invalidationWorker *worker.InvalidationWorker
	)
	if cfg.Kafka.Enabled {
		auditConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicPricing, cfg.Kafka.AuditGroup)
		auditWorker = worker.NewAuditWorker(auditConsumer, auditService)
		go func() {
			if err := auditWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("Audit worker error", zap.Error(err))
			}
		}()

		invalidationConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicCatalog, cfg.Kafka.InvalidationGroup)
		invalidationWorker = worker.NewInvalidationWorker(invalidationConsumer, priceCache)
		go func() {
			if err := invalidationWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("Invalidation worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Pricing:    pricingService,
		Simulation: simulationService,
		Promotions: promotionService,
		Products:   productService,
		Audit:      auditService,
	}, priceEvents, db.Ping)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if auditWorker != nil {
		auditWorker.Stop()
	}
	if invalidationWorker != nil {
		invalidationWorker.Stop()
	}

	logger.Info("Server exited")
}
