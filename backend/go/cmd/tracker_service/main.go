package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"JobPilot/backend/go/internal/config"
	"JobPilot/backend/go/internal/database/kafka"
	"JobPilot/backend/go/internal/database/mongo"
	"JobPilot/backend/go/internal/database/mysql"
	"JobPilot/backend/go/internal/database/redis"
	"JobPilot/backend/go/internal/discovery/etcd"
	"JobPilot/backend/go/pkg/models"
	"JobPilot/backend/go/internal/tracker_service/api"
	"JobPilot/backend/go/internal/tracker_service/consumer"
	"JobPilot/backend/go/internal/tracker_service/publisher"
	"JobPilot/backend/go/internal/tracker_service/service"
	"JobPilot/backend/go/internal/tracker_service/store"
	"JobPilot/backend/go/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("backend/go/internal/config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logLevel, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.Init(logLevel)
	serviceLogger := logger.New("tracker_service", "")

	// MySQL holds the company table
	db, err := mysql.GetDB(&cfg.Databases.MySQL)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to MySQL")
	}
	if err := db.AutoMigrate(&models.Company{}); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to migrate company schema")
	}

	// MongoDB holds the task records
	mongoClient, err := mongo.GetClient(&cfg.Databases.MongoDB)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to MongoDB")
	}
	mongoDB := mongoClient.Database(cfg.Databases.MongoDB.Database)

	// Redis backs the per-company task guard
	guard, err := redis.GetClient(&cfg.Databases.Redis)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to Redis")
	}

	// Make sure the task and result topics exist before producing
	if err := kafka.EnsureTopics(&cfg.Databases.Kafka); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to ensure Kafka topics")
	}

	// Etcd is optional; without it GET /api/workers reports no instances
	var discovery *etcd.ServiceDiscovery
	if len(cfg.Databases.Etcd.Endpoints) > 0 {
		discovery, err = etcd.NewServiceDiscovery(cfg.Databases.Etcd.Endpoints, cfg.Databases.Etcd.Username, cfg.Databases.Etcd.Password)
		if err != nil {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to Etcd")
		}
	}

	// Create components with logger injection
	companyStore := store.NewGormCompanyStore(db)
	taskStore := store.NewMongoTaskStore(mongoDB, cfg.Tracker.MongoCollection)
	taskPublisher := publisher.NewTaskPublisher(cfg.Databases.Kafka.Brokers, cfg.Tracker.KafkaTasksTopic, serviceLogger)
	guardTTL := time.Duration(cfg.Tracker.ResearchGuardTTL) * time.Second
	trackerService := service.NewTrackerService(companyStore, taskStore, taskPublisher,
		guard, guardTTL, discovery, cfg.Worker.ServiceName, serviceLogger)
	resultConsumer := consumer.NewResultConsumer(cfg.Databases.Kafka.Brokers, cfg.Tracker.KafkaResultsTopic, "tracker-service-group", serviceLogger)

	// Start Kafka result consumer
	ctx, cancel := context.WithCancel(context.Background())
	resultConsumer.Start(ctx, trackerService.ApplyResult)
	serviceLogger.Info("Kafka result consumer started")

	// Setup HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	apiHandler := api.NewAPI(trackerService, serviceLogger)
	api.RegisterRoutes(router, apiHandler)

	srv := &http.Server{
		Addr:    cfg.Tracker.ServerAddress,
		Handler: router,
	}

	go func() {
		serviceLogger.Info("Starting HTTP server on " + srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("HTTP server failed to start")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	serviceLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Server forced to shutdown")
	}

	cancel()
	if err := taskPublisher.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Kafka publisher")
	}
	if err := resultConsumer.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Kafka consumer")
	}
	if discovery != nil {
		if err := discovery.Close(); err != nil {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Etcd client")
		}
	}
	if err := mongo.Close(context.Background()); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error disconnecting from MongoDB")
	}
	if err := mysql.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing MySQL connection")
	}

	serviceLogger.Info("Server gracefully stopped")
}
