package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"JobPilot/backend/go/internal/config"
	"JobPilot/backend/go/internal/database/kafka"
	"JobPilot/backend/go/internal/database/minio"
	"JobPilot/backend/go/internal/database/mongo"
	"JobPilot/backend/go/internal/discovery/etcd"
	"JobPilot/backend/go/internal/llm"
	"JobPilot/backend/go/pkg/models"
	"JobPilot/backend/go/internal/pipeline_worker/consumer"
	"JobPilot/backend/go/internal/pipeline_worker/mailbox"
	"JobPilot/backend/go/internal/pipeline_worker/publisher"
	"JobPilot/backend/go/internal/pipeline_worker/research"
	"JobPilot/backend/go/internal/pipeline_worker/service"
	"JobPilot/backend/go/internal/pipeline_worker/store"
	jphttp "JobPilot/backend/go/pkg/http"
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

	workerID := cfg.Worker.ID
	if workerID == "" {
		workerID = "pipeline-worker-" + uuid.NewString()[:8]
	}
	workerLogger := logger.New(workerID, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MongoDB holds the task records
	mongoClient, err := mongo.GetClient(&cfg.Databases.MongoDB)
	if err != nil {
		workerLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to MongoDB")
	}
	mongoDB := mongoClient.Database(cfg.Databases.MongoDB.Database)
	taskUpdater := store.NewMongoTaskUpdater(mongoDB, cfg.Tracker.MongoCollection)

	// Make sure the task and result topics exist before consuming
	if err := kafka.EnsureTopics(&cfg.Databases.Kafka); err != nil {
		workerLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to ensure Kafka topics")
	}

	// LLM powers research, reply drafting and inbox classification
	model, err := llm.NewClient(cfg.LLM)
	if err != nil {
		workerLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to create LLM client")
	}

	// Gmail access is optional; without it only research and message tasks run
	var mb mailbox.Mailbox
	if cfg.Gmail.CredentialsFile != "" {
		gmailBox, err := mailbox.NewGmailMailbox(ctx, &cfg.Gmail)
		if err != nil {
			workerLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to create Gmail mailbox")
		}
		mb = gmailBox
	}

	// MinIO keeps the raw recruiter emails; optional as well
	var archiver mailbox.ObjectArchiver
	if cfg.Databases.MinIO.Endpoint != "" {
		minioClient, err := minio.GetClient(&cfg.Databases.MinIO)
		if err != nil {
			workerLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to MinIO")
		}
		archiver = mailbox.NewMinioArchiver(minioClient, cfg.Databases.MinIO.Bucket)
	}

	researcher := research.NewResearcher(model, workerLogger)
	replyWriter := research.NewReplyWriter(model)
	var scanner *mailbox.Scanner
	if mb != nil {
		scanner = mailbox.NewScanner(mb, model, archiver, cfg.Gmail.Query, workerLogger)
	}

	resultPublisher := publisher.NewPublisher(cfg.Databases.Kafka.Brokers, cfg.Tracker.KafkaResultsTopic, workerLogger)
	taskQueuePublisher := publisher.NewPublisher(cfg.Databases.Kafka.Brokers, cfg.Tracker.KafkaTasksTopic, workerLogger)

	worker := service.NewWorker(taskUpdater, resultPublisher, taskQueuePublisher,
		researcher, replyWriter, scanner, mb, workerLogger)

	taskConsumer := consumer.NewTaskConsumer(cfg.Databases.Kafka.Brokers, cfg.Tracker.KafkaTasksTopic, cfg.Worker.ConsumerGroup, workerLogger)
	go taskConsumer.Run(ctx, worker.HandleTask)
	workerLogger.Info("Kafka task consumer started")

	// Register in etcd so the tracker can list live workers
	var discovery *etcd.ServiceDiscovery
	var stopRegister chan<- struct{}
	if len(cfg.Databases.Etcd.Endpoints) > 0 {
		discovery, err = etcd.NewServiceDiscovery(cfg.Databases.Etcd.Endpoints, cfg.Databases.Etcd.Username, cfg.Databases.Etcd.Password)
		if err != nil {
			workerLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to Etcd")
		}
		stopRegister, err = discovery.Register(cfg.Worker.ServiceName, workerID, cfg.Worker.RegisterTTL)
		if err != nil {
			workerLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to register worker in Etcd")
		}
		workerLogger.Info("Registered in Etcd as " + cfg.Worker.ServiceName + "/" + workerID)
	}

	// Health endpoint, with the configured middleware applied
	healthSrv, err := jphttp.NewServer(cfg, jphttp.WithAddress(cfg.Worker.HealthAddress))
	if err != nil {
		workerLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to create health server")
	}
	healthSrv.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"worker": workerID, "status": "ok"}
		if err := mongo.HealthCheck(r.Context()); err != nil {
			status["status"] = "degraded"
			status["mongodb"] = err.Error()
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	})
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			workerLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Health server failed to start")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	workerLogger.Info("Shutting down worker...")

	if stopRegister != nil {
		close(stopRegister)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		workerLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Health server forced to shutdown")
	}

	if err := taskConsumer.Close(); err != nil {
		workerLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Kafka consumer")
	}
	if err := resultPublisher.Close(); err != nil {
		workerLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing result publisher")
	}
	if err := taskQueuePublisher.Close(); err != nil {
		workerLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing task publisher")
	}
	if discovery != nil {
		if err := discovery.Close(); err != nil {
			workerLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Etcd client")
		}
	}
	if err := mongo.Close(context.Background()); err != nil {
		workerLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error disconnecting from MongoDB")
	}

	workerLogger.Info("Worker stopped")
}
