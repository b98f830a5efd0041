package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ArtyomBY/ivastramedGit-sub000/internal/scheduling"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/config"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/database"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/interfaces"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/logger"
	"github.com/ArtyomBY/ivastramedGit-sub000/pkg/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const (
	serviceName    = "scheduling-service"
	serviceVersion = "1.0.0"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger := logger.New(cfg.LogLevel)

	// Database
	db, err := database.NewConnection(&cfg.Database, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.CreateSchema(context.Background()); err != nil {
			appLogger.WithError(err).Fatal("Failed to create database schema")
		}
	}

	health := monitoring.NewHealthManager(serviceName, serviceVersion)
	health.RegisterChecker("database", monitoring.NewDatabaseHealthChecker(db))

	// Redis is optional; without it notifications are only persisted
	var publisher interfaces.EventPublisher
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer redisClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			appLogger.WithError(err).Warn("Redis is not reachable, notification events will be dropped until it recovers")
		}
		cancel()

		publisher = scheduling.NewRedisPublisher(redisClient, cfg.Redis.NotificationChannel)
		health.RegisterChecker("redis", monitoring.NewRedisHealthChecker(redisClient))
	}

	tracing, err := monitoring.NewTracingManager(&monitoring.TracingConfig{
		Enabled:        cfg.Monitoring.TracingEnabled,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		JaegerEndpoint: cfg.Monitoring.JaegerEndpoint,
		Environment:    cfg.Monitoring.Environment,
		SamplingRate:   cfg.Monitoring.SamplingRate,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize tracing")
	}

	var metrics *monitoring.MetricsCollector
	if cfg.Monitoring.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = monitoring.NewMetricsCollector(serviceName, registry)
	}

	repo := scheduling.NewRepository(db, appLogger, metrics)

	// Initialize Scheduling Service
	service, err := scheduling.New(cfg, appLogger, scheduling.Dependencies{
		Repository: repo,
		Notifier:   scheduling.NewNotificationService(repo, publisher, appLogger),
		Metrics:    metrics,
		Tracing:    tracing,
		Health:     health,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize scheduling service")
	}

	// Start service in a goroutine
	go func() {
		if err := service.Start(cfg.Server.Addr()); err != nil {
			appLogger.WithError(err).Fatal("Failed to start scheduling service")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down scheduling service...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := service.Shutdown(ctx); err != nil {
		appLogger.WithError(err).Error("Error during shutdown")
	}
	if err := tracing.Shutdown(ctx); err != nil {
		appLogger.WithError(err).Error("Failed to flush traces")
	}

	appLogger.Info("Scheduling service stopped")
}
