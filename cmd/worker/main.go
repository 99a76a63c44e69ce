package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/carebook/routesheet/internal/config"
	"github.com/carebook/routesheet/internal/database"
	"github.com/carebook/routesheet/internal/logger"
	"github.com/carebook/routesheet/internal/queue"
	"github.com/carebook/routesheet/internal/services/tasks"
	"github.com/carebook/routesheet/internal/workers"
)

func main() {
	// Parse command-line flags
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override debug mode if flag is set
	debugMode := cfg.WorkerDebugMode || *debugFlag

	// Initialize logger
	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if syncErr := zapLogger.Sync(); syncErr != nil {
			// Ignore sync errors in production
			_ = syncErr
		}
	}()

	zapLogger.Info("Starting worker",
		zap.Bool("debug_mode", debugMode),
		zap.Int("horizon_days", cfg.HorizonDays),
		zap.Duration("generation_interval", cfg.GenerationInterval),
		zap.Duration("sweep_interval", cfg.SweepInterval),
		zap.Bool("sweep_notifications", cfg.SweepNotifications),
	)

	// Initialize database connection
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("Failed to close database connection", zap.Error(err))
		}
	}()

	zapLogger.Info("Connected to database")

	// Initialize repositories
	repos := database.NewRepositories(db)

	// Initialize RabbitMQ queue
	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL)
	if err != nil {
		zapLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("Failed to close RabbitMQ connection", zap.Error(err))
		}
	}()

	zapLogger.Info("Connected to RabbitMQ",
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	// Redis client for scheduler run locks
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("Failed to parse Redis URL", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("Failed to close Redis connection", zap.Error(err))
		}
	}()

	// Task engine. Sweep notifications route like manual misses when enabled;
	// the notifier writes back to the queue and this same worker delivers them.
	var sweepNotifier *tasks.Notifier
	if cfg.SweepNotifications {
		sweepNotifier = tasks.NewNotifier(repos.Patients, queue.NewNotificationJobDispatcher(jobQueue), zapLogger)
	}
	generator := tasks.NewGenerator(repos.Templates, repos.Tasks, nil, zapLogger)
	sweeper := tasks.NewSweeper(repos.Tasks, sweepNotifier, nil, cfg.SweepNotifications, zapLogger)
	bridge := tasks.NewDiaryBridge(repos.Diaries)

	// Create job dispatcher
	dispatcher := workers.NewDispatcher(
		generator,
		sweeper,
		bridge,
		repos.Tasks,
		workers.LogSender{},
		cfg.HorizonDays,
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Periodic generation and sweep triggers
	scheduler := workers.NewScheduler(jobQueue, redisClient, zapLogger, workers.SchedulerConfig{
		GenerationInterval: cfg.GenerationInterval,
		SweepInterval:      cfg.SweepInterval,
	})
	scheduler.Start()

	// DLQ garbage collector: purge dead letters older than a day, hourly
	if dlqPurger, ok := any(jobQueue).(queue.DLQPurger); ok {
		dlqGC := queue.NewGarbageCollector(dlqPurger, 1*time.Hour, 24*time.Hour)
		go func() {
			if err := dlqGC.Start(ctx); err != nil && err != context.Canceled {
				zapLogger.Error("DLQ garbage collector stopped with error", zap.Error(err))
			}
		}()
		zapLogger.Info("Started DLQ garbage collector",
			zap.Duration("interval", 1*time.Hour),
			zap.Duration("retention", 24*time.Hour),
		)
	}

	// Start consuming messages
	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("Failed to start consuming messages", zap.Error(err))
	}

	zapLogger.Info("Worker started, consuming messages from queue")

	// Process messages
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgChan:
				if !ok {
					zapLogger.Info("Message channel closed")
					return
				}

				// Process job
				if err := dispatcher.ProcessJob(ctx, msg); err != nil {
					zapLogger.Error("Failed to process job",
						zap.Error(err),
						zap.String("job_id", msg.Job.ID.String()),
						zap.String("job_type", string(msg.Job.Type)),
					)
				}
			}
		}
	}()

	// Handle errors
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errChan:
				if !ok {
					return
				}
				zapLogger.Error("Queue error", zap.Error(err))
			}
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	zapLogger.Info("Shutdown signal received, stopping worker...")

	// Stop scheduling new runs, then stop processing
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	scheduler.Stop(stopCtx)
	stopCancel()
	cancel()

	zapLogger.Info("Worker stopped")
}
