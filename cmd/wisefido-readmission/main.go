package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wisefido-readmission/internal/cache"
	"wisefido-readmission/internal/config"
	"wisefido-readmission/internal/database"
	"wisefido-readmission/internal/events"
	httpapi "wisefido-readmission/internal/http"
	"wisefido-readmission/internal/logger"
	"wisefido-readmission/internal/metrics"
	"wisefido-readmission/internal/mqtt"
	"wisefido-readmission/internal/prediction"
	"wisefido-readmission/internal/redisclient"
	"wisefido-readmission/internal/repository"
	"wisefido-readmission/internal/service"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const serviceName = "wisefido-readmission"

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	mode, err := prediction.ParseMode(cfg.Prediction.Strategy)
	if err != nil {
		log.Fatal("Invalid prediction strategy", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	checks := map[string]httpapi.HealthCheck{}

	// Postgres, or in-memory repositories when DB is disabled or unreachable
	var db *sql.DB
	if cfg.DBEnabled {
		connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
		if d, err := database.Open(connectCtx, &cfg.Database, log); err == nil {
			db = d
		} else {
			log.Warn("DB enabled but unavailable, falling back to memory repositories", zap.Error(err))
		}
		connectCancel()
	}

	var (
		patients     repository.PatientRepository
		measurements repository.MeasurementRepository
	)
	if db != nil {
		defer database.Close(db)
		patients = repository.NewPostgresPatientRepository(db, log)
		measurements = repository.NewPostgresMeasurementRepository(db, log)
		checks["postgres"] = database.HealthCheck(db)
	} else {
		patients = repository.NewMemoryPatientRepository()
		measurements = repository.NewMemoryMeasurementRepository()
	}

	// Redis backs the stats cache and the prediction stream
	var (
		redisClient *redis.Client
		kv          cache.KVStore
		publisher   service.PredictionPublisher
	)
	if cfg.RedisEnabled {
		redisClient = redisclient.NewRedisClient(&cfg.Redis)
		defer redisclient.Close(redisClient)

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisclient.Ping(pingCtx, redisClient); err != nil {
			log.Warn("Redis ping failed, cache operations will fail until it is reachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		pingCancel()

		kv = cache.NewRedisKVStore(redisClient)
		checks["redis"] = redisclient.HealthCheck(redisClient)
		if cfg.Stream.Enabled {
			publisher = events.NewStreamPublisher(redisClient, cfg.Stream.Name, cfg.Stream.MaxLen, log)
		}
	} else {
		log.Warn("Redis disabled, stats cache is process-local")
		kv = cache.NewMemoryKVStore()
	}

	if cfg.Prediction.CacheTTL > 0 {
		log.Warn("Stats cache TTL set, aggregates restart from zero after expiry",
			zap.Duration("ttl", cfg.Prediction.CacheTTL),
		)
	}
	statsCache := cache.NewStatsCache(kv, cfg.Prediction.CacheKeyPrefix, cfg.Prediction.CacheTTL, log)
	factory := prediction.NewFactory(statsCache, cfg.Prediction.HistoryLimit, cfg.Prediction.Fallback, log)

	measurementSvc := service.NewMeasurementService(patients, measurements, factory, mode, publisher, m, log)
	patientSvc := service.NewPatientService(patients, log)

	measurementHandler := httpapi.NewMeasurementHandler(measurementSvc, log)
	router := httpapi.NewRouter(m, log)
	router.RegisterMeasurementRoutes(measurementHandler)
	router.RegisterPatientRoutes(httpapi.NewPatientHandler(patientSvc, log), measurementHandler)
	router.RegisterSystemRoutes(httpapi.NewHealthHandler(checks, log), m)

	if cfg.MQTT.Enabled {
		client, err := mqtt.NewClient(&cfg.MQTT, log)
		if err != nil {
			log.Warn("MQTT enabled but connection failed, measurements are accepted over HTTP only", zap.Error(err))
		} else {
			defer client.Disconnect()
			checks["mqtt"] = client.HealthCheck
			broker := mqtt.NewMeasurementBroker(measurementSvc, "", log)
			if err := client.Subscribe(cfg.MQTT.Topic, cfg.MQTT.QoS, broker.HandleMessage); err != nil {
				log.Warn("MQTT subscribe failed", zap.String("topic", cfg.MQTT.Topic), zap.Error(err))
			}
		}
	}

	log.Info("Prediction configured",
		zap.String("strategy", string(mode)),
		zap.Int("history_limit", cfg.Prediction.HistoryLimit),
		zap.Bool("fallback", cfg.Prediction.Fallback),
	)

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server failed", zap.Error(err))
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop HTTP server", zap.Error(err))
	}
}
