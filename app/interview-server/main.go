package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/interview-analyzer/config"
	"github.com/yoockh/interview-analyzer/internal/api/handlers"
	"github.com/yoockh/interview-analyzer/internal/api/routes"
	"github.com/yoockh/interview-analyzer/internal/cache"
	"github.com/yoockh/interview-analyzer/internal/interview"
	"github.com/yoockh/interview-analyzer/internal/logger"
	"github.com/yoockh/interview-analyzer/internal/providers/emotion"
	"github.com/yoockh/interview-analyzer/internal/providers/extractor"
	mongorepo "github.com/yoockh/interview-analyzer/internal/repositories/mongo"
	pgrepo "github.com/yoockh/interview-analyzer/internal/repositories/postgres"
	"github.com/yoockh/interview-analyzer/internal/services"
	"github.com/yoockh/interview-analyzer/internal/storage"
	"github.com/yoockh/interview-analyzer/internal/workers"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	cfg, err := config.LoadApp()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Every backend is optional; a missing one only disables its feature.
	optional := func(name string, err error) bool {
		switch {
		case err == nil:
			log.WithField("backend", name).Info("connected")
			return true
		case errors.Is(err, config.ErrNotConfigured):
			log.WithField("backend", name).Info("not configured, feature disabled")
		default:
			log.WithError(err).WithField("backend", name).Warn("unavailable, feature disabled")
		}
		return false
	}

	hasRedis := optional("redis", config.InitRedis())
	hasMongo := optional("mongo", config.InitMongo())
	hasPostgres := optional("postgres", config.InitPostgres())

	bankOpts := services.BankServiceOptions{
		Extractor:    extractor.NewPDFExtractor(),
		MaxQuestions: cfg.MaxQuestionsPerInterview,
		Logger:       log,
	}
	if hasPostgres {
		repo := pgrepo.NewBankRepo(config.PostgresDB)
		if err := repo.Migrate(ctx); err != nil {
			log.WithError(err).Warn("bank metadata migration failed")
		}
		bankOpts.Repo = repo
	}
	if cfg.GCSBucket != "" {
		up, err := storage.NewGCSUploader(ctx, cfg.GCSBucket)
		if err != nil {
			log.WithError(err).Warn("gcs unavailable, document upload disabled")
		} else {
			defer up.Close()
			bankOpts.Uploader = up
		}
	}
	banks := services.NewBankService(bankOpts)

	resultsOpts := services.ResultsServiceOptions{CacheTTL: cfg.CacheTTL()}
	if hasRedis {
		resultsOpts.Cache = cache.NewRedisCache(config.RedisClient)
		resultsOpts.Redis = config.RedisClient
	}
	if hasMongo {
		if err := config.EnsureMongoIndexes(); err != nil {
			log.WithError(err).Warn("mongo index setup failed")
		}
		resultsOpts.Repo = mongorepo.NewInterviewRepo(config.MongoClient.Database(config.MongoDatabase()))
	}
	results := services.NewResultsService(resultsOpts)

	var classifier emotion.Classifier = emotion.Disabled{}
	if cfg.EmotionServiceURL != "" {
		classifier = emotion.NewHTTPClassifier(cfg.EmotionServiceURL, cfg.EmotionConfidenceThreshold)
	} else {
		log.Info("EMOTION_SERVICE_URL not set, emotion detection disabled")
	}

	store := services.NewSessionStore()
	routerOpts := interview.Options{
		Store:             store,
		Banks:             banks,
		Results:           results,
		Classifier:        classifier,
		QuestionTimeLimit: cfg.QuestionTimeout(),
		EmotionInterval:   cfg.EmotionInterval(),
		Logger:            log,
	}
	if hasRedis {
		routerOpts.Broadcaster = interview.NewRedisBroadcaster(config.RedisClient)
	}
	router := interview.NewRouter(routerOpts)
	defer router.Shutdown()

	if hasRedis {
		pool := &workers.ResultsWorkerPool{
			Redis:      config.RedisClient,
			Results:    results,
			NumWorkers: cfg.ResultsWorkers,
			Logger:     log,
		}
		if err := pool.Start(ctx); err != nil {
			log.WithError(err).Fatal("results workers failed to start")
		}
	}

	reaper := &workers.SessionReaper{
		Store:    store,
		Sessions: router,
		Timeout:  cfg.IdleTimeout(),
		Interval: cfg.ReaperEvery(),
		Logger:   log,
	}
	if err := reaper.Start(ctx); err != nil {
		log.WithError(err).Fatal("session reaper failed to start")
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	routes.RegisterRoutes(r, routes.Deps{
		Banks:   handlers.NewBankHandler(banks, cfg.MaxUploadBytes),
		Results: handlers.NewResultsHandler(router, results),
		WS:      handlers.NewInterviewWSHandler(router, config.RedisClient, log),
		Logger:  log,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"addr":                cfg.Addr(),
			"question_time_limit": cfg.QuestionTimeLimit,
			"max_questions":       cfg.MaxQuestionsPerInterview,
		}).Info("interview server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}
	if hasRedis {
		_ = config.RedisClient.Close()
	}
	if hasMongo {
		_ = config.MongoClient.Disconnect(shutdownCtx)
	}
}
