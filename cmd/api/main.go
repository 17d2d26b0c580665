package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-judge/internal/config"
	"github.com/noah-isme/gema-judge/internal/database"
	"github.com/noah-isme/gema-judge/internal/handler"
	"github.com/noah-isme/gema-judge/internal/middleware"
	"github.com/noah-isme/gema-judge/internal/repository"
	"github.com/noah-isme/gema-judge/internal/router"
	"github.com/noah-isme/gema-judge/internal/service"
	"github.com/noah-isme/gema-judge/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("%v", err)
	}

	rootCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(rootCtx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	var evaluator ai.Evaluator
	if cfg.OpenAIAPIKey != "" {
		openAIEvaluator, err := ai.NewOpenAIEvaluator(ai.OpenAIConfig{
			APIKey:    cfg.OpenAIAPIKey,
			BaseURL:   cfg.OpenAIBaseURL,
			Model:     cfg.ScorerDefaultModel,
			MaxTokens: cfg.ScorerMaxTokens,
			Logger:    logger,
		})
		if err != nil {
			log.Fatalf("failed to create judge model client: %v", err)
		}
		evaluator = openAIEvaluator
	} else {
		logger.Warn().Msg("openai api key missing; runs will fail until it is configured")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	queueRepo := repository.NewQueueRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	judgeRepo := repository.NewJudgeRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	importRepo := repository.NewImportRepository(db)

	locker := service.NewMemoryRunLocker()
	if redisClient != nil {
		locker = service.NewRedisRunLocker(redisClient, cfg.EventsChannel, cfg.RunLockTTL, logger)
	}
	events := service.NewRunEventBus(redisClient, natsConn, cfg.EventsChannel, logger)
	events.Start(rootCtx)

	taskBuilder := service.NewTaskBuilder(submissionRepo, assignmentRepo, judgeRepo, logger)
	executor := service.NewRunExecutor(service.RunExecutorConfig{
		Concurrency:    cfg.RunConcurrency,
		RetryMax:       cfg.RunRetryMax,
		RetryBaseDelay: cfg.RunRetryBaseDelay,
		RetryMaxDelay:  cfg.RunRetryMaxDelay,
		TaskTimeout:    cfg.ScorerTimeout,
	}, logger)
	scorer := service.NewJudgeScorer(judgeRepo, templateRepo, submissionRepo, evaluationRepo, evaluator, logger)

	queueService := service.NewQueueService(queueRepo, submissionRepo, templateRepo, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, judgeRepo, logger)
	runService := service.NewRunService(taskBuilder, executor, scorer, evaluationRepo, locker, events, logger)
	resultsService := service.NewResultsService(evaluationRepo, cfg.ResultsPageSize, logger)
	judgeService := service.NewJudgeService(judgeRepo, validate, cfg.ScorerDefaultModel, logger)
	importService := service.NewImportService(importRepo, logger)

	healthChecks := map[string]handler.HealthCheckFunc{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		healthChecks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    21 << 20,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.AllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		QueueHandler:      handler.NewQueueHandler(queueService, logger),
		AssignmentHandler: handler.NewAssignmentHandler(assignmentService, validate, logger),
		RunHandler:        handler.NewRunHandler(taskBuilder, runService, logger),
		ResultHandler:     handler.NewResultHandler(resultsService, validate, logger),
		JudgeHandler:      handler.NewJudgeHandler(judgeService, logger),
		ImportHandler:     handler.NewImportHandler(importService, logger),
		HealthChecks:      healthChecks,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, runService, stopBackground)
}

func waitForShutdown(app *fiber.App, runs service.RunService, stopBackground context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	runsCtx, cancelRuns := context.WithTimeout(context.Background(), 10*time.Second)
	if err := runs.Shutdown(runsCtx); err != nil {
		log.Printf("runs did not settle: %v", err)
	}
	cancelRuns()
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
