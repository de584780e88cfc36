package bootstrap

import (
	"context"
	"database/sql"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"costopt-backend/internal/analyses"
	googleauth "costopt-backend/internal/auth"
	"costopt-backend/internal/gamification"
	"costopt-backend/internal/llm"
	"costopt-backend/internal/llm/gemini"
	"costopt-backend/internal/mockdata"
	"costopt-backend/internal/pipeline"
	"costopt-backend/internal/queue"
	"costopt-backend/internal/recommendations"
	"costopt-backend/internal/shared/config"
	"costopt-backend/internal/shared/server"
	"costopt-backend/internal/shared/storage/db"
	"costopt-backend/internal/shared/storage/object"
	localstore "costopt-backend/internal/shared/storage/object/local"
	s3store "costopt-backend/internal/shared/storage/object/s3"
	"costopt-backend/internal/subscriptions"
)

// App holds shared dependencies for the API server and workers.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB

	Archive object.Store
	Queue   queue.Client
	LLM     llm.Client

	Orchestrator *pipeline.Orchestrator

	SubscriptionsService   *subscriptions.Service
	AnalysesService        *analyses.Service
	RecommendationsService *recommendations.Service
	GamificationService    *gamification.Service

	GoogleAuth *googleauth.GoogleService
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB := buildDB(ctx, cfg)

	archive, err := buildArchive(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:  cfg,
		DB:      sqlDB,
		Archive: archive,
		Queue:   buildQueue(ctx, cfg),
		LLM:     buildLLM(cfg),
	}

	buildServices(app)

	if cfg.SeedDemoData && sqlDB == nil {
		if err := mockdata.Seed(ctx, app.SubscriptionsService, mockdata.DemoUserID); err != nil {
			log.Printf("seed demo data: %v", err)
		}
	}

	return app, nil
}

// buildDB connects and migrates, falling back to in-memory repos on failure.
func buildDB(ctx context.Context, cfg config.Config) *sql.DB {
	if cfg.DatabaseURL == "" {
		return nil
	}
	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	conn, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("failed to connect database, falling back to memory: %v", err)
		return nil
	}
	if err := db.RunMigrations(ctx, conn); err != nil {
		log.Printf("failed to run migrations, falling back to memory: %v", err)
		conn.Close()
		return nil
	}
	return conn
}

func buildArchive(ctx context.Context, cfg config.Config) (object.Store, error) {
	if cfg.ObjectStoreType == "s3" {
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	}
	return localstore.New(cfg.LocalStoreDir), nil
}

func buildQueue(ctx context.Context, cfg config.Config) queue.Client {
	if cfg.QueueURL == "" {
		return nil
	}
	client, err := queue.NewSQSClient(ctx, cfg.QueueURL, cfg.AWSRegion)
	if err != nil {
		log.Printf("failed to build sqs client, async analysis disabled: %v", err)
		return nil
	}
	return client
}

func buildLLM(cfg config.Config) llm.Client {
	if cfg.LLMProvider != "gemini" || cfg.LLMAPIKey == "" {
		return llm.PlaceholderClient{}
	}
	client, err := gemini.NewClient(cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout)
	if err != nil {
		log.Printf("failed to build gemini client, falling back to rules: %v", err)
		return llm.PlaceholderClient{}
	}
	return client
}

func buildServices(app *App) {
	var (
		subsRepo subscriptions.Repo
		analRepo analyses.Repo
		recRepo  recommendations.Repo
		gamRepo  gamification.Repo
	)
	if app.DB != nil {
		subsRepo = &subscriptions.PGRepo{DB: app.DB}
		analRepo = &analyses.PGRepo{DB: app.DB}
		recRepo = &recommendations.PGRepo{DB: app.DB}
		gamRepo = &gamification.PGRepo{DB: app.DB}
	} else {
		subsRepo = subscriptions.NewMemoryRepo()
		analRepo = analyses.NewMemoryRepo()
		recRepo = recommendations.NewMemoryRepo()
		gamRepo = gamification.NewMemoryRepo()
	}

	app.Orchestrator = pipeline.NewOrchestrator(app.LLM, pipeline.NewMemoryCheckpointStore(), app.Config.LLMTimeout)

	app.SubscriptionsService = subscriptions.NewService(subsRepo)
	app.GamificationService = gamification.NewService(gamRepo)
	app.RecommendationsService = recommendations.NewService(recRepo, app.GamificationService)
	app.AnalysesService = analyses.NewService(
		analRepo,
		app.Orchestrator,
		app.SubscriptionsService,
		app.GamificationService,
		app.RecommendationsService,
		app.Archive,
	)
	app.AnalysesService.Queue = app.Queue

	app.GoogleAuth = googleauth.NewGoogleService(
		app.Config.GoogleClientID,
		app.Config.GoogleClientSecret,
		app.Config.GoogleRedirectURL,
		app.Config.UIRedirectURL,
	)

	app.Router = server.NewRouter(app.Config, server.Deps{
		Subscriptions:   subscriptions.NewHandler(app.SubscriptionsService),
		Analyses:        analyses.NewHandler(app.AnalysesService),
		Recommendations: recommendations.NewHandler(app.RecommendationsService),
		Gamification:    gamification.NewHandler(app.GamificationService),
		GoogleAuth:      app.GoogleAuth,
	})
}
