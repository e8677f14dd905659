package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/queryhaven/queryhaven-engine/pkg/cache"
	"github.com/queryhaven/queryhaven-engine/pkg/config"
	"github.com/queryhaven/queryhaven-engine/pkg/database"
	"github.com/queryhaven/queryhaven-engine/pkg/handlers"
	"github.com/queryhaven/queryhaven-engine/pkg/llm"
	"github.com/queryhaven/queryhaven-engine/pkg/logging"
	"github.com/queryhaven/queryhaven-engine/pkg/repositories"
	"github.com/queryhaven/queryhaven-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("database", cfg.Database.Host),
		zap.String("redis", cfg.Redis.Host),
		zap.String("llm_endpoint", cfg.LLM.Endpoint),
		zap.String("llm_model", cfg.LLM.Model))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	var cacheBackend cache.Backend
	redisClient, err := database.NewRedisClient(&cfg.Redis)
	switch {
	case err != nil:
		logger.Warn("Redis unavailable, using in-memory cache backend", zap.Error(err))
		cacheBackend = cache.NewMemoryBackend()
	case redisClient != nil:
		logger.Info("Using Redis cache backend")
		cacheBackend = cache.NewRedisBackend(redisClient)
	default:
		logger.Info("Redis not configured, using in-memory cache backend")
		cacheBackend = cache.NewMemoryBackend()
	}

	llmClient, err := llm.NewClient(&llm.Config{
		Endpoint:       cfg.LLM.Endpoint,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		APIKey:         cfg.LLM.APIKey,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	schemaRepo := repositories.NewSchemaRepository(db)
	templateRepo := repositories.NewCachedTemplateRepository(
		repositories.NewTemplateRepository(db), cfg.Query.TemplateCacheTTL())

	tables, err := schemaRepo.GetActiveTables(ctx)
	if err != nil {
		logger.Fatal("Failed to load schema metadata", zap.Error(err))
	}
	refData := services.BuildClassifierReferenceData(tables)
	logger.Info("Schema metadata loaded", zap.Int("tables", len(tables)))

	classifier := services.NewContextClassifier(refData, logger)
	relevance := services.NewSchemaRelevanceEngine(schemaRepo, llmClient, logger)
	budget := services.NewTokenBudgetManager(&cfg.Query, logger)
	assembler := services.NewPromptAssembler(templateRepo, logger)
	queryCache := services.NewQueryCache(cacheBackend, llmClient, &cfg.Query, logger)
	executor := database.NewExecutor(db)

	orchestrator := services.NewQueryOrchestrator(
		classifier, relevance, budget, assembler, queryCache,
		llmClient, executor, &cfg.Query, cfg.LLM.Timeout(), logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewQueryHandler(orchestrator, logger).RegisterRoutes(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting queryhaven-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
