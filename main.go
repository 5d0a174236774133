package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pairlink-inc/pairlink-engine/pkg/config"
	"github.com/pairlink-inc/pairlink-engine/pkg/database"
	"github.com/pairlink-inc/pairlink-engine/pkg/handlers"
	"github.com/pairlink-inc/pairlink-engine/pkg/llm"
	"github.com/pairlink-inc/pairlink-engine/pkg/middleware"
	"github.com/pairlink-inc/pairlink-engine/pkg/notify"
	"github.com/pairlink-inc/pairlink-engine/pkg/repositories"
	"github.com/pairlink-inc/pairlink-engine/pkg/scoring"
	"github.com/pairlink-inc/pairlink-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("database", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)),
		zap.String("oracle_provider", cfg.Oracle.Provider),
		zap.String("oracle_model", cfg.Oracle.Model))

	ctx := context.Background()

	if err := database.Migrate(cfg.Database.ConnectionString(), cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	db, err := database.Connect(ctx, cfg.Database.ConnectionString(), cfg.Database.MaxConnections)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	relationshipRepo := repositories.NewRelationshipRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	responseRepo := repositories.NewResponseRepository(db)
	resultRepo := repositories.NewResultRepository(db)
	questionRepo := repositories.NewQuestionRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)
	userStatusRepo := repositories.NewUserStatusRepository(db)

	dispatcher := notify.NewDispatcher(notify.NewStoreSink(notificationRepo), 5*time.Second, logger)
	defer dispatcher.Wait()

	oracleClient, err := newOracleClient(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create oracle client", zap.Error(err))
	}
	breaker := llm.NewCircuitBreaker(llm.DefaultCircuitBreakerConfig())
	oracle := scoring.NewLLMOracle(oracleClient, breaker, cfg.Oracle.Timeout(), logger)

	relationshipService := services.NewRelationshipService(relationshipRepo, userStatusRepo, dispatcher, logger)
	sessionService := services.NewSessionService(relationshipRepo, sessionRepo, responseRepo, questionRepo, logger)
	scoringService := services.NewScoringService(
		relationshipRepo, sessionRepo, responseRepo, resultRepo, questionRepo,
		oracle, dispatcher, cfg.Scoring.ClaimExpiry(), logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewRelationshipHandler(relationshipService, logger).RegisterRoutes(mux)
	handlers.NewCompatibilityHandler(sessionService, scoringService, logger).RegisterRoutes(mux)
	handlers.NewNotificationHandler(notificationRepo, logger).RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting pairlink-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newOracleClient(cfg *config.Config, logger *zap.Logger) (llm.Client, error) {
	llmConfig := &llm.Config{
		Endpoint: cfg.Oracle.Endpoint,
		Model:    cfg.Oracle.Model,
		APIKey:   cfg.Oracle.APIKey,
	}
	switch cfg.Oracle.Provider {
	case "anthropic":
		return llm.NewAnthropicClient(llmConfig, logger)
	case "openai":
		return llm.NewOpenAIClient(llmConfig, logger)
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Oracle.Provider)
	}
}
