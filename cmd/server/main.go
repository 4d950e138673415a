// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"shopping-assistant/internal/common/config"
	"shopping-assistant/internal/common/database"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/observability"
	"shopping-assistant/internal/intent"
	"shopping-assistant/internal/llm"
	"shopping-assistant/internal/pipeline"
	"shopping-assistant/internal/retrieval"
	"shopping-assistant/internal/sanitize"
	"shopping-assistant/internal/server"
	"shopping-assistant/internal/session"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting shopping assistant",
		zap.String("environment", cfg.App.Environment),
		zap.String("retrieval_backend", cfg.Retrieval.Backend),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init generation backend ---
	llmClient := llm.NewOpenAIClient(cfg.LLM, log)
	generator := llm.WithTimeout(llmClient, time.Duration(cfg.LLM.Timeout)*time.Millisecond)

	readiness := []server.ReadinessCheck{
		{Name: "redis", Check: redisClient.Ping},
	}

	// --- Init retrieval backend ---
	var retriever retrieval.Retriever
	switch cfg.Retrieval.Backend {
	case "elasticsearch":
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		retriever = retrieval.NewElasticsearchRetriever(esClient, cfg.Database.Elasticsearch.Index, log)
		readiness = append(readiness, server.ReadinessCheck{
			Name:  "elasticsearch",
			Check: func(_ context.Context) error { return esClient.Ping() },
		})
		zapLog.Info("Elasticsearch connected successfully")

	case "pgvector":
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		embed := func(ctx context.Context, text string) ([]float32, error) {
			return llmClient.Embed(ctx, cfg.LLM.EmbeddingModel, text)
		}
		retriever = retrieval.NewPgVectorRetriever(pg.GetDB(), cfg.Retrieval.Table, embed, log)
		readiness = append(readiness, server.ReadinessCheck{Name: "postgres", Check: pg.Ping})
		zapLog.Info("PostgreSQL connected successfully")

	default:
		retriever = retrieval.NewDemoRetriever()
		zapLog.Info("using in-memory retrieval backend")
	}

	// --- Assemble pipeline and services ---
	classifier := intent.NewClassifier(generator, log)
	filter := retrieval.NewFilter(cfg.Pipeline.MinRelevance, cfg.Pipeline.MaxPassages)
	pipe := pipeline.New(
		pipeline.Config{TopK: cfg.Retrieval.TopK},
		classifier, retriever, filter, generator, obs, log,
	)

	sessions := session.NewService(redisClient, cfg.Sessions, log)

	var limiter server.Limiter
	if cfg.Security.RateLimit.Enabled {
		limiter = server.NewRedisRateLimiter(redisClient.GetClient(), cfg.Security.RateLimit)
	}

	srv := server.New(cfg, server.Deps{
		Pipeline:  pipe,
		Sessions:  sessions,
		Sanitizer: sanitize.New(cfg.Sanitizer.MaxLength),
		Retriever: retriever,
		Limiter:   limiter,
		Readiness: readiness,
		Logger:    log,
	})

	if err := srv.Start(ctx); err != nil {
		zapLog.Fatal("server stopped", zap.Error(err))
	}
	zapLog.Info("server shut down cleanly")
}
