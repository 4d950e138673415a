// cmd/tools/kb-loader/main.go
//
// Bulk-loads knowledge base documents into the configured retrieval
// backend. Input is a JSON file holding an array of documents in the
// same shape the ingestion API accepts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"shopping-assistant/internal/common/config"
	"shopping-assistant/internal/common/database"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/validation"
	"shopping-assistant/internal/llm"
	"shopping-assistant/internal/retrieval"
	"shopping-assistant/internal/sanitize"
)

func main() {
	filePath := flag.String("file", "", "Path to the JSON document file (required)")
	backend := flag.String("backend", "", "Retrieval backend override (elasticsearch, pgvector)")
	batchSize := flag.Int("batch", 50, "Documents per ingestion batch")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall ingestion timeout")
	flag.Parse()

	if *filePath == "" {
		fmt.Println("Error: -file is required.")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Retrieval.Backend = *backend
	}

	zapLog := logger.New(cfg.Logging.Level, "console")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	raw, err := os.ReadFile(*filePath)
	if err != nil {
		fmt.Printf("Error reading %s: %v\n", *filePath, err)
		os.Exit(1)
	}
	docs, err := validation.ParseDocuments(raw)
	if err != nil {
		fmt.Printf("Error parsing documents: %v\n", err)
		os.Exit(1)
	}
	zapLog.Info("parsed document file",
		zap.String("file", *filePath),
		zap.Int("documents", len(docs)),
	)

	sanitizer := sanitize.New(cfg.Sanitizer.MaxLength)
	kept := make([]retrieval.Document, 0, len(docs))
	skipped := 0
	for _, doc := range docs {
		result := sanitizer.Sanitize(doc.TextContent(), false)
		if !result.IsSafe {
			skipped++
			zapLog.Warn("skipping unsafe document", zap.String("id", doc.ID))
			continue
		}
		kept = append(kept, retrieval.Document{
			ID:       doc.ID,
			Title:    doc.Title,
			Content:  result.SanitizedText,
			Metadata: doc.Metadata,
		})
	}

	retriever, cleanup, err := openRetriever(ctx, cfg, log)
	if err != nil {
		fmt.Printf("Error connecting to retrieval backend: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	ingested := 0
	for start := 0; start < len(kept); start += *batchSize {
		end := start + *batchSize
		if end > len(kept) {
			end = len(kept)
		}
		if err := retriever.AddDocuments(ctx, kept[start:end]); err != nil {
			fmt.Printf("Error ingesting batch starting at %d: %v\n", start, err)
			os.Exit(1)
		}
		ingested += end - start
		zapLog.Info("ingested batch", zap.Int("total", ingested), zap.Int("remaining", len(kept)-ingested))
	}

	fmt.Printf("Ingested %d documents (%d skipped) into %s\n", ingested, skipped, cfg.Retrieval.Backend)
}

func openRetriever(ctx context.Context, cfg *config.Config, log logger.Logger) (retrieval.Retriever, func(), error) {
	switch cfg.Retrieval.Backend {
	case "elasticsearch":
		esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, nil, err
		}
		if err := esClient.Ping(); err != nil {
			return nil, nil, err
		}
		return retrieval.NewElasticsearchRetriever(esClient, cfg.Database.Elasticsearch.Index, log), func() {}, nil

	case "pgvector":
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		llmClient := llm.NewOpenAIClient(cfg.LLM, log)
		embed := func(ctx context.Context, text string) ([]float32, error) {
			return llmClient.Embed(ctx, cfg.LLM.EmbeddingModel, text)
		}
		return retrieval.NewPgVectorRetriever(pg.GetDB(), cfg.Retrieval.Table, embed, log), func() { pg.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("backend %q does not support bulk loading", cfg.Retrieval.Backend)
	}
}
