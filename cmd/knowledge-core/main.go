package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/knowledge-core/internal/adapters/driven/ai"
	"github.com/custodia-labs/knowledge-core/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/knowledge-core/internal/adapters/driven/redis"
	"github.com/custodia-labs/knowledge-core/internal/adapters/driven/supabase"
	"github.com/custodia-labs/knowledge-core/internal/config"
	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driving"
	"github.com/custodia-labs/knowledge-core/internal/core/services"
	"github.com/custodia-labs/knowledge-core/internal/parse"
	"github.com/custodia-labs/knowledge-core/internal/worker"
)

var version = "dev"

func main() {
	cfg := config.Load()

	// Run mode from environment (RUN_MODE) or command line arg
	mode := os.Getenv("RUN_MODE")
	if mode == "" {
		mode = "probe"
	}
	args := os.Args[1:]
	if len(args) > 0 {
		mode = args[0]
		args = args[1:]
	}

	log.Printf("knowledge-core %s starting in %s mode", version, mode)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutdown signal received, stopping...")
		cancel()
	}()

	// ===== Knowledge store (Supabase or direct Postgres) =====
	var store driven.KnowledgeStore
	switch cfg.StoreBackend {
	case "supabase":
		store = supabase.NewStore(supabase.DefaultConfig(cfg.SupabaseURL, cfg.SupabaseKey))
		log.Println("Using Supabase knowledge store")
	case "postgres":
		db, err := postgres.Connect(ctx, postgres.DefaultConfig(cfg.DatabaseURL))
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		store = postgres.NewStore(db)
		log.Println("Using PostgreSQL knowledge store")
	default:
		log.Fatalf("Unknown store backend: %s (use: supabase or postgres)", cfg.StoreBackend)
	}

	// ===== Embedder =====
	embedder, err := ai.NewEmbedder(ai.EmbedderConfig{
		Provider: cfg.EmbeddingProvider,
		BaseURL:  cfg.EmbeddingBaseURL,
		Model:    cfg.EmbeddingModel,
		APIKey:   cfg.OpenAIAPIKey,
	})
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}

	// Optional Redis cache in front of the embedder
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		cache := redisadapter.NewEmbeddingCache(redisClient, 0)
		embedder = ai.NewCachingEmbedder(embedder, cache)
		log.Println("Using Redis embedding cache")
	}

	// ===== Services =====
	ingestor := services.NewIngestor(services.IngestorConfig{
		Store:            store,
		Embedder:         embedder,
		EmbedOnIngest:    cfg.EmbedOnIngest,
		BackfillDefaults: cfg.Backfill,
	})
	retriever := services.NewRetriever(services.RetrieverConfig{
		Store:    store,
		Embedder: embedder,
		Defaults: cfg.Search,
	})

	switch mode {
	case "probe":
		runProbe(ctx, embedder, store)
	case "stats":
		runStats(ctx, ingestor)
	case "ingest":
		if len(args) == 0 {
			log.Fatal("Usage: knowledge-core ingest <file-or-directory>")
		}
		runIngest(ctx, ingestor, args[0])
	case "search":
		if len(args) == 0 {
			log.Fatal("Usage: knowledge-core search <query>")
		}
		runSearch(ctx, retriever, args[0])
	case "backfill":
		runBackfillWorker(ctx, cfg, ingestor, store)
	default:
		log.Fatalf("Unknown mode: %s (use: probe, stats, ingest, search, or backfill)", mode)
	}
}

// runProbe checks the embedding service and the store and prints what it
// finds. Exit code reflects overall health.
func runProbe(ctx context.Context, embedder driven.Embedder, store driven.KnowledgeStore) {
	healthy := true

	ok, detail := embedder.Probe(ctx)
	fmt.Printf("embedding service: %s (model=%s, dims=%d)\n", detail, embedder.Model(), embedder.Dimensions())
	if !ok {
		healthy = false
	}

	if err := store.Ping(ctx); err != nil {
		fmt.Printf("knowledge store: unreachable: %v\n", err)
		healthy = false
	} else {
		fmt.Println("knowledge store: ok")
	}

	if !healthy {
		os.Exit(1)
	}
}

func runStats(ctx context.Context, ingestor driving.Ingestor) {
	stats, err := ingestor.Stats(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch stats: %v", err)
	}

	fmt.Printf("sources:                   %d\n", stats.TotalSources)
	fmt.Printf("chunks:                    %d\n", stats.TotalChunks)
	fmt.Printf("chunks with embeddings:    %d\n", stats.ChunksWithEmbeddings)
	fmt.Printf("chunks without embeddings: %d\n", stats.ChunksWithoutEmbeddings)
}

// runIngest parses a file or directory and ingests every document.
func runIngest(ctx context.Context, ingestor driving.Ingestor, path string) {
	registry := parse.NewRegistry(parse.NewPDFConverter())

	info, err := os.Stat(path)
	if err != nil {
		log.Fatalf("Cannot read %s: %v", path, err)
	}

	var docs []*domain.ParsedDocument
	if info.IsDir() {
		docs, err = registry.ParseDirectory(path, true)
		if err != nil {
			log.Fatalf("Failed to parse directory: %v", err)
		}
	} else {
		doc, err := registry.ParseDocument(path)
		if err != nil {
			log.Fatalf("Failed to parse %s: %v", path, err)
		}
		docs = []*domain.ParsedDocument{doc}
	}

	ingested, skipped := 0, 0
	for _, doc := range docs {
		chunks := parse.ChunkDocument(doc)
		if len(chunks) == 0 {
			log.Printf("Skipping %s: no content", doc.Path)
			skipped++
			continue
		}

		result, err := ingestor.Ingest(ctx, doc, chunks)
		if err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				log.Printf("Skipping %s: already ingested", doc.Path)
				skipped++
				continue
			}
			log.Fatalf("Failed to ingest %s: %v", doc.Path, err)
		}

		log.Printf("Ingested %s: %d chunks, %d embedded (run %s)",
			doc.Path, result.ChunksAccepted, result.ChunksEmbedded, result.RunID)
		ingested++
	}

	fmt.Printf("ingested %d document(s), skipped %d\n", ingested, skipped)
}

func runSearch(ctx context.Context, retriever driving.Retriever, query string) {
	var (
		chunks []*domain.Chunk
		err    error
	)
	if os.Getenv("SEARCH_MODE") == "semantic" {
		chunks, err = retriever.SearchSemantic(ctx, query, domain.SearchOptions{})
	} else {
		chunks, err = retriever.SearchHybrid(ctx, query, domain.SearchOptions{})
	}
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}

	if len(chunks) == 0 {
		fmt.Println("no results")
		return
	}

	for i, c := range chunks {
		title := c.Title
		if title == "" {
			title = c.URL
		}
		fmt.Printf("%2d. [%.3f] %s\n    %s\n", i+1, c.Similarity, title, snippet(c.Content, 160))
	}
}

// runBackfillWorker runs the periodic backfill worker until a signal.
func runBackfillWorker(ctx context.Context, cfg config.Config, ingestor driving.Ingestor, store driven.KnowledgeStore) {
	w := worker.New(worker.Config{
		Ingestor: ingestor,
		Store:    store,
		Interval: cfg.WorkerInterval,
		Backfill: cfg.Backfill,
	})

	if err := w.Start(ctx); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	log.Printf("Backfill worker running (interval=%s)", cfg.WorkerInterval)

	<-ctx.Done()
	w.Stop()
}

func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
