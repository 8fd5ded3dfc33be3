package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"inkwell/features/content"
	"inkwell/features/knowledge"
	"inkwell/features/request"
	"inkwell/features/status"
	"inkwell/features/usage"
	wstore "inkwell/internal/adapter/weaviate"
	"inkwell/internal/composer"
	"inkwell/internal/config"
	"inkwell/internal/distill"
	"inkwell/internal/llm"
	"inkwell/internal/middleware"
	"inkwell/internal/queue"
	"inkwell/internal/retrieval"
	"inkwell/internal/worker"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
)

// Generator and Embedder mirror the adapter surface so tests can swap the
// Gemini client for fakes.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Result, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type App struct {
	Handler http.Handler
	Runtime *queue.Runtime

	port      int
	enableAPI bool
}

func New(
	cfg *config.Config,
	db *sql.DB,
	wClient *weaviate.Client,
	broker queue.Broker,
	generator Generator,
	embedder Embedder,
	logger *slog.Logger,
) (*App, error) {
	runtime := queue.NewRuntime(broker, logger)

	vecStore := wstore.NewStore(wClient)

	genTimeout := time.Duration(cfg.GenerateTimeoutSeconds) * time.Second
	embedTimeout := time.Duration(cfg.EmbedTimeoutSeconds) * time.Second

	// Feature: Request
	requestRepo := request.NewPostgresRepo(db)
	requestService := request.NewService(requestRepo, embedder, runtime, embedTimeout)
	requestHandler := request.NewHandler(requestService)

	// Feature: Content
	contentRepo := content.NewPostgresRepo(db)
	contentHandler := content.NewHandler(contentRepo)

	// Feature: Knowledge
	knowledgeService := knowledge.NewService(runtime)
	knowledgeHandler := knowledge.NewHandler(knowledgeService)

	// Feature: Usage
	usageRepo := usage.NewPostgresRepo(db)
	usageRecorder := usage.NewRecorder(usageRepo)
	usageHandler := usage.NewHandler(usageRepo)

	// Feature: Status
	statusPublisher := status.NewQueuePublisher(runtime)
	statusConsumer := status.NewConsumer(requestRepo)
	statusHandler := status.NewHandler(requestRepo)

	// Retrieval
	queryLogger, err := retrieval.NewFileQueryLogger("data/logs/query.log")
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}
	retrievalService := retrieval.NewService(embedder, vecStore, queryLogger)

	// Generation engine and distillation pipeline
	engine := composer.NewEngine(generator, usageRecorder, statusPublisher, retrievalService, requestRepo, contentRepo, cfg.GeminiModel, genTimeout)
	pipeline := distill.NewPipeline(generator, embedder, runtime, genTimeout, embedTimeout)

	// Workers
	if cfg.EnableWorkers {
		generateConsumer := worker.NewGenerateConsumer(engine, requestRepo)
		if err := runtime.Consume(config.QueueGenerate, generateConsumer.Handle, queue.ConsumeOptions{
			Concurrency: cfg.GenerateConcurrency,
			RateLimit:   &queue.RateLimit{Max: cfg.GenerateRatePerMin, Window: time.Minute},
			MaxAttempts: 3,
			Backoff:     queue.BackoffPolicy{Type: queue.BackoffExponential, BaseDelay: 5 * time.Second},
			OnExhausted: generateConsumer.OnExhausted,
		}); err != nil {
			return nil, fmt.Errorf("consume %s: %w", config.QueueGenerate, err)
		}

		distillConsumer := worker.NewDistillConsumer(pipeline)
		if err := runtime.Consume(config.QueueDistill, distillConsumer.Handle, queue.ConsumeOptions{
			Concurrency: cfg.DistillConcurrency,
			MaxAttempts: 3,
			Backoff:     queue.BackoffPolicy{Type: queue.BackoffExponential, BaseDelay: 2 * time.Second},
		}); err != nil {
			return nil, fmt.Errorf("consume %s: %w", config.QueueDistill, err)
		}

		chunkConsumer := worker.NewChunkConsumer(vecStore)
		if err := runtime.Consume(config.QueueChunks, chunkConsumer.Handle, queue.ConsumeOptions{
			Concurrency: cfg.ChunkConcurrency,
			MaxAttempts: 3,
			Backoff:     queue.BackoffPolicy{Type: queue.BackoffLinear, BaseDelay: time.Second},
		}); err != nil {
			return nil, fmt.Errorf("consume %s: %w", config.QueueChunks, err)
		}

		if err := runtime.Consume(config.QueueStatus, statusConsumer.Handle, queue.ConsumeOptions{
			Concurrency: 1,
			MaxAttempts: 2,
			Backoff:     queue.BackoffPolicy{Type: queue.BackoffLinear, BaseDelay: time.Second},
		}); err != nil {
			return nil, fmt.Errorf("consume %s: %w", config.QueueStatus, err)
		}
	}

	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()

	mux.Handle("POST /requests", middleware.CorrelationID(enableCORS(requestHandler.Create)))
	mux.Handle("GET /requests", middleware.CorrelationID(enableCORS(requestHandler.List)))
	mux.Handle("GET /requests/{id}", middleware.CorrelationID(enableCORS(requestHandler.Get)))
	mux.Handle("POST /requests/{id}/approve", middleware.CorrelationID(enableCORS(requestHandler.Approve)))

	mux.Handle("GET /contents", middleware.CorrelationID(enableCORS(contentHandler.List)))
	mux.Handle("GET /contents/{slug}", middleware.CorrelationID(enableCORS(contentHandler.GetBySlug)))

	mux.Handle("POST /knowledge/distill", middleware.CorrelationID(enableCORS(knowledgeHandler.Distill)))

	mux.Handle("GET /requests/{id}/status", middleware.CorrelationID(enableCORS(statusHandler.Get)))
	mux.Handle("GET /usage/{id}", middleware.CorrelationID(enableCORS(usageHandler.Summary)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:   mux,
		Runtime:   runtime,
		port:      cfg.ServerPort,
		enableAPI: cfg.EnableAPI,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	if !a.enableAPI {
		slog.Info("api disabled, running workers only")
		<-ctx.Done()
		return nil
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
