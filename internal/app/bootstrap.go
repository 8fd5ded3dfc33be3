package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/queue"
	"inkwell/internal/vector"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
)

// Dependencies holds the external connections the application needs. They are
// created once at startup and closed by main on shutdown.
type Dependencies struct {
	DB       *sql.DB
	Weaviate *weaviate.Client
	Broker   *queue.NSQBroker
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second
	for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
		if err := db.PingContext(ctx); err == nil {
			break
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1)
		time.Sleep(retryDelay)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return nil, fmt.Errorf("migration up error: %w", err)
	}

	wCfg := weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme}
	wClient, err := weaviate.NewClient(wCfg)
	if err != nil {
		return nil, fmt.Errorf("weaviate client error: %w", err)
	}

	schemaClient := vector.NewWeaviateClientAdapter(wClient)
	if err := EnsureSchemaWithRetry(ctx, schemaClient, cfg.BootstrapRetryAttempts, retryDelay); err != nil {
		return nil, fmt.Errorf("weaviate schema error: %w", err)
	}

	broker, err := queue.NewNSQBroker(cfg.NSQDHost, cfg.NSQLookupd)
	if err != nil {
		return nil, fmt.Errorf("nsq broker error: %w", err)
	}

	createQueues(cfg.NSQDHTTP)

	return &Dependencies{
		DB:       db,
		Weaviate: wClient,
		Broker:   broker,
	}, nil
}

// createQueues pre-creates NSQ topics so the first enqueue never races topic
// registration. Best effort; a failure here surfaces on the first publish.
func createQueues(nsqdHTTP string) {
	create := func(topic string) {
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, topic)
		resp, err := http.Post(url, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}

	go func() {
		time.Sleep(2 * time.Second)
		for _, q := range config.Queues {
			create(q)
		}
	}()
}

// EnsureSchemaWithRetry keeps trying the schema check until Weaviate is
// reachable. Compose brings the containers up in parallel, so the first few
// attempts routinely fail.
func EnsureSchemaWithRetry(ctx context.Context, client vector.SchemaClient, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = vector.EnsureSchema(ctx, client); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}
