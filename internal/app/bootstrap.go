package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"

	"vidsage/internal/adapter/gemini"
	"vidsage/internal/config"
)

type Dependencies struct {
	DB          *sql.DB
	NSQProducer *nsq.Producer
	Encoder     *gemini.Encoder
}

// Bootstrap opens and migrates the database, connects the NSQ producer and
// builds the Gemini encoder. Callers own closing the returned handles.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	// Database
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	// Retry loop
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

	// Migrations
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
	slog.Info("migrations applied successfully")

	// NSQ Producer
	producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("nsq producer error: %w", err)
	}

	// NSQ creates topics lazily on publish, but downstream consumers
	// querying lookupd 404 until then; pre-create via the nsqd http api.
	createTopics(cfg.NSQDHost, cfg.QuizTopic)

	// Gemini Encoder
	encoder, err := gemini.NewEncoder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("gemini encoder error: %w", err)
	}

	return &Dependencies{
		DB:          db,
		NSQProducer: producer,
		Encoder:     encoder,
	}, nil
}

func createTopics(nsqdHost string, topics ...string) {
	// nsqdHost is the TCP address ("nsqd:4150"); the http api listens on 4151.
	host, _, err := net.SplitHostPort(nsqdHost)
	if err != nil {
		host = nsqdHost
	}

	go func() {
		// Give nsqd a moment to come up.
		time.Sleep(2 * time.Second)
		for _, topic := range topics {
			url := fmt.Sprintf("http://%s:4151/topic/create?topic=%s", host, topic)
			resp, err := http.Post(url, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
			if err != nil {
				slog.Warn("failed to pre-create NSQ topic", "topic", topic, "error", err)
				continue
			}
			if closeErr := resp.Body.Close(); closeErr != nil {
				slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
			}
			slog.Info("NSQ topic pre-created", "topic", topic)
		}
	}()
}
