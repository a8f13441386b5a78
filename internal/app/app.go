package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"vidsage/features/queue"
	"vidsage/features/search"
	"vidsage/features/video"
	"vidsage/internal/config"
	"vidsage/internal/embedding"
	"vidsage/internal/middleware"
	"vidsage/internal/transcript"
	"vidsage/internal/worker"
)

// Database is the connection handle App accepts. Kept as an interface so
// tests can hand in sqlmock; production passes *sql.DB.
type Database interface {
	PingContext(ctx context.Context) error
}

type App struct {
	Handler http.Handler
	Worker  *worker.Pool

	port int
}

func New(
	cfg *config.Config,
	db Database,
	quizPub worker.QuizPublisher,
	encoder embedding.Encoder,
) (*App, error) {

	// Cast db to *sql.DB for the repositories. The interface in the
	// signature keeps the constructor mockable.
	sqlDB := db.(*sql.DB)

	engine := embedding.NewEngine(encoder)

	// Feature: Video
	videoRepo := video.NewPostgresRepo(sqlDB)
	videoHandler := video.NewHandler(videoRepo)

	// Feature: Queue
	queueRepo := queue.NewPostgresRepo(sqlDB)
	queueService := queue.NewService(queueRepo)
	queueHandler := queue.NewHandler(queueService)

	// Feature: Search
	searchService := search.NewService(videoRepo, engine)
	searchHandler := search.NewHandler(searchService)

	// Worker Pool
	fetcher := transcript.NewClient(cfg.TranscriptBaseURL)
	pool := worker.NewPool(queueRepo, videoRepo, engine, fetcher, quizPub, worker.Config{
		MaxConcurrent:  cfg.WorkerMaxConcurrent,
		PollInterval:   time.Duration(cfg.WorkerPollSeconds) * time.Second,
		MaxRetries:     cfg.WorkerMaxRetries,
		RateDelayMin:   time.Duration(cfg.RateDelayMinSeconds * float64(time.Second)),
		RateDelayMax:   time.Duration(cfg.RateDelayMaxSeconds * float64(time.Second)),
		StaleAfter:     time.Duration(cfg.StaleReclaimMinutes) * time.Minute,
		EmbeddingModel: cfg.EmbeddingModel,
		QuizTopic:      cfg.QuizTopic,
	})

	// Middleware: CORS
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

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /admin/queue/process", middleware.CorrelationID(enableCORS(queueHandler.Process)))
	mux.Handle("GET /admin/queue/status", middleware.CorrelationID(enableCORS(queueHandler.QueueStatus)))
	mux.Handle("POST /admin/queue/retry-failed", middleware.CorrelationID(enableCORS(queueHandler.RetryFailed)))
	mux.Handle("POST /admin/queue/purge", middleware.CorrelationID(enableCORS(queueHandler.Purge)))
	mux.Handle("GET /admin/courses/{id}/processing-status", middleware.CorrelationID(enableCORS(queueHandler.CourseStatus)))

	mux.Handle("GET /videos/{id}/status", middleware.CorrelationID(enableCORS(videoHandler.Status)))
	mux.Handle("POST /videos/search", middleware.CorrelationID(enableCORS(searchHandler.Search)))
	mux.Handle("GET /videos/{id}/similar", middleware.CorrelationID(enableCORS(searchHandler.Similar)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler: mux,
		Worker:  pool,
		port:    cfg.ServerPort,
	}, nil
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
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
