package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/garnizeh/hireflow/api"
	migrations "github.com/garnizeh/hireflow/db"
	"github.com/garnizeh/hireflow/internal/analysis"
	"github.com/garnizeh/hireflow/internal/assessment"
	"github.com/garnizeh/hireflow/internal/blob"
	"github.com/garnizeh/hireflow/internal/config"
	"github.com/garnizeh/hireflow/internal/db"
	"github.com/garnizeh/hireflow/internal/intake"
	"github.com/garnizeh/hireflow/internal/questionbank"
	"github.com/garnizeh/hireflow/internal/repository/sqlite"
	"github.com/garnizeh/hireflow/internal/tasks"
	"github.com/garnizeh/hireflow/pkg/ollama"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	api.SetLogger(logger)
	analysis.SetLogger(logger)
	ollama.SetLogger(logger)

	// a missing .env is fine; real environment variables win
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load .env", "err", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fatal(logger, "failed to load config", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal(logger, "invalid config", err)
	}

	logger.Info("starting hireflow", "version", version, "build_time", buildTime)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open database connection
	conn, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		fatal(logger, "failed to open DB", err)
	}
	if err := db.Migrate(ctx, conn, migrations.Migrations); err != nil {
		fatal(logger, "failed to migrate DB", err)
	}
	repo := sqlite.New(conn, logger)

	blobs, err := blob.NewFileStore(cfg.BlobDir)
	if err != nil {
		fatal(logger, "failed to open blob store", err)
	}

	var closers []io.Closer

	gen, closer, err := questionGenerator(ctx, cfg)
	if err != nil {
		fatal(logger, "failed to create question generator", err)
	}
	closers = append(closers, closer)

	assessments := assessment.NewService(repo, repo, repo, questionbank.NewBank(gen, logger), logger)
	if cfg.QuestionBank.Timeout > 0 {
		assessments.GenerateTimeout = cfg.QuestionBank.Timeout
	}

	applications := intake.NewService(repo, repo, repo, blobs, logger)
	applications.MaxAttempts = cfg.Workers.MaxAttempts

	merger, err := analysis.NewMerger(repo)
	if err != nil {
		fatal(logger, "failed to create result merger", err)
	}

	var dispatcher analysis.Dispatcher
	switch strings.ToLower(cfg.Analyzers.Transport) {
	case "amqp":
		amqpCfg := cfg.Analyzers.AMQP
		mq, pubCh, err := analysis.DialAMQP(amqpCfg.URL, amqpCfg.RequestQueue, amqpCfg.ResultQueue)
		if err != nil {
			fatal(logger, "failed to connect to rabbitmq", err)
		}
		closers = append(closers, mq)
		dispatcher = analysis.NewAMQPDispatcher(pubCh, amqpCfg.RequestQueue)

		subCh, err := mq.Channel()
		if err != nil {
			fatal(logger, "failed to open consumer channel", err)
		}
		consumer := analysis.NewConsumer(subCh, amqpCfg.ResultQueue, merger)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logger.Error("result consumer stopped", "err", err)
			}
		}()
	default:
		dispatcher = analysis.NewHTTPDispatcher(cfg.Analyzers.Endpoints, cfg.Analyzers.Token, cfg.Analyzers.Timeout)
	}

	handler := analysis.NewRequestHandler(repo, repo, dispatcher, cfg.Analyzers.CallbackBase)
	pool := tasks.NewWorkerPool(repo, map[string]tasks.Handler{
		tasks.TypeAnalysisRequest: handler.Handle,
	}, logger, cfg.Workers.Count)
	if err := pool.Recover(ctx); err != nil {
		fatal(logger, "failed to recover tasks", err)
	}
	pool.Start(ctx)

	router := api.SetupRoutes(cfg, version, buildTime, api.Services{
		Repo:       repo.Repository(),
		Intake:     applications,
		Assessment: assessments,
		Merger:     merger,
		Blobs:      blobs,
		DB:         conn.GetConn(),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.APITimeout + cfg.QuestionBank.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal(logger, "server failed to start", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
	}
	pool.Stop()

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Warn("close", "err", err)
		}
	}

	// Close database connection
	if err := conn.Close(); err != nil {
		logger.Error("error closing DB", "err", err)
	}

	logger.Info("server exited")
}

// questionGenerator builds the configured LLM backend for MCQ generation.
func questionGenerator(ctx context.Context, cfg *config.Config) (questionbank.Generator, io.Closer, error) {
	qb := cfg.QuestionBank
	if strings.ToLower(qb.Provider) == "vertex" {
		g, err := questionbank.NewVertexGenerator(ctx, cfg.Vertex.Project, cfg.Vertex.Location, qb.Model, qb.Template)
		if err != nil {
			return nil, nil, err
		}
		return g, g, nil
	}
	client, err := ollama.NewDefaultClient(cfg.Ollama)
	if err != nil {
		return nil, nil, err
	}
	// generation is lazy, so a missing model only matters once a job is served
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.EnsureModel(pctx, qb.Model); err != nil {
		slog.Warn("question model unavailable", "model", qb.Model, "err", err)
	}
	g, err := questionbank.NewOllamaGenerator(client, qb.Model, qb.Template)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return g, client, nil
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "err", err)
	os.Exit(1)
}
