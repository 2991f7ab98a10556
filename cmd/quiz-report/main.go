package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"quiz-report/internal/config"
	"quiz-report/internal/env"
	"quiz-report/internal/infrastructure/asset"
	"quiz-report/internal/infrastructure/pdf"
	"quiz-report/internal/infrastructure/repo"
	"quiz-report/internal/infrastructure/webhook"
	"quiz-report/internal/logger"
	"quiz-report/internal/server"
	"quiz-report/internal/usecase"
)

func main() {
	if err := env.Load(".env", ".env.local"); err != nil {
		fmt.Fprintln(os.Stderr, "load dotenv:", err)
	}
	defaults, err := config.Load(os.Getenv("QUIZ_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		defaults = config.EnvDefaults()
	}

	envName := flag.String("env", defaults.Env, "")
	port := flag.Int("port", defaults.Port, "")
	outputDir := flag.String("output-dir", defaults.OutputDir, "")
	assetDir := flag.String("asset-dir", defaults.AssetDir, "")
	logFile := flag.String("log-file", defaults.LogFile, "")
	logLevel := flag.String("log-level", defaults.LogLevel, "")
	logJSON := flag.Bool("log-json", defaults.LogJSON, "")
	renderer := flag.String("renderer", defaults.Renderer, "fpdf or chromedp")
	chromeURL := flag.String("chrome-url", defaults.ChromeURL, "")
	databaseURL := flag.String("database-url", defaults.DatabaseURL, "")
	maxRetries := flag.Int("max-generation-retries", defaults.Generation.MaxRetries, "")
	webhookRetry := flag.Int("webhook-retry", defaults.Webhook.Retry, "")
	webhookBackoff := flag.Duration("webhook-backoff", defaults.Webhook.Backoff, "")

	flag.Parse()

	cfg := defaults
	cfg.Env = *envName
	cfg.Port = *port
	cfg.OutputDir = *outputDir
	cfg.AssetDir = *assetDir
	cfg.LogFile = *logFile
	cfg.LogLevel = *logLevel
	cfg.LogJSON = *logJSON
	cfg.Renderer = *renderer
	cfg.ChromeURL = *chromeURL
	cfg.DatabaseURL = *databaseURL
	cfg.Generation.MaxRetries = *maxRetries
	cfg.Webhook.Retry = *webhookRetry
	cfg.Webhook.Backoff = *webhookBackoff

	ensureDir(cfg.OutputDir)
	ensureDir(cfg.AssetDir)

	log, err := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		JSON:    cfg.LogJSON,
		File:    cfg.LogFile,
		Console: true,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	var render usecase.Renderer
	switch cfg.Renderer {
	case config.RendererChromedp:
		r := pdf.NewChromedpRenderer(pdf.ChromedpConfig{
			RemoteURL: cfg.ChromeURL,
			NoSandbox: os.Geteuid() == 0,
			Logger:    log.Named("chromedp"),
		})
		defer r.Close()
		render = r
	default:
		render = pdf.NewFPDFRenderer(log)
	}

	var records usecase.RecordRepo = repo.NewMemoryRecordRepo()
	if cfg.DatabaseURL != "" {
		pg, err := repo.NewPostgresRepo(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer pg.Close()
		records = pg
	}

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	files := asset.NewFSWriter(cfg.OutputDir)
	gen := &usecase.GenerationService{
		Renderer: render,
		Reports:  files,
		Images:   asset.NewArchetypeImages(cfg.AssetDir),
		Records:  records,
		Notifier: &usecase.WebhookNotifier{
			Poster: &webhook.Client{
				HTTP:    &http.Client{},
				Timeout: cfg.Webhook.Timeout,
				Secret:  cfg.Webhook.Secret,
			},
			Logger:  log,
			Retry:   cfg.Webhook.Retry,
			Backoff: cfg.Webhook.Backoff,
		},
		Logger:     log,
		MaxRetries: cfg.Generation.MaxRetries,
		Backoff:    cfg.Generation.Backoff,
	}

	srv := server.New(cfg, server.Deps{
		Generator: gen,
		History:   &usecase.HistoryService{Repo: records},
		Files:     files,
		Logger:    log,
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting",
			zap.String("addr", httpSrv.Addr),
			zap.String("env", cfg.Env),
			zap.String("renderer", cfg.Renderer),
			zap.String("output_dir", cfg.OutputDir),
			zap.Bool("history_postgres", cfg.DatabaseURL != ""),
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down server", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownIn)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}

func ensureDir(p string) {
	if strings.TrimSpace(p) == "" {
		return
	}
	if _, err := os.Stat(p); os.IsNotExist(err) {
		_ = os.MkdirAll(p, 0o755)
	}
}
