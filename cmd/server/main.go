package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"vidyaguide/handler"
	"vidyaguide/internal/integrations/openai"
	"vidyaguide/internal/integrations/paramstore"
	"vidyaguide/internal/integrations/pdftext"
	"vidyaguide/internal/repository"
	"vidyaguide/internal/usecase"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		slog.Error("server terminated", "err", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// ---- Configuration (read only here) ----
	cfg, err := loadConfig()
	if err != nil {
		return exitConfig, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return exitConfig, fmt.Errorf("config error: VIDYA_LOG_LEVEL: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return exitRuntime, fmt.Errorf("load AWS config: %w", err)
	}

	// ---- Clients ----
	llmOpts := []openai.Option{
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithRateLimit(cfg.RatePerSecond, cfg.RateBurst),
	}
	if cfg.APIKey != "" {
		llmOpts = append(llmOpts, openai.WithAPIKey(cfg.APIKey))
	} else {
		params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			return exitRuntime, fmt.Errorf("create parameter store client: %w", err)
		}
		llmOpts = append(llmOpts, openai.WithParamStore(params, paramstore.Name(cfg.ParamPrefix, "api-token")))
	}
	llm, err := openai.NewClient(llmOpts...)
	if err != nil {
		return exitConfig, fmt.Errorf("create LLM client: %w", err)
	}

	store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
	if err != nil {
		return exitConfig, fmt.Errorf("create state client: %w", err)
	}

	// ---- Use cases ----
	chat, err := usecase.NewChatService(llm, store, usecase.ChatConfig{
		Model:         cfg.Model,
		MaxMessageLen: cfg.MaxMessageLength,
		HistoryLimit:  cfg.HistoryLimit,
	})
	if err != nil {
		return exitConfig, fmt.Errorf("create chat service: %w", err)
	}
	analyze, err := usecase.NewAnalyzeService(llm, pdftext.IsPDF, pdftext.Extract, cfg.Model)
	if err != nil {
		return exitConfig, fmt.Errorf("create analyze service: %w", err)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(chat, analyze, handler.WithLogger(logger))
	if err != nil {
		return exitConfig, fmt.Errorf("create handler: %w", err)
	}

	if cfg.LocalAddr == "" {
		lambda.Start(h.Handle)
		return exitOK, nil
	}
	return serveLocal(ctx, logger, cfg.LocalAddr, h)
}

func serveLocal(ctx context.Context, logger *slog.Logger, addr string, h *handler.Handler) (int, error) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler.Server(h, os.Stdout),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return exitOK, nil
		}
		return exitRuntime, fmt.Errorf("local server: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return exitRuntime, fmt.Errorf("shutdown: %w", err)
		}
		return exitOK, nil
	}
}
