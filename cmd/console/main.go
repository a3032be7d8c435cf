// Command console runs the multi-modal console daemon: an HTTP API the
// browser front end uses for chat, streaming generation, image and video
// jobs, speech, history, and sharing.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/LyrebirdAI/console/config"
	"github.com/LyrebirdAI/console/gateway"
	"github.com/LyrebirdAI/console/history"
	"github.com/LyrebirdAI/console/internal/httpapi"
	"github.com/LyrebirdAI/console/logger"
	"github.com/LyrebirdAI/console/version"
)

const shutdownGrace = 10 * time.Second

func main() {
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		logger.SetVerbose(true)
	}

	if err := run(); err != nil {
		logger.Error("console exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	gw := gateway.New(cfg.APIKey,
		gateway.WithBaseURL(cfg.BaseURL),
		gateway.WithTextModel(cfg.TextModel),
		gateway.WithImageModel(cfg.ImageModel),
		gateway.WithVideoModel(cfg.VideoModel),
		gateway.WithTTSModel(cfg.TTSModel),
		gateway.WithTimeout(cfg.RequestTimeout),
	)

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}

	templates, err := history.LoadTemplates(cfg.TemplatesPath)
	if err != nil {
		return fmt.Errorf("failed to load prompt templates: %w", err)
	}
	if len(templates) > 0 {
		logger.Info("loaded prompt templates", "path", cfg.TemplatesPath, "count", len(templates))
	}

	api := httpapi.New(gw, store, cfg.PollInterval,
		httpapi.WithLive(cfg.LiveURL, cfg.APIKey, cfg.LiveModel),
		httpapi.WithTemplates(templates),
	)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("console listening", "addr", cfg.ListenAddr, "version", version.String())
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildStore picks the history backend: Redis when an address is
// configured, a JSON file when a directory is, memory otherwise.
func buildStore(cfg *config.Config) (history.Store, error) {
	switch {
	case cfg.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		logger.Info("using redis history store", "addr", cfg.RedisAddr)
		return history.NewRedisStore(client, history.WithRedisCap(cfg.HistoryCap)), nil
	case cfg.HistoryDir != "":
		path := filepath.Join(cfg.HistoryDir, "history.json")
		store, err := history.NewFileStore(path, history.WithFileCap(cfg.HistoryCap))
		if err != nil {
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
		logger.Info("using file history store", "path", path)
		return store, nil
	default:
		logger.Info("using in-memory history store")
		return history.NewMemoryStore(history.WithCap(cfg.HistoryCap)), nil
	}
}
