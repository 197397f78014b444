package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"flat_bot/internal/bot"
	"flat_bot/internal/config"
	"flat_bot/internal/fetcher"
	"flat_bot/internal/filter"
	"flat_bot/internal/notifier"
	"flat_bot/internal/pipeline"
	"flat_bot/internal/scheduler"
	"flat_bot/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log, closeLog := newLogger(cfg.LogLevel, cfg.LogFile)
	defer func() { _ = closeLog.Close() }()

	store, err := openStore(cfg)
	if err != nil {
		log.Error("open storage", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	b, err := bot.New(cfg.TelegramBotToken, store, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	f := fetcher.New(http.DefaultClient, fetcher.Request{
		URL:     cfg.TargetURL,
		Method:  cfg.RequestMethod,
		Form:    cfg.RequestForm,
		Headers: cfg.Headers,
		Timeout: cfg.RequestTimeout,
	})
	criteria := filter.Criteria{
		RentCeiling: cfg.RentCeiling,
		Districts:   cfg.Districts,
		Include:     cfg.IncludeKeywords,
		Exclude:     cfg.ExcludeKeywords,
	}
	p := pipeline.New(f, store, criteria, cfg.DetailLinkBase, log)
	n := notifier.New(b, cfg.NotifyRate, log)

	sched := scheduler.New(p, n, store, log)
	sched.SetTickInterval(cfg.PollInterval)
	b.SetChecker(sched)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting bot",
		"url", cfg.TargetURL,
		"interval", cfg.PollInterval,
		"backend", cfg.StorageBackend,
		"rent_ceiling", cfg.RentCeiling,
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	b.Run(ctx)
	wg.Wait()

	log.Info("bot stopped")
}

func openStore(cfg *config.Config) (storage.Storage, error) {
	if cfg.StorageBackend == config.BackendJSON {
		return storage.NewJSONFiles(cfg.DataDir)
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory %s: %w", dir, err)
		}
	}
	return storage.NewSQLite(cfg.DatabasePath)
}

// newLogger writes to stderr and, when file is set, to a rotated log file.
// The returned closer releases the file.
func newLogger(level, file string) (*slog.Logger, io.Closer) {
	var out io.Writer = os.Stderr
	var closer io.Closer = io.NopCloser(nil)
	if file != "" {
		rotated := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    20,
			MaxBackups: 5,
			LocalTime:  true,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, rotated)
		closer = rotated
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: parseLevel(level)})), closer
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
