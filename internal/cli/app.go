package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/p-n-ai/statsquest/internal/ai"
	"github.com/p-n-ai/statsquest/internal/api"
	"github.com/p-n-ai/statsquest/internal/curriculum"
	"github.com/p-n-ai/statsquest/internal/platform/cache"
	"github.com/p-n-ai/statsquest/internal/platform/config"
	"github.com/p-n-ai/statsquest/internal/platform/database"
	"github.com/p-n-ai/statsquest/internal/progress"
	"github.com/p-n-ai/statsquest/internal/tutor"
)

// loadConfig reads and validates the environment, then installs the default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.SetDefault(newLogger(cfg.Log, os.Stderr))
	return cfg, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// backend is the opened progress persistence with whatever connections it holds.
type backend struct {
	persister progress.Persister
	checks    map[string]api.Checker
	closers   []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{checks: make(map[string]api.Checker)}

	switch cfg.Progress.Backend {
	case config.BackendMemory:
		b.persister = progress.NewMemoryPersister(nil)

	case config.BackendFile:
		b.persister = progress.NewFilePersister(cfg.Progress.FilePath)

	case config.BackendRedis:
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return nil, fmt.Errorf("connect cache: %w", err)
		}
		b.closers = append(b.closers, func() { c.Close() })
		b.checks["cache"] = c
		b.persister = progress.NewRedisPersister(c.Client, cfg.Progress.Key)

	case config.BackendPostgres:
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		b.closers = append(b.closers, db.Close)
		b.checks["database"] = db
		p, err := progress.NewPostgresPersister(db.Pool, cfg.Progress.Key)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.persister = p

	default:
		return nil, fmt.Errorf("unknown progress backend %q", cfg.Progress.Backend)
	}

	slog.Info("progress backend ready", "backend", cfg.Progress.Backend)
	return b, nil
}

func loadCurriculum(path string) (*curriculum.Loader, error) {
	if path == "" {
		return curriculum.NewLoader(curriculum.DefaultFS)
	}
	return curriculum.NewDirLoader(path)
}

func newGateway(cfg config.AIConfig) *tutor.Gateway {
	client := &http.Client{Timeout: cfg.Timeout}
	return tutor.New(tutor.Config{
		Model:  cfg.Model,
		APIKey: config.GoogleAPIKey,
		NewProvider: func(apiKey string) ai.Provider {
			return ai.NewGoogleProvider(apiKey,
				ai.WithGoogleModel(cfg.Model),
				ai.WithGoogleBaseURL(cfg.BaseURL),
				ai.WithGoogleHTTPClient(client),
			)
		},
	})
}
