package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/mealplanner/internal/domain/blob"
	"github.com/yanqian/mealplanner/internal/domain/export"
	"github.com/yanqian/mealplanner/internal/domain/mealplan"
	"github.com/yanqian/mealplanner/internal/domain/session"
	"github.com/yanqian/mealplanner/internal/infra/config"
	"github.com/yanqian/mealplanner/internal/infra/exportrepo"
	"github.com/yanqian/mealplanner/internal/infra/imagecache"
	"github.com/yanqian/mealplanner/internal/infra/images"
	"github.com/yanqian/mealplanner/internal/infra/llm/chatgpt"
	"github.com/yanqian/mealplanner/internal/infra/llmplanner"
	"github.com/yanqian/mealplanner/internal/infra/pdf"
	"github.com/yanqian/mealplanner/internal/infra/planapi"
	"github.com/yanqian/mealplanner/internal/infra/stockphoto"
	"github.com/yanqian/mealplanner/internal/infra/storage"
)

func provideSessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		Secret:        cfg.Session.Secret,
		TTL:           cfg.Session.TTL,
		SweepInterval: cfg.Session.SweepInterval,
		ExportPrefix:  cfg.Export.KeyPrefix,
		HistoryLimit:  cfg.Export.HistoryLimit,
	}
}

func provideMealPlanConfig(cfg *config.Config) mealplan.Config {
	return mealplan.Config{ImageKeyPrefix: cfg.Planner.ImageKeyPrefix}
}

func provideExportConfig(cfg *config.Config) export.Config {
	return export.Config{
		Filename:         cfg.Export.Filename,
		ImageConcurrency: cfg.Export.ImageConcurrency,
	}
}

func provideImageConfig(cfg *config.Config) images.Config {
	return images.Config{
		Timeout:  cfg.Export.ImageTimeout,
		MaxBytes: cfg.Export.MaxImageBytes,
		CacheTTL: cfg.Cache.ImageTTL,

		AllowPrivateNetworks: cfg.Export.AllowPrivateImageHosts,
	}
}

// provideStockPhotos chains the configured photo providers in the order
// pixabay, pexels, unsplash.
func provideStockPhotos(cfg config.ImageSearchConfig, logger *slog.Logger) *stockphoto.Chain {
	var searchers []stockphoto.Searcher
	if cfg.PixabayKey != "" {
		searchers = append(searchers, stockphoto.NewPixabay("", cfg.PixabayKey, cfg.Timeout))
	}
	if cfg.PexelsKey != "" {
		searchers = append(searchers, stockphoto.NewPexels("", cfg.PexelsKey, cfg.Timeout))
	}
	if cfg.UnsplashKey != "" {
		searchers = append(searchers, stockphoto.NewUnsplash("", cfg.UnsplashKey, cfg.Timeout))
	}
	if len(searchers) > 0 {
		logger.Info("recipe photo search enabled", "providers", len(searchers))
	}
	return stockphoto.NewChain(logger, searchers...)
}

func provideCanvasFactory() export.CanvasFactory {
	return pdf.NewCanvas
}

// provideGenerator picks the plan source. The backend provider talks to the
// recipe service; the llm provider prompts a chat model directly.
func provideGenerator(cfg *config.Config, logger *slog.Logger) (mealplan.Generator, error) {
	switch cfg.Planner.Provider {
	case "llm":
		client, err := chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.Planner.Timeout)
		if err != nil {
			return nil, err
		}
		logger.Info("llm planner enabled", "model", cfg.LLM.Model)
		gen := llmplanner.NewGenerator(llmplanner.Config{
			Model:        cfg.LLM.Model,
			Temperature:  cfg.LLM.Temperature,
			MaxTokens:    cfg.LLM.MaxTokens,
			ImageLookups: cfg.LLM.ImageSearch.Concurrency,
		}, client, logger)
		if chain := provideStockPhotos(cfg.LLM.ImageSearch, logger); chain.Len() > 0 {
			gen.WithImageFinder(chain)
		}
		return gen, nil
	case "backend":
		logger.Info("backend planner enabled", "baseUrl", cfg.Planner.BaseURL)
		return planapi.NewClient(cfg.Planner.BaseURL, cfg.Planner.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown planner provider %q", cfg.Planner.Provider)
	}
}

func provideObjectStorage(cfg *config.Config, logger *slog.Logger) blob.ObjectStorage {
	r2 := cfg.Storage.R2
	if !r2.Enabled() {
		logger.Info("r2 storage not configured, using memory storage")
		return storage.NewMemoryStorage()
	}
	store, err := storage.NewR2Storage(storage.R2Config{
		Endpoint:  r2.Endpoint,
		AccessKey: r2.AccessKey,
		SecretKey: r2.SecretKey,
		Bucket:    r2.Bucket,
		Region:    r2.Region,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize r2 storage, using memory storage", "error", err)
		return storage.NewMemoryStorage()
	}
	logger.Info("r2 storage enabled", "bucket", r2.Bucket)
	return store
}

func provideImageCache(cfg *config.Config, logger *slog.Logger) images.Cache {
	if cfg.Cache.Valkey.Enabled {
		opt, err := buildValkeyOptions(cfg.Cache.Valkey.Addr)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to memory cache", "error", err)
			return imagecache.NewMemoryCache(cfg.Cache.MemoryMaxBytes)
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, falling back to memory cache", "error", err)
			return imagecache.NewMemoryCache(cfg.Cache.MemoryMaxBytes)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			logger.Error("valkey ping failed, falling back to memory cache", "error", err)
			client.Close()
		} else {
			logger.Info("valkey image cache enabled", "addr", cfg.Cache.Valkey.Addr)
			return imagecache.NewValkeyCache(client, cfg.Cache.Valkey.Prefix)
		}
	}
	return imagecache.NewMemoryCache(cfg.Cache.MemoryMaxBytes)
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

func provideExportRepository(cfg *config.Config, logger *slog.Logger) session.ExportRepository {
	fallback := exportrepo.NewMemoryRepository()
	dsn := strings.TrimSpace(cfg.Postgres.DSN)
	if dsn == "" {
		logger.Info("postgres dsn not set, using memory export history")
		return fallback
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory export history", "error", err)
		return fallback
	}
	if cfg.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Postgres.MaxConns
	}
	if cfg.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Postgres.MinConns
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory export history", "error", err)
		return fallback
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory export history", "error", err)
		pool.Close()
		return fallback
	}
	repo := exportrepo.NewPostgresRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Error("failed to prepare export history schema, using memory export history", "error", err)
		pool.Close()
		return fallback
	}
	logger.Info("postgres export history enabled")
	return repo
}
