package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mincaelectric/inventory-agent/internal/classifier"
	"github.com/mincaelectric/inventory-agent/internal/compose"
	"github.com/mincaelectric/inventory-agent/internal/config"
	"github.com/mincaelectric/inventory-agent/internal/dispatch"
	"github.com/mincaelectric/inventory-agent/internal/httpapi"
	"github.com/mincaelectric/inventory-agent/internal/inventory"
	"github.com/mincaelectric/inventory-agent/internal/llm"
	"github.com/mincaelectric/inventory-agent/internal/memory"
	"github.com/mincaelectric/inventory-agent/internal/observability"
	"github.com/mincaelectric/inventory-agent/internal/pipeline"
)

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Orchestrator *pipeline.Orchestrator
	Metrics      *observability.Metrics

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*BuildResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	var pool *pgxpool.Pool
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		var err error
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("database pool init failed: %w", err)
		}
	} else {
		logger.Warn("DATABASE_URL not set, inventory queries will be unavailable")
	}

	store, err := memory.NewStore(ctx, pool, cfg.MemoryMaxTurns, cfg.MemoryMaxSessions, cfg.SessionRetention)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, fmt.Errorf("memory store init failed: %w", err)
	}

	providers, err := buildProviders(cfg)
	if err != nil {
		_ = store.Close()
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}
	gateway := llm.NewGateway(providers, cfg.LLMAttemptTimeout, logger, metrics)

	orchestrator := pipeline.New(
		classifier.New(gateway, cfg.ClassifierMemoryWindow, logger),
		dispatch.New(pool, inventory.Registry(), metrics, logger),
		compose.New(gateway, logger),
		store,
		metrics,
		logger,
		cfg.MemoryMaxTurns,
	)

	api := httpapi.New(cfg, orchestrator, metrics, logger)

	cleanup := func() error {
		var errs []string
		if err := store.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if pool != nil {
			pool.Close()
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Orchestrator: orchestrator,
		Metrics:      metrics,
		Cleanup:      cleanup,
	}, nil
}

// buildProviders instantiates the fallback chain in the order LLM_PROVIDERS
// declares it. Order is policy, not preference sampling.
func buildProviders(cfg config.Config) ([]llm.Provider, error) {
	providers := make([]llm.Provider, 0, len(cfg.LLMProviders))
	for _, name := range cfg.LLMProviders {
		switch name {
		case "groq":
			if strings.TrimSpace(cfg.GroqAPIKey) == "" {
				return nil, fmt.Errorf("provider groq is configured but GROQ_API_KEY is empty")
			}
			providers = append(providers, llm.NewGroqProvider(llm.GroqConfig{
				APIKey:       cfg.GroqAPIKey,
				BaseURL:      cfg.GroqBaseURL,
				FastModel:    cfg.GroqFastModel,
				QualityModel: cfg.GroqQualityModel,
			}))
		case "gemini":
			if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
				return nil, fmt.Errorf("provider gemini is configured but GEMINI_API_KEY is empty")
			}
			providers = append(providers, llm.NewGeminiProvider(llm.GeminiConfig{
				APIKey:  cfg.GeminiAPIKey,
				BaseURL: cfg.GeminiBaseURL,
				Model:   cfg.GeminiModel,
			}))
		case "mock":
			providers = append(providers, llm.NewMockProvider())
		default:
			return nil, fmt.Errorf("unknown llm provider %q", name)
		}
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no llm providers configured")
	}
	return providers, nil
}
