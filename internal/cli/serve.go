package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkarlsen/stagehand/internal/api"
	"github.com/mkarlsen/stagehand/internal/config"
	"github.com/mkarlsen/stagehand/internal/logger"
	"github.com/mkarlsen/stagehand/internal/observability"
	"github.com/mkarlsen/stagehand/internal/tracing"
	"github.com/mkarlsen/stagehand/pkg/budget"
	"github.com/mkarlsen/stagehand/pkg/catalog"
	"github.com/mkarlsen/stagehand/pkg/coordinator"
	"github.com/mkarlsen/stagehand/pkg/governance"
	"github.com/mkarlsen/stagehand/pkg/llm"
	"github.com/mkarlsen/stagehand/pkg/memory"
	"github.com/mkarlsen/stagehand/pkg/metrics"
	"github.com/mkarlsen/stagehand/pkg/orchestrator"
	"github.com/mkarlsen/stagehand/pkg/runner"
	"github.com/mkarlsen/stagehand/pkg/tools"
	"github.com/mkarlsen/stagehand/pkg/trace"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the stagehand API server",
	Long: `Start the orchestrator and serve it over HTTP. Requests hit
POST /v1/messages; traces stream over /ws/traces; Prometheus metrics are
on /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()
	zl := log.GetZerolog()

	observability.EnsureRegistered()
	if err := tracing.InitOpenTelemetry("stagehand"); err != nil {
		zl.Warn().Err(err).Msg("opentelemetry init failed, continuing without it")
	}
	defer tracing.ShutdownOpenTelemetry(context.Background())

	// Model client.
	var client llm.Client
	switch cfg.Models.Provider {
	case "openai":
		if cfg.Models.OpenAIAPIKey == "" {
			return fmt.Errorf("openai provider selected but no API key configured")
		}
		client = llm.NewOpenAIClient(cfg.Models.OpenAIAPIKey)
	default:
		if cfg.Models.AnthropicAPIKey == "" {
			return fmt.Errorf("anthropic provider selected but no API key configured")
		}
		client = llm.NewAnthropicClient(cfg.Models.AnthropicAPIKey)
	}

	// Budget ledger with nightly counter reset.
	ledger := budget.NewLedger(cfg.Budget, zl)
	resetSched, err := budget.NewResetScheduler(ledger, "@daily")
	if err != nil {
		return fmt.Errorf("failed to schedule budget reset: %w", err)
	}
	resetSched.Start()
	defer resetSched.Stop()

	// Governance pipeline.
	rail, err := governance.NewContentRail(governance.DefaultContentRailConfig())
	if err != nil {
		return fmt.Errorf("failed to build safety rail: %w", err)
	}
	piiCfg := governance.DefaultRegexProtectorConfig()
	if len(cfg.Guardrail.PIIAllowTypes) > 0 {
		piiCfg.AllowedEntities = cfg.Guardrail.PIIAllowTypes
	}
	audit, err := governance.NewAuditLogger(cfg.Guardrail.AuditLogFile, cfg.Guardrail.Enabled)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer audit.Close()

	pipeline, err := governance.NewPipeline(governance.Config{
		Enabled: cfg.Guardrail.Enabled,
		Ledger:  ledger,
		Safety:  rail,
		PII:     governance.NewRegexProtector(piiCfg),
		Audit:   audit,
		Logger:  zl,
	})
	if err != nil {
		return fmt.Errorf("failed to build governance pipeline: %w", err)
	}

	// Catalog and domain tools.
	store, err := catalog.Open(cfg.Catalog.Path, zl)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer store.Close()
	if cfg.Catalog.Seed {
		if err := store.Seed(); err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
	}
	var embedder catalog.EmbeddingProvider = catalog.NewHashEmbedder(0)
	if cfg.Models.OpenAIAPIKey != "" {
		embedder = catalog.NewOpenAIEmbedder(cfg.Models.OpenAIAPIKey, cfg.Models.EmbeddingModel)
	}
	if err := store.EnableSemanticSearch(cmd.Context(), embedder); err != nil {
		zl.Warn().Err(err).Msg("semantic search unavailable, keyword search only")
	}

	prefs, err := memory.NewPreferenceStore(cfg.Catalog.Path, zl)
	if err != nil {
		return fmt.Errorf("failed to open preference store: %w", err)
	}
	defer prefs.Close()

	registry := tools.NewRegistry(zl)
	registry.SetTimeout(time.Duration(cfg.Agents.ToolTimeoutSeconds) * time.Second)
	if err := store.RegisterTools(registry); err != nil {
		return fmt.Errorf("failed to register catalog tools: %w", err)
	}

	// Agent loop, routing, orchestration.
	runnerOpts := []runner.Option{
		runner.WithMaxIterations(cfg.Agents.MaxIterations),
		runner.WithMaxExecution(time.Duration(cfg.Agents.MaxExecutionSeconds) * time.Second),
		runner.WithResultSanitizer(pipeline.SanitizeToolResult),
	}
	specialistRunner := runner.New(client, registry, zl, runnerOpts...)

	coord := coordinator.New(client, specialistRunner, orchestrator.CoordinatorRole(cfg.Models.Default), zl,
		runner.WithMaxExecution(time.Duration(cfg.Agents.MaxExecutionSeconds)*time.Second))
	for _, role := range orchestrator.SpecialistRoles(cfg.Models.Default) {
		coord.RegisterSpecialist(role)
	}

	tracer := trace.NewTracer(cfg.Agents.RecentTracesRetained)
	orch := orchestrator.New(orchestrator.Config{
		Governance:      pipeline,
		Coordinator:     coord,
		Tracer:          tracer,
		Collector:       metrics.NewCollector(),
		Conversation:    memory.NewConversationMemory(zl),
		Working:         memory.NewWorkingMemory(),
		Preferences:     prefs,
		EstimatedTokens: cfg.Agents.EstimatedTokens,
		HistoryLimit:    cfg.Agents.HistoryLimit,
		Logger:          zl,
	})

	server, err := api.NewServer(api.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		Orchestrator: orch,
		Tracer:       tracer,
		Logger:       zl,
	})
	if err != nil {
		return fmt.Errorf("failed to build api server: %w", err)
	}

	// Hot-reload budget limits on config file changes.
	watcher, err := config.NewWatcher(loader, zl, func(next *config.Config) {
		ledger.SetLimits(next.Budget)
	})
	if err != nil {
		zl.Warn().Err(err).Msg("config watcher unavailable, limits are static")
	} else {
		defer watcher.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		zl.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
