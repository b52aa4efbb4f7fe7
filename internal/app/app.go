// Package app assembles the full runtime from configuration: the case store,
// the tool registry behind its gates, the reasoning oracle, the orchestration
// loop, trace persistence, scheduled reports, and the HTTP gateway.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/vigil-agent/vigil/internal/agent"
	"github.com/vigil-agent/vigil/internal/analytics"
	"github.com/vigil-agent/vigil/internal/artifact"
	"github.com/vigil-agent/vigil/internal/chart"
	"github.com/vigil-agent/vigil/internal/config"
	"github.com/vigil-agent/vigil/internal/cron"
	"github.com/vigil-agent/vigil/internal/gateway"
	"github.com/vigil-agent/vigil/internal/guardrail"
	"github.com/vigil-agent/vigil/internal/mcp"
	"github.com/vigil-agent/vigil/internal/oracle/openai"
	"github.com/vigil-agent/vigil/internal/report"
	"github.com/vigil-agent/vigil/internal/search"
	"github.com/vigil-agent/vigil/internal/sqlguard"
	"github.com/vigil-agent/vigil/internal/telemetry"
	"github.com/vigil-agent/vigil/internal/tool"
	"github.com/vigil-agent/vigil/internal/trace"
)

// shutdownTimeout bounds the graceful teardown of each component.
const shutdownTimeout = 10 * time.Second

const defaultSystemPrompt = `You are vigil, an epidemiological analyst for severe
acute respiratory illness (SRAG) surveillance data. Answer questions using the
available tools. Query the case database with SQL through srag_stats, inspect
its layout with srag_schema, and render charts with srag_plot when a visual
helps. Cite concrete numbers from tool observations; never invent figures.
When the data cannot answer the question, say so.`

// plotRoute is the public path prefix chart references resolve under.
const plotRoute = "/api/v1/plots/"

// App is the assembled runtime.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	store     *analytics.CaseStore
	loop      *agent.Loop
	generator *report.Generator
	emitter   *trace.Emitter
	traceFile *os.File
	gateway   *gateway.Gateway
	scheduler *cron.Scheduler
	otelStop  telemetry.Shutdown
}

// New wires every component from a validated configuration. The returned App
// is not running yet; call Run.
func New(ctx context.Context, cfg config.Config, version string) (*App, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, logger: logger}

	a.otelStop, err = telemetry.Init(ctx, cfg.Telemetry.OTLPEndpoint, "vigil", version, cfg.Telemetry.Insecure)
	if err != nil {
		return nil, fmt.Errorf("app: telemetry: %w", err)
	}

	a.store, err = analytics.OpenCaseStore(cfg.Database.Path, cfg.Database.MaxRows)
	if err != nil {
		return nil, fmt.Errorf("app: case store: %w", err)
	}

	artifacts, err := artifact.NewFSStore(cfg.Artifacts.Dir)
	if err != nil {
		return nil, fmt.Errorf("app: artifact store: %w", err)
	}

	registry, err := buildRegistry(cfg, a.store, artifacts)
	if err != nil {
		return nil, err
	}

	guards := guardrail.NewPipeline(
		guardrail.NewLengthCheck(cfg.Agent.MaxInputChars),
		guardrail.NewSensitiveDataCheck(),
		guardrail.NewInjectionCheck(),
		guardrail.NewToneCheck(),
		guardrail.NewSchemaCheck(registry.ValidateArgs),
	)

	dispatcher := tool.NewDispatcher(tool.DispatcherConfig{
		Registry:     registry,
		Guards:       guards,
		SQLValidator: sqlguard.NewValidator([]string{cfg.Database.Table}),
		SQLTool:      analytics.StatsToolName,
		SQLParam:     analytics.QueryParam,
		ExecTimeout:  cfg.Agent.ExecTimeout,
	})

	broker := gateway.NewRunBroker(logger)
	sinks, traceFile, err := buildSinks(cfg, broker)
	if err != nil {
		return nil, err
	}
	a.traceFile = traceFile
	a.emitter = trace.NewEmitter(trace.EmitterConfig{
		Sink:   sinks,
		Buffer: cfg.Trace.Buffer,
		OnDrop: func() { logger.Warn("trace record dropped, buffer full") },
	})

	systemPrompt := cfg.Agent.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	a.loop = agent.NewLoop(agent.LoopDeps{
		Oracle: openai.New(openai.Config{
			APIKey:      cfg.Oracle.APIKey,
			BaseURL:     cfg.Oracle.BaseURL,
			Model:       cfg.Oracle.Model,
			Temperature: cfg.Oracle.Temperature,
			MaxTokens:   cfg.Oracle.MaxTokens,
			Timeout:     cfg.Oracle.Timeout,
		}),
		Dispatcher:   dispatcher,
		Registry:     registry,
		Guards:       guards,
		Sink:         a.emitter,
		Logger:       logger,
		SystemPrompt: systemPrompt,
		Config: agent.LoopConfig{
			MaxSteps:                   cfg.Agent.MaxSteps,
			OracleTimeout:              cfg.Agent.OracleTimeout,
			OracleRetries:              cfg.Agent.OracleRetries,
			ExemptToolErrorsFromBudget: cfg.Agent.ExemptToolErrorsFromBudget,
			ToolErrorRetryQuota:        cfg.Agent.ToolErrorRetryQuota,
		},
	})

	a.generator = report.NewGenerator(a.loop, func(ref string) string {
		return plotRoute + ref
	})

	mcpServer := mcp.New(registry, dispatcher, version, logger)

	a.gateway = gateway.New(gateway.Config{
		Listen:    cfg.Server.Listen,
		AuthToken: cfg.Server.AuthToken,
	}, gateway.Deps{
		Runner:    a.loop,
		Reporter:  a.generator,
		Artifacts: artifacts,
		Registry:  registry,
		Logger:    logger,
		Version:   version,
		MCP:       mcpServer.HTTPHandler(),
		Broker:    broker,
	})

	a.scheduler = cron.NewScheduler(logger)
	if cfg.Reports.Schedule != "" {
		job := &cron.ScheduledReportJob{
			Generator:    a.generator,
			Dir:          cfg.Reports.Dir,
			Focus:        cfg.Reports.Focus,
			Logger:       logger,
			ScheduleExpr: cfg.Reports.Schedule,
		}
		if err := a.scheduler.RegisterJob(job); err != nil {
			return nil, fmt.Errorf("app: report job: %w", err)
		}
	}

	return a, nil
}

// Logger exposes the configured logger for the entry point.
func (a *App) Logger() *slog.Logger { return a.logger }

// GenerateReport produces one executive report outside the HTTP surface, for
// the one-shot CLI path.
func (a *App) GenerateReport(ctx context.Context, focus string) (report.Report, error) {
	return a.generator.Generate(ctx, focus)
}

// Run serves until ctx is cancelled, then tears down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.scheduler.Start(); err != nil {
		return fmt.Errorf("app: scheduler: %w", err)
	}
	if err := a.gateway.Start(); err != nil {
		return fmt.Errorf("app: gateway: %w", err)
	}
	a.logger.Info("vigil running", "listen", a.cfg.Server.Listen)

	<-ctx.Done()
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.Close(shutdownCtx)
}

// Close releases every component. Safe after a failed Run.
func (a *App) Close(ctx context.Context) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.gateway != nil {
		keep(a.gateway.Shutdown(ctx))
	}
	if a.scheduler != nil {
		keep(a.scheduler.Stop(ctx))
	}
	if a.emitter != nil {
		a.emitter.Close()
	}
	if a.traceFile != nil {
		keep(a.traceFile.Close())
	}
	if a.store != nil {
		keep(a.store.Close())
	}
	if a.otelStop != nil {
		keep(a.otelStop(ctx))
	}
	return firstErr
}

// buildRegistry registers the analytical tools, the chart tool, and, when a
// search key is configured, the web search tool.
func buildRegistry(cfg config.Config, store *analytics.CaseStore, artifacts *artifact.FSStore) (*tool.Registry, error) {
	registry := tool.NewRegistry()

	tools := []tool.Tool{
		analytics.NewStatsTool(store),
		analytics.NewSchemaTool(store, cfg.Database.Table),
		chart.NewPlotTool(store, artifacts),
	}
	if cfg.Search.APIKey != "" {
		client := search.NewClient(search.Config{
			APIKey:  cfg.Search.APIKey,
			BaseURL: cfg.Search.BaseURL,
			Timeout: cfg.Search.Timeout,
		})
		tools = append(tools, search.NewSearchTool(client))
	}

	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("app: register %s: %w", t.Name(), err)
		}
	}
	return registry, nil
}

// buildSinks composes the trace fan-out: JSONL file, OTel spans, and the live
// websocket broker. The returned file, when non-nil, must outlive the emitter.
func buildSinks(cfg config.Config, broker *gateway.RunBroker) (trace.Sink, *os.File, error) {
	sinks := trace.Multi{broker}
	var file *os.File

	if cfg.Trace.JSONLPath != "" {
		jsonl, f, err := trace.OpenJSONLFile(cfg.Trace.JSONLPath)
		if err != nil {
			return nil, nil, fmt.Errorf("app: trace file: %w", err)
		}
		sinks = append(sinks, jsonl)
		file = f
	}
	if cfg.Telemetry.OTLPEndpoint != "" {
		sinks = append(sinks, trace.NewSpanSink(telemetry.Tracer("vigil/trace")))
	}

	return sinks, file, nil
}

// newLogger builds the process logger. Every record passes through a
// redacting handler so configured secrets and PII never reach log output.
func newLogger(cfg config.Config) (*slog.Logger, error) {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("app: unknown log level %q", cfg.Logging.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json", "":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("app: unknown log format %q", cfg.Logging.Format)
	}

	redactor := guardrail.NewRedactor()
	redactor.AddLiteral(cfg.Oracle.APIKey)
	redactor.AddLiteral(cfg.Search.APIKey)
	redactor.AddLiteral(cfg.Server.AuthToken)
	return slog.New(guardrail.NewRedactingHandler(handler, redactor)), nil
}
