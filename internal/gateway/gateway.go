// Package gateway exposes the agent over HTTP: chat and report endpoints,
// plot retrieval, health/status probes, Prometheus metrics, and a live
// run-trace websocket.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/vigil-agent/vigil/internal/agent"
	"github.com/vigil-agent/vigil/internal/artifact"
	"github.com/vigil-agent/vigil/internal/report"
	"github.com/vigil-agent/vigil/internal/tool"
)

// ChatRunner executes one request end to end. *agent.Loop implements it.
type ChatRunner interface {
	Run(ctx context.Context, request string) (agent.Run, error)
}

// Reporter generates executive reports. *report.Generator implements it.
type Reporter interface {
	Generate(ctx context.Context, focus string) (report.Report, error)
}

// Config configures the HTTP server.
type Config struct {
	Listen       string
	AuthToken    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c *Config) defaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		// Chat runs hold the connection while the loop executes.
		c.WriteTimeout = 5 * time.Minute
	}
}

// Deps are the collaborators the gateway serves.
type Deps struct {
	Runner    ChatRunner
	Reporter  Reporter
	Artifacts *artifact.FSStore
	Registry  *tool.Registry
	Logger    *slog.Logger
	Version   string

	// MCP, when set, is mounted at /mcp behind the same auth as the API.
	MCP http.Handler

	// Broker, when set, is used instead of a fresh one. The caller keeps a
	// reference so it can register the broker as a trace sink.
	Broker *RunBroker
}

// Gateway is the HTTP front of the agent.
type Gateway struct {
	config    Config
	logger    *slog.Logger
	runner    ChatRunner
	reporter  Reporter
	artifacts *artifact.FSStore
	registry  *tool.Registry
	metrics   *Metrics
	broker    *RunBroker
	mcp       http.Handler
	server    *http.Server
	version   string
	startedAt time.Time
}

// New assembles a Gateway. The returned value is not serving yet.
func New(cfg Config, deps Deps) *Gateway {
	cfg.defaults()
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	broker := deps.Broker
	if broker == nil {
		broker = NewRunBroker(logger)
	}
	return &Gateway{
		config:    cfg,
		logger:    logger,
		runner:    deps.Runner,
		reporter:  deps.Reporter,
		artifacts: deps.Artifacts,
		registry:  deps.Registry,
		metrics:   NewMetrics(),
		broker:    broker,
		mcp:       deps.MCP,
		version:   deps.Version,
	}
}

// Broker returns the run-trace broker, to be registered as a trace sink.
func (g *Gateway) Broker() *RunBroker { return g.broker }

// Start binds the listener and serves in the background.
func (g *Gateway) Start() error {
	g.startedAt = time.Now()
	g.server = &http.Server{
		Addr:         g.config.Listen,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	ln, err := net.Listen("tcp", g.config.Listen)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}
	g.logger.Info("gateway listening", "addr", ln.Addr().String())

	go func() {
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve failed", "error", err)
		}
	}()
	return nil
}

// Shutdown drains in-flight requests and closes websocket subscribers.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.broker.Close()
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}
