package cmd

import (
	"context"
	"fmt"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/quadguard/quadguard/internal/adapter/inbound/hostrt"
	"github.com/quadguard/quadguard/internal/adapter/inbound/httpapi"
	"github.com/quadguard/quadguard/internal/adapter/outbound/embindex"
	"github.com/quadguard/quadguard/internal/adapter/outbound/llmclient"
	"github.com/quadguard/quadguard/internal/adapter/outbound/sqlitestore"
	"github.com/quadguard/quadguard/internal/config"
	"github.com/quadguard/quadguard/internal/domain/intercept"
	"github.com/quadguard/quadguard/internal/domain/judge"
	"github.com/quadguard/quadguard/internal/domain/mediator"
	"github.com/quadguard/quadguard/internal/domain/predicate"
	"github.com/quadguard/quadguard/internal/domain/watcher"
	"github.com/quadguard/quadguard/internal/port/outbound"
	"github.com/quadguard/quadguard/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mediator and its HTTP/host-runtime surfaces",
	Long: `Start quadguard: wire the predicate store, judge chain, watchers, and
decision log, then serve the host-runtime stream over stdin/stdout and the
HTTP evaluate/metrics surface on server.http_addr.

Examples:
  # Start with config file settings
  quadguard serve

  # Start with a specific config file
  quadguard --config /path/to/config.yaml serve`,
	RunE: runServe,
}

var devMode bool

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (verbose logging, relaxed validation)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logLevel := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	logger.Debug("log level configured", "level", cfg.Server.LogLevel, "effective", logLevel.String())

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	shutdownTelemetry, err := telemetry.Setup(ctx)
	if err != nil {
		logger.Warn("telemetry setup failed, continuing without tracing/metrics export", "error", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer os.Remove(pidPath)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}
	logger.Info("quadguard stopped")
	return nil
}

// run wires every component together and blocks serving the host-runtime
// stream and HTTP surface until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	timeout := time.Duration(cfg.LLM.RequestTimeoutSeconds) * time.Second

	primaryProvider, err := llmclient.New(cfg.LLM.PrimaryProvider, cfg.LLM.PrimaryModel, cfg.LLM.EmbedModel, cfg.LLM.PrimaryAPIKeyEnv, timeout)
	if err != nil {
		return fmt.Errorf("failed to build primary LLM provider: %w", err)
	}
	chiefProvider, err := llmclient.New(cfg.LLM.ChiefProvider, cfg.LLM.ChiefModel, cfg.LLM.EmbedModel, cfg.LLM.ChiefAPIKeyEnv, timeout)
	if err != nil {
		return fmt.Errorf("failed to build chief LLM provider: %w", err)
	}
	embedProvider, err := llmclient.NewEmbeddingProvider(cfg.LLM.PrimaryProvider, cfg.LLM.PrimaryModel, cfg.LLM.EmbedModel, cfg.LLM.PrimaryAPIKeyEnv, timeout)
	if err != nil {
		logger.Warn("primary provider has no embedding support, predicate lookup will use full scope only", "error", err)
	}

	refusalProvider := primaryProvider
	if cfg.LLM.RefusalModelProvider != "" {
		refusalProvider, err = llmclient.New(cfg.LLM.RefusalModelProvider, cfg.LLM.RefusalModel, cfg.LLM.EmbedModel, cfg.LLM.PrimaryAPIKeyEnv, timeout)
		if err != nil {
			return fmt.Errorf("failed to build refusal classifier provider: %w", err)
		}
	}

	store := predicate.NewStore()

	var index *embindex.Index
	if embedProvider != nil {
		index = embindex.New(embedProvider)
	}

	predW := watcher.NewPredicateWatcher(primaryProvider, logger)
	threatW := watcher.NewThreatWatcher(primaryProvider, logger)

	judges := judge.NewChain(judge.NewJudge(primaryProvider), judge.NewJudge(chiefProvider))

	sink, err := sqlitestore.Open(cfg.Decisions.SQLitePath, logger)
	if err != nil {
		return fmt.Errorf("failed to open decision store: %w", err)
	}
	defer func() { _ = sink.Close() }()

	metrics := httpapi.NewMetrics(prometheus.DefaultRegisterer)

	mediatorCfg := mediator.Config{
		MessageBufferSize:         cfg.Mediator.MessageBufferSize,
		DefaultPredicateLookupK:   cfg.Mediator.PredicateLookupK,
		ThreatEscalationThreshold: cfg.Mediator.ThreatEscalationThreshold,
	}
	var predicateIndex outbound.PredicateIndex
	if index != nil {
		predicateIndex = index
	}
	med := mediator.New(mediatorCfg, store, predicateIndex, predW, threatW, judges, sink, metrics, logger)
	med.SetForceMessageCheck(cfg.Mediator.ForceMessageCheck)

	if persisted, rules, loadErr := sink.LoadPolicySet(ctx, predicate.OriginAction); loadErr == nil && len(rules) > 0 {
		for _, p := range persisted {
			store.UpsertPredicate(p)
		}
		if err := store.AddActionPolicy(rules); err != nil {
			logger.Warn("failed to reload persisted action policy", "error", err)
		} else {
			logger.Info("reloaded persisted action policy", "rules", len(rules))
		}
	}
	if persisted, rules, loadErr := sink.LoadPolicySet(ctx, predicate.OriginMessage); loadErr == nil && len(rules) > 0 {
		for _, p := range persisted {
			store.UpsertPredicate(p)
		}
		if err := store.AddMessagePolicy(rules); err != nil {
			logger.Warn("failed to reload persisted message policy", "error", err)
		} else {
			logger.Info("reloaded persisted message policy", "rules", len(rules))
		}
	}

	var interceptOpts []intercept.Option
	interceptOpts = append(interceptOpts, intercept.WithLogger(logger))
	interceptOpts = append(interceptOpts, intercept.WithRefusalThreshold(cfg.Intercept.RefusalThreshold))
	interceptOpts = append(interceptOpts, intercept.WithGPTShortcut(cfg.Intercept.GPTShortcut))
	if cfg.Intercept.RefusalClassifierEnabled {
		interceptOpts = append(interceptOpts, intercept.WithRefusalClassifier(intercept.NewOracleRefusalClassifier(refusalProvider)))
	}

	terminated := make(chan struct{})
	var once sync.Once
	terminate := func() { once.Do(func() { close(terminated) }) }
	handler := intercept.New(med, terminate, interceptOpts...)

	apiHandler := httpapi.New(store, metrics, logger)

	httpServer := &stdhttp.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: apiHandler,
	}
	go func() {
		logger.Info("http surface listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			logger.Error("http surface failed", "error", err)
		}
	}()
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutCtx)
	}()

	transport := hostrt.New(handler, os.Stdin, os.Stdout, logger)

	logger.Info("quadguard starting",
		"version", Version,
		"dev_mode", cfg.DevMode,
		"http_addr", cfg.Server.HTTPAddr,
		"primary_provider", cfg.LLM.PrimaryProvider,
		"chief_provider", cfg.LLM.ChiefProvider,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- transport.Start(ctx) }()

	select {
	case <-ctx.Done():
		return nil
	case <-terminated:
		logger.Warn("host runtime terminated by guard decision")
		return nil
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("host runtime transport: %w", err)
		}
		return nil
	}
}

// parseLogLevel converts a string log level to slog.Level. Returns
// slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
