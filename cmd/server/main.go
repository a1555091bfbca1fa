package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/vinodismyname/shopperinsights/config"
	"github.com/vinodismyname/shopperinsights/internal/datasets"
	"github.com/vinodismyname/shopperinsights/internal/insights"
	"github.com/vinodismyname/shopperinsights/internal/registry"
	"github.com/vinodismyname/shopperinsights/internal/runtime"
	"github.com/vinodismyname/shopperinsights/internal/security"
	"github.com/vinodismyname/shopperinsights/internal/telemetry"
	"github.com/vinodismyname/shopperinsights/pkg/version"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var (
		useStdio        bool
		shutdownTimeout time.Duration
		envFile         string
	)

	flag.BoolVar(&useStdio, "stdio", false, "Run server over stdio transport")
	flag.DurationVar(&shutdownTimeout, "shutdown-timeout", 5*time.Second, "Graceful shutdown timeout")
	flag.StringVar(&envFile, "env", ".env", "Optional dotenv file loaded before reading configuration")
	flag.Parse()

	// A missing .env is fine; variables may come from the real environment.
	envErr := godotenv.Load(envFile)

	if lvl, err := zerolog.ParseLevel(config.String(config.EnvLogLevel, "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	logger := zlog.With().Str("service", "shopperinsights-server").Logger()
	ctx := logger.WithContext(context.Background())
	if envErr != nil && !os.IsNotExist(envErr) {
		logger.Warn().Err(envErr).Str("file", envFile).Msg("dotenv file not loaded")
	}

	// Security: validate allow-list directories on startup (fail-safe on error)
	secMgr, err := security.NewManagerFromEnv()
	if err != nil {
		logger.Error().Err(err).Msg("security: failed to initialize manager from env")
		fmt.Fprintf(os.Stderr, "invalid security configuration; set %s\n", security.EnvAllowedDirs)
		os.Exit(1)
	}
	if err := secMgr.ValidateConfig(); err != nil {
		logger.Error().Err(err).Msg("security: invalid allow-list configuration")
		fmt.Fprintf(os.Stderr, "no allowed directories configured; set %s\n", security.EnvAllowedDirs)
		os.Exit(1)
	}
	logger.Info().Strs("allowed_dirs", secMgr.AllowedDirectories()).Msg("security allow-list configured")

	// Exports share the read roots but may only produce workbooks.
	var writer *security.Manager
	writesEnabled := registry.WritesEnabled()
	if writesEnabled {
		writer, err = security.NewManager(secMgr.AllowedDirectories(), []string{".xlsx"})
		if err != nil {
			logger.Error().Err(err).Msg("security: failed to initialize export manager")
			os.Exit(1)
		}
	}

	limits := runtime.NewLimits(
		config.Int(config.EnvMaxConcurrentRequests, config.DefaultMaxConcurrentRequests),
		config.Int(config.EnvMaxOpenDatasets, config.DefaultMaxOpenDatasets),
	)
	runtimeController := runtime.NewController(limits)
	runtimeMW := runtime.NewMiddleware(runtimeController, logger)

	datasetTTL := config.Duration(config.EnvDatasetTTL, config.DefaultDatasetIdleTTL)
	dsMgr := datasets.NewManager(datasets.Options{
		TTL:       datasetTTL,
		MaxRows:   limits.MaxRowsPerLoad,
		Gate:      runtimeController,
		Validator: secMgr,
	})
	dsMgr.Start()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := dsMgr.Close(sctx); err != nil {
			logger.Warn().Err(err).Msg("dataset manager shutdown incomplete")
		}
	}()

	toolRegistry := registry.New()
	toolRegistry.WithModel(config.String(config.EnvModel, registry.DefaultModel))

	writeFilter := registry.NewWriteToolFilter(writesEnabled)
	hooks := telemetry.NewHooks(logger)

	srv := server.NewMCPServer(
		version.Name,
		version.Version(),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(hooks.Server()),
		server.WithToolHandlerMiddleware(runtimeMW.ToolMiddleware),
		server.WithToolFilter(func(ctx context.Context, tools []mcp.Tool) []mcp.Tool { return writeFilter.FilterTools(ctx, tools) }),
	)

	analyst := &insights.Analyst{Limits: runtimeController.LimitsSnapshot(), Mgr: dsMgr, Writer: writer}
	registry.RegisterDatasetTools(srv, toolRegistry, analyst)
	registry.RegisterAnalysisTools(srv, toolRegistry, analyst)

	logger.Info().
		Ctx(ctx).
		Str("version", version.Version()).
		Int("max_concurrent_requests", limits.MaxConcurrentRequests).
		Int("max_open_datasets", limits.MaxOpenDatasets).
		Dur("dataset_ttl", datasetTTL).
		Str("model", toolRegistry.Model()).
		Int("model_context_size", toolRegistry.ModelContextSize(toolRegistry.Model())).
		Bool("writes_enabled", writesEnabled).
		Bool("stdio", useStdio).
		Msg("server bootstrap configured")

	if !useStdio {
		// If no transport flags provided, print usage and exit non-zero
		fmt.Fprintln(os.Stderr, "no transport selected; use --stdio to run over stdio")
		os.Exit(2)
	}
	if err := server.ServeStdio(srv); err != nil {
		// Use stderr for transport errors so clients don't misinterpret output
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
