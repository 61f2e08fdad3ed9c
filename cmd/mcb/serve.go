package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mcb "github.com/mcb/mcp-context-browser"
	"github.com/mcb/mcp-context-browser/infrastructure/api"
	"github.com/mcb/mcp-context-browser/internal/config"
	"github.com/mcb/mcp-context-browser/internal/log"
	"github.com/mcb/mcp-context-browser/internal/mcp"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var (
		envFile    string
		configFile string
		host       string
		port       int
		watches    []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the MCP and admin HTTP server.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. YAML config file (if --config specified)
  3. .env file (if --env-file specified or .env exists in current directory)
  4. Environment variables (MCP__* keys)
  5. Command line flags

The MCP streamable HTTP endpoint is mounted at /mcp; the admin surface
exposes /health, /ready, /metrics, /indexing, /cache/stats, and
POST /shutdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile, configFile, host, port, watches)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&configFile, "config", "", "Path to YAML config file")
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on")
	cmd.Flags().StringArrayVar(&watches, "watch", nil, "Directory to watch and sync, as path or path:collection (repeatable)")

	return cmd
}

func runServe(envFile, configFile, host string, port int, watches []string) error {
	cfg, err := loadConfig(envFile, configFile)
	if err != nil {
		return err
	}
	cfg = applyServeOverrides(cfg, host, port)

	logger := log.New(cfg.Logging())

	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	logger.LogAttrs(context.Background(), slog.LevelInfo, "starting mcb", attrs...)

	client, err := mcb.New(mcb.WithConfig(cfg), mcb.WithLogger(logger))
	if err != nil {
		return err
	}

	if _, err := config.WriteHistory(cfg, time.Now()); err != nil {
		logger.Warn("writing config history failed", slog.String("error", err.Error()))
	}

	for _, spec := range watches {
		root, collection := splitWatch(spec)
		if err := client.Watch(root, collection); err != nil {
			_ = client.Close()
			return err
		}
		logger.Info("watching directory",
			slog.String("root", root),
			slog.String("collection", collection))
	}

	server := api.NewServer(cfg.Server().Addr(), logger)

	shutdownCh := make(chan string, 1)
	trigger := func(reason string) {
		select {
		case shutdownCh <- reason:
		default:
		}
	}

	admin := api.NewAdmin(client.Status, client.Cache(), client.RoutingMetrics, trigger, logger)
	admin.Mount(server.Router())

	mcpServer := mcp.NewServer(client.Indexing, client.Search, client.Status, client.RateLimiter(), version, logger)
	server.Router().Mount("/mcp", mcpServer.HTTPHandler())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Start() }()

	var reason string
	select {
	case err := <-serveErr:
		// Bind failure or listener error; nothing is serving, clean up.
		_ = client.Close()
		return err
	case sig := <-sigCh:
		reason = "signal " + sig.String()
	case reason = <-shutdownCh:
	}

	logger.Info("stopping", slog.String("reason", reason))

	shutdownErr := client.Shutdown(reason)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Resilience().ShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("admin server shutdown failed", slog.String("error", err.Error()))
	}
	<-serveErr

	return shutdownErr
}

// splitWatch parses a --watch value of the form path or path:collection.
func splitWatch(spec string) (root, collection string) {
	if i := strings.LastIndex(spec, ":"); i > 0 && !strings.Contains(spec[i+1:], string(os.PathSeparator)) {
		return spec[:i], spec[i+1:]
	}
	return spec, mcp.DefaultCollection
}

// applyServeOverrides applies command line flag overrides to the config.
func applyServeOverrides(cfg config.AppConfig, host string, port int) config.AppConfig {
	server := cfg.Server()
	if host != "" {
		server = server.WithHost(host)
	}
	if port != 0 {
		server = server.WithPort(port)
	}
	return cfg.WithServer(server)
}
