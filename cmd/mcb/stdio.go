package main

import (
	"context"
	"log/slog"

	mcb "github.com/mcb/mcp-context-browser"
	"github.com/mcb/mcp-context-browser/internal/log"
	"github.com/mcb/mcp-context-browser/internal/mcp"
	"github.com/spf13/cobra"
)

func stdioCmd() *cobra.Command {
	var (
		envFile    string
		configFile string
	)

	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Start MCP server on stdio",
		Long: `Start the MCP (Model Context Protocol) server on stdio.

This lets AI assistants index codebases and search them semantically.
Logs go to stderr; stdout carries only protocol frames.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio(envFile, configFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().StringVar(&configFile, "config", "", "Path to YAML config file")

	return cmd
}

func runStdio(envFile, configFile string) error {
	cfg, err := loadConfig(envFile, configFile)
	if err != nil {
		return err
	}

	// log.New writes to stderr, which keeps stdout clean for the protocol.
	logger := log.New(cfg.Logging())

	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	logger.LogAttrs(context.Background(), slog.LevelInfo, "starting MCP server on stdio", attrs...)

	client, err := mcb.New(mcb.WithConfig(cfg), mcb.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("closing client failed", slog.String("error", err.Error()))
		}
	}()

	mcpServer := mcp.NewServer(client.Indexing, client.Search, client.Status, client.RateLimiter(), version, logger)
	return mcpServer.ServeStdio()
}
