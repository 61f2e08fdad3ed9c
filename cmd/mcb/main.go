// Package main is the entry point for the mcb CLI.
package main

import (
	"fmt"
	"os"

	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/internal/config"
	"github.com/spf13/cobra"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Exit codes. Scripts and supervisors key restart policy off these.
const (
	exitOK              = 0
	exitError           = 1
	exitConfig          = 2
	exitBind            = 3
	exitShutdownTimeout = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		switch {
		case errs.IsKind(err, errs.KindConfig):
			return exitConfig
		case errs.IsKind(err, errs.KindNetwork):
			return exitBind
		case errs.IsKind(err, errs.KindTimeout):
			return exitShutdownTimeout
		}
		return exitError
	}
	return exitOK
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mcb",
		Short:         "Semantic code search server",
		Long:          `mcb indexes source trees into searchable chunks and serves hybrid BM25 and semantic search over the Model Context Protocol.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(stdioCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from the optional .env file, the optional
// YAML config file, and environment variables.
func loadConfig(envFile, configFile string) (config.AppConfig, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return config.AppConfig{}, err
	}
	return config.Load(configFile)
}
