package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/kobyzev-yuri/lse/internal/config"
	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/spf13/cobra"
)

// Exit codes for automation around the CLI.
const (
	exitOK        = 0
	exitUsage     = 1
	exitTransient = 2
	exitConfig    = 3
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "lse",
	Short: "LSE - automated trading assistant",
	Long: `LSE is a single-operator trading assistant: it ingests quotes and news,
enriches a knowledge base with sentiment, embeddings and event outcomes, and
runs a strategy-driven paper-trading loop against a simulated portfolio.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (config.env format)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

// loadConfig resolves the layered configuration: an explicit --config file
// wins outright; otherwise the project-local config.env overrides the
// per-user fallback.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile, "")
	}

	fallback := ""
	if home, err := os.UserHomeDir(); err == nil {
		fallback = filepath.Join(home, ".config", "lse", "config.env")
	}
	return config.Load("config.env", fallback)
}

// exitCodeFor maps an error to the documented exit codes.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, core.ErrConfigInvalid), errors.Is(err, core.ErrConfigMissing):
		return exitConfig
	case errors.Is(err, core.ErrProviderFailed), errors.Is(err, core.ErrProviderTimeout),
		errors.Is(err, core.ErrProviderUnavailable),
		errors.Is(err, core.ErrLLMFailed), errors.Is(err, core.ErrEmbeddingFailed):
		return exitTransient
	default:
		return exitUsage
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}
