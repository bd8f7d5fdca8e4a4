package main

import (
	"fmt"
	"os"
	"runtime"

	"audiograb/pkg/config"
	"audiograb/pkg/logger"
	"audiograb/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFormat  string
	outputDir  string
	noColor    bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "audiograb",
	Short: "Download the audio embedded in a web page",
	Long: `audiograb fetches a page, finds the audio files it embeds and downloads them.

Features:
  - Escalating request personas for pages that block plain clients
  - Seven extraction heuristics, from <audio> tags to guessed CDN paths
  - Three download transports with automatic fallback
  - Per-host browser cookies stored in the system keychain
  - Batch mode for lists of pages`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Version = version
		if noColor {
			ui.SetColor(false)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default ./audiograb.yaml or ~/.config/audiograb/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console, json)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "output directory for downloads")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show logs alongside progress")

	rootCmd.SetVersionTemplate(`audiograb {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig merges the global flags with the command's own and initializes logging.
// Without --verbose or an explicit level only errors are logged, so progress output stays readable.
func loadConfig(cmd *cobra.Command, flags map[string]interface{}) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if logFormat != "" {
		flags["log-format"] = logFormat
	}
	if noColor {
		flags["no-color"] = true
	}
	switch {
	case logLevel != "":
		flags["log-level"] = logLevel
	case verbose:
		flags["log-level"] = "debug"
	case os.Getenv("AUDIOGRAB_LOG_LEVEL") == "":
		flags["log-level"] = "error"
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if cfg.Logging.NoColor {
		ui.SetColor(false)
	}
	logger.WithField("command", cmd.Name()).Debug("Configuration loaded")
	return cfg, nil
}
