package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harunnryd/voxa/pkg/logging"
	"github.com/harunnryd/voxa/pkg/voxa"
)

var (
	flagConfig   string
	flagLogLevel string
	flagJSON     bool
	flagQuiet    bool
)

var rootCmd = &cobra.Command{
	Use:           "voxa",
	Short:         "Spoken response pipeline",
	Long:          "Segment long responses, synthesize them through TTS providers, and estimate what that costs.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, renderError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", os.Getenv("VOXA_CONFIG"), "Config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Override log_level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print machine-readable JSON")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Only log errors")
}

func loadConfig() (voxa.Config, error) {
	cfg, err := voxa.LoadConfig(flagConfig)
	if err != nil {
		return voxa.Config{}, err
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagQuiet {
		cfg.LogLevel = "error"
	}
	return cfg, nil
}

// newLogger writes to stderr so command output on stdout stays clean.
func newLogger(cfg voxa.Config) *slog.Logger {
	log := logging.NewLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	slog.SetDefault(log)
	return log
}

// loadEngine builds the engine from --config. Callers must Close it.
func loadEngine() (*voxa.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return voxa.NewEngine(voxa.EngineOptions{Config: cfg, Logger: newLogger(cfg)})
}

// readText joins args, or reads --file, or stdin when the only arg is "-".
func readText(args []string, file string, stdin io.Reader) (string, error) {
	switch {
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case len(args) == 1 && args[0] == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	}
	return "", fmt.Errorf("no text given: pass it as arguments, with --file, or on stdin with -")
}
