package cmd

import (
	"errors"
	"fmt"
	"os"

	cfgpkg "github.com/KaramelBytes/edaloom/internal/config"
	"github.com/KaramelBytes/edaloom/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	debug   bool

	// Loaded configuration
	cfg    *cfgpkg.Global
	cfgErr error
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "edaloom",
	Short: "edaloom: automated exploratory data analysis for CSV files",
	Long: `edaloom profiles a CSV dataset, scores its quality, picks a chart per column
and narrates what it found. Run it as a web service (serve) or locally (analyze).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.edaloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
}

func loadConfig() {
	cfg, cfgErr = cfgpkg.Load(cfgFile)
	if cfgErr != nil {
		// Non-fatal: config set can still repair the file
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", cfgErr)
		return
	}
	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	l, err := logging.New(level, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: logger setup failed: %v\n", err)
		return
	}
	logger = l
}

// requireConfig returns the loaded configuration or the reason it is missing.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	if cfgErr != nil {
		return nil, cfgErr
	}
	return nil, errors.New("no config loaded")
}
