// Package main is the CLI entry point for resswitch.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ibanks42/resswitch/internal/config"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "resswitch",
	Short: "Switch the display resolution while specific programs run",
	Long: `resswitch watches for configured programs and switches the primary display
to a per-program resolution while one of them is running. The original
resolution is restored when the program exits and when resswitch quits.

Running resswitch without a subcommand is the same as "resswitch run".`,
	Version:      Version,
	SilenceUsage: true,
	RunE:         runMonitor,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start monitoring (with the tray window unless --headless)",
	Args:  cobra.NoArgs,
	RunE:  runMonitor,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Args:  cobra.NoArgs,
	Run:   runVersion,
}

var (
	configPath string
	verbose    bool
	logFile    string
	jsonOutput bool
	headless   bool
	interval   time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")

	for _, c := range []*cobra.Command{rootCmd, runCmd} {
		c.Flags().BoolVar(&headless, "headless", false, "Run without the window and tray icon")
		c.Flags().DurationVar(&interval, "interval", 0, "Override the poll interval from the config file")
	}
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(displayCmd)
	rootCmd.AddCommand(autostartCmd)
	rootCmd.AddCommand(versionCmd)
}

func createLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if logFile != "" {
		cfg.OutputPaths = []string{logFile}
		cfg.ErrorOutputPaths = []string{logFile}
	}

	logger, err := cfg.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

// commandLogger is quiet for one-shot commands unless --verbose is set.
func commandLogger() *zap.Logger {
	if verbose {
		return createLogger()
	}
	return zap.NewNop()
}

func runVersion(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()
	if jsonOutput {
		fmt.Fprintf(out, `{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Fprintf(out, "resswitch %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
