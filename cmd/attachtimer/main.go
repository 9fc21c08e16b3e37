// -----------------------------------------------------------------------
// attachtimer - measures attachment upload times through the browser UI
// -----------------------------------------------------------------------

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/attachtimer/internal/app"
	"github.com/ternarybob/attachtimer/internal/common"
)

// defaultConfigFile is picked up from the working directory when no -c is given
const defaultConfigFile = "attachtimer.toml"

var (
	// Command-line flags
	configFiles    []string
	timingsPerFile int
	headless       bool

	// Global state
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "attachtimer",
	Short: "Measure attachment upload times through the browser UI",
	Long: `Logs into the instance, uploads every file in the test files directory to a
content record through the UI and writes the measured request times to a CSV report.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE:              runAll,
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (can be specified multiple times, later files override earlier ones)")
	rootCmd.PersistentFlags().IntVarP(&timingsPerFile, "timings", "n", 0, "Uploads per file (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", true, "Run the browser headless (overrides config)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	defer common.RecoverWithCrashFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if logger != nil {
			logger.Error().Err(err).Msg("Run failed")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// setup runs the startup sequence (REQUIRED ORDER):
// 1. Load config (defaults -> .env -> file1 -> file2 -> ... -> env)
// 2. Apply CLI overrides (highest priority)
// 3. Validate (credentials only for commands that log in)
// 4. Initialize logger and crash handler
// 5. Print banner
func setup(cmd *cobra.Command, args []string) error {
	if len(configFiles) == 0 {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			configFiles = append(configFiles, defaultConfigFile)
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return err
	}

	var headlessOverride *bool
	if cmd.Flags().Changed("headless") {
		headlessOverride = &headless
	}
	common.ApplyFlagOverrides(config, timingsPerFile, headlessOverride)

	if err := config.Validate(); err != nil {
		return err
	}
	if !cmd.HasParent() || cmd == loginCmd {
		if err := config.ValidateForLogin(); err != nil {
			return err
		}
	}

	logger = common.InitLogger(config)
	common.InstallCrashHandler(filepath.Join(filepath.Dir(filepath.Clean(config.Paths.ResultsDir)), "logs"))
	common.PrintBanner(config, logger)

	for _, name := range config.UnresolvedReferences() {
		logger.Warn().Str("variable", name).Msg("Unresolved config reference - variable not set")
	}

	logger.Debug().
		Strs("config_files", configFiles).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Bool("headless", config.Browser.Headless).
		Str("action_timeout", config.Browser.ActionTimeout).
		Msg("Resolved configuration (sanitized)")

	return nil
}

func newApp() (*app.App, error) {
	application, err := app.New(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return application, nil
}

func runAll(cmd *cobra.Command, args []string) error {
	application, err := newApp()
	if err != nil {
		return err
	}

	if _, err := application.Run(cmd.Context()); err != nil {
		return err
	}

	application.Logger.Info().Str("report", application.ReportWriter.Path()).Msg("Done")
	return nil
}
