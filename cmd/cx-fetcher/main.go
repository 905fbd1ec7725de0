package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/open-edge-platform/cx-fetcher/internal/config"
	"github.com/open-edge-platform/cx-fetcher/internal/utils/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version information, set at build time with -ldflags.
var (
	Version   = "dev"
	BuildDate = "unknown"
)

// Persistent command flags
var (
	configFile  string
	logLevel    string
	verbose     bool
	writeReport bool

	storageDirFlag string
	cacheDirFlag   string
	workersFlag    int
)

// globalConfig is loaded once by the logging hook before any subcommand runs.
var globalConfig *config.GlobalConfig

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := createRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// createRootCommand builds the command tree
func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cx-fetcher",
		Short: "Fetch, track and update browser extensions",
		Long: `cx-fetcher downloads browser extensions (CRX packages), unpacks them into a
local extension directory and keeps them up to date by polling their update
manifests.`,
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Path to the configuration file (default: ./"+config.DefaultConfigFile+" if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn or error (overrides the config file)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&writeReport, "report", false,
		"Append every fetched URL to a report file under report_dir")
	rootCmd.PersistentFlags().StringVar(&storageDirFlag, "storage-dir", "",
		"Directory holding unpacked extensions (overrides storage_dir)")
	rootCmd.PersistentFlags().StringVar(&cacheDirFlag, "cache-dir", "",
		"Directory for downloaded artifacts (overrides cache_dir)")
	rootCmd.PersistentFlags().IntVar(&workersFlag, "workers", 0,
		"Number of concurrent downloads (overrides workers)")

	rootCmd.AddCommand(createFetchCommand())
	rootCmd.AddCommand(createCheckCommand())
	rootCmd.AddCommand(createUpdateCommand())
	rootCmd.AddCommand(createRemoveCommand())
	rootCmd.AddCommand(createListCommand())
	rootCmd.AddCommand(createWatchCommand())

	attachLoggingHooks(rootCmd)
	return rootCmd
}

// attachLoggingHooks makes every subcommand load the configuration and set
// up logging before it runs.
func attachLoggingHooks(root *cobra.Command) {
	for _, cmd := range root.Commands() {
		if cmd.PersistentPreRunE != nil {
			continue
		}
		cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
			return initRuntime(cmd)
		}
	}
}

func initRuntime(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}

	if err := applyFlagOverrides(cmd.Flags(), cfg); err != nil {
		return err
	}

	level := resolveRequestedLogLevel(cmd)
	if level == "" {
		level = cfg.Logging.Level
	}
	if _, err := logger.Init(level); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	globalConfig = cfg
	logger.Logger().Debugf("configuration loaded, storage=%s cache=%s workers=%d",
		cfg.StorageDir, cfg.CacheDir, cfg.Workers)
	return nil
}

// resolveRequestedLogLevel returns the level asked for on the command line,
// or "" to fall back to the config file.
func resolveRequestedLogLevel(cmd *cobra.Command) string {
	if logLevel != "" {
		return logLevel
	}
	if cmd == nil {
		return ""
	}
	if v, err := cmd.Flags().GetBool("verbose"); err == nil && v {
		return "debug"
	}
	return ""
}

// applyFlagOverrides copies explicitly set command line flags over the
// values loaded from the config file.
func applyFlagOverrides(flags *pflag.FlagSet, cfg *config.GlobalConfig) error {
	var err error
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "storage-dir":
			cfg.StorageDir = storageDirFlag
		case "cache-dir":
			cfg.CacheDir = cacheDirFlag
		case "workers":
			if workersFlag < 1 {
				err = fmt.Errorf("--workers must be at least 1, got %d", workersFlag)
				return
			}
			cfg.Workers = workersFlag
		}
	})
	return err
}
