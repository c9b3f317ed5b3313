// Package cli implements the command-line interface for hidswatch
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/hidswatch/hidswatch/internal/config"
	hidslogger "github.com/hidswatch/hidswatch/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile     string
	verboseMode bool
	logger      *zap.Logger
	version     string
	buildDate   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hidswatch",
	Short: "hidswatch - a minimal host intrusion detection watcher",
	Long: `hidswatch monitors a directory tree for file creations, modifications
and deletions, prints a human-readable alert for each one and appends it
to a plain-text alert log.

Bursts of changes are debounced: at most one alert is emitted per window.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, bd string) {
	version = v
	buildDate = bd
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildDate)
}

func init() {
	// Replaced in initConfig once the logging section is known
	logger = zap.NewNop()

	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.hidswatch/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseMode, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add all subcommands
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(logsCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(config.Dir())
		viper.AddConfigPath("/etc/hidswatch/")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// HIDSWATCH_ALERTS_LOG_FILE overrides alerts.log_file
	viper.SetEnvPrefix("HIDSWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	config.SetDefaults(viper.GetViper())

	readErr := viper.ReadInConfig()

	if err := hidslogger.Initialize(loggingConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
		hidslogger.Set(zap.NewNop())
	}
	logger = hidslogger.Get()

	switch {
	case readErr == nil:
		logger.Debug("Using config file", zap.String("file", viper.ConfigFileUsed()))
	case cfgFile != "":
		// An explicitly named file must be readable
		logger.Warn("Failed to read config file", zap.String("file", cfgFile), zap.Error(readErr))
		fmt.Fprintf(os.Stderr, "Warning: failed to read config file %s: %v\n", cfgFile, readErr)
	}
}

// loggingConfig builds the diagnostic logger settings, falling back to the
// defaults when the logging section is invalid
func loggingConfig() *hidslogger.LogConfig {
	lc, err := config.LoadLogging(viper.GetViper())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		cfg := hidslogger.DefaultConfig()
		if viper.GetBool("verbose") {
			cfg.Level = "debug"
			cfg.Console = true
		}
		return cfg
	}
	return lc.LogConfig(viper.GetBool("verbose"))
}
