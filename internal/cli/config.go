package cli

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/hidswatch/hidswatch/internal/config"
	hidserrors "github.com/hidswatch/hidswatch/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage hidswatch configuration",
	Long:  `View and modify hidswatch configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
}

func configFilePath() string {
	if f := viper.ConfigFileUsed(); f != "" {
		return f
	}
	return filepath.Join(config.Dir(), "config.yaml")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config File: %s\n\n", configFilePath())

	settings := make(map[string]interface{})
	for _, key := range config.Keys() {
		settings[key] = viper.Get(key)
	}

	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	fmt.Fprint(out, string(yamlData))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	if !slices.Contains(config.Keys(), key) {
		return hidserrors.NewConfigError(fmt.Sprintf("unknown configuration key '%s'", key), nil)
	}

	viper.Set(key, value)

	// Write config to file
	if err := viper.WriteConfig(); err != nil {
		if err := viper.SafeWriteConfigAs(configFilePath()); err != nil {
			return fmt.Errorf("failed to write configuration: %w", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration updated\n")
	fmt.Fprintf(cmd.OutOrStdout(), "   %s = %s\n", key, value)

	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if !slices.Contains(config.Keys(), key) {
		return hidserrors.NewConfigError(fmt.Sprintf("configuration key '%s' not found", key), nil)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%v\n", viper.Get(key))
	return nil
}
