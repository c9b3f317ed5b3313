package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hidswatch/hidswatch/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize hidswatch configuration",
	Long: `Initialize hidswatch configuration in your home directory.

This command creates the necessary configuration files and directories
for hidswatch to operate. It will create:
- ~/.hidswatch/config.yaml - Main configuration file
- ~/.hidswatch/logs/ - Directory for diagnostic logs

The alert log (~/.hidswatch/hids_notifications.txt) is created on the
first alert.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().Bool("force", false, "Overwrite existing configuration")
}

func runInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	stateDir := config.Dir()

	if err := os.MkdirAll(filepath.Join(stateDir, "logs"), 0700); err != nil {
		return fmt.Errorf("failed to create hidswatch directory: %w", err)
	}

	configPath := filepath.Join(stateDir, "config.yaml")

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration already exists at %s. Use --force to overwrite", configPath)
	}

	configData, err := yaml.Marshal(config.DefaultDocument())
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	if err := os.WriteFile(configPath, configData, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "hidswatch initialized successfully!\n")
	fmt.Fprintf(out, "Configuration directory: %s\n", stateDir)
	fmt.Fprintf(out, "Configuration file: %s\n", configPath)
	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "Next steps:\n")
	fmt.Fprintf(out, "1. Set watch.root_path with 'hidswatch config set watch.root_path /path/to/dir'\n")
	fmt.Fprintf(out, "2. Run 'hidswatch watch' (or 'hidswatch watch /path/to/dir') to start monitoring\n")

	return nil
}
