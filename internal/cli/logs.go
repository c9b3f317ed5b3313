package cli

import (
	"fmt"
	"os"

	"github.com/hidswatch/hidswatch/internal/notifier"
	"github.com/hidswatch/hidswatch/pkg/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// logsCmd represents the logs command
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View recent alerts",
	Long: `Display the most recent lines of the alert log
(alerts.log_file, default ~/.hidswatch/hids_notifications.txt).`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().Int("tail", 20, "Number of lines to display")
}

func runLogs(cmd *cobra.Command, args []string) error {
	tail, _ := cmd.Flags().GetInt("tail")

	path, err := utils.ExpandPath(viper.GetString("alerts.log_file"))
	if err != nil {
		return err
	}

	lines, err := notifier.NewLogSink(path).Tail(tail)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(cmd.OutOrStdout(), "No alerts recorded yet (%s)\n", path)
			return nil
		}
		return fmt.Errorf("failed to read alert log: %w", err)
	}

	for _, line := range lines {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}
