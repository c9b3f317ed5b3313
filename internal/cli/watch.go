package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hidswatch/hidswatch/internal/config"
	"github.com/hidswatch/hidswatch/internal/metrics"
	"github.com/hidswatch/hidswatch/internal/notifier"
	"github.com/hidswatch/hidswatch/internal/watchers"
	"github.com/hidswatch/hidswatch/internal/watchers/local"
	hidserrors "github.com/hidswatch/hidswatch/pkg/errors"
	hidslogger "github.com/hidswatch/hidswatch/pkg/logger"
	"github.com/hidswatch/hidswatch/pkg/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// watchCmd represents the watch command (main monitoring command)
var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Start monitoring a directory for changes",
	Long: `Start monitoring a local directory and raise an alert for every file
that is created, modified or deleted inside it.

Each alert is printed to stdout and appended to the alert log. Alerts are
debounced globally: after one is emitted, further changes are dropped until
the debounce window has passed. Press Ctrl+C to stop.

The path defaults to watch.root_path from the configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Bool("recursive", true, "Monitor subdirectories recursively")
	watchCmd.Flags().String("log-file", "", "Alert log file (default is $HOME/.hidswatch/hids_notifications.txt)")
	watchCmd.Flags().String("timezone", config.DefaultTimezone, "IANA timezone for alert timestamps")
	watchCmd.Flags().Float64("debounce", 1, "Debounce window in seconds")
	watchCmd.Flags().Duration("tick", 10*time.Second, "Liveness tick interval")

	viper.BindPFlag("watch.recursive", watchCmd.Flags().Lookup("recursive"))
	viper.BindPFlag("alerts.log_file", watchCmd.Flags().Lookup("log-file"))
	viper.BindPFlag("alerts.timezone", watchCmd.Flags().Lookup("timezone"))
	viper.BindPFlag("alerts.debounce_seconds", watchCmd.Flags().Lookup("debounce"))
	viper.BindPFlag("watch.tick_interval", watchCmd.Flags().Lookup("tick"))
}

func runWatch(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		viper.Set("watch.root_path", args[0])
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	sessionID := uuid.New().String()
	log := hidslogger.WithSession(sessionID)
	defer hidslogger.Sync()

	prepareAlertLog(cfg, log)

	m := metrics.New()
	n, err := notifier.New(notifier.Config{
		LogFilePath:    cfg.Alerts.LogFile,
		Location:       loc,
		DebounceWindow: cfg.DebounceWindow(),
	}, notifier.Options{
		Console: cmd.OutOrStdout(),
		ErrOut:  cmd.ErrOrStderr(),
		Logger:  log,
		Metrics: m,
	})
	if err != nil {
		return err
	}

	detector := local.NewHidsWatcher(local.Options{
		Logger:  log,
		Metrics: m,
	})

	controllerConfig := watchers.ControllerConfig{
		RootPath:     cfg.Watch.RootPath,
		Recursive:    cfg.Watch.Recursive,
		TickInterval: cfg.Watch.TickInterval,
		Metrics:      m,
		Logger:       log,
	}
	if viper.GetBool("verbose") {
		controllerConfig.OnTick = func(s watchers.Stats) {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%s] Status: up %s, %d dirs watched, %.0f events, %.0f alerts, %.0f suppressed\n",
				time.Now().Format("15:04:05"),
				utils.FormatDuration(s.Uptime),
				s.WatchedDirs,
				s.Counters.TotalObserved(),
				s.Counters.TotalEmitted(),
				s.Counters.AlertsSuppressed,
			)
		}
	}

	controller, err := watchers.NewController(detector, n, controllerConfig)
	if err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting watch session",
		zap.String("root", cfg.Watch.RootPath),
		zap.Bool("recursive", cfg.Watch.Recursive),
		zap.String("alert_log", cfg.Alerts.LogFile),
		zap.String("timezone", loc.String()),
		zap.Duration("debounce", cfg.DebounceWindow()),
	)

	if err := controller.Start(ctx); err != nil {
		return err
	}
	startedAt := time.Now()

	fmt.Fprintf(cmd.OutOrStdout(), "Monitoring started on: %s. Press CTRL+C to stop.\n", cfg.Watch.RootPath)

	serveErr := controller.Serve(ctx)

	fmt.Fprintf(cmd.OutOrStdout(), "Monitoring stopped by user.\n")

	if snap, err := m.Snapshot(); err == nil {
		log.Info("Watch session finished",
			zap.String("duration", utils.FormatDuration(time.Since(startedAt))),
			zap.Float64("events_observed", snap.TotalObserved()),
			zap.Float64("alerts_emitted", snap.TotalEmitted()),
			zap.Float64("alerts_suppressed", snap.AlertsSuppressed),
			zap.Float64("log_write_failures", snap.LogWriteFailures),
		)
	}

	if serveErr != nil {
		// Monitoring already ended; an unclean release is reported, not fatal
		if hidserrors.IsShutdownError(serveErr) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", serveErr)
			return nil
		}
		return serveErr
	}
	return nil
}

// prepareAlertLog creates the alert log's directory and warns when the log
// sits inside the watched tree, where every append is itself a change.
func prepareAlertLog(cfg *config.Config, log *zap.Logger) {
	dir := filepath.Dir(cfg.Alerts.LogFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Warn("Failed to create alert log directory", zap.String("dir", dir), zap.Error(err))
	}

	if utils.IsWithin(cfg.Watch.RootPath, cfg.Alerts.LogFile) {
		log.Warn("Alert log is inside the watched directory; its own writes will raise alerts",
			zap.String("root", cfg.Watch.RootPath),
			zap.String("alert_log", cfg.Alerts.LogFile),
		)
	}
}
