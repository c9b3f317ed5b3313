// Package main is the entry point for the hidswatch CLI application
package main

import (
	"fmt"
	"os"

	"github.com/hidswatch/hidswatch/internal/cli"
	hidserrors "github.com/hidswatch/hidswatch/pkg/errors"
	hidslogger "github.com/hidswatch/hidswatch/pkg/logger"
	"go.uber.org/zap"
)

// Version information (set during build)
var (
	Version   = "dev"
	BuildDate = "unknown"
)

func main() {
	defer hidslogger.Sync()

	// Set version info for CLI
	cli.SetVersionInfo(Version, BuildDate)

	// Execute the root command
	if err := cli.Execute(); err != nil {
		errType, _ := hidserrors.TypeOf(err)
		zap.L().Error("hidswatch execution failed", zap.String("type", string(errType)), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		hidslogger.Sync()
		os.Exit(1)
	}
}
