package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-insight-api/pkg/config"
	"github.com/noah-isme/enrollment-insight-api/pkg/logger"
)

var (
	cfg  *config.Config
	logr *zap.Logger
)

// rootCmd is the operator CLI next to the HTTP server.
var rootCmd = &cobra.Command{
	Use:   "insightctl",
	Short: "Operate the enrollment insight record store",
	Long: `insightctl runs imports and comparisons without the HTTP server.

It reads the same environment and .env file as the API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		l, err := logger.New(cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logr = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logr != nil {
			_ = logr.Sync()
		}
	},
}

func init() {
	rootCmd.AddCommand(importCmd, compareCmd, tokenCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
