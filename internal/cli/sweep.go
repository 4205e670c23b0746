package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/purity/internal/control"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Retry every pending redistribution once and exit",
	Run:   runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	cfg.Feed.Brokers = nil
	cfg.Server.GRPCPort = 0

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	svc, err := control.NewService(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize service", "error", err)
		os.Exit(1)
	}

	pending := svc.Freezes().PendingCount()
	done := svc.Sweep(ctx)
	fmt.Printf("pending: %d, redistributed: %d, still pending: %d\n", pending, done, svc.Freezes().PendingCount())

	if err := svc.Stop(ctx); err != nil {
		slog.Warn("Error during shutdown", "error", err)
	}
}
