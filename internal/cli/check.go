package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/purity/internal/control"
	"github.com/vietddude/purity/internal/core/config"
	"github.com/vietddude/purity/internal/core/domain"
	"github.com/vietddude/purity/internal/infra/feed"
)

var checkFile string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Enforce a batch of transactions offline and print the decisions",
	Long: `check runs every record in --file through the full pipeline using in-memory
storage, ledger and audit sinks. Policy, privileged accounts and voters come
from the config file when it exists.`,
	Run: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkFile, "file", "", "JSON (or .cbor) array of transactions")
	_ = checkCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	cfg, err := offlineConfig(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	txs, err := feed.LoadFile(checkFile)
	if err != nil {
		slog.Error("Failed to load transactions", "error", err)
		os.Exit(1)
	}

	rejected, err := runBatch(context.Background(), cfg, txs, os.Stdout)
	if err != nil {
		slog.Error("Batch check failed", "error", err)
		os.Exit(1)
	}
	if rejected > 0 {
		os.Exit(2)
	}
}

// offlineConfig loads path if present and strips every external dependency.
func offlineConfig(path string) (*config.AppConfig, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	level := cfg.Logging.Level
	if level == "" || level == "info" {
		level = "warn"
	}
	setupLogging(level)

	cfg.Database.URL = ""
	cfg.Redis.URL = ""
	cfg.Ledger.URL = ""
	cfg.Feed.Brokers = nil
	cfg.Audit = config.AuditConfig{Sink: "log"}
	cfg.Server.GRPCPort = 0
	return cfg, nil
}

// runBatch decides txs in order, writes a table to out and returns how many
// were not accepted.
func runBatch(ctx context.Context, cfg *config.AppConfig, txs []domain.TransactionRecord, out io.Writer) (int, error) {
	svc, err := control.NewService(ctx, cfg)
	if err != nil {
		return 0, err
	}

	defer func() { _ = svc.Stop(ctx) }()

	decisions, errs := svc.Enforcer().EnforceBatch(ctx, txs)
	svc.Drain(10 * time.Second)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "TX\tDECISION\tREASON\tSCORE\tDETAIL")

	rejected := 0
	for i, tx := range txs {
		if errs[i] != nil {
			rejected++
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t-\t%v\n", tx.ID, "invalid", "malformed", errs[i])
			continue
		}
		d := decisions[i]
		if !d.Accepted() {
			rejected++
		}
		detail := strings.Join(d.TaintPath, " <- ")
		if d.Kind == domain.DecisionFrozen {
			detail = "frozen " + d.Account
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\n", tx.ID, d.Kind, d.Reason, d.Score, detail)
	}
	if err := w.Flush(); err != nil {
		return rejected, err
	}

	_, _ = fmt.Fprintf(out, "\n%d transactions, %d accepted, %d not accepted, total frozen %d\n",
		len(txs), len(txs)-rejected, rejected, svc.Freezes().TotalFrozen())
	return rejected, nil
}
