package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Use pgx via database/sql
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show frozen balances and privileged account states",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if cfg.Database.URL == "" {
		slog.Error("status needs database.url")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := printFrozen(ctx, db); err != nil {
		slog.Error("Failed to query frozen balances", "error", err)
		os.Exit(1)
	}
	fmt.Println()
	if err := printWatchlist(ctx, db); err != nil {
		slog.Error("Failed to query watchlist", "error", err)
		os.Exit(1)
	}
}

func printFrozen(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `
		SELECT id, account, amount, target, created_at, redistributed_at
		FROM frozen_balances ORDER BY created_at`)
	if err != nil {
		return err
	}
	defer func() {
		_ = rows.Close()
	}()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ID\tACCOUNT\tAMOUNT\tTARGET\tFROZEN\tREDISTRIBUTED")

	var total, moved int64
	for rows.Next() {
		var (
			id, account, target string
			amount              int64
			createdAt           time.Time
			redistributedAt     sql.NullTime
		)
		if err := rows.Scan(&id, &account, &amount, &target, &createdAt, &redistributedAt); err != nil {
			return err
		}
		total += amount
		done := "-"
		if redistributedAt.Valid {
			moved += amount
			done = redistributedAt.Time.Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			id, account, amount, target, createdAt.Format(time.RFC3339), done)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	_ = w.Flush()
	fmt.Printf("total frozen: %d, redistributed: %d, pending: %d\n", total, moved, total-moved)
	return nil
}

func printWatchlist(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `
		SELECT s.account, s.state, s.balance, COUNT(v.tx_id)
		FROM watchlist_state s
		LEFT JOIN violations v ON v.account = s.account
		GROUP BY s.account, s.state, s.balance
		ORDER BY s.account`)
	if err != nil {
		return err
	}
	defer func() {
		_ = rows.Close()
	}()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ACCOUNT\tSTATE\tBALANCE\tVIOLATIONS")
	for rows.Next() {
		var (
			account, state string
			balance        int64
			violations     int
		)
		if err := rows.Scan(&account, &state, &balance, &violations); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", account, state, balance, violations)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return w.Flush()
}
