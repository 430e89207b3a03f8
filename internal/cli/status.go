package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/rrol/internal/core/domain"
	"github.com/vietddude/rrol/internal/infra/storage"
	"github.com/vietddude/rrol/internal/infra/storage/postgres"
)

var (
	reportsLimit    int
	reportsCategory string
	reportsSeverity string
	pruneOlderThan  time.Duration
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List stored failure reports",
	RunE:  runReports,
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete stored failure reports older than --older-than",
	RunE:  runPrune,
}

func init() {
	reportsCmd.Flags().IntVar(&reportsLimit, "limit", 20, "maximum reports to show")
	reportsCmd.Flags().StringVar(&reportsCategory, "category", "", "filter by category")
	reportsCmd.Flags().StringVar(&reportsSeverity, "severity", "", "filter by severity")
	pruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 7*24*time.Hour, "retention period")
	rootCmd.AddCommand(reportsCmd, pruneCmd)
}

func openReports(cmd *cobra.Command) (*postgres.DB, storage.ReportRepository, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("database.url is not configured")
	}

	db, err := postgres.NewDB(cmd.Context(), cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		return nil, nil, err
	}
	return db, postgres.NewReportRepo(db), nil
}

func runReports(cmd *cobra.Command, args []string) error {
	db, repo, err := openReports(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	reports, err := repo.List(ctx, storage.ReportFilter{
		Category: domain.Category(reportsCategory),
		Severity: domain.Severity(reportsSeverity),
		Limit:    reportsLimit,
	})
	if err != nil {
		slog.Error("Failed to query reports", "error", err)
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ERROR ID\tRECEIVED\tCATEGORY\tSEVERITY\tROUTE\tMESSAGE")
	for _, r := range reports {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ErrorID,
			r.ReceivedAt.Format(time.RFC3339),
			r.Category,
			r.Severity,
			r.Context.Route,
			truncateCell(r.Message, 60),
		)
	}
	return w.Flush()
}

func runPrune(cmd *cobra.Command, args []string) error {
	db, repo, err := openReports(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	n, err := repo.DeleteOlderThan(cmd.Context(), time.Now().Add(-pruneOlderThan))
	if err != nil {
		slog.Error("Failed to prune reports", "error", err)
		return err
	}
	fmt.Printf("Deleted %d reports older than %s\n", n, pruneOlderThan)
	return nil
}

func truncateCell(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
