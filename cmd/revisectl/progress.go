package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/reviserx/internal/platform/config"
	"github.com/p-n-ai/reviserx/internal/platform/database"
	"github.com/p-n-ai/reviserx/internal/report"
	"github.com/p-n-ai/reviserx/internal/study"
)

func newProgressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Read learner progress from a persistent store",
	}
	cmd.PersistentFlags().String("database", "", "Progress database URL (overrides REVISE_DATABASE_URL)")
	cmd.PersistentFlags().String("user", study.DefaultUserID, "Learner user ID")
	cmd.PersistentFlags().String("dir", "", "Catalog directory for topic names (default: built-in seed)")

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the progress ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := readProgress(cmd)
			if err != nil {
				return err
			}
			printProgress(cmd.OutOrStdout(), d)
			return nil
		},
	})

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write progress and sessions to an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outPath, _ := cmd.Flags().GetString("out")
			d, err := readProgress(cmd)
			if err != nil {
				return err
			}
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create %s: %w", outPath, err)
			}
			if err := report.WriteWorkbook(f, d); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d progress records and %d sessions to %s\n",
				len(d.Progress), len(d.Sessions), outPath)
			return nil
		},
	}
	exportCmd.Flags().String("out", "progress.xlsx", "Output file")
	cmd.AddCommand(exportCmd)

	return cmd
}

// resolveDatabaseURL returns the --database flag, then REVISE_DATABASE_URL.
func resolveDatabaseURL(cmd *cobra.Command) string {
	if u, _ := cmd.Flags().GetString("database"); u != "" {
		return u
	}
	return os.Getenv("REVISE_DATABASE_URL")
}

// openStore opens the store named by url. The returned func releases it.
func openStore(ctx context.Context, url string) (study.ProgressStore, func(), error) {
	db := config.DatabaseConfig{URL: url}
	switch db.Driver() {
	case config.DriverPostgres:
		pg, err := database.New(ctx, url, database.Options{MaxConns: 2, ApplicationName: "revisectl"})
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		s, err := study.NewPostgresStore(ctx, pg.Pool)
		if err != nil {
			pg.Close()
			return nil, nil, err
		}
		return s, pg.Close, nil
	case config.DriverSQLite:
		s, err := study.OpenSQLite(ctx, db.SQLitePath())
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		return s, func() { s.Close() }, nil
	case config.DriverMemory:
		return nil, nil, fmt.Errorf("no database given: set --database or REVISE_DATABASE_URL")
	}
	return nil, nil, fmt.Errorf("unsupported database URL %q", url)
}

func readProgress(cmd *cobra.Command) (report.Data, error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	userID, _ := cmd.Flags().GetString("user")
	store, release, err := openStore(ctx, resolveDatabaseURL(cmd))
	if err != nil {
		return report.Data{}, err
	}
	defer release()

	progress, err := store.ListProgress(ctx, userID)
	if err != nil {
		return report.Data{}, fmt.Errorf("list progress: %w", err)
	}
	sessions, err := store.ListSessions(ctx, userID)
	if err != nil {
		return report.Data{}, fmt.Errorf("list sessions: %w", err)
	}

	var namer report.TopicNamer
	if cat, err := loadCatalogFlag(cmd); err == nil {
		namer = cat.TopicName
	} else {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: topic names unavailable: %v\n", err)
	}

	return report.Data{
		UserID:      userID,
		Progress:    progress,
		Sessions:    sessions,
		TopicName:   namer,
		GeneratedAt: time.Now(),
	}, nil
}

func printProgress(out io.Writer, d report.Data) {
	if len(d.Progress) == 0 {
		fmt.Fprintf(out, "No progress recorded for %s.\n", d.UserID)
		return
	}
	fmt.Fprintf(out, "%-28s  %-9s  %-7s  %-8s  %s\n", "Topic", "Attempted", "Correct", "Accuracy", "Last studied")
	fmt.Fprintln(out, strings.Repeat("─", 80))
	for _, p := range d.Progress {
		name := p.TopicID
		if d.TopicName != nil {
			if n, ok := d.TopicName(p.TopicID); ok {
				name = n
			}
		}
		fmt.Fprintf(out, "%-28s  %-9d  %-7d  %-8s  %s\n",
			name, p.QuestionsAttempted, p.QuestionsCorrect, fmt.Sprintf("%d%%", p.Accuracy()),
			p.LastStudied.Local().Format("2006-01-02 15:04"))
	}
	sum := study.Summarize(d.Progress, d.Sessions)
	fmt.Fprintln(out, strings.Repeat("─", 80))
	fmt.Fprintf(out, "%d topics, %d/%d correct (%d%%), %d sessions\n",
		sum.TopicsStudied, sum.QuestionsCorrect, sum.QuestionsAttempted, sum.Accuracy, sum.Sessions)
}
