package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/deskmaster/internal/config"
	"github.com/nao1215/deskmaster/internal/database"
	"github.com/nao1215/deskmaster/internal/model"
	"github.com/nao1215/deskmaster/internal/report"
	"github.com/spf13/cobra"
)

// historyDateLayout is the session start column of the list output.
const historyDateLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command and its subcommands.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past sessions",
		Long: `History reads the session database written by every run.

Examples:
  # List the latest sessions
  deskmaster history list

  # Show one session as Markdown (an id prefix is enough)
  deskmaster history show --markdown 0b7e4a52

  # Which domains were kept or closed most often
  deskmaster history domains`,
	}

	cmd.PersistentFlags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryDomainsCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}
			return withHistoryDB(cmd, func(ctx context.Context, db *database.HistoryDB) error {
				return listSessions(ctx, db, limit, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "Number of sessions to list (0 for all)")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print the report of one session",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShowCmd,
	}

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Also write report to specified file path (creates directories if needed)")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")
	return cmd
}

func newHistoryDomainsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "Count verdicts per registrable domain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withHistoryDB(cmd, func(ctx context.Context, db *database.HistoryDB) error {
				return listDomains(ctx, db, cmd.OutOrStdout())
			})
		},
	}
}

// withHistoryDB opens the existing history database for fn.
func withHistoryDB(cmd *cobra.Command, fn func(ctx context.Context, db *database.HistoryDB) error) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		if errors.Is(err, database.ErrNoDatabase) {
			return fmt.Errorf("no session history in %s (run 'deskmaster run <keyword>' first)", dbDir)
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return fn(commandContext(cmd), db)
}

// commandContext returns the command context, which is nil when a command
// runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// listSessions prints one line per session.
func listSessions(ctx context.Context, db *database.HistoryDB, limit int, out io.Writer) error {
	sessions, err := db.ListSessions(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions recorded yet.")
		return nil
	}

	fmt.Fprintf(out, "  %-8s  %-19s  %-11s  %6s  %6s  %s\n", "ID", "Started", "Status", "Opened", "Closed", "Keywords")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 76))
	for _, s := range sessions {
		fmt.Fprintf(out, "  %-8s  %-19s  %-11s  %6d  %6d  %s\n",
			shortID(s.ID),
			s.StartedAt.Local().Format(historyDateLayout),
			s.Status,
			s.Opened,
			s.Closed,
			strings.Join(s.Keywords, ", "),
		)
	}

	fmt.Fprintln(out, "\nUse 'deskmaster history show <id>' to see a session in detail.")
	return nil
}

// shortID returns the first block of a session id.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// runHistoryShowCmd prints the stored report of one session.
func runHistoryShowCmd(cmd *cobra.Command, args []string) error {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	return withHistoryDB(cmd, func(ctx context.Context, db *database.HistoryDB) error {
		rep, err := loadSessionReport(ctx, db, args[0])
		if err != nil {
			return err
		}

		newWriter := func(out io.Writer) report.Writer {
			switch {
			case jsonOutput:
				return report.NewFullJSONWriter(out, getVersion(), report.WithPrettyPrint())
			case markdownOutput:
				return report.NewMarkdownWriter(out)
			default:
				verbose := getVerboseFlag(cmd)
				return report.NewSimpleWriter(out, report.WithVerbose(verbose), report.WithShowEmpty(verbose))
			}
		}

		writers := []report.Writer{newWriter(cmd.OutOrStdout())}
		if outputPath != "" {
			f, err := createReportFile(outputPath)
			if err != nil {
				return err
			}
			defer f.Close()
			writers = append(writers, newWriter(f))
		}

		if _, err := report.NewMultiWriter(writers...).Write(rep); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		if outputPath != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", outputPath)
		}
		return nil
	})
}

// loadSessionReport collects everything stored about the session whose id
// starts with prefix. Sessions that never finished get a summary built from
// their start record.
func loadSessionReport(ctx context.Context, db *database.HistoryDB, prefix string) (*report.SessionReport, error) {
	id, err := db.ResolveSessionID(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", prefix, err)
	}

	summary, err := db.GetSummary(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if summary == nil {
		if summary, err = unfinishedSummary(ctx, db, id); err != nil {
			return nil, err
		}
	}

	pages, err := db.GetPages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read pages: %w", err)
	}
	verdicts, err := db.GetVerdicts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read verdicts: %w", err)
	}

	return &report.SessionReport{
		Summary:  summary,
		Pages:    pages,
		Verdicts: verdicts,
	}, nil
}

// unfinishedSummary describes a session that has no end record, typically
// because the process was killed.
func unfinishedSummary(ctx context.Context, db *database.HistoryDB, id string) (*model.Summary, error) {
	sessions, err := db.ListSessions(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	for _, s := range sessions {
		if s.ID != id {
			continue
		}
		keywords := make([]model.KeywordResult, 0, len(s.Keywords))
		for _, k := range s.Keywords {
			keywords = append(keywords, model.KeywordResult{Keyword: k})
		}
		return &model.Summary{
			SessionID: s.ID,
			StartedAt: s.StartedAt,
			Status:    model.Status(s.Status),
			Keywords:  keywords,
			Totals:    model.Totals{Opened: s.Opened, Closed: s.Closed},
		}, nil
	}
	return nil, fmt.Errorf("session %q: %w", id, database.ErrSessionNotFound)
}

// createReportFile creates path and its parent directories.
func createReportFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.Create(path) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return f, nil
}

// listDomains prints verdict counts per domain.
func listDomains(ctx context.Context, db *database.HistoryDB, out io.Writer) error {
	counts, err := db.DomainCounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to count domains: %w", err)
	}

	if len(counts) == 0 {
		fmt.Fprintln(out, "No tabs classified yet.")
		return nil
	}

	fmt.Fprintf(out, "  %-32s  %8s  %8s\n", "Domain", "Internal", "External")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 52))
	for _, c := range counts {
		fmt.Fprintf(out, "  %-32s  %8d  %8d\n", c.Domain, c.Internal, c.External)
	}
	return nil
}
