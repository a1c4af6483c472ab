package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/pdfscrub/internal/config"
	"github.com/nao1215/pdfscrub/internal/database"
	"github.com/nao1215/pdfscrub/internal/pipeline"
	"github.com/nao1215/pdfscrub/internal/report"
)

// defaultHistoryLimit is the number of runs listed when --limit is not set.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
// This command lists the runs recorded by clean and watch with --history.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [file.pdf]",
		Short: "Show recorded cleaning runs",
		Long: `History lists the runs stored in the database of an output directory.

Runs are recorded by 'pdfscrub clean --history' and 'pdfscrub watch --history'
in ` + database.FileName + ` inside the output directory. Most recent runs come first.

Examples:
  # List the latest runs
  pdfscrub history

  # List the runs of one input
  pdfscrub history invoice.pdf

  # List runs of any file with the same content, even when renamed
  pdfscrub history --same-content copy-of-invoice.pdf

  # Show the full report of one run
  pdfscrub history --run 0b6c7f9e-2f5d-4c0a-9e0e-8f4f2f6f1a2b

  # Output the list in JSON format
  pdfscrub history --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("output-dir", "o", config.DefaultOutputDir,
		"Output directory that holds the run database")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (its output_dir is used when --output-dir is not set)")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to list (0 lists all)")
	cmd.Flags().Bool("same-content", false,
		"Match runs by the content fingerprint of the given file instead of its path")
	cmd.Flags().String("run", "",
		"Show the full report of the run with this ID")
	cmd.Flags().StringP("report", "r", config.ReportText,
		"Format for --run: text, json or markdown")
	cmd.Flags().BoolP("json", "j", false,
		"Output the run list in JSON format")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, nil)
	if err != nil {
		return err
	}

	runID, err := cmd.Flags().GetString("run")
	if err != nil {
		return err
	}
	sameContent, err := cmd.Flags().GetBool("same-content")
	if err != nil {
		return err
	}
	if sameContent && len(args) == 0 {
		return errors.New("--same-content requires a file argument")
	}

	// Validate arguments before opening database
	// This prevents database lock issues when validation fails
	var input, fingerprint string
	if len(args) == 1 {
		input = args[0]
		if sameContent {
			fingerprint, err = pipeline.FingerprintFile(input)
			if err != nil {
				return fmt.Errorf("failed to fingerprint %s: %w", input, err)
			}
		}
	}

	db, err := database.Open(cfg.OutputDir, database.ReadOnlyOptions())
	if err != nil {
		return fmt.Errorf("no run history in %s (run clean with --history first): %w", cfg.OutputDir, err)
	}
	defer db.Close()

	ctx := cmd.Context()

	if runID != "" {
		return showRun(ctx, cmd, db, cfg, runID)
	}

	var records []database.RunRecord
	switch {
	case fingerprint != "":
		records, err = db.RunsForFingerprint(ctx, fingerprint)
	case input != "":
		records, err = db.RunsForInput(ctx, input)
	default:
		limit, lerr := cmd.Flags().GetInt("limit")
		if lerr != nil {
			return lerr
		}
		records, err = db.ListRuns(ctx, limit)
	}
	if err != nil {
		return err
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	if jsonOutput {
		return outputRunsJSON(cmd.OutOrStdout(), records)
	}
	outputRunsText(cmd.OutOrStdout(), input, records)
	return nil
}

// showRun writes the stored report of one run.
func showRun(ctx context.Context, cmd *cobra.Command, db *database.HistoryDB, cfg *config.Config, runID string) error {
	fileReport, err := db.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	format := cfg.ReportFormat
	if format == config.ReportNone {
		format = config.ReportText
	}
	w, err := report.NewWriter(format, cmd.OutOrStdout(), getVersion())
	if err != nil {
		return err
	}
	_, err = w.Write(fileReport)
	return err
}

// outputRunsJSON outputs the run list in JSON format.
func outputRunsJSON(out io.Writer, records []database.RunRecord) error {
	if records == nil {
		records = []database.RunRecord{}
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(records)
}

// outputRunsText outputs the run list as an aligned table.
func outputRunsText(out io.Writer, input string, records []database.RunRecord) {
	if len(records) == 0 {
		if input != "" {
			fmt.Fprintf(out, "No runs recorded for %s\n", input)
			return
		}
		fmt.Fprintln(out, "No runs recorded")
		return
	}

	if input != "" {
		fmt.Fprintf(out, "Run history for %s (%d runs):\n\n", input, len(records))
	} else {
		fmt.Fprintf(out, "Run history (%d runs):\n\n", len(records))
	}

	fmt.Fprintf(out, "  %-36s  %-19s  %-8s  %-9s  %-7s  %s\n",
		"Run ID", "Date", "Status", "Risk", "Removed", "Input")
	for _, r := range records {
		fmt.Fprintf(out, "  %-36s  %-19s  %-8s  %-9s  %-7d  %s\n",
			r.RunID,
			r.Timestamp.Local().Format("2006-01-02 15:04:05"),
			r.Status,
			formatRisk(r.RiskBefore, r.RiskAfter),
			r.Removals,
			r.Input,
		)
	}
}

// formatRisk returns "before -> after", with "-" for unmeasured scores.
func formatRisk(before, after int) string {
	return scoreText(before) + " -> " + scoreText(after)
}

func scoreText(score int) string {
	if score < 0 {
		return "-"
	}
	return fmt.Sprint(score)
}
