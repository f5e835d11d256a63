package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	apperrors "tourismcli/internal/errors"
	"tourismcli/internal/exporter"
	"tourismcli/internal/files"
	"tourismcli/internal/infrastructure"
	"tourismcli/internal/pipeline"
	"tourismcli/internal/printer"
	"tourismcli/internal/schema"
	"tourismcli/pkg/contracts/domain"
)

type runFlags struct {
	fillGaps       bool
	acceptNonClean bool
	formats        []string
	output         string
	concurrency    int
	dryRun         bool
	showIssues     bool
}

func newRunCmd(c *cli) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [WORKBOOK|DIR...]",
		Short: "Run the pipeline over one or more workbooks",
		Long: `Run the pipeline over each workbook and persist accepted results.

Workbooks run in isolation, up to --concurrency at once. With one workbook
the result is written straight into the output directory; with several,
each gets a sub-directory named after the workbook, with a -2, -3 suffix
when two workbooks share a name. A directory argument
stands for every .xlsx and .xlsm file directly inside it. Without arguments
the workbook from source.path in the config is used.

Exit status is non-zero when any run fails.

Examples:
  # Run the configured workbook
  tourismcli run

  # Fill short gaps and write CSV and XLSX
  tourismcli run release-2024.xlsx --fill-gaps --format csv,xlsx

  # Persist even when validation found errors
  tourismcli run release-2024.xlsx --accept-non-clean`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, c, f, args)
		},
	}

	cmd.Flags().BoolVar(&f.fillGaps, "fill-gaps", false, "forward-fill short runs of missing quarters (overrides gap_fill.enabled)")
	cmd.Flags().BoolVar(&f.acceptNonClean, "accept-non-clean", false, "persist results that passed with error-severity issues")
	cmd.Flags().StringSliceVarP(&f.formats, "format", "f", nil, "table formats: csv, xlsx, snappy, parquet (default from config)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output directory (default from config)")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 2, "workbooks processed at once")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "validate only; write nothing")
	cmd.Flags().BoolVar(&f.showIssues, "show-issues", false, "list every validation issue")
	return cmd
}

func runPipeline(cmd *cobra.Command, c *cli, f *runFlags, args []string) error {
	// batch-level logs carry their own trace ID; each run replaces it with its run ID
	ctx, _ := infrastructure.EnsureTraceID(cmd.Context())
	p := c.printer

	paths := args
	if len(paths) == 0 {
		if c.cfg.Source.Path == "" {
			return p.Error("no workbook given", "pass a workbook path or set source.path in the config")
		}
		paths = []string{c.cfg.Source.Path}
	}
	paths, err := files.NewDiscovery("").ExpandPaths(paths)
	if err != nil {
		return p.Error("cannot list workbooks", err.Error())
	}

	telemetry, err := infrastructure.NewTelemetry(c.cfg.Telemetry, c.logger)
	if err != nil {
		return p.Error("cannot start telemetry", err.Error())
	}
	defer func() { _ = telemetry.Shutdown(ctx) }()

	opts := []pipeline.Option{pipeline.WithTelemetry(telemetry)}
	if cmd.Flags().Changed("fill-gaps") {
		opts = append(opts, pipeline.WithGapFill(f.fillGaps))
	}

	registry := schema.NewRegistry()
	runner, err := pipeline.NewRunner(c.cfg, registry, c.logger, opts...)
	if err != nil {
		return p.Error("invalid cleaning configuration", err.Error(), "check cleaning.synonyms in the config")
	}

	p.Step("processing %d workbook(s)", len(paths))
	results, _ := runner.RunBatch(ctx, paths, f.concurrency)

	outDir := c.cfg.Output.Dir
	if f.output != "" {
		outDir = f.output
	}
	writer := exporter.NewWriter(c.cfg.Output, registry, c.logger)
	dirs := outputDirs(outDir, paths)

	failed := 0
	for i, result := range results {
		report(p, result, f.showIssues)
		if result.Status == domain.RunStatusFailed {
			failed++
			continue
		}
		if f.dryRun {
			continue
		}

		manifest, err := writer.Persist(result, exporter.PersistOptions{
			Formats:       f.formats,
			AllowNonClean: f.acceptNonClean,
			Dir:           dirs[i],
		})
		switch {
		case errors.Is(err, apperrors.ErrNotAccepted):
			p.Warning("not persisted: %s finished %s; rerun with --accept-non-clean to keep it", filepath.Base(result.SourcePath), result.Status)
		case err != nil:
			return p.Error("cannot persist results", err.Error())
		default:
			p.Success("wrote %d files to %s", len(manifest.Files), manifest.Dir)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(results))
	}
	return nil
}

// outputDirs assigns each workbook its output directory. A single workbook
// writes into outDir; in a batch each gets outDir/<stem>, and stems that
// repeat (compared case-insensitively) take a numeric suffix in path order.
func outputDirs(outDir string, paths []string) []string {
	dirs := make([]string, len(paths))
	if len(paths) == 1 {
		dirs[0] = outDir
		return dirs
	}

	used := make(map[string]bool, len(paths))
	for i, path := range paths {
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		name := stem
		for n := 2; used[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s-%d", stem, n)
		}
		used[strings.ToLower(name)] = true
		dirs[i] = filepath.Join(outDir, name)
	}
	return dirs
}

func report(p *printer.Printer, result *pipeline.Result, showIssues bool) {
	source := filepath.Base(result.SourcePath)
	if result.Status == domain.RunStatusFailed {
		p.Status(source, result.Status, "%s", result.Error)
		return
	}

	s := result.Summary()
	p.Status(source, result.Status, "%d records, %d errors, %d warnings (run %s)", s.RecordCount, s.Errors, s.Warnings, s.RunID)
	if result.GapFill != nil && result.GapFill.FilledCount > 0 {
		p.Detail("%d values gap filled", result.GapFill.FilledCount)
	}
	if !showIssues {
		return
	}
	for _, issue := range result.Report.Issues() {
		p.Detail("[%s] %s: %s", issue.Severity, issue.Rule, issue.Message)
	}
}
