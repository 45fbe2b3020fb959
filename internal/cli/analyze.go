package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"redteam/internal/bootstrap"
	"redteam/internal/domain/analysis"
	"redteam/internal/metrics"
	"redteam/internal/report"
	"redteam/pkg/errors"
)

type analyzeOptions struct {
	file         string
	output       string
	format       string
	perspectives []string
	mentalModels []string
	synthesize   bool
	followUp     bool
	metricsAddr  string
	quiet        bool
}

func AnalyzeCmd() *cobra.Command {
	var opts analyzeOptions
	cmd := &cobra.Command{
		Use:   "analyze [strategy text]",
		Short: "Analyze a strategy from several perspectives and synthesize a report",
		Long: "Analyze a strategy from several perspectives and synthesize a report.\n" +
			"The strategy is read from the arguments, from --file, or from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "read the strategy from a file (- for stdin)")
	f.StringVarP(&opts.output, "output", "o", "", "write the report to a file instead of stdout")
	f.StringVar(&opts.format, "format", "markdown", "report format: markdown or json")
	f.StringSliceVarP(&opts.perspectives, "perspectives", "p", nil, "perspective ids (default: all)")
	f.StringSliceVarP(&opts.mentalModels, "mental-models", "m", nil, "mental model ids to apply")
	f.BoolVar(&opts.synthesize, "synthesize", true, "synthesize the perspectives into one report")
	f.BoolVar(&opts.followUp, "follow-up", false, "generate follow-up questions")
	f.StringVar(&opts.metricsAddr, "serve-metrics", "", "serve Prometheus metrics on this address during the run")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "do not print progress")
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, opts analyzeOptions) error {
	format := strings.ToLower(strings.TrimSpace(opts.format))
	if format != "markdown" && format != "json" {
		return errors.NewValidationError("format", "must be markdown or json", opts.format)
	}

	strategy, err := readStrategy(cmd, args, opts.file)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c, err := setup(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := ScreenStrategy(strategy, c.Config.Analysis.MaxStrategyLength); err != nil {
		return err
	}

	if opts.metricsAddr != "" {
		stop := serveMetrics(c, opts.metricsAddr)
		defer stop()
	}

	ids := opts.perspectives
	if len(ids) == 0 {
		ids = c.Catalog.IDs()
	}

	runID := uuid.NewString()
	ctx = analysis.WithRunID(ctx, runID)
	stderr := cmd.ErrOrStderr()

	progress := func(fraction float64, message string) {
		if !opts.quiet {
			fmt.Fprintf(stderr, "[%3.0f%%] %s\n", fraction*100, message)
		}
	}

	start := time.Now()
	results, err := c.Orchestrator.AnalyzeStrategy(ctx, analysis.Request{
		Strategy:     strategy,
		Perspectives: ids,
		MentalModels: opts.mentalModels,
	}, progress)
	if err != nil {
		return err
	}

	in := report.Input{
		RunID:     runID,
		Strategy:  strategy,
		Results:   results,
		Generated: time.Now(),
	}

	if opts.synthesize {
		progress(1.0, "Synthesizing perspectives...")
		in.Report = c.Synthesizer.Synthesize(ctx, strategy, results)
	}

	if opts.followUp {
		questions, err := c.Synthesizer.FollowUpQuestions(ctx, strategy, results)
		if err != nil {
			c.Log.Warnw("Follow-up questions unavailable", "error", err)
		}
		in.FollowUps = questions
	}

	doc := report.Build(c.Catalog, in)
	rendered, err := render(doc, format)
	if err != nil {
		return err
	}

	if err := writeOutput(cmd, opts.output, rendered); err != nil {
		return err
	}

	if !opts.quiet {
		printSummary(stderr, doc, opts.output, len(rendered), time.Since(start))
	}
	return nil
}

func readStrategy(cmd *cobra.Command, args []string, file string) (string, error) {
	switch {
	case file == "-":
		return readAll(cmd.InOrStdin())
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", errors.Wrapf(err, "read strategy file %s", file)
		}
		return string(data), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		return readAll(cmd.InOrStdin())
	}
}

func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrap(err, "read strategy from stdin")
	}
	return string(data), nil
}

func render(doc report.Document, format string) ([]byte, error) {
	if format == "json" {
		return report.JSON(doc)
	}
	md, err := report.Markdown(doc)
	if err != nil {
		return nil, err
	}
	return []byte(md), nil
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write report to %s", path)
	}
	return nil
}

func printSummary(w io.Writer, doc report.Document, path string, size int, elapsed time.Duration) {
	fmt.Fprintf(w, "Analyzed %d perspectives (%d failed) in %s, average confidence %.0f%%\n",
		doc.Stats.Total, doc.Stats.Failed, elapsed.Round(time.Millisecond), doc.Stats.AverageConfidence*100)
	if doc.Report != nil && doc.Report.IsFallback() {
		fmt.Fprintf(w, "Synthesis used the fallback: %s\n", doc.Report.FallbackMarker)
	}
	if path != "" {
		fmt.Fprintf(w, "Report written to %s (%s)\n", path, humanize.Bytes(uint64(size)))
	}
}

// serveMetrics exposes /metrics until the returned stop function is called.
func serveMetrics(c *bootstrap.Container, addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.Log.Warnw("Metrics server stopped", "addr", addr, "error", err)
		}
	}()
	c.Log.Infow("Serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
