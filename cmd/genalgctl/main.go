package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"genalg/internal/stats"
	"genalg/internal/storage"
	"genalg/internal/telemetry"
	"genalg/pkg/genalg"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:], stdout, stderr)
	case "resume":
		return runResume(ctx, args[1:], stdout, stderr)
	case "runs":
		return runRuns(ctx, args[1:], stdout, stderr)
	case "history":
		return runHistory(ctx, args[1:], stdout, stderr)
	case "checkpoint":
		return runCheckpoint(ctx, args[1:], stdout, stderr)
	case "summary":
		return runSummary(ctx, args[1:], stdout, stderr)
	case "export":
		return runExport(ctx, args[1:], stdout, stderr)
	case "problems":
		return runProblems(args[1:], stdout)
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runRun(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := addCommonFlags(fs)
	runFlags := addRunFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load(fs, runFlags)
	if err != nil {
		return err
	}
	app, err := openApp(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	defer app.close()

	req := runRequestFromConfig(cfg, *runFlags.runID)
	if *runFlags.replicas > 1 {
		return runReplicas(ctx, app.client, req, *runFlags.replicas, *runFlags.parallel, stdout)
	}

	summary, err := app.client.Run(ctx, req)
	if err != nil {
		return err
	}
	printRunSummary(stdout, summary)
	return nil
}

func runReplicas(ctx context.Context, client *genalg.Client, base genalg.RunRequest, replicas, parallel int, stdout io.Writer) error {
	if base.RunID != "" {
		return errors.New("--run-id cannot be combined with --replicas")
	}
	reqs := make([]genalg.RunRequest, replicas)
	for i := range reqs {
		engine := *base.Engine
		engine.Seed += int64(i)
		reqs[i] = base
		reqs[i].Engine = &engine
	}

	summaries, err := client.RunBatch(ctx, reqs, parallel)
	if err != nil {
		return err
	}
	histories := make([][]genalg.GenerationInfo, 0, len(summaries))
	for _, summary := range summaries {
		printRunSummary(stdout, summary)
		history, err := client.History(ctx, genalg.HistoryRequest{RunID: summary.RunID})
		if err != nil {
			return err
		}
		histories = append(histories, history)
	}

	points := stats.AverageSeries(histories)
	means := make([]float64, 0, len(points))
	for _, point := range points {
		means = append(means, point.Mean)
	}
	if len(points) > 0 {
		last := points[len(points)-1]
		fmt.Fprintf(stdout, "replicas=%d final_mean=%.6g final_std=%.6g best=%.6g trend=%s\n",
			replicas, last.Mean, last.Std, last.Max, stats.Sparkline(means, 40))
	}
	return nil
}

func runResume(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("resume", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := addCommonFlags(fs)
	runID := fs.String("run-id", "", "run id to resume")
	latest := fs.Bool("latest", false, "resume the most recent run")
	generations := fs.Int("generations", 10, "generations to add")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load(fs, nil)
	if err != nil {
		return err
	}
	app, err := openApp(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	defer app.close()

	summary, err := app.client.Resume(ctx, genalg.ResumeRequest{
		RunID:       *runID,
		Latest:      *latest,
		Generations: *generations,
	})
	if err != nil {
		return err
	}
	printRunSummary(stdout, summary)
	return nil
}

func runRuns(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := addCommonFlags(fs)
	limit := fs.Int("limit", 0, "maximum runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load(fs, nil)
	if err != nil {
		return err
	}
	app, err := openApp(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	defer app.close()

	runs, err := app.client.Runs(ctx, genalg.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, stats.RenderRuns(runs))
	return nil
}

func runHistory(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := addCommonFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	limit := fs.Int("limit", 0, "keep only the most recent generations")
	format := fs.String("format", "csv", "output format: csv|json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load(fs, nil)
	if err != nil {
		return err
	}
	app, err := openApp(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	defer app.close()

	history, err := app.client.History(ctx, genalg.HistoryRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	switch strings.ToLower(*format) {
	case "csv":
		return stats.WriteHistoryCSV(stdout, history)
	case "json":
		return writeJSON(stdout, history)
	default:
		return fmt.Errorf("unsupported history format: %s", *format)
	}
}

func runCheckpoint(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("checkpoint", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := addCommonFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	step := fs.Int("step", -1, "checkpoint step; newest when negative")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load(fs, nil)
	if err != nil {
		return err
	}
	app, err := openApp(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	defer app.close()

	req := genalg.CheckpointRequest{RunID: *runID, Latest: *latest}
	if *step >= 0 {
		req.Step = step
	}
	checkpoint, err := app.client.Checkpoint(ctx, req)
	if err != nil {
		return err
	}
	return writeJSON(stdout, checkpoint)
}

func runSummary(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := addCommonFlags(fs)
	runID := fs.String("run-id", "", "run id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("summary requires --run-id")
	}

	cfg, err := common.load(fs, nil)
	if err != nil {
		return err
	}
	app, err := openApp(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	defer app.close()

	report, err := app.client.Summary(ctx, *runID)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, report)
	return nil
}

func runExport(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := addCommonFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", "exports", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load(fs, nil)
	if err != nil {
		return err
	}
	app, err := openApp(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	defer app.close()

	exported, err := app.client.Export(ctx, genalg.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runProblems(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("problems", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, err := genalg.New(genalg.Options{StoreKind: storage.KindMemory})
	if err != nil {
		return err
	}
	for _, item := range client.Problems() {
		fmt.Fprintf(stdout, "%-10s %s\n", item.Name, item.Description)
	}
	return nil
}

func printRunSummary(w io.Writer, summary genalg.RunSummary) {
	s := summary.Statistics
	fmt.Fprintf(w, "run_id=%s problem=%s step=%d generations=%d current_max=%.6g total_max=%.6g mutations=%d crossovers=%d goal_reached=%t fittest=%s\n",
		summary.RunID,
		summary.Problem,
		s.Step,
		summary.Generations,
		s.CurrentMax,
		s.TotalMax,
		s.TotalMutations,
		s.TotalCrossovers,
		summary.GoalReached,
		summary.FittestID,
	)
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: genalgctl <run|resume|runs|history|checkpoint|summary|export|problems> [flags]", msg)
}

// app bundles the client with the telemetry it was built with.
type app struct {
	client   *genalg.Client
	shutdown func(context.Context) error
}

func (a *app) close() {
	_ = a.client.Close()
	_ = a.shutdown(context.Background())
}

func openApp(ctx context.Context, cfg appConfig, stderr io.Writer) (*app, error) {
	logger, err := telemetry.NewLogger(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	opts := genalg.Options{
		StoreKind: cfg.Store.Kind,
		DBPath:    cfg.Store.Path,
		Logger:    logger,
	}
	if cfg.Telemetry.Endpoint != "" {
		opts.TracerProvider = tracerProvider()
	}
	client, err := genalg.New(opts)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		_ = shutdown(context.Background())
		return nil, err
	}
	return &app{client: client, shutdown: shutdown}, nil
}
