package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"evonet/internal/config"
	"evonet/internal/stats"
	"evonet/pkg/evonet"
)

const defaultExportsDir = "exports"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "tasks":
		return runTasks(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "eval":
		return runEval(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, cfg, err := openClient(fs, sf)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("initialized store=%s\n", cfg.Store.Kind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, cfg, err := openClient(fs, sf)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Reset(ctx); err != nil {
		return err
	}
	fmt.Printf("reset store=%s\n", cfg.Store.Kind)
	return nil
}

func runTasks(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tasks", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, _, err := openClient(fs, sf)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	tasks, err := client.Tasks(ctx)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		fmt.Printf("task=%s inputs=%d outputs=%d cases=%d max_score=%g\n",
			task.Name, task.InputWidth, task.OutputWidth, task.Cases, task.MaxScore)
	}
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	rf := addRunFlags(fs)
	continuePopID := fs.String("continue-pop-id", "", "continue from persisted population snapshot id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := sf.load(fs)
	if err != nil {
		return err
	}
	if err := rf.apply(fs, &cfg); err != nil {
		return err
	}
	client, err := sf.client(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	req := runRequestFromConfig(cfg)
	req.ContinueFrom = *continuePopID
	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("run_id=%s task=%s population=%d generations=%s best=%.6f stop_reason=%s elapsed=%s\n",
		summary.RunID,
		req.Task,
		summary.PopulationSize,
		humanize.Comma(int64(summary.Generations)),
		summary.FinalBestScore,
		summary.StopReason,
		summary.Elapsed.Round(time.Millisecond),
	)
	fmt.Printf("artifacts=%s\n", summary.ArtifactsDir)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, _, err := openClient(fs, sf)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, evonet.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		type runsItem struct {
			RunID          string  `json:"run_id"`
			CreatedAtUTC   string  `json:"created_at_utc"`
			Task           string  `json:"task"`
			Seed           int64   `json:"seed"`
			PopulationSize int     `json:"population_size"`
			Generations    int     `json:"generations"`
			FinalBestScore float64 `json:"final_best_score"`
			StopReason     string  `json:"stop_reason"`
		}
		items := make([]runsItem, 0, len(runs))
		for _, r := range runs {
			items = append(items, runsItem(r))
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	for _, r := range runs {
		created := r.CreatedAtUTC
		if t, err := time.Parse(time.RFC3339Nano, r.CreatedAtUTC); err == nil {
			created = humanize.Time(t)
		}
		fmt.Printf("run_id=%s created=%q task=%s seed=%d population=%d generations=%s best=%.6f stop_reason=%s\n",
			r.RunID,
			created,
			r.Task,
			r.Seed,
			r.PopulationSize,
			humanize.Comma(int64(r.Generations)),
			r.FinalBestScore,
			r.StopReason,
		)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show fitness history for the most recent run from run index")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("fitness requires --run-id or --latest")
	}
	if *limit < 0 {
		*limit = 0
	}

	client, _, err := openClient(fs, sf)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, evonet.FitnessHistoryRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("no fitness history")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	}

	for i, best := range history {
		fmt.Printf("generation=%d best_score=%.6f\n", i, best)
	}
	summary := stats.Summarize(history)
	fmt.Printf("initial=%.6f final=%.6f improvement=%.6f mean=%.6f std=%.6f\n",
		summary.InitialBest, summary.FinalBest, summary.Improvement, summary.BestMean, summary.BestStd)
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show diagnostics for the most recent run from run index")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("diagnostics requires --run-id or --latest")
	}
	if *limit < 0 {
		*limit = 0
	}

	client, _, err := openClient(fs, sf)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, evonet.DiagnosticsRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(diagnostics) == 0 {
		fmt.Println("no diagnostics")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(diagnostics)
	}

	for _, d := range diagnostics {
		fmt.Printf("generation=%d best=%.6f mean=%.6f min=%.6f max=%.6f std=%.6f\n",
			d.Generation,
			d.BestScore,
			d.MeanScore,
			d.MinScore,
			d.MaxScore,
			d.StdDev,
		)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", defaultExportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, _, err := openClient(fs, sf)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, evonet.ExportRequest{
		RunID:  *runID,
		Latest: *latest,
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}

	size, err := dirSize(exported.Directory)
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s to=%s size=%s\n", exported.RunID, exported.Directory, humanize.Bytes(size))
	return nil
}

func runEval(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "evaluate the best genome of the most recent run")
	input := fs.String("input", "", "comma separated input; when empty every task case is scored")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("eval requires --run-id or --latest")
	}

	req := evonet.EvalRequest{RunID: *runID, Latest: *latest}
	if *input != "" {
		values, err := parseInput(*input)
		if err != nil {
			return err
		}
		req.Input = values
	}

	client, _, err := openClient(fs, sf)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	result, err := client.Eval(ctx, req)
	if err != nil {
		return err
	}
	if len(req.Input) > 0 {
		fmt.Printf("run_id=%s input=%v output=%v\n", result.RunID, req.Input, result.Output)
		return nil
	}

	for _, c := range result.Cases {
		fmt.Printf("input=%v output=%v score=%.6f\n", c.Input, c.Output, c.Score)
	}
	fmt.Printf("run_id=%s task=%s score=%.6f max_score=%g", result.RunID, result.Task, result.Score, result.MaxScore)
	if result.Accuracy >= 0 {
		fmt.Printf(" accuracy=%d/%d", result.Accuracy, len(result.Cases))
	}
	fmt.Println()
	return nil
}

func openClient(fs *flag.FlagSet, sf *storeFlags) (*evonet.Client, config.Config, error) {
	cfg, err := sf.load(fs)
	if err != nil {
		return nil, config.Config{}, err
	}
	client, err := sf.client(cfg)
	if err != nil {
		return nil, config.Config{}, err
	}
	return client, cfg, nil
}

func dirSize(dir string) (uint64, error) {
	var total uint64
	err := filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += uint64(info.Size())
		return nil
	})
	return total, err
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: evonetctl <init|reset|tasks|run|runs|fitness|diagnostics|export|eval> [flags]", msg)
}
