package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/san-kum/kinest/internal/analysis"
	"github.com/san-kum/kinest/internal/automation"
	"github.com/san-kum/kinest/internal/config"
	"github.com/san-kum/kinest/internal/experiment"
	"github.com/san-kum/kinest/internal/logging"
	"github.com/san-kum/kinest/internal/storage"
	"github.com/san-kum/kinest/internal/viz"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string
	themeName  string
	seed       int64
	noSave     bool
	plots      bool
	// estimate
	variable []string
	remove   []string
	// diag
	eps      float64
	atol     float64
	rtol     float64
	dataRank int
	// ensemble and sweep
	numRuns  int
	workers  int
	noiseMin float64
	noiseMax float64
	steps    int
)

// main registers the kinest commands and exits with status 1 when a
// command fails.
func main() {
	rootCmd := &cobra.Command{
		Use:           "kinest",
		Short:         "parameter estimability analysis for reaction kinetic models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := logging.Setup(logLevel, true)
			return err
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".kinest", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&themeName, "theme", "default", "report theme ("+strings.Join(viz.ThemeNames(), ", ")+")")

	modelFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
		cmd.Flags().StringVar(&preset, "preset", "series/abc", "preset as family/name")
		cmd.Flags().Int64Var(&seed, "seed", 0, "override the config seed")
		cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
		cmd.Flags().BoolVar(&plots, "plot", false, "plot the selection curve and profiles")
	}

	rankCmd := &cobra.Command{
		Use:   "rank",
		Short: "rank parameters from most to least estimable",
		Args:  cobra.NoArgs,
		RunE:  rankParameters,
	}
	modelFlags(rankCmd)

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "rank parameters and select the subset to estimate",
		Args:  cobra.NoArgs,
		RunE:  analyzeParameters,
	}
	modelFlags(analyzeCmd)

	estimateCmd := &cobra.Command{
		Use:   "estimate",
		Short: "fit the model, optionally freeing only some parameters",
		Args:  cobra.NoArgs,
		RunE:  estimateParameters,
	}
	modelFlags(estimateCmd)
	estimateCmd.Flags().StringSliceVar(&variable, "variable", nil, "parameters to estimate; the rest stay fixed")
	estimateCmd.Flags().StringSliceVar(&remove, "remove", nil, "parameters to freeze and drop from the model")

	ensembleCmd := &cobra.Command{
		Use:   "ensemble",
		Short: "repeat the analysis over noise seeds and tally selections",
		Args:  cobra.NoArgs,
		RunE:  runEnsemble,
	}
	modelFlags(ensembleCmd)
	ensembleCmd.Flags().IntVar(&numRuns, "runs", 10, "number of replicates")
	ensembleCmd.Flags().IntVar(&workers, "workers", 0, "concurrent replicates (0 = GOMAXPROCS)")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "analyze at increasing synthetic noise levels",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	modelFlags(sweepCmd)
	sweepCmd.Flags().Float64Var(&noiseMin, "noise-min", 0.001, "lowest noise level")
	sweepCmd.Flags().Float64Var(&noiseMax, "noise-max", 0.05, "highest noise level")
	sweepCmd.Flags().IntVar(&steps, "steps", 5, "number of noise levels")

	batchCmd := &cobra.Command{
		Use:   "batch [scenario.yaml]",
		Short: "run a scripted scenario of analyses",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	batchCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the runs")

	diagCmd := &cobra.Command{
		Use:   "diag",
		Short: "matrix diagnostics on csv matrices",
	}
	diagRankCmd := &cobra.Command{
		Use:   "rank [matrix.csv]",
		Short: "numerical rank",
		Args:  cobra.ExactArgs(1),
		RunE:  diagRank,
	}
	diagRankCmd.Flags().Float64Var(&eps, "eps", analysis.DefaultRankEps, "singular value threshold")
	diagNullCmd := &cobra.Command{
		Use:   "nullspace [matrix.csv]",
		Short: "null space basis",
		Args:  cobra.ExactArgs(1),
		RunE:  diagNullspace,
	}
	diagNullCmd.Flags().Float64Var(&atol, "atol", analysis.DefaultNullAtol, "absolute tolerance")
	diagNullCmd.Flags().Float64Var(&rtol, "rtol", analysis.DefaultNullRtol, "relative tolerance")
	diagPemCmd := &cobra.Command{
		Use:   "pem [matrix.csv]",
		Short: "pseudo-equivalency analysis",
		Args:  cobra.ExactArgs(1),
		RunE:  diagPem,
	}
	diagPemCmd.Flags().IntVar(&dataRank, "data-rank", 0, "rank of the measured absorbance matrix")
	diagCmd.AddCommand(diagRankCmd, diagNullCmd, diagPemCmd)

	presetsCmd := &cobra.Command{
		Use:   "presets [family]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			families := config.Families()
			if len(args) == 1 {
				families = args
			}
			for _, f := range families {
				names := config.ListPresets(f)
				if len(names) == 0 {
					fmt.Printf("no presets for family: %s\n", f)
					continue
				}
				fmt.Printf("%s:\n", f)
				for _, p := range names {
					fmt.Printf("  %s/%s\n", f, p)
				}
			}
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the selection curve and profiles of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON on stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	browseCmd := &cobra.Command{
		Use:   "browse",
		Short: "browse stored runs interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunBrowser(storage.New(dataDir), viz.GetTheme(themeName))
		},
	}

	rootCmd.AddCommand(rankCmd, analyzeCmd, estimateCmd, ensembleCmd, sweepCmd, batchCmd, diagCmd, presetsCmd, listCmd, showCmd, plotCmd, exportJSONCmd, browseCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if configFile != "" {
		c, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = c
	} else {
		family, name, ok := strings.Cut(preset, "/")
		if !ok {
			return nil, fmt.Errorf("preset must be family/name, got %q", preset)
		}
		cfg = config.GetPreset(family, name)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(family))
		}
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	if !cmd.Flags().Changed("log-level") && cfg.LogLevel != "" {
		if _, err := logging.Setup(cfg.LogLevel, true); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func setupExperiment(cmd *cobra.Command) (*experiment.Experiment, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	exp := experiment.New(cfg, slog.Default())
	if err := exp.Setup(experiment.NewRegistry()); err != nil {
		return nil, err
	}
	return exp, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// finish stores the run unless disabled and prints its report.
func finish(exp *experiment.Experiment, run *storage.Run) error {
	run.Config = exp.Config().Name
	run.Seed = exp.Config().Seed

	st := storage.New(dataDir)
	runID := ""
	if !noSave {
		if err := st.Init(); err != nil {
			return err
		}
		id, err := st.Save(run)
		if err != nil {
			return err
		}
		runID = id
	}

	var meta *storage.RunMetadata
	if runID != "" {
		m, err := st.Load(runID)
		if err != nil {
			return err
		}
		meta = m
	} else {
		m := run.Metadata("")
		meta = &m
	}

	fmt.Println(viz.NewRenderer(viz.GetTheme(themeName)).Report(meta))
	if plots {
		printPlots(meta, run)
	}
	return nil
}

func printPlots(meta *storage.RunMetadata, run *storage.Run) {
	if len(meta.Curve) > 1 {
		if g, err := viz.PlotCurve(meta.Curve, 60, 10); err == nil {
			fmt.Println(g)
			fmt.Println()
		}
	}
	if res := run.Results; res != nil && res.Z != nil {
		r, c := res.Z.Dims()
		states := make([][]float64, r)
		for i := range states {
			states[i] = mat.Row(make([]float64, c), i, res.Z)
		}
		if g, err := viz.PlotProfiles(states, res.Times, res.Components, 60, 12); err == nil {
			fmt.Println(g)
		}
	}
}

func rankParameters(cmd *cobra.Command, args []string) error {
	exp, err := setupExperiment(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	rk, fit, err := exp.Rank(ctx)
	if err != nil {
		return err
	}
	return finish(exp, &storage.Run{Kind: "rank", Ranking: rk, Results: fit})
}

func analyzeParameters(cmd *cobra.Command, args []string) error {
	exp, err := setupExperiment(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	rep, err := exp.Analyze(ctx)
	if err != nil {
		return err
	}
	slog.Info("analysis finished", "estimate", rep.ToEstimate, "fix", rep.ToFix, "elapsed", rep.Duration)
	return finish(exp, &storage.Run{Kind: "analyze", Ranking: rep.Ranking, Selection: rep.Selection, Results: rep.Fit})
}

func estimateParameters(cmd *cobra.Command, args []string) error {
	exp, err := setupExperiment(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	res, err := exp.Estimate(ctx, variable, remove)
	if err != nil {
		return err
	}
	return finish(exp, &storage.Run{Kind: "estimate", Results: res})
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	ens := experiment.NewEnsemble(cfg, numRuns, cfg.Seed)
	ens.Workers = workers
	res, err := ens.Run(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARAM\tMEAN RANK\tSELECTED")
	for _, name := range res.Names() {
		fmt.Fprintf(w, "%s\t%.2f\t%d/%d (%.0f%%)\n", name, res.MeanRank[name],
			res.Selected[name], len(res.Reports), 100*res.Frequency(name))
	}
	return w.Flush()
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	results, err := automation.RunSweep(ctx, &automation.NoiseSweep{
		Config:   cfg,
		NoiseMin: noiseMin,
		NoiseMax: noiseMax,
		NumSteps: steps,
	}, slog.Default())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NOISE\tESTIMATE\tFIX\tMSE")
	for _, r := range results {
		fmt.Fprintf(w, "%.4g\t%s\t%s\t%.4g\n", r.Noise, strings.Join(r.Estimate, ","), strings.Join(r.Fix, ","), r.MSE)
	}
	return w.Flush()
}

func runBatch(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	runs, runErr := automation.RunScenario(ctx, scenario, slog.Default())

	st := storage.New(dataDir)
	if !noSave && len(runs) > 0 {
		if err := st.Init(); err != nil {
			return err
		}
	}
	renderer := viz.NewRenderer(viz.GetTheme(themeName))
	for _, run := range runs {
		meta := run.Metadata("")
		if !noSave {
			id, err := st.Save(run)
			if err != nil {
				return err
			}
			meta.ID = id
		}
		fmt.Println(renderer.Report(&meta))
	}
	return runErr
}

func readMatrix(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comment = '#'
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	rows := make([][]float64, len(records))
	for i, rec := range records {
		rows[i] = make([]float64, len(rec))
		for j, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("%s row %d column %d: %w", path, i+1, j+1, err)
			}
			rows[i][j] = v
		}
	}
	return analysis.FromRows(rows)
}

func diagRank(cmd *cobra.Command, args []string) error {
	a, err := readMatrix(args[0])
	if err != nil {
		return err
	}
	sv, err := analysis.SingularValues(a)
	if err != nil {
		return err
	}
	rank, err := analysis.Rank(a, eps)
	if err != nil {
		return err
	}
	fmt.Printf("rank: %d\n", rank)
	fmt.Printf("singular values: %.6g\n", sv)
	return nil
}

func diagNullspace(cmd *cobra.Command, args []string) error {
	a, err := readMatrix(args[0])
	if err != nil {
		return err
	}
	ns, err := analysis.Nullspace(a, atol, rtol)
	if err != nil {
		return err
	}
	if ns == nil {
		fmt.Println("null space is trivial")
		return nil
	}
	_, k := ns.Dims()
	fmt.Printf("nullity: %d\n", k)
	fmt.Printf("%.6g\n", mat.Formatted(ns, mat.Squeeze()))
	return nil
}

func diagPem(cmd *cobra.Command, args []string) error {
	a, err := readMatrix(args[0])
	if err != nil {
		return err
	}
	rep, err := analysis.AnalyzePseudoEquivalency(a, dataRank)
	if err != nil {
		return err
	}
	fmt.Println(rep)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tCONFIG\tTIME\tESTIMATE\tMSE")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.4g\n",
			run.ID,
			run.Kind,
			run.Config,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			strings.Join(run.Estimate, ","),
			run.MSE,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	meta, err := storage.New(dataDir).Load(args[0])
	if err != nil {
		return err
	}
	fmt.Println(viz.NewRenderer(viz.GetTheme(themeName)).Report(meta))
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("config: %s\n\n", meta.Config)

	plotted := false
	if len(meta.Curve) > 1 {
		g, err := viz.PlotCurve(meta.Curve, 80, 10)
		if err != nil {
			return err
		}
		fmt.Println(g)
		fmt.Println()
		plotted = true
	}

	states, times, comps, err := st.LoadProfiles(args[0])
	if err == nil {
		g, err := viz.PlotProfiles(states, times, comps, 80, 15)
		if err != nil {
			return err
		}
		fmt.Println(g)
		plotted = true
	} else if !os.IsNotExist(err) {
		return err
	}

	if !plotted {
		return fmt.Errorf("no data to plot")
	}
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	data, err := storage.New(dataDir).Export(args[0])
	if err != nil {
		return err
	}
	return storage.WriteJSON(os.Stdout, data)
}

