package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/copyleftdev/stochopt/internal/logging"
	"github.com/copyleftdev/stochopt/internal/optimization"
	"github.com/copyleftdev/stochopt/internal/optimization/pattern"
	"github.com/copyleftdev/stochopt/internal/optimization/walk"
	"github.com/copyleftdev/stochopt/internal/server"
	"github.com/copyleftdev/stochopt/internal/store"
)

var (
	runAlgorithm   string
	runFunction    string
	runDim         int
	runInitial     []float64
	runBounds      []string
	runSeed        int64
	runMaxSuccess  int
	runMaxFailures int
	runInitialStep float64
	runMinStep     float64
	runExpansion   float64
	runContraction float64
	runMinDeltaF   float64
	runDropout     bool
	runDropoutRate float64
	runHistory     bool
	runSave        bool
	runStoreDir    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one optimization of a benchmark objective",
	Long: `Runs pattern search or the random walk on a benchmark objective and
prints the configuration and the result. Interrupting the run aborts it.`,
	Args: cobra.NoArgs,
	RunE: runOptimization,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runAlgorithm, "algorithm", "a", pattern.Name, "Algorithm: pattern or walk")
	f.StringVarP(&runFunction, "function", "f", "", "Benchmark function (required, see 'stochopt benchmarks')")
	f.IntVar(&runDim, "dim", 0, "Dimension (0 = from --initial, --bounds or the function default)")
	f.Float64SliceVar(&runInitial, "initial", nil, "Initial point, e.g. 1.5,-2")
	f.StringSliceVar(&runBounds, "bounds", nil, "Bounds as min:max per dimension, e.g. -5:5,-5:5")
	f.Int64Var(&runSeed, "seed", 0, "Random seed (default OPT_RANDOM_SEED)")
	f.IntVar(&runMaxSuccess, "max-successes", 0, "Pattern search: successful steps allowed (N)")
	f.IntVar(&runMaxFailures, "max-failures", 0, "Failures before contraction (pattern, M) or stop (walk, N)")
	f.Float64Var(&runInitialStep, "initial-step", 0, "Pattern search: initial step length")
	f.Float64Var(&runMinStep, "min-step", 0, "Pattern search: step length at which the search converged")
	f.Float64Var(&runExpansion, "expansion", 0, "Pattern search: step growth factor (alpha > 1)")
	f.Float64Var(&runContraction, "contraction", 0, "Pattern search: step shrink factor (0 < beta < 1)")
	f.Float64Var(&runMinDeltaF, "min-delta-f", 0, "Minimum improvement for a step to count")
	f.BoolVar(&runDropout, "dropout", false, "Perturb a random subset of coordinates per step")
	f.Float64Var(&runDropoutRate, "dropout-rate", 0, "Probability that a coordinate is left unchanged")
	f.BoolVar(&runHistory, "history", false, "Print every accepted improvement")
	f.BoolVar(&runSave, "save", false, "Save the run to the store")
	f.StringVar(&runStoreDir, "store-dir", "", "Store directory (default STORE_DIR)")

	_ = runCmd.MarkFlagRequired("function")
	rootCmd.AddCommand(runCmd)
}

// parseBounds parses min:max pairs.
func parseBounds(values []string) ([][2]float64, error) {
	if len(values) == 0 {
		return nil, nil
	}
	bounds := make([][2]float64, len(values))
	for i, v := range values {
		lo, hi, ok := strings.Cut(v, ":")
		if !ok {
			return nil, fmt.Errorf("bound %q: expected min:max", v)
		}
		lower, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
		if err != nil {
			return nil, fmt.Errorf("bound %q: %w", v, err)
		}
		upper, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
		if err != nil {
			return nil, fmt.Errorf("bound %q: %w", v, err)
		}
		bounds[i] = [2]float64{lower, upper}
	}
	return bounds, nil
}

// buildRequest turns the flags into a request. Only flags that were set
// override the configured defaults.
func buildRequest(flags *pflag.FlagSet) (server.OptimizeRequest, error) {
	bounds, err := parseBounds(runBounds)
	if err != nil {
		return server.OptimizeRequest{}, err
	}

	req := server.OptimizeRequest{
		Algorithm: runAlgorithm,
		Function:  runFunction,
		Dim:       runDim,
		Initial:   runInitial,
		Bounds:    bounds,
		Options:   &server.Options{},
	}
	if flags.Changed("seed") {
		req.Seed = &runSeed
	}

	opts := req.Options
	if flags.Changed("max-successes") {
		opts.MaxSuccessfulSteps = &runMaxSuccess
	}
	if flags.Changed("max-failures") {
		opts.MaxFailures = &runMaxFailures
	}
	if flags.Changed("initial-step") {
		opts.InitialStep = &runInitialStep
	}
	if flags.Changed("min-step") {
		opts.MinStep = &runMinStep
	}
	if flags.Changed("expansion") {
		opts.Expansion = &runExpansion
	}
	if flags.Changed("contraction") {
		opts.Contraction = &runContraction
	}
	if flags.Changed("min-delta-f") {
		opts.MinDeltaF = &runMinDeltaF
	}
	if flags.Changed("dropout-rate") {
		opts.DropoutRate = &runDropoutRate
	}
	if flags.Changed("dropout") {
		opts.Dropout = &runDropout
	}
	return req, nil
}

func runOptimization(cmd *cobra.Command, args []string) error {
	req, err := buildRequest(cmd.Flags())
	if err != nil {
		return err
	}

	plan, err := server.NewPlan(cfg, req, logger.Zap())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if timeout := cfg.Optimization.RunTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out := cmd.OutOrStdout()
	printConfig(out, plan.Optimizer)

	record := store.NewRunRecord(uuid.New().String(), plan.Spec, time.Now().UTC())
	logger.Info("optimization started", logging.Fields{
		"optimization_id": record.ID,
		"algorithm":       plan.Spec.Algorithm,
		"function":        plan.Spec.Function,
	})

	start := time.Now()
	result, runErr := plan.Optimizer.Optimize(ctx, plan.Problem)
	elapsed := time.Since(start)

	now := time.Now().UTC()
	if runErr != nil {
		record.Fail(runErr, errors.Is(runErr, context.Canceled), now)
	} else {
		record.Complete(result, now)
	}
	printRecord(out, record, elapsed, runHistory)

	if runSave {
		st, err := store.NewFSStore(storeDir(runStoreDir), logger.Zap())
		if err != nil {
			return fmt.Errorf("failed to open run store: %w", err)
		}
		if err := st.Save(record); err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
		fmt.Fprintf(out, "Saved run %s\n", record.ID)
	}
	return runErr
}

// printConfig prints the effective optimizer settings.
func printConfig(w io.Writer, opt optimization.Optimizer) {
	switch o := opt.(type) {
	case *pattern.Optimizer:
		fmt.Fprint(w, o.Config().String())
	case *walk.Optimizer:
		fmt.Fprint(w, o.Config().String())
	}
	fmt.Fprintln(w)
}

// printRecord prints the outcome of a run.
func printRecord(w io.Writer, r *store.RunRecord, elapsed time.Duration, history bool) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", r.ID)
	fmt.Fprintf(tw, "algorithm:\t%s\n", r.Spec.Algorithm)
	fmt.Fprintf(tw, "function:\t%s\n", r.Spec.Function)
	fmt.Fprintf(tw, "state:\t%s\n", r.State)
	if r.Error != "" {
		fmt.Fprintf(tw, "error:\t%s\n", r.Error)
	} else {
		fmt.Fprintf(tw, "success:\t%t\n", r.Success)
		fmt.Fprintf(tw, "status:\t%s\n", r.Status)
		fmt.Fprintf(tw, "message:\t%s\n", r.Message)
		fmt.Fprintf(tw, "value:\t%g\n", float64(r.Value))
		fmt.Fprintf(tw, "x:\t%s\n", formatPoint(r.X))
		fmt.Fprintf(tw, "evaluations:\t%d\n", r.Evaluations)
		fmt.Fprintf(tw, "evaluation errors:\t%d\n", r.EvaluationErrors)
		fmt.Fprintf(tw, "successful steps:\t%d\n", r.SuccessfulSteps)
	}
	if elapsed > 0 {
		fmt.Fprintf(tw, "elapsed:\t%s\n", elapsed.Round(time.Microsecond))
	}
	_ = tw.Flush()

	if !history || len(r.History) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ITERATION\tVALUE\tX")
	for _, h := range r.History {
		fmt.Fprintf(tw, "%d\t%g\t%s\n", h.Iteration, float64(h.Value), formatPoint(h.X))
	}
	_ = tw.Flush()
}

func formatPoint(x []float64) string {
	parts := make([]string, len(x))
	for i, v := range x {
		parts[i] = strconv.FormatFloat(v, 'g', 6, 64)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
