package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/copyleftdev/intervalbb/internal/optimization"
	"github.com/copyleftdev/intervalbb/internal/optimization/bnb"
	"github.com/copyleftdev/intervalbb/internal/optimization/functions"
	"github.com/copyleftdev/intervalbb/internal/optimization/parallel"
)

var (
	function      string
	dim           int
	bounds        []string
	workers       int
	precision     float64
	variants      []string
	maxIterations int
	gap           float64
	refine        bool
	localEvery    int
	showBoxes     int
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "solve",
	Short: "Minimize a benchmark function with parallel interval branch-and-bound",
	Long: `solve encloses the global minimum of a registered benchmark over a box.
Each worker runs its own branch-and-bound variant; idle workers are fed
boxes taken from the busiest one until every list is empty.`,
	SilenceUsage: true,
	RunE:         runSolve,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&function, "function", "f", "sphere", "Benchmark to minimize ("+strings.Join(functions.Names(), ", ")+")")
	f.IntVarP(&dim, "dim", "d", 2, "Dimension of the search box")
	f.StringArrayVarP(&bounds, "bounds", "b", []string{"-5:5"}, "Bounds lo:hi, one per dimension or one for all")
	f.IntVarP(&workers, "workers", "w", 4, "Number of workers")
	f.Float64VarP(&precision, "precision", "p", 1e-6, "Target width of accepted boxes")
	f.StringSliceVar(&variants, "variants", []string{bnb.DefaultVariant}, "Worker variants ("+strings.Join(bnb.VariantNames(), ", ")+")")
	f.IntVar(&maxIterations, "max-iterations", 0, "Per-worker iteration limit, 0 for none")
	f.Float64Var(&gap, "gap", 0, "Stop once the screening value is within gap of the lowest bound, 0 to disable")
	f.BoolVar(&refine, "refine", true, "Use derivative refinement")
	f.IntVar(&localEvery, "local-search-every", 0, "Run a local search every n box generations, 0 to disable")
	f.IntVar(&showBoxes, "show-boxes", 5, "Number of optimum boxes to print")
	f.BoolVarP(&verbose, "verbose", "v", false, "Log solver progress")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

func runSolve(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	area, err := parseBounds(bounds, dim)
	if err != nil {
		return err
	}
	f, err := functions.Lookup(function, area.Dim())
	if err != nil {
		return err
	}

	templates := make([]bnb.Options, 0, len(variants))
	for _, name := range variants {
		o, err := bnb.Variant(name)
		if err != nil {
			return err
		}
		o.Refine = refine
		o.LocalSearchEvery = localEvery
		templates = append(templates, o)
	}

	e, err := parallel.NewExecutor(workers, logger, templates...)
	if err != nil {
		return err
	}
	if err := e.SetPrecision(precision); err != nil {
		return err
	}
	if err := e.SetProblem(f, area); err != nil {
		return err
	}
	e.SetStopCriterion(optimization.Limits(maxIterations, gap))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	err = e.Solve(ctx)
	elapsed := time.Since(start)
	if err != nil && ctx.Err() == nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err != nil {
		fmt.Fprintln(out, "interrupted, partial result:")
	}
	report(out, e, elapsed)
	return nil
}

func report(out io.Writer, e *parallel.Executor, elapsed time.Duration) {
	area := e.GetOptimumArea()
	stats := e.Stats()

	fmt.Fprintf(out, "function:     %s\n", function)
	fmt.Fprintf(out, "minimum:      %s\n", e.GetOptimumValue())
	fmt.Fprintf(out, "screening:    %g\n", e.GetLowBoundMaxValue())
	fmt.Fprintf(out, "optimum area: %d boxes\n", len(area))
	for i, b := range area {
		if i == showBoxes {
			fmt.Fprintf(out, "  ... %d more\n", len(area)-showBoxes)
			break
		}
		fmt.Fprintf(out, "  %s\n", b)
	}
	fmt.Fprintf(out, "evaluations:  %d (pruned %d, split %d, refined %d)\n",
		stats.Evaluations, stats.Pruned, stats.Split, stats.Refined)
	fmt.Fprintf(out, "donations:    %d\n", stats.Donations)
	fmt.Fprintf(out, "elapsed:      %s\n", elapsed.Round(time.Microsecond))
}
