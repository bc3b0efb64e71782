package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/stochopt/internal/optimization/benchmarks"
)

var benchmarksCmd = &cobra.Command{
	Use:   "benchmarks",
	Short: "List the benchmark objectives",
	Args:  cobra.NoArgs,
	RunE:  runListBenchmarks,
}

func init() {
	rootCmd.AddCommand(benchmarksCmd)
}

func runListBenchmarks(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDIM\tBOUNDS\tSTART\tMINIMUM\tDESCRIPTION")
	for _, f := range benchmarks.All() {
		dim := fmt.Sprintf(">=%d", f.MinDim)
		if f.Dim > 0 {
			dim = fmt.Sprintf("%d", f.Dim)
		}
		fmt.Fprintf(w, "%s\t%s\t[%g, %g]\t%g\t%g\t%s\n",
			f.Name, dim, f.Lower, f.Upper, f.Start, f.Minimum, f.Description)
	}
	return w.Flush()
}
