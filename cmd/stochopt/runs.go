package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/stochopt/internal/store"
)

var (
	runsStoreDir string
	runsShowJSON bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage stored optimization runs",
	Long: `Inspect and delete the runs saved by the server or by 'stochopt run --save'.
Only finished runs are stored.`,
}

var listRunsCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runListRuns,
}

var showRunCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowRun,
}

var deleteRunCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteRun,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(listRunsCmd)
	runsCmd.AddCommand(showRunCmd)
	runsCmd.AddCommand(deleteRunCmd)

	runsCmd.PersistentFlags().StringVar(&runsStoreDir, "store-dir", "", "Store directory (default STORE_DIR)")
	showRunCmd.Flags().BoolVar(&runsShowJSON, "json", false, "Print the full record as JSON")
}

func openStore() (*store.FSStore, error) {
	st, err := store.NewFSStore(storeDir(runsStoreDir), logger.Zap())
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return st, nil
}

func runListRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	infos, err := st.List()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tALGORITHM\tFUNCTION\tSTATE\tSUCCESS\tVALUE")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\t%g\n",
			info.ID,
			info.CreatedAt.Format("2006-01-02 15:04:05"),
			info.Algorithm,
			info.Function,
			info.State,
			info.Success,
			float64(info.Value),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nTotal runs: %d\n", len(infos))
	return nil
}

func runShowRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	record, err := st.Load(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if runsShowJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	}
	printRecord(out, record, 0, true)
	return nil
}

func runDeleteRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	if err := st.Delete(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
	return nil
}
