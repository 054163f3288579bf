// Package app implements the apriori command line.
package app

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the apriori command tree writing results to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "apriori",
		Short: "Mine frequent itemsets and association rules from transactions",
		Long: `apriori mines frequent itemsets from a transaction file and derives
association rules ranked by confidence.

Input files hold one transaction per line, either as JSON arrays
(jsonl) or separated items (basket). Results are printed as JSON and
optionally stored in a SQLite database for later queries.

Examples:
  apriori mine --input baskets.csv --min-support 0.02 --min-confidence 0.6
  apriori mine --input orders.jsonl --config apriori.yaml --db runs.db
  apriori runs --db runs.db
  apriori rules --db runs.db --run 01HV... --top 10
  apriori itemsets --db runs.db --run 01HV... --size 2`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.AddCommand(newMineCmd())
	root.AddCommand(newRunsCmd())
	root.AddCommand(newRulesCmd())
	root.AddCommand(newItemsetsCmd())
	root.AddCommand(newDeleteCmd())
	return root
}

// Execute runs the command line.
func Execute() error {
	return NewRootCmd(nil).Execute()
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
