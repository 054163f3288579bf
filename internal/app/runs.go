package app

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/cognicore/apriori/pkg/apriori/store"
	"github.com/cognicore/apriori/pkg/apriori/store/sqlite"
)

type runReport struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	MinSupport    float64   `json:"min_support"`
	MinConfidence float64   `json:"min_confidence"`
	MaxLength     int       `json:"max_length"`
	Strategy      string    `json:"strategy"`
	Transactions  int       `json:"transactions"`
	Itemsets      int       `json:"itemsets"`
	Rules         int       `json:"rules"`
}

type itemsetReport struct {
	Items []string `json:"items"`
	Count int64    `json:"count"`
}

func withStore(cmd *cobra.Command, dbPath string, fn func(store.Store) error) error {
	st, err := sqlite.OpenSQLite(cmd.Context(), dbPath)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func addStoreFlags(cmd *cobra.Command, dbPath, runID *string) {
	cmd.Flags().StringVar(dbPath, "db", "", "SQLite database holding stored runs")
	_ = cmd.MarkFlagRequired("db")
	if runID != nil {
		cmd.Flags().StringVar(runID, "run", "", "run ID")
		_ = cmd.MarkFlagRequired("run")
	}
}

func newRunsCmd() *cobra.Command {
	var (
		dbPath string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored mining runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, dbPath, func(st store.Store) error {
				runs, err := st.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := make([]runReport, len(runs))
				for i, r := range runs {
					out[i] = runReport{
						ID:            r.ID,
						CreatedAt:     r.CreatedAt,
						MinSupport:    r.Params.MinSupport,
						MinConfidence: r.Params.MinConfidence,
						MaxLength:     r.Params.MaxLength,
						Strategy:      r.Params.Strategy,
						Transactions:  r.Transactions,
						Itemsets:      r.Itemsets,
						Rules:         r.Rules,
					}
				}
				return writeJSON(cmd, out)
			})
		},
	}
	addStoreFlags(cmd, &dbPath, nil)
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list (0 for all)")
	return cmd
}

func newRulesCmd() *cobra.Command {
	var (
		dbPath, runID string
		top           int
	)
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Show the highest-confidence rules of a stored run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, dbPath, func(st store.Store) error {
				rs, err := st.TopRules(cmd.Context(), runID, top)
				if err != nil {
					return err
				}
				out := make([]ruleReport, len(rs))
				for i, r := range rs {
					out[i] = ruleReport(r)
				}
				return writeJSON(cmd, out)
			})
		},
	}
	addStoreFlags(cmd, &dbPath, &runID)
	cmd.Flags().IntVar(&top, "top", 20, "number of rules to show (0 for all)")
	return cmd
}

func newItemsetsCmd() *cobra.Command {
	var (
		dbPath, runID string
		size          int
	)
	cmd := &cobra.Command{
		Use:   "itemsets",
		Short: "Show the frequent itemsets of one size from a stored run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, dbPath, func(st store.Store) error {
				sets, err := st.ItemsetsBySize(cmd.Context(), runID, size)
				if err != nil {
					return err
				}
				out := make([]itemsetReport, len(sets))
				for i, s := range sets {
					out[i] = itemsetReport(s)
				}
				return writeJSON(cmd, out)
			})
		},
	}
	addStoreFlags(cmd, &dbPath, &runID)
	cmd.Flags().IntVar(&size, "size", 1, "itemset size")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, dbPath, func(st store.Store) error {
				return st.DeleteRun(cmd.Context(), args[0])
			})
		},
	}
	addStoreFlags(cmd, &dbPath, nil)
	return cmd
}
