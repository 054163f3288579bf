package app

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/apriori/internal/dataset"
	"github.com/cognicore/apriori/pkg/apriori"
	"github.com/cognicore/apriori/pkg/apriori/config"
	"github.com/cognicore/apriori/pkg/apriori/intern"
	"github.com/cognicore/apriori/pkg/apriori/logging"
	"github.com/cognicore/apriori/pkg/apriori/miner"
	"github.com/cognicore/apriori/pkg/apriori/rules"
	"github.com/cognicore/apriori/pkg/apriori/store"
	"github.com/cognicore/apriori/pkg/apriori/store/sqlite"
)

type mineFlags struct {
	input      string
	format     string
	separator  string
	stopwords  []string
	configPath string

	minSupport    float64
	minConfidence float64
	maxLength     int
	workers       int
	strategy      string
	dbPath        string
	top           int
	logLevel      string
	jsonLogs      bool
}

// mineReport is the JSON document printed by mine.
type mineReport struct {
	RunID        string        `json:"run_id,omitempty"`
	Transactions int           `json:"transactions"`
	Items        int           `json:"items"`
	Threshold    int64         `json:"threshold"`
	Levels       []levelReport `json:"levels"`
	Itemsets     int           `json:"itemsets"`
	Rules        int           `json:"rules"`
	TopRules     []ruleReport  `json:"top_rules"`
	DurationMS   int64         `json:"duration_ms"`
}

type levelReport struct {
	Size       int `json:"size"`
	Candidates int `json:"candidates"`
	Pruned     int `json:"pruned"`
	Frequent   int `json:"frequent"`
}

type ruleReport struct {
	Antecedent []string `json:"antecedent"`
	Consequent []string `json:"consequent"`
	Confidence float64  `json:"confidence"`
	Lift       float64  `json:"lift"`
	Support    float64  `json:"support"`
}

func newMineCmd() *cobra.Command {
	f := &mineFlags{}
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "Mine frequent itemsets and rules from a transaction file",
		Long: `Mine reads transactions, finds every itemset whose support reaches
--min-support, and derives rules whose confidence reaches --min-confidence.

Flags override values from --config; unset flags keep the file value.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMine(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.input, "input", "i", "", "transaction file, or - for stdin")
	fl.StringVar(&f.format, "format", "", "input format: jsonl, basket or text (default: from extension)")
	fl.StringVar(&f.separator, "separator", dataset.DefaultSeparator, "item separator for basket input")
	fl.StringSliceVar(&f.stopwords, "stopwords", nil, "words dropped from text input")
	fl.StringVarP(&f.configPath, "config", "c", "", "YAML configuration file")
	fl.Float64Var(&f.minSupport, "min-support", 0, "minimum support as a fraction of transactions")
	fl.Float64Var(&f.minConfidence, "min-confidence", 0, "minimum rule confidence")
	fl.IntVar(&f.maxLength, "max-length", 0, "largest itemset size to mine")
	fl.IntVar(&f.workers, "workers", 0, "goroutines used for counting and rule generation")
	fl.StringVar(&f.strategy, "strategy", "", "support counting strategy: scan or bitmap")
	fl.StringVar(&f.dbPath, "db", "", "SQLite database to store the run in")
	fl.IntVar(&f.top, "top", 0, "number of rules to print")
	fl.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fl.BoolVar(&f.jsonLogs, "json-logs", false, "emit JSON logs")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func (f *mineFlags) overrides(cmd *cobra.Command) config.Overrides {
	var o config.Overrides
	changed := cmd.Flags().Changed
	if changed("min-support") {
		o.MinSupport = &f.minSupport
	}
	if changed("min-confidence") {
		o.MinConfidence = &f.minConfidence
	}
	if changed("max-length") {
		o.MaxLength = &f.maxLength
	}
	if changed("workers") {
		o.Workers = &f.workers
	}
	if changed("strategy") {
		o.Strategy = &f.strategy
	}
	if changed("db") {
		o.DBPath = &f.dbPath
	}
	if changed("top") {
		o.TopRules = &f.top
	}
	if changed("log-level") {
		o.LogLevel = &f.logLevel
	}
	if changed("json-logs") {
		o.JSONLogs = &f.jsonLogs
	}
	return o
}

func runMine(cmd *cobra.Command, f *mineFlags) error {
	ctx := cmd.Context()
	start := time.Now()

	loader := config.Loader{ConfigPath: f.configPath, Overrides: f.overrides(cmd)}
	comps, err := loader.Load()
	if err != nil {
		return err
	}
	log := comps.Logger
	defer log.Sync()

	raw, err := dataset.Load(f.input, dataset.Options{
		Format:    dataset.Format(f.format),
		Separator: f.separator,
		Stopwords: f.stopwords,
		Logger:    log,
	})
	if err != nil {
		return err
	}

	txs, inv, _ := intern.Intern(raw)
	log.Info("transactions loaded",
		zap.String("input", f.input),
		zap.Int(logging.FieldTransactions, len(txs)),
		zap.Int("items", inv.Len()),
	)

	res, err := miner.Mine(ctx, txs, comps.MinerOptions)
	if err != nil {
		return errors.Wrap(err, "mine")
	}

	rs, err := rules.Generate(comps.MinConfidence, res.Itemsets, res.Transactions,
		rules.WithWorkers(comps.MinerOptions.Workers),
		rules.WithLogger(log),
	)
	if err != nil {
		return errors.Wrap(err, "generate rules")
	}

	tokenRules, err := apriori.ConvertRules(rs, inv)
	if err != nil {
		return err
	}

	report := mineReport{
		Transactions: res.Transactions,
		Items:        inv.Len(),
		Threshold:    res.Threshold,
		Itemsets:     res.Itemsets.Len(),
		Rules:        len(tokenRules),
	}
	for _, l := range res.Levels {
		report.Levels = append(report.Levels, levelReport(l))
	}

	if db := comps.Config.Output.DBPath; db != "" {
		sets, err := apriori.DecodeItemsets(res.Itemsets, inv)
		if err != nil {
			return err
		}
		report.RunID, err = saveRun(cmd, db, comps, res.Transactions, sets, tokenRules)
		if err != nil {
			return err
		}
		log.Info("run stored", zap.String(logging.FieldRunID, report.RunID), zap.String("db", db))
	}

	top := tokenRules
	if n := comps.Config.Output.TopRules; n > 0 && len(top) > n {
		top = top[:n]
	}
	report.TopRules = make([]ruleReport, len(top))
	for i, r := range top {
		report.TopRules[i] = ruleReport(r)
	}
	report.DurationMS = time.Since(start).Milliseconds()

	log.Info("mining complete",
		zap.Int(logging.FieldFrequent, report.Itemsets),
		zap.Int(logging.FieldRules, report.Rules),
		zap.Int64(logging.FieldDurationMS, report.DurationMS),
	)
	return writeJSON(cmd, report)
}

func saveRun(cmd *cobra.Command, dbPath string, comps *config.Components, n int, sets []apriori.Itemset[string], rs []apriori.Rule[string]) (string, error) {
	st, err := sqlite.OpenSQLite(cmd.Context(), dbPath)
	if err != nil {
		return "", err
	}
	defer st.Close()

	params := store.Params{
		MinSupport:    comps.Config.Mining.MinSupport,
		MinConfidence: comps.MinConfidence,
		MaxLength:     comps.MinerOptions.MaxLength,
		Strategy:      comps.MinerOptions.Strategy.String(),
	}
	id, err := st.SaveRun(cmd.Context(), store.NewRun(params, n, sets, rs))
	if err != nil {
		return "", errors.Wrapf(err, "save run to %s", dbPath)
	}
	return id, nil
}
