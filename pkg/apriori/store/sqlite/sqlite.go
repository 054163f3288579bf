package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"

	"github.com/cognicore/apriori/pkg/apriori/internalerr"
	"github.com/cognicore/apriori/pkg/apriori/store"
)

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db  *sql.DB
	ids *store.IDSource
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the
// schema if needed.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "open %s", path), internalerr.ErrStoreUnavailable)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Mark(err, internalerr.ErrStoreUnavailable)
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, errors.Mark(err, internalerr.ErrStoreUnavailable)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db, ids: store.NewIDSource()}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	min_support REAL NOT NULL,
	min_confidence REAL NOT NULL,
	max_length INTEGER NOT NULL,
	strategy TEXT,
	transactions INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS itemsets (
	run_id TEXT NOT NULL,
	ord INTEGER NOT NULL,
	size INTEGER NOT NULL,
	items TEXT NOT NULL,
	count INTEGER NOT NULL,
	PRIMARY KEY(run_id, ord),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_itemsets_size ON itemsets(run_id, size);

CREATE TABLE IF NOT EXISTS rules (
	run_id TEXT NOT NULL,
	ord INTEGER NOT NULL,
	antecedent TEXT NOT NULL,
	consequent TEXT NOT NULL,
	confidence REAL NOT NULL,
	lift REAL NOT NULL,
	support REAL NOT NULL,
	PRIMARY KEY(run_id, ord),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_rules_confidence ON rules(run_id, confidence DESC);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveRun inserts a run with all of its itemsets and rules in one transaction
func (s *sqliteStore) SaveRun(ctx context.Context, r store.Run) (string, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.ID == "" {
		r.ID = s.ids.Next(r.CreatedAt)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	const stmt = `
INSERT INTO runs (id, created_at, min_support, min_confidence, max_length, strategy, transactions)
VALUES (?, ?, ?, ?, ?, ?, ?);
`
	_, err = tx.ExecContext(ctx, stmt,
		r.ID,
		r.CreatedAt.UTC().Format(timeLayout),
		r.Params.MinSupport,
		r.Params.MinConfidence,
		r.Params.MaxLength,
		r.Params.Strategy,
		r.Transactions,
	)
	if err != nil {
		return "", errors.Wrapf(err, "insert run %s", r.ID)
	}

	if err := insertItemsets(ctx, tx, r.ID, r.Itemsets); err != nil {
		return "", err
	}
	if err := insertRules(ctx, tx, r.ID, r.Rules); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return r.ID, nil
}

func insertItemsets(ctx context.Context, tx *sql.Tx, runID string, itemsets []store.Itemset) error {
	if len(itemsets) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO itemsets (run_id, ord, size, items, count) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, is := range itemsets {
		items, err := json.Marshal(is.Items)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, runID, i, len(is.Items), string(items), is.Count); err != nil {
			return err
		}
	}
	return nil
}

func insertRules(ctx context.Context, tx *sql.Tx, runID string, rules []store.Rule) error {
	if len(rules) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO rules (run_id, ord, antecedent, consequent, confidence, lift, support)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, r := range rules {
		ante, err := json.Marshal(r.Antecedent)
		if err != nil {
			return err
		}
		cons, err := json.Marshal(r.Consequent)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, runID, i, string(ante), string(cons), r.Confidence, r.Lift, r.Support); err != nil {
			return err
		}
	}
	return nil
}

// GetRun loads a run with all of its itemsets and rules
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, bool, error) {
	summary, found, err := s.loadSummary(ctx, id)
	if err != nil || !found {
		return store.Run{}, found, err
	}

	run := store.Run{
		ID:           summary.ID,
		CreatedAt:    summary.CreatedAt,
		Params:       summary.Params,
		Transactions: summary.Transactions,
	}

	run.Itemsets, err = s.queryItemsets(ctx, `SELECT items, count FROM itemsets WHERE run_id = ? ORDER BY ord`, id)
	if err != nil {
		return store.Run{}, false, err
	}
	run.Rules, err = s.queryRules(ctx, `
SELECT antecedent, consequent, confidence, lift, support
FROM rules WHERE run_id = ? ORDER BY ord`, id)
	if err != nil {
		return store.Run{}, false, err
	}
	return run, true, nil
}

const summaryColumns = `
SELECT r.id, r.created_at, r.min_support, r.min_confidence, r.max_length, r.strategy, r.transactions,
	(SELECT COUNT(*) FROM itemsets i WHERE i.run_id = r.id),
	(SELECT COUNT(*) FROM rules u WHERE u.run_id = r.id)
FROM runs r`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (store.RunSummary, error) {
	var (
		sum      store.RunSummary
		created  string
		strategy sql.NullString
	)
	err := row.Scan(
		&sum.ID,
		&created,
		&sum.Params.MinSupport,
		&sum.Params.MinConfidence,
		&sum.Params.MaxLength,
		&strategy,
		&sum.Transactions,
		&sum.Itemsets,
		&sum.Rules,
	)
	if err != nil {
		return store.RunSummary{}, err
	}
	sum.Params.Strategy = strategy.String
	sum.CreatedAt, err = time.Parse(timeLayout, created)
	if err != nil {
		return store.RunSummary{}, errors.Wrapf(err, "run %s created_at", sum.ID)
	}
	return sum, nil
}

func (s *sqliteStore) loadSummary(ctx context.Context, id string) (store.RunSummary, bool, error) {
	row := s.db.QueryRowContext(ctx, summaryColumns+` WHERE r.id = ?`, id)
	sum, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.RunSummary{}, false, nil
	}
	if err != nil {
		return store.RunSummary{}, false, err
	}
	return sum, true, nil
}

// ListRuns returns run summaries, newest first
func (s *sqliteStore) ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, summaryColumns+` ORDER BY r.created_at DESC, r.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.RunSummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DeleteRun removes a run; itemsets and rules cascade
func (s *sqliteStore) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(internalerr.ErrNotFound, "run %s", id)
	}
	return nil
}

// TopRules returns the k highest-confidence rules of a run
func (s *sqliteStore) TopRules(ctx context.Context, runID string, k int) ([]store.Rule, error) {
	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = -1
	}
	return s.queryRules(ctx, `
SELECT antecedent, consequent, confidence, lift, support
FROM rules WHERE run_id = ?
ORDER BY confidence DESC, ord ASC
LIMIT ?`, runID, k)
}

// ItemsetsBySize returns a run's frequent itemsets of one size
func (s *sqliteStore) ItemsetsBySize(ctx context.Context, runID string, size int) ([]store.Itemset, error) {
	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.queryItemsets(ctx, `SELECT items, count FROM itemsets WHERE run_id = ? AND size = ? ORDER BY ord`, runID, size)
}

func (s *sqliteStore) requireRun(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(internalerr.ErrNotFound, "run %s", id)
	}
	return err
}

func (s *sqliteStore) queryItemsets(ctx context.Context, query string, args ...any) ([]store.Itemset, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Itemset
	for rows.Next() {
		var (
			raw string
			is  store.Itemset
		)
		if err := rows.Scan(&raw, &is.Count); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &is.Items); err != nil {
			return nil, err
		}
		out = append(out, is)
	}
	return out, rows.Err()
}

func (s *sqliteStore) queryRules(ctx context.Context, query string, args ...any) ([]store.Rule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Rule
	for rows.Next() {
		var (
			ante, cons string
			r          store.Rule
		)
		if err := rows.Scan(&ante, &cons, &r.Confidence, &r.Lift, &r.Support); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ante), &r.Antecedent); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(cons), &r.Consequent); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
