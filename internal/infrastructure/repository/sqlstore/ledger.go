package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
)

const schemaLockKey = int64(2026101401)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS classifications (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL DEFAULT '',
	text TEXT,
	category TEXT,
	created_at TIMESTAMP NOT NULL,
	identity TEXT NOT NULL,
	primary_prediction TEXT,
	secondary_prediction TEXT,
	ground_truth TEXT,
	primary_confidence DOUBLE PRECISION
);

CREATE INDEX IF NOT EXISTS idx_classifications_created_at ON classifications(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_classifications_identity ON classifications(identity);
CREATE INDEX IF NOT EXISTS idx_classifications_category ON classifications(category);
`

const recordColumns = `id, filename, text, category, created_at, identity, primary_prediction, secondary_prediction, ground_truth, primary_confidence`

// LedgerRepository is the append-only classification ledger. Rows are
// inserted once and never updated. The schema is created on first use and
// retried on every call until it succeeds.
type LedgerRepository struct {
	db      *sql.DB
	dialect Dialect

	schemaMu    sync.Mutex
	schemaReady bool
}

func NewLedgerRepository(db *sql.DB, dialect Dialect) *LedgerRepository {
	return &LedgerRepository{db: db, dialect: dialect}
}

// EnsureSchema creates the table and indexes if missing. Once it succeeds
// later calls are no-ops.
func (r *LedgerRepository) EnsureSchema(ctx context.Context) error {
	r.schemaMu.Lock()
	defer r.schemaMu.Unlock()
	if r.schemaReady {
		return nil
	}
	if err := r.createSchema(ctx); err != nil {
		return err
	}
	r.schemaReady = true
	return nil
}

func (r *LedgerRepository) createSchema(ctx context.Context) error {
	if r.dialect == SQLite {
		if _, err := r.db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
			return fmt.Errorf("sqlite pragma: %w", err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if r.dialect.schemaLock {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
			return fmt.Errorf("acquire schema lock: %w", err)
		}
	}

	for _, stmt := range splitStatements(schemaDDL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema ddl: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *LedgerRepository) Append(ctx context.Context, rec domain.ClassificationRecord) error {
	if rec.ID == "" {
		return domain.WrapError(domain.ErrValidation, "ledger append", fmt.Errorf("record id is required"))
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if err := r.EnsureSchema(ctx); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, r.dialect.rebind(`
INSERT INTO classifications (`+recordColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?)
`),
		rec.ID, rec.Filename, nullString(rec.Text), nullString(rec.Category), createdAt.UTC(), rec.Identity,
		nullString(rec.PrimaryPrediction), nullString(rec.SecondaryPrediction), nullString(rec.GroundTruth),
		nullFloat(rec.PrimaryConfidence),
	)
	if err != nil {
		return fmt.Errorf("insert classification: %w", err)
	}
	return nil
}

// Query returns records newest first.
func (r *LedgerRepository) Query(ctx context.Context, filter domain.LedgerFilter) ([]domain.ClassificationRecord, error) {
	if err := r.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	where, args := buildWhere(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, max(filter.Offset, 0))

	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(`
SELECT `+recordColumns+`
FROM classifications`+where+`
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?
`), args...)
	if err != nil {
		return nil, fmt.Errorf("query classifications: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ClassificationRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classifications: %w", err)
	}
	return out, nil
}

// AllLabeledPairs returns every row with a ground truth; a missing primary
// prediction comes back as "".
func (r *LedgerRepository) AllLabeledPairs(ctx context.Context) ([]domain.LabeledPair, error) {
	if err := r.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT ground_truth, COALESCE(primary_prediction, '')
FROM classifications
WHERE ground_truth IS NOT NULL
ORDER BY created_at, id
`)
	if err != nil {
		return nil, fmt.Errorf("query labeled pairs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.LabeledPair, 0)
	for rows.Next() {
		var p domain.LabeledPair
		if err := rows.Scan(&p.GroundTruth, &p.PrimaryPrediction); err != nil {
			return nil, fmt.Errorf("scan labeled pair: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate labeled pairs: %w", err)
	}
	return out, nil
}

func (r *LedgerRepository) LabeledSamples(ctx context.Context) ([]domain.LabeledSample, error) {
	if err := r.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT COALESCE(text, ''), ground_truth, COALESCE(primary_prediction, '')
FROM classifications
WHERE ground_truth IS NOT NULL
ORDER BY created_at, id
`)
	if err != nil {
		return nil, fmt.Errorf("query labeled samples: %w", err)
	}
	defer rows.Close()

	out := make([]domain.LabeledSample, 0)
	for rows.Next() {
		var s domain.LabeledSample
		if err := rows.Scan(&s.Text, &s.GroundTruth, &s.PrimaryPrediction); err != nil {
			return nil, fmt.Errorf("scan labeled sample: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate labeled samples: %w", err)
	}
	return out, nil
}

func (r *LedgerRepository) Summary(ctx context.Context, recent int) (domain.LedgerSummary, error) {
	var summary domain.LedgerSummary
	if err := r.EnsureSchema(ctx); err != nil {
		return summary, err
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM classifications`).Scan(&summary.TotalRecords); err != nil {
		return summary, fmt.Errorf("count classifications: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, `
SELECT COALESCE(CAST(AVG(LENGTH(text)) AS DOUBLE PRECISION), 0)
FROM classifications
WHERE text IS NOT NULL
`).Scan(&summary.AverageTextLength); err != nil {
		return summary, fmt.Errorf("average text length: %w", err)
	}

	var err error
	if summary.PerCategory, err = r.countBy(ctx, "category"); err != nil {
		return summary, err
	}
	perIdentity, err := r.countBy(ctx, "identity")
	if err != nil {
		return summary, err
	}
	summary.PerIdentity = make([]domain.IdentityCount, 0, len(perIdentity))
	for _, c := range perIdentity {
		summary.PerIdentity = append(summary.PerIdentity, domain.IdentityCount{Identity: c.Category, Count: c.Count})
	}

	if recent <= 0 {
		summary.Recent = []domain.ClassificationRecord{}
		return summary, nil
	}
	if summary.Recent, err = r.Query(ctx, domain.LedgerFilter{Limit: recent}); err != nil {
		return summary, err
	}
	return summary, nil
}

// countBy groups on a fixed column name; callers never pass user input.
func (r *LedgerRepository) countBy(ctx context.Context, column string) ([]domain.CategoryCount, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+column+`, COUNT(*)
FROM classifications
WHERE `+column+` IS NOT NULL
GROUP BY `+column+`
ORDER BY COUNT(*) DESC, `+column+`
`)
	if err != nil {
		return nil, fmt.Errorf("count by %s: %w", column, err)
	}
	defer rows.Close()

	out := make([]domain.CategoryCount, 0)
	for rows.Next() {
		var c domain.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("scan count by %s: %w", column, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate count by %s: %w", column, err)
	}
	return out, nil
}

func buildWhere(filter domain.LedgerFilter) (string, []any) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 6)
	if filter.Identity != "" {
		clauses = append(clauses, "identity = ?")
		args = append(args, filter.Identity)
	}
	if filter.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if filter.Until != nil {
		clauses = append(clauses, "created_at < ?")
		args = append(args, filter.Until.UTC())
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "\nWHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.ClassificationRecord, error) {
	var (
		rec        domain.ClassificationRecord
		text       sql.NullString
		category   sql.NullString
		primary    sql.NullString
		secondary  sql.NullString
		truth      sql.NullString
		confidence sql.NullFloat64
	)
	err := row.Scan(
		&rec.ID, &rec.Filename, &text, &category, &rec.CreatedAt, &rec.Identity,
		&primary, &secondary, &truth, &confidence,
	)
	if err != nil {
		return rec, fmt.Errorf("scan classification: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.Text = stringPtr(text)
	rec.Category = stringPtr(category)
	rec.PrimaryPrediction = stringPtr(primary)
	rec.SecondaryPrediction = stringPtr(secondary)
	rec.GroundTruth = stringPtr(truth)
	if confidence.Valid {
		rec.PrimaryConfidence = domain.Float64Ptr(confidence.Float64)
	}
	return rec, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return domain.StringPtr(v.String)
}

func splitStatements(ddl string) []string {
	parts := strings.Split(ddl, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
