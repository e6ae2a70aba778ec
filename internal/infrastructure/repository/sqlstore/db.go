package sqlstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
)

// Dialect captures the few differences between the supported engines.
type Dialect struct {
	Name       string
	driverName string
	dollarArgs bool
	schemaLock bool
}

var (
	Postgres = Dialect{Name: "postgres", driverName: "pgx", dollarArgs: true, schemaLock: true}
	SQLite   = Dialect{Name: "sqlite", driverName: "sqlite"}
)

func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return Dialect{}, domain.WrapError(domain.ErrFatalStartup, "ledger driver", fmt.Errorf("unsupported driver %q", name))
	}
}

// rebind rewrites "?" placeholders to "$n" for dialects that need it.
func (d Dialect) rebind(query string) string {
	if !d.dollarArgs {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// OpenDB configures the connection pool without dialing; the first query
// connects. Reachability is surfaced by the repository on use.
func OpenDB(dialect Dialect, dsn string) (*sql.DB, error) {
	if dialect == SQLite && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
	}

	db, err := sql.Open(dialect.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	if dialect == SQLite {
		// One writer at a time; also keeps a :memory: database on a single connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}
