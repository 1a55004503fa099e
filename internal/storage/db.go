// Package storage persists the ledger in SQLite. Queries runs over either the
// connection pool or an open transaction; the repository hands a
// transaction-scoped Queries to callers through WithTx so that a transaction
// write and its balance side effects commit or roll back together.
package storage

import (
	"context"
	"database/sql"
	"time"
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Timestamps are stored as RFC3339 text at UTC with second precision, dates
// as yyyy-mm-dd. Both orders correctly under SQLite's text comparison, which
// the range queries and the unique (account_id, recorded_until) pair rely on.
const (
	timeLayout = time.RFC3339
	dateLayout = "2006-01-02"
)

func fmtTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func fmtDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}
