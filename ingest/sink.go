// Package ingest loads large delimited files into relational databases in batches.
package ingest

import (
	"context"
	"regexp"

	"golang.org/x/xerrors"

	"go.nownabe.dev/dataload"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Sink is a relational database tables are written to.
type Sink interface {
	// Replace drops table if it exists and creates it with the columns of schema.
	Replace(ctx context.Context, table string, schema *dataload.Table) error

	// Append inserts every row of t into table and returns the inserted row count.
	Append(ctx context.Context, table string, t *dataload.Table) (int64, error)

	Close() error
}

func checkTableName(table string) error {
	if !validTableName.MatchString(table) {
		return xerrors.Errorf("invalid table name %q", table)
	}
	return nil
}

type sqlTypes struct {
	text, float, timestamp string
}

func (s sqlTypes) of(k dataload.Kind) string {
	switch k {
	case dataload.KindFloat:
		return s.float
	case dataload.KindTimestamp:
		return s.timestamp
	default:
		return s.text
	}
}

func rowValues(t *dataload.Table, i int) []any {
	cols := t.Columns()
	row := make([]any, len(cols))
	for j, c := range cols {
		row[j] = c.Value(i)
	}
	return row
}
