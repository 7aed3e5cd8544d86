package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/xerrors"

	_ "modernc.org/sqlite"

	"go.nownabe.dev/dataload"
)

var sqliteTypes = sqlTypes{text: "TEXT", float: "REAL", timestamp: "TIMESTAMP"}

// SQLiteSink writes tables into a local SQLite file.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens the database at path, creating it when missing.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, xerrors.Errorf("failed to open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	return &SQLiteSink{db: db}, nil
}

// DB returns the underlying database.
func (s *SQLiteSink) DB() *sql.DB {
	return s.db
}

func (s *SQLiteSink) Replace(ctx context.Context, table string, schema *dataload.Table) error {
	if err := checkTableName(table); err != nil {
		return err
	}

	name := sqliteQuote(table)

	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return xerrors.Errorf("failed to drop %s: %w", table, err)
	}

	if _, err := s.db.ExecContext(ctx, createTable(name, schema, sqliteTypes, sqliteQuote)); err != nil {
		return xerrors.Errorf("failed to create %s: %w", table, err)
	}

	return nil
}

func (s *SQLiteSink) Append(ctx context.Context, table string, t *dataload.Table) (int64, error) {
	if err := checkTableName(table); err != nil {
		return 0, err
	}

	cols := make([]string, len(t.Names()))
	marks := make([]string, len(cols))
	for i, n := range t.Names() {
		cols[i] = sqliteQuote(n)
		marks[i] = "?"
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		sqliteQuote(table), strings.Join(cols, ", "), strings.Join(marks, ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, xerrors.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ps, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return 0, xerrors.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer ps.Close()

	for i := 0; i < t.Len(); i++ {
		if _, err := ps.ExecContext(ctx, rowValues(t, i)...); err != nil {
			return 0, xerrors.Errorf("failed to insert row %d into %s: %w", i, table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, xerrors.Errorf("failed to commit %s: %w", table, err)
	}

	return int64(t.Len()), nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func sqliteQuote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
