package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/xerrors"

	"go.nownabe.dev/dataload"
)

var postgresTypes = sqlTypes{text: "TEXT", float: "DOUBLE PRECISION", timestamp: "TIMESTAMP"}

// PostgresConfig identifies the database to connect to.
type PostgresConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	DB       string
}

// DSN returns the connection URL of c.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", c.User, c.Password, c.Host, c.Port, c.DB)
}

type pgxPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error)
	Close()
}

// PostgresSink writes tables with COPY.
type PostgresSink struct {
	pool pgxPool
}

// NewPostgresSink connects to the database.
func NewPostgresSink(ctx context.Context, cfg PostgresConfig) (*PostgresSink, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, xerrors.Errorf("failed to parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, xerrors.Errorf("failed to connect postgres: %w", err)
	}

	return &PostgresSink{pool: pool}, nil
}

// NewPostgresSinkWithPool builds a sink on an existing pool.
func NewPostgresSinkWithPool(pool pgxPool) (*PostgresSink, error) {
	if pool == nil {
		return nil, xerrors.New("pool is required")
	}
	return &PostgresSink{pool: pool}, nil
}

func (s *PostgresSink) Replace(ctx context.Context, table string, schema *dataload.Table) error {
	if err := checkTableName(table); err != nil {
		return err
	}

	name := pgx.Identifier{table}.Sanitize()

	if _, err := s.pool.Exec(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return xerrors.Errorf("failed to drop %s: %w", table, err)
	}

	if _, err := s.pool.Exec(ctx, createTable(name, schema, postgresTypes, pgxQuote)); err != nil {
		return xerrors.Errorf("failed to create %s: %w", table, err)
	}

	return nil
}

func (s *PostgresSink) Append(ctx context.Context, table string, t *dataload.Table) (int64, error) {
	if err := checkTableName(table); err != nil {
		return 0, err
	}

	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{table}, t.Names(),
		pgx.CopyFromSlice(t.Len(), func(i int) ([]any, error) {
			return rowValues(t, i), nil
		}))
	if err != nil {
		return n, xerrors.Errorf("failed to copy into %s: %w", table, err)
	}

	return n, nil
}

func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}

func pgxQuote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func createTable(name string, schema *dataload.Table, types sqlTypes, quote func(string) string) string {
	defs := make([]string, 0, len(schema.Columns()))
	for _, c := range schema.Columns() {
		defs = append(defs, quote(c.Name)+" "+types.of(c.Kind))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(defs, ", "))
}
