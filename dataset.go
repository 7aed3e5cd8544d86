package dataload

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding"
	"golang.org/x/xerrors"
)

// Dataset defines how to fetch, normalize and load one source feed.
type Dataset struct {
	// Name is the dataset type, e.g. "solar". It prefixes artifact file names.
	Name string

	// URL returns the download URL for a period such as "2023" or "2019-01".
	URL func(period string) string

	Encoding encoding.Encoding
	Parser   Parser

	// Retries is the number of extra fetch attempts after a failure.
	Retries int

	DropColumns []string

	// Relabel renames all remaining columns by position. Prefer Rename.
	Relabel []string
	Rename  map[string]string

	// DateTimeColumns names the date and time text columns, in that order,
	// combined into the "timestamp" column.
	DateTimeColumns []string

	// Transform runs after timestamp synthesis and before type coercion.
	Transform func(context.Context, *Table) error

	NumericColumns  []string
	RequiredColumns []string

	// Order is the final column order. Columns not listed are left out.
	Order []string

	// Formats are the artifact formats written locally. Defaults to Parquet and CSV.
	Formats []Format

	// ObjectPrefix is prepended to artifact file names in the bucket.
	ObjectPrefix string

	// Table is the warehouse destination. Nothing is loaded when it is empty.
	Table string
}

func (d *Dataset) validate() error {
	switch {
	case d.Name == "":
		return xerrors.New("dataset name is required")
	case d.URL == nil:
		return xerrors.Errorf("dataset %s: url is required", d.Name)
	case d.Parser == nil:
		return xerrors.Errorf("dataset %s: parser is required", d.Name)
	case len(d.DateTimeColumns) != 0 && len(d.DateTimeColumns) != 2:
		return xerrors.Errorf("dataset %s: date time columns must be [date, time]", d.Name)
	case len(d.Relabel) != 0 && len(d.Rename) != 0:
		return xerrors.Errorf("dataset %s: relabel and rename are exclusive", d.Name)
	}
	return nil
}

func (d *Dataset) formats() []Format {
	if len(d.Formats) == 0 {
		return []Format{FormatParquet, FormatCSV}
	}
	return d.Formats
}

// Normalize runs drop, rename, timestamp synthesis, transform, type
// coercion, null filtering and reordering on t. Every step but the last
// mutates t; the returned table holds the final column order.
func (d *Dataset) Normalize(ctx context.Context, t *Table) (*Table, error) {
	l := log.Ctx(ctx)

	if len(d.DropColumns) > 0 {
		l.Info().Strs("columns", d.DropColumns).Msg("Start Drop Columns")
		if err := t.Drop(d.DropColumns...); err != nil {
			return nil, err
		}
	}

	if len(d.Relabel) > 0 {
		l.Info().Strs("columns", d.Relabel).Msg("Start Rename Columns")
		if err := t.Relabel(d.Relabel...); err != nil {
			return nil, err
		}
	}

	if len(d.Rename) > 0 {
		l.Info().Interface("columns", d.Rename).Msg("Start Rename Columns")
		if err := t.Rename(d.Rename); err != nil {
			return nil, err
		}
	}

	if len(d.DateTimeColumns) == 2 {
		l.Info().Strs("columns", d.DateTimeColumns).Msg("Start Generate Timestamp")
		if err := t.SynthesizeTimestamp(d.DateTimeColumns[0], d.DateTimeColumns[1]); err != nil {
			return nil, err
		}
	}

	if d.Transform != nil {
		if err := d.Transform(ctx, t); err != nil {
			return nil, xerrors.Errorf("failed to transform: %w", err)
		}
	}

	if len(d.NumericColumns) > 0 {
		l.Info().Strs("columns", d.NumericColumns).Msg("Start Change Type of Columns")
		if err := t.CoerceFloat(d.NumericColumns...); err != nil {
			return nil, err
		}
	}

	if len(d.RequiredColumns) > 0 {
		before := t.Len()
		if err := t.DropNulls(d.RequiredColumns...); err != nil {
			return nil, err
		}
		l.Info().Strs("columns", d.RequiredColumns).Msgf("Drop NULLs removed %d rows", before-t.Len())
	}

	if len(d.Order) == 0 {
		return t, nil
	}

	l.Info().Strs("columns", d.Order).Msg("Start Reorder Columns")
	return t.Select(d.Order...)
}
