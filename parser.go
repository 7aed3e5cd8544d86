package dataload

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// Parser parses a downloaded file into a table.
type Parser func(context.Context, io.Reader) (*Table, error)

// CSVOptions configures CSVParser.
type CSVOptions struct {
	// Comma is the field delimiter. Defaults to ','.
	Comma rune

	// SkipLeadingLines is the number of raw lines discarded before the header.
	SkipLeadingLines int

	// NAValues are cell values treated as missing in addition to the empty string.
	NAValues []string

	// InferTypes turns columns whose values all parse as numbers into float columns.
	InferTypes bool
}

// CSVParser provides a parser for delimited text with a header line.
// Header cells that are blank are named "Unnamed: N" by their zero-based position.
func CSVParser(opts CSVOptions) Parser {
	return func(ctx context.Context, r io.Reader) (*Table, error) {
		cr, err := opts.reader(r)
		if err != nil {
			return nil, err
		}

		header, err := cr.Read()
		if err != nil {
			return nil, xerrors.Errorf("failed to read header: %w", err)
		}
		names := headerNames(header)

		records, err := cr.ReadAll()
		if err != nil {
			return nil, xerrors.Errorf("failed to read records: %w", err)
		}

		return opts.build(names, records)
	}
}

func (o CSVOptions) reader(r io.Reader) (*csv.Reader, error) {
	br := bufio.NewReader(r)
	for i := 0; i < o.SkipLeadingLines; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			return nil, xerrors.Errorf("failed to skip line %d: %w", i+1, err)
		}
	}

	cr := csv.NewReader(br)
	if o.Comma != 0 {
		cr.Comma = o.Comma
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	return cr, nil
}

func (o CSVOptions) build(names []string, records [][]string) (*Table, error) {
	na := make(map[string]bool, len(o.NAValues)+1)
	na[""] = true
	for _, v := range o.NAValues {
		na[v] = true
	}

	cols := make([]*Column, len(names))
	for j, n := range names {
		cols[j] = NewColumn(n, KindText, len(records))
	}

	for i, rec := range records {
		if len(rec) > len(names) {
			return nil, xerrors.Errorf("line %d has %d fields, header has %d", i+1, len(rec), len(names))
		}
		for j := range names {
			if j >= len(rec) {
				continue
			}
			v := strings.TrimSpace(rec[j])
			if na[v] {
				continue
			}
			cols[j].SetText(i, v)
		}
	}

	if o.InferTypes {
		for j, c := range cols {
			cols[j] = inferFloat(c)
		}
	}

	t, err := NewTable(cols...)
	if err != nil {
		return nil, xerrors.Errorf("failed to build table: %w", err)
	}

	return t, nil
}

func headerNames(header []string) []string {
	names := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		names[i] = h
	}
	return names
}

// inferFloat returns a float copy of c when every present value is numeric.
func inferFloat(c *Column) *Column {
	out := NewColumn(c.Name, KindFloat, c.Len())
	for i := 0; i < c.Len(); i++ {
		if c.Missing(i) {
			continue
		}
		v, err := strconv.ParseFloat(c.Text[i], 64)
		if err != nil {
			return c
		}
		out.SetFloat(i, v)
	}
	return out
}

// CSVChunker reads a delimited file with a header in fixed-size batches.
type CSVChunker struct {
	opts  CSVOptions
	size  int
	cr    *csv.Reader
	names []string
	kinds map[string]Kind
}

// NewCSVChunker reads the header of r and prepares batches of size rows.
// Column kinds are inferred from the first batch and enforced on the others.
func NewCSVChunker(r io.Reader, opts CSVOptions, size int) (*CSVChunker, error) {
	if size <= 0 {
		return nil, xerrors.Errorf("invalid batch size %d", size)
	}

	cr, err := opts.reader(r)
	if err != nil {
		return nil, err
	}

	header, err := cr.Read()
	if err != nil {
		return nil, xerrors.Errorf("failed to read header: %w", err)
	}

	return &CSVChunker{opts: opts, size: size, cr: cr, names: headerNames(header)}, nil
}

// Next returns the next batch, or io.EOF when the input is exhausted.
func (c *CSVChunker) Next(ctx context.Context) (*Table, error) {
	records := make([][]string, 0, c.size)
	for len(records) < c.size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := c.cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, xerrors.Errorf("failed to read record: %w", err)
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, io.EOF
	}

	opts := c.opts
	opts.InferTypes = c.kinds == nil && c.opts.InferTypes
	t, err := opts.build(c.names, records)
	if err != nil {
		return nil, err
	}

	if c.kinds == nil {
		c.kinds = make(map[string]Kind, len(c.names))
		for _, col := range t.Columns() {
			c.kinds[col.Name] = col.Kind
		}
		return t, nil
	}

	for _, col := range t.Columns() {
		if c.kinds[col.Name] != KindFloat {
			continue
		}
		if err := t.CoerceFloat(col.Name); err != nil {
			return nil, err
		}
	}

	return t, nil
}
