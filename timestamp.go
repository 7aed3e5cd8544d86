package dataload

import (
	"time"

	"golang.org/x/xerrors"
)

const (
	// TimestampColumn is the name of the column written by SynthesizeTimestamp.
	TimestampColumn = "timestamp"

	// DateTimeLayout is the "day.month.year hour:minute" layout of joined date and time cells.
	DateTimeLayout = "02.01.2006 15:04"
)

// SynthesizeTimestamp joins the date and time text columns of each row with a
// single space, parses the result with DateTimeLayout and appends it as the
// "timestamp" column. A row that does not parse fails the call and no column
// is added.
func (t *Table) SynthesizeTimestamp(dateCol, timeCol string) error {
	d, err := t.textColumn(dateCol)
	if err != nil {
		return xerrors.Errorf("failed to generate timestamp: %w", err)
	}
	tm, err := t.textColumn(timeCol)
	if err != nil {
		return xerrors.Errorf("failed to generate timestamp: %w", err)
	}

	out := NewColumn(TimestampColumn, KindTimestamp, t.Len())
	for i := 0; i < t.Len(); i++ {
		if d.Missing(i) || tm.Missing(i) {
			return xerrors.Errorf("failed to generate timestamp at row %d: date or time is missing", i)
		}

		v, err := time.Parse(DateTimeLayout, d.Text[i]+" "+tm.Text[i])
		if err != nil {
			return xerrors.Errorf("failed to generate timestamp at row %d: %w", i, err)
		}
		out.SetTime(i, v)
	}

	if err := t.AddColumn(out); err != nil {
		return xerrors.Errorf("failed to generate timestamp: %w", err)
	}

	return nil
}

// ParseTimestamp converts a text column into a timestamp column in place.
// Missing values stay missing.
func (t *Table) ParseTimestamp(name, layout string) error {
	c, err := t.Column(name)
	if err != nil {
		return xerrors.Errorf("failed to parse timestamp: %w", err)
	}
	if c.Kind == KindTimestamp {
		return nil
	}
	if c.Kind != KindText {
		return xerrors.Errorf("failed to parse timestamp: column %q is %s", name, c.Kind)
	}

	out := NewColumn(c.Name, KindTimestamp, c.Len())
	for i := 0; i < c.Len(); i++ {
		if c.Missing(i) {
			continue
		}
		v, err := time.Parse(layout, c.Text[i])
		if err != nil {
			return xerrors.Errorf("failed to parse timestamp %q at row %d: %w", name, i, err)
		}
		out.SetTime(i, v)
	}

	t.columns[t.index(name)] = out

	return nil
}

func (t *Table) textColumn(name string) (*Column, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != KindText {
		return nil, xerrors.Errorf("column %q is %s, not text", name, c.Kind)
	}
	return c, nil
}
