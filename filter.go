package dataload

import (
	"golang.org/x/xerrors"
)

// Filter keeps only the rows for which keep returns true, in place.
func (t *Table) Filter(keep func(row int) bool) {
	rows := make([]int, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	if len(rows) == t.Len() {
		return
	}

	for _, c := range t.columns {
		c.keep(rows)
	}
}

// DropNulls removes, in place, every row that is missing a value in any of
// the named columns.
func (t *Table) DropNulls(names ...string) error {
	cols := make([]*Column, len(names))
	for i, n := range names {
		c, err := t.Column(n)
		if err != nil {
			return xerrors.Errorf("failed to drop nulls: %w", err)
		}
		cols[i] = c
	}

	t.Filter(func(row int) bool {
		for _, c := range cols {
			if c.Missing(row) {
				return false
			}
		}
		return true
	})

	return nil
}
