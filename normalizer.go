package dataload

import (
	"golang.org/x/xerrors"
)

// Drop removes the named columns in place.
// Every name must exist; nothing is removed otherwise.
func (t *Table) Drop(names ...string) error {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		if t.index(n) < 0 {
			return xerrors.Errorf("failed to drop %q: %w", n, ErrColumnNotFound)
		}
		drop[n] = true
	}

	kept := t.columns[:0]
	for _, c := range t.columns {
		if !drop[c.Name] {
			kept = append(kept, c)
		}
	}
	t.columns = kept

	return nil
}

// Relabel renames every column by position.
// names must have exactly one entry per current column.
func (t *Table) Relabel(names ...string) error {
	if len(names) != len(t.columns) {
		return xerrors.Errorf("failed to relabel %d columns with %d names: %w",
			len(t.columns), len(names), ErrColumnCount)
	}

	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return xerrors.Errorf("failed to relabel: %q: %w", n, ErrDuplicateColumn)
		}
		seen[n] = true
	}

	for i, n := range names {
		t.columns[i].Name = n
	}

	return nil
}

// Rename renames columns using an old-to-new mapping.
// Columns not in the mapping keep their names.
func (t *Table) Rename(mapping map[string]string) error {
	for old := range mapping {
		if t.index(old) < 0 {
			return xerrors.Errorf("failed to rename %q: %w", old, ErrColumnNotFound)
		}
	}

	names := t.Names()
	seen := make(map[string]bool, len(names))
	for i, n := range names {
		if to, ok := mapping[n]; ok {
			names[i] = to
		}
		if seen[names[i]] {
			return xerrors.Errorf("failed to rename: %q: %w", names[i], ErrDuplicateColumn)
		}
		seen[names[i]] = true
	}

	for i, n := range names {
		t.columns[i].Name = n
	}

	return nil
}

// Select returns a new table holding copies of exactly the named columns in
// that order.
func (t *Table) Select(names ...string) (*Table, error) {
	out := &Table{columns: make([]*Column, 0, len(names))}
	for _, n := range names {
		c, err := t.Column(n)
		if err != nil {
			return nil, xerrors.Errorf("failed to select: %w", err)
		}
		if err := out.AddColumn(c.clone()); err != nil {
			return nil, xerrors.Errorf("failed to select: %w", err)
		}
	}
	return out, nil
}
