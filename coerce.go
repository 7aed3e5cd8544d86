package dataload

import (
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// CoerceFloat converts the named columns to float columns.
// Text values have every decimal comma replaced with a point before parsing.
// Float columns are left as they are and missing values stay missing.
// A value that still is not numeric fails the call; columns converted before
// the failing one keep their new type.
func (t *Table) CoerceFloat(names ...string) error {
	for _, n := range names {
		c, err := t.Column(n)
		if err != nil {
			return xerrors.Errorf("failed to change type: %w", err)
		}

		switch c.Kind {
		case KindFloat:
			continue
		case KindText:
		default:
			return xerrors.Errorf("failed to change type: column %q is %s", n, c.Kind)
		}

		out := NewColumn(c.Name, KindFloat, c.Len())
		for i := 0; i < c.Len(); i++ {
			if c.Missing(i) {
				continue
			}

			v, err := parseDecimal(c.Text[i])
			if err != nil {
				return xerrors.Errorf("failed to change type of %q at row %d: %w", n, i, err)
			}
			out.SetFloat(i, v)
		}

		t.columns[t.index(n)] = out
	}

	return nil
}

func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(s, ",", ".")), 64)
}
