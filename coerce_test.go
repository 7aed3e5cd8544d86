package dataload_test

import (
	"testing"

	"go.nownabe.dev/dataload"
)

func TestTable_CoerceFloat(t *testing.T) {
	t.Parallel()

	tbl := mustTable(t,
		dataload.TextColumn("mw", "1234,5", "0", " 7 ", "").SetMissing(3),
		dataload.FloatColumn("total", 1, 2, 3, 4),
	)

	if err := tbl.CoerceFloat("mw", "total"); err != nil {
		t.Fatal(err)
	}

	expected := mustTable(t,
		dataload.FloatColumn("mw", 1234.5, 0, 7, 0).SetMissing(3),
		dataload.FloatColumn("total", 1, 2, 3, 4),
	)

	if !tbl.Equal(expected) {
		c, _ := tbl.Column("mw")
		t.Errorf("unexpected result: %+v", c)
	}
}

func TestTable_CoerceFloat_error(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		col  *dataload.Column
	}{
		{name: "residue", col: dataload.TextColumn("mw", "1,5", "abc")},
		{name: "thousands and decimal", col: dataload.TextColumn("mw", "1.234,5")},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			tbl := mustTable(t, c.col)

			if err := tbl.CoerceFloat("mw"); err == nil {
				t.Fatal("expected error, but nil")
			}

			col, _ := tbl.Column("mw")
			if col.Kind != dataload.KindText {
				t.Errorf("failed column should stay text, but %s", col.Kind)
			}
		})
	}
}
