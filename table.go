package dataload

import (
	"errors"
	"strconv"
	"time"

	"golang.org/x/xerrors"
)

var (
	// ErrColumnNotFound is returned when a referenced column does not exist.
	ErrColumnNotFound = errors.New("column not found")

	// ErrColumnCount is returned when a positional operation gets a wrong number of names.
	ErrColumnCount = errors.New("column count mismatch")

	// ErrDuplicateColumn is returned when a column name would appear twice.
	ErrDuplicateColumn = errors.New("duplicate column")
)

// Kind is the value type stored in a Column.
type Kind int

// Column kinds.
const (
	KindText Kind = iota
	KindFloat
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindFloat:
		return "float"
	case KindTimestamp:
		return "timestamp"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// Column is a named, homogeneous sequence of values.
// Only the slice matching Kind is populated. Valid[i] is false for a missing value.
type Column struct {
	Name string
	Kind Kind

	Text  []string
	Float []float64
	Time  []time.Time
	Valid []bool
}

// NewColumn builds a column of n missing values.
func NewColumn(name string, kind Kind, n int) *Column {
	c := &Column{Name: name, Kind: kind, Valid: make([]bool, n)}
	switch kind {
	case KindText:
		c.Text = make([]string, n)
	case KindFloat:
		c.Float = make([]float64, n)
	case KindTimestamp:
		c.Time = make([]time.Time, n)
	}
	return c
}

// TextColumn builds a text column without missing values.
func TextColumn(name string, values ...string) *Column {
	c := NewColumn(name, KindText, len(values))
	for i, v := range values {
		c.SetText(i, v)
	}
	return c
}

// FloatColumn builds a float column without missing values.
func FloatColumn(name string, values ...float64) *Column {
	c := NewColumn(name, KindFloat, len(values))
	for i, v := range values {
		c.SetFloat(i, v)
	}
	return c
}

// TimeColumn builds a timestamp column without missing values.
func TimeColumn(name string, values ...time.Time) *Column {
	c := NewColumn(name, KindTimestamp, len(values))
	for i, v := range values {
		c.SetTime(i, v)
	}
	return c
}

// Len returns the number of values.
func (c *Column) Len() int {
	return len(c.Valid)
}

// Missing reports whether row i holds no value.
func (c *Column) Missing(i int) bool {
	return !c.Valid[i]
}

// SetMissing marks row i as missing.
func (c *Column) SetMissing(i int) *Column {
	c.Valid[i] = false
	switch c.Kind {
	case KindText:
		c.Text[i] = ""
	case KindFloat:
		c.Float[i] = 0
	case KindTimestamp:
		c.Time[i] = time.Time{}
	}
	return c
}

func (c *Column) SetText(i int, v string) {
	c.Text[i] = v
	c.Valid[i] = true
}

func (c *Column) SetFloat(i int, v float64) {
	c.Float[i] = v
	c.Valid[i] = true
}

func (c *Column) SetTime(i int, v time.Time) {
	c.Time[i] = v
	c.Valid[i] = true
}

// Value returns the value at row i, or nil when it is missing.
func (c *Column) Value(i int) interface{} {
	if !c.Valid[i] {
		return nil
	}
	switch c.Kind {
	case KindText:
		return c.Text[i]
	case KindFloat:
		return c.Float[i]
	case KindTimestamp:
		return c.Time[i]
	}
	return nil
}

// String formats row i for text output. Missing values are empty.
func (c *Column) String(i int) string {
	if !c.Valid[i] {
		return ""
	}
	switch c.Kind {
	case KindFloat:
		return strconv.FormatFloat(c.Float[i], 'f', -1, 64)
	case KindTimestamp:
		return c.Time[i].Format(time.RFC3339)
	default:
		return c.Text[i]
	}
}

func (c *Column) equal(o *Column) bool {
	if c.Name != o.Name || c.Kind != o.Kind || c.Len() != o.Len() {
		return false
	}
	for i := range c.Valid {
		if c.Valid[i] != o.Valid[i] {
			return false
		}
		if !c.Valid[i] {
			continue
		}
		switch c.Kind {
		case KindText:
			if c.Text[i] != o.Text[i] {
				return false
			}
		case KindFloat:
			if c.Float[i] != o.Float[i] {
				return false
			}
		case KindTimestamp:
			if !c.Time[i].Equal(o.Time[i]) {
				return false
			}
		}
	}
	return true
}

func (c *Column) clone() *Column {
	o := &Column{Name: c.Name, Kind: c.Kind}
	o.Valid = append([]bool(nil), c.Valid...)
	o.Text = append([]string(nil), c.Text...)
	o.Float = append([]float64(nil), c.Float...)
	o.Time = append([]time.Time(nil), c.Time...)
	return o
}

func (c *Column) keep(rows []int) {
	valid := make([]bool, len(rows))
	for j, i := range rows {
		valid[j] = c.Valid[i]
	}
	c.Valid = valid

	switch c.Kind {
	case KindText:
		vs := make([]string, len(rows))
		for j, i := range rows {
			vs[j] = c.Text[i]
		}
		c.Text = vs
	case KindFloat:
		vs := make([]float64, len(rows))
		for j, i := range rows {
			vs[j] = c.Float[i]
		}
		c.Float = vs
	case KindTimestamp:
		vs := make([]time.Time, len(rows))
		for j, i := range rows {
			vs[j] = c.Time[i]
		}
		c.Time = vs
	}
}

// Table is an ordered set of named columns sharing one row count.
// Normalization steps mutate a table in place.
type Table struct {
	columns []*Column
}

// NewTable builds a table from columns of equal length and unique names.
func NewTable(columns ...*Column) (*Table, error) {
	t := &Table{}
	for _, c := range columns {
		if err := t.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Len returns the row count.
func (t *Table) Len() int {
	if len(t.columns) == 0 {
		return 0
	}
	return t.columns[0].Len()
}

// Columns returns the columns in order. The slice must not be modified.
func (t *Table) Columns() []*Column {
	return t.columns
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, error) {
	i := t.index(name)
	if i < 0 {
		return nil, xerrors.Errorf("%q: %w", name, ErrColumnNotFound)
	}
	return t.columns[i], nil
}

// AddColumn appends a column.
func (t *Table) AddColumn(c *Column) error {
	if t.index(c.Name) >= 0 {
		return xerrors.Errorf("%q: %w", c.Name, ErrDuplicateColumn)
	}
	if len(t.columns) > 0 && c.Len() != t.Len() {
		return xerrors.Errorf("column %q has %d rows, table has %d", c.Name, c.Len(), t.Len())
	}
	t.columns = append(t.columns, c)
	return nil
}

// Equal reports whether both tables hold the same columns, kinds and values.
func (t *Table) Equal(o *Table) bool {
	if len(t.columns) != len(o.columns) {
		return false
	}
	for i := range t.columns {
		if !t.columns[i].equal(o.columns[i]) {
			return false
		}
	}
	return true
}

func (t *Table) index(name string) int {
	for i, c := range t.columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}
