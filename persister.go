package dataload

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
	"golang.org/x/xerrors"
)

// Format is the file format of an Artifact.
type Format string

// Artifact formats.
const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
)

// Artifact is a file written for one dataset and period.
type Artifact struct {
	Path   string `json:"path"`
	Format Format `json:"format"`
}

const (
	parquetParallelism = 4
	schemaMetadataKey  = "dataload.schema"
)

type storedColumn struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Persister writes tables below Dir. Every write overwrites the file at its path.
type Persister struct {
	Dir string
}

// Path returns the deterministic path of the artifact "{name}_{period}.{format}".
func (p *Persister) Path(name, period string, f Format) string {
	return filepath.Join(p.Dir, fmt.Sprintf("%s_%s.%s", name, period, f))
}

// Write writes t in format f and returns the artifact.
func (p *Persister) Write(t *Table, name, period string, f Format) (Artifact, error) {
	a := Artifact{Path: p.Path(name, period, f), Format: f}

	if err := os.MkdirAll(filepath.Dir(a.Path), 0o755); err != nil {
		return a, xerrors.Errorf("failed to create directory %s: %w", filepath.Dir(a.Path), err)
	}

	var err error
	switch f {
	case FormatParquet:
		err = WriteParquet(t, a.Path)
	case FormatCSV:
		err = WriteCSV(t, a.Path)
	default:
		err = xerrors.Errorf("unknown format %q", f)
	}

	return a, err
}

// WriteCSV writes t with a header line. Missing values are empty cells and
// timestamps are RFC 3339.
func WriteCSV(t *Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return xerrors.Errorf("failed to create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(t.Names()); err != nil {
		f.Close()
		return xerrors.Errorf("failed to write csv header: %w", err)
	}

	row := make([]string, len(t.columns))
	for i := 0; i < t.Len(); i++ {
		for j, c := range t.columns {
			row[j] = c.String(i)
		}
		if err := w.Write(row); err != nil {
			f.Close()
			return xerrors.Errorf("failed to write csv row %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return xerrors.Errorf("failed to write csv: %w", err)
	}

	if err := f.Close(); err != nil {
		return xerrors.Errorf("failed to close %s: %w", path, err)
	}

	return nil
}

// WriteParquet writes t as a gzip-compressed Parquet file. Every column is
// optional; timestamps are stored as INT64 TIMESTAMP_MILLIS.
func WriteParquet(t *Table, path string) error {
	md := make([]string, len(t.columns))
	stored := make([]storedColumn, len(t.columns))
	for i, c := range t.columns {
		tag, err := parquetTag(c)
		if err != nil {
			return err
		}
		md[i] = tag
		stored[i] = storedColumn{Name: c.Name, Kind: c.Kind.String()}
	}

	schemaJSON, err := json.Marshal(stored)
	if err != nil {
		return xerrors.Errorf("failed to marshal table schema: %w", err)
	}
	schemaValue := string(schemaJSON)

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return xerrors.Errorf("failed to create %s: %w", path, err)
	}

	pw, err := writer.NewCSVWriter(md, fw, parquetParallelism)
	if err != nil {
		fw.Close()
		return xerrors.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_GZIP

	for i := 0; i < t.Len(); i++ {
		rec := make([]interface{}, len(t.columns))
		for j, c := range t.columns {
			rec[j] = parquetValue(c, i)
		}
		if err := pw.Write(rec); err != nil {
			fw.Close()
			return xerrors.Errorf("failed to write parquet row %d: %w", i, err)
		}
	}

	pw.Footer.KeyValueMetadata = append(pw.Footer.KeyValueMetadata,
		&parquet.KeyValue{Key: schemaMetadataKey, Value: &schemaValue})

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return xerrors.Errorf("failed to finalize parquet file: %w", err)
	}

	if err := fw.Close(); err != nil {
		return xerrors.Errorf("failed to close %s: %w", path, err)
	}

	return nil
}

func parquetTag(c *Column) (string, error) {
	if c.Name == "" || strings.ContainsAny(c.Name, ",=") {
		return "", xerrors.Errorf("column name %q cannot be stored in parquet", c.Name)
	}

	switch c.Kind {
	case KindText:
		return fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", c.Name), nil
	case KindFloat:
		return fmt.Sprintf("name=%s, type=DOUBLE, repetitiontype=OPTIONAL", c.Name), nil
	case KindTimestamp:
		return fmt.Sprintf("name=%s, type=INT64, convertedtype=TIMESTAMP_MILLIS, repetitiontype=OPTIONAL", c.Name), nil
	}

	return "", xerrors.Errorf("column %q has unsupported kind %s", c.Name, c.Kind)
}

func parquetValue(c *Column, i int) interface{} {
	if c.Missing(i) {
		return nil
	}
	switch c.Kind {
	case KindText:
		return c.Text[i]
	case KindFloat:
		return c.Float[i]
	case KindTimestamp:
		return c.Time[i].UnixMilli()
	}
	return nil
}

// ReadParquet reads a flat Parquet file into a table.
// Files written by WriteParquet round-trip exactly; for other files, numeric
// columns become float columns, timestamp columns become timestamp columns
// and anything else becomes text.
func ReadParquet(path string) (*Table, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to open %s: %w", path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetColumnReader(fr, parquetParallelism)
	if err != nil {
		return nil, xerrors.Errorf("failed to read parquet footer of %s: %w", path, err)
	}
	defer pr.ReadStop()

	n := pr.GetNumRows()
	leaves := pr.Footer.Schema[1:]
	stored := storedSchema(pr.Footer.KeyValueMetadata, len(leaves))

	t := &Table{}
	for i, se := range leaves {
		values, _, _, err := pr.ReadColumnByIndex(int64(i), n)
		if err != nil {
			return nil, xerrors.Errorf("failed to read column %q: %w", se.GetName(), err)
		}

		name := se.GetName()
		kind, unit := schemaKind(se)
		if stored != nil {
			name = stored[i].Name
			kind = stored[i].kind()
		}

		c, err := columnFromParquet(name, kind, unit, values)
		if err != nil {
			return nil, err
		}
		if err := t.AddColumn(c); err != nil {
			return nil, xerrors.Errorf("failed to read %s: %w", path, err)
		}
	}

	return t, nil
}

func storedSchema(kvs []*parquet.KeyValue, n int) []storedColumn {
	for _, kv := range kvs {
		if kv.Key != schemaMetadataKey || kv.Value == nil {
			continue
		}

		var cols []storedColumn
		if err := json.Unmarshal([]byte(*kv.Value), &cols); err != nil || len(cols) != n {
			return nil
		}
		return cols
	}
	return nil
}

func (c storedColumn) kind() Kind {
	switch c.Kind {
	case KindFloat.String():
		return KindFloat
	case KindTimestamp.String():
		return KindTimestamp
	default:
		return KindText
	}
}

func schemaKind(se *parquet.SchemaElement) (Kind, time.Duration) {
	if se.IsSetConvertedType() {
		switch se.GetConvertedType() {
		case parquet.ConvertedType_TIMESTAMP_MILLIS:
			return KindTimestamp, time.Millisecond
		case parquet.ConvertedType_TIMESTAMP_MICROS:
			return KindTimestamp, time.Microsecond
		}
	}

	if se.IsSetLogicalType() && se.GetLogicalType().IsSetTIMESTAMP() {
		u := se.GetLogicalType().GetTIMESTAMP().GetUnit()
		switch {
		case u.IsSetMILLIS():
			return KindTimestamp, time.Millisecond
		case u.IsSetMICROS():
			return KindTimestamp, time.Microsecond
		default:
			return KindTimestamp, time.Nanosecond
		}
	}

	switch se.GetType() {
	case parquet.Type_DOUBLE, parquet.Type_FLOAT, parquet.Type_INT32, parquet.Type_INT64:
		return KindFloat, 0
	}

	return KindText, 0
}

func columnFromParquet(name string, kind Kind, unit time.Duration, values []interface{}) (*Column, error) {
	if kind == KindTimestamp && unit == 0 {
		unit = time.Millisecond
	}

	c := NewColumn(name, kind, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}

		switch kind {
		case KindText:
			c.SetText(i, fmt.Sprint(v))
		case KindFloat:
			f, ok := toFloat(v)
			if !ok {
				return nil, xerrors.Errorf("column %q holds %T, not a number", name, v)
			}
			c.SetFloat(i, f)
		case KindTimestamp:
			n, ok := v.(int64)
			if !ok {
				return nil, xerrors.Errorf("column %q holds %T, not a timestamp", name, v)
			}
			c.SetTime(i, time.Unix(0, n*int64(unit)).UTC())
		}
	}

	return c, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
