package dataload_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/text/encoding/unicode"

	"go.nownabe.dev/dataload"
)

const solarCSV = "50Hertz Transmission GmbH\r\n" +
	"Photovoltaik Hochrechnung\r\n" +
	"Zeitraum: 01.01.2023 - 31.12.2023\r\n" +
	"\r\n" +
	"Datum;von;bis;MW\r\n" +
	"01.01.2023;00:00;00:15;0\r\n" +
	"01.01.2023;12:00;12:15;1234,5\r\n" +
	"01.01.2023;12:15;12:30;-\r\n"

type testUploader struct {
	mu      sync.Mutex
	objects map[string]string
}

func newTestUploader() *testUploader {
	return &testUploader{objects: map[string]string{}}
}

func (u *testUploader) Upload(_ context.Context, localPath, objectPath string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	u.objects[objectPath] = localPath

	return u.URI(objectPath), nil
}

func (u *testUploader) URI(objectPath string) string {
	return "gs://bucket/" + objectPath
}

type testWarehouse struct {
	requests []dataload.LoadRequest
	err      error
}

func (w *testWarehouse) Load(_ context.Context, req dataload.LoadRequest) error {
	w.requests = append(w.requests, req)
	return w.err
}

type testNotifier struct {
	results []*dataload.Result
}

func (n *testNotifier) Notify(_ context.Context, r *dataload.Result) error {
	n.results = append(n.results, r)
	return errors.New("notifier errors never fail the run")
}

type testObserver struct {
	steps map[string]int
	rows  int
}

func (o *testObserver) ObserveStep(_, step string, _ time.Duration, _ error) {
	if o.steps == nil {
		o.steps = map[string]int{}
	}
	o.steps[step]++
}

func (o *testObserver) ObserveRows(_ string, rows int) {
	o.rows = rows
}

type testExtractor struct {
	body     []byte
	failures int
	calls    int
}

func (e *testExtractor) Extract(_ context.Context, uri string) (io.Reader, func(), error) {
	e.calls++
	if e.calls <= e.failures {
		return nil, nil, fmt.Errorf("temporary failure %d for %s", e.calls, uri)
	}
	return bytes.NewReader(e.body), func() {}, nil
}

func utf16le(t *testing.T, s string) []byte {
	t.Helper()

	b, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatal(err)
	}

	return b
}

func solarDataset() *dataload.Dataset {
	return &dataload.Dataset{
		Name: "solar",
		URL: func(year string) string {
			return "https://example.com/photovoltaik_" + year + ".csv"
		},
		Encoding: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
		Parser: dataload.CSVParser(dataload.CSVOptions{
			Comma:            ';',
			SkipLeadingLines: 4,
			NAValues:         []string{"-"},
		}),
		Retries:         2,
		DropColumns:     []string{"bis"},
		Rename:          map[string]string{"MW": "solar_energy_mw"},
		DateTimeColumns: []string{"Datum", "von"},
		NumericColumns:  []string{"solar_energy_mw"},
		RequiredColumns: []string{"solar_energy_mw"},
		Order:           []string{dataload.TimestampColumn, "solar_energy_mw"},
		ObjectPrefix:    "energy",
		Table:           "solar_energy",
	}
}

func TestPipeline_Run(t *testing.T) {
	dir := t.TempDir()
	te := &testExtractor{body: utf16le(t, solarCSV), failures: 2}
	tu := newTestUploader()
	tw := &testWarehouse{}
	tn := &testNotifier{}
	to := &testObserver{}

	p, err := dataload.New(
		dataload.WithPrettyLogging(),
		dataload.WithLogLevel("debug"),
		dataload.WithBackoff(nil),
		dataload.WithDataDir(dir),
		dataload.WithExtractor(te),
		dataload.WithUploader(tu),
		dataload.WithWarehouse(tw),
		dataload.WithNotifier(tn),
		dataload.WithObserver(to),
	)
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.Run(context.Background(), solarDataset(), "2023")
	if err != nil {
		t.Fatal(err)
	}

	if te.calls != 3 {
		t.Errorf("extract should be attempted 3 times, but %d", te.calls)
	}

	if res.Rows != 2 {
		t.Errorf("expected 2 rows after dropping nulls, but %d", res.Rows)
	}

	if to.rows != 3 {
		t.Errorf("observer should see 3 fetched rows, but %d", to.rows)
	}

	for _, step := range []string{dataload.StepExtract, dataload.StepTransform, dataload.StepPersist, dataload.StepUpload, dataload.StepLoad} {
		if to.steps[step] != 1 {
			t.Errorf("step %s observed %d times", step, to.steps[step])
		}
	}

	parquetPath := filepath.Join(dir, "solar_2023.parquet")
	if _, err := os.Stat(filepath.Join(dir, "solar_2023.csv")); err != nil {
		t.Errorf("csv artifact should exist: %v", err)
	}

	if len(res.Artifacts) != 2 || res.Artifacts[0].Path != parquetPath {
		t.Errorf("unexpected artifacts %+v", res.Artifacts)
	}

	if tu.objects["energy/solar_2023.parquet"] != parquetPath {
		t.Errorf("unexpected uploads %v", tu.objects)
	}

	if len(tw.requests) != 1 {
		t.Fatalf("expected 1 load, but %d", len(tw.requests))
	}

	req := tw.requests[0]
	if req.SourceURI != "gs://bucket/energy/solar_*.parquet" || req.Table != "solar_energy" || req.Disposition != dataload.WriteTruncate {
		t.Errorf("unexpected load request %+v", req)
	}

	if res.LoadURI != req.SourceURI {
		t.Errorf("result load uri should be %q, but %q", req.SourceURI, res.LoadURI)
	}

	got, err := dataload.ReadParquet(parquetPath)
	if err != nil {
		t.Fatal(err)
	}

	expected := mustTable(t,
		dataload.TimeColumn(dataload.TimestampColumn,
			time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC),
		),
		dataload.FloatColumn("solar_energy_mw", 0, 1234.5),
	)
	if !got.Equal(expected) {
		t.Errorf("unexpected parquet content: %v", got.Names())
	}

	if len(tn.results) != 1 || tn.results[0].RunID == "" || tn.results[0].Error != nil {
		t.Errorf("unexpected notifications %+v", tn.results)
	}
}

func TestPipeline_Run_extractFails(t *testing.T) {
	dir := t.TempDir()
	te := &testExtractor{failures: 10}
	tw := &testWarehouse{}
	tn := &testNotifier{}

	p, err := dataload.New(
		dataload.WithLogLevel("disabled"),
		dataload.WithBackoff(nil),
		dataload.WithDataDir(dir),
		dataload.WithExtractor(te),
		dataload.WithUploader(newTestUploader()),
		dataload.WithWarehouse(tw),
		dataload.WithNotifier(tn),
	)
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.Run(context.Background(), solarDataset(), "2023")
	if err == nil {
		t.Fatal("expected error, but nil")
	}

	if te.calls != 3 {
		t.Errorf("extract should be attempted 3 times, but %d", te.calls)
	}

	if len(res.Artifacts) != 0 || len(tw.requests) != 0 {
		t.Errorf("nothing should be persisted or loaded: %+v, %+v", res.Artifacts, tw.requests)
	}

	if len(tn.results) != 1 || tn.results[0].Error == nil {
		t.Errorf("failure should be notified, got %+v", tn.results)
	}
}

func TestPipeline_Run_transformFails(t *testing.T) {
	body := utf16le(t, "\r\n\r\n\r\n\r\nDatum;von;bis;MW\r\n01.01.2023;00:00;00:15;abc\r\n")
	tw := &testWarehouse{}

	p, err := dataload.New(
		dataload.WithLogLevel("disabled"),
		dataload.WithDataDir(t.TempDir()),
		dataload.WithExtractor(&testExtractor{body: body}),
		dataload.WithUploader(newTestUploader()),
		dataload.WithWarehouse(tw),
	)
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.Run(context.Background(), solarDataset(), "2023")
	if err == nil {
		t.Fatal("expected error, but nil")
	}

	if len(res.Artifacts) != 0 || len(tw.requests) != 0 {
		t.Error("a failed coercion should stop before persisting")
	}
}

func TestPipeline_Run_withoutWarehouse(t *testing.T) {
	dir := t.TempDir()
	ds := solarDataset()
	ds.Formats = []dataload.Format{dataload.FormatCSV}

	p, err := dataload.New(
		dataload.WithLogLevel("disabled"),
		dataload.WithDataDir(dir),
		dataload.WithExtractor(&testExtractor{body: utf16le(t, solarCSV)}),
	)
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.Run(context.Background(), ds, "2022")
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Artifacts) != 1 || res.Artifacts[0].Format != dataload.FormatCSV {
		t.Errorf("unexpected artifacts %+v", res.Artifacts)
	}

	if len(res.Objects) != 0 || res.LoadURI != "" {
		t.Errorf("nothing should be uploaded or loaded: %+v", res)
	}
}

func TestNew_invalidLogLevel(t *testing.T) {
	if _, err := dataload.New(dataload.WithLogLevel("loud")); err == nil {
		t.Error("expected error, but nil")
	}
}

func TestPipeline_Transfer(t *testing.T) {
	dir := t.TempDir()

	src := filepath.Join(dir, "src.parquet")
	if err := dataload.WriteParquet(testEnergyTable(t), src); err != nil {
		t.Fatal(err)
	}
	body, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}

	te := &testExtractor{body: body, failures: 1}
	tw := &testWarehouse{}

	p, err := dataload.New(
		dataload.WithLogLevel("disabled"),
		dataload.WithBackoff(nil),
		dataload.WithExtractor(te),
		dataload.WithWarehouse(tw),
	)
	if err != nil {
		t.Fatal(err)
	}

	local := filepath.Join(dir, "data", "yellow", "yellow_tripdata_2021-01.parquet")
	res, err := p.Transfer(context.Background(), dataload.TransferRequest{
		Dataset:   "yellow",
		Period:    "2021-01",
		ObjectURI: "gs://bucket/data/yellow/yellow_tripdata_2021-01.parquet",
		LocalPath: local,
		Table:     "rides",
		Retries:   3,
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.Rows != 2 {
		t.Errorf("expected 2 rows, but %d", res.Rows)
	}

	if len(tw.requests) != 1 {
		t.Fatalf("expected 1 load, but %d", len(tw.requests))
	}

	req := tw.requests[0]
	if req.LocalPath != local || req.Table != "rides" || req.Disposition != dataload.WriteAppend {
		t.Errorf("unexpected load request %+v", req)
	}
}
