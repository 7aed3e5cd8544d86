package dataload_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"

	"go.nownabe.dev/dataload"
)

func newFileServer(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func gzipped(t *testing.T, s string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}

func TestHTTPExtractor(t *testing.T) {
	t.Parallel()

	srv := newFileServer(t, map[string][]byte{
		"/plain.csv":    []byte("a,b\n1,2\n"),
		"/trips.csv.gz": gzipped(t, "a,b\n3,4\n"),
	})

	e := &dataload.HTTPExtractor{HTTPClient: srv.Client()}
	ctx := context.Background()

	cases := []struct {
		path   string
		expect string
	}{
		{path: "/plain.csv", expect: "a,b\n1,2\n"},
		{path: "/trips.csv.gz", expect: "a,b\n3,4\n"},
	}

	for _, c := range cases {
		r, closer, err := e.Extract(ctx, srv.URL+c.path)
		if err != nil {
			t.Fatalf("%s: %v", c.path, err)
		}

		body, err := io.ReadAll(r)
		closer()
		if err != nil {
			t.Fatal(err)
		}

		if string(body) != c.expect {
			t.Errorf("%s: expected %q, but %q", c.path, c.expect, body)
		}
	}

	if _, _, err := e.Extract(ctx, srv.URL+"/missing.csv"); err == nil {
		t.Error("expected error for 404, but nil")
	}
}

func TestDownload(t *testing.T) {
	t.Parallel()

	srv := newFileServer(t, map[string][]byte{"/fhv.parquet": []byte("PAR1")})
	e := &dataload.HTTPExtractor{HTTPClient: srv.Client()}

	path := filepath.Join(t.TempDir(), "data", "fhv", "fhv.parquet")

	if err := dataload.Download(context.Background(), e, srv.URL+"/fhv.parquet", path); err != nil {
		t.Fatal(err)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if string(body) != "PAR1" {
		t.Errorf("unexpected content %q", body)
	}
}

func TestParseObjectURI(t *testing.T) {
	t.Parallel()

	o, err := dataload.ParseObjectURI("gs://bucket/data/yellow/yellow_tripdata_2021-01.parquet")
	if err != nil {
		t.Fatal(err)
	}

	if o.Bucket != "bucket" || o.Name != "data/yellow/yellow_tripdata_2021-01.parquet" {
		t.Errorf("unexpected object %+v", o)
	}

	if _, err := dataload.ParseObjectURI("https://example.com/x"); err == nil {
		t.Error("expected error, but nil")
	}
}
