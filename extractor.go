package dataload

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

// Extractor extracts data from a source such as a web server or Cloud Storage.
// The returned func releases the reader.
type Extractor interface {
	Extract(ctx context.Context, uri string) (io.Reader, func(), error)
}

// HTTPExtractor downloads files over HTTP. Bodies of ".gz" files are decompressed.
type HTTPExtractor struct {
	HTTPClient *http.Client
}

func (e *HTTPExtractor) Extract(ctx context.Context, uri string) (io.Reader, func(), error) {
	l := log.Ctx(ctx)

	c := e.HTTPClient
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, nil, xerrors.Errorf("failed to build http request: %w", err)
	}

	l.Info().Msgf("Start extract from %s", uri)

	resp, err := c.Do(req)
	if err != nil {
		return nil, nil, xerrors.Errorf("failed to get %s: %w", uri, err)
	}

	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, nil, xerrors.Errorf("failed to get %s: status code %d", uri, resp.StatusCode)
	}

	if !isGzip(uri) {
		return resp.Body, func() { resp.Body.Close() }, nil
	}

	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, nil, xerrors.Errorf("failed to open gzip stream of %s: %w", uri, err)
	}

	return zr, func() {
		zr.Close()
		resp.Body.Close()
	}, nil
}

func isGzip(uri string) bool {
	if u, err := url.Parse(uri); err == nil {
		uri = u.Path
	}
	return strings.HasSuffix(uri, ".gz")
}

// GCSExtractor reads objects from Cloud Storage.
type GCSExtractor struct {
	storage *storage.Client
}

// NewGCSExtractor builds a GCSExtractor with application default credentials.
func NewGCSExtractor(ctx context.Context) (*GCSExtractor, error) {
	s, err := storage.NewClient(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to build storage client: %w", err)
	}

	return &GCSExtractor{storage: s}, nil
}

// Extract opens a reader of the object at a gs:// uri.
func (e *GCSExtractor) Extract(ctx context.Context, uri string) (io.Reader, func(), error) {
	l := log.Ctx(ctx)

	obj, err := ParseObjectURI(uri)
	if err != nil {
		return nil, nil, err
	}

	r, err := e.storage.Bucket(obj.Bucket).Object(obj.Name).NewReader(ctx)
	if err != nil {
		l.Error().Err(err).Msg("failed to initialize object reader")
		return nil, nil, xerrors.Errorf("failed to get reader of %s: %w", obj.FullPath(), err)
	}
	l.Debug().Msgf("reading %s (%d bytes)", obj.FullPath(), r.Attrs.Size)

	return r, func() { r.Close() }, nil
}

// Close closes the storage client.
func (e *GCSExtractor) Close() error {
	return e.storage.Close()
}

// Download copies the object at uri into the local file path, creating parent directories.
func Download(ctx context.Context, e Extractor, uri, path string) error {
	r, closer, err := e.Extract(ctx, uri)
	if err != nil {
		return xerrors.Errorf("failed to extract: %w", err)
	}
	defer closer()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return xerrors.Errorf("failed to create directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return xerrors.Errorf("failed to create %s: %w", path, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return xerrors.Errorf("failed to write %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return xerrors.Errorf("failed to close %s: %w", path, err)
	}

	return nil
}
