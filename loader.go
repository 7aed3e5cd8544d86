package dataload

import (
	"context"
	"os"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

// Disposition decides what a load does with existing rows of the destination.
type Disposition string

// Dispositions.
const (
	WriteTruncate Disposition = "WRITE_TRUNCATE"
	WriteAppend   Disposition = "WRITE_APPEND"
)

// LoadRequest describes one warehouse load of Parquet data.
// Exactly one of SourceURI and LocalPath is set.
type LoadRequest struct {
	// SourceURI is a gs:// URI, possibly with a wildcard.
	SourceURI string

	// LocalPath is a Parquet file on local disk.
	LocalPath string

	Table       string
	Disposition Disposition
}

// Warehouse loads Parquet data into a table.
type Warehouse interface {
	Load(context.Context, LoadRequest) error
}

// BigQueryConfig identifies the destination dataset.
type BigQueryConfig struct {
	Project  string
	Dataset  string
	Location string
}

// BigQueryLoader runs BigQuery load jobs.
type BigQueryLoader struct {
	client   *bigquery.Client
	dataset  string
	location string
}

// NewBigQueryLoader builds a loader with application default credentials.
func NewBigQueryLoader(ctx context.Context, cfg BigQueryConfig) (*BigQueryLoader, error) {
	if cfg.Dataset == "" {
		return nil, xerrors.New("bigquery dataset is required")
	}

	bq, err := bigquery.NewClient(ctx, cfg.Project)
	if err != nil {
		return nil, xerrors.Errorf("failed to build bigquery client for %s: %w", cfg.Project, err)
	}

	return &BigQueryLoader{client: bq, dataset: cfg.Dataset, location: cfg.Location}, nil
}

// Close closes the BigQuery client.
func (l *BigQueryLoader) Close() error {
	return l.client.Close()
}

func (l *BigQueryLoader) Load(ctx context.Context, req LoadRequest) error {
	lg := log.Ctx(ctx)

	src, closer, err := loadSource(req)
	if err != nil {
		return err
	}
	defer closer()

	loader := l.client.Dataset(l.dataset).Table(req.Table).LoaderFrom(src)
	loader.WriteDisposition = bigquery.TableWriteDisposition(req.Disposition)
	if l.location != "" {
		loader.Location = l.location
	}

	job, err := loader.Run(ctx)
	if err != nil {
		return xerrors.Errorf("failed to run bigquery load job: %w", err)
	}
	lg.Info().Msgf("load job %s started for %s.%s", job.ID(), l.dataset, req.Table)

	status, err := job.Wait(ctx)
	if err != nil {
		return xerrors.Errorf("failed to wait job %s: %w", job.ID(), err)
	}

	if status.Err() != nil {
		lg.Error().Msgf("failed to load parquet: %v", status.Errors)
		return xerrors.Errorf("load job %s failed: %w", job.ID(), status.Err())
	}

	return nil
}

func loadSource(req LoadRequest) (bigquery.LoadSource, func(), error) {
	switch {
	case req.SourceURI != "" && req.LocalPath != "":
		return nil, nil, xerrors.New("both source uri and local path are set")
	case req.SourceURI != "":
		ref := bigquery.NewGCSReference(req.SourceURI)
		ref.SourceFormat = bigquery.Parquet
		return ref, func() {}, nil
	case req.LocalPath != "":
		f, err := os.Open(req.LocalPath)
		if err != nil {
			return nil, nil, xerrors.Errorf("failed to open %s: %w", req.LocalPath, err)
		}
		rs := bigquery.NewReaderSource(f)
		rs.SourceFormat = bigquery.Parquet
		return rs, func() { f.Close() }, nil
	}
	return nil, nil, xerrors.New("no load source")
}
