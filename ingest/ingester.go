package ingest

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"go.nownabe.dev/dataload"
)

// DefaultBatchSize is the number of rows written per batch.
const DefaultBatchSize = 100000

// Source is a delimited file ingested into one table.
type Source struct {
	URL   string
	Table string

	// TimestampColumns are parsed with TimestampLayout in every batch.
	TimestampColumns []string
	TimestampLayout  string
}

// Ingester streams sources into a Sink.
type Ingester struct {
	Sink      Sink
	Extractor dataload.Extractor
	BatchSize int
}

// Run replaces src.Table with the schema of the first batch and appends
// every batch to it. The next batch is read while the previous one is
// written. Run returns the number of rows written.
func (in *Ingester) Run(ctx context.Context, src Source) (int64, error) {
	l := log.Ctx(ctx)

	size := in.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	e := in.Extractor
	if e == nil {
		e = &dataload.HTTPExtractor{}
	}

	r, closer, err := e.Extract(ctx, src.URL)
	if err != nil {
		return 0, xerrors.Errorf("failed to extract %s: %w", src.URL, err)
	}
	defer closer()

	chunker, err := dataload.NewCSVChunker(r, dataload.CSVOptions{InferTypes: true}, size)
	if err != nil {
		return 0, err
	}

	l.Info().Msgf("Start ingesting %s into %s", src.URL, src.Table)

	g, ctx := errgroup.WithContext(ctx)
	batches := make(chan *dataload.Table)

	g.Go(func() error {
		defer close(batches)
		for {
			t, err := chunker.Next(ctx)
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}

			for _, c := range src.TimestampColumns {
				if err := t.ParseTimestamp(c, src.TimestampLayout); err != nil {
					return err
				}
			}

			select {
			case batches <- t:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	var total int64
	g.Go(func() error {
		first := true
		for t := range batches {
			started := time.Now()

			if first {
				l.Info().Msgf("create table '%s'", src.Table)
				if err := in.Sink.Replace(ctx, src.Table, t); err != nil {
					return err
				}
			}

			n, err := in.Sink.Append(ctx, src.Table, t)
			if err != nil {
				return err
			}
			total += n

			if first {
				l.Info().Msgf("inserted first chunk, took %.3f second", time.Since(started).Seconds())
			} else {
				l.Info().Msgf("inserted another chunk, took %.3f second", time.Since(started).Seconds())
			}
			first = false
		}

		if first {
			return xerrors.Errorf("%s has no rows", src.URL)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return total, xerrors.Errorf("failed to ingest %s: %w", src.Table, err)
	}

	l.Info().Msgf("Finished ingesting %d rows into %s", total, src.Table)

	return total, nil
}
