// Command ingest loads the green taxi trips and the taxi zone lookup into
// Postgres, or into a local SQLite file.
package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"go.nownabe.dev/dataload/ingest"
)

const (
	defaultTripURL = "https://github.com/DataTalksClub/nyc-tlc-data/releases/download/green/green_tripdata_2019-01.csv.gz"
	defaultZoneURL = "https://s3.amazonaws.com/nyc-tlc/misc/taxi+_zone_lookup.csv"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := newRootCmd().ExecuteContext(log.Logger.WithContext(context.Background())); err != nil {
		log.Error().Err(err).Msg("ingest failed")
		os.Exit(1)
	}
}

type options struct {
	pg        ingest.PostgresConfig
	sqlite    string
	tripURL   string
	zoneURL   string
	batchSize int
}

func newRootCmd() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:           "ingest",
		Short:         "Ingest CSV data to Postgres",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.pg.User, "user", "", "user name for postgres")
	f.StringVar(&o.pg.Password, "password", "", "password for postgres")
	f.StringVar(&o.pg.Host, "host", "", "host for postgres")
	f.StringVar(&o.pg.Port, "port", "", "port for postgres")
	f.StringVar(&o.pg.DB, "db", "", "database name for postgres")
	f.StringVar(&o.sqlite, "sqlite", "", "write into this SQLite file instead of postgres")
	f.StringVar(&o.tripURL, "trip-url", defaultTripURL, "url of the trip csv")
	f.StringVar(&o.zoneURL, "zone-url", defaultZoneURL, "url of the zone lookup csv")
	f.IntVar(&o.batchSize, "batch-size", ingest.DefaultBatchSize, "rows per batch")

	for _, name := range []string{"user", "password", "host", "port", "db"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func run(ctx context.Context, o *options) error {
	sink, err := newSink(ctx, o)
	if err != nil {
		return err
	}
	defer sink.Close()

	in := &ingest.Ingester{Sink: sink, BatchSize: o.batchSize}

	sources := []ingest.Source{
		{
			URL:              o.tripURL,
			Table:            "trip",
			TimestampColumns: []string{"lpep_pickup_datetime", "lpep_dropoff_datetime"},
			TimestampLayout:  "2006-01-02 15:04:05",
		},
		{URL: o.zoneURL, Table: "zone"},
	}

	for _, src := range sources {
		if _, err := in.Run(ctx, src); err != nil {
			return err
		}
	}

	return nil
}

func newSink(ctx context.Context, o *options) (ingest.Sink, error) {
	if o.sqlite != "" {
		return ingest.NewSQLiteSink(o.sqlite)
	}
	return ingest.NewPostgresSink(ctx, o.pg)
}
