// Command taxietl copies NYC taxi trip files to Cloud Storage and loads them
// into BigQuery.
package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"go.nownabe.dev/dataload"
	"go.nownabe.dev/dataload/config"
	"go.nownabe.dev/dataload/contrib/datasets"
	"go.nownabe.dev/dataload/internal/app"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := newRootCmd().ExecuteContext(log.Logger.WithContext(context.Background())); err != nil {
		log.Error().Err(err).Msg("taxietl failed")
		os.Exit(1)
	}
}

type options struct {
	cfgFile string
	workDir string
	year    int
	months  []int
}

func newRootCmd() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:           "taxietl",
		Short:         "Move NYC taxi trip data between the web, Cloud Storage and BigQuery",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&o.cfgFile, "config", "", "config file")
	cmd.PersistentFlags().StringVar(&o.workDir, "work-dir", ".", "directory local copies are written below")
	cmd.PersistentFlags().IntVar(&o.year, "year", 2019, "year of the trip files")
	cmd.PersistentFlags().IntSliceVar(&o.months, "months", []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, "months of the trip files")

	cmd.AddCommand(newWebToGCSCmd(o), newGCSToBQCmd(o))

	return cmd
}

func newWebToGCSCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "web-to-gcs",
		Short: "Copy monthly FHV trip files to Parquet objects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(o.cfgFile)
			if err != nil {
				return err
			}

			a, err := app.New(ctx, cfg, dataload.WithDataDir(filepath.Join(o.workDir, "data", "fhv")))
			if err != nil {
				return err
			}
			defer a.Close()
			defer a.PushMetrics(ctx)

			ds := datasets.FHVTrips()
			for _, m := range o.months {
				if _, err := a.Pipeline.Run(ctx, ds, datasets.MonthPeriod(o.year, m)); err != nil {
					return err
				}
			}

			return nil
		},
	}
}

func newGCSToBQCmd(o *options) *cobra.Command {
	var color, table string

	cmd := &cobra.Command{
		Use:   "gcs-to-bq",
		Short: "Append monthly trip Parquet objects to a BigQuery table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(o.cfgFile)
			if err != nil {
				return err
			}
			if cfg.Storage.Provider != config.ProviderGCS || cfg.BigQuery.Dataset == "" {
				return xerrors.New("gcs-to-bq needs gcs storage and a bigquery dataset")
			}

			e, err := dataload.NewGCSExtractor(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			a, err := app.New(ctx, cfg, dataload.WithExtractor(e))
			if err != nil {
				return err
			}
			defer a.Close()
			defer a.PushMetrics(ctx)

			var total int
			for _, m := range o.months {
				req := datasets.TripTransfer(cfg.Storage.Bucket, o.workDir, color, o.year, m, table)
				res, err := a.Pipeline.Transfer(ctx, req)
				if err != nil {
					return err
				}
				total += res.Rows
			}

			log.Ctx(ctx).Info().Msgf("appended %d rows to %s.%s", total, cfg.BigQuery.Dataset, table)

			return nil
		},
	}

	cmd.Flags().StringVar(&color, "color", "yellow", "taxi color of the trip files")
	cmd.Flags().StringVar(&table, "table", "rides", "destination table")

	return cmd
}
