// Command energyetl loads the 50Hertz solar and wind generation feeds of one
// year into BigQuery.
package main

import (
	"context"
	"os"
	"strconv"
	"time"

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
		log.Error().Err(err).Msg("energyetl failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		year    int
		types   []string
	)

	cmd := &cobra.Command{
		Use:           "energyetl",
		Short:         "Load 50Hertz solar and wind generation into BigQuery",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, strconv.Itoa(year), types)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file")
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "year to load")
	cmd.Flags().StringSliceVar(&types, "types", []string{"solar", "wind"}, "dataset types to load, in order")

	return cmd
}

func run(ctx context.Context, cfg config.Config, year string, types []string) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	defer a.PushMetrics(ctx)

	for _, typ := range types {
		ds, err := dataset(typ)
		if err != nil {
			return err
		}

		res, err := a.Pipeline.Run(ctx, ds, year)
		if err != nil {
			return xerrors.Errorf("%s %s: %w", typ, year, err)
		}

		log.Ctx(ctx).Info().Msgf("%s %s: %d rows loaded from %s", typ, year, res.Rows, res.LoadURI)
	}

	return nil
}

func dataset(typ string) (*dataload.Dataset, error) {
	switch typ {
	case "solar":
		return datasets.SolarEnergy("solar_energy"), nil
	case "wind":
		return datasets.WindEnergy("wind_energy"), nil
	}
	return nil, xerrors.Errorf("unknown dataset type %q", typ)
}
