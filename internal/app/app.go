// Package app wires configured clients into a dataload.Pipeline.
package app

import (
	"context"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"

	"go.nownabe.dev/dataload"
	"go.nownabe.dev/dataload/config"
	"go.nownabe.dev/dataload/metrics"
)

// App owns the pipeline and every client it was built with.
type App struct {
	Pipeline *dataload.Pipeline
	Metrics  *metrics.Collector

	cfg     config.Config
	closers []func() error
}

// New builds an App from cfg. Extra options are applied after the configured ones.
func New(ctx context.Context, cfg config.Config, opts ...dataload.Option) (*App, error) {
	a := &App{cfg: cfg}

	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}
	a.Metrics = collector

	base := []dataload.Option{
		dataload.WithLogLevel(cfg.LogLevel),
		dataload.WithDataDir(cfg.DataDir),
		dataload.WithBackoff(dataload.ExponentialBackoff(cfg.Retry.Backoff, cfg.Retry.MaxBackoff)),
		dataload.WithObserver(collector),
	}
	if cfg.PrettyLogging {
		base = append(base, dataload.WithPrettyLogging())
	}

	clientOpts, err := a.clients(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	p, err := dataload.New(append(append(base, clientOpts...), opts...)...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Pipeline = p

	return a, nil
}

func (a *App) clients(ctx context.Context) ([]dataload.Option, error) {
	var opts []dataload.Option

	switch a.cfg.Storage.Provider {
	case config.ProviderGCS:
		gcs, err := storage.NewClient(ctx)
		if err != nil {
			return nil, xerrors.Errorf("failed to build storage client: %w", err)
		}
		a.closers = append(a.closers, gcs.Close)

		u, err := dataload.NewGCSUploader(gcs, dataload.GCSConfig{Bucket: a.cfg.Storage.Bucket})
		if err != nil {
			return nil, err
		}
		opts = append(opts, dataload.WithUploader(u))
	case config.ProviderS3:
		u, err := dataload.NewS3Uploader(dataload.S3Config{Bucket: a.cfg.Storage.Bucket, Region: a.cfg.Storage.Region})
		if err != nil {
			return nil, err
		}
		opts = append(opts, dataload.WithUploader(u))
	}

	if a.cfg.BigQuery.Dataset != "" && a.cfg.Storage.Provider == config.ProviderGCS {
		bq, err := dataload.NewBigQueryLoader(ctx, dataload.BigQueryConfig{
			Project:  a.cfg.BigQuery.Project,
			Dataset:  a.cfg.BigQuery.Dataset,
			Location: a.cfg.BigQuery.Location,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, bq.Close)
		opts = append(opts, dataload.WithWarehouse(bq))
	}

	if a.cfg.Slack.Token != "" {
		opts = append(opts, dataload.WithNotifier(&dataload.SlackNotifier{
			Token:   a.cfg.Slack.Token,
			Channel: a.cfg.Slack.Channel,
		}))
	}

	if a.cfg.PubSub.Topic != "" {
		ps, err := pubsub.NewClient(ctx, a.cfg.PubSub.Project)
		if err != nil {
			return nil, xerrors.Errorf("failed to build pubsub client: %w", err)
		}
		topic := ps.Topic(a.cfg.PubSub.Topic)
		a.closers = append(a.closers, func() error {
			topic.Stop()
			return ps.Close()
		})
		opts = append(opts, dataload.WithNotifier(&dataload.PubSubNotifier{Topic: topic}))
	}

	return opts, nil
}

// PushMetrics pushes collected metrics when a Pushgateway is configured.
func (a *App) PushMetrics(ctx context.Context) {
	if a.cfg.Metrics.PushgatewayURL == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.Metrics.Push(ctx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to push metrics")
	}
}

// Close closes every client in reverse creation order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("failed to close client")
		}
	}
	a.closers = nil
}
