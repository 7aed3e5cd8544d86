// Package config loads dataload job configuration via Viper.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/xerrors"
)

// Storage providers.
const (
	ProviderGCS  = "gcs"
	ProviderS3   = "s3"
	ProviderNone = "none"
)

// Config captures every knob of the ETL commands.
type Config struct {
	DataDir       string `mapstructure:"data_dir"`
	LogLevel      string `mapstructure:"log_level"`
	PrettyLogging bool   `mapstructure:"pretty_logging"`

	Retry    RetryConfig    `mapstructure:"retry"`
	Storage  StorageConfig  `mapstructure:"storage"`
	BigQuery BigQueryConfig `mapstructure:"bigquery"`
	Slack    SlackConfig    `mapstructure:"slack"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// RetryConfig sets the wait between fetch attempts.
type RetryConfig struct {
	Backoff    time.Duration `mapstructure:"backoff"`
	MaxBackoff time.Duration `mapstructure:"max_backoff"`
}

// StorageConfig selects the bucket artifacts are uploaded to.
type StorageConfig struct {
	Provider string `mapstructure:"provider"`
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
}

// BigQueryConfig identifies the destination dataset.
type BigQueryConfig struct {
	Project  string `mapstructure:"project"`
	Dataset  string `mapstructure:"dataset"`
	Location string `mapstructure:"location"`
}

// SlackConfig enables Slack notifications when Token is set.
type SlackConfig struct {
	Token   string `mapstructure:"token"`
	Channel string `mapstructure:"channel"`
}

// PubSubConfig enables Pub/Sub notifications when Topic is set.
type PubSubConfig struct {
	Project string `mapstructure:"project"`
	Topic   string `mapstructure:"topic"`
}

// MetricsConfig enables pushing metrics when PushgatewayURL is set.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// Load builds a Config from defaults, the optional file at path and
// DATALOAD_ environment variables, in increasing precedence.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DATALOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, xerrors.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, xerrors.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data_solar_wind")
	v.SetDefault("log_level", "info")
	v.SetDefault("pretty_logging", false)
	v.SetDefault("retry.backoff", time.Second)
	v.SetDefault("retry.max_backoff", 30*time.Second)
	v.SetDefault("storage.provider", ProviderGCS)
	v.SetDefault("storage.bucket", "data_solar_wind")
	v.SetDefault("storage.region", "")
	v.SetDefault("bigquery.project", "")
	v.SetDefault("bigquery.dataset", "solar_wind")
	v.SetDefault("bigquery.location", "US")
	v.SetDefault("slack.token", "")
	v.SetDefault("slack.channel", "")
	v.SetDefault("pubsub.project", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "dataload")
}

// Validate enforces required values.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return xerrors.New("data_dir must be set")
	}
	if c.Retry.Backoff < 0 || c.Retry.MaxBackoff < c.Retry.Backoff {
		return xerrors.New("retry.max_backoff must be >= retry.backoff >= 0")
	}

	switch c.Storage.Provider {
	case ProviderGCS:
		if c.Storage.Bucket == "" {
			return xerrors.New("storage.bucket must be set for gcs")
		}
	case ProviderS3:
		if c.Storage.Bucket == "" || c.Storage.Region == "" {
			return xerrors.New("storage.bucket and storage.region must be set for s3")
		}
		if c.BigQuery.Dataset != "" {
			return xerrors.New("bigquery loads need gcs storage; unset bigquery.dataset for s3")
		}
	case ProviderNone:
	default:
		return xerrors.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}

	if c.Slack.Token != "" && c.Slack.Channel == "" {
		return xerrors.New("slack.channel must be set when slack.token is set")
	}
	if c.PubSub.Topic != "" && c.PubSub.Project == "" {
		return xerrors.New("pubsub.project must be set when pubsub.topic is set")
	}

	return nil
}
