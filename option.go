package dataload

import (
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
)

// Option configures Pipeline.
type Option interface {
	apply(*Pipeline) error
}

type optionFunc func(*Pipeline) error

func (f optionFunc) apply(p *Pipeline) error {
	return f(p)
}

// WithPrettyLogging configures Pipeline to print human friendly logs.
func WithPrettyLogging() Option {
	return optionFunc(func(p *Pipeline) error {
		p.prettyLogging = true
		return nil
	})
}

// WithLogLevel sets the minimum log level, e.g. "debug" or "info".
func WithLogLevel(level string) Option {
	return optionFunc(func(p *Pipeline) error {
		l, err := zerolog.ParseLevel(level)
		if err != nil {
			return xerrors.Errorf("failed to parse log level %q: %w", level, err)
		}
		p.logLevel = l
		return nil
	})
}

// WithBackoff sets the wait between fetch retries.
func WithBackoff(b Backoff) Option {
	return optionFunc(func(p *Pipeline) error {
		p.backoff = b
		return nil
	})
}

// WithDataDir sets the local directory artifacts are written to.
func WithDataDir(dir string) Option {
	return optionFunc(func(p *Pipeline) error {
		p.persister = &Persister{Dir: dir}
		return nil
	})
}

// WithExtractor replaces the default HTTP extractor.
func WithExtractor(e Extractor) Option {
	return optionFunc(func(p *Pipeline) error {
		p.extractor = e
		return nil
	})
}

// WithUploader enables uploading Parquet artifacts.
func WithUploader(u Uploader) Option {
	return optionFunc(func(p *Pipeline) error {
		p.uploader = u
		return nil
	})
}

// WithWarehouse enables warehouse loads.
func WithWarehouse(w Warehouse) Option {
	return optionFunc(func(p *Pipeline) error {
		p.warehouse = w
		return nil
	})
}

// WithNotifier adds a notifier called after every run.
func WithNotifier(n Notifier) Option {
	return optionFunc(func(p *Pipeline) error {
		p.notifiers = append(p.notifiers, n)
		return nil
	})
}

// WithObserver sets the observer receiving step timings and row counts.
func WithObserver(o Observer) Option {
	return optionFunc(func(p *Pipeline) error {
		p.observer = o
		return nil
	})
}
