package dataload

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/transform"
	"golang.org/x/xerrors"
)

// Observer receives step timings and row counts of pipeline runs.
type Observer interface {
	ObserveStep(dataset, step string, elapsed time.Duration, err error)
	ObserveRows(dataset string, rows int)
}

type nopObserver struct{}

func (nopObserver) ObserveStep(string, string, time.Duration, error) {}
func (nopObserver) ObserveRows(string, int)                          {}

// Pipeline steps reported to Observer.
const (
	StepExtract   = "extract"
	StepTransform = "transform"
	StepPersist   = "persist"
	StepUpload    = "upload"
	StepLoad      = "load"
	StepDownload  = "download"
)

// Pipeline runs datasets through extract, transform, persist, upload and load.
type Pipeline struct {
	extractor Extractor
	persister *Persister
	uploader  Uploader
	warehouse Warehouse
	notifiers []Notifier
	observer  Observer
	backoff   Backoff

	prettyLogging bool
	logLevel      zerolog.Level
	logger        zerolog.Logger
}

// New builds a new Pipeline.
func New(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		extractor: &HTTPExtractor{},
		persister: &Persister{Dir: "data"},
		observer:  nopObserver{},
		backoff:   ConstantBackoff(time.Second),
		logLevel:  zerolog.InfoLevel,
	}

	for _, o := range opts {
		if err := o.apply(p); err != nil {
			return nil, xerrors.Errorf("failed to apply option: %w", err)
		}
	}

	if p.prettyLogging {
		p.logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		p.logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	p.logger = p.logger.Level(p.logLevel)

	return p, nil
}

// Run fetches the dataset for period, normalizes it, writes artifacts,
// uploads them and loads them into the warehouse. Upload and load are
// skipped when no Uploader or Warehouse is configured.
func (p *Pipeline) Run(ctx context.Context, ds *Dataset, period string) (*Result, error) {
	ctx, res := p.begin(ctx, ds.Name, period)

	err := ds.validate()
	if err == nil {
		err = p.run(ctx, ds, period, res)
	}

	return p.finish(ctx, res, err)
}

func (p *Pipeline) begin(ctx context.Context, dataset, period string) (context.Context, *Result) {
	id := uuid.NewString()

	l := p.logger.With().
		Str("run_id", id).
		Str("dataset", dataset).
		Str("period", period).
		Logger()

	ctx = l.WithContext(ctx)
	ctx = withStartedTime(ctx)
	ctx = withRunID(ctx, id)

	l.Info().Msg("Start pipeline")

	return ctx, &Result{RunID: id, Dataset: dataset, Period: period}
}

func (p *Pipeline) finish(ctx context.Context, res *Result, err error) (*Result, error) {
	l := zerolog.Ctx(ctx)

	if started, ok := startedTimeFrom(ctx); ok {
		res.Elapsed = time.Since(started)
	}
	res.Error = err

	if err != nil {
		l.Error().Err(err).Msgf("pipeline failed after %s", res.Elapsed)
	} else {
		l.Info().Msgf("pipeline finished in %s", res.Elapsed)
	}

	for _, n := range p.notifiers {
		if nerr := n.Notify(ctx, res); nerr != nil {
			l.Error().Err(nerr).Msg("failed to notify")
		}
	}

	return res, err
}

func (p *Pipeline) run(ctx context.Context, ds *Dataset, period string, res *Result) error {
	var t *Table

	err := p.step(ctx, ds.Name, StepExtract, func(ctx context.Context) error {
		return Retry(ctx, ds.Retries, p.backoff, func(ctx context.Context) error {
			var err error
			t, err = p.fetch(ctx, ds, period)
			return err
		})
	})
	if err != nil {
		return err
	}
	p.observer.ObserveRows(ds.Name, t.Len())

	err = p.step(ctx, ds.Name, StepTransform, func(ctx context.Context) error {
		var err error
		t, err = ds.Normalize(ctx, t)
		return err
	})
	if err != nil {
		return err
	}
	res.Rows = t.Len()

	err = p.step(ctx, ds.Name, StepPersist, func(ctx context.Context) error {
		for _, f := range ds.formats() {
			a, err := p.persister.Write(t, ds.Name, period, f)
			if err != nil {
				return err
			}
			zerolog.Ctx(ctx).Info().Msgf("Saved %s", a.Path)
			res.Artifacts = append(res.Artifacts, a)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if p.uploader == nil {
		return nil
	}

	err = p.step(ctx, ds.Name, StepUpload, func(ctx context.Context) error {
		for _, a := range res.Artifacts {
			if a.Format != FormatParquet {
				continue
			}
			uri, err := p.uploader.Upload(ctx, a.Path, path.Join(ds.ObjectPrefix, filepath.Base(a.Path)))
			if err != nil {
				return err
			}
			res.Objects = append(res.Objects, uri)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if p.warehouse == nil || ds.Table == "" {
		return nil
	}

	uri := p.uploader.URI(path.Join(ds.ObjectPrefix, ds.Name+"_*."+string(FormatParquet)))

	err = p.step(ctx, ds.Name, StepLoad, func(ctx context.Context) error {
		return p.warehouse.Load(ctx, LoadRequest{
			SourceURI:   uri,
			Table:       ds.Table,
			Disposition: WriteTruncate,
		})
	})
	if err != nil {
		return err
	}
	res.LoadURI = uri

	return nil
}

func (p *Pipeline) fetch(ctx context.Context, ds *Dataset, period string) (*Table, error) {
	r, closer, err := p.extractor.Extract(ctx, ds.URL(period))
	if err != nil {
		return nil, xerrors.Errorf("failed to extract: %w", err)
	}
	defer closer()

	if ds.Encoding != nil {
		r = transform.NewReader(r, ds.Encoding.NewDecoder())
	}

	t, err := ds.Parser(ctx, r)
	if err != nil {
		return nil, xerrors.Errorf("failed to parse: %w", err)
	}

	return t, nil
}

func (p *Pipeline) step(ctx context.Context, dataset, name string, fn func(context.Context) error) error {
	started := time.Now()
	err := fn(ctx)
	p.observer.ObserveStep(dataset, name, time.Since(started), err)

	if err != nil {
		return xerrors.Errorf("%s failed: %w", name, err)
	}
	return nil
}

// TransferRequest describes copying one Parquet object into the warehouse.
type TransferRequest struct {
	Dataset string
	Period  string

	// ObjectURI is read with the pipeline's Extractor.
	ObjectURI string

	// LocalPath is where the object is downloaded to.
	LocalPath string

	Table       string
	Disposition Disposition
	Retries     int
}

// Transfer downloads a Parquet object, reads it to report its row count and
// loads the local copy into the warehouse.
func (p *Pipeline) Transfer(ctx context.Context, req TransferRequest) (*Result, error) {
	ctx, res := p.begin(ctx, req.Dataset, req.Period)
	return p.finish(ctx, res, p.transfer(ctx, req, res))
}

func (p *Pipeline) transfer(ctx context.Context, req TransferRequest, res *Result) error {
	if p.warehouse == nil {
		return xerrors.New("no warehouse configured")
	}

	err := p.step(ctx, req.Dataset, StepDownload, func(ctx context.Context) error {
		return Retry(ctx, req.Retries, p.backoff, func(ctx context.Context) error {
			return Download(ctx, p.extractor, req.ObjectURI, req.LocalPath)
		})
	})
	if err != nil {
		return err
	}

	t, err := ReadParquet(req.LocalPath)
	if err != nil {
		return err
	}
	res.Rows = t.Len()
	res.Artifacts = append(res.Artifacts, Artifact{Path: req.LocalPath, Format: FormatParquet})
	p.observer.ObserveRows(req.Dataset, t.Len())
	zerolog.Ctx(ctx).Info().Msgf("rows: %d", t.Len())

	d := req.Disposition
	if d == "" {
		d = WriteAppend
	}

	err = p.step(ctx, req.Dataset, StepLoad, func(ctx context.Context) error {
		return p.warehouse.Load(ctx, LoadRequest{LocalPath: req.LocalPath, Table: req.Table, Disposition: d})
	})
	if err != nil {
		return err
	}
	res.LoadURI = req.ObjectURI

	return nil
}
