// Package pipeline streams features from a source into a datastore.
//
// A Pipeline reads features from a Source, applies Transforms on parallel
// workers, groups the results into batches and writes each batch to a Sink:
//
//	p := pipeline.New("roads", pipeline.FileSource(path, sft, nil), ds, nil, logger)
//	p.AddTransform(pipeline.AssignIDs())
//	stats, err := p.Run(ctx)
//
// Batches are flushed when full and on every FlushInterval tick. With more
// than one worker, features reach the sink in no particular order, so the
// winner among duplicate ids in one input is undefined.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/metrics"
)

// Source emits features until exhausted. Emitted features must not be
// modified afterwards. emit returns an error when the pipeline stops.
type Source func(ctx context.Context, emit func(feature.Feature) error) error

// Sink persists batches of features of one type.
type Sink interface {
	Write(ctx context.Context, typeName string, features []feature.Feature) error
}

// Transform modifies a feature in flight. Returning nil drops the feature.
type Transform func(ctx context.Context, f feature.Feature) (feature.Feature, error)

// Config controls batching and parallelism.
type Config struct {
	BatchSize     int           // Features per sink write
	WorkerCount   int           // Parallel transform workers
	FlushInterval time.Duration // Maximum time a partial batch waits
	// ContinueOnError counts and skips features whose transforms fail
	// instead of stopping the pipeline.
	ContinueOnError bool
	// MaxRetries bounds retries of a sink write failing with a connection or
	// timeout error.
	MaxRetries   int
	RetryBackoff time.Duration
	// RateLimit caps sink writes in features per second; 0 is unlimited.
	RateLimit float64
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:     1000,
		WorkerCount:   4,
		FlushInterval: 5 * time.Second,
		MaxRetries:    3,
		RetryBackoff:  100 * time.Millisecond,
	}
}

// Stats summarizes a run.
type Stats struct {
	Read     int64
	Written  int64
	Filtered int64
	Failed   int64
	Batches  int64
	Duration time.Duration
}

// Pipeline moves features of one type from a source to a sink.
type Pipeline struct {
	typeName   string
	source     Source
	sink       Sink
	transforms []Transform
	config     Config
	limiter    *rate.Limiter
	logger     *zap.Logger

	read, written, filtered, failed, batches atomic.Int64
}

// New creates a pipeline writing features of typeName. A nil config uses
// DefaultConfig.
func New(typeName string, source Source, sink Sink, config *Config, logger *zap.Logger) *Pipeline {
	cfg := *DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultConfig().RetryBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		typeName: typeName,
		source:   source,
		sink:     sink,
		config:   cfg,
		logger:   logger.With(zap.String("type_name", typeName)),
	}
	if cfg.RateLimit > 0 {
		burst := max(int(cfg.RateLimit), cfg.BatchSize)
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return p
}

// AddTransform appends a transform. Transforms run in the order added.
func (p *Pipeline) AddTransform(t Transform) {
	p.transforms = append(p.transforms, t)
}

// Run streams the source to the sink and blocks until the source is
// exhausted, a stage fails or ctx is cancelled. The returned stats are valid
// even when err is not nil.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	p.logger.Info("starting pipeline",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Int("worker_count", p.config.WorkerCount),
		zap.Int("transforms", len(p.transforms)))

	g, ctx := errgroup.WithContext(ctx)

	featureChan := make(chan feature.Feature, p.config.BatchSize*2)
	transformedChan := make(chan feature.Feature, p.config.BatchSize*2)
	batchChan := make(chan []feature.Feature, 4)

	g.Go(func() error { return p.readSource(ctx, featureChan) })

	var workers sync.WaitGroup
	for i := 0; i < p.config.WorkerCount; i++ {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			return p.transformWorker(ctx, i, featureChan, transformedChan)
		})
	}
	go func() {
		workers.Wait()
		close(transformedChan)
	}()

	g.Go(func() error { return p.batchCollector(ctx, transformedChan, batchChan) })
	g.Go(func() error { return p.writeSink(ctx, batchChan) })

	err := g.Wait()
	stats := p.stats(time.Since(start))
	fields := []zap.Field{
		zap.Int64("read", stats.Read),
		zap.Int64("written", stats.Written),
		zap.Int64("filtered", stats.Filtered),
		zap.Int64("failed", stats.Failed),
		zap.Duration("duration", stats.Duration),
	}
	if err != nil {
		p.logger.Error("pipeline failed", append(fields, zap.Error(err))...)
		return stats, err
	}
	p.logger.Info("pipeline completed", fields...)
	return stats, nil
}

func (p *Pipeline) stats(d time.Duration) Stats {
	return Stats{
		Read:     p.read.Load(),
		Written:  p.written.Load(),
		Filtered: p.filtered.Load(),
		Failed:   p.failed.Load(),
		Batches:  p.batches.Load(),
		Duration: d,
	}
}

// readSource drains the source into out
func (p *Pipeline) readSource(ctx context.Context, out chan<- feature.Feature) error {
	defer close(out)
	err := p.source(ctx, func(f feature.Feature) error {
		select {
		case out <- f:
			p.read.Add(1)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil && ctx.Err() == nil {
		return geoerrors.Wrap(err, geoerrors.ErrorTypeData, "source failed")
	}
	return err
}

// transformWorker applies the transforms to each feature
func (p *Pipeline) transformWorker(ctx context.Context, id int, in <-chan feature.Feature, out chan<- feature.Feature) error {
	logger := p.logger.With(zap.Int("worker", id))
	for {
		select {
		case f, ok := <-in:
			if !ok {
				return nil
			}
			result, err := p.apply(ctx, f)
			if err != nil {
				p.failed.Add(1)
				metrics.IngestFeatures.WithLabelValues(p.typeName, "failed").Inc()
				if !p.config.ContinueOnError {
					return err
				}
				logger.Warn("dropping feature", zap.String("fid", f.ID()), zap.Error(err))
				continue
			}
			if result == nil {
				p.filtered.Add(1)
				metrics.IngestFeatures.WithLabelValues(p.typeName, "filtered").Inc()
				continue
			}
			select {
			case out <- result:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pipeline) apply(ctx context.Context, f feature.Feature) (feature.Feature, error) {
	for i, t := range p.transforms {
		result, err := t(ctx, f)
		if err != nil {
			return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeData, "transform failed").
				WithDetail("transform", i).
				WithDetail("fid", f.ID())
		}
		if result == nil {
			return nil, nil
		}
		f = result
	}
	return f, nil
}

// batchCollector groups features into batches of BatchSize, flushing partial
// batches on every tick.
func (p *Pipeline) batchCollector(ctx context.Context, in <-chan feature.Feature, out chan<- []feature.Feature) error {
	defer close(out)

	batch := make([]feature.Feature, 0, p.config.BatchSize)
	ticker := time.NewTicker(p.config.FlushInterval)
	defer ticker.Stop()

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		select {
		case out <- batch:
			batch = make([]feature.Feature, 0, p.config.BatchSize)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		select {
		case f, ok := <-in:
			if !ok {
				return flush()
			}
			batch = append(batch, f)
			if len(batch) >= p.config.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// writeSink writes each batch to the sink
func (p *Pipeline) writeSink(ctx context.Context, in <-chan []feature.Feature) error {
	for batch := range in {
		if err := p.writeBatch(ctx, batch); err != nil {
			p.failed.Add(int64(len(batch)))
			metrics.IngestFeatures.WithLabelValues(p.typeName, "failed").Add(float64(len(batch)))
			return err
		}
		p.written.Add(int64(len(batch)))
		p.batches.Add(1)
		metrics.IngestFeatures.WithLabelValues(p.typeName, "written").Add(float64(len(batch)))
		p.logger.Debug("wrote batch", zap.Int("features", len(batch)))
	}
	return nil
}

// writeBatch writes one batch, waiting for the rate limiter and retrying
// retryable sink errors with exponential backoff.
func (p *Pipeline) writeBatch(ctx context.Context, batch []feature.Feature) error {
	if p.limiter != nil {
		if err := p.limiter.WaitN(ctx, len(batch)); err != nil {
			return err
		}
	}
	backoff := retry.WithMaxRetries(uint64(max(p.config.MaxRetries, 0)), retry.NewExponential(p.config.RetryBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := p.sink.Write(ctx, p.typeName, batch)
		if err != nil && geoerrors.IsRetryable(err) {
			p.logger.Warn("retrying batch", zap.Int("features", len(batch)), zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
}
