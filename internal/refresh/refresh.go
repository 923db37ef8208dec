// Package refresh periodically re-imports ICS subscriptions into the
// planner.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"taskcal/internal/config"
	"taskcal/internal/ics"
	appLog "taskcal/internal/log"
	"taskcal/internal/model"
)

// Fetcher is satisfied by *ics.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, src ics.Source) (ics.FetchResult, error)
}

// Sink receives the expanded events of one source; *planner.Planner
// implements it.
type Sink interface {
	ReplaceSource(sourceID string, evs []model.Event) []model.Event
}

// Recorder observes refresh outcomes; *metrics.Metrics implements it.
type Recorder interface {
	RefreshDone(source string, imported int, took time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) RefreshDone(string, int, time.Duration, error) {}

type Refresher struct {
	fetcher  Fetcher
	sink     Sink
	rec      Recorder
	sources  []config.ICSConfig
	loc      *time.Location
	horizon  int
	backfill int
	now      func() time.Time

	// runMu keeps a cron tick and a manual run from interleaving.
	runMu sync.Mutex
}

type Option func(*Refresher)

func WithRecorder(rec Recorder) Option {
	return func(r *Refresher) {
		if rec != nil {
			r.rec = rec
		}
	}
}

// WithClock overrides time.Now for the expansion window.
func WithClock(now func() time.Time) Option {
	return func(r *Refresher) {
		if now != nil {
			r.now = now
		}
	}
}

// New builds a Refresher for cfg.ICS. Expansion covers
// [now-BackfillDays, now+HorizonDays] in loc.
func New(cfg *config.Config, loc *time.Location, fetcher Fetcher, sink Sink, opts ...Option) *Refresher {
	if loc == nil {
		loc = time.Local
	}
	r := &Refresher{
		fetcher:  fetcher,
		sink:     sink,
		rec:      nopRecorder{},
		sources:  cfg.ICS,
		loc:      loc,
		horizon:  cfg.HorizonDays,
		backfill: cfg.BackfillDays,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce refreshes every source. A failing source keeps its previous
// import; the failures are joined into the returned error.
func (r *Refresher) RunOnce(ctx context.Context) error {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	now := r.now().In(r.loc)
	from := now.AddDate(0, 0, -r.backfill)
	to := now.AddDate(0, 0, r.horizon)

	var errs []error
	for _, src := range r.sources {
		if src.URL == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		started := time.Now()
		n, err := r.refreshSource(ctx, src, from, to)
		r.rec.RefreshDone(src.SourceID(), n, time.Since(started), err)
		if err != nil {
			appLog.Error("subscription refresh failed", err, "source", src.SourceID())
			errs = append(errs, fmt.Errorf("source %s: %w", src.SourceID(), err))
			continue
		}
		appLog.Info("subscription refreshed", "source", src.SourceID(), "events", n)
	}
	return errors.Join(errs...)
}

func (r *Refresher) refreshSource(ctx context.Context, src config.ICSConfig, from, to time.Time) (int, error) {
	res, err := r.fetcher.Fetch(ctx, ics.Source{ID: src.SourceID(), URL: src.URL})
	if err != nil {
		return 0, err
	}
	parsed, err := ics.Parse(res.Source, res.Body, r.loc)
	if err != nil {
		return 0, err
	}
	events, err := ics.Expand(parsed, ics.ExpandConfig{
		Location:   r.loc,
		RangeStart: from,
		RangeEnd:   to,
		Category:   src.Category,
	})
	if err != nil {
		return 0, err
	}
	return len(r.sink.ReplaceSource(src.SourceID(), events)), nil
}

// Start runs RunOnce on the cron spec until ctx is cancelled. Overlapping
// ticks are skipped.
func (r *Refresher) Start(ctx context.Context, spec string) error {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(r.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(spec, func() { _ = r.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("refresh schedule %q: %w", spec, err)
	}
	c.Start()
	appLog.Info("subscription refresh scheduled", "spec", spec, "sources", len(r.sources))

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Debug("subscription refresh stopped")
	}()
	return nil
}

// cronLogger routes cron's own messages into the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
