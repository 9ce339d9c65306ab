// Package app wires configuration, the allocator and its collaborators into a
// runnable service.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/heatdispatch/config"
	"github.com/kilianp07/heatdispatch/core/catalog"
	"github.com/kilianp07/heatdispatch/core/dispatch"
	"github.com/kilianp07/heatdispatch/core/events"
	"github.com/kilianp07/heatdispatch/core/journal"
	coremetrics "github.com/kilianp07/heatdispatch/core/metrics"
	"github.com/kilianp07/heatdispatch/core/model"
	coremon "github.com/kilianp07/heatdispatch/core/monitoring"
	"github.com/kilianp07/heatdispatch/infra/logger"
	"github.com/kilianp07/heatdispatch/infra/metrics"
	"github.com/kilianp07/heatdispatch/infra/monitoring"
	"github.com/kilianp07/heatdispatch/infra/timeseries"
	"github.com/kilianp07/heatdispatch/internal/eventbus"

	// Sink implementations register themselves with core/metrics.
	_ "github.com/kilianp07/heatdispatch/infra/mqtt"
	_ "github.com/kilianp07/heatdispatch/infra/nats"
)

// Service orchestrates a planning run.
type Service struct {
	Config    *config.Config
	Catalog   *catalog.Catalog
	Allocator *dispatch.Allocator
	sink      coremetrics.MetricsSink
	stream    coremetrics.MetricsSink
	journal   journal.Store
	log       logger.Logger
}

// New creates a Service from the configuration. It installs the configured
// log level and error monitor.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	logg := logger.New("service")
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	cat, err := catalog.New(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	alloc, err := dispatch.NewAllocator(cat, logger.New("allocator"))
	if err != nil {
		return nil, err
	}
	svc := &Service{Config: cfg, Catalog: cat, Allocator: alloc, log: logg}

	if svc.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}
	if len(cfg.Metrics.Stream) > 0 {
		if svc.stream, err = coremetrics.NewMetricsSink(cfg.Metrics.Stream); err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("stream sinks: %w", err)
		}
	}
	if svc.journal, err = journal.Open(cfg.Journal); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("journal: %w", err)
	}
	logg.Infof("catalog: %d sources, policy %s, CO2 budget %.1f kg per period",
		cat.Len(), cat.Policy(), cat.MaxCO2PerPeriod())
	return svc, nil
}

// LoadPeriods reads the demand and price series. Empty arguments fall back
// to the input section of the configuration.
func (s *Service) LoadPeriods(path, season string) ([]model.PeriodRecord, error) {
	if path == "" {
		path = s.Config.Input.Path
	}
	if season == "" {
		season = s.Config.Input.Season
	}
	if path == "" {
		return nil, errors.New("no input file given")
	}
	sea, err := timeseries.ParseSeason(season)
	if err != nil {
		return nil, err
	}
	periods, err := timeseries.Load(path, sea)
	if err != nil {
		return nil, err
	}
	s.log.Infof("loaded %d %s periods from %s", len(periods), sea, path)
	return periods, nil
}

// Plan allocates every period. Stream sinks are fed from the event bus while
// the run progresses and drained before Plan returns.
func (s *Service) Plan(ctx context.Context, periods []model.PeriodRecord) (dispatch.Report, error) {
	bus := eventbus.NewBuffered[events.Event]((s.Catalog.Len() + 3) * (len(periods) + 1))
	var collected <-chan struct{}
	if s.stream != nil {
		collected = metrics.StartEventCollector(ctx, bus, s.stream)
	}
	runner, err := dispatch.NewRunner(s.Allocator, s.Config.Dispatch, logger.New("runner"), s.sink, bus)
	if err != nil {
		bus.Close()
		return dispatch.Report{}, err
	}
	if s.journal != nil {
		runner.SetJournal(s.journal)
	}
	rep, err := runner.Run(ctx, periods)
	bus.Close()
	if collected != nil {
		<-collected
	}
	if dropped := bus.Dropped(); dropped > 0 {
		s.log.Warnf("%d events dropped by the event bus", dropped)
	}
	return rep, err
}

// Serve exposes Prometheus metrics until ctx is canceled.
func (s *Service) Serve(ctx context.Context) (string, error) {
	return metrics.StartPromServer(ctx, s.Config.Metrics.PrometheusAddr)
}

// Journal returns the configured journal, nil when disabled.
func (s *Service) Journal() journal.Store { return s.journal }

// Close releases sinks and the journal.
func (s *Service) Close() error {
	var errs []error
	for _, sink := range []coremetrics.MetricsSink{s.sink, s.stream} {
		if c, ok := sink.(coremetrics.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	if s.journal != nil {
		errs = append(errs, s.journal.Close())
	}
	return errors.Join(errs...)
}
