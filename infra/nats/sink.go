// Package nats streams allocation results to NATS subjects.
package nats

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kilianp07/heatdispatch/core/factory"
	coremetrics "github.com/kilianp07/heatdispatch/core/metrics"
	"github.com/kilianp07/heatdispatch/core/model"
	"github.com/kilianp07/heatdispatch/infra/logger"
)

// Config holds NATS connection settings.
type Config struct {
	URL            string        `json:"url"`
	Name           string        `json:"name"`
	Subject        string        `json:"subject"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	ReconnectWait  time.Duration `json:"reconnect_wait"`
	MaxReconnects  int           `json:"max_reconnects"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.Name == "" {
		c.Name = "heatdispatch"
	}
	if c.Subject == "" {
		c.Subject = "heat.dispatch"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 10
	}
}

type conn interface {
	Publish(subject string, data []byte) error
	Flush() error
	Close()
}

var connect = func(cfg Config) (conn, error) {
	log := logger.New("nats")
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// PeriodMessage is published on <subject>.period.
type PeriodMessage struct {
	RunID  string                 `json:"run_id"`
	Index  int                    `json:"index"`
	Result model.AllocationResult `json:"result"`
}

// Sink publishes every allocated period, shortfall, invalid period and run
// totals as JSON.
type Sink struct {
	nc      conn
	subject string
}

// NewSink connects to the server described by cfg.
func NewSink(cfg Config) (*Sink, error) {
	cfg.SetDefaults()
	nc, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	logger.New("nats").Infof("publishing on %s.> via %s", cfg.Subject, cfg.URL)
	return &Sink{nc: nc, subject: cfg.Subject}, nil
}

func (s *Sink) publish(suffix string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.nc.Publish(s.subject+"."+suffix, b)
}

// RecordAllocations publishes one message per period, then flushes.
func (s *Sink) RecordAllocations(evs []coremetrics.AllocationEvent) error {
	var errs []error
	for _, ev := range evs {
		if err := s.publish("period", PeriodMessage{RunID: ev.RunID, Index: ev.Index, Result: ev.Result}); err != nil {
			errs = append(errs, err)
		}
	}
	if len(evs) > 0 {
		if err := s.nc.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordShortfall publishes on <subject>.shortfall.
func (s *Sink) RecordShortfall(ev coremetrics.ShortfallEvent) error {
	return s.publish("shortfall", ev)
}

// RecordInvalidPeriod publishes on <subject>.invalid.
func (s *Sink) RecordInvalidPeriod(ev coremetrics.InvalidPeriodEvent) error {
	return s.publish("invalid", ev)
}

// RecordTotals publishes on <subject>.totals and flushes.
func (s *Sink) RecordTotals(ev coremetrics.TotalsEvent) error {
	if err := s.publish("totals", ev); err != nil {
		return err
	}
	return s.nc.Flush()
}

// Close closes the connection.
func (s *Sink) Close() error {
	s.nc.Close()
	return nil
}

func init() {
	_ = coremetrics.RegisterMetricsSink("nats", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSink(c)
	})
}
