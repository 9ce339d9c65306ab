// Package monitoring reports errors and panics to Sentry.
package monitoring

import (
	"errors"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/heatdispatch/config"
	"github.com/kilianp07/heatdispatch/core/model"
	coremon "github.com/kilianp07/heatdispatch/core/monitoring"
)

const serviceTag = "heatdispatch"

// NewSentryMonitor initializes the global Sentry hub from cfg. An empty DSN
// yields a no-op monitor.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	if err := sentry.Init(clientOptions(cfg)); err != nil {
		return nil, err
	}
	return newSentryMonitor(sentry.CurrentHub(), cfg.Tags), nil
}

func clientOptions(cfg config.SentryConfig) sentry.ClientOptions {
	return sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		TracesSampleRate: cfg.TracesSampleRate,
	}
}

func newSentryMonitor(hub *sentry.Hub, tags map[string]string) *sentryMonitor {
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("service", serviceTag)
		scope.SetTags(tags)
	})
	return &sentryMonitor{hub: hub}
}

type sentryMonitor struct {
	hub *sentry.Hub
}

// CaptureException reports err with tags. Rejected input periods are data
// problems and go out as warnings.
func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		if errors.Is(err, model.ErrInvalidPeriod) {
			scope.SetLevel(sentry.LevelWarning)
		}
		s.hub.CaptureException(err)
	})
}

// Recover reports the panic, flushes and re-panics.
func (s *sentryMonitor) Recover() {
	if r := recover(); r != nil {
		s.hub.Recover(r)
		s.hub.Flush(2 * time.Second)
		panic(r)
	}
}

func (s *sentryMonitor) Flush(timeout time.Duration) { s.hub.Flush(timeout) }
