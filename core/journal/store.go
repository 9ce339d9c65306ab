// Package journal persists allocation results so past runs can be queried.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/heatdispatch/core/model"
)

// Record is one journaled period.
type Record struct {
	RunID      string                 `json:"run_id"`
	RecordedAt time.Time              `json:"recorded_at"`
	Result     model.AllocationResult `json:"result"`
}

// Query filters journal records. Zero fields match everything. Start and End
// bound the period start time, both inclusive.
type Query struct {
	RunID         string
	Start         time.Time
	End           time.Time
	Source        string // only periods where this source ran
	ShortfallOnly bool
}

// Match reports whether rec satisfies q.
func (q Query) Match(rec Record) bool {
	if q.RunID != "" && rec.RunID != q.RunID {
		return false
	}
	from := rec.Result.Period.TimeFrom
	if !q.Start.IsZero() && from.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && from.After(q.End) {
		return false
	}
	if q.ShortfallOnly && !rec.Result.HasShortfall() {
		return false
	}
	if q.Source != "" {
		a, ok := rec.Result.Allocation(q.Source)
		if !ok || !a.Engaged {
			return false
		}
	}
	return true
}

// Store persists and retrieves journal records.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Backend names.
const (
	BackendNone     = ""
	BackendJSONL    = "jsonl"
	BackendRotating = "rotating"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
)

// Config selects and configures the journal backend.
type Config struct {
	Backend string `json:"backend"`
	// Path is the file for file backends and the server URL for redis.
	Path string `json:"path"`
	// Key names the Redis list.
	Key        string `json:"key"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults fills unset rotation settings.
func (c *Config) SetDefaults() {
	if c.Backend != BackendRotating {
		return
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 5
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 30
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendNone:
		return nil
	case BackendJSONL, BackendRotating, BackendSQLite, BackendRedis:
		if c.Path == "" {
			return fmt.Errorf("journal: path required for backend %s", c.Backend)
		}
		return nil
	default:
		return fmt.Errorf("journal: unknown backend %q", c.Backend)
	}
}

// Open creates the configured store. It returns nil without error when no
// backend is configured.
func Open(cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	switch cfg.Backend {
	case BackendJSONL:
		return NewJSONLStore(cfg.Path)
	case BackendRotating:
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case BackendSQLite:
		return NewSQLiteStore(cfg.Path)
	case BackendRedis:
		return NewRedisStore(cfg.Path, cfg.Key)
	default:
		return nil, nil
	}
}
